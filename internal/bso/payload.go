// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package bso implements the Basic Storage Object codec: the outer wire
// envelope {id, modified, payload}, the encrypted inner payload
// {IV, hmac, ciphertext}, and the cleartext payload that records and
// tombstones serialize to.
//
// Wire-format invariant: the envelope's "payload" field is a JSON string
// whose value is itself serialized JSON, so every record crosses the
// serializer twice. The codec keeps that quirk in exactly one place.
package bso

import (
	"encoding/json"
	"fmt"

	"github.com/weavesync/weavesync/models"
)

// Payload is a decrypted cleartext payload: a record id, an optional
// deletion marker, and the record's remaining fields kept as raw JSON so
// unknown fields written by newer clients survive a round trip.
type Payload struct {
	ID      models.Guid
	Deleted bool
	Fields  map[string]json.RawMessage
}

// NewTombstone returns the minimal deletion payload {id, deleted: true}.
func NewTombstone(id models.Guid) Payload {
	return Payload{ID: id, Deleted: true}
}

// FromRecord converts a record value into a Payload. The record's "id"
// field becomes the payload identity.
func FromRecord[T any](record T) (Payload, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Payload{}, fmt.Errorf("marshal record: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("rebuild payload from record: %w", err)
	}
	return p, nil
}

// IntoRecord deserializes the payload into a concrete record type.
// Tombstones carry no record fields and cannot be converted.
func IntoRecord[T any](p Payload) (T, error) {
	var record T
	if p.Deleted {
		return record, fmt.Errorf("payload %s: %w", p.ID, ErrPayloadIsTombstone)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return record, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &record); err != nil {
		return record, fmt.Errorf("decode payload %s: %w", p.ID, err)
	}
	return record, nil
}

// MarshalJSON flattens ID, the deletion marker, and the raw fields into a
// single JSON object.
func (p Payload) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(p.Fields)+2)
	for k, v := range p.Fields {
		obj[k] = v
	}
	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	obj["id"] = id
	if p.Deleted {
		obj["deleted"] = json.RawMessage("true")
	} else {
		delete(obj, "deleted")
	}
	return json.Marshal(obj)
}

// UnmarshalJSON is the inverse of MarshalJSON. A "deleted" key with any
// truthy value marks a tombstone, matching what desktop has historically
// written.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if rawID, ok := obj["id"]; ok {
		if err := json.Unmarshal(rawID, &p.ID); err != nil {
			return fmt.Errorf("payload id: %w", err)
		}
		delete(obj, "id")
	}
	if rawDeleted, ok := obj["deleted"]; ok {
		var deleted bool
		// Ignore the error: a malformed "deleted" value reads as false.
		_ = json.Unmarshal(rawDeleted, &deleted)
		p.Deleted = deleted
		delete(obj, "deleted")
	}
	p.Fields = obj
	return nil
}

// Item pairs a decrypted payload with the server timestamp of the envelope
// it arrived in. This is what the reconciliation engine stages.
type Item struct {
	Payload  Payload
	Modified models.ServerTimestamp
}
