// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package bso

import (
	"encoding/json"
	"fmt"

	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/models"
)

// Envelope is the outer BSO as it appears on the wire. Modified is set by
// the server and never uploaded; SortIndex and TTL are optional.
type Envelope struct {
	ID         models.Guid            `json:"id"`
	Collection string                 `json:"collection,omitempty"`
	Modified   models.ServerTimestamp `json:"modified,omitempty"`
	SortIndex  *int                   `json:"sortindex,omitempty"`
	TTL        *int                   `json:"ttl,omitempty"`
	Payload    string                 `json:"payload"`
}

// EncryptedPayload is the inner ciphertext object stored, double-serialized,
// in Envelope.Payload. All three fields are base64 except Hmac, which is hex.
type EncryptedPayload struct {
	IV         string `json:"IV"`
	Hmac       string `json:"hmac"`
	Ciphertext string `json:"ciphertext"`
}

// emptyPayloadLen is the serialized size of an EncryptedPayload with empty
// fields, used to estimate upload sizes without re-serializing.
var emptyPayloadLen = func() int {
	raw, err := json.Marshal(EncryptedPayload{})
	if err != nil {
		panic(err)
	}
	return len(raw)
}()

// SerializedLen reports the exact length of the payload's JSON form. The
// field values are base64/hex strings, so no escaping ever changes the size.
func (p EncryptedPayload) SerializedLen() int {
	return emptyPayloadLen + len(p.IV) + len(p.Hmac) + len(p.Ciphertext)
}

// EncryptedPayload parses the envelope's inner JSON string.
func (e Envelope) EncryptedPayload() (EncryptedPayload, error) {
	var p EncryptedPayload
	if err := json.Unmarshal([]byte(e.Payload), &p); err != nil {
		return EncryptedPayload{}, fmt.Errorf("parse inner payload of %s: %w", e.ID, err)
	}
	return p, nil
}

// Decrypt verifies and decrypts the envelope with the collection key and
// returns the cleartext payload. The payload id must match the envelope id;
// a mismatch means the record was copied or tampered with.
func (e Envelope) Decrypt(key *crypto.KeyBundle) (Payload, error) {
	enc, err := e.EncryptedPayload()
	if err != nil {
		return Payload{}, err
	}
	cleartext, err := key.Decrypt(enc.Ciphertext, enc.IV, enc.Hmac)
	if err != nil {
		return Payload{}, fmt.Errorf("decrypt %s: %w", e.ID, err)
	}
	var p Payload
	if err := json.Unmarshal(cleartext, &p); err != nil {
		return Payload{}, fmt.Errorf("parse cleartext of %s: %w", e.ID, err)
	}
	if p.ID == "" {
		p.ID = e.ID
	} else if p.ID != e.ID {
		return Payload{}, fmt.Errorf("%s vs %s: %w", p.ID, e.ID, ErrMismatchedID)
	}
	return p, nil
}

// NewEnvelope encrypts a cleartext payload into an upload-ready envelope.
// Modified is left zero so it is omitted from the serialized form.
func NewEnvelope(p Payload, key *crypto.KeyBundle) (Envelope, error) {
	cleartext, err := json.Marshal(p)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal cleartext: %w", err)
	}
	ciphertext, iv, hmac, err := key.Encrypt(cleartext)
	if err != nil {
		return Envelope{}, fmt.Errorf("encrypt %s: %w", p.ID, err)
	}
	inner, err := json.Marshal(EncryptedPayload{IV: iv, Hmac: hmac, Ciphertext: ciphertext})
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal inner payload: %w", err)
	}
	return Envelope{ID: p.ID, Payload: string(inner)}, nil
}

// DecryptAs decrypts an envelope and deserializes it straight into a record
// type, returning the server modification time alongside.
func DecryptAs[T any](e Envelope, key *crypto.KeyBundle) (T, models.ServerTimestamp, error) {
	var record T
	p, err := e.Decrypt(key)
	if err != nil {
		return record, 0, err
	}
	record, err = IntoRecord[T](p)
	if err != nil {
		return record, 0, err
	}
	return record, e.Modified, nil
}

// EncryptRecord serializes a record to a payload and encrypts it into an
// envelope in one step.
func EncryptRecord[T any](record T, key *crypto.KeyBundle) (Envelope, error) {
	p, err := FromRecord(record)
	if err != nil {
		return Envelope{}, err
	}
	return NewEnvelope(p, key)
}
