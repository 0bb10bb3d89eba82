// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// RecordImpl supplies the per-collection behavior the generic engine
// cannot know: the collection name and how to recognise a local duplicate
// of an incoming record.
type RecordImpl[R models.SyncRecord[R]] interface {
	// Collection is the server-side collection name, e.g. "passwords".
	Collection() string

	// GetLocalDupe finds a never-synced local record holding the same
	// content as incoming under a different guid, or nil.
	GetLocalDupe(ctx context.Context, tx *store.Tx, incoming R) (*R, error)
}

// DefaultRecordImpl matches duplicates by scanning the collection for a
// record that ContentEquals the incoming one but was created under a
// different guid. Adequate for client-sized collections; a kind with a
// cheaper lookup key can supply its own RecordImpl.
type DefaultRecordImpl[R models.SyncRecord[R]] struct {
	Name string
}

func (d DefaultRecordImpl[R]) Collection() string { return d.Name }

func (d DefaultRecordImpl[R]) GetLocalDupe(ctx context.Context, tx *store.Tx, incoming R) (*R, error) {
	rows, err := tx.ListRecords(ctx, d.Name)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Guid == incoming.ID() {
			continue
		}
		candidate, err := decodeRecord[R](row.Guid, row.Payload, row.SyncChangeCounter)
		if err != nil {
			return nil, err
		}
		if candidate.ContentEquals(incoming) {
			return &candidate, nil
		}
	}
	return nil, nil
}

// decodeRecord rebuilds a record from its stored JSON payload. The change
// counter lives in its own column, never in the payload, so it is patched
// into the metadata after unmarshalling.
func decodeRecord[R models.SyncRecord[R]](guid models.Guid, payload []byte, counter int64) (R, error) {
	var record R
	if err := json.Unmarshal(payload, &record); err != nil {
		return record, fmt.Errorf("decode record %s: %w", guid, err)
	}
	meta := record.Meta()
	meta.SyncChangeCounter = counter
	return record.WithID(guid).WithMeta(meta), nil
}

func encodeRecord[R models.SyncRecord[R]](record R) ([]byte, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", record.ID(), err)
	}
	return payload, nil
}
