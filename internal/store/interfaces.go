// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package store is the local persistence layer: a single SQLite database
// holding, per collection, the live records, the mirror (the last version
// seen on the server), tombstones for local deletions, a staging area for
// incoming records, and a small key/value table for sync metadata.
//
// The engines never touch SQL directly; they run against [Tx] inside
// [Store.InTransaction]. Long row loops cooperate with interruption and
// with [TransactionBudget] so a sync can yield the writer connection.
package store

import (
	"context"

	"github.com/weavesync/weavesync/models"
)

// RecordRow is a live local record. Payload is the record's cleartext JSON;
// the store does not interpret it. SyncChangeCounter counts local edits not
// yet uploaded; zero means in sync with the mirror.
type RecordRow struct {
	Guid              models.Guid
	Payload           []byte
	SyncChangeCounter int64
}

// MirrorRow is the server's version of a record as of the last sync.
type MirrorRow struct {
	Guid           models.Guid
	Payload        []byte
	ServerModified models.ServerTimestamp
}

// StagedRow is one downloaded record parked in the staging table until
// apply. A nil Payload marks an incoming tombstone.
type StagedRow struct {
	Guid           models.Guid
	Payload        []byte
	ServerModified models.ServerTimestamp
}

// IncomingRow pairs a staged record with everything known locally about the
// same guid, fetched in one query so reconciliation can be planned without
// further reads.
type IncomingRow struct {
	Staged         StagedRow
	Local          *RecordRow
	LocalTombstone bool
	Mirror         *MirrorRow
}

// OutgoingRow is a local change scheduled for upload. A nil Payload marks a
// tombstone. SyncChangeCounter is the counter value at snapshot time, so a
// concurrent local edit during the upload is not lost when the counter is
// settled afterwards.
type OutgoingRow struct {
	Guid              models.Guid
	Payload           []byte
	SyncChangeCounter int64
}

// Store owns the database connection. All reads and writes happen through
// InTransaction; the transaction is rolled back on every non-nil return.
type Store interface {
	InTransaction(ctx context.Context, fn func(tx *Tx) error) error
	Close() error
}
