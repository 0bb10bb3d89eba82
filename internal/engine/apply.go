// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"context"
	"fmt"

	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// stateFromRow rebuilds the planner input from one joined staging row.
func stateFromRow[R models.SyncRecord[R]](row store.IncomingRow) (IncomingState[R], error) {
	var state IncomingState[R]

	guid := row.Staged.Guid
	if row.Staged.Payload == nil {
		state.Incoming = IncomingTombstone[R](guid)
	} else {
		record, err := decodeRecord[R](guid, row.Staged.Payload, 0)
		if err != nil {
			return state, err
		}
		state.Incoming = IncomingFromRecord(record)
	}

	switch {
	case row.LocalTombstone:
		state.Local = LocalTombstone[R]()
	case row.Local != nil:
		record, err := decodeRecord[R](row.Local.Guid, row.Local.Payload, row.Local.SyncChangeCounter)
		if err != nil {
			return state, err
		}
		if row.Local.SyncChangeCounter > 0 {
			state.Local = LocalModified(record)
		} else {
			state.Local = LocalUnmodified(record)
		}
	default:
		state.Local = LocalMissing[R]()
	}

	if row.Mirror != nil {
		mirror, err := decodeRecord[R](row.Mirror.Guid, row.Mirror.Payload, 0)
		if err != nil {
			return state, err
		}
		state.Mirror = &mirror
	}
	return state, nil
}

// ApplyIncomingAction executes one planned action inside the caller's
// transaction. Change counters are the contract with the outgoing pass: a
// row written with counter zero is considered in sync with the server, and
// anything positive is uploaded on the next pass.
func ApplyIncomingAction[R models.SyncRecord[R]](ctx context.Context, tx *store.Tx, collection string, action IncomingAction[R]) error {
	switch action.Kind {
	case ActionDoNothing:
		return nil

	case ActionInsert:
		return upsert(ctx, tx, collection, action.Record, 0)

	case ActionUpdate:
		counter := int64(0)
		if action.WasMerged {
			counter = max(1, action.Record.Meta().SyncChangeCounter)
		}
		return upsert(ctx, tx, collection, action.Record, counter)

	case ActionUpdateLocalGuid:
		if err := tx.ChangeRecordGuid(ctx, collection, action.DupeGuid, action.Record.ID()); err != nil {
			return err
		}
		return upsert(ctx, tx, collection, action.Record, 0)

	case ActionFork:
		if err := upsert(ctx, tx, collection, action.Forked, action.Forked.Meta().SyncChangeCounter); err != nil {
			return err
		}
		return upsert(ctx, tx, collection, action.Record, 0)

	case ActionDeleteLocalRecord:
		return tx.DeleteRecord(ctx, collection, action.Guid)

	case ActionResurrectLocalTombstone:
		if err := tx.DeleteTombstone(ctx, collection, action.Record.ID()); err != nil {
			return err
		}
		return upsert(ctx, tx, collection, action.Record, 0)

	case ActionResurrectRemoteTombstone:
		// The tombstone will drop the mirror row; keeping the record
		// pending re-creates it server-side on the next upload.
		counter := max(1, action.Record.Meta().SyncChangeCounter)
		return upsert(ctx, tx, collection, action.Record, counter)

	default:
		return fmt.Errorf("%w: apply of action %s", ErrUnexpectedState, action.Kind)
	}
}

func upsert[R models.SyncRecord[R]](ctx context.Context, tx *store.Tx, collection string, record R, counter int64) error {
	payload, err := encodeRecord(record)
	if err != nil {
		return err
	}
	return tx.UpsertRecord(ctx, collection, store.RecordRow{
		Guid:              record.ID(),
		Payload:           payload,
		SyncChangeCounter: counter,
	})
}
