// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

const coll = "passwords"

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(context.Background(), ":memory:", logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func inTx(t *testing.T, s Store, fn func(tx *Tx)) {
	t.Helper()
	require.NoError(t, s.InTransaction(context.Background(), func(tx *Tx) error {
		fn(tx)
		return nil
	}))
}

func TestRecordLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		got, err := tx.GetRecord(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.Nil(t, got)

		row := RecordRow{Guid: "recordAAAAAA", Payload: []byte(`{"x":1}`), SyncChangeCounter: 1}
		require.NoError(t, tx.UpsertRecord(ctx, coll, row))

		got, err = tx.GetRecord(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, row, *got)

		// upsert replaces
		row.Payload = []byte(`{"x":2}`)
		row.SyncChangeCounter = 3
		require.NoError(t, tx.UpsertRecord(ctx, coll, row))
		got, err = tx.GetRecord(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.SyncChangeCounter)

		require.NoError(t, tx.DeleteRecord(ctx, coll, "recordAAAAAA"))
		assert.ErrorIs(t, tx.DeleteRecord(ctx, coll, "recordAAAAAA"), ErrRecordNotFound)
	})
}

func TestChangeRecordGuid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "localAAAAAAA", Payload: []byte(`{}`)}))
		require.NoError(t, tx.ChangeRecordGuid(ctx, coll, "localAAAAAAA", "serverBBBBBB"))

		got, err := tx.GetRecord(ctx, coll, "serverBBBBBB")
		require.NoError(t, err)
		require.NotNil(t, got)

		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "otherCCCCCCC", Payload: []byte(`{}`)}))
		assert.ErrorIs(t, tx.ChangeRecordGuid(ctx, coll, "otherCCCCCCC", "serverBBBBBB"), ErrGuidTaken)
		assert.ErrorIs(t, tx.ChangeRecordGuid(ctx, coll, "missingDDDDD", "freshEEEEEEE"), ErrRecordNotFound)
	})
}

func TestTombstoneLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		has, err := tx.HasTombstone(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, tx.InsertTombstone(ctx, coll, "recordAAAAAA", 1234))
		has, err = tx.HasTombstone(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.True(t, has)

		require.NoError(t, tx.DeleteTombstone(ctx, coll, "recordAAAAAA"))
		has, err = tx.HasTombstone(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestStagingJoinAndMirror(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		// local state: one modified record with a mirror, one tombstone
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "modifiedAAAA", Payload: []byte(`{"v":"local"}`), SyncChangeCounter: 2}))
		require.NoError(t, tx.PutMirror(ctx, coll, MirrorRow{Guid: "modifiedAAAA", Payload: []byte(`{"v":"mirror"}`), ServerModified: 1000}))
		require.NoError(t, tx.InsertTombstone(ctx, coll, "deletedBBBBB", 500))

		staged := []StagedRow{
			{Guid: "modifiedAAAA", Payload: []byte(`{"v":"incoming"}`), ServerModified: 2000},
			{Guid: "deletedBBBBB", Payload: []byte(`{"v":"edit"}`), ServerModified: 2000},
			{Guid: "brandNewCCCC", Payload: nil, ServerModified: 2000}, // incoming tombstone
		}
		require.NoError(t, tx.StageIncoming(ctx, coll, staged, nil))

		rows, err := tx.FetchIncomingRows(ctx, coll)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		byGuid := map[models.Guid]IncomingRow{}
		for _, r := range rows {
			byGuid[r.Staged.Guid] = r
		}

		mod := byGuid["modifiedAAAA"]
		require.NotNil(t, mod.Local)
		assert.Equal(t, int64(2), mod.Local.SyncChangeCounter)
		require.NotNil(t, mod.Mirror)
		assert.Equal(t, models.ServerTimestamp(1000), mod.Mirror.ServerModified)
		assert.False(t, mod.LocalTombstone)

		del := byGuid["deletedBBBBB"]
		assert.Nil(t, del.Local)
		assert.True(t, del.LocalTombstone)

		tomb := byGuid["brandNewCCCC"]
		assert.Nil(t, tomb.Staged.Payload)

		require.NoError(t, tx.MirrorStaged(ctx, coll))

		// staged records landed in the mirror, staged tombstones removed it
		mirror, err := tx.GetMirror(ctx, coll, "modifiedAAAA")
		require.NoError(t, err)
		require.NotNil(t, mirror)
		assert.Equal(t, []byte(`{"v":"incoming"}`), mirror.Payload)
		assert.Equal(t, models.ServerTimestamp(2000), mirror.ServerModified)

		// staging is empty afterwards
		rows, err = tx.FetchIncomingRows(ctx, coll)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestStageIncomingInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	handle := interrupt.NewHandle()
	handle.Interrupt()

	err := s.InTransaction(ctx, func(tx *Tx) error {
		return tx.StageIncoming(ctx, coll, []StagedRow{{Guid: "recordAAAAAA", Payload: []byte(`{}`)}}, handle)
	})
	assert.ErrorIs(t, err, interrupt.ErrInterrupted)
}

func TestOutgoingAndFinish(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "editedAAAAAA", Payload: []byte(`{}`), SyncChangeCounter: 2}))
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "cleanBBBBBBB", Payload: []byte(`{}`), SyncChangeCounter: 0}))
		require.NoError(t, tx.InsertTombstone(ctx, coll, "deletedCCCCC", 1000))

		outgoing, err := tx.OutgoingRows(ctx, coll)
		require.NoError(t, err)
		require.Len(t, outgoing, 2)

		// simulate a local edit racing the upload
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "editedAAAAAA", Payload: []byte(`{"v":2}`), SyncChangeCounter: 3}))

		require.NoError(t, tx.FinishSyncedItems(ctx, coll, outgoing))

		// the racing edit keeps its pending count
		got, err := tx.GetRecord(ctx, coll, "editedAAAAAA")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.SyncChangeCounter)

		has, err := tx.HasTombstone(ctx, coll, "deletedCCCCC")
		require.NoError(t, err)
		assert.False(t, has)

		outgoing, err = tx.OutgoingRows(ctx, coll)
		require.NoError(t, err)
		require.Len(t, outgoing, 1)
		assert.Equal(t, models.Guid("editedAAAAAA"), outgoing[0].Guid)
	})
}

func TestWipeCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "recordAAAAAA", Payload: []byte(`{}`)}))
		require.NoError(t, tx.PutMirror(ctx, coll, MirrorRow{Guid: "recordAAAAAA", Payload: []byte(`{}`)}))
		require.NoError(t, tx.InsertTombstone(ctx, coll, "deletedBBBBB", 1))
		require.NoError(t, tx.UpsertRecord(ctx, "other", RecordRow{Guid: "keepmeCCCCCC", Payload: []byte(`{}`)}))

		require.NoError(t, tx.WipeCollection(ctx, coll))

		got, err := tx.GetRecord(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.Nil(t, got)
		has, err := tx.HasTombstone(ctx, coll, "deletedBBBBB")
		require.NoError(t, err)
		assert.False(t, has)

		// other collections untouched
		kept, err := tx.GetRecord(ctx, "other", "keepmeCCCCCC")
		require.NoError(t, err)
		assert.NotNil(t, kept)
	})
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) {
		_, ok, err := tx.GetMeta(ctx, "passwords/last_sync_time")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, tx.PutMeta(ctx, "passwords/last_sync_time", "1234"))
		v, ok, err := tx.GetMeta(ctx, "passwords/last_sync_time")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1234", v)

		require.NoError(t, tx.DeleteMeta(ctx, "passwords/last_sync_time"))
		_, ok, err = tx.GetMeta(ctx, "passwords/last_sync_time")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestInTransactionRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTransaction(ctx, func(tx *Tx) error {
		require.NoError(t, tx.UpsertRecord(ctx, coll, RecordRow{Guid: "recordAAAAAA", Payload: []byte(`{}`)}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inTx(t, s, func(tx *Tx) {
		got, err := tx.GetRecord(ctx, coll, "recordAAAAAA")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestInTransaction_BeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("disk I/O error"))

	s := NewStoreWithDB(&DB{DB: db, logger: logger.Nop()})
	err = s.InTransaction(context.Background(), func(tx *Tx) error { return nil })

	assert.ErrorIs(t, err, ErrBeginningTransaction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaybeCommitSplitsTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	budget := NewTransactionBudget(1, 0)
	boom := errors.New("boom after chunk")

	err := s.InTransaction(ctx, func(tx *Tx) error {
		tx.SetBudget(budget)
		rows := []StagedRow{
			{Guid: "chunkedAAAAA", Payload: []byte(`{}`), ServerModified: 1},
			{Guid: "chunkedBBBBB", Payload: []byte(`{}`), ServerModified: 1},
		}
		if err := tx.StageIncoming(ctx, coll, rows, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// the first chunk was committed before the failure
	inTx(t, s, func(tx *Tx) {
		rows, err := tx.FetchIncomingRows(ctx, coll)
		require.NoError(t, err)
		assert.NotEmpty(t, rows)
	})
}
