// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// Tx is one logical write transaction. With a budget attached, MaybeCommit
// may split it across several SQL transactions; chunks committed before a
// failure stay applied, which is safe because every operation here is
// idempotent against re-downloaded data.
type Tx struct {
	db     *DB
	tx     *sql.Tx
	budget *TransactionBudget
	done   bool
}

// SetBudget attaches a budget consulted by MaybeCommit. A nil budget
// disables splitting.
func (t *Tx) SetBudget(b *TransactionBudget) {
	t.budget = b
}

// MaybeCommit commits the current SQL transaction and opens a fresh one if
// the attached budget is exhausted. Callers invoke it between row chunks.
func (t *Tx) MaybeCommit(ctx context.Context) error {
	if t.budget == nil || !t.budget.Exceeded() {
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}
	inner, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		t.done = true
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	t.tx = inner
	t.budget.reset()
	return nil
}

func (t *Tx) commit() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Commit()
}

func (t *Tx) rollback() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}

// GetRecord returns the live local record, or nil when absent.
func (t *Tx) GetRecord(ctx context.Context, collection string, guid models.Guid) (*RecordRow, error) {
	var row RecordRow
	err := t.tx.QueryRowContext(ctx, getRecordQuery, collection, string(guid)).
		Scan(&row.Guid, &row.Payload, &row.SyncChangeCounter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return &row, nil
}

// GetRecords returns the live records for a batch of guids. Missing guids
// are simply absent from the result.
func (t *Tx) GetRecords(ctx context.Context, collection string, guids []models.Guid) (map[models.Guid]RecordRow, error) {
	out := make(map[models.Guid]RecordRow, len(guids))
	if len(guids) == 0 {
		return out, nil
	}
	query, args, err := buildGetRecordsQuery(collection, guids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row RecordRow
		if err = rows.Scan(&row.Guid, &row.Payload, &row.SyncChangeCounter); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		out[row.Guid] = row
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return out, nil
}

// ListRecords returns every live record in a collection.
func (t *Tx) ListRecords(ctx context.Context, collection string) ([]RecordRow, error) {
	rows, err := t.tx.QueryContext(ctx, listRecordsQuery, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	records := make([]RecordRow, 0, 50)
	for rows.Next() {
		var row RecordRow
		if err = rows.Scan(&row.Guid, &row.Payload, &row.SyncChangeCounter); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		records = append(records, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return records, nil
}

// UpsertRecord inserts or replaces a live record.
func (t *Tx) UpsertRecord(ctx context.Context, collection string, row RecordRow) error {
	if _, err := t.tx.ExecContext(ctx, upsertRecordQuery,
		collection, string(row.Guid), row.Payload, row.SyncChangeCounter); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// DeleteRecord removes a live record without leaving a tombstone. Used when
// the server told us the record is gone.
func (t *Tx) DeleteRecord(ctx context.Context, collection string, guid models.Guid) error {
	res, err := t.tx.ExecContext(ctx, deleteRecordQuery, collection, string(guid))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ChangeRecordGuid renames a local record, used when an incoming record is
// recognised as a duplicate of one created locally under a different guid.
func (t *Tx) ChangeRecordGuid(ctx context.Context, collection string, old, replacement models.Guid) error {
	existing, err := t.GetRecord(ctx, collection, replacement)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%s: %w", replacement, ErrGuidTaken)
	}
	res, err := t.tx.ExecContext(ctx, changeRecordGuidQuery, string(replacement), collection, string(old))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", old, ErrRecordNotFound)
	}
	return nil
}

// HasTombstone reports whether a local deletion is recorded for the guid.
func (t *Tx) HasTombstone(ctx context.Context, collection string, guid models.Guid) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, getTombstoneQuery, collection, string(guid)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return true, nil
}

// InsertTombstone records a local deletion for later upload.
func (t *Tx) InsertTombstone(ctx context.Context, collection string, guid models.Guid, deletedAtMillis int64) error {
	if _, err := t.tx.ExecContext(ctx, insertTombstoneQuery, collection, string(guid), deletedAtMillis); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// DeleteTombstone drops a local deletion marker, e.g. when the record is
// resurrected by an incoming edit.
func (t *Tx) DeleteTombstone(ctx context.Context, collection string, guid models.Guid) error {
	if _, err := t.tx.ExecContext(ctx, deleteTombstoneQuery, collection, string(guid)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// GetMirror returns the last server version of a record, or nil.
func (t *Tx) GetMirror(ctx context.Context, collection string, guid models.Guid) (*MirrorRow, error) {
	var row MirrorRow
	err := t.tx.QueryRowContext(ctx, getMirrorQuery, collection, string(guid)).
		Scan(&row.Guid, &row.Payload, &row.ServerModified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return &row, nil
}

// PutMirror inserts or replaces the server version of a record.
func (t *Tx) PutMirror(ctx context.Context, collection string, row MirrorRow) error {
	if _, err := t.tx.ExecContext(ctx, putMirrorQuery,
		collection, string(row.Guid), row.Payload, row.ServerModified); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// DeleteMirror removes the server version of a record.
func (t *Tx) DeleteMirror(ctx context.Context, collection string, guid models.Guid) error {
	if _, err := t.tx.ExecContext(ctx, deleteMirrorQuery, collection, string(guid)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// StageIncoming parks downloaded rows in the staging table. The loop stops
// at chunk boundaries when interrupted and lets MaybeCommit split the
// transaction under a budget.
func (t *Tx) StageIncoming(ctx context.Context, collection string, rows []StagedRow, scope interrupt.Interruptee) error {
	log := logger.FromContext(ctx)
	if scope == nil {
		scope = interrupt.NeverInterrupts
	}

	for i, row := range rows {
		if err := scope.ErrIfInterrupted(); err != nil {
			log.Debug().
				Str("func", "Tx.StageIncoming").
				Str("collection", collection).
				Int("staged", i).
				Int("total", len(rows)).
				Msg("interrupted while staging incoming records")
			return err
		}

		var payload any
		if row.Payload != nil {
			payload = row.Payload
		}
		if _, err := t.tx.ExecContext(ctx, stageRowQuery,
			collection, string(row.Guid), payload, row.ServerModified); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}

		if t.budget != nil {
			t.budget.RecordRow()
			if err := t.MaybeCommit(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// FetchIncomingRows joins staging against records, tombstones and mirror.
func (t *Tx) FetchIncomingRows(ctx context.Context, collection string) ([]IncomingRow, error) {
	rows, err := t.tx.QueryContext(ctx, fetchIncomingQuery, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	incoming := make([]IncomingRow, 0, 50)
	for rows.Next() {
		var (
			row           IncomingRow
			stagedPayload []byte
			localPayload  []byte
			localCounter  sql.NullInt64
			hasTombstone  bool
			mirrorPayload []byte
			mirrorMod     sql.NullInt64
		)
		err = rows.Scan(
			&row.Staged.Guid,
			&stagedPayload,
			&row.Staged.ServerModified,
			&localPayload,
			&localCounter,
			&hasTombstone,
			&mirrorPayload,
			&mirrorMod,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}

		row.Staged.Payload = stagedPayload
		row.LocalTombstone = hasTombstone
		if localCounter.Valid {
			row.Local = &RecordRow{
				Guid:              row.Staged.Guid,
				Payload:           localPayload,
				SyncChangeCounter: localCounter.Int64,
			}
		}
		if mirrorMod.Valid {
			row.Mirror = &MirrorRow{
				Guid:           row.Staged.Guid,
				Payload:        mirrorPayload,
				ServerModified: models.ServerTimestamp(mirrorMod.Int64),
			}
		}
		incoming = append(incoming, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return incoming, nil
}

// MirrorStaged copies the staging area into the mirror (tombstones remove
// their mirror row) and clears staging. Called after the staged records
// have been applied locally.
func (t *Tx) MirrorStaged(ctx context.Context, collection string) error {
	if _, err := t.tx.ExecContext(ctx, mirrorStagedTombstonesQuery, collection, collection); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	if _, err := t.tx.ExecContext(ctx, mirrorStagedRecordsQuery, collection); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return t.ClearStaging(ctx, collection)
}

// ClearStaging empties the staging table for a collection.
func (t *Tx) ClearStaging(ctx context.Context, collection string) error {
	if _, err := t.tx.ExecContext(ctx, clearStagingQuery, collection); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// OutgoingRows snapshots every local change pending upload: edited records
// followed by tombstones.
func (t *Tx) OutgoingRows(ctx context.Context, collection string) ([]OutgoingRow, error) {
	rows, err := t.tx.QueryContext(ctx, outgoingRecordsQuery, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	outgoing := make([]OutgoingRow, 0, 50)
	for rows.Next() {
		var row OutgoingRow
		if err = rows.Scan(&row.Guid, &row.Payload, &row.SyncChangeCounter); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		outgoing = append(outgoing, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}

	tombstones, err := t.tx.QueryContext(ctx, outgoingTombstonesQuery, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer tombstones.Close()

	for tombstones.Next() {
		var guid models.Guid
		if err = tombstones.Scan(&guid); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, err)
		}
		outgoing = append(outgoing, OutgoingRow{Guid: guid})
	}
	if err = tombstones.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, err)
	}
	return outgoing, nil
}

// FinishSyncedItems settles the uploaded rows: record counters are reduced
// by the snapshot value (an edit made during the upload keeps its pending
// count) and uploaded tombstones are dropped.
func (t *Tx) FinishSyncedItems(ctx context.Context, collection string, uploaded []OutgoingRow) error {
	tombstoneGuids := make([]models.Guid, 0, len(uploaded))
	for _, row := range uploaded {
		if row.Payload == nil {
			tombstoneGuids = append(tombstoneGuids, row.Guid)
			continue
		}
		if _, err := t.tx.ExecContext(ctx, settleRecordCounterQuery,
			row.SyncChangeCounter, collection, string(row.Guid)); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}

	if len(tombstoneGuids) == 0 {
		return nil
	}
	query, args, err := buildDeleteGuidsQuery("tombstones", collection, tombstoneGuids)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}
	if _, err = t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// ResetSyncState severs the collection from its server copy without losing
// local data: the mirror and staging area are dropped and every record is
// marked pending so the next sync uploads it again.
func (t *Tx) ResetSyncState(ctx context.Context, collection string) error {
	if _, err := t.tx.ExecContext(ctx, resetCountersQuery, collection); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	for _, table := range []string{"mirror", "staging"} {
		query, args, err := sqDeleteCollection(table, collection)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}
		if _, err = t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}
	return nil
}

// WipeCollection removes all local state for a collection, including its
// mirror and tombstones. Meta keys are the caller's business.
func (t *Tx) WipeCollection(ctx context.Context, collection string) error {
	for _, table := range []string{"records", "mirror", "tombstones", "staging"} {
		query, args, err := sqDeleteCollection(table, collection)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
		}
		if _, err = t.tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
		}
	}
	return nil
}

// GetMeta reads one sync metadata value; ok is false when unset.
func (t *Tx) GetMeta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = t.tx.QueryRowContext(ctx, getMetaQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return value, true, nil
}

// PutMeta writes one sync metadata value.
func (t *Tx) PutMeta(ctx context.Context, key, value string) error {
	if _, err := t.tx.ExecContext(ctx, putMetaQuery, key, value); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}

// DeleteMeta removes one sync metadata value.
func (t *Tx) DeleteMeta(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, deleteMetaQuery, key); err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return nil
}
