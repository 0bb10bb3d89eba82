// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/models"
)

// stagingBudget bounds how long one staging transaction may hold the
// writer connection before MaybeCommit splits it.
var stagingBudget = func() *store.TransactionBudget {
	return store.NewTransactionBudget(500, time.Second)
}

// CollectionEngine syncs one collection of records of kind R. It owns the
// collection's slice of the local database (rows, mirror, tombstones and
// the meta keys under the collection's namespace) and runs the full
// per-collection pass: stage downloaded items, reconcile them against
// local state, and hand pending local changes to the upload queue.
//
// The engine is not safe for concurrent use; the orchestrator runs
// collections sequentially over the single writer connection.
type CollectionEngine[R models.SyncRecord[R]] struct {
	store store.Store
	impl  RecordImpl[R]
	log   *logger.Logger

	// pending is the outgoing snapshot taken by Apply, settled by
	// SetUploaded once the server acknowledges the ids.
	pending []store.OutgoingRow
}

func NewCollectionEngine[R models.SyncRecord[R]](st store.Store, impl RecordImpl[R], log *logger.Logger) *CollectionEngine[R] {
	if log == nil {
		log = logger.Nop()
	}
	return &CollectionEngine[R]{store: st, impl: impl, log: log}
}

func (e *CollectionEngine[R]) Collection() string {
	return e.impl.Collection()
}

func (e *CollectionEngine[R]) metaKey(name string) string {
	return e.impl.Collection() + "/" + name
}

// LastSync returns the server timestamp of the last fully applied
// download, or zero before the first sync.
func (e *CollectionEngine[R]) LastSync(ctx context.Context) (models.ServerTimestamp, error) {
	var ts models.ServerTimestamp
	err := e.store.InTransaction(ctx, func(tx *store.Tx) error {
		value, ok, err := tx.GetMeta(ctx, e.metaKey("last_sync_time"))
		if err != nil || !ok {
			return err
		}
		millis, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt last_sync_time %q: %w", value, err)
		}
		ts = models.ServerTimestamp(millis)
		return nil
	})
	return ts, err
}

func (e *CollectionEngine[R]) putLastSync(ctx context.Context, tx *store.Tx, ts models.ServerTimestamp) error {
	return tx.PutMeta(ctx, e.metaKey("last_sync_time"), strconv.FormatInt(ts.Millis(), 10))
}

// CollectionRequestSince builds the download request for the next sync:
// full records, restricted to changes newer than the last applied
// timestamp.
func (e *CollectionEngine[R]) CollectionRequestSince(ctx context.Context) (adapter.CollectionRequest, error) {
	since, err := e.LastSync(ctx)
	if err != nil {
		return adapter.CollectionRequest{}, err
	}
	req := adapter.NewCollectionRequest(e.impl.Collection())
	if since > 0 {
		req = req.WithNewer(since)
	}
	return req, nil
}

// EnsureCurrentSyncID compares the sync ids from meta/global against the
// ones stored locally. A change on either level means the server was
// reset by another client: local sync state is discarded and every record
// is marked for re-upload, but user data is kept.
func (e *CollectionEngine[R]) EnsureCurrentSyncID(ctx context.Context, globalSyncID, engineSyncID string) error {
	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		storedGlobal, _, err := tx.GetMeta(ctx, e.metaKey("global_sync_id"))
		if err != nil {
			return err
		}
		storedEngine, _, err := tx.GetMeta(ctx, e.metaKey("sync_id"))
		if err != nil {
			return err
		}
		if storedGlobal == globalSyncID && storedEngine == engineSyncID {
			return nil
		}

		e.log.Info().
			Str("func", "CollectionEngine.EnsureCurrentSyncID").
			Str("collection", e.impl.Collection()).
			Msg("sync id changed, resetting collection sync state")
		if err = tx.ResetSyncState(ctx, e.impl.Collection()); err != nil {
			return err
		}
		if err = tx.DeleteMeta(ctx, e.metaKey("last_sync_time")); err != nil {
			return err
		}
		if err = tx.PutMeta(ctx, e.metaKey("global_sync_id"), globalSyncID); err != nil {
			return err
		}
		return tx.PutMeta(ctx, e.metaKey("sync_id"), engineSyncID)
	})
}

// Reset severs the collection from the server: mirror and staging are
// dropped, sync ids and the last-sync timestamp are forgotten, and every
// record is marked pending. Local user data survives.
func (e *CollectionEngine[R]) Reset(ctx context.Context) error {
	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		if err := tx.ResetSyncState(ctx, e.impl.Collection()); err != nil {
			return err
		}
		for _, key := range []string{"last_sync_time", "global_sync_id", "sync_id"} {
			if err := tx.DeleteMeta(ctx, e.metaKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// StageIncoming parks decrypted downloads in the staging table. Runs in
// its own budgeted transaction so a huge first sync cannot starve other
// writers or lose everything to a late interrupt.
func (e *CollectionEngine[R]) StageIncoming(ctx context.Context, items []bso.Item, scope interrupt.Interruptee) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]store.StagedRow, 0, len(items))
	for _, item := range items {
		row := store.StagedRow{Guid: item.Payload.ID, ServerModified: item.Modified}
		if !item.Payload.Deleted {
			payload, err := json.Marshal(item.Payload)
			if err != nil {
				return fmt.Errorf("marshal staged payload %s: %w", item.Payload.ID, err)
			}
			row.Payload = payload
		}
		rows = append(rows, row)
	}

	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		tx.SetBudget(stagingBudget())
		return tx.StageIncoming(ctx, e.impl.Collection(), rows, scope)
	})
}

// Apply reconciles everything staged against local state, promotes the
// staging area into the mirror, records serverModified as the new
// last-sync timestamp, and returns the payloads pending upload. The
// outgoing snapshot is kept until SetUploaded settles it.
func (e *CollectionEngine[R]) Apply(ctx context.Context, serverModified models.ServerTimestamp, scope interrupt.Interruptee) ([]bso.Payload, error) {
	if scope == nil {
		scope = interrupt.NeverInterrupts
	}
	collection := e.impl.Collection()

	var outgoing []bso.Payload
	err := e.store.InTransaction(ctx, func(tx *store.Tx) error {
		rows, err := tx.FetchIncomingRows(ctx, collection)
		if err != nil {
			return err
		}
		findDupe := func(ctx context.Context, incoming R) (*R, error) {
			return e.impl.GetLocalDupe(ctx, tx, incoming)
		}

		for _, row := range rows {
			if err = scope.ErrIfInterrupted(); err != nil {
				return err
			}
			state, err := stateFromRow[R](row)
			if err != nil {
				// One undecodable record must not sink the collection.
				e.log.Warn().Err(err).
					Str("collection", collection).
					Str("guid", string(row.Staged.Guid)).
					Msg("skipping malformed incoming record")
				continue
			}
			action, err := PlanIncoming(ctx, state, findDupe)
			if err != nil {
				return err
			}
			if err = ApplyIncomingAction(ctx, tx, collection, action); err != nil {
				return err
			}
		}

		if err = tx.MirrorStaged(ctx, collection); err != nil {
			return err
		}
		if serverModified > 0 {
			if err = e.putLastSync(ctx, tx, serverModified); err != nil {
				return err
			}
		}

		e.pending, err = tx.OutgoingRows(ctx, collection)
		if err != nil {
			return err
		}
		outgoing = make([]bso.Payload, 0, len(e.pending))
		for _, row := range e.pending {
			if row.Payload == nil {
				outgoing = append(outgoing, bso.NewTombstone(row.Guid))
				continue
			}
			var p bso.Payload
			if err = json.Unmarshal(row.Payload, &p); err != nil {
				return fmt.Errorf("outgoing payload %s: %w", row.Guid, err)
			}
			p.ID = row.Guid
			outgoing = append(outgoing, p)
		}
		return nil
	})
	if err != nil {
		e.pending = nil
		return nil, err
	}
	return outgoing, nil
}

// SetUploaded settles the rows the server acknowledged: counters are
// reduced by their snapshot value, uploaded tombstones dropped, and the
// last-sync timestamp advanced to the commit's server time.
func (e *CollectionEngine[R]) SetUploaded(ctx context.Context, modified models.ServerTimestamp, ids []models.Guid) error {
	accepted := make(map[models.Guid]bool, len(ids))
	for _, id := range ids {
		accepted[id] = true
	}
	uploaded := make([]store.OutgoingRow, 0, len(ids))
	for _, row := range e.pending {
		if accepted[row.Guid] {
			uploaded = append(uploaded, row)
		}
	}
	e.pending = nil

	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		if err := tx.FinishSyncedItems(ctx, e.impl.Collection(), uploaded); err != nil {
			return err
		}
		if modified > 0 {
			return e.putLastSync(ctx, tx, modified)
		}
		return nil
	})
}

// UpsertLocal records a local create or edit: the change counter is
// bumped so the record is uploaded on the next sync, and any tombstone
// for the guid is dropped.
func (e *CollectionEngine[R]) UpsertLocal(ctx context.Context, record R) error {
	collection := e.impl.Collection()
	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		counter := int64(1)
		if existing, err := tx.GetRecord(ctx, collection, record.ID()); err != nil {
			return err
		} else if existing != nil {
			counter = existing.SyncChangeCounter + 1
		}
		if err := tx.DeleteTombstone(ctx, collection, record.ID()); err != nil {
			return err
		}
		return upsert(ctx, tx, collection, record, counter)
	})
}

// DeleteLocal records a local deletion. A tombstone is written so the
// deletion reaches the server on the next sync.
func (e *CollectionEngine[R]) DeleteLocal(ctx context.Context, guid models.Guid) error {
	collection := e.impl.Collection()
	return e.store.InTransaction(ctx, func(tx *store.Tx) error {
		err := tx.DeleteRecord(ctx, collection, guid)
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}
		return tx.InsertTombstone(ctx, collection, guid, time.Now().UnixMilli())
	})
}

// Sync runs the full per-collection pass against the server: download and
// decrypt since the last sync, stage, reconcile, and upload pending local
// changes through a batching post queue. serverKnownModified is the
// collection's timestamp from info/collections; when it shows the server
// unchanged since the last sync the download is skipped and only pending
// local changes are uploaded. Zero means unknown.
func (e *CollectionEngine[R]) Sync(ctx context.Context, client adapter.StorageClient, key *crypto.KeyBundle, config adapter.InfoConfiguration, serverKnownModified models.ServerTimestamp, scope interrupt.Interruptee) error {
	if scope == nil {
		scope = interrupt.NeverInterrupts
	}
	collection := e.impl.Collection()
	log := e.log.GetChildLogger()

	since, err := e.LastSync(ctx)
	if err != nil {
		return err
	}

	var items []bso.Item
	serverModified := serverKnownModified
	if serverKnownModified == 0 || since == 0 || serverKnownModified > since {
		req := adapter.NewCollectionRequest(collection)
		if since > 0 {
			req = req.WithNewer(since)
		}
		envelopes, fetchedModified, err := client.FetchCollection(ctx, req)
		if err != nil {
			return err
		}
		serverModified = fetchedModified

		items = make([]bso.Item, 0, len(envelopes))
		for _, env := range envelopes {
			if err = scope.ErrIfInterrupted(); err != nil {
				return err
			}
			payload, err := env.Decrypt(key)
			if err != nil {
				// A record another client corrupted is skipped, not fatal.
				log.Warn().Err(err).
					Str("collection", collection).
					Str("guid", string(env.ID)).
					Msg("skipping undecryptable record")
				continue
			}
			items = append(items, bso.Item{Payload: payload, Modified: env.Modified})
		}

		if err = e.StageIncoming(ctx, items, scope); err != nil {
			return err
		}
	}

	outgoing, err := e.Apply(ctx, serverModified, scope)
	if err != nil {
		return err
	}
	if len(outgoing) == 0 {
		return nil
	}
	if err = scope.ErrIfInterrupted(); err != nil {
		return err
	}

	handler := adapter.NewNormalResponseHandler(true)
	queue := adapter.NewPostQueue(client, config, collection, serverModified, handler)
	for _, p := range outgoing {
		env, err := bso.NewEnvelope(p, key)
		if err != nil {
			return err
		}
		enqueued, err := queue.Enqueue(ctx, env)
		if err != nil {
			return err
		}
		if !enqueued {
			log.Warn().
				Str("collection", collection).
				Str("guid", string(p.ID)).
				Msg("record exceeds server payload limit, skipping upload")
		}
	}
	if err = queue.Flush(ctx, true); err != nil {
		return err
	}

	log.Debug().
		Str("collection", collection).
		Int("downloaded", len(items)).
		Int("uploaded", len(handler.SuccessfulIDs)).
		Int("failed", len(handler.FailedIDs)).
		Msg("collection sync finished")
	return e.SetUploaded(ctx, handler.ModifiedTimestamp, handler.SuccessfulIDs)
}
