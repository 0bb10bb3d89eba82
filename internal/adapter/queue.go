// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/models"
)

// BatchPoster is the single POST the queue needs from the transport.
// StorageClient satisfies it; tests substitute their own.
type BatchPoster interface {
	Post(ctx context.Context, collection string, body []byte, xius models.ServerTimestamp, batch *string, commit bool) (PostResponse, error)
}

// PostResponseHandler consumes each POST's outcome. midBatch is true while
// the batch is still open, meaning the server has not yet durably accepted
// the records.
type PostResponseHandler interface {
	OnResponse(resp PostResponse, midBatch bool) error
}

// limitTracker accumulates bytes and record counts against a pair of caps.
type limitTracker struct {
	maxBytes   int
	maxRecords int
	curBytes   int
	curRecords int
}

func newLimitTracker(maxBytes, maxRecords int) limitTracker {
	return limitTracker{maxBytes: maxBytes, maxRecords: maxRecords}
}

func (l *limitTracker) clear() {
	l.curBytes = 0
	l.curRecords = 0
}

func (l *limitTracker) canAddRecord(payloadSize int) bool {
	return l.curRecords < l.maxRecords && l.curBytes+payloadSize <= l.maxBytes
}

func (l *limitTracker) canNeverAdd(payloadSize int) bool {
	return payloadSize >= l.maxBytes
}

func (l *limitTracker) recordAdded(payloadSize int) {
	l.curBytes += payloadSize
	l.curRecords++
}

// batch upload state
type batchState int

const (
	// the server ignored our batch=true, records commit per POST
	batchUnsupported batchState = iota
	// no batch open yet; the next flush sends batch=true
	batchNone
	// a batch is open under batchID
	batchInProgress
)

// PostQueue packs encrypted envelopes into POSTs that respect the server's
// size limits, opening a batch when the server supports it so the whole
// upload commits atomically. Records are serialized into the request body
// as they are enqueued; a record that no longer fits triggers an implicit
// flush first.
type PostQueue struct {
	poster     BatchPoster
	handler    PostResponseHandler
	config     InfoConfiguration
	collection string

	// X-If-Unmodified-Since for every POST; advanced by commits.
	lastModified models.ServerTimestamp

	queued      []byte
	postLimits  limitTracker
	batchLimits limitTracker
	batch       batchState
	batchID     string
}

func NewPostQueue(poster BatchPoster, config InfoConfiguration, collection string, lastModified models.ServerTimestamp, handler PostResponseHandler) *PostQueue {
	return &PostQueue{
		poster:       poster,
		handler:      handler,
		config:       config,
		collection:   collection,
		lastModified: lastModified,
		postLimits:   newLimitTracker(config.MaxPostBytes, config.MaxPostRecords),
		batchLimits:  newLimitTracker(config.MaxTotalBytes, config.MaxTotalRecords),
		batch:        batchNone,
	}
}

// LastModified is the timestamp guarding the next POST. After a successful
// commit it is the server time of that commit.
func (q *PostQueue) LastModified() models.ServerTimestamp {
	return q.lastModified
}

// Enqueue adds one envelope to the outgoing request, flushing first if the
// envelope would overflow the current POST. Returns false, with nothing
// queued, for a record that can never be uploaded within the server's
// limits; the caller skips it and carries on.
func (q *PostQueue) Enqueue(ctx context.Context, env bso.Envelope) (bool, error) {
	payloadLen := len(env.Payload)
	if payloadLen > q.config.MaxRecordPayloadBytes ||
		q.postLimits.canNeverAdd(payloadLen) ||
		q.batchLimits.canNeverAdd(payloadLen) {
		return false, nil
	}

	record, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("marshal outgoing record %s: %w", env.ID, err)
	}

	// The envelope overhead counts against max_request_bytes too: a record
	// whose serialized form alone fills a request can never be posted,
	// even from an empty queue.
	if len(record)+2 >= q.config.MaxRequestBytes {
		return false, nil
	}

	// +2 for the surrounding "[" (or ",") and the closing "]".
	fitsRequest := len(q.queued)+len(record)+2 < q.config.MaxRequestBytes
	if len(q.queued) > 0 && (!fitsRequest || !q.postLimits.canAddRecord(payloadLen)) {
		// Commit if the record would not even fit in the batch.
		wantCommit := !q.batchLimits.canAddRecord(payloadLen)
		if err := q.Flush(ctx, wantCommit); err != nil {
			return false, err
		}
	}

	if len(q.queued) == 0 {
		q.queued = append(q.queued, '[')
	} else {
		q.queued = append(q.queued, ',')
	}
	q.queued = append(q.queued, record...)

	q.postLimits.recordAdded(payloadLen)
	q.batchLimits.recordAdded(payloadLen)
	return true, nil
}

// Flush sends the queued records. With wantCommit it also closes the open
// batch, making the server apply everything uploaded since it opened.
func (q *PostQueue) Flush(ctx context.Context, wantCommit bool) error {
	inBatch := q.batch == batchInProgress
	if len(q.queued) == 0 && !(wantCommit && inBatch) {
		return nil
	}

	body := q.queued
	if len(body) == 0 {
		body = []byte("[")
	}
	body = append(body, ']')

	var batchParam *string
	switch q.batch {
	case batchUnsupported:
		batchParam = nil
	case batchNone:
		v := "true"
		batchParam = &v
	case batchInProgress:
		batchParam = &q.batchID
	}
	commit := wantCommit && batchParam != nil

	resp, err := q.poster.Post(ctx, q.collection, body, q.lastModified, batchParam, commit)
	if err != nil {
		return err
	}

	q.queued = q.queued[:0]
	q.postLimits.clear()

	if !resp.Ok() {
		return q.handler.OnResponse(resp, false)
	}

	if commit || q.batch == batchUnsupported {
		// Records are now live; subsequent POSTs must be conditional on
		// the new collection timestamp.
		q.lastModified = resp.LastModified
	}

	switch {
	case commit:
		q.batch = batchNone
		q.batchID = ""
		q.batchLimits.clear()
		return q.handler.OnResponse(resp, false)
	case resp.Result.Batch != nil:
		q.batch = batchInProgress
		q.batchID = *resp.Result.Batch
		return q.handler.OnResponse(resp, true)
	default:
		// The server never echoed a batch id: no batch semantics.
		q.batch = batchUnsupported
		q.batchLimits.clear()
		return q.handler.OnResponse(resp, false)
	}
}

// NormalResponseHandler is the standard [PostResponseHandler]: it tracks
// which ids the server accepted and which it rejected. Ids acknowledged
// mid-batch stay pending until the commit lands, since a 412 would discard
// them. With allowFailed false, any rejected record fails the whole upload.
type NormalResponseHandler struct {
	SuccessfulIDs []models.Guid
	FailedIDs     []models.Guid
	// server time of the last committed POST
	ModifiedTimestamp models.ServerTimestamp

	pendingSuccess []models.Guid
	pendingFailed  []models.Guid
	allowFailed    bool
}

func NewNormalResponseHandler(allowFailed bool) *NormalResponseHandler {
	return &NormalResponseHandler{allowFailed: allowFailed}
}

func (h *NormalResponseHandler) OnResponse(resp PostResponse, midBatch bool) error {
	if !resp.Ok() {
		if resp.Status == http.StatusPreconditionFailed {
			return ErrBatchInterrupted
		}
		return &StorageError{Code: resp.Status, Route: "storage POST"}
	}

	failed := make([]models.Guid, 0, len(resp.Result.Failed))
	for id := range resp.Result.Failed {
		failed = append(failed, id)
	}

	if midBatch {
		h.pendingSuccess = append(h.pendingSuccess, resp.Result.Success...)
		h.pendingFailed = append(h.pendingFailed, failed...)
		return nil
	}

	h.ModifiedTimestamp = resp.LastModified
	h.SuccessfulIDs = append(h.SuccessfulIDs, h.pendingSuccess...)
	h.SuccessfulIDs = append(h.SuccessfulIDs, resp.Result.Success...)
	h.pendingSuccess = nil
	h.FailedIDs = append(h.FailedIDs, h.pendingFailed...)
	h.FailedIDs = append(h.FailedIDs, failed...)
	h.pendingFailed = nil

	if !h.allowFailed && len(h.FailedIDs) > 0 {
		return fmt.Errorf("%d records: %w", len(h.FailedIDs), ErrRecordUploadFailed)
	}
	return nil
}
