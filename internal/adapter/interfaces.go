// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides the transport layer for a Sync 1.5 storage
// server.
//
// The primary abstraction is [StorageClient], which decouples the engines
// from HTTP details. The package ships a resty-based implementation
// ([NewStorageClient]) plus the upload machinery around it: the
// [CollectionRequest] builder, and [PostQueue] which packs encrypted
// records into size-limited POSTs and drives the server's batch protocol.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapStorageError so callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrBatchInterrupted] for 412, [ErrUnauthorized]
// for 401).
package adapter

import (
	"context"
	"time"

	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/storage_client_mock.go -package=mock

// StorageClient defines RPC-style access to a Sync 1.5 storage node.
// Implementations are responsible for authentication headers, optimistic
// concurrency via X-If-Unmodified-Since, and mapping transport-level
// errors to the sentinel values defined in this package.
type StorageClient interface {
	// FetchInfoCollections returns the last-modified timestamp of every
	// collection the account has.
	FetchInfoCollections(ctx context.Context) (map[string]models.ServerTimestamp, error)

	// FetchInfoConfiguration returns the server's request size limits.
	// Servers without the endpoint yield DefaultInfoConfiguration.
	FetchInfoConfiguration(ctx context.Context) (InfoConfiguration, error)

	// FetchMetaGlobal downloads and parses the cleartext meta/global
	// record, returning its server timestamp alongside. Returns
	// [ErrNotFound] on a fresh server.
	FetchMetaGlobal(ctx context.Context) (MetaGlobalRecord, models.ServerTimestamp, error)

	// PutMetaGlobal uploads meta/global. A non-zero xius makes the write
	// conditional; a concurrent change yields [ErrBatchInterrupted].
	PutMetaGlobal(ctx context.Context, global MetaGlobalRecord, xius models.ServerTimestamp) (models.ServerTimestamp, error)

	// FetchCryptoKeys downloads the crypto/keys envelope still encrypted;
	// the keys package unwraps it. Returns [ErrNotFound] when absent.
	FetchCryptoKeys(ctx context.Context) (bso.Envelope, error)

	// PutCryptoKeys uploads a wrapped crypto/keys envelope, conditional on
	// xius when non-zero.
	PutCryptoKeys(ctx context.Context, env bso.Envelope, xius models.ServerTimestamp) (models.ServerTimestamp, error)

	// FetchCollection runs a collection GET and returns the envelopes plus
	// the collection's X-Last-Modified timestamp.
	FetchCollection(ctx context.Context, req CollectionRequest) ([]bso.Envelope, models.ServerTimestamp, error)

	// Post uploads a JSON array of envelopes to a collection. batch and
	// commit drive the server's atomic batch protocol; xius guards against
	// concurrent writers. Non-2xx statuses are returned in the response,
	// not as an error, so the queue can account for partial failures.
	Post(ctx context.Context, collection string, body []byte, xius models.ServerTimestamp, batch *string, commit bool) (PostResponse, error)

	// DeleteCollection removes every record in one collection.
	DeleteCollection(ctx context.Context, collection string) error

	// WipeServer deletes all server-side data for the account.
	WipeServer(ctx context.Context) error

	// BackoffUntil reports the instant the server asked us to stay away
	// until, or the zero time when no backoff is in effect.
	BackoffUntil() time.Time
}
