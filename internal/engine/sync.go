// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/weavesync/weavesync/internal/adapter"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/keys"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/models"
)

// Syncer is the collection-engine surface the orchestrator drives. Every
// CollectionEngine[R] satisfies it regardless of its record kind.
type Syncer interface {
	Collection() string
	LastSync(ctx context.Context) (models.ServerTimestamp, error)
	EnsureCurrentSyncID(ctx context.Context, globalSyncID, engineSyncID string) error
	Sync(ctx context.Context, client adapter.StorageClient, key *crypto.KeyBundle, config adapter.InfoConfiguration, serverModified models.ServerTimestamp, scope interrupt.Interruptee) error
}

// ClientInit carries everything needed to talk to the storage node. It is
// comparable: SyncAll rebuilds its HTTP client whenever the value changes,
// e.g. after a token refresh moved the account to another node.
type ClientInit struct {
	// BaseURL is the storage node endpoint from the token server.
	BaseURL string

	// Authorization is the full Authorization header value.
	Authorization string

	// Timeout bounds each HTTP request; zero picks the client default.
	Timeout time.Duration
}

// ServiceStatus classifies how a whole sync run went, for callers that
// schedule retries and surface account state.
type ServiceStatus int

const (
	StatusOK ServiceStatus = iota
	StatusNetworkError
	StatusAuthError
	StatusInterrupted
	StatusOtherError
)

func (s ServiceStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNetworkError:
		return "network-error"
	case StatusAuthError:
		return "auth-error"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "other-error"
	}
}

// SyncResult is the outcome of one SyncAll run. Engines fail
// independently: a nil entry in EngineResults is a synced collection, a
// non-nil one failed and will be retried next cycle.
type SyncResult struct {
	ServiceStatus ServiceStatus
	EngineResults map[string]error

	// NextSyncAfter is non-zero when the server asked for backoff.
	NextSyncAfter time.Time
}

// clientInfo is the per-session state derived from one ClientInit value.
type clientInfo struct {
	init   ClientInit
	client adapter.StorageClient
	config adapter.InfoConfiguration
}

// SyncManager orchestrates full sync runs across several collection
// engines sharing one storage account.
type SyncManager struct {
	log *logger.Logger

	// newClient builds the transport for a ClientInit; tests swap it.
	newClient func(init ClientInit, log *logger.Logger) (adapter.StorageClient, error)

	mu   sync.Mutex
	info *clientInfo
}

func NewSyncManager(log *logger.Logger) *SyncManager {
	if log == nil {
		log = logger.Nop()
	}
	return &SyncManager{
		log: log,
		newClient: func(init ClientInit, log *logger.Logger) (adapter.StorageClient, error) {
			return adapter.NewStorageClient(adapter.ClientConfig{
				BaseURL: init.BaseURL,
				Timeout: init.Timeout,
				Tokens:  tokenProvider(init.Authorization),
			}, log)
		},
	}
}

// tokenProvider picks the credential handling for the configured
// Authorization value. A value with a scheme ("Bearer eyJ...") is sent
// verbatim; a bare JWT gets the Bearer prefix plus local expiry
// tracking, so a lapsed token surfaces as an auth error instead of a
// string of 401s.
func tokenProvider(authorization string) adapter.TokenProvider {
	if strings.ContainsRune(authorization, ' ') {
		return adapter.NewStaticTokenProvider(authorization)
	}
	return adapter.NewBearerTokenProvider(func(context.Context) (string, error) {
		return authorization, nil
	})
}

// SyncAll runs one full sync: global setup (meta/global and crypto/keys,
// creating both on a fresh server), then each engine in turn. Engines
// listed as declined in meta/global are skipped, as are collections the
// server reports unchanged since their last sync. Failures are collected
// per engine; one broken collection does not stop the rest.
func (m *SyncManager) SyncAll(ctx context.Context, engines []Syncer, init ClientInit, root *crypto.KeyBundle, scope interrupt.Interruptee) SyncResult {
	if scope == nil {
		scope = interrupt.NeverInterrupts
	}
	result := SyncResult{EngineResults: make(map[string]error, len(engines))}

	info, err := m.clientInfo(ctx, init)
	if err != nil {
		result.ServiceStatus = classifyError(err)
		return result
	}

	global, collectionKeys, err := m.setupGlobalState(ctx, info, engines, root, scope)
	if err != nil {
		m.log.Error().Err(err).
			Str("func", "SyncManager.SyncAll").
			Msg("global sync setup failed")
		result.ServiceStatus = classifyError(err)
		result.NextSyncAfter = info.client.BackoffUntil()
		return result
	}

	timestamps, err := info.client.FetchInfoCollections(ctx)
	if err != nil {
		result.ServiceStatus = classifyError(err)
		result.NextSyncAfter = info.client.BackoffUntil()
		return result
	}

	declined := make(map[string]bool, len(global.Declined))
	for _, name := range global.Declined {
		declined[name] = true
	}

	for _, eng := range engines {
		name := eng.Collection()
		if err = scope.ErrIfInterrupted(); err != nil {
			result.EngineResults[name] = err
			break
		}
		if declined[name] {
			m.log.Debug().
				Str("func", "SyncManager.SyncAll").
				Str("collection", name).
				Msg("engine declined in meta/global, skipping")
			continue
		}

		result.EngineResults[name] = m.syncOne(ctx, info, eng, global, collectionKeys, timestamps[name], scope)
	}

	result.ServiceStatus = overallStatus(result.EngineResults)
	result.NextSyncAfter = info.client.BackoffUntil()
	return result
}

func (m *SyncManager) syncOne(ctx context.Context, info *clientInfo, eng Syncer, global *adapter.MetaGlobalRecord, collectionKeys *keys.CollectionKeys, serverModified models.ServerTimestamp, scope interrupt.Interruptee) error {
	name := eng.Collection()
	engineMeta, ok := global.Engines[name]
	if !ok {
		// setupGlobalState registers every engine; a miss here is a bug.
		return ErrUnexpectedState
	}
	if err := eng.EnsureCurrentSyncID(ctx, global.SyncID, engineMeta.SyncID); err != nil {
		return err
	}
	err := eng.Sync(ctx, info.client, collectionKeys.KeyFor(name), info.config, serverModified, scope)
	if err != nil {
		m.log.Warn().Err(err).
			Str("func", "SyncManager.syncOne").
			Str("collection", name).
			Msg("collection sync failed")
	}
	return err
}

// clientInfo returns the cached session state, rebuilding it when the
// ClientInit value changed since the previous run.
func (m *SyncManager) clientInfo(ctx context.Context, init ClientInit) (*clientInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.info != nil && m.info.init == init {
		return m.info, nil
	}

	client, err := m.newClient(init, m.log)
	if err != nil {
		return nil, err
	}
	config, err := client.FetchInfoConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	m.info = &clientInfo{init: init, client: client, config: config}
	return m.info, nil
}

// setupGlobalState fetches meta/global and crypto/keys, performing a
// fresh start (wipe, new sync ids, new keys) when the server is empty or
// carries an unsupported storage version. It also registers any engine
// missing from meta/global.
func (m *SyncManager) setupGlobalState(ctx context.Context, info *clientInfo, engines []Syncer, root *crypto.KeyBundle, scope interrupt.Interruptee) (*adapter.MetaGlobalRecord, *keys.CollectionKeys, error) {
	if err := scope.ErrIfInterrupted(); err != nil {
		return nil, nil, err
	}

	global, globalTS, err := info.client.FetchMetaGlobal(ctx)
	switch {
	case errors.Is(err, adapter.ErrNotFound):
		g, collectionKeys, err := m.freshStart(ctx, info, engines, root)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrNoMetaGlobal, err)
		}
		return g, collectionKeys, nil
	case err != nil:
		return nil, nil, err
	case global.StorageVersion < adapter.StorageVersion5:
		// An outdated client owns the server data; replace it.
		return m.freshStart(ctx, info, engines, root)
	case global.StorageVersion > adapter.StorageVersion5:
		return nil, nil, ErrStorageVersion
	}

	changed := registerEngines(&global, engines)
	upgraded, err := m.upgradeEngines(ctx, info, &global, engines)
	if err != nil {
		return nil, nil, err
	}
	if changed || upgraded {
		if globalTS, err = info.client.PutMetaGlobal(ctx, global, globalTS); err != nil {
			return nil, nil, err
		}
	}

	env, err := info.client.FetchCryptoKeys(ctx)
	if errors.Is(err, adapter.ErrNotFound) {
		collectionKeys, err := m.uploadFreshKeys(ctx, info, root)
		if err != nil {
			return nil, nil, err
		}
		return &global, collectionKeys, nil
	}
	if err != nil {
		return nil, nil, err
	}
	collectionKeys, err := keys.UnwrapCryptoKeys(env, root)
	if err != nil {
		return nil, nil, err
	}
	return &global, collectionKeys, nil
}

// freshStart initialises an empty or unusable server: everything is
// wiped, a new meta/global with fresh sync ids is uploaded, and new
// randomly generated collection keys are wrapped under the root key.
func (m *SyncManager) freshStart(ctx context.Context, info *clientInfo, engines []Syncer, root *crypto.KeyBundle) (*adapter.MetaGlobalRecord, *keys.CollectionKeys, error) {
	m.log.Info().
		Str("func", "SyncManager.freshStart").
		Msg("initialising fresh server storage")

	if err := info.client.WipeServer(ctx); err != nil {
		return nil, nil, err
	}

	global := adapter.MetaGlobalRecord{
		SyncID:         string(models.NewGuid()),
		StorageVersion: adapter.StorageVersion5,
		Engines:        make(map[string]adapter.MetaGlobalEngine, len(engines)),
		Declined:       []string{},
	}
	registerEngines(&global, engines)
	if _, err := info.client.PutMetaGlobal(ctx, global, 0); err != nil {
		return nil, nil, err
	}

	collectionKeys, err := m.uploadFreshKeys(ctx, info, root)
	if err != nil {
		return nil, nil, err
	}
	return &global, collectionKeys, nil
}

func (m *SyncManager) uploadFreshKeys(ctx context.Context, info *clientInfo, root *crypto.KeyBundle) (*keys.CollectionKeys, error) {
	collectionKeys, err := keys.NewRandomCollectionKeys()
	if err != nil {
		return nil, err
	}
	env, err := collectionKeys.WrapCryptoKeys(root)
	if err != nil {
		return nil, err
	}
	if _, err = info.client.PutCryptoKeys(ctx, env, 0); err != nil {
		return nil, err
	}
	return collectionKeys, nil
}

// engineFormatVersion is the record format this client reads and writes,
// recorded per engine in meta/global.
const engineFormatVersion = 1

// registerEngines adds a meta/global entry with a fresh sync id for every
// engine the record does not know yet. Reports whether it changed the
// record.
func registerEngines(global *adapter.MetaGlobalRecord, engines []Syncer) bool {
	if global.Engines == nil {
		global.Engines = make(map[string]adapter.MetaGlobalEngine, len(engines))
	}
	changed := false
	for _, eng := range engines {
		name := eng.Collection()
		if _, ok := global.Engines[name]; ok {
			continue
		}
		global.Engines[name] = adapter.MetaGlobalEngine{
			Version: engineFormatVersion,
			SyncID:  string(models.NewGuid()),
		}
		changed = true
	}
	return changed
}

// upgradeEngines wipes the server collection of every engine whose
// meta/global entry predates engineFormatVersion. Records in an older
// format cannot be read anymore, so the collection restarts under a
// fresh sync id and every client re-uploads. Reports whether it changed
// the meta/global record; the caller must re-upload it.
func (m *SyncManager) upgradeEngines(ctx context.Context, info *clientInfo, global *adapter.MetaGlobalRecord, engines []Syncer) (bool, error) {
	changed := false
	for _, eng := range engines {
		name := eng.Collection()
		meta, ok := global.Engines[name]
		if !ok || meta.Version >= engineFormatVersion {
			continue
		}
		m.log.Info().
			Str("func", "SyncManager.upgradeEngines").
			Str("collection", name).
			Int("version", meta.Version).
			Msg("engine format outdated, wiping server collection")
		if err := info.client.DeleteCollection(ctx, name); err != nil {
			return false, err
		}
		global.Engines[name] = adapter.MetaGlobalEngine{
			Version: engineFormatVersion,
			SyncID:  string(models.NewGuid()),
		}
		changed = true
	}
	return changed, nil
}

// classifyError buckets an error into the coarse service status the
// caller's retry policy keys on.
func classifyError(err error) ServiceStatus {
	var urlErr *url.Error
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, interrupt.ErrInterrupted):
		return StatusInterrupted
	case errors.Is(err, adapter.ErrUnauthorized), errors.Is(err, adapter.ErrTokenExpired):
		return StatusAuthError
	case errors.Is(err, crypto.ErrHmacMismatch):
		// Wrong root key: the account needs to re-authenticate.
		return StatusAuthError
	case errors.As(err, &urlErr):
		return StatusNetworkError
	default:
		var storageErr *adapter.StorageError
		if errors.As(err, &storageErr) {
			return StatusNetworkError
		}
		return StatusOtherError
	}
}

// overallStatus reduces per-engine outcomes to one service status, worst
// first: an interruption trumps everything, then auth, then network.
func overallStatus(results map[string]error) ServiceStatus {
	worst := StatusOK
	rank := map[ServiceStatus]int{
		StatusOK:           0,
		StatusOtherError:   1,
		StatusNetworkError: 2,
		StatusAuthError:    3,
		StatusInterrupted:  4,
	}
	for _, err := range results {
		if s := classifyError(err); rank[s] > rank[worst] {
			worst = s
		}
	}
	return worst
}
