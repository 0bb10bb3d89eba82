package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/weavesync/weavesync/internal/config"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/engine"
	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/internal/store"
	"github.com/weavesync/weavesync/internal/workers"
	"github.com/weavesync/weavesync/models"
)

// App wires the local store, collection engines, and the background sync
// worker into a single process lifecycle.
type App struct {
	log        *logger.Logger
	store      store.Store
	workers    *workers.Workers
	syncWorker *workers.SyncWorker
}

// NewApp builds the client runtime from a validated config: it opens the
// local database, derives the root key bundle, and registers one collection
// engine per supported record kind.
func NewApp(cfg *config.ClientConfig, log *logger.Logger) (*App, error) {
	root, err := rootKeyBundle(cfg.App.SyncKey)
	if err != nil {
		return nil, fmt.Errorf("derive root key: %w", err)
	}

	st, err := store.NewStore(context.Background(), cfg.Storage.DB.DSN, log)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	engines := []engine.Syncer{
		engine.NewCollectionEngine[models.Password](st, engine.DefaultRecordImpl[models.Password]{Name: "passwords"}, log),
		engine.NewCollectionEngine[models.Bookmark](st, engine.DefaultRecordImpl[models.Bookmark]{Name: "bookmarks"}, log),
		engine.NewCollectionEngine[models.HistoryEntry](st, engine.DefaultRecordImpl[models.HistoryEntry]{Name: "history"}, log),
		engine.NewCollectionEngine[models.CreditCard](st, engine.DefaultRecordImpl[models.CreditCard]{Name: "creditcards"}, log),
		engine.NewCollectionEngine[models.Address](st, engine.DefaultRecordImpl[models.Address]{Name: "addresses"}, log),
		engine.NewCollectionEngine[models.Tab](st, engine.DefaultRecordImpl[models.Tab]{Name: "tabs"}, log),
	}

	init := engine.ClientInit{
		BaseURL:       cfg.Adapter.BaseURL,
		Authorization: cfg.Adapter.Authorization,
		Timeout:       cfg.Adapter.RequestTimeout,
	}

	manager := engine.NewSyncManager(log)
	syncWorker := workers.NewSyncWorker(manager, engines, init, root, cfg.Workers.SyncInterval, log)

	return &App{
		log:        log,
		store:      st,
		workers:    workers.NewWorkers(syncWorker),
		syncWorker: syncWorker,
	}, nil
}

// Run starts the background workers and blocks until the process receives
// SIGINT or SIGTERM, then shuts down in order: workers first, store last.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.workers.Run()
	a.log.Info().Msg("client started")

	<-ctx.Done()
	a.log.Info().Msg("shutting down")

	a.syncWorker.Stop()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close local storage: %w", err)
	}

	return nil
}

// rootKeyBundle decodes the configured base64url key material and derives
// the root bundle: a 32-byte value is treated as the account master key, a
// 64-byte value as kSync itself.
func rootKeyBundle(syncKey string) (*crypto.KeyBundle, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(syncKey, "="))
	if err != nil {
		return nil, fmt.Errorf("decode sync key: %w", err)
	}

	switch len(raw) {
	case 32:
		return crypto.DeriveFromMasterKey(raw)
	case 64:
		return crypto.FromSyncKeyBytes(raw)
	default:
		return nil, fmt.Errorf("sync key is %d bytes, want 32 or 64", len(raw))
	}
}
