// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	"github.com/weavesync/weavesync/internal/logger"
)

type localStore struct {
	db *DB
}

// NewStore opens the sync database at dsn (":memory:" for tests) and runs
// pending migrations.
func NewStore(ctx context.Context, dsn string, log *logger.Logger) (Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := NewConnectSQLite(ctx, dsn, log)
	if err != nil {
		return nil, err
	}
	if err = db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sync database: %w", err)
	}
	return &localStore{db: db}, nil
}

// NewStoreWithDB wraps an already opened and migrated connection. Tests use
// it with sqlmock.
func NewStoreWithDB(db *DB) Store {
	return &localStore{db: db}
}

func (s *localStore) InTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	log := logger.FromContext(ctx)

	inner, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "localStore.InTransaction").Msg("failed to begin transaction")
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}

	tx := &Tx{db: s.db, tx: inner}
	defer tx.rollback()

	if err = fn(tx); err != nil {
		return err
	}

	if commitErr := tx.commit(); commitErr != nil {
		log.Err(commitErr).Str("func", "localStore.InTransaction").Msg("failed to commit transaction")
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, commitErr)
	}
	return nil
}

func (s *localStore) Close() error {
	return s.db.Close()
}
