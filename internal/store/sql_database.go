package store

import (
	"database/sql"

	"github.com/weavesync/weavesync/internal/logger"
	"github.com/weavesync/weavesync/migrations"
)

type DB struct {
	*sql.DB
	logger *logger.Logger
}

func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}
