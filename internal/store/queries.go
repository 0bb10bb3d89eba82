// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/weavesync/weavesync/models"
)

const (
	getRecordQuery = `
		SELECT guid, payload, sync_change_counter
		FROM records
		WHERE collection = ? AND guid = ?;`

	upsertRecordQuery = `
		INSERT INTO records (collection, guid, payload, sync_change_counter)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, guid)
		DO UPDATE SET payload = excluded.payload,
		              sync_change_counter = excluded.sync_change_counter;`

	deleteRecordQuery = `
		DELETE FROM records
		WHERE collection = ? AND guid = ?;`

	changeRecordGuidQuery = `
		UPDATE records SET guid = ?
		WHERE collection = ? AND guid = ?;`

	getTombstoneQuery = `
		SELECT 1 FROM tombstones
		WHERE collection = ? AND guid = ?;`

	insertTombstoneQuery = `
		INSERT OR REPLACE INTO tombstones (collection, guid, time_deleted)
		VALUES (?, ?, ?);`

	deleteTombstoneQuery = `
		DELETE FROM tombstones
		WHERE collection = ? AND guid = ?;`

	getMirrorQuery = `
		SELECT guid, payload, server_modified
		FROM mirror
		WHERE collection = ? AND guid = ?;`

	putMirrorQuery = `
		INSERT INTO mirror (collection, guid, payload, server_modified)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, guid)
		DO UPDATE SET payload = excluded.payload,
		              server_modified = excluded.server_modified;`

	deleteMirrorQuery = `
		DELETE FROM mirror
		WHERE collection = ? AND guid = ?;`

	stageRowQuery = `
		INSERT OR REPLACE INTO staging (collection, guid, payload, server_modified)
		VALUES (?, ?, ?, ?);`

	clearStagingQuery = `
		DELETE FROM staging
		WHERE collection = ?;`

	// Everything reconciliation needs about each staged guid, one row each:
	// the staged incoming record plus the local record, tombstone flag, and
	// mirror if they exist.
	fetchIncomingQuery = `
		SELECT s.guid, s.payload, s.server_modified,
		       r.payload, r.sync_change_counter,
		       t.guid IS NOT NULL,
		       m.payload, m.server_modified
		FROM staging s
		LEFT JOIN records r ON r.collection = s.collection AND r.guid = s.guid
		LEFT JOIN tombstones t ON t.collection = s.collection AND t.guid = s.guid
		LEFT JOIN mirror m ON m.collection = s.collection AND m.guid = s.guid
		WHERE s.collection = ?;`

	mirrorStagedRecordsQuery = `
		INSERT INTO mirror (collection, guid, payload, server_modified)
		SELECT collection, guid, payload, server_modified
		FROM staging
		WHERE collection = ? AND payload IS NOT NULL
		ON CONFLICT (collection, guid)
		DO UPDATE SET payload = excluded.payload,
		              server_modified = excluded.server_modified;`

	mirrorStagedTombstonesQuery = `
		DELETE FROM mirror
		WHERE collection = ?
		  AND guid IN (SELECT guid FROM staging
		               WHERE collection = ? AND payload IS NULL);`

	listRecordsQuery = `
		SELECT guid, payload, sync_change_counter
		FROM records
		WHERE collection = ?;`

	resetCountersQuery = `
		UPDATE records
		SET sync_change_counter = MAX(1, sync_change_counter)
		WHERE collection = ?;`

	outgoingRecordsQuery = `
		SELECT guid, payload, sync_change_counter
		FROM records
		WHERE collection = ? AND sync_change_counter > 0;`

	outgoingTombstonesQuery = `
		SELECT guid FROM tombstones
		WHERE collection = ?;`

	settleRecordCounterQuery = `
		UPDATE records
		SET sync_change_counter = MAX(0, sync_change_counter - ?)
		WHERE collection = ? AND guid = ?;`

	getMetaQuery = `
		SELECT value FROM meta WHERE key = ?;`

	putMetaQuery = `
		INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?);`

	deleteMetaQuery = `
		DELETE FROM meta WHERE key = ?;`
)

// buildDeleteGuidsQuery deletes rows matching any of the guids from one of
// the per-collection tables. squirrel handles the IN placeholder expansion.
func buildDeleteGuidsQuery(table, collection string, guids []models.Guid) (string, []any, error) {
	ids := make([]string, len(guids))
	for i, g := range guids {
		ids[i] = string(g)
	}
	return sq.Delete(table).
		Where(sq.Eq{"collection": collection}).
		Where(sq.Eq{"guid": ids}).
		ToSql()
}

func sqDeleteCollection(table, collection string) (string, []any, error) {
	return sq.Delete(table).Where(sq.Eq{"collection": collection}).ToSql()
}

// buildGetRecordsQuery fetches a batch of records by guid.
func buildGetRecordsQuery(collection string, guids []models.Guid) (string, []any, error) {
	ids := make([]string, len(guids))
	for i, g := range guids {
		ids[i] = string(g)
	}
	return sq.Select("guid", "payload", "sync_change_counter").
		From("records").
		Where(sq.Eq{"collection": collection}).
		Where(sq.Eq{"guid": ids}).
		ToSql()
}
