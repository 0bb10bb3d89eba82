// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"time"

	"github.com/weavesync/weavesync/models"
)

// MergeResult is the outcome of a three-way merge: either every field
// reconciled into Record, or two devices edited the same field and the
// local side was cloned under a fresh guid.
type MergeResult[R models.SyncRecord[R]] struct {
	Record R
	Forked bool
}

// Merge reconciles a locally modified record against an incoming one using
// the mirror baseline. Field resolution is delegated to the record type's
// MergeWith; on a field conflict the whole record is forked rather than
// assembled per-field out of two unrelated edits.
func Merge[R models.SyncRecord[R]](incoming, local R, mirror *R) MergeResult[R] {
	merged, ok := local.MergeWith(incoming, mirror)
	if !ok {
		return MergeResult[R]{Record: forkRecord(local), Forked: true}
	}
	return MergeResult[R]{Record: merged}
}

// forkRecord clones the local variant under a fresh guid with its change
// counter set to 1 so the next outgoing pass uploads it as a new record.
func forkRecord[R models.SyncRecord[R]](local R) R {
	now := time.Now().UnixMilli()
	meta := local.Meta()
	meta.TimeLastModified = now
	meta.SyncChangeCounter = 1
	return local.WithID(models.NewGuid()).WithMeta(meta)
}
