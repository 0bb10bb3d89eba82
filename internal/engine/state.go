// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package engine reconciles downloaded records against local state.
//
// The heart of the package is a small state machine: every staged incoming
// record is classified against the local copy ([IncomingState]), planned
// into exactly one [IncomingAction] by [PlanIncoming], and the action is
// applied in the same transaction by [ApplyIncomingAction]. The generic
// [CollectionEngine] drives the full per-collection pass (download, stage,
// plan, apply, upload) and [SyncManager.SyncAll] orchestrates several
// engines against one storage account.
package engine

import (
	"github.com/weavesync/weavesync/models"
)

// IncomingRecord is one downloaded change: either a full record or a
// tombstone carrying only the identity of a deleted record.
type IncomingRecord[R models.SyncRecord[R]] struct {
	Guid   models.Guid
	Record *R // nil means tombstone
}

func IncomingFromRecord[R models.SyncRecord[R]](record R) IncomingRecord[R] {
	return IncomingRecord[R]{Guid: record.ID(), Record: &record}
}

func IncomingTombstone[R models.SyncRecord[R]](guid models.Guid) IncomingRecord[R] {
	return IncomingRecord[R]{Guid: guid}
}

func (i IncomingRecord[R]) IsTombstone() bool {
	return i.Record == nil
}

type localState int

const (
	localMissing localState = iota
	localUnmodified
	localModified
	localTombstone
)

// LocalRecordInfo is what the local database knows about an incoming guid:
// a record untouched since the last sync, a record with pending local
// changes, a local deletion, or nothing at all.
type LocalRecordInfo[R models.SyncRecord[R]] struct {
	state  localState
	record *R
}

func LocalMissing[R models.SyncRecord[R]]() LocalRecordInfo[R] {
	return LocalRecordInfo[R]{state: localMissing}
}

func LocalUnmodified[R models.SyncRecord[R]](record R) LocalRecordInfo[R] {
	return LocalRecordInfo[R]{state: localUnmodified, record: &record}
}

func LocalModified[R models.SyncRecord[R]](record R) LocalRecordInfo[R] {
	return LocalRecordInfo[R]{state: localModified, record: &record}
}

func LocalTombstone[R models.SyncRecord[R]]() LocalRecordInfo[R] {
	return LocalRecordInfo[R]{state: localTombstone}
}

// IncomingState is the full input to the planner for one record: the
// downloaded change, the local side, and the mirror baseline (the last
// version both sides agreed on), when one exists.
type IncomingState[R models.SyncRecord[R]] struct {
	Incoming IncomingRecord[R]
	Local    LocalRecordInfo[R]
	Mirror   *R
}

// ActionKind enumerates the terminal outcomes of planning one incoming
// record.
type ActionKind int

const (
	// ActionDoNothing: the incoming change is already reflected locally.
	ActionDoNothing ActionKind = iota

	// ActionInsert: no local row exists; insert the incoming record.
	ActionInsert

	// ActionUpdate: replace the local row with Record. WasMerged reports
	// whether Record came out of a three-way merge and still carries
	// pending local changes to upload.
	ActionUpdate

	// ActionUpdateLocalGuid: a content-duplicate local row created under a
	// different guid adopts the incoming guid, then takes the incoming
	// record's content.
	ActionUpdateLocalGuid

	// ActionFork: both sides edited the same field. The local variant is
	// cloned under a fresh guid (Forked) for re-upload, and the incoming
	// record is accepted under the original guid.
	ActionFork

	// ActionDeleteLocalRecord: the record was deleted remotely and is
	// unchanged locally; drop the local row without leaving a tombstone.
	ActionDeleteLocalRecord

	// ActionResurrectLocalTombstone: the record was deleted locally but
	// edited remotely; the remote edit wins and the tombstone is dropped.
	ActionResurrectLocalTombstone

	// ActionResurrectRemoteTombstone: the record was deleted remotely but
	// edited locally; the local edit wins and the record is scheduled for
	// re-upload.
	ActionResurrectRemoteTombstone
)

func (k ActionKind) String() string {
	switch k {
	case ActionDoNothing:
		return "DoNothing"
	case ActionInsert:
		return "Insert"
	case ActionUpdate:
		return "Update"
	case ActionUpdateLocalGuid:
		return "UpdateLocalGuid"
	case ActionFork:
		return "Fork"
	case ActionDeleteLocalRecord:
		return "DeleteLocalRecord"
	case ActionResurrectLocalTombstone:
		return "ResurrectLocalTombstone"
	case ActionResurrectRemoteTombstone:
		return "ResurrectRemoteTombstone"
	default:
		return "Unknown"
	}
}

// IncomingAction is the planner's verdict for one incoming record. Which
// fields are meaningful depends on Kind; see the [ActionKind] constants.
type IncomingAction[R models.SyncRecord[R]] struct {
	Kind ActionKind

	// Guid identifies the local row for DeleteLocalRecord.
	Guid models.Guid

	// Record is the row to write for Insert, Update, UpdateLocalGuid,
	// Fork (the incoming side) and both resurrections.
	Record R

	// Forked is the fresh-guid clone of the local data for Fork.
	Forked R

	// DupeGuid is the guid of the local duplicate for UpdateLocalGuid.
	DupeGuid models.Guid

	// WasMerged is set on Update when Record came out of a merge.
	WasMerged bool
}

func DoNothingAction[R models.SyncRecord[R]]() IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionDoNothing}
}

func InsertAction[R models.SyncRecord[R]](record R) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionInsert, Record: record}
}

func UpdateAction[R models.SyncRecord[R]](record R, wasMerged bool) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionUpdate, Record: record, WasMerged: wasMerged}
}

func UpdateLocalGuidAction[R models.SyncRecord[R]](dupeGuid models.Guid, record R) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionUpdateLocalGuid, DupeGuid: dupeGuid, Record: record}
}

func ForkAction[R models.SyncRecord[R]](forked, incoming R) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionFork, Forked: forked, Record: incoming}
}

func DeleteLocalRecordAction[R models.SyncRecord[R]](guid models.Guid) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionDeleteLocalRecord, Guid: guid}
}

func ResurrectLocalTombstoneAction[R models.SyncRecord[R]](record R) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionResurrectLocalTombstone, Record: record}
}

func ResurrectRemoteTombstoneAction[R models.SyncRecord[R]](record R) IncomingAction[R] {
	return IncomingAction[R]{Kind: ActionResurrectRemoteTombstone, Record: record}
}
