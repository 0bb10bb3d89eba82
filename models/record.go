// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package models holds the data types shared by every layer of the sync
// engine: record identifiers, server timestamps, record metadata, and the
// concrete record kinds (passwords, credit cards, addresses, bookmarks,
// history entries, tabs).
//
// Record types are plain values. Mutation happens through the With* methods
// so the reconciliation engine can stay generic over value types without
// pointer gymnastics.
package models

// SyncRecord is the capability set the reconciliation engine requires from
// a concrete record kind. The type parameter is the implementing type
// itself (the usual self-referential constraint), so WithID and friends
// return the concrete type rather than an interface.
type SyncRecord[R any] interface {
	// ID returns the record's Guid identity.
	ID() Guid

	// Meta returns the record's metadata block by value.
	Meta() Metadata

	// WithID returns a copy of the record carrying the given Guid.
	WithID(Guid) R

	// WithMeta returns a copy of the record carrying the given metadata.
	WithMeta(Metadata) R

	// ContentEquals reports whether the two records hold the same
	// user-visible content, ignoring identity and metadata. Used for
	// duplicate detection when an incoming Guid has no local row.
	ContentEquals(R) bool

	// MergeWith performs the per-field three-way merge of the receiver
	// (the local copy) against incoming, using mirror as the baseline.
	// It returns (merged, true) when every field reconciles, or
	// (zero, false) when two fields changed to conflicting values and
	// the whole record must be forked instead.
	MergeWith(incoming R, mirror *R) (R, bool)
}

// MergeField resolves a single field of a three-way merge.
//
// If the incoming value is unchanged from the mirror baseline the local
// value wins (a local edit must not be clobbered by an unchanged remote);
// if the local value is unchanged the incoming one wins; if both sides
// changed to the same value either works. Both sides changing to different
// values is a conflict: ok is false and the caller must fork the record
// rather than resolve further fields, so unrelated edits from two devices
// never get stitched into a record neither device ever saw.
//
// A nil mirror means the record has never been synced; the local side is
// then treated as the baseline.
func MergeField[F comparable](incoming, local F, mirror *F) (value F, ok bool) {
	var localSame, incomingSame bool
	if mirror != nil {
		localSame = *mirror == local
		incomingSame = *mirror == incoming
	} else {
		localSame = true
		incomingSame = local == incoming
	}

	switch {
	case localSame && !incomingSame:
		return incoming, true
	case incomingSame || local == incoming:
		return local, true
	default:
		var zero F
		return zero, false
	}
}
