// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import (
	"context"
	"fmt"

	"github.com/weavesync/weavesync/models"
)

// DupeFinder looks for a local record holding the same user-visible
// content as incoming under a different guid. A nil finder disables
// duplicate detection.
type DupeFinder[R models.SyncRecord[R]] func(ctx context.Context, incoming R) (*R, error)

// PlanIncoming maps one incoming state to its terminal action. It is total
// over every representable (incoming kind, local kind) combination; the
// only failure modes are a duplicate lookup error or a state the schema
// cannot actually produce, reported as [ErrUnexpectedState].
//
// The one load-bearing asymmetry is that edits beat deletes: a tombstone
// never wins against a copy that carries pending local changes, and a
// locally deleted record is resurrected by a remote edit.
func PlanIncoming[R models.SyncRecord[R]](ctx context.Context, state IncomingState[R], findDupe DupeFinder[R]) (IncomingAction[R], error) {
	if state.Incoming.IsTombstone() {
		return planIncomingTombstone(state)
	}

	incoming := *state.Incoming.Record
	switch state.Local.state {
	case localUnmodified:
		return UpdateAction(incoming, false), nil
	case localModified:
		result := Merge(incoming, *state.Local.record, state.Mirror)
		if result.Forked {
			return ForkAction(result.Record, incoming), nil
		}
		return UpdateAction(result.Record, true), nil
	case localTombstone:
		return ResurrectLocalTombstoneAction(incoming), nil
	case localMissing:
		if findDupe == nil {
			return InsertAction(incoming), nil
		}
		dupe, err := findDupe(ctx, incoming)
		if err != nil {
			return DoNothingAction[R](), err
		}
		if dupe != nil {
			return UpdateLocalGuidAction((*dupe).ID(), incoming), nil
		}
		return InsertAction(incoming), nil
	default:
		return DoNothingAction[R](), fmt.Errorf("%w: incoming record, local state %d", ErrUnexpectedState, state.Local.state)
	}
}

func planIncomingTombstone[R models.SyncRecord[R]](state IncomingState[R]) (IncomingAction[R], error) {
	switch state.Local.state {
	case localUnmodified:
		return DeleteLocalRecordAction[R](state.Incoming.Guid), nil
	case localModified:
		return ResurrectRemoteTombstoneAction(*state.Local.record), nil
	case localTombstone, localMissing:
		return DoNothingAction[R](), nil
	default:
		return DoNothingAction[R](), fmt.Errorf("%w: incoming tombstone, local state %d", ErrUnexpectedState, state.Local.state)
	}
}
