// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Metadata is the bookkeeping block every synced record carries. All times
// are integer milliseconds since the epoch.
//
// SyncChangeCounter is local-only state: it counts local mutations since
// the last successful upload and is never serialized into a payload. A
// non-zero counter is what classifies a local row as "modified" during
// reconciliation.
type Metadata struct {
	TimeCreated      int64 `json:"timeCreated,omitempty"`
	TimeLastUsed     int64 `json:"timeLastUsed,omitempty"`
	TimeLastModified int64 `json:"timeLastModified,omitempty"`
	TimesUsed        int64 `json:"timesUsed,omitempty"`

	SyncChangeCounter int64 `json:"-"`
}

// MergeMetadata reconciles the metadata of two divergent copies of one
// record against the shared mirror baseline:
//
//   - TimeCreated keeps the earliest non-zero creation time;
//   - TimeLastUsed and TimeLastModified keep the latest;
//   - TimesUsed sums the increments both sides made over the baseline;
//   - SyncChangeCounter sums, so pending local changes are not lost.
func MergeMetadata(a, b Metadata, mirror *Metadata) Metadata {
	out := Metadata{
		TimeCreated:       minNonZero(a.TimeCreated, b.TimeCreated),
		TimeLastUsed:      max(a.TimeLastUsed, b.TimeLastUsed),
		TimeLastModified:  max(a.TimeLastModified, b.TimeLastModified),
		SyncChangeCounter: a.SyncChangeCounter + b.SyncChangeCounter,
	}
	if mirror != nil {
		// Both sides counted uses since the shared baseline; adding the
		// deltas keeps neither side's usage invisible.
		out.TimesUsed = a.TimesUsed + b.TimesUsed - mirror.TimesUsed
		if out.TimesUsed < 0 {
			out.TimesUsed = 0
		}
	} else {
		out.TimesUsed = max(a.TimesUsed, b.TimesUsed)
	}
	return out
}

func minNonZero(a, b int64) int64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	return min(a, b)
}
