// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "sort"

// Visit is a single page visit inside a history record. Date is in
// milliseconds since the epoch; Type mirrors the places visit-type codes.
type Visit struct {
	Date int64 `json:"date"`
	Type int   `json:"type"`
}

// HistoryEntry is a synced history record: one URL plus its recent visits.
type HistoryEntry struct {
	Guid   Guid    `json:"id"`
	URL    string  `json:"histUri"`
	Title  string  `json:"title"`
	Visits []Visit `json:"visits"`
	Metadata
}

func (h HistoryEntry) ID() Guid { return h.Guid }

func (h HistoryEntry) Meta() Metadata { return h.Metadata }

func (h HistoryEntry) WithID(g Guid) HistoryEntry {
	h.Guid = g
	return h
}

func (h HistoryEntry) WithMeta(m Metadata) HistoryEntry {
	h.Metadata = m
	return h
}

// ContentEquals matches on the URL alone: two history rows for the same
// URL are the same logical entry regardless of which visits each side saw.
func (h HistoryEntry) ContentEquals(o HistoryEntry) bool {
	return h.URL == o.URL
}

// MergeWith merges history entries. Unlike form-data records, history never
// forks: visits are a set union keyed by (date, type), and the title is
// resolved with the usual three-way rule, falling back to whichever side
// modified it last.
func (h HistoryEntry) MergeWith(incoming HistoryEntry, mirror *HistoryEntry) (HistoryEntry, bool) {
	merged := incoming

	title, ok := MergeField(incoming.Title, h.Title, field(mirror, func(m HistoryEntry) string { return m.Title }))
	if !ok {
		// Conflicting title edits: the most recently modified side wins.
		title = h.Title
		if incoming.TimeLastModified > h.TimeLastModified {
			title = incoming.Title
		}
	}
	merged.Title = title
	merged.Visits = unionVisits(h.Visits, incoming.Visits)

	var mirrorMeta *Metadata
	if mirror != nil {
		mm := mirror.Metadata
		mirrorMeta = &mm
	}
	merged.Metadata = MergeMetadata(incoming.Metadata, h.Metadata, mirrorMeta)
	return merged, true
}

func unionVisits(a, b []Visit) []Visit {
	seen := make(map[Visit]struct{}, len(a)+len(b))
	out := make([]Visit, 0, len(a)+len(b))
	for _, vs := range [2][]Visit{a, b} {
		for _, v := range vs {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
