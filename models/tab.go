// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "slices"

// Tab is a synced open-tab record for one remote client. Tabs are
// last-writer-wins: the record is replaced wholesale by whichever device
// wrote it last, so MergeWith never needs a mirror comparison.
type Tab struct {
	Guid       Guid     `json:"id"`
	ClientName string   `json:"clientName"`
	Title      string   `json:"title"`
	URLHistory []string `json:"urlHistory"`
	LastUsed   int64    `json:"lastUsed"`
	Metadata
}

func (t Tab) ID() Guid { return t.Guid }

func (t Tab) Meta() Metadata { return t.Metadata }

func (t Tab) WithID(g Guid) Tab {
	t.Guid = g
	return t
}

func (t Tab) WithMeta(m Metadata) Tab {
	t.Metadata = m
	return t
}

func (t Tab) ContentEquals(o Tab) bool {
	return t.ClientName == o.ClientName && slices.Equal(t.URLHistory, o.URLHistory)
}

func (t Tab) MergeWith(incoming Tab, _ *Tab) (Tab, bool) {
	// Last writer wins; there is no per-field reconciliation for tabs.
	winner := t
	if incoming.LastUsed >= t.LastUsed {
		winner = incoming
	}
	winner.Metadata = MergeMetadata(incoming.Metadata, t.Metadata, nil)
	return winner, true
}
