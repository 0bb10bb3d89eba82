// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Bookmark is a synced bookmark record. Structural fields (parent, position)
// ride along in the payload; structure repair across the whole tree is a
// higher-level concern and is not attempted during per-record merge.
type Bookmark struct {
	Guid     Guid   `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"bmkUri"`
	ParentID Guid   `json:"parentid,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	Metadata
}

func (b Bookmark) ID() Guid { return b.Guid }

func (b Bookmark) Meta() Metadata { return b.Metadata }

func (b Bookmark) WithID(g Guid) Bookmark {
	b.Guid = g
	return b
}

func (b Bookmark) WithMeta(m Metadata) Bookmark {
	b.Metadata = m
	return b
}

func (b Bookmark) ContentEquals(o Bookmark) bool {
	return b.Title == o.Title && b.URL == o.URL && b.ParentID == o.ParentID
}

func (b Bookmark) MergeWith(incoming Bookmark, mirror *Bookmark) (Bookmark, bool) {
	merged := incoming
	var ok bool

	if merged.Title, ok = MergeField(incoming.Title, b.Title, field(mirror, func(m Bookmark) string { return m.Title })); !ok {
		return Bookmark{}, false
	}
	if merged.URL, ok = MergeField(incoming.URL, b.URL, field(mirror, func(m Bookmark) string { return m.URL })); !ok {
		return Bookmark{}, false
	}
	if merged.ParentID, ok = MergeField(incoming.ParentID, b.ParentID, field(mirror, func(m Bookmark) Guid { return m.ParentID })); !ok {
		return Bookmark{}, false
	}
	if merged.Keyword, ok = MergeField(incoming.Keyword, b.Keyword, field(mirror, func(m Bookmark) string { return m.Keyword })); !ok {
		return Bookmark{}, false
	}

	var mirrorMeta *Metadata
	if mirror != nil {
		mm := mirror.Metadata
		mirrorMeta = &mm
	}
	merged.Metadata = MergeMetadata(incoming.Metadata, b.Metadata, mirrorMeta)
	return merged, true
}
