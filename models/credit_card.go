// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// CreditCard is a synced autofill card record. Field names follow the
// autofill payload convention (cc-* keys).
type CreditCard struct {
	Guid       Guid   `json:"id"`
	Name       string `json:"cc-name"`
	Number     string `json:"cc-number"`
	ExpMonth   int64  `json:"cc-exp-month"`
	ExpYear    int64  `json:"cc-exp-year"`
	Type       string `json:"cc-type"`
	Metadata
}

func (c CreditCard) ID() Guid { return c.Guid }

func (c CreditCard) Meta() Metadata { return c.Metadata }

func (c CreditCard) WithID(g Guid) CreditCard {
	c.Guid = g
	return c
}

func (c CreditCard) WithMeta(m Metadata) CreditCard {
	c.Metadata = m
	return c
}

func (c CreditCard) ContentEquals(o CreditCard) bool {
	return c.Name == o.Name &&
		c.Number == o.Number &&
		c.ExpMonth == o.ExpMonth &&
		c.ExpYear == o.ExpYear &&
		c.Type == o.Type
}

// MergeWith reconciles the local card (receiver) with an incoming copy.
// Any conflicting pair of edits forks the whole record: merging, say, an
// expiry month edited on one device with an expiry year edited on another
// could fabricate an expiry date that never existed on any card.
func (c CreditCard) MergeWith(incoming CreditCard, mirror *CreditCard) (CreditCard, bool) {
	merged := incoming
	var ok bool

	if merged.Name, ok = MergeField(incoming.Name, c.Name, field(mirror, func(m CreditCard) string { return m.Name })); !ok {
		return CreditCard{}, false
	}
	if merged.Number, ok = MergeField(incoming.Number, c.Number, field(mirror, func(m CreditCard) string { return m.Number })); !ok {
		return CreditCard{}, false
	}
	if merged.ExpMonth, ok = MergeField(incoming.ExpMonth, c.ExpMonth, field(mirror, func(m CreditCard) int64 { return m.ExpMonth })); !ok {
		return CreditCard{}, false
	}
	if merged.ExpYear, ok = MergeField(incoming.ExpYear, c.ExpYear, field(mirror, func(m CreditCard) int64 { return m.ExpYear })); !ok {
		return CreditCard{}, false
	}
	if merged.Type, ok = MergeField(incoming.Type, c.Type, field(mirror, func(m CreditCard) string { return m.Type })); !ok {
		return CreditCard{}, false
	}

	var mirrorMeta *Metadata
	if mirror != nil {
		mm := mirror.Metadata
		mirrorMeta = &mm
	}
	merged.Metadata = MergeMetadata(incoming.Metadata, c.Metadata, mirrorMeta)
	return merged, true
}

// field projects one field out of an optional mirror record, preserving
// the "no mirror" case as a nil pointer for MergeField.
func field[R, F any](mirror *R, get func(R) F) *F {
	if mirror == nil {
		return nil
	}
	v := get(*mirror)
	return &v
}
