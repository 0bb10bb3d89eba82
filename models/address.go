// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Address is a synced autofill address record.
type Address struct {
	Guid          Guid   `json:"id"`
	Name          string `json:"name"`
	Organization  string `json:"organization"`
	StreetAddress string `json:"street-address"`
	AddressLevel2 string `json:"address-level2"`
	AddressLevel1 string `json:"address-level1"`
	PostalCode    string `json:"postal-code"`
	Country       string `json:"country"`
	Tel           string `json:"tel"`
	Email         string `json:"email"`
	Metadata
}

func (a Address) ID() Guid { return a.Guid }

func (a Address) Meta() Metadata { return a.Metadata }

func (a Address) WithID(g Guid) Address {
	a.Guid = g
	return a
}

func (a Address) WithMeta(m Metadata) Address {
	a.Metadata = m
	return a
}

func (a Address) ContentEquals(o Address) bool {
	return a.Name == o.Name &&
		a.Organization == o.Organization &&
		a.StreetAddress == o.StreetAddress &&
		a.AddressLevel2 == o.AddressLevel2 &&
		a.AddressLevel1 == o.AddressLevel1 &&
		a.PostalCode == o.PostalCode &&
		a.Country == o.Country &&
		a.Tel == o.Tel &&
		a.Email == o.Email
}

func (a Address) MergeWith(incoming Address, mirror *Address) (Address, bool) {
	merged := incoming
	var ok bool

	if merged.Name, ok = MergeField(incoming.Name, a.Name, field(mirror, func(m Address) string { return m.Name })); !ok {
		return Address{}, false
	}
	if merged.Organization, ok = MergeField(incoming.Organization, a.Organization, field(mirror, func(m Address) string { return m.Organization })); !ok {
		return Address{}, false
	}
	if merged.StreetAddress, ok = MergeField(incoming.StreetAddress, a.StreetAddress, field(mirror, func(m Address) string { return m.StreetAddress })); !ok {
		return Address{}, false
	}
	if merged.AddressLevel2, ok = MergeField(incoming.AddressLevel2, a.AddressLevel2, field(mirror, func(m Address) string { return m.AddressLevel2 })); !ok {
		return Address{}, false
	}
	if merged.AddressLevel1, ok = MergeField(incoming.AddressLevel1, a.AddressLevel1, field(mirror, func(m Address) string { return m.AddressLevel1 })); !ok {
		return Address{}, false
	}
	if merged.PostalCode, ok = MergeField(incoming.PostalCode, a.PostalCode, field(mirror, func(m Address) string { return m.PostalCode })); !ok {
		return Address{}, false
	}
	if merged.Country, ok = MergeField(incoming.Country, a.Country, field(mirror, func(m Address) string { return m.Country })); !ok {
		return Address{}, false
	}
	if merged.Tel, ok = MergeField(incoming.Tel, a.Tel, field(mirror, func(m Address) string { return m.Tel })); !ok {
		return Address{}, false
	}
	if merged.Email, ok = MergeField(incoming.Email, a.Email, field(mirror, func(m Address) string { return m.Email })); !ok {
		return Address{}, false
	}

	var mirrorMeta *Metadata
	if mirror != nil {
		mm := mirror.Metadata
		mirrorMeta = &mm
	}
	merged.Metadata = MergeMetadata(incoming.Metadata, a.Metadata, mirrorMeta)
	return merged, true
}
