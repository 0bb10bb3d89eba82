// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

// Password is a synced login record. The payload layout matches the
// "passwords" collection: hostname plus either a form-submit URL or an
// HTTP realm, the credential pair, and the form field names.
type Password struct {
	Guid          Guid    `json:"id"`
	Hostname      string  `json:"hostname"`
	FormSubmitURL string  `json:"formSubmitURL,omitempty"`
	HTTPRealm     *string `json:"httpRealm,omitempty"`
	Username      string  `json:"username"`
	Password      string  `json:"password"`
	UsernameField string  `json:"usernameField,omitempty"`
	PasswordField string  `json:"passwordField,omitempty"`
	Metadata
}

func (p Password) ID() Guid { return p.Guid }

func (p Password) Meta() Metadata { return p.Metadata }

func (p Password) WithID(g Guid) Password {
	p.Guid = g
	return p
}

func (p Password) WithMeta(m Metadata) Password {
	p.Metadata = m
	return p
}

// ContentEquals matches on the login identity: same origin, same realm,
// same username. The password itself is deliberately excluded so that a
// password change on another device still counts as the same login.
func (p Password) ContentEquals(o Password) bool {
	return p.Hostname == o.Hostname &&
		p.FormSubmitURL == o.FormSubmitURL &&
		deref(p.HTTPRealm) == deref(o.HTTPRealm) &&
		p.Username == o.Username
}

func (p Password) MergeWith(incoming Password, mirror *Password) (Password, bool) {
	merged := incoming
	var ok bool

	if merged.Hostname, ok = MergeField(incoming.Hostname, p.Hostname, field(mirror, func(m Password) string { return m.Hostname })); !ok {
		return Password{}, false
	}
	if merged.FormSubmitURL, ok = MergeField(incoming.FormSubmitURL, p.FormSubmitURL, field(mirror, func(m Password) string { return m.FormSubmitURL })); !ok {
		return Password{}, false
	}
	realm, ok := MergeField(deref(incoming.HTTPRealm), deref(p.HTTPRealm), field(mirror, func(m Password) string { return deref(m.HTTPRealm) }))
	if !ok {
		return Password{}, false
	}
	if realm == "" {
		merged.HTTPRealm = nil
	} else {
		merged.HTTPRealm = &realm
	}
	if merged.Username, ok = MergeField(incoming.Username, p.Username, field(mirror, func(m Password) string { return m.Username })); !ok {
		return Password{}, false
	}
	if merged.Password, ok = MergeField(incoming.Password, p.Password, field(mirror, func(m Password) string { return m.Password })); !ok {
		return Password{}, false
	}
	if merged.UsernameField, ok = MergeField(incoming.UsernameField, p.UsernameField, field(mirror, func(m Password) string { return m.UsernameField })); !ok {
		return Password{}, false
	}
	if merged.PasswordField, ok = MergeField(incoming.PasswordField, p.PasswordField, field(mirror, func(m Password) string { return m.PasswordField })); !ok {
		return Password{}, false
	}

	var mirrorMeta *Metadata
	if mirror != nil {
		mm := mirror.Metadata
		mirrorMeta = &mm
	}
	merged.Metadata = MergeMetadata(incoming.Metadata, p.Metadata, mirrorMeta)
	return merged, true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
