// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// Guid is a Sync record identifier: 12 URL-safe base64 characters on the
// wire for ordinary records. Well-known server records ("keys", "global")
// are shorter and also valid.
type Guid string

// NewGuid returns a fresh random Guid in the canonical 12-character form.
// Entropy comes from a v4 UUID; the first 9 bytes are base64url-encoded,
// which yields exactly 12 characters with no padding.
func NewGuid() Guid {
	u := uuid.New()
	return Guid(base64.RawURLEncoding.EncodeToString(u[:9]))
}

// IsValid reports whether g looks like an identifier the storage server
// would accept: 1..64 characters from the URL-safe base64 alphabet.
func (g Guid) IsValid() bool {
	if len(g) == 0 || len(g) > 64 {
		return false
	}
	for _, c := range g {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

func (g Guid) String() string {
	return string(g)
}
