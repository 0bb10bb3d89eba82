// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package keys manages the crypto/keys record: the per-collection key
// bundles, encrypted under the root key derived from the account master key.
package keys

import (
	"errors"
	"fmt"

	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/models"
)

var ErrNoDefaultKey = errors.New("crypto/keys record has no default key")

// CollectionKeys holds the default key bundle plus any per-collection
// overrides, and remembers the server timestamp of the record they came
// from so a concurrent change to crypto/keys can be detected.
type CollectionKeys struct {
	Timestamp   models.ServerTimestamp
	Default     *crypto.KeyBundle
	Collections map[string]*crypto.KeyBundle
}

// keysRecord is the cleartext wire form of crypto/keys. Each entry is a
// two-element array of base64 strings: encryption key then HMAC key.
type keysRecord struct {
	ID          models.Guid         `json:"id"`
	Collection  string              `json:"collection"`
	Default     []string            `json:"default"`
	Collections map[string][]string `json:"collections"`
}

// NewRandomCollectionKeys generates a fresh default bundle with no
// per-collection overrides, for a first sync or a key wipe.
func NewRandomCollectionKeys() (*CollectionKeys, error) {
	def, err := crypto.NewRandomKeyBundle()
	if err != nil {
		return nil, err
	}
	return &CollectionKeys{
		Default:     def,
		Collections: map[string]*crypto.KeyBundle{},
	}, nil
}

// UnwrapCryptoKeys decrypts the crypto/keys envelope with the root key and
// parses the bundles it contains.
func UnwrapCryptoKeys(env bso.Envelope, root *crypto.KeyBundle) (*CollectionKeys, error) {
	p, err := env.Decrypt(root)
	if err != nil {
		return nil, fmt.Errorf("unwrap crypto/keys: %w", err)
	}
	rec, err := bso.IntoRecord[keysRecord](p)
	if err != nil {
		return nil, fmt.Errorf("unwrap crypto/keys: %w", err)
	}
	if len(rec.Default) != 2 {
		return nil, ErrNoDefaultKey
	}
	def, err := crypto.FromBase64(rec.Default[0], rec.Default[1])
	if err != nil {
		return nil, fmt.Errorf("default key: %w", err)
	}
	colls := make(map[string]*crypto.KeyBundle, len(rec.Collections))
	for name, pair := range rec.Collections {
		if len(pair) != 2 {
			return nil, fmt.Errorf("key for collection %q: want 2 parts, got %d", name, len(pair))
		}
		k, err := crypto.FromBase64(pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("key for collection %q: %w", name, err)
		}
		colls[name] = k
	}
	return &CollectionKeys{
		Timestamp:   env.Modified,
		Default:     def,
		Collections: colls,
	}, nil
}

// KeyFor returns the bundle for a collection, falling back to the default.
func (c *CollectionKeys) KeyFor(collection string) *crypto.KeyBundle {
	if k, ok := c.Collections[collection]; ok {
		return k
	}
	return c.Default
}

// WrapCryptoKeys encrypts the key set back into an upload-ready crypto/keys
// envelope under the root key.
func (c *CollectionKeys) WrapCryptoKeys(root *crypto.KeyBundle) (bso.Envelope, error) {
	if c.Default == nil {
		return bso.Envelope{}, ErrNoDefaultKey
	}
	rec := keysRecord{
		ID:          "keys",
		Collection:  "crypto",
		Default:     pair(c.Default),
		Collections: make(map[string][]string, len(c.Collections)),
	}
	for name, k := range c.Collections {
		rec.Collections[name] = pair(k)
	}
	env, err := bso.EncryptRecord(rec, root)
	if err != nil {
		return bso.Envelope{}, fmt.Errorf("wrap crypto/keys: %w", err)
	}
	return env, nil
}

func pair(k *crypto.KeyBundle) []string {
	enc, mac := k.ToBase64()
	return []string{enc, mac}
}
