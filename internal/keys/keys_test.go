package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavesync/weavesync/internal/bso"
	"github.com/weavesync/weavesync/internal/crypto"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	keys, err := NewRandomCollectionKeys()
	require.NoError(t, err)
	bookmarksKey, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	keys.Collections["bookmarks"] = bookmarksKey

	env, err := keys.WrapCryptoKeys(root)
	require.NoError(t, err)
	assert.Equal(t, "keys", string(env.ID))

	got, err := UnwrapCryptoKeys(env, root)
	require.NoError(t, err)
	assert.True(t, got.Default.Equal(keys.Default))
	require.Contains(t, got.Collections, "bookmarks")
	assert.True(t, got.Collections["bookmarks"].Equal(bookmarksKey))
}

func TestKeyForFallsBackToDefault(t *testing.T) {
	keys, err := NewRandomCollectionKeys()
	require.NoError(t, err)
	override, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	keys.Collections["passwords"] = override

	assert.True(t, keys.KeyFor("passwords").Equal(override))
	assert.True(t, keys.KeyFor("bookmarks").Equal(keys.Default))
}

func TestUnwrapWrongRootKey(t *testing.T) {
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	other, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)

	keys, err := NewRandomCollectionKeys()
	require.NoError(t, err)
	env, err := keys.WrapCryptoKeys(root)
	require.NoError(t, err)

	_, err = UnwrapCryptoKeys(env, other)
	assert.ErrorIs(t, err, crypto.ErrHmacMismatch)
}

func TestUnwrapRejectsMissingDefault(t *testing.T) {
	root, err := crypto.NewRandomKeyBundle()
	require.NoError(t, err)
	env, err := bso.EncryptRecord(keysRecord{ID: "keys", Collection: "crypto"}, root)
	require.NoError(t, err)

	_, err = UnwrapCryptoKeys(env, root)
	assert.ErrorIs(t, err, ErrNoDefaultKey)
}
