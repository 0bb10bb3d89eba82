// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package crypto implements the Sync 1.5 record encryption primitive: a
// KeyBundle of two 256-bit keys (AES encryption + HMAC authentication) and
// the AES-256-CBC + HMAC-SHA256 transform applied to every BSO payload.
//
// The HMAC is computed over the base64-encoded ciphertext string, not the
// raw ciphertext bytes - this matches what every existing Sync client has
// written to the servers for years. On the wire the HMAC is lowercase hex;
// a base64 value of the right decoded length is accepted on read as a
// legacy-compat path.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

const (
	keyLen     = 32
	syncKeyLen = 64

	// oldsyncInfo is the HKDF info string that turns the account-level
	// master key into the 64-byte kSync value.
	oldsyncInfo = "identity.mozilla.com/picl/v1/oldsync"
)

// KeyBundle holds one collection's symmetric key pair. Immutable once
// constructed; safe to share read-only across collections within a sync.
type KeyBundle struct {
	encKey []byte
	macKey []byte
}

// NewKeyBundle builds a bundle from already-decoded keys. Both keys must be
// exactly 32 bytes.
func NewKeyBundle(enc, mac []byte) (*KeyBundle, error) {
	if len(enc) != keyLen {
		return nil, fmt.Errorf("%w: enc_key is %d bytes, want %d", ErrBadKeyLength, len(enc), keyLen)
	}
	if len(mac) != keyLen {
		return nil, fmt.Errorf("%w: mac_key is %d bytes, want %d", ErrBadKeyLength, len(mac), keyLen)
	}
	return &KeyBundle{
		encKey: bytes.Clone(enc),
		macKey: bytes.Clone(mac),
	}, nil
}

// FromSyncKeyBytes splits the 64-byte kSync value: the first 32 bytes are
// the encryption key, the last 32 the HMAC key.
func FromSyncKeyBytes(ksync []byte) (*KeyBundle, error) {
	if len(ksync) != syncKeyLen {
		return nil, fmt.Errorf("%w: kSync is %d bytes, want %d", ErrBadKeyLength, len(ksync), syncKeyLen)
	}
	return NewKeyBundle(ksync[:keyLen], ksync[keyLen:])
}

// FromBase64 decodes a standard-base64 key pair, as found in the decrypted
// crypto/keys payload.
func FromBase64(enc, mac string) (*KeyBundle, error) {
	encBytes, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, fmt.Errorf("decode enc_key: %w", err)
	}
	macBytes, err := base64.StdEncoding.DecodeString(mac)
	if err != nil {
		return nil, fmt.Errorf("decode mac_key: %w", err)
	}
	return NewKeyBundle(encBytes, macBytes)
}

// NewRandomKeyBundle returns a bundle with 64 fresh bytes from the OS
// CSPRNG, for per-collection keys generated on a first sync.
func NewRandomKeyBundle() (*KeyBundle, error) {
	buf := make([]byte, syncKeyLen)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("generate key bundle: %w", err)
	}
	return FromSyncKeyBytes(buf)
}

// DeriveFromMasterKey derives the root (oldsync) bundle from the 32-byte
// account master key using HKDF-SHA256, then splits the 64-byte output.
func DeriveFromMasterKey(master []byte) (*KeyBundle, error) {
	if len(master) != keyLen {
		return nil, fmt.Errorf("%w: master key is %d bytes, want %d", ErrBadKeyLength, len(master), keyLen)
	}
	ksync := make([]byte, syncKeyLen)
	r := hkdf.New(sha256.New, master, nil, []byte(oldsyncInfo))
	if _, err := io.ReadFull(r, ksync); err != nil {
		return nil, fmt.Errorf("derive oldsync key: %w", err)
	}
	return FromSyncKeyBytes(ksync)
}

// EncryptionKey returns the AES key. The slice must not be mutated.
func (k *KeyBundle) EncryptionKey() []byte { return k.encKey }

// HmacKey returns the HMAC key. The slice must not be mutated.
func (k *KeyBundle) HmacKey() []byte { return k.macKey }

// ToBase64 returns the [enc, mac] pair in the crypto/keys wire encoding.
func (k *KeyBundle) ToBase64() (enc, mac string) {
	return base64.StdEncoding.EncodeToString(k.encKey),
		base64.StdEncoding.EncodeToString(k.macKey)
}

// Equal reports whether two bundles hold the same key material.
func (k *KeyBundle) Equal(o *KeyBundle) bool {
	if o == nil {
		return false
	}
	return hmac.Equal(k.encKey, o.encKey) && hmac.Equal(k.macKey, o.macKey)
}

func (k *KeyBundle) hmacSum(data []byte) []byte {
	h := hmac.New(sha256.New, k.macKey)
	h.Write(data)
	return h.Sum(nil)
}

// HmacString computes the wire HMAC for a base64 ciphertext string:
// lowercase hex of HMAC-SHA256 over the string's bytes. Never compare the
// result with ==; use VerifyHmac.
func (k *KeyBundle) HmacString(ciphertextB64 string) string {
	return hex.EncodeToString(k.hmacSum([]byte(ciphertextB64)))
}

// VerifyHmac authenticates a ciphertext against the stored HMAC value in
// constant time. Hex is the canonical encoding; base64 is accepted as a
// legacy decode path. Returns ErrHmacMismatch on any failure, including a
// garbage expected value - a malformed HMAC and a wrong HMAC are the same
// thing to a caller.
func (k *KeyBundle) VerifyHmac(expected, ciphertextB64 string) error {
	decoded, err := decodeHmac(expected)
	if err != nil {
		return ErrHmacMismatch
	}
	if !hmac.Equal(decoded, k.hmacSum([]byte(ciphertextB64))) {
		return ErrHmacMismatch
	}
	return nil
}

func decodeHmac(s string) ([]byte, error) {
	if len(s) == 2*sha256.Size {
		return hex.DecodeString(s)
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(decoded) != sha256.Size {
		return nil, ErrHmacMismatch
	}
	return decoded, nil
}

// Encrypt encrypts cleartext under a fresh random IV and returns the wire
// triple (base64 ciphertext, base64 IV, hex HMAC).
func (k *KeyBundle) Encrypt(cleartext []byte) (ciphertextB64, ivB64, hmacHex string, err error) {
	iv := make([]byte, aes.BlockSize)
	if _, err = io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", "", fmt.Errorf("generate iv: %w", err)
	}
	return k.EncryptWithIV(cleartext, iv)
}

// EncryptWithIV is Encrypt with a caller-provided IV. Only tests and
// known-answer vectors should pick their own IV; reusing one leaks
// plaintext relationships.
func (k *KeyBundle) EncryptWithIV(cleartext, iv []byte) (ciphertextB64, ivB64, hmacHex string, err error) {
	block, err := aes.NewCipher(k.encKey)
	if err != nil {
		return "", "", "", fmt.Errorf("create cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", "", "", fmt.Errorf("%w: iv is %d bytes, want %d", ErrBadKeyLength, len(iv), aes.BlockSize)
	}

	padded := pkcs7Pad(cleartext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	ciphertextB64 = base64.StdEncoding.EncodeToString(ciphertext)
	return ciphertextB64,
		base64.StdEncoding.EncodeToString(iv),
		k.HmacString(ciphertextB64),
		nil
}

// Decrypt authenticates and decrypts one wire triple. The HMAC check runs
// before any decryption; on mismatch the ciphertext is never touched.
func (k *KeyBundle) Decrypt(ciphertextB64, ivB64, hmacStr string) ([]byte, error) {
	if err := k.VerifyHmac(hmacStr, ciphertextB64); err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidPadding
	}

	block, err := aes.NewCipher(k.encKey)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	cleartext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(cleartext, ciphertext)

	cleartext, err = pkcs7Unpad(cleartext, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(cleartext) {
		return nil, ErrBadCleartext
	}
	return cleartext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
