// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import "errors"

var (
	// ErrBadKeyLength is returned by the KeyBundle constructors when the
	// provided key material has the wrong size.
	ErrBadKeyLength = errors.New("bad key length")

	// ErrHmacMismatch means the payload's HMAC does not authenticate its
	// ciphertext. The payload must be treated as corrupt and is never
	// decrypted.
	ErrHmacMismatch = errors.New("hmac verification failed")

	// ErrInvalidPadding means AES-CBC decryption produced a block with
	// broken PKCS#7 padding, which indicates a wrong key or corrupt data.
	ErrInvalidPadding = errors.New("invalid block padding")

	// ErrBadCleartext means the decrypted bytes are not valid UTF-8 and
	// cannot be a JSON payload.
	ErrBadCleartext = errors.New("decrypted payload is not valid utf-8")
)
