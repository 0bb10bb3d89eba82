// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package engine

import "errors"

var (
	// ErrUnexpectedState means the reconciliation planner was handed a
	// combination of incoming and local state that the schema makes
	// unrepresentable. It indicates a programming bug and is reported
	// rather than panicking.
	ErrUnexpectedState = errors.New("unexpected reconciliation state")

	// ErrNoMetaGlobal means the server has no meta/global record and a
	// fresh start could not be performed.
	ErrNoMetaGlobal = errors.New("server has no meta/global record")

	// ErrStorageVersion means the server's meta/global names a storage
	// version this client does not speak.
	ErrStorageVersion = errors.New("unsupported storage version")
)
