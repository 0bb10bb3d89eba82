// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

// Client is the lifecycle contract the sync client binary runs against.
type Client interface {
	// Run starts the client runtime and blocks until shutdown completes.
	Run() error
}
