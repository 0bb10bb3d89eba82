// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container for the
// weavesync client. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix — prefix applied to all nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds application-level settings such as the root sync key and
	// the device name reported to the server.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the local persistence backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds endpoint and timeout settings for the storage server.
	Sync Sync `envPrefix:"SYNC_"`

	// Workers holds configuration for background worker processes.
	Workers Workers `envPrefix:"WORKERS_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged on top of the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds application-level configuration values that control key material
// and device identity.
type App struct {
	// SyncKey is the base64url-encoded root key material: either the
	// 32-byte account master key or the 64-byte kSync value. Per-collection
	// encryption keys are derived from it. Must be kept confidential.
	// Env: APP_SYNC_KEY
	SyncKey string `env:"SYNC_KEY"`

	// DeviceName is the human-readable name this client reports for itself
	// (e.g. "work laptop").
	// Env: APP_DEVICE_NAME
	DeviceName string `env:"DEVICE_NAME"`

	// Version is the semantic version string of the running application
	// (e.g. "1.2.3").
	// Env: APP_VERSION
	Version string `env:"VERSION"`
}

// Storage groups the configuration for the local storage backend.
type Storage struct {
	// DB holds the local database connection settings.
	DB DB `envPrefix:"DB_"`
}

// DB holds connection settings for the local SQLite database.
type DB struct {
	// DSN is the SQLite Data Source Name, normally a file path
	// (e.g. "/home/user/.weavesync/sync.db").
	// Env: STORAGE_DB_DATABASE_URI
	DSN string `env:"DATABASE_URI"`
}

// Sync holds endpoint and timeout settings for the outbound storage-server
// transport.
type Sync struct {
	// BaseURL is the root URL of the user's storage node, up to and
	// including the API version and user id segments
	// (e.g. "https://sync.example.com/1.5/12345").
	// Env: SYNC_BASE_URL
	BaseURL string `env:"BASE_URL"`

	// Authorization is the value sent in the Authorization header on every
	// storage request. Must be kept confidential.
	// Env: SYNC_AUTHORIZATION
	Authorization string `env:"AUTHORIZATION"`

	// RequestTimeout is the maximum duration allowed for a single outbound
	// request before the client cancels it (e.g. "30s", "1m").
	// Env: SYNC_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Workers holds configuration for background worker processes.
type Workers struct {
	// SyncInterval defines how often the background sync worker runs.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (last source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
