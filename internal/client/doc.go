// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the sync client application runtime.
//
// It wires the local store, per-collection sync engines, and background
// synchronization into a single process lifecycle.
package client
