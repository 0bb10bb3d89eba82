// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import "time"

// TransactionBudget bounds how long a single write transaction may hold the
// database. Row loops call RecordRow per row and consult Exceeded at chunk
// boundaries; Tx.MaybeCommit commits and reopens when the budget runs out,
// so a reader on another connection is never starved by a huge download.
type TransactionBudget struct {
	MaxRows     int
	MaxDuration time.Duration

	rows    int
	started time.Time
}

func NewTransactionBudget(maxRows int, maxDuration time.Duration) *TransactionBudget {
	return &TransactionBudget{
		MaxRows:     maxRows,
		MaxDuration: maxDuration,
		started:     time.Now(),
	}
}

func (b *TransactionBudget) RecordRow() {
	b.rows++
}

func (b *TransactionBudget) Exceeded() bool {
	if b.MaxRows > 0 && b.rows >= b.MaxRows {
		return true
	}
	if b.MaxDuration > 0 && time.Since(b.started) >= b.MaxDuration {
		return true
	}
	return false
}

func (b *TransactionBudget) reset() {
	b.rows = 0
	b.started = time.Now()
}
