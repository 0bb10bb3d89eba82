// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package interrupt provides cooperative cancellation for long-running sync
// work. Loops over rows or HTTP calls check the Interruptee between chunks;
// already-committed transactional work stays intact and the sync resumes on
// the next cycle.
package interrupt

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrInterrupted signals that the operation was cut short by a shutdown
// request. It is explicitly not a failure: callers treat it as "sync
// suspended, resume-safe".
var ErrInterrupted = errors.New("operation interrupted")

// Interruptee is checked by looped operations between side-effecting steps.
type Interruptee interface {
	// WasInterrupted reports whether a shutdown has been requested.
	WasInterrupted() bool

	// ErrIfInterrupted returns ErrInterrupted if a shutdown has been
	// requested, nil otherwise.
	ErrIfInterrupted() error
}

// Handle is an Interruptee backed by an atomic flag. The zero value is
// usable; Interrupt may be called from any goroutine.
type Handle struct {
	flag atomic.Bool
}

func NewHandle() *Handle {
	return &Handle{}
}

// Interrupt requests that in-flight work stop at the next checkpoint.
func (h *Handle) Interrupt() {
	h.flag.Store(true)
}

func (h *Handle) WasInterrupted() bool {
	return h.flag.Load()
}

func (h *Handle) ErrIfInterrupted() error {
	if h.flag.Load() {
		return ErrInterrupted
	}
	return nil
}

// FromContext couples an Interruptee to a context: cancellation of the
// context reads as an interruption.
func FromContext(ctx context.Context) Interruptee {
	return ctxInterruptee{ctx}
}

type ctxInterruptee struct {
	ctx context.Context
}

func (c ctxInterruptee) WasInterrupted() bool {
	return c.ctx.Err() != nil
}

func (c ctxInterruptee) ErrIfInterrupted() error {
	if c.ctx.Err() != nil {
		return ErrInterrupted
	}
	return nil
}

// NeverInterrupts is an Interruptee that never fires. Useful in tests and
// for callers that do not support cancellation.
var NeverInterrupts Interruptee = neverInterrupts{}

type neverInterrupts struct{}

func (neverInterrupts) WasInterrupted() bool    { return false }
func (neverInterrupts) ErrIfInterrupted() error { return nil }
