// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync"
	"time"

	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/engine"
	"github.com/weavesync/weavesync/internal/interrupt"
	"github.com/weavesync/weavesync/internal/logger"
)

// SyncRunner is the slice of [engine.SyncManager] the worker drives.
type SyncRunner interface {
	SyncAll(ctx context.Context, engines []engine.Syncer, init engine.ClientInit, root *crypto.KeyBundle, scope interrupt.Interruptee) engine.SyncResult
}

// SyncWorker periodically runs a full sync in the background. The worker
// is idle until Start is called; Stop interrupts an in-flight sync
// cooperatively and waits for the goroutine to exit.
type SyncWorker struct {
	runner   SyncRunner
	engines  []engine.Syncer
	init     engine.ClientInit
	root     *crypto.KeyBundle
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	handle *interrupt.Handle
	wg     sync.WaitGroup
}

// NewSyncWorker creates a SyncWorker syncing every interval. An interval
// of zero or less defaults to 5 minutes.
func NewSyncWorker(runner SyncRunner, engines []engine.Syncer, init engine.ClientInit, root *crypto.KeyBundle, interval time.Duration, log *logger.Logger) *SyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SyncWorker{
		runner:   runner,
		engines:  engines,
		init:     init,
		root:     root,
		interval: interval,
		log:      log,
	}
}

// Run implements Worker. It starts the ticker loop detached from any
// caller context; use Start directly to tie the loop to a context.
func (w *SyncWorker) Run() {
	w.Start(context.Background())
}

// Start stops any previously running loop, then launches a background
// goroutine that runs a full sync every interval. The goroutine exits
// when ctx is cancelled or Stop is called. Server backoff requests are
// honored: ticks that fire before the server's requested deadline are
// skipped.
func (w *SyncWorker) Start(ctx context.Context) {
	w.Stop()

	w.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.handle = interrupt.NewHandle()
	handle := w.handle
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		t := time.NewTicker(w.interval)
		defer t.Stop()

		var backoffUntil time.Time
		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				if time.Now().Before(backoffUntil) {
					continue
				}
				result := w.runner.SyncAll(jobCtx, w.engines, w.init, w.root, handle)
				backoffUntil = result.NextSyncAfter

				if result.ServiceStatus != engine.StatusOK {
					w.log.Warn().
						Str("func", "SyncWorker").
						Str("status", result.ServiceStatus.String()).
						Msg("background sync did not complete cleanly")
				}
			}
		}
	}()
}

// Stop interrupts the in-flight sync, cancels the loop and blocks until
// the goroutine has exited. Safe to call when the worker is not running.
func (w *SyncWorker) Stop() {
	w.mu.Lock()
	cancel, handle := w.cancel, w.handle
	w.cancel, w.handle = nil, nil
	w.mu.Unlock()

	if handle != nil {
		handle.Interrupt()
	}
	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}
