// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weavesync/weavesync/internal/crypto"
	"github.com/weavesync/weavesync/internal/engine"
	"github.com/weavesync/weavesync/internal/interrupt"
)

// spyRunner counts SyncAll invocations and returns a canned result.
type spyRunner struct {
	calls  atomic.Int64
	result engine.SyncResult
}

func (s *spyRunner) SyncAll(context.Context, []engine.Syncer, engine.ClientInit, *crypto.KeyBundle, interrupt.Interruptee) engine.SyncResult {
	s.calls.Add(1)
	return s.result
}

func newTestWorker(runner SyncRunner, interval time.Duration) *SyncWorker {
	return NewSyncWorker(runner, nil, engine.ClientInit{}, nil, interval, nil)
}

func TestSyncWorker_Start_RunsPeriodically(t *testing.T) {
	spy := &spyRunner{}
	w := newTestWorker(spy, 10*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	w.Stop()

	assert.GreaterOrEqual(t, spy.calls.Load(), int64(3))
}

func TestSyncWorker_Stop_StopsGoroutine(t *testing.T) {
	spy := &spyRunner{}
	w := newTestWorker(spy, 10*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	callsAfterStop := spy.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, callsAfterStop, spy.calls.Load())
}

func TestSyncWorker_Stop_BeforeStart_NoPanic(t *testing.T) {
	w := newTestWorker(&spyRunner{}, 10*time.Millisecond)
	assert.NotPanics(t, w.Stop)
	assert.NotPanics(t, w.Stop)
}

func TestSyncWorker_DefaultInterval(t *testing.T) {
	spy := &spyRunner{}
	// interval <= 0 falls back to 5 minutes, so nothing fires in 20ms
	w := newTestWorker(spy, 0)

	w.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	assert.Equal(t, int64(0), spy.calls.Load())
}

func TestSyncWorker_HonorsServerBackoff(t *testing.T) {
	spy := &spyRunner{result: engine.SyncResult{
		ServiceStatus: engine.StatusOK,
		NextSyncAfter: time.Now().Add(time.Hour),
	}}
	w := newTestWorker(spy, 10*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	w.Stop()

	// the first run sets the backoff deadline; later ticks are skipped
	assert.Equal(t, int64(1), spy.calls.Load())
}

func TestSyncWorker_ContextCancel_StopsLoop(t *testing.T) {
	spy := &spyRunner{}
	w := newTestWorker(spy, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	w.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop hung after context cancellation")
	}
}

func TestSyncWorker_Restart_KeepsRunning(t *testing.T) {
	spy := &spyRunner{}
	w := newTestWorker(spy, 10*time.Millisecond)

	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	callsBefore := spy.calls.Load()
	assert.Greater(t, callsBefore, int64(0))

	w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()

	assert.Greater(t, spy.calls.Load(), callsBefore)
}
