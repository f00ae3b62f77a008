// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// SweepRecorder receives the number of sessions removed by each sweep.
type SweepRecorder interface {
	RecordSweep(removed int64)
}

// Janitor periodically removes expired sessions from a SessionStore.
type Janitor struct {
	store    SessionStore
	interval time.Duration
	logger   *slog.Logger
	recorder SweepRecorder

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastErr error
}

// NewJanitor creates a Janitor. recorder may be nil.
func NewJanitor(store SessionStore, interval time.Duration, logger *slog.Logger, recorder SweepRecorder) (*Janitor, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if interval <= 0 {
		return nil, errConfiguration("sweep interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{store: store, interval: interval, logger: logger, recorder: recorder}, nil
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.run(ctx)
}

// Stop stops the janitor and waits for the sweep goroutine to exit.
func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	removed, err := j.store.DeleteExpired(ctx)
	if err != nil {
		err = oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if j.recorder != nil {
		j.recorder.RecordSweep(removed)
	}
	if removed > 0 {
		j.logger.DebugContext(ctx, "expired sessions removed", "count", removed)
	}
	return removed, nil
}

// Err returns the error of the most recent sweep, or nil if it succeeded or
// no sweep has run yet.
func (j *Janitor) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
