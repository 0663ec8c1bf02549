package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdleSweeper periodically drops players that have gone quiet, so an
// abandoned phone does not hold its sessions forever
type IdleSweeper struct {
	registry *Registry
	idle     time.Duration
	interval time.Duration
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewIdleSweeper creates a sweeper that removes players idle for longer than
// idle. It checks four times per idle period, at most once a second.
func NewIdleSweeper(registry *Registry, idle time.Duration, logger *zap.SugaredLogger) *IdleSweeper {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &IdleSweeper{
		registry: registry,
		idle:     idle,
		interval: interval,
		logger:   logger,
	}
}

// Start begins sweeping in the background until ctx is cancelled or Stop is
// called
func (w *IdleSweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopChan = make(chan struct{})

	w.logger.Infow("Starting idle player sweeper", "idle", w.idle, "interval", w.interval)
	go w.sweepLoop(ctx, w.stopChan)
}

// Stop halts the sweeper
func (w *IdleSweeper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

// IsRunning reports whether the sweeper is active
func (w *IdleSweeper) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// SweepNow removes idle players immediately
func (w *IdleSweeper) SweepNow() int {
	removed := w.registry.Sweep(time.Now().Add(-w.idle))
	if removed > 0 {
		w.logger.Infow("Dropped idle players", "removed", removed, "remaining", w.registry.Len())
	}
	return removed
}

func (w *IdleSweeper) sweepLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debugw("Idle sweeper stopping", "reason", ctx.Err())
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-stop:
			return
		case <-ticker.C:
			w.SweepNow()
		}
	}
}
