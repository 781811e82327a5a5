package application

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrTickInProgress is returned when a tick is requested while another is running
var ErrTickInProgress = errors.New("a reconciliation tick is already running")

// SyncWorker triggers reconciliation ticks on a fixed interval and on demand.
// At most one tick runs at a time.
type SyncWorker struct {
	runner   TickRunner
	interval time.Duration

	running sync.Mutex

	mu   sync.RWMutex
	last *TickResult
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(runner TickRunner, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		runner:   runner,
		interval: interval,
	}
}

// Start begins the sync worker
func (w *SyncWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", w.interval).Info("Sync worker started")

		for {
			if _, err := w.Trigger(ctx); err != nil {
				if errors.Is(err, ErrTickInProgress) {
					log.Info("Skipping scheduled tick, previous tick still running")
				} else {
					log.WithError(err).Error("Scheduled reconciliation tick failed")
				}
			}

			select {
			case <-ctx.Done():
				log.Info("Sync worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Sync worker shutting down (stop requested)...")
				return
			case <-time.After(w.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// Trigger runs one tick now unless another tick is in flight
func (w *SyncWorker) Trigger(ctx context.Context) (*TickResult, error) {
	if !w.running.TryLock() {
		return nil, ErrTickInProgress
	}
	defer w.running.Unlock()

	result, err := w.runner.RunTick(ctx)
	if result != nil {
		w.mu.Lock()
		w.last = result
		w.mu.Unlock()
	}
	return result, err
}

// LastResult returns the result of the most recent tick, or nil
func (w *SyncWorker) LastResult() *TickResult {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}
