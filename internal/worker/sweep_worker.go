package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SweepFunc runs one pass and returns how many items it removed.
type SweepFunc func(now time.Time) int

// SweepWorker runs a sweep on a fixed interval until stopped.
type SweepWorker struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	now      func() time.Time
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewSweepWorker(name string, interval time.Duration, sweep SweepFunc, logger *zap.Logger) *SweepWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{
		name:     name,
		interval: interval,
		sweep:    sweep,
		now:      time.Now,
		logger:   logger.With(zap.String("worker", name)),
		stopChan: make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is cancelled.
func (sw *SweepWorker) Start(ctx context.Context) {
	sw.logger.Info("Starting sweep worker", zap.Duration("interval", sw.interval))

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.RunOnce()

		case <-sw.stopChan:
			sw.logger.Info("Stopping sweep worker")
			return

		case <-ctx.Done():
			sw.logger.Info("Context cancelled, stopping sweep worker")
			return
		}
	}
}

// RunOnce performs a single sweep. A panicking sweep is logged and swallowed
// so the ticker keeps running.
func (sw *SweepWorker) RunOnce() (removed int) {
	defer func() {
		if r := recover(); r != nil {
			sw.logger.Error("Sweep panicked", zap.Any("panic", r))
			removed = 0
		}
	}()

	removed = sw.sweep(sw.now())
	if removed > 0 {
		sw.logger.Info("Sweep finished", zap.Int("removed", removed))
	}
	return removed
}

func (sw *SweepWorker) Stop() {
	sw.stopOnce.Do(func() { close(sw.stopChan) })
}
