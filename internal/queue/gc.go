package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultPurgeTimeout bounds a single dead letter purge
const DefaultPurgeTimeout = 2 * time.Minute

// GarbageCollector drops dead-lettered audit jobs once they outlive the
// retention window. It sweeps once on start and then every interval.
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a collector. A non-positive retention keeps
// dead letters forever.
func NewGarbageCollector(purger DLQPurger, interval, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &GarbageCollector{
		purger:    purger,
		interval:  interval,
		retention: retention,
		timeout:   DefaultPurgeTimeout,
		logger:    logger,
	}
}

// Start sweeps until ctx is cancelled and then returns ctx.Err()
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if gc.purger == nil || gc.retention <= 0 {
		gc.logger.Info("dlq_gc_disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		if _, err := gc.Collect(ctx); err != nil && ctx.Err() == nil {
			gc.logger.Warn("dlq_gc_failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Collect runs one purge and returns how many dead letters were dropped
func (gc *GarbageCollector) Collect(ctx context.Context) (int, error) {
	if gc.purger == nil || gc.retention <= 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dead letters: %w", err)
	}
	if n > 0 {
		gc.logger.Info("dlq_gc_purged", zap.Int("count", n), zap.Duration("retention", gc.retention))
	}
	return n, nil
}
