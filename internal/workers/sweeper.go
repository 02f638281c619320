package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Evictor closes conversations that have been idle for too long
type Evictor interface {
	EvictIdle(idle time.Duration) int
}

// Sweeper periodically evicts idle conversations so their workers and
// staged suggestions do not pile up.
type Sweeper struct {
	evictor  Evictor
	interval time.Duration
	idle     time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper that runs every interval
func NewSweeper(evictor Evictor, interval, idle time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{evictor: evictor, interval: interval, idle: idle, logger: logger}
}

// Start runs until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() int {
	n := s.evictor.EvictIdle(s.idle)
	if n > 0 {
		s.logger.Info("idle_conversations_swept", zap.Int("count", n), zap.Duration("idle", s.idle))
	}
	return n
}
