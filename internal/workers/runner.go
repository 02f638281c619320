package workers

import (
	"context"
	"fmt"

	"github.com/benvon/smart-planner/internal/queue"
	"go.uber.org/zap"
)

// Processor handles one delivered message
type Processor interface {
	ProcessJob(ctx context.Context, msg queue.MessageInterface) error
}

// Run consumes q and hands each message to p until ctx is cancelled or the
// queue stops delivering.
func Run(ctx context.Context, q queue.JobQueue, prefetch int, p Processor, logger *zap.Logger) error {
	msgChan, errChan, err := q.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				logger.Info("queue_delivery_stopped")
				return nil
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				logger.Warn("job_failed",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
				)
			}
		}
	}
}
