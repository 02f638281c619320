package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/queue"
	"go.uber.org/zap"
)

// maxRetryDelay caps the backoff between audit write attempts
const maxRetryDelay = 5 * time.Minute

// AuditRecorder writes queued audit entries to the audit store
type AuditRecorder struct {
	store    database.AuditStore
	jobQueue queue.JobQueue // for re-enqueueing jobs with a delay
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuditRecorder creates a new audit recorder. jobQueue may be nil, in
// which case failed jobs are requeued immediately.
func NewAuditRecorder(store database.AuditStore, jobQueue queue.JobQueue, logger *zap.Logger) *AuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditRecorder{
		store:    store,
		jobQueue: jobQueue,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessJob processes a job based on its type
func (a *AuditRecorder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if err := job.Validate(); err != nil {
		// nothing a retry could fix
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	switch job.Type {
	case queue.JobTypeRecordAudit:
		if err := a.store.InsertAudit(ctx, job.Audit); err != nil {
			return a.handleJobError(ctx, msg, job, err)
		}
		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		a.logger.Debug("audit_entry_recorded",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Audit.Kind)),
		)
		return nil
	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError retries with an exponential delay and dead-letters the job
// once its retries are spent.
func (a *AuditRecorder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	if errors.Is(err, context.Canceled) {
		if nackErr := msg.Nack(true); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return err
	}

	if !job.CanRetry() {
		a.logger.Error("audit_job_dead_lettered",
			zap.String("job_id", job.ID.String()),
			zap.Int("retries", job.RetryCount),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			a.logger.Warn("job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	delay := RetryDelay(job.RetryCount)
	if a.jobQueue != nil {
		retry := *job
		retry.RetryCount++
		notBefore := a.now().Add(delay)
		retry.NotBefore = &notBefore

		enqueueErr := a.jobQueue.Enqueue(ctx, &retry)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				a.logger.Warn("job_ack_failed", zap.Error(ackErr))
			}
			a.logger.Warn("audit_job_retry_scheduled",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", retry.RetryCount),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			return fmt.Errorf("job failed (will retry): %w", err)
		}
		a.logger.Warn("audit_job_reenqueue_failed", zap.Error(enqueueErr))
	}

	job.IncrementRetry()
	if nackErr := msg.Nack(true); nackErr != nil {
		a.logger.Warn("job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}

// RetryDelay is the backoff before attempt retryCount+1
func RetryDelay(retryCount int) time.Duration {
	d := time.Second << min(retryCount, 16)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
