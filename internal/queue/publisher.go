package queue

import (
	"context"
	"fmt"

	"github.com/benvon/smart-planner/internal/applier"
	"github.com/benvon/smart-planner/internal/models"
)

// AuditPublisher hands audit entries to the queue so applying a command
// never waits on the audit table.
type AuditPublisher struct {
	queue JobQueue
}

var _ applier.AuditSink = (*AuditPublisher)(nil)

// NewAuditPublisher creates a publisher on q
func NewAuditPublisher(q JobQueue) *AuditPublisher {
	return &AuditPublisher{queue: q}
}

// Record enqueues one audit entry
func (p *AuditPublisher) Record(ctx context.Context, entry models.AuditEntry) error {
	if err := p.queue.Enqueue(ctx, NewAuditJob(entry)); err != nil {
		return fmt.Errorf("failed to enqueue audit entry: %w", err)
	}
	return nil
}
