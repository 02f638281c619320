package queue

import (
	"errors"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeRecordAudit persists the audit entry of an applied command
	JobTypeRecordAudit JobType = "record_audit"
)

// ErrInvalidJob is returned for a job whose payload does not match its type
var ErrInvalidJob = errors.New("invalid job")

// Job represents a job in the queue
type Job struct {
	ID             uuid.UUID          `json:"id"`
	Type           JobType            `json:"type"`
	ConversationID string             `json:"conversation_id"`
	Audit          *models.AuditEntry `json:"audit,omitempty"`
	NotBefore      *time.Time         `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter       *time.Time         `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Metadata       map[string]any     `json:"metadata,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	RetryCount     int                `json:"retry_count"`
	MaxRetries     int                `json:"max_retries"`
}

// NewAuditJob wraps an audit entry in a job
func NewAuditJob(entry models.AuditEntry) *Job {
	return &Job{
		ID:             uuid.New(),
		Type:           JobTypeRecordAudit,
		ConversationID: entry.ConversationID,
		Audit:          &entry,
		Metadata:       make(map[string]any),
		CreatedAt:      time.Now(),
		MaxRetries:     3,
	}
}

// Validate checks that the payload matches the job type
func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeRecordAudit:
		if j.Audit == nil || j.Audit.ID == uuid.Nil {
			return ErrInvalidJob
		}
		return nil
	default:
		return ErrInvalidJob
	}
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
