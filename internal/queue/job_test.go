package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/google/uuid"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func testEntry() models.AuditEntry {
	return models.AuditEntry{
		ID:             uuid.New(),
		ConversationID: "conv-1",
		Kind:           models.CommandCreateGoal,
		Message:        "Created goal 🏃 Run (importance 3)",
		Source:         models.SourceRemote,
		AppliedAt:      time.Now(),
	}
}

func TestNewAuditJob(t *testing.T) {
	t.Parallel()

	entry := testEntry()
	job := NewAuditJob(entry)

	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeRecordAudit {
		t.Errorf("Expected job type to be %s, got %s", JobTypeRecordAudit, job.Type)
	}
	if job.ConversationID != "conv-1" {
		t.Errorf("Expected conversation id conv-1, got %q", job.ConversationID)
	}
	if job.Audit == nil || job.Audit.ID != entry.ID {
		t.Errorf("Expected audit entry %s, got %+v", entry.ID, job.Audit)
	}
	if job.MaxRetries != 3 || job.RetryCount != 0 {
		t.Errorf("retries = %d/%d, want 0/3", job.RetryCount, job.MaxRetries)
	}
	if err := job.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		job  *Job
	}{
		{name: "no payload", job: &Job{Type: JobTypeRecordAudit}},
		{name: "payload without id", job: &Job{Type: JobTypeRecordAudit, Audit: &models.AuditEntry{}}},
		{name: "unknown type", job: &Job{Type: "reprocess_user", Audit: &models.AuditEntry{ID: uuid.New()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.job.Validate(); !errors.Is(err, ErrInvalidJob) {
				t.Errorf("Validate() error = %v, want ErrInvalidJob", err)
			}
		})
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		job  *Job
		want bool
	}{
		{name: "no time constraints", job: &Job{}, want: true},
		{name: "not before in past", job: &Job{NotBefore: timePtr(now.Add(-time.Hour))}, want: true},
		{name: "not before in future", job: &Job{NotBefore: timePtr(now.Add(time.Hour))}, want: false},
		{name: "not after in future", job: &Job{NotAfter: timePtr(now.Add(time.Hour))}, want: true},
		{name: "not after in past", job: &Job{NotAfter: timePtr(now.Add(-time.Hour))}, want: false},
		{
			name: "inside window",
			job:  &Job{NotBefore: timePtr(now.Add(-time.Hour)), NotAfter: timePtr(now.Add(time.Hour))},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_IsExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		job  *Job
		want bool
	}{
		{name: "no expiration", job: &Job{}, want: false},
		{name: "future expiration", job: &Job{NotAfter: timePtr(now.Add(time.Hour))}, want: false},
		{name: "past expiration", job: &Job{NotAfter: timePtr(now.Add(-time.Hour))}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.job.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job := NewAuditJob(testEntry())
	for i := 0; i < job.MaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("CanRetry() = false after %d retries", i)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Errorf("CanRetry() = true after %d retries", job.RetryCount)
	}
}
