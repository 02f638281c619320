package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryQueue_ConsumeAckNack(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, NewAuditJob(testEntry())); err != nil {
			t.Fatal(err)
		}
	}

	msgs, _, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}

	first := <-msgs
	if err := first.Ack(); err != nil {
		t.Fatal(err)
	}
	second := <-msgs
	if err := second.Nack(false); err != nil {
		t.Fatal(err)
	}

	dead := q.DeadLetters()
	if len(dead) != 1 || dead[0].ID != second.GetJob().ID {
		t.Errorf("dead letters = %v, want the nacked job", dead)
	}
}

func TestMemoryQueue_NackRequeue(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := NewAuditJob(testEntry())
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}
	msgs, _, _ := q.Consume(ctx, 1)

	msg := <-msgs
	if err := msg.Nack(true); err != nil {
		t.Fatal(err)
	}
	again := <-msgs
	if again.GetJob().ID != job.ID {
		t.Errorf("requeued job = %s, want %s", again.GetJob().ID, job.ID)
	}
	_ = again.Ack()
}

func TestMemoryQueue_Close(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	msgs, errs, _ := q.Consume(context.Background(), 1)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-msgs; ok {
		t.Error("message channel still open after Close")
	}
	<-errs

	if err := q.Enqueue(context.Background(), NewAuditJob(testEntry())); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close error = %v", err)
	}
	if err := q.HealthCheck(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("HealthCheck() after Close error = %v", err)
	}
}

func TestMemoryQueue_PurgeOlderThan(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	q.dead = []deadJob{
		{job: NewAuditJob(testEntry()), at: time.Now().Add(-48 * time.Hour)},
		{job: NewAuditJob(testEntry()), at: time.Now()},
	}

	n, err := q.PurgeOlderThan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(q.DeadLetters()) != 1 {
		t.Errorf("purged %d, kept %d; want 1 and 1", n, len(q.DeadLetters()))
	}
}

func TestAuditPublisher_Record(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	p := NewAuditPublisher(q)
	entry := testEntry()
	if err := p.Record(context.Background(), entry); err != nil {
		t.Fatal(err)
	}
	_ = q.Close()

	job := <-q.jobs
	if job.Type != JobTypeRecordAudit || job.Audit.ID != entry.ID {
		t.Errorf("job = %+v", job)
	}
}
