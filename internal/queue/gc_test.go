package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockDLQPurger struct {
	purgeFunc func(ctx context.Context, retention time.Duration) (int, error)
}

var _ DLQPurger = (*mockDLQPurger)(nil)

func (m *mockDLQPurger) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	if m.purgeFunc != nil {
		return m.purgeFunc(ctx, retention)
	}
	return 0, nil
}

func TestGarbageCollector_Collect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		purger    DLQPurger
		retention time.Duration
		want      int
		wantErr   bool
	}{
		{name: "no purger", retention: time.Hour},
		{
			name:      "retention disabled",
			purger:    &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) { return 0, errors.New("must not run") }},
			retention: 0,
		},
		{
			name: "purged",
			purger: &mockDLQPurger{purgeFunc: func(_ context.Context, r time.Duration) (int, error) {
				if r != 24*time.Hour {
					return 0, errors.New("unexpected retention")
				}
				return 3, nil
			}},
			retention: 24 * time.Hour,
			want:      3,
		},
		{
			name:      "purge fails",
			purger:    &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) { return 0, errors.New("broker gone") }},
			retention: time.Hour,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gc := NewGarbageCollector(tt.purger, time.Minute, tt.retention, zap.NewNop())
			got, err := gc.Collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Collect() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGarbageCollector_Collect_MemoryQueue(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	q.deadLetter(NewAuditJob(models.AuditEntry{ID: uuid.New(), ConversationID: "conv-1"}))

	if n, err := NewGarbageCollector(q, time.Minute, time.Hour, nil).Collect(context.Background()); err != nil || n != 0 {
		t.Fatalf("fresh dead letter purged: n=%d err=%v", n, err)
	}
	q.mu.Lock()
	q.dead[0].at = time.Now().Add(-2 * time.Hour)
	q.mu.Unlock()
	if n, err := NewGarbageCollector(q, time.Minute, time.Hour, nil).Collect(context.Background()); err != nil || n != 1 {
		t.Fatalf("stale dead letter kept: n=%d err=%v", n, err)
	}
	if got := len(q.DeadLetters()); got != 0 {
		t.Errorf("dead letters = %d, want 0", got)
	}
}

func TestGarbageCollector_Start(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	purger := &mockDLQPurger{purgeFunc: func(context.Context, time.Duration) (int, error) {
		calls.Add(1)
		cancel()
		return 0, nil
	}}

	err := NewGarbageCollector(purger, 24*time.Hour, time.Hour, zap.NewNop()).Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
	if calls.Load() != 1 {
		t.Errorf("purge calls = %d, want one sweep on start", calls.Load())
	}
}

func TestGarbageCollector_Start_Disabled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewGarbageCollector(nil, time.Minute, 0, nil).Start(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v", err)
	}
}
