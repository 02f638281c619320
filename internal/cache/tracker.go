// Package cache tracks recent interaction outcomes per conversation. The
// gate uses a recent accepted or applied suggestion as a confidence signal.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSuccessWindow is how long a success counts as recent
const DefaultSuccessWindow = 30 * time.Minute

// SuccessTracker records applied and rejected outcomes
type SuccessTracker interface {
	RecordSuccess(ctx context.Context, conversationID string) error
	RecordRejection(ctx context.Context, conversationID string) error
	RecentSuccess(ctx context.Context, conversationID string) (bool, error)
}

var (
	_ SuccessTracker = (*MemorySuccessTracker)(nil)
	_ SuccessTracker = (*RedisSuccessTracker)(nil)
)

// MemorySuccessTracker keeps outcomes in process
type MemorySuccessTracker struct {
	mu     sync.Mutex
	last   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewMemorySuccessTracker creates an in-memory tracker. A nil clock means time.Now.
func NewMemorySuccessTracker(window time.Duration, now func() time.Time) *MemorySuccessTracker {
	if window <= 0 {
		window = DefaultSuccessWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemorySuccessTracker{last: make(map[string]time.Time), window: window, now: now}
}

func (m *MemorySuccessTracker) RecordSuccess(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[conversationID] = m.now()
	return nil
}

// RecordRejection forgets the conversation's last success
func (m *MemorySuccessTracker) RecordRejection(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.last, conversationID)
	return nil
}

func (m *MemorySuccessTracker) RecentSuccess(_ context.Context, conversationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[conversationID]
	if !ok {
		return false, nil
	}
	if m.now().Sub(t) > m.window {
		delete(m.last, conversationID)
		return false, nil
	}
	return true, nil
}

// RedisSuccessTracker shares outcomes across server replicas
type RedisSuccessTracker struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisClient parses the URL and verifies the connection
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSuccessTracker creates a Redis-backed tracker
func NewRedisSuccessTracker(client *redis.Client, window time.Duration) *RedisSuccessTracker {
	if window <= 0 {
		window = DefaultSuccessWindow
	}
	return &RedisSuccessTracker{client: client, window: window, prefix: "planner:success"}
}

func (r *RedisSuccessTracker) key(conversationID string) string {
	return r.prefix + ":" + conversationID
}

// RecordSuccess bumps the conversation's success counter and restarts its window
func (r *RedisSuccessTracker) RecordSuccess(ctx context.Context, conversationID string) error {
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, r.key(conversationID))
	pipe.Expire(ctx, r.key(conversationID), r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}
	return nil
}

func (r *RedisSuccessTracker) RecordRejection(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, r.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to record rejection: %w", err)
	}
	return nil
}

func (r *RedisSuccessTracker) RecentSuccess(ctx context.Context, conversationID string) (bool, error) {
	n, err := r.client.Get(ctx, r.key(conversationID)).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read success counter: %w", err)
	}
	return n > 0, nil
}
