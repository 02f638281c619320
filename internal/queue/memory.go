package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned when enqueueing on a closed queue
var ErrQueueClosed = errors.New("queue closed")

// MemoryQueue is an in-process JobQueue used when no broker is configured.
// A nack without requeue moves the job to an in-memory dead letter list.
type MemoryQueue struct {
	jobs   chan *Job
	sendMu sync.RWMutex // guards closed and sends on jobs
	closed bool

	mu       sync.Mutex
	dead     []deadJob
	nextTag  uint64
	inFlight map[uint64]*Job
}

type deadJob struct {
	job *Job
	at  time.Time
}

var (
	_ JobQueue  = (*MemoryQueue)(nil)
	_ DLQPurger = (*MemoryQueue)(nil)
)

// NewMemoryQueue creates a queue holding up to capacity pending jobs
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{
		jobs:     make(chan *Job, capacity),
		inFlight: make(map[uint64]*Job),
	}
}

// Enqueue adds a job, blocking while the queue is full
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume delivers jobs until ctx is cancelled or the queue is closed
func (q *MemoryQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	msgChan := make(chan *Message, max(prefetchCount, 1))
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				if job.IsExpired() {
					q.deadLetter(job)
					continue
				}
				msg := &Message{Job: job, DeliveryTag: q.track(job), Channel: q}
				select {
				case msgChan <- msg:
				case <-ctx.Done():
					_ = q.Nack(msg.DeliveryTag, false, true)
					return
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

func (q *MemoryQueue) track(job *Job) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextTag++
	q.inFlight[q.nextTag] = job
	return q.nextTag
}

func (q *MemoryQueue) settle(tag uint64) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.inFlight[tag]
	delete(q.inFlight, tag)
	return job, ok
}

func (q *MemoryQueue) deadLetter(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, deadJob{job: job, at: time.Now()})
}

// Ack implements amqp.Acknowledger
func (q *MemoryQueue) Ack(tag uint64, _ bool) error {
	q.settle(tag)
	return nil
}

// Nack implements amqp.Acknowledger
func (q *MemoryQueue) Nack(tag uint64, _ bool, requeue bool) error {
	job, ok := q.settle(tag)
	if !ok {
		return nil
	}
	if !requeue {
		q.deadLetter(job)
		return nil
	}

	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		q.deadLetter(job)
		return nil
	}
	select {
	case q.jobs <- job:
	default:
		q.deadLetter(job)
	}
	return nil
}

// Reject implements amqp.Acknowledger
func (q *MemoryQueue) Reject(tag uint64, requeue bool) error {
	return q.Nack(tag, false, requeue)
}

// DeadLetters returns the dead-lettered jobs
func (q *MemoryQueue) DeadLetters() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.dead))
	for i, d := range q.dead {
		out[i] = d.job
	}
	return out
}

// PurgeOlderThan drops dead letters older than retention
func (q *MemoryQueue) PurgeOlderThan(_ context.Context, retention time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	kept := q.dead[:0]
	for _, d := range q.dead {
		if d.at.After(cutoff) {
			kept = append(kept, d)
		}
	}
	purged := len(q.dead) - len(kept)
	q.dead = kept
	return purged, nil
}

// HealthCheck reports whether the queue is still open
func (q *MemoryQueue) HealthCheck(context.Context) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

// Close stops delivery once pending jobs are consumed
func (q *MemoryQueue) Close() error {
	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	return nil
}
