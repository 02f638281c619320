package ai

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the backend circuit breaker
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "llm-backend",
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// BreakerBackend wraps a Backend with a circuit breaker. While the breaker is
// open calls fail immediately with gobreaker.ErrOpenState, so the interpreter
// goes straight to the offline parser instead of waiting out a timeout.
type BreakerBackend struct {
	next    Backend
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ Backend = (*BreakerBackend)(nil)

// NewBreakerBackend creates a breaker around next
func NewBreakerBackend(next Backend, config BreakerConfig, logger *zap.Logger) *BreakerBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &BreakerBackend{next: next, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("backend_breaker_state_changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Abstentions and malformed replies mean the backend is up
		IsSuccessful: func(err error) bool {
			switch Classify(err) {
			case FailureNone, FailureAbstained, FailureMalformed:
				return true
			default:
				return false
			}
		},
	})
	return b
}

// Interpret calls the wrapped backend through the breaker
func (b *BreakerBackend) Interpret(ctx context.Context, req *Request) (string, error) {
	out, err := b.breaker.Execute(func() (any, error) {
		return b.next.Interpret(ctx, req)
	})
	if err != nil {
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

// State reports the breaker state
func (b *BreakerBackend) State() gobreaker.State {
	return b.breaker.State()
}
