package ai

import (
	"context"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

// Backend is the remote language-model backend. Interpret returns the raw
// reply text; decoding is left to the Decoder so that every backend shares
// the same strict schema.
type Backend interface {
	Interpret(ctx context.Context, req *Request) (string, error)
}

// Request is everything the backend needs to interpret one utterance
type Request struct {
	Utterance models.Utterance
	Snapshot  models.DomainSnapshot
	Context   models.ConversationContext
	Now       time.Time
}

// BackendFactory creates a backend from string configuration
type BackendFactory func(config map[string]string) (Backend, error)

// ProviderRegistry stores available backends
type ProviderRegistry struct {
	providers map[string]BackendFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]BackendFactory),
	}
}

// Register registers a backend factory
func (r *ProviderRegistry) Register(name string, factory BackendFactory) {
	r.providers[name] = factory
}

// GetProvider gets a backend by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Backend, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

// BackendFunc adapts a function to the Backend interface
type BackendFunc func(ctx context.Context, req *Request) (string, error)

// Interpret calls f
func (f BackendFunc) Interpret(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// Unavailable is the backend used when no provider is configured. Every
// call fails as unreachable, which sends the interpreter down the offline path.
var Unavailable Backend = BackendFunc(func(context.Context, *Request) (string, error) {
	return "", ErrBackendUnreachable
})
