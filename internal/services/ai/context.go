package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

// ErrContextNotFound is returned by a ContextStore with no entry for a conversation
var ErrContextNotFound = errors.New("conversation context not found")

// ContextStore persists per-conversation energy and mood
type ContextStore interface {
	GetContext(ctx context.Context, conversationID string) (*models.ConversationContext, error)
	SaveContext(ctx context.Context, cc *models.ConversationContext) error
}

// ContextService manages the conversation context sent with each prompt
type ContextService struct {
	store ContextStore
	now   func() time.Time
}

// NewContextService creates a new context service
func NewContextService(store ContextStore) *ContextService {
	return &ContextService{store: store, now: time.Now}
}

// GetOrCreateContext gets or creates the context for a conversation
func (s *ContextService) GetOrCreateContext(ctx context.Context, conversationID string) (*models.ConversationContext, error) {
	cc, err := s.store.GetContext(ctx, conversationID)
	if err == nil {
		return cc, nil
	}
	if !errors.Is(err, ErrContextNotFound) {
		return nil, fmt.Errorf("failed to load conversation context: %w", err)
	}

	cc = &models.ConversationContext{
		ConversationID: conversationID,
		Energy:         models.DefaultEnergy,
		Mood:           models.DefaultMood,
		UpdatedAt:      s.now(),
	}
	if err := s.store.SaveContext(ctx, cc); err != nil {
		return nil, fmt.Errorf("failed to create conversation context: %w", err)
	}
	return cc, nil
}

// UpdateContext sets energy and mood. Blank values leave the current value.
func (s *ContextService) UpdateContext(ctx context.Context, conversationID, energy, mood string) (*models.ConversationContext, error) {
	cc, err := s.GetOrCreateContext(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if e := strings.TrimSpace(energy); e != "" {
		cc.Energy = strings.ToLower(e)
	}
	if m := strings.TrimSpace(mood); m != "" {
		cc.Mood = strings.ToLower(m)
	}
	cc.UpdatedAt = s.now()

	if err := s.store.SaveContext(ctx, cc); err != nil {
		return nil, fmt.Errorf("failed to update conversation context: %w", err)
	}
	return cc, nil
}

// LoadContextForPrompt returns the context for the prompt, falling back to
// defaults when the store cannot be read.
func (s *ContextService) LoadContextForPrompt(ctx context.Context, conversationID string) models.ConversationContext {
	cc, err := s.GetOrCreateContext(ctx, conversationID)
	if err != nil {
		return models.ConversationContext{
			ConversationID: conversationID,
			Energy:         models.DefaultEnergy,
			Mood:           models.DefaultMood,
		}
	}
	return *cc
}
