package database

import (
	"context"
	"errors"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/google/uuid"
)

// ErrNotFound is returned when an entity does not exist
var ErrNotFound = errors.New("not found")

// Store is the planner's domain store. Save methods insert or replace by ID.
type Store interface {
	Snapshot(ctx context.Context) (models.DomainSnapshot, error)

	GetGoal(ctx context.Context, id uuid.UUID) (*models.Goal, error)
	ListGoals(ctx context.Context) ([]models.Goal, error)
	SaveGoal(ctx context.Context, goal *models.Goal) error

	GetPillar(ctx context.Context, id uuid.UUID) (*models.Pillar, error)
	ListPillars(ctx context.Context) ([]models.Pillar, error)
	SavePillar(ctx context.Context, pillar *models.Pillar) error

	ListChains(ctx context.Context) ([]models.Chain, error)
	SaveChain(ctx context.Context, chain *models.Chain) error

	// EventsBetween returns events overlapping [from, to) ordered by start
	EventsBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
	SaveEvent(ctx context.Context, event *models.Event) error

	ai.ContextStore
}

// AuditStore persists applied command audit lines
type AuditStore interface {
	InsertAudit(ctx context.Context, entry *models.AuditEntry) error
	ListAudit(ctx context.Context, conversationID string, limit int) ([]models.AuditEntry, error)
}

// Ensure concrete types implement the interfaces
var (
	_ Store      = (*MemoryStore)(nil)
	_ Store      = (*PostgresStore)(nil)
	_ AuditStore = (*MemoryStore)(nil)
	_ AuditStore = (*AuditRepository)(nil)
)
