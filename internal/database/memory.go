package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests, the CLI and servers
// started without DATABASE_URL. Values are copied in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	goals    map[uuid.UUID]models.Goal
	pillars  map[uuid.UUID]models.Pillar
	chains   map[uuid.UUID]models.Chain
	events   map[uuid.UUID]models.Event
	contexts map[string]models.ConversationContext
	audit    []models.AuditEntry
	order    map[uuid.UUID]int
	seq      int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		goals:    make(map[uuid.UUID]models.Goal),
		pillars:  make(map[uuid.UUID]models.Pillar),
		chains:   make(map[uuid.UUID]models.Chain),
		events:   make(map[uuid.UUID]models.Event),
		contexts: make(map[string]models.ConversationContext),
		order:    make(map[uuid.UUID]int),
	}
}

// Snapshot returns goals, pillars and chains in insertion order
func (s *MemoryStore) Snapshot(ctx context.Context) (models.DomainSnapshot, error) {
	goals, _ := s.ListGoals(ctx)
	pillars, _ := s.ListPillars(ctx)
	chains, _ := s.ListChains(ctx)
	return models.DomainSnapshot{Goals: goals, Pillars: pillars, Chains: chains}, nil
}

func (s *MemoryStore) GetGoal(_ context.Context, id uuid.UUID) (*models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	g = copyGoal(g)
	return &g, nil
}

func (s *MemoryStore) ListGoals(_ context.Context) ([]models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		out = append(out, copyGoal(g))
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) SaveGoal(_ context.Context, goal *models.Goal) error {
	if goal.ID == uuid.Nil {
		goal.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(goal.ID)
	s.goals[goal.ID] = copyGoal(*goal)
	return nil
}

func (s *MemoryStore) GetPillar(_ context.Context, id uuid.UUID) (*models.Pillar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pillars[id]
	if !ok {
		return nil, fmt.Errorf("pillar %s: %w", id, ErrNotFound)
	}
	p = copyPillar(p)
	return &p, nil
}

func (s *MemoryStore) ListPillars(_ context.Context) ([]models.Pillar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Pillar, 0, len(s.pillars))
	for _, p := range s.pillars {
		out = append(out, copyPillar(p))
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) SavePillar(_ context.Context, pillar *models.Pillar) error {
	if pillar.ID == uuid.Nil {
		pillar.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(pillar.ID)
	s.pillars[pillar.ID] = copyPillar(*pillar)
	return nil
}

func (s *MemoryStore) ListChains(_ context.Context) ([]models.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chain, 0, len(s.chains))
	for _, c := range s.chains {
		c.EventIDs = append([]uuid.UUID(nil), c.EventIDs...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] < s.order[out[j].ID] })
	return out, nil
}

func (s *MemoryStore) SaveChain(_ context.Context, chain *models.Chain) error {
	if chain.ID == uuid.Nil {
		chain.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track(chain.ID)
	c := *chain
	c.EventIDs = append([]uuid.UUID(nil), chain.EventIDs...)
	s.chains[c.ID] = c
	return nil
}

func (s *MemoryStore) EventsBetween(_ context.Context, from, to time.Time) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Event
	for _, e := range s.events {
		if e.Start.Before(to) && e.End.After(from) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *MemoryStore) SaveEvent(_ context.Context, event *models.Event) error {
	if !event.End.After(event.Start) {
		return fmt.Errorf("event %q must end after it starts", event.Title)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = *event
	return nil
}

func (s *MemoryStore) GetContext(_ context.Context, conversationID string) (*models.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cc, ok := s.contexts[conversationID]
	if !ok {
		return nil, ai.ErrContextNotFound
	}
	return &cc, nil
}

func (s *MemoryStore) SaveContext(_ context.Context, cc *models.ConversationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[cc.ConversationID] = *cc
	return nil
}

// InsertAudit records an audit line
func (s *MemoryStore) InsertAudit(_ context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

// ListAudit returns the newest audit lines for a conversation first
func (s *MemoryStore) ListAudit(_ context.Context, conversationID string, limit int) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].ConversationID != conversationID {
			continue
		}
		out = append(out, s.audit[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// track must be called with the write lock held
func (s *MemoryStore) track(id uuid.UUID) {
	if _, ok := s.order[id]; !ok {
		s.seq++
		s.order[id] = s.seq
	}
}

func copyGoal(g models.Goal) models.Goal {
	g.Nodes = append([]models.GoalNode(nil), g.Nodes...)
	return g
}

func copyPillar(p models.Pillar) models.Pillar {
	p.Values = append([]string(nil), p.Values...)
	p.Habits = append([]string(nil), p.Habits...)
	p.Constraints = append([]string(nil), p.Constraints...)
	p.QuietHours = append([]models.TimeWindow(nil), p.QuietHours...)
	return p
}
