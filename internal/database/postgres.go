package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store on Postgres
type PostgresStore struct {
	db *DB
}

// NewPostgresStore creates a new Postgres-backed store
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Snapshot loads goals, pillars and chains
func (s *PostgresStore) Snapshot(ctx context.Context) (models.DomainSnapshot, error) {
	goals, err := s.ListGoals(ctx)
	if err != nil {
		return models.DomainSnapshot{}, err
	}
	pillars, err := s.ListPillars(ctx)
	if err != nil {
		return models.DomainSnapshot{}, err
	}
	chains, err := s.ListChains(ctx)
	if err != nil {
		return models.DomainSnapshot{}, err
	}
	return models.DomainSnapshot{Goals: goals, Pillars: pillars, Chains: chains}, nil
}

const goalColumns = `id, title, detail, importance, emoji, pillar_id, nodes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (models.Goal, error) {
	var g models.Goal
	var pillarID uuid.NullUUID
	var nodesJSON []byte
	if err := row.Scan(&g.ID, &g.Title, &g.Detail, &g.Importance, &g.Emoji, &pillarID, &nodesJSON, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return g, err
	}
	if pillarID.Valid {
		g.PillarID = &pillarID.UUID
	}
	if len(nodesJSON) > 0 {
		if err := json.Unmarshal(nodesJSON, &g.Nodes); err != nil {
			return g, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}
	return g, nil
}

// GetGoal retrieves a goal by ID
func (s *PostgresStore) GetGoal(ctx context.Context, id uuid.UUID) (*models.Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &g, nil
}

// ListGoals returns all goals ordered by creation time
func (s *PostgresStore) ListGoals(ctx context.Context) ([]models.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	goals := []models.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// SaveGoal inserts or replaces a goal
func (s *PostgresStore) SaveGoal(ctx context.Context, goal *models.Goal) error {
	if goal.ID == uuid.Nil {
		goal.ID = uuid.New()
	}
	nodesJSON, err := json.Marshal(goal.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	now := time.Now()
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    detail = EXCLUDED.detail,
		    importance = EXCLUDED.importance,
		    emoji = EXCLUDED.emoji,
		    pillar_id = EXCLUDED.pillar_id,
		    nodes = EXCLUDED.nodes,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		goal.ID,
		goal.Title,
		goal.Detail,
		goal.Importance,
		goal.Emoji,
		nullUUID(goal.PillarID),
		nodesJSON,
		goal.CreatedAt,
		now,
	).Scan(&goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

const pillarColumns = `id, name, description, wisdom, pillar_values, habits, constraints, quiet_hours, frequency, emoji, created_at, updated_at`

func scanPillar(row rowScanner) (models.Pillar, error) {
	var p models.Pillar
	var quiet string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Wisdom,
		pq.Array(&p.Values), pq.Array(&p.Habits), pq.Array(&p.Constraints),
		&quiet, &p.Frequency, &p.Emoji, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if quiet != "" {
		windows, err := models.ParseTimeWindows(quiet)
		if err != nil {
			return p, fmt.Errorf("failed to parse quiet hours for pillar %s: %w", p.ID, err)
		}
		p.QuietHours = windows
	}
	return p, nil
}

// GetPillar retrieves a pillar by ID
func (s *PostgresStore) GetPillar(ctx context.Context, id uuid.UUID) (*models.Pillar, error) {
	p, err := scanPillar(s.db.QueryRowContext(ctx, `SELECT `+pillarColumns+` FROM pillars WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pillar %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pillar: %w", err)
	}
	return &p, nil
}

// ListPillars returns all pillars ordered by creation time
func (s *PostgresStore) ListPillars(ctx context.Context) ([]models.Pillar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+pillarColumns+` FROM pillars ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pillars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	pillars := []models.Pillar{}
	for rows.Next() {
		p, err := scanPillar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pillar: %w", err)
		}
		pillars = append(pillars, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pillars: %w", err)
	}
	return pillars, nil
}

// SavePillar inserts or replaces a pillar. Quiet hours are stored in their
// canonical "HH:MM-HH:MM, ..." text form.
func (s *PostgresStore) SavePillar(ctx context.Context, pillar *models.Pillar) error {
	if pillar.ID == uuid.Nil {
		pillar.ID = uuid.New()
	}
	now := time.Now()
	if pillar.CreatedAt.IsZero() {
		pillar.CreatedAt = now
	}
	query := `
		INSERT INTO pillars (` + pillarColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    wisdom = EXCLUDED.wisdom,
		    pillar_values = EXCLUDED.pillar_values,
		    habits = EXCLUDED.habits,
		    constraints = EXCLUDED.constraints,
		    quiet_hours = EXCLUDED.quiet_hours,
		    frequency = EXCLUDED.frequency,
		    emoji = EXCLUDED.emoji,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query,
		pillar.ID,
		pillar.Name,
		pillar.Description,
		pillar.Wisdom,
		pq.Array(nonNil(pillar.Values)),
		pq.Array(nonNil(pillar.Habits)),
		pq.Array(nonNil(pillar.Constraints)),
		models.FormatTimeWindows(pillar.QuietHours),
		pillar.Frequency,
		pillar.Emoji,
		pillar.CreatedAt,
		now,
	).Scan(&pillar.CreatedAt, &pillar.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pillar: %w", err)
	}
	return nil
}

// ListChains returns all chains ordered by creation time
func (s *PostgresStore) ListChains(ctx context.Context) ([]models.Chain, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, event_ids, created_at FROM chains ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chains := []models.Chain{}
	for rows.Next() {
		var c models.Chain
		var ids pq.StringArray
		if err := rows.Scan(&c.ID, &c.Name, &ids, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		for _, raw := range ids {
			id, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid event id in chain %s: %w", c.ID, err)
			}
			c.EventIDs = append(c.EventIDs, id)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chains: %w", err)
	}
	return chains, nil
}

// SaveChain inserts or replaces a chain
func (s *PostgresStore) SaveChain(ctx context.Context, chain *models.Chain) error {
	if chain.ID == uuid.Nil {
		chain.ID = uuid.New()
	}
	if chain.CreatedAt.IsZero() {
		chain.CreatedAt = time.Now()
	}
	ids := make(pq.StringArray, 0, len(chain.EventIDs))
	for _, id := range chain.EventIDs {
		ids = append(ids, id.String())
	}
	query := `
		INSERT INTO chains (id, name, event_ids, created_at)
		VALUES ($1, $2, $3::uuid[], $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, event_ids = EXCLUDED.event_ids
	`
	if _, err := s.db.ExecContext(ctx, query, chain.ID, chain.Name, ids, chain.CreatedAt); err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}
	return nil
}

// EventsBetween returns events overlapping [from, to)
func (s *PostgresStore) EventsBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	query := `
		SELECT id, title, starts_at, ends_at, energy_tag, emoji, chain_id, pillar_id, created_at
		FROM events
		WHERE starts_at < $2 AND ends_at > $1
		ORDER BY starts_at
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		var chainID, pillarID uuid.NullUUID
		if err := rows.Scan(&e.ID, &e.Title, &e.Start, &e.End, &e.EnergyTag, &e.Emoji, &chainID, &pillarID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if chainID.Valid {
			e.ChainID = &chainID.UUID
		}
		if pillarID.Valid {
			e.PillarID = &pillarID.UUID
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// SaveEvent inserts or replaces an event
func (s *PostgresStore) SaveEvent(ctx context.Context, event *models.Event) error {
	if !event.End.After(event.Start) {
		return fmt.Errorf("event %q must end after it starts", event.Title)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO events (id, title, starts_at, ends_at, energy_tag, emoji, chain_id, pillar_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
		    starts_at = EXCLUDED.starts_at,
		    ends_at = EXCLUDED.ends_at,
		    energy_tag = EXCLUDED.energy_tag,
		    emoji = EXCLUDED.emoji,
		    chain_id = EXCLUDED.chain_id,
		    pillar_id = EXCLUDED.pillar_id
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.Title, event.Start, event.End, event.EnergyTag, event.Emoji,
		nullUUID(event.ChainID), nullUUID(event.PillarID), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// GetContext retrieves the conversation context
func (s *PostgresStore) GetContext(ctx context.Context, conversationID string) (*models.ConversationContext, error) {
	cc := &models.ConversationContext{ConversationID: conversationID}
	query := `SELECT energy, mood, updated_at FROM conversation_context WHERE conversation_id = $1`
	err := s.db.QueryRowContext(ctx, query, conversationID).Scan(&cc.Energy, &cc.Mood, &cc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ai.ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation context: %w", err)
	}
	return cc, nil
}

// SaveContext creates or updates the conversation context
func (s *PostgresStore) SaveContext(ctx context.Context, cc *models.ConversationContext) error {
	query := `
		INSERT INTO conversation_context (conversation_id, energy, mood, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (conversation_id) DO UPDATE
		SET energy = EXCLUDED.energy, mood = EXCLUDED.mood, updated_at = EXCLUDED.updated_at
	`
	if cc.UpdatedAt.IsZero() {
		cc.UpdatedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, query, cc.ConversationID, cc.Energy, cc.Mood, cc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save conversation context: %w", err)
	}
	return nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
