package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/google/uuid"
)

// AuditRepository handles command audit database operations
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAudit records an applied command. Re-delivered jobs carry the same
// ID and are ignored.
func (r *AuditRepository) InsertAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now()
	}
	query := `
		INSERT INTO command_audit (id, conversation_id, kind, entity_id, message, source, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ConversationID,
		string(entry.Kind),
		nullUUID(entry.EntityID),
		entry.Message,
		string(entry.Source),
		entry.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit lines for a conversation first
func (r *AuditRepository) ListAudit(ctx context.Context, conversationID string, limit int) ([]models.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, conversation_id, kind, entity_id, message, source, applied_at
		FROM command_audit
		WHERE conversation_id = $1
		ORDER BY applied_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var entityID uuid.NullUUID
		var kind, source string
		if err := rows.Scan(&e.ID, &e.ConversationID, &kind, &entityID, &e.Message, &source, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Kind = models.CommandKind(kind)
		e.Source = models.CommandSource(source)
		if entityID.Valid {
			e.EntityID = &entityID.UUID
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return out, nil
}
