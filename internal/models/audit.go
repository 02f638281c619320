package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationContext holds the per-conversation defaults sent to the backend
type ConversationContext struct {
	ConversationID string    `json:"conversation_id"`
	Energy         string    `json:"energy,omitempty"`
	Mood           string    `json:"mood,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	DefaultEnergy = "medium"
	DefaultMood   = "neutral"
)

// CommandSource records which path produced an applied command
type CommandSource string

const (
	SourceRemote   CommandSource = "remote"
	SourceOffline  CommandSource = "offline"
	SourceAccepted CommandSource = "accepted"
)

// AuditEntry is the persistent trace left by an applied command
type AuditEntry struct {
	ID             uuid.UUID     `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Kind           CommandKind   `json:"kind"`
	EntityID       *uuid.UUID    `json:"entity_id,omitempty"`
	Message        string        `json:"message"`
	Source         CommandSource `json:"source"`
	AppliedAt      time.Time     `json:"applied_at"`
}
