package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is the typed action a backend response asks for
type ActionType string

const (
	ActionCreateEvent       ActionType = "createEvent"
	ActionCreateGoal        ActionType = "createGoal"
	ActionCreatePillar      ActionType = "createPillar"
	ActionCreateChain       ActionType = "createChain"
	ActionUpdateGoal        ActionType = "updateGoal"
	ActionUpdatePillar      ActionType = "updatePillar"
	ActionAddNode           ActionType = "addNode"
	ActionSuggestActivities ActionType = "suggestActivities"
	ActionGeneralChat       ActionType = "generalChat"
	ActionAbstain           ActionType = "abstain"
)

// Valid reports whether the action is a known value
func (a ActionType) Valid() bool {
	switch a {
	case ActionCreateEvent, ActionCreateGoal, ActionCreatePillar, ActionCreateChain,
		ActionUpdateGoal, ActionUpdatePillar, ActionAddNode,
		ActionSuggestActivities, ActionGeneralChat, ActionAbstain:
		return true
	default:
		return false
	}
}

// Suggestion is a staged, reversible proposal. It never mutates domain
// state until accepted.
type Suggestion struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title" validate:"required,max=200"`
	DurationSeconds int           `json:"duration_seconds" validate:"gte=0"`
	EnergyTag       string        `json:"energy_tag,omitempty"`
	EmojiTag        string        `json:"emoji_tag,omitempty"`
	Confidence      float64       `json:"confidence" validate:"gte=0,lte=1"`
	Explanation     string        `json:"explanation,omitempty"`
	Commands        []MindCommand `json:"commands,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	// ReferenceDate is the day the user was viewing when it was staged
	ReferenceDate time.Time `json:"reference_date,omitzero"`
}

// Duration returns the suggested duration
func (s *Suggestion) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// AIResponse is the normalized shape produced by both the remote backend
// and the offline parser.
type AIResponse struct {
	Text         string       `json:"text"`
	Suggestions  []Suggestion `json:"suggestions"`
	ActionType   *ActionType  `json:"action_type,omitempty"`
	CreatedItems []string     `json:"created_items,omitempty"`
	Confidence   float64      `json:"confidence" validate:"gte=0,lte=1"`
}

// Action returns the typed action or the empty string for legacy responses
func (r *AIResponse) Action() ActionType {
	if r.ActionType == nil {
		return ""
	}
	return *r.ActionType
}

// ActionPtr is a helper for building responses
func ActionPtr(a ActionType) *ActionType {
	return &a
}

// Utterance is one line of user input
type Utterance struct {
	Text           string    `json:"text" validate:"required,max=4000"`
	SentAt         time.Time `json:"sent_at"`
	ReferenceDate  time.Time `json:"reference_date"`
	ConversationID string    `json:"conversation_id"`
}

// ParsedEventTime distinguishes values the user named from defaulted ones.
// Only defaulted values may be auto-corrected downstream.
type ParsedEventTime struct {
	Date            time.Time `json:"date"`
	HasExplicitDate bool      `json:"has_explicit_date"`
	HasExplicitTime bool      `json:"has_explicit_time"`
}
