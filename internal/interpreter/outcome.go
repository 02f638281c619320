package interpreter

import (
	"github.com/benvon/smart-planner/internal/gate"
	"github.com/benvon/smart-planner/internal/models"
)

// OutcomeKind is how an utterance was resolved
type OutcomeKind string

const (
	OutcomeApplied       OutcomeKind = "applied"
	OutcomeStaged        OutcomeKind = "staged"
	OutcomeClarification OutcomeKind = "clarification"
	OutcomeStatus        OutcomeKind = "status"
)

// Path is which parser produced the commands
type Path string

const (
	PathRemote  Path = "remote"
	PathOffline Path = "offline"
	// PathAccepted marks outcomes of accepting a staged suggestion
	PathAccepted Path = "accepted"
)

// State is where the backend exchange ended before resolution
type State string

const (
	StateSent      State = "sent"
	StateResponded State = "responded"
	StateTimedOut  State = "timed_out"
	StateFailed    State = "failed"
	// StateResolved is used when no backend exchange took place
	StateResolved State = "resolved"
)

// StatusCouldNotApply is the status line when nothing could be applied
const StatusCouldNotApply = "Couldn't apply that. Nothing was changed."

// Outcome is the single resolution of one utterance
type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Path  Path        `json:"path"`
	State State       `json:"state"`

	// Message is the status line or the summary shown with the outcome
	Message       string              `json:"message"`
	Applied       []string            `json:"applied,omitempty"`
	Staged        []models.Suggestion `json:"staged,omitempty"`
	Clarification string              `json:"clarification,omitempty"`

	Decision   gate.Decision `json:"decision,omitempty"`
	Action     string        `json:"action,omitempty"`
	Confidence float64       `json:"confidence"`
}

func statusOutcome(message string) Outcome {
	if message == "" {
		message = StatusCouldNotApply
	}
	return Outcome{Kind: OutcomeStatus, Message: message}
}
