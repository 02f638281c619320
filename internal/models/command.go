package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CommandKind discriminates the MindCommand variants
type CommandKind string

const (
	CommandCreateGoal    CommandKind = "createGoal"
	CommandUpdateGoal    CommandKind = "updateGoal"
	CommandCreatePillar  CommandKind = "createPillar"
	CommandUpdatePillar  CommandKind = "updatePillar"
	CommandAddNode       CommandKind = "addNode"
	CommandClarification CommandKind = "clarification"
	CommandCreateEvent   CommandKind = "createEvent"
	CommandCreateChain   CommandKind = "createChain"
)

// ErrInvalidCommand is returned when a command payload does not match its kind
var ErrInvalidCommand = errors.New("invalid command")

// GoalReference points at an existing goal. ID wins over Title when both are set.
type GoalReference struct {
	ID    *uuid.UUID `json:"id,omitempty"`
	Title string     `json:"title,omitempty"`
}

// Empty reports whether the reference carries neither an id nor a title
func (r GoalReference) Empty() bool {
	return r.ID == nil && r.Title == ""
}

// PillarReference points at an existing pillar. ID wins over Name when both are set.
type PillarReference struct {
	ID   *uuid.UUID `json:"id,omitempty"`
	Name string     `json:"name,omitempty"`
}

// Empty reports whether the reference carries neither an id nor a name
func (r PillarReference) Empty() bool {
	return r.ID == nil && r.Name == ""
}

// QuietHourDescriptor is a quiet-hour window in "HH:MM" form
type QuietHourDescriptor struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// Window converts the descriptor into a TimeWindow
func (q QuietHourDescriptor) Window() (TimeWindow, error) {
	return ParseTimeWindow(q.Start + "-" + q.End)
}

// CreateGoalPayload carries the fields of a new goal
type CreateGoalPayload struct {
	Title      string           `json:"title" validate:"required,max=200"`
	Detail     string           `json:"detail,omitempty"`
	Importance int              `json:"importance,omitempty" validate:"omitempty,min=1,max=5"`
	Emoji      string           `json:"emoji,omitempty"`
	Pillar     *PillarReference `json:"pillar,omitempty"`
	Nodes      []NodeDescriptor `json:"nodes,omitempty" validate:"dive"`
}

// UpdateGoalPayload carries changes to an existing goal. Nil fields are left untouched.
type UpdateGoalPayload struct {
	Target     GoalReference `json:"target"`
	Title      *string       `json:"title,omitempty" validate:"omitempty,max=200"`
	Detail     *string       `json:"detail,omitempty"`
	Importance *int          `json:"importance,omitempty" validate:"omitempty,min=1,max=5"`
	Emoji      *string       `json:"emoji,omitempty"`
}

// HasChanges reports whether the update would touch at least one field
func (p *UpdateGoalPayload) HasChanges() bool {
	return p.Title != nil || p.Detail != nil || p.Importance != nil || p.Emoji != nil
}

// PillarFields are the mutable pillar attributes shared by create and update
type PillarFields struct {
	Description *string               `json:"description,omitempty"`
	Wisdom      *string               `json:"wisdom,omitempty"`
	Values      []string              `json:"values,omitempty"`
	Habits      []string              `json:"habits,omitempty"`
	Constraints []string              `json:"constraints,omitempty"`
	QuietHours  []QuietHourDescriptor `json:"quiet_hours,omitempty" validate:"dive"`
	Frequency   *string               `json:"frequency,omitempty"`
	Emoji       *string               `json:"emoji,omitempty"`
}

// Count returns how many fields are populated
func (f *PillarFields) Count() int {
	n := 0
	for _, set := range []bool{
		f.Description != nil, f.Wisdom != nil, len(f.Values) > 0, len(f.Habits) > 0,
		len(f.Constraints) > 0, len(f.QuietHours) > 0, f.Frequency != nil, f.Emoji != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// CreatePillarPayload carries the fields of a new pillar
type CreatePillarPayload struct {
	Name string `json:"name" validate:"required,max=120"`
	PillarFields
}

// UpdatePillarPayload carries changes to an existing pillar
type UpdatePillarPayload struct {
	Target PillarReference `json:"target"`
	Rename *string         `json:"rename,omitempty" validate:"omitempty,max=120"`
	PillarFields
}

// HasChanges reports whether the update would touch at least one field
func (p *UpdatePillarPayload) HasChanges() bool {
	return p.Rename != nil || p.Count() > 0
}

// AddNodePayload attaches a node to a goal
type AddNodePayload struct {
	Goal GoalReference  `json:"goal"`
	Node NodeDescriptor `json:"node"`
}

// ClarificationPayload asks the user a question instead of mutating anything
type ClarificationPayload struct {
	Question string `json:"question" validate:"required"`
}

// CreateEventPayload schedules a time block
type CreateEventPayload struct {
	Title           string           `json:"title" validate:"required,max=200"`
	When            *ParsedEventTime `json:"when,omitempty"`
	DurationSeconds int              `json:"duration_seconds,omitempty" validate:"gte=0"`
	EnergyTag       string           `json:"energy_tag,omitempty"`
	Emoji           string           `json:"emoji,omitempty"`
	Pillar          *PillarReference `json:"pillar,omitempty"`
}

// ChainBlock is a single block of a chain
type ChainBlock struct {
	Title           string `json:"title" validate:"required,max=200"`
	DurationSeconds int    `json:"duration_seconds" validate:"gt=0"`
	EnergyTag       string `json:"energy_tag,omitempty"`
	Emoji           string `json:"emoji,omitempty"`
}

// CreateChainPayload schedules an ordered sequence of blocks back to back
type CreateChainPayload struct {
	Name   string           `json:"name" validate:"required,max=120"`
	When   *ParsedEventTime `json:"when,omitempty"`
	Blocks []ChainBlock     `json:"blocks" validate:"required,min=1,dive"`
}

// MindCommand is a tagged variant. Exactly one payload matching Kind is set.
type MindCommand struct {
	Kind          CommandKind           `json:"kind"`
	CreateGoal    *CreateGoalPayload    `json:"create_goal,omitempty"`
	UpdateGoal    *UpdateGoalPayload    `json:"update_goal,omitempty"`
	CreatePillar  *CreatePillarPayload  `json:"create_pillar,omitempty"`
	UpdatePillar  *UpdatePillarPayload  `json:"update_pillar,omitempty"`
	AddNode       *AddNodePayload       `json:"add_node,omitempty"`
	Clarification *ClarificationPayload `json:"clarification,omitempty"`
	CreateEvent   *CreateEventPayload   `json:"create_event,omitempty"`
	CreateChain   *CreateChainPayload   `json:"create_chain,omitempty"`
}

// Validate checks that exactly the payload named by Kind is present
func (c *MindCommand) Validate() error {
	set := 0
	for _, p := range []bool{
		c.CreateGoal != nil, c.UpdateGoal != nil, c.CreatePillar != nil, c.UpdatePillar != nil,
		c.AddNode != nil, c.Clarification != nil, c.CreateEvent != nil, c.CreateChain != nil,
	} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %s has %d payloads", ErrInvalidCommand, c.Kind, set)
	}

	var ok bool
	switch c.Kind {
	case CommandCreateGoal:
		ok = c.CreateGoal != nil
	case CommandUpdateGoal:
		ok = c.UpdateGoal != nil && !c.UpdateGoal.Target.Empty()
	case CommandCreatePillar:
		ok = c.CreatePillar != nil
	case CommandUpdatePillar:
		ok = c.UpdatePillar != nil && !c.UpdatePillar.Target.Empty()
	case CommandAddNode:
		ok = c.AddNode != nil && !c.AddNode.Goal.Empty()
	case CommandClarification:
		ok = c.Clarification != nil
	case CommandCreateEvent:
		ok = c.CreateEvent != nil
	case CommandCreateChain:
		ok = c.CreateChain != nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match kind %s", ErrInvalidCommand, c.Kind)
	}
	return nil
}

// Action maps a command kind onto the gate action it is judged under
func (c *MindCommand) Action() ActionType {
	switch c.Kind {
	case CommandCreateGoal:
		return ActionCreateGoal
	case CommandUpdateGoal:
		return ActionUpdateGoal
	case CommandCreatePillar:
		return ActionCreatePillar
	case CommandUpdatePillar:
		return ActionUpdatePillar
	case CommandAddNode:
		return ActionAddNode
	case CommandCreateEvent:
		return ActionCreateEvent
	case CommandCreateChain:
		return ActionCreateChain
	default:
		return ActionGeneralChat
	}
}

// NewClarification builds a clarification command
func NewClarification(question string) MindCommand {
	return MindCommand{Kind: CommandClarification, Clarification: &ClarificationPayload{Question: question}}
}

// MindCommandResponse is what the interpreter hands to the applier
type MindCommandResponse struct {
	Summary  string        `json:"summary"`
	Commands []MindCommand `json:"commands"`
}

// Clarifications returns the questions carried by clarification commands
func (r *MindCommandResponse) Clarifications() []string {
	var out []string
	for _, c := range r.Commands {
		if c.Kind == CommandClarification && c.Clarification != nil {
			out = append(out, c.Clarification.Question)
		}
	}
	return out
}

// Actionable reports whether at least one command would mutate state
func (r *MindCommandResponse) Actionable() bool {
	for _, c := range r.Commands {
		if c.Kind != CommandClarification {
			return true
		}
	}
	return false
}

// ApplyResult is reported back by the applier
type ApplyResult struct {
	AppliedMessages []string `json:"applied_messages"`
	Clarification   *string  `json:"clarification,omitempty"`
	HasChanges      bool     `json:"has_changes"`
}
