package models

import (
	"time"

	"github.com/google/uuid"
)

// NodeType is the kind of breakdown item attached to a goal
type NodeType string

const (
	NodeTypeSubgoal  NodeType = "subgoal"
	NodeTypeTask     NodeType = "task"
	NodeTypeNote     NodeType = "note"
	NodeTypeResource NodeType = "resource"
	NodeTypeMetric   NodeType = "metric"
)

// Valid reports whether the node type is one of the known values
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeSubgoal, NodeTypeTask, NodeTypeNote, NodeTypeResource, NodeTypeMetric:
		return true
	default:
		return false
	}
}

const (
	// MinImportance is the lowest goal importance
	MinImportance = 1
	// MaxImportance is the highest goal importance
	MaxImportance = 5
	// DefaultImportance is used when neither the user nor the model named one
	DefaultImportance = 3
)

// NodeDescriptor describes a node that can be attached to a goal
type NodeDescriptor struct {
	Type   NodeType `json:"type" validate:"required,node_type"`
	Title  string   `json:"title" validate:"required,max=200"`
	Detail *string  `json:"detail,omitempty"`
	Pinned bool     `json:"pinned"`
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// GoalNode is a node stored on a goal
type GoalNode struct {
	ID uuid.UUID `json:"id"`
	NodeDescriptor
	CreatedAt time.Time `json:"created_at"`
}

// Goal represents a user objective
type Goal struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Detail     string     `json:"detail,omitempty"`
	Importance int        `json:"importance"`
	Emoji      string     `json:"emoji,omitempty"`
	PillarID   *uuid.UUID `json:"pillar_id,omitempty"`
	Nodes      []GoalNode `json:"nodes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ClampImportance keeps an importance value inside the 1..5 ladder
func ClampImportance(v int) int {
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}
