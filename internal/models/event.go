package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a scheduled time block on the calendar
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	EnergyTag string     `json:"energy_tag,omitempty"`
	Emoji     string     `json:"emoji,omitempty"`
	ChainID   *uuid.UUID `json:"chain_id,omitempty"`
	PillarID  *uuid.UUID `json:"pillar_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Duration returns the length of the event
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Chain is an ordered sequence of time blocks meant to be scheduled together
type Chain struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	EventIDs  []uuid.UUID `json:"event_ids"`
	CreatedAt time.Time   `json:"created_at"`
}

// DomainSnapshot is the read-only view of the store handed to the backend
// prompt builder and to offline reference resolution.
type DomainSnapshot struct {
	Goals   []Goal   `json:"goals"`
	Pillars []Pillar `json:"pillars"`
	Chains  []Chain  `json:"chains"`
}
