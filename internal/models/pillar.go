package models

import (
	"time"

	"github.com/google/uuid"
)

// Pillar is a recurring principle or habit that biases scheduling
// suggestions without itself being an event.
type Pillar struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Wisdom      string       `json:"wisdom,omitempty"`
	Values      []string     `json:"values,omitempty"`
	Habits      []string     `json:"habits,omitempty"`
	Constraints []string     `json:"constraints,omitempty"`
	QuietHours  []TimeWindow `json:"quiet_hours,omitempty"`
	Frequency   string       `json:"frequency,omitempty"`
	Emoji       string       `json:"emoji,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// InQuietHours reports whether the given clock time falls inside one of the
// pillar's quiet-hour windows.
func (p *Pillar) InQuietHours(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	for _, w := range p.QuietHours {
		if minutes >= w.StartMinutes() && minutes < w.EndMinutes() {
			return true
		}
	}
	return false
}
