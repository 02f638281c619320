// Package schedule places new time blocks without overlapping existing ones.
package schedule

import (
	"sort"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

// Block is an occupied interval on the calendar
type Block struct {
	Start time.Time
	End   time.Time
}

// FindSlot returns the earliest start at or after proposed whose interval
// does not overlap any block. When proposed is earlier today than now it is
// clamped to now first. Blocks are swept once in start order with first fit;
// a candidate may end exactly where the next block begins.
func FindSlot(proposed time.Time, duration time.Duration, blocks []Block, now time.Time) time.Time {
	candidate := proposed
	if sameDay(proposed, now) && proposed.Before(now) {
		candidate = now
	}

	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	for _, b := range sorted {
		if !b.End.After(candidate) {
			continue
		}
		if !candidate.Add(duration).After(b.Start) {
			return candidate
		}
		candidate = b.End
	}
	return candidate
}

// Finder binds FindSlot to a clock
type Finder struct {
	now func() time.Time
}

// NewFinder creates a finder. A nil clock means time.Now.
func NewFinder(now func() time.Time) *Finder {
	if now == nil {
		now = time.Now
	}
	return &Finder{now: now}
}

// Find places a block of the given duration starting no earlier than proposed
func (f *Finder) Find(proposed time.Time, duration time.Duration, blocks []Block) time.Time {
	return FindSlot(proposed, duration, blocks, f.now().In(proposed.Location()))
}

// BlocksOn returns the blocks of the events that start on the same calendar
// day as day, in day's location.
func BlocksOn(events []models.Event, day time.Time) []Block {
	var out []Block
	for _, e := range events {
		if sameDay(e.Start.In(day.Location()), day) {
			out = append(out, Block{Start: e.Start, End: e.End})
		}
	}
	return out
}

// Overlaps reports whether [start, start+duration) intersects any block
func Overlaps(start time.Time, duration time.Duration, blocks []Block) bool {
	end := start.Add(duration)
	for _, b := range blocks {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
