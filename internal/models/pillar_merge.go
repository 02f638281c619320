package models

import "strings"

// Apply merges the populated fields into the pillar. List fields are merged
// with case-insensitive dedupe keeping the first-seen casing; scalar fields
// are overwritten.
func (p *Pillar) Apply(f PillarFields) error {
	if f.Description != nil {
		p.Description = *f.Description
	}
	if f.Wisdom != nil {
		p.Wisdom = *f.Wisdom
	}
	if f.Frequency != nil {
		p.Frequency = *f.Frequency
	}
	if f.Emoji != nil {
		p.Emoji = *f.Emoji
	}
	p.Values = MergeFold(p.Values, f.Values)
	p.Habits = MergeFold(p.Habits, f.Habits)
	p.Constraints = MergeFold(p.Constraints, f.Constraints)

	for _, q := range f.QuietHours {
		w, err := q.Window()
		if err != nil {
			return err
		}
		p.QuietHours = appendWindowIfNotExists(p.QuietHours, w)
	}
	return nil
}

// DedupeFold removes case-insensitive duplicates, keeping the first casing
// and the original order. Blank entries are dropped.
func DedupeFold(items []string) []string {
	return MergeFold(nil, items)
}

// MergeFold appends additions to existing, skipping entries already present
// under case-insensitive comparison.
func MergeFold(existing, additions []string) []string {
	if len(additions) == 0 {
		return existing
	}
	seen := make(map[string]struct{}, len(existing)+len(additions))
	out := make([]string, 0, len(existing)+len(additions))
	for _, s := range existing {
		seen[strings.ToLower(s)] = struct{}{}
		out = append(out, s)
	}
	for _, s := range additions {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func appendWindowIfNotExists(ws []TimeWindow, w TimeWindow) []TimeWindow {
	for _, existing := range ws {
		if existing == w {
			return ws
		}
	}
	return append(ws, w)
}
