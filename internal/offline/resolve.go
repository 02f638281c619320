package offline

import (
	"sort"
	"strings"

	"github.com/benvon/smart-planner/internal/models"
)

// EntityKind tells goals and pillars apart in a Match
type EntityKind string

const (
	EntityGoal   EntityKind = "goal"
	EntityPillar EntityKind = "pillar"
)

// Match is the entity an utterance refers to
type Match struct {
	Kind   EntityKind
	Goal   *models.Goal
	Pillar *models.Pillar
	Name   string
	// Ambiguous lists other candidates that matched with the same name length
	Ambiguous []string
}

type candidate struct {
	kind   EntityKind
	name   string
	goal   *models.Goal
	pillar *models.Pillar
}

// ResolveEntity performs a greedy longest-name-first case-insensitive
// substring match of text against the known goal titles and pillar names.
// A longer name beats a shorter one. Equal-length hits are broken in favour
// of the kind the text names ("goal" or "pillar"), then pillars, then
// lexical order, and the losers are reported as ambiguous.
func ResolveEntity(text string, goals []models.Goal, pillars []models.Pillar) *Match {
	lower := strings.ToLower(text)
	var hits []candidate
	for i := range goals {
		name := strings.TrimSpace(goals[i].Title)
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			hits = append(hits, candidate{kind: EntityGoal, name: name, goal: &goals[i]})
		}
	}
	for i := range pillars {
		name := strings.TrimSpace(pillars[i].Name)
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			hits = append(hits, candidate{kind: EntityPillar, name: name, pillar: &pillars[i]})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	preferred := preferredKind(lower)
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if len(a.name) != len(b.name) {
			return len(a.name) > len(b.name)
		}
		if a.kind != b.kind {
			if a.kind == preferred {
				return true
			}
			if b.kind == preferred {
				return false
			}
			return a.kind == EntityPillar
		}
		return strings.ToLower(a.name) < strings.ToLower(b.name)
	})

	best := hits[0]
	m := &Match{Kind: best.kind, Goal: best.goal, Pillar: best.pillar, Name: best.name}
	for _, h := range hits[1:] {
		if len(h.name) == len(best.name) {
			m.Ambiguous = append(m.Ambiguous, string(h.kind)+":"+h.name)
		}
	}
	return m
}

func preferredKind(lower string) EntityKind {
	g := strings.Contains(lower, "goal")
	p := strings.Contains(lower, "pillar")
	switch {
	case g && !p:
		return EntityGoal
	case p && !g:
		return EntityPillar
	default:
		return ""
	}
}

// BestNameMatch resolves a free-text name against candidate names: a
// case-insensitive exact match first, then the longest candidate contained
// in the name, then the shortest candidate containing the name. It returns
// -1 when nothing matches.
func BestNameMatch(name string, candidates []string) int {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return -1
	}
	for i, c := range candidates {
		if strings.ToLower(strings.TrimSpace(c)) == needle {
			return i
		}
	}
	best := -1
	for i, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || !strings.Contains(needle, c) {
			continue
		}
		if best < 0 || len(c) > len(strings.TrimSpace(candidates[best])) {
			best = i
		}
	}
	if best >= 0 {
		return best
	}
	for i, c := range candidates {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || !strings.Contains(c, needle) {
			continue
		}
		if best < 0 || len(c) < len(strings.TrimSpace(candidates[best])) {
			best = i
		}
	}
	return best
}
