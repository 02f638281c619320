package applier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
)

// resolveGoal finds a goal by ID, falling back to its title
func (a *Applier) resolveGoal(ctx context.Context, ref models.GoalReference) (*models.Goal, error) {
	if ref.ID != nil {
		g, err := a.store.GetGoal(ctx, *ref.ID)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	goals, err := a.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	titles := make([]string, len(goals))
	for i, g := range goals {
		titles[i] = g.Title
	}
	idx, err := matchName(ref.Title, titles)
	if err != nil {
		return nil, goalQuestion(ref.Title, err)
	}
	return &goals[idx], nil
}

// resolvePillar finds a pillar by ID, falling back to its name
func (a *Applier) resolvePillar(ctx context.Context, ref models.PillarReference) (*models.Pillar, error) {
	if ref.ID != nil {
		p, err := a.store.GetPillar(ctx, *ref.ID)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
	}

	pillars, err := a.store.ListPillars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pillars: %w", err)
	}
	names := make([]string, len(pillars))
	for i, p := range pillars {
		names[i] = p.Name
	}
	idx, err := matchName(ref.Name, names)
	if err != nil {
		return nil, pillarQuestion(ref.Name, err)
	}
	return &pillars[idx], nil
}

// matchName picks a candidate with offline.BestNameMatch. The pick is
// ambiguous when another candidate has the same name.
func matchName(name string, candidates []string) (int, error) {
	idx := offline.BestNameMatch(name, candidates)
	if idx < 0 {
		return -1, errUnresolved
	}
	chosen := strings.ToLower(strings.TrimSpace(candidates[idx]))
	for i, c := range candidates {
		if i != idx && strings.ToLower(strings.TrimSpace(c)) == chosen {
			return -1, ErrAmbiguousReference
		}
	}
	return idx, nil
}

func goalQuestion(title string, err error) error {
	switch {
	case errors.Is(err, ErrAmbiguousReference):
		return &clarifyError{question: fmt.Sprintf("I found more than one goal called %q. Which one did you mean?", title), err: err}
	case strings.TrimSpace(title) == "":
		return &clarifyError{question: "Which goal do you mean?", err: err}
	default:
		return &clarifyError{question: fmt.Sprintf("I couldn't find a goal called %q. Which goal do you mean?", title), err: err}
	}
}

func pillarQuestion(name string, err error) error {
	switch {
	case errors.Is(err, ErrAmbiguousReference):
		return &clarifyError{question: fmt.Sprintf("I found more than one pillar called %q. Which one did you mean?", name), err: err}
	case strings.TrimSpace(name) == "":
		return &clarifyError{question: "Which pillar do you mean?", err: err}
	default:
		return &clarifyError{question: fmt.Sprintf("I couldn't find a pillar called %q. Which pillar do you mean?", name), err: err}
	}
}

// findPillarByName returns the pillar with exactly this name, ignoring case
func (a *Applier) findPillarByName(ctx context.Context, name string) (*models.Pillar, error) {
	pillars, err := a.store.ListPillars(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pillars: %w", err)
	}
	for i := range pillars {
		if strings.EqualFold(strings.TrimSpace(pillars[i].Name), strings.TrimSpace(name)) {
			return &pillars[i], nil
		}
	}
	return nil, nil
}
