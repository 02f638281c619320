package applier

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (a *Applier) createGoal(ctx context.Context, p *models.CreateGoalPayload) (*applied, error) {
	now := a.temporal.Now()
	g := &models.Goal{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(p.Title),
		Detail:     p.Detail,
		Importance: models.DefaultImportance,
		Emoji:      p.Emoji,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if p.Importance != 0 {
		g.Importance = models.ClampImportance(p.Importance)
	}
	if g.Emoji == "" {
		g.Emoji = offline.PickEmoji(g.Title)
	}
	for _, n := range p.Nodes {
		g.Nodes = append(g.Nodes, models.GoalNode{ID: uuid.New(), NodeDescriptor: n, CreatedAt: now})
	}

	// A missing pillar does not block the goal
	if p.Pillar != nil && !p.Pillar.Empty() {
		pillar, err := a.resolvePillar(ctx, *p.Pillar)
		if err != nil {
			a.logger.Info("goal_pillar_unresolved",
				zap.String("goal", g.Title),
				zap.String("pillar", p.Pillar.Name),
				zap.Error(err),
			)
		} else {
			g.PillarID = idPtr(pillar.ID)
		}
	}

	if err := a.store.SaveGoal(ctx, g); err != nil {
		return nil, err
	}
	return &applied{
		message:  fmt.Sprintf("Created goal %s %s (importance %d)", g.Emoji, g.Title, g.Importance),
		entityID: idPtr(g.ID),
	}, nil
}

func (a *Applier) updateGoal(ctx context.Context, p *models.UpdateGoalPayload) (*applied, error) {
	g, err := a.resolveGoal(ctx, p.Target)
	if err != nil {
		return nil, err
	}
	if !p.HasChanges() {
		return nil, &clarifyError{question: fmt.Sprintf("What would you like to change about %s?", g.Title)}
	}

	var changes []string
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		g.Title = strings.TrimSpace(*p.Title)
		changes = append(changes, "title")
	}
	if p.Detail != nil {
		g.Detail = *p.Detail
		changes = append(changes, "detail")
	}
	if p.Importance != nil {
		g.Importance = models.ClampImportance(*p.Importance)
		changes = append(changes, fmt.Sprintf("importance %d", g.Importance))
	}
	if p.Emoji != nil {
		g.Emoji = *p.Emoji
		changes = append(changes, "emoji")
	}
	g.UpdatedAt = a.temporal.Now()

	if err := a.store.SaveGoal(ctx, g); err != nil {
		return nil, err
	}
	return &applied{
		message:  fmt.Sprintf("Updated goal %s (%s)", g.Title, strings.Join(changes, ", ")),
		entityID: idPtr(g.ID),
	}, nil
}

func (a *Applier) addNode(ctx context.Context, p *models.AddNodePayload) (*applied, error) {
	g, err := a.resolveGoal(ctx, p.Goal)
	if err != nil {
		return nil, err
	}
	now := a.temporal.Now()
	g.Nodes = append(g.Nodes, models.GoalNode{ID: uuid.New(), NodeDescriptor: p.Node, CreatedAt: now})
	g.UpdatedAt = now

	if err := a.store.SaveGoal(ctx, g); err != nil {
		return nil, err
	}
	return &applied{
		message:  fmt.Sprintf("Added %s %q to %s", p.Node.Type, p.Node.Title, g.Title),
		entityID: idPtr(g.ID),
	}, nil
}
