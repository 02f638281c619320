package applier

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/google/uuid"
)

// createPillar creates a pillar, or merges into an existing pillar of the same name
func (a *Applier) createPillar(ctx context.Context, p *models.CreatePillarPayload) (*applied, error) {
	name := strings.TrimSpace(p.Name)
	existing, err := a.findPillarByName(ctx, name)
	if err != nil {
		return nil, err
	}
	now := a.temporal.Now()

	pillar := existing
	verb := "Updated existing pillar"
	if pillar == nil {
		verb = "Created pillar"
		pillar = &models.Pillar{
			ID:        uuid.New(),
			Name:      name,
			Emoji:     offline.PickEmoji(name),
			CreatedAt: now,
		}
	}
	if err := pillar.Apply(p.PillarFields); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidCommand, err)
	}
	pillar.UpdatedAt = now

	if err := a.store.SavePillar(ctx, pillar); err != nil {
		return nil, err
	}
	return &applied{
		message:  fmt.Sprintf("%s %s %s%s", verb, pillar.Emoji, pillar.Name, describeFields(&p.PillarFields)),
		entityID: idPtr(pillar.ID),
	}, nil
}

func (a *Applier) updatePillar(ctx context.Context, p *models.UpdatePillarPayload) (*applied, error) {
	pillar, err := a.resolvePillar(ctx, p.Target)
	if err != nil {
		return nil, err
	}
	if !p.HasChanges() {
		return nil, &clarifyError{question: fmt.Sprintf("What would you like to change about %s?", pillar.Name)}
	}

	oldName := pillar.Name
	if p.Rename != nil && strings.TrimSpace(*p.Rename) != "" {
		pillar.Name = strings.TrimSpace(*p.Rename)
	}
	if err := pillar.Apply(p.PillarFields); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidCommand, err)
	}
	pillar.UpdatedAt = a.temporal.Now()

	if err := a.store.SavePillar(ctx, pillar); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("Updated pillar %s%s", pillar.Name, describeFields(&p.PillarFields))
	if pillar.Name != oldName {
		msg = fmt.Sprintf("Renamed pillar %s to %s%s", oldName, pillar.Name, describeFields(&p.PillarFields))
	}
	return &applied{message: msg, entityID: idPtr(pillar.ID)}, nil
}

func describeFields(f *models.PillarFields) string {
	var parts []string
	add := func(label string, items []string) {
		if len(items) > 0 {
			parts = append(parts, label+": "+strings.Join(items, ", "))
		}
	}
	add("values", f.Values)
	add("habits", f.Habits)
	add("constraints", f.Constraints)
	if len(f.QuietHours) > 0 {
		windows := make([]string, 0, len(f.QuietHours))
		for _, q := range f.QuietHours {
			windows = append(windows, q.Start+"-"+q.End)
		}
		parts = append(parts, "quiet hours: "+strings.Join(windows, ", "))
	}
	if f.Frequency != nil {
		parts = append(parts, "frequency: "+*f.Frequency)
	}
	if f.Description != nil {
		parts = append(parts, "description")
	}
	if f.Wisdom != nil {
		parts = append(parts, "wisdom")
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}
