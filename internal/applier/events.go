package applier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/benvon/smart-planner/internal/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const timeLayout = "Mon Jan 2 at 15:04"

// placement picks the start of a block of the given length. An explicit
// time is honored as is; anything else is slotted around that day's events.
func (a *Applier) placement(ctx context.Context, when *models.ParsedEventTime, duration time.Duration, opts ApplyOptions) (time.Time, error) {
	now := a.temporal.Now()
	if when != nil && when.HasExplicitTime {
		return when.Date, nil
	}

	var proposed time.Time
	switch {
	case when != nil:
		proposed = when.Date
	case !opts.ReferenceDate.IsZero() && !sameDate(opts.ReferenceDate, now):
		proposed = a.temporal.PreferredStart(opts.ReferenceDate)
	default:
		proposed = now
	}

	dayStart := time.Date(proposed.Year(), proposed.Month(), proposed.Day(), 0, 0, 0, 0, proposed.Location())
	events, err := a.store.EventsBetween(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load events: %w", err)
	}
	blocks := make([]schedule.Block, 0, len(events))
	for _, e := range events {
		blocks = append(blocks, schedule.Block{Start: e.Start, End: e.End})
	}

	start := schedule.FindSlot(proposed, duration, blocks, now.In(proposed.Location()))
	if !start.Equal(proposed) {
		a.logger.Debug("event_slot_moved",
			zap.Time("proposed", proposed),
			zap.Time("placed", start),
		)
	}
	return start, nil
}

func (a *Applier) createEvent(ctx context.Context, p *models.CreateEventPayload, opts ApplyOptions) (*applied, error) {
	duration := time.Duration(p.DurationSeconds) * time.Second
	if duration <= 0 {
		duration = a.defaultDuration
	}
	start, err := a.placement(ctx, p.When, duration, opts)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(p.Title)
	ev := &models.Event{
		ID:        uuid.New(),
		Title:     title,
		Start:     start,
		End:       start.Add(duration),
		EnergyTag: p.EnergyTag,
		Emoji:     p.Emoji,
		CreatedAt: a.temporal.Now(),
	}
	if ev.EnergyTag == "" {
		ev.EnergyTag = offline.EnergyTag(title)
	}
	if ev.Emoji == "" {
		ev.Emoji = offline.PickEmoji(title)
	}
	if p.Pillar != nil && !p.Pillar.Empty() {
		if pillar, err := a.resolvePillar(ctx, *p.Pillar); err == nil {
			ev.PillarID = idPtr(pillar.ID)
			if pillar.InQuietHours(ev.Start) {
				a.logger.Info("event_in_quiet_hours",
					zap.String("event", ev.Title),
					zap.String("pillar", pillar.Name),
				)
			}
		}
	}

	if err := a.store.SaveEvent(ctx, ev); err != nil {
		return nil, err
	}
	return &applied{
		message:  fmt.Sprintf("Scheduled %s %s on %s for %s", ev.Emoji, ev.Title, ev.Start.Format(timeLayout), formatDuration(duration)),
		entityID: idPtr(ev.ID),
	}, nil
}

// createChain places the blocks back to back in one free slot
func (a *Applier) createChain(ctx context.Context, p *models.CreateChainPayload, opts ApplyOptions) (*applied, error) {
	var total time.Duration
	for _, b := range p.Blocks {
		total += time.Duration(b.DurationSeconds) * time.Second
	}
	start, err := a.placement(ctx, p.When, total, opts)
	if err != nil {
		return nil, err
	}

	now := a.temporal.Now()
	chain := &models.Chain{ID: uuid.New(), Name: strings.TrimSpace(p.Name), CreatedAt: now}
	cursor := start
	events := make([]*models.Event, 0, len(p.Blocks))
	for _, b := range p.Blocks {
		d := time.Duration(b.DurationSeconds) * time.Second
		title := strings.TrimSpace(b.Title)
		ev := &models.Event{
			ID:        uuid.New(),
			Title:     title,
			Start:     cursor,
			End:       cursor.Add(d),
			EnergyTag: b.EnergyTag,
			Emoji:     b.Emoji,
			ChainID:   idPtr(chain.ID),
			CreatedAt: now,
		}
		if ev.EnergyTag == "" {
			ev.EnergyTag = offline.EnergyTag(title)
		}
		if ev.Emoji == "" {
			ev.Emoji = offline.PickEmoji(title)
		}
		chain.EventIDs = append(chain.EventIDs, ev.ID)
		events = append(events, ev)
		cursor = ev.End
	}

	// events reference the chain, so it is saved first
	if err := a.store.SaveChain(ctx, chain); err != nil {
		return nil, err
	}
	for _, ev := range events {
		if err := a.store.SaveEvent(ctx, ev); err != nil {
			return nil, err
		}
	}
	return &applied{
		message: fmt.Sprintf("Created chain %s with %d blocks on %s (%s)",
			chain.Name, len(p.Blocks), start.Format(timeLayout), formatDuration(total)),
		entityID: idPtr(chain.ID),
	}, nil
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%d min", m)
	case m == 0:
		return fmt.Sprintf("%d h", h)
	default:
		return fmt.Sprintf("%d h %d min", h, m)
	}
}

func sameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
