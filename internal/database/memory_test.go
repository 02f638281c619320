package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestMemoryStore_GoalsAndPillars(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	health := &models.Pillar{Name: "Health", Values: []string{"sleep"}}
	if err := s.SavePillar(ctx, health); err != nil {
		t.Fatalf("SavePillar() error = %v", err)
	}
	if health.ID == uuid.Nil {
		t.Fatal("SavePillar() should assign an ID")
	}

	for _, title := range []string{"Marathon", "Read more", "Learn Spanish"} {
		if err := s.SaveGoal(ctx, &models.Goal{Title: title, Importance: 3}); err != nil {
			t.Fatalf("SaveGoal() error = %v", err)
		}
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var titles []string
	for _, g := range snap.Goals {
		titles = append(titles, g.Title)
	}
	if diff := cmp.Diff([]string{"Marathon", "Read more", "Learn Spanish"}, titles); diff != "" {
		t.Errorf("goal order (-want +got):\n%s", diff)
	}

	// mutating a returned value must not leak into the store
	snap.Pillars[0].Values[0] = "mutated"
	got, err := s.GetPillar(ctx, health.ID)
	if err != nil {
		t.Fatalf("GetPillar() error = %v", err)
	}
	if got.Values[0] != "sleep" {
		t.Errorf("store was mutated through a snapshot: %v", got.Values)
	}

	if _, err := s.GetGoal(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGoal(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_EventsBetween(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC)

	events := []models.Event{
		{Title: "late", Start: day.Add(20 * time.Hour), End: day.Add(21 * time.Hour)},
		{Title: "early", Start: day.Add(8 * time.Hour), End: day.Add(9 * time.Hour)},
		{Title: "overnight", Start: day.Add(-time.Hour), End: day.Add(time.Hour)},
		{Title: "tomorrow", Start: day.Add(32 * time.Hour), End: day.Add(33 * time.Hour)},
	}
	for i := range events {
		if err := s.SaveEvent(ctx, &events[i]); err != nil {
			t.Fatalf("SaveEvent() error = %v", err)
		}
	}

	got, err := s.EventsBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("EventsBetween() error = %v", err)
	}
	var titles []string
	for _, e := range got {
		titles = append(titles, e.Title)
	}
	if diff := cmp.Diff([]string{"overnight", "early", "late"}, titles); diff != "" {
		t.Errorf("EventsBetween (-want +got):\n%s", diff)
	}

	bad := &models.Event{Title: "backwards", Start: day.Add(time.Hour), End: day}
	if err := s.SaveEvent(ctx, bad); err == nil {
		t.Error("SaveEvent() should reject an event that ends before it starts")
	}
}

func TestMemoryStore_ContextAndAudit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetContext(ctx, "c1"); !errors.Is(err, ai.ErrContextNotFound) {
		t.Errorf("GetContext(missing) error = %v", err)
	}

	for i, msg := range []string{"one", "two", "three"} {
		conv := "c1"
		if i == 1 {
			conv = "c2"
		}
		if err := s.InsertAudit(ctx, &models.AuditEntry{ConversationID: conv, Message: msg}); err != nil {
			t.Fatalf("InsertAudit() error = %v", err)
		}
	}

	got, err := s.ListAudit(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(got) != 2 || got[0].Message != "three" || got[1].Message != "one" {
		t.Errorf("ListAudit() = %+v", got)
	}
}

func TestLoadMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("unexpected migrations %+v", migrations)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version <= migrations[i-1].Version {
			t.Errorf("migrations out of order: %s before %s", migrations[i-1].Name, migrations[i].Name)
		}
	}
}
