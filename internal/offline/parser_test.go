package offline

import (
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 9, 23, 10, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	tp := temporal.New(
		temporal.WithClock(func() time.Time { return testNow }),
		temporal.WithLocation(time.UTC),
	)
	return New(tp, nil)
}

func utter(text string) models.Utterance {
	return models.Utterance{Text: text, SentAt: testNow, ReferenceDate: testNow}
}

var (
	deepWork = models.Pillar{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Name: "Deep Work"}
	work     = models.Pillar{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Name: "Work"}
	marathon = models.Goal{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Title: "Marathon", Importance: 3}
)

func TestParse_DeepWorkValuesAndQuietHours(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	_, cmds, err := p.Parse(
		utter("For Deep Work, add values focus, craft and quiet hours 6-8:30am"),
		nil,
		[]models.Pillar{work, deepWork},
	)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cmds.Commands) != 1 {
		t.Fatalf("Parse() commands = %d, want 1", len(cmds.Commands))
	}
	cmd := cmds.Commands[0]
	if cmd.Kind != models.CommandUpdatePillar {
		t.Fatalf("Kind = %s, want updatePillar", cmd.Kind)
	}
	up := cmd.UpdatePillar
	if up.Target.ID == nil || *up.Target.ID != deepWork.ID {
		t.Errorf("Target = %+v, want Deep Work", up.Target)
	}
	if diff := cmp.Diff([]string{"focus", "craft"}, up.Values); diff != "" {
		t.Errorf("Values mismatch (-want +got):\n%s", diff)
	}
	wantQuiet := []models.QuietHourDescriptor{{Start: "06:00", End: "08:30"}}
	if diff := cmp.Diff(wantQuiet, up.QuietHours); diff != "" {
		t.Errorf("QuietHours mismatch (-want +got):\n%s", diff)
	}
	if up.Habits != nil || up.Description != nil || up.Wisdom != nil {
		t.Errorf("unexpected extra fields: %+v", up.PillarFields)
	}
}

func TestParse_ConfidenceAndSuggestion(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	resp, _, err := p.Parse(utter("Deep Work: add values focus, craft and quiet hours 6-8:30am"), nil, []models.Pillar{deepWork})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	// base 0.55 + anchor 0.25 + two fields
	if resp.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", resp.Confidence)
	}
	if resp.Action() != models.ActionUpdatePillar {
		t.Errorf("Action = %q, want updatePillar", resp.Action())
	}
	if len(resp.Suggestions) != 1 || len(resp.Suggestions[0].Commands) != 1 {
		t.Fatalf("Suggestions = %+v, want one carrying the command", resp.Suggestions)
	}
}

func TestParse_NoEntityNoKeywordClarifies(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	resp, cmds, err := p.Parse(utter("make it better somehow"), []models.Goal{marathon}, []models.Pillar{deepWork})
	if !errors.Is(err, ErrNoActionableIntent) {
		t.Fatalf("Parse() error = %v, want ErrNoActionableIntent", err)
	}
	if len(cmds.Commands) != 1 || cmds.Commands[0].Kind != models.CommandClarification {
		t.Fatalf("commands = %+v, want single clarification", cmds.Commands)
	}
	if cmds.Commands[0].Clarification.Question != ClarifyWhichEntity {
		t.Errorf("question = %q", cmds.Commands[0].Clarification.Question)
	}
	if resp.ActionType != nil || len(resp.Suggestions) != 0 {
		t.Errorf("clarification response should carry no action or suggestions: %+v", resp)
	}
}

func TestParse_EntityWithNothingToChange(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	_, cmds, err := p.Parse(utter("how is Deep Work going"), nil, []models.Pillar{deepWork})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cmds.Commands) != 0 {
		t.Errorf("commands = %+v, want none", cmds.Commands)
	}
}

func TestParse_Commands(t *testing.T) {
	t.Parallel()

	goals := []models.Goal{marathon}
	pillars := []models.Pillar{deepWork}

	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, cmd models.MindCommand)
	}{
		{
			name: "create goal with ladder importance",
			text: "Create a goal to run a half marathon, high priority",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandCreateGoal {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				if cmd.CreateGoal.Title != "Run a half marathon" {
					t.Errorf("Title = %q", cmd.CreateGoal.Title)
				}
				if cmd.CreateGoal.Importance != 4 {
					t.Errorf("Importance = %d, want 4", cmd.CreateGoal.Importance)
				}
			},
		},
		{
			name: "explicit priority overrides ladder",
			text: "new goal: learn Spanish, urgent but priority 2",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.CreateGoal == nil || cmd.CreateGoal.Importance != 2 {
					t.Errorf("CreateGoal = %+v, want importance 2", cmd.CreateGoal)
				}
				if cmd.CreateGoal.Title != "Learn Spanish" {
					t.Errorf("Title = %q", cmd.CreateGoal.Title)
				}
			},
		},
		{
			name: "create pillar with fields",
			text: "create a pillar called Health with habits walk daily; stretch",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandCreatePillar {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				if cmd.CreatePillar.Name != "Health" {
					t.Errorf("Name = %q", cmd.CreatePillar.Name)
				}
				if diff := cmp.Diff([]string{"walk daily", "stretch"}, cmd.CreatePillar.Habits); diff != "" {
					t.Errorf("Habits mismatch (-want +got):\n%s", diff)
				}
				if cmd.CreatePillar.Frequency == nil || *cmd.CreatePillar.Frequency != "daily" {
					t.Errorf("Frequency = %v, want daily", cmd.CreatePillar.Frequency)
				}
			},
		},
		{
			name: "update goal importance",
			text: "deprioritize the Marathon",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandUpdateGoal {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				if cmd.UpdateGoal.Importance == nil || *cmd.UpdateGoal.Importance != 1 {
					t.Errorf("Importance = %v, want 1", cmd.UpdateGoal.Importance)
				}
				if *cmd.UpdateGoal.Target.ID != marathon.ID {
					t.Errorf("Target = %+v", cmd.UpdateGoal.Target)
				}
			},
		},
		{
			name: "rename pillar",
			text: "Deep Work, rename to Focus Time",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.UpdatePillar == nil || cmd.UpdatePillar.Rename == nil || *cmd.UpdatePillar.Rename != "Focus Time" {
					t.Errorf("UpdatePillar = %+v", cmd.UpdatePillar)
				}
			},
		},
		{
			name: "add node to resolved goal",
			text: "add task buy running shoes to Marathon",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandAddNode {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				if cmd.AddNode.Node.Type != models.NodeTypeTask || cmd.AddNode.Node.Title != "Buy running shoes" {
					t.Errorf("Node = %+v", cmd.AddNode.Node)
				}
				if cmd.AddNode.Goal.ID == nil || *cmd.AddNode.Goal.ID != marathon.ID {
					t.Errorf("Goal = %+v", cmd.AddNode.Goal)
				}
			},
		},
		{
			name: "schedule event",
			text: "schedule a run tomorrow at 7am for 45 minutes",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandCreateEvent {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				ev := cmd.CreateEvent
				if ev.Title != "Run" {
					t.Errorf("Title = %q", ev.Title)
				}
				if !ev.When.Date.Equal(time.Date(2025, 9, 24, 7, 0, 0, 0, time.UTC)) || !ev.When.HasExplicitTime {
					t.Errorf("When = %+v", ev.When)
				}
				if ev.DurationSeconds != 45*60 {
					t.Errorf("DurationSeconds = %d", ev.DurationSeconds)
				}
				if ev.EnergyTag != "physical" {
					t.Errorf("EnergyTag = %q", ev.EnergyTag)
				}
			},
		},
		{
			name: "create chain",
			text: "create a morning routine: stretch 10 min, journal 15 minutes and read",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandCreateChain {
					t.Fatalf("Kind = %s", cmd.Kind)
				}
				ch := cmd.CreateChain
				if ch.Name != "Morning Routine" {
					t.Errorf("Name = %q", ch.Name)
				}
				want := []int{600, 900, defaultBlockSeconds}
				if len(ch.Blocks) != len(want) {
					t.Fatalf("Blocks = %+v", ch.Blocks)
				}
				for i, b := range ch.Blocks {
					if b.DurationSeconds != want[i] {
						t.Errorf("Blocks[%d] = %+v, want %ds", i, b, want[i])
					}
				}
				if ch.Blocks[0].Title != "Stretch" {
					t.Errorf("Blocks[0].Title = %q", ch.Blocks[0].Title)
				}
			},
		},
		{
			name: "bare goal keyword asks for the entity",
			text: "update my reading goal",
			check: func(t *testing.T, cmd models.MindCommand) {
				if cmd.Kind != models.CommandClarification {
					t.Errorf("Kind = %s, want clarification", cmd.Kind)
				}
			},
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, cmds, err := p.Parse(utter(tt.text), goals, pillars)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.text, err)
			}
			if len(cmds.Commands) != 1 {
				t.Fatalf("Parse(%q) commands = %+v, want 1", tt.text, cmds.Commands)
			}
			tt.check(t, cmds.Commands[0])
		})
	}
}
