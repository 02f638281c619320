package schedule

import (
	"math/rand"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

func at(h, m int) time.Time {
	return time.Date(2025, 9, 23, h, m, 0, 0, time.UTC)
}

func TestFindSlot(t *testing.T) {
	t.Parallel()

	morning := []Block{
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(9, 0), End: at(9, 30)},
		{Start: at(11, 0), End: at(12, 0)},
	}
	tests := []struct {
		name     string
		proposed time.Time
		duration time.Duration
		blocks   []Block
		now      time.Time
		want     time.Time
	}{
		{
			name:     "no blocks keeps proposal",
			proposed: at(14, 0),
			duration: time.Hour,
			now:      at(8, 0),
			want:     at(14, 0),
		},
		{
			name:     "fits in gap before first block",
			proposed: at(9, 30),
			duration: 30 * time.Minute,
			blocks:   morning,
			now:      at(8, 0),
			want:     at(9, 30),
		},
		{
			name:     "too long for gap moves past back to back blocks",
			proposed: at(9, 30),
			duration: time.Hour,
			blocks:   morning,
			now:      at(8, 0),
			want:     at(12, 0),
		},
		{
			name:     "proposal inside block advances to its end",
			proposed: at(9, 10),
			duration: 15 * time.Minute,
			blocks:   morning,
			now:      at(8, 0),
			want:     at(9, 30),
		},
		{
			name:     "past proposal today clamps to now",
			proposed: at(7, 0),
			duration: 30 * time.Minute,
			blocks:   morning,
			now:      at(8, 45),
			want:     at(9, 30),
		},
		{
			name:     "past proposal on another day is not clamped",
			proposed: at(7, 0),
			duration: 30 * time.Minute,
			now:      at(7, 0).AddDate(0, 0, 1),
			want:     at(7, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := FindSlot(tt.proposed, tt.duration, tt.blocks, tt.now)
			if !got.Equal(tt.want) {
				t.Errorf("FindSlot() = %v, want %v", got.Format("15:04"), tt.want.Format("15:04"))
			}
		})
	}
}

func TestFindSlot_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	blocks := []Block{{Start: at(11, 0), End: at(12, 0)}, {Start: at(9, 0), End: at(10, 0)}}
	FindSlot(at(9, 0), time.Hour, blocks, at(8, 0))
	if !blocks[0].Start.Equal(at(11, 0)) {
		t.Error("FindSlot() reordered the caller's slice")
	}
}

// randomBlocks builds non-overlapping blocks on the test day
func randomBlocks(r *rand.Rand) []Block {
	var blocks []Block
	cursor := at(6, 0)
	n := r.Intn(8)
	for i := 0; i < n; i++ {
		start := cursor.Add(time.Duration(r.Intn(90)) * time.Minute)
		end := start.Add(time.Duration(15+r.Intn(120)) * time.Minute)
		blocks = append(blocks, Block{Start: start, End: end})
		cursor = end
	}
	r.Shuffle(len(blocks), func(i, j int) { blocks[i], blocks[j] = blocks[j], blocks[i] })
	return blocks
}

func TestFindSlot_Properties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		blocks := randomBlocks(r)
		proposed := at(5, 0).Add(time.Duration(r.Intn(16*60)) * time.Minute)
		now := at(5, 0).Add(time.Duration(r.Intn(16*60)) * time.Minute)
		duration := time.Duration(5+r.Intn(180)) * time.Minute

		got := FindSlot(proposed, duration, blocks, now)

		if Overlaps(got, duration, blocks) {
			t.Fatalf("case %d: slot %v+%v overlaps %v", i, got, duration, blocks)
		}
		if got.Before(proposed) {
			t.Fatalf("case %d: slot %v before proposed %v", i, got, proposed)
		}
		if proposed.Before(now) && got.Before(now) {
			t.Fatalf("case %d: slot %v before now %v", i, got, now)
		}
	}
}

func TestFinder_Find(t *testing.T) {
	t.Parallel()

	f := NewFinder(func() time.Time { return at(9, 15) })
	got := f.Find(at(9, 0), 30*time.Minute, []Block{{Start: at(9, 30), End: at(10, 0)}})
	if !got.Equal(at(10, 0)) {
		t.Errorf("Find() = %v, want 10:00", got)
	}
}

func TestBlocksOn(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		{Title: "standup", Start: at(9, 0), End: at(9, 15)},
		{Title: "tomorrow", Start: at(9, 0).AddDate(0, 0, 1), End: at(10, 0).AddDate(0, 0, 1)},
	}
	got := BlocksOn(events, at(0, 0))
	if len(got) != 1 || !got[0].Start.Equal(at(9, 0)) {
		t.Errorf("BlocksOn() = %v", got)
	}
}
