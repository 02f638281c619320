package temporal

import (
	"testing"
	"time"
)

// Tuesday
var fixedNow = time.Date(2025, 9, 23, 10, 0, 0, 0, time.UTC)

func newTestParser(opts ...Option) *Parser {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	}
	return New(append(base, opts...)...)
}

func TestParser_Parse(t *testing.T) {
	t.Parallel()

	ref := time.Date(2025, 9, 23, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name         string
		text         string
		want         time.Time
		explicitDate bool
		explicitTime bool
	}{
		{
			name:         "tomorrow at 3pm",
			text:         "tomorrow at 3pm",
			want:         time.Date(2025, 9, 24, 15, 0, 0, 0, time.UTC),
			explicitDate: true,
			explicitTime: true,
		},
		{
			name:         "relative minutes",
			text:         "remind me in 90 minutes",
			want:         fixedNow.Add(90 * time.Minute),
			explicitDate: true,
			explicitTime: true,
		},
		{
			name:         "relative hours abbreviated",
			text:         "in 2 hrs",
			want:         fixedNow.Add(2 * time.Hour),
			explicitDate: true,
			explicitTime: true,
		},
		{
			name:         "relative delta wins over named day",
			text:         "tomorrow, no wait, in 15 min",
			want:         fixedNow.Add(15 * time.Minute),
			explicitDate: true,
			explicitTime: true,
		},
		{
			name:         "today uses preferred start",
			text:         "today",
			want:         time.Date(2025, 9, 23, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "yesterday",
			text:         "what did I do yesterday",
			want:         time.Date(2025, 9, 22, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "next week",
			text:         "sometime next week",
			want:         time.Date(2025, 9, 30, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "weekday later this week",
			text:         "Friday",
			want:         time.Date(2025, 9, 26, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "same weekday is next week",
			text:         "tuesday",
			want:         time.Date(2025, 9, 30, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "weekday wraps around",
			text:         "monday",
			want:         time.Date(2025, 9, 29, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "past month day rolls forward",
			text:         "March 5",
			want:         time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "future month day with suffix",
			text:         "dec 25th",
			want:         time.Date(2025, 12, 25, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "numeric date with year does not roll",
			text:         "3/5/2025",
			want:         time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "numeric date rolls",
			text:         "on 3/5",
			want:         time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "clock without meridiem keeps literal hour and rolls",
			text:         "at 6",
			want:         time.Date(2025, 9, 24, 6, 0, 0, 0, time.UTC),
			explicitTime: true,
		},
		{
			name:         "clock with minutes and pm",
			text:         "at 6:30pm",
			want:         time.Date(2025, 9, 23, 18, 30, 0, 0, time.UTC),
			explicitTime: true,
		},
		{
			name:         "12am is midnight",
			text:         "friday 12am",
			want:         time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC),
			explicitDate: true,
			explicitTime: true,
		},
		{
			name:         "noon",
			text:         "lunch at noon",
			want:         time.Date(2025, 9, 23, 12, 0, 0, 0, time.UTC),
			explicitTime: true,
		},
		{
			name:         "past day part rolls to tomorrow and stays implicit",
			text:         "morning run",
			want:         time.Date(2025, 9, 24, 9, 0, 0, 0, time.UTC),
			explicitTime: false,
		},
		{
			name:         "named day with day part",
			text:         "tomorrow evening",
			want:         time.Date(2025, 9, 24, 19, 0, 0, 0, time.UTC),
			explicitDate: true,
		},
		{
			name:         "explicit clock beats day part",
			text:         "friday afternoon at 4pm",
			want:         time.Date(2025, 9, 26, 16, 0, 0, 0, time.UTC),
			explicitDate: true,
			explicitTime: true,
		},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.Parse(tt.text, ref)
			if got == nil {
				t.Fatalf("Parse(%q) = nil", tt.text)
			}
			if !got.Date.Equal(tt.want) {
				t.Errorf("Parse(%q).Date = %v, want %v", tt.text, got.Date, tt.want)
			}
			if got.HasExplicitDate != tt.explicitDate {
				t.Errorf("Parse(%q).HasExplicitDate = %v, want %v", tt.text, got.HasExplicitDate, tt.explicitDate)
			}
			if got.HasExplicitTime != tt.explicitTime {
				t.Errorf("Parse(%q).HasExplicitTime = %v, want %v", tt.text, got.HasExplicitTime, tt.explicitTime)
			}
		})
	}
}

func TestParser_ParseNoSignal(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	for _, text := range []string{
		"buy milk",
		"3 amazing ideas",
		"meet at 2025",
		"2/30",
		"",
	} {
		if got := p.Parse(text, fixedNow); got != nil {
			t.Errorf("Parse(%q) = %+v, want nil", text, got)
		}
	}
}

func TestParser_PreferredStart(t *testing.T) {
	t.Parallel()

	p := newTestParser(WithPreferredStart(7, 30))
	got := p.Parse("tomorrow", fixedNow)
	want := time.Date(2025, 9, 24, 7, 30, 0, 0, time.UTC)
	if got == nil || !got.Date.Equal(want) {
		t.Errorf("Parse(tomorrow) = %+v, want %v", got, want)
	}
}

func TestParser_ZeroReferenceUsesNow(t *testing.T) {
	t.Parallel()

	p := newTestParser()
	got := p.Parse("tomorrow at 3pm", time.Time{})
	want := time.Date(2025, 9, 24, 15, 0, 0, 0, time.UTC)
	if got == nil || !got.Date.Equal(want) {
		t.Errorf("Parse() = %+v, want %v", got, want)
	}
}
