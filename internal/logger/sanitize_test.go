package logger

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "/api/v1/utterances", "/api/v1/utterances"},
		{"control characters", "/api/\x00v1\x1b", "/api/v1"},
		{"truncated", strings.Repeat("a", MaxPathLength+10), strings.Repeat("a", MaxPathLength) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizePath(tt.in); got != tt.want {
				t.Errorf("SanitizePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeUtterance(t *testing.T) {
	t.Parallel()

	got := SanitizeUtterance("schedule a run\n{\"level\":\"error\"}\ttomorrow")
	if strings.ContainsAny(got, "\n\t") {
		t.Errorf("SanitizeUtterance() kept line breaks: %q", got)
	}
	if got != `schedule a run {"level":"error"} tomorrow` {
		t.Errorf("SanitizeUtterance() = %q", got)
	}

	long := SanitizeUtterance(strings.Repeat("word ", 100))
	if len(long) != MaxUtteranceLength+len("...") {
		t.Errorf("len = %d, want truncation at %d", len(long), MaxUtteranceLength)
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	if SanitizeError(nil) != "" {
		t.Error("SanitizeError(nil) should be empty")
	}
	if got := SanitizeError(errors.New("bad\x07 thing")); got != "bad thing" {
		t.Errorf("SanitizeError() = %q", got)
	}
}
