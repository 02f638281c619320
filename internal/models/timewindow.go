package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTimeWindow is returned for malformed or inverted windows
var ErrInvalidTimeWindow = errors.New("invalid time window")

// TimeWindow is a same-day window. End is always strictly after start.
type TimeWindow struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// NewTimeWindow builds a window and checks its invariant
func NewTimeWindow(startHour, startMinute, endHour, endMinute int) (TimeWindow, error) {
	w := TimeWindow{StartHour: startHour, StartMinute: startMinute, EndHour: endHour, EndMinute: endMinute}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

func (w TimeWindow) StartMinutes() int { return w.StartHour*60 + w.StartMinute }
func (w TimeWindow) EndMinutes() int   { return w.EndHour*60 + w.EndMinute }

// Validate checks clock ranges and ordering
func (w TimeWindow) Validate() error {
	if !validClock(w.StartHour, w.StartMinute) || !validClock(w.EndHour, w.EndMinute) {
		return fmt.Errorf("%w: %02d:%02d-%02d:%02d out of range", ErrInvalidTimeWindow, w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
	}
	if w.EndMinutes() <= w.StartMinutes() {
		return fmt.Errorf("%w: end %s is not after start", ErrInvalidTimeWindow, w.String())
	}
	return nil
}

// String formats the window as "HH:MM-HH:MM"
func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}

// Descriptor returns the window in quiet-hour descriptor form
func (w TimeWindow) Descriptor() QuietHourDescriptor {
	return QuietHourDescriptor{
		Start: fmt.Sprintf("%02d:%02d", w.StartHour, w.StartMinute),
		End:   fmt.Sprintf("%02d:%02d", w.EndHour, w.EndMinute),
	}
}

// ParseTimeWindow parses a single "HH:MM-HH:MM" token
func ParseTimeWindow(s string) (TimeWindow, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return TimeWindow{}, fmt.Errorf("%w: %q", ErrInvalidTimeWindow, s)
	}
	sh, sm, err := ParseClock(start)
	if err != nil {
		return TimeWindow{}, err
	}
	eh, em, err := ParseClock(end)
	if err != nil {
		return TimeWindow{}, err
	}
	return NewTimeWindow(sh, sm, eh, em)
}

// ParseTimeWindows parses comma or newline separated windows
func ParseTimeWindows(s string) ([]TimeWindow, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]TimeWindow, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			continue
		}
		w, err := ParseTimeWindow(f)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// FormatTimeWindows joins windows with ", "
func FormatTimeWindows(ws []TimeWindow) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = w.String()
	}
	return strings.Join(parts, ", ")
}

// ParseClock parses "H:MM" or "HH:MM"
func ParseClock(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidTimeWindow, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidTimeWindow, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidTimeWindow, s)
	}
	if !validClock(h, m) {
		return 0, 0, fmt.Errorf("%w: clock %q out of range", ErrInvalidTimeWindow, s)
	}
	return h, m, nil
}

func validClock(h, m int) bool {
	return h >= 0 && h <= 23 && m >= 0 && m <= 59
}
