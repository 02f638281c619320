package offline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/benvon/smart-planner/internal/models"
)

var quietRangeRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*[-–]\s*(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm)\b|\b)`)

var quietKeywordRe = regexp.MustCompile(`(?i)\b(?:quiet\s+(?:hours?|time)|do\s+not\s+disturb|no\s+meetings|off\s+limits)\b`)

// ExtractQuietHours finds every "H(:MM)?(am|pm)? - H(:MM)?(am|pm)?" range
// in text and normalizes it to a 24-hour window. A meridiem on the end of a
// range also applies to a bare start hour. Ranges that do not form a valid
// same-day window are skipped, as are ranges embedded in a date such as
// 2025-09-23. A bare "H-H" range only counts when the text mentions quiet
// hours.
func ExtractQuietHours(text string) []models.TimeWindow {
	var out []models.TimeWindow
	mentioned := MentionsQuietHours(text)
	for _, idx := range quietRangeRe.FindAllStringSubmatchIndex(text, -1) {
		if embedded(text, idx[0], idx[1]) {
			continue
		}
		m := submatches(text, idx)
		if !mentioned && m[2] == "" && m[3] == "" && m[5] == "" && m[6] == "" {
			continue
		}
		w, ok := windowFromMatch(m)
		if !ok {
			continue
		}
		dup := false
		for _, existing := range out {
			if existing == w {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, w)
		}
	}
	return out
}

// MentionsQuietHours reports whether text talks about quiet hours at all
func MentionsQuietHours(text string) bool {
	return quietKeywordRe.MatchString(text)
}

// embedded reports whether text[start:end] is glued to a surrounding
// number, as in a date or a phone number
func embedded(text string, start, end int) bool {
	if start > 0 {
		if c := text[start-1]; isDigit(c) || c == '-' || c == '/' || c == '.' {
			return true
		}
	}
	if end < len(text) {
		if c := text[end]; isDigit(c) || c == '-' || c == '/' {
			return true
		}
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func submatches(text string, idx []int) []string {
	m := make([]string, len(idx)/2)
	for k := range m {
		if idx[2*k] >= 0 {
			m[k] = text[idx[2*k]:idx[2*k+1]]
		}
	}
	return m
}

func windowFromMatch(m []string) (models.TimeWindow, bool) {
	sh, _ := strconv.Atoi(m[1])
	sm := atoiOr(m[2], 0)
	eh, _ := strconv.Atoi(m[4])
	em := atoiOr(m[5], 0)
	startMer := strings.ToLower(m[3])
	endMer := strings.ToLower(m[6])

	endHour, ok := to24(eh, endMer)
	if !ok {
		return models.TimeWindow{}, false
	}

	var startHour int
	switch {
	case startMer != "":
		if startHour, ok = to24(sh, startMer); !ok {
			return models.TimeWindow{}, false
		}
	case endMer != "":
		// 6-8:30am borrows "am"; 11-1pm cannot borrow "pm" and falls back to "am"
		if startHour, ok = to24(sh, endMer); !ok {
			return models.TimeWindow{}, false
		}
		if startHour*60+sm >= endHour*60+em {
			if startHour, ok = to24(sh, flip(endMer)); !ok {
				return models.TimeWindow{}, false
			}
		}
	default:
		startHour = sh
	}

	w, err := models.NewTimeWindow(startHour, sm, endHour, em)
	if err != nil {
		return models.TimeWindow{}, false
	}
	return w, true
}

func to24(hour int, meridiem string) (int, bool) {
	switch meridiem {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			return 0, true
		}
		return hour, true
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			return 12, true
		}
		return hour + 12, true
	default:
		return hour, hour >= 0 && hour <= 23
	}
}

func flip(meridiem string) string {
	if meridiem == "am" {
		return "pm"
	}
	return "am"
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
