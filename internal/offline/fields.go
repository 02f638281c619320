package offline

import (
	"regexp"
	"strconv"
	"strings"
)

// fieldTriggers maps a field to the phrases that introduce it. The phrases
// double as terminators for every other field.
var fieldTriggers = map[string][]string{
	"values":      {"add values", "add value", "with values", "values:", "values are", "value:"},
	"habits":      {"add habits", "add habit", "with habits", "habits:", "habit:"},
	"constraints": {"add constraints", "add constraint", "with constraints", "constraints:", "constraint:"},
	"description": {"description:", "describe it as", "describe as", "focus on", "details:"},
	"wisdom":      {"wisdom:", "add wisdom", "remind me that"},
	"rename":      {"rename it to", "rename to"},
}

var baseTerminators = []string{" to ", " for ", ".", "\n"}

// extra words that end a field value without being a trigger themselves
var softTerminators = []string{"quiet hours", "quiet time", "priority", "importance"}

var trailingConnectors = []string{" and", " also", " plus", ",", ";", ":"}

var (
	explicitPriorityRe = regexp.MustCompile(`(?i)\b(?:priority|importance)\s*(?:of|to|=|:|is)?\s*([1-5])\b`)
	frequencyRe        = regexp.MustCompile(`(?i)\b(daily|every\s+day|weekly|every\s+week|monthly|every\s+month|weekdays|weekends|(\d)\s*(?:x|times)\s*(?:a|per)\s*week)\b`)
)

// priorityLadder is checked in order; the first hit wins
var priorityLadder = []struct {
	re    *regexp.Regexp
	value int
}{
	{regexp.MustCompile(`(?i)\b(?:critical|urgent)\b`), 5},
	{regexp.MustCompile(`(?i)\b(?:high|top)\s+priority\b`), 4},
	{regexp.MustCompile(`(?i)\bmedium\s+priority\b`), 3},
	{regexp.MustCompile(`(?i)\blow\s+priority\b`), 2},
	{regexp.MustCompile(`(?i)\bdeprioriti[sz]e\b`), 1},
}

// InferImportance applies the keyword ladder. An explicit "priority N" or
// "importance N" overrides it. The second return is false when nothing matched.
func InferImportance(text string) (int, bool) {
	if m := explicitPriorityRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	for _, rung := range priorityLadder {
		if rung.re.MatchString(text) {
			return rung.value, true
		}
	}
	return 0, false
}

// InferFrequency returns a normalized cadence such as "daily" or "3x/week"
func InferFrequency(text string) (string, bool) {
	m := frequencyRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if m[2] != "" {
		return m[2] + "x/week", true
	}
	switch strings.Join(strings.Fields(strings.ToLower(m[1])), " ") {
	case "daily", "every day":
		return "daily", true
	case "weekly", "every week":
		return "weekly", true
	case "monthly", "every month":
		return "monthly", true
	default:
		return strings.ToLower(m[1]), true
	}
}

// SplitList splits a list field on commas, semicolons and newlines after
// turning " and " into a comma. Duplicates are removed case-insensitively
// keeping the first casing. SplitList is idempotent over its own output
// joined with ", ".
func SplitList(s string) []string {
	s = replaceFold(s, " and ", ",")
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		key := strings.ToLower(part)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, part)
	}
	return out
}

// extractField returns the text following the first trigger of field, cut
// at the first terminator. Matching is ASCII case-insensitive and the
// original casing of the value is preserved.
func extractField(text, field string) (string, bool) {
	start, trigger := firstTrigger(text, fieldTriggers[field])
	if start < 0 {
		return "", false
	}
	rest := text[start+len(trigger):]

	cut := len(rest)
	for _, term := range terminatorsFor(field) {
		if i := indexFold(rest, term); i >= 0 && i < cut {
			cut = i
		}
	}
	value := cleanValue(rest[:cut])
	if value == "" {
		return "", false
	}
	return value, true
}

func terminatorsFor(field string) []string {
	terms := append([]string{}, baseTerminators...)
	terms = append(terms, softTerminators...)
	for other, triggers := range fieldTriggers {
		if other == field {
			continue
		}
		for _, t := range triggers {
			terms = append(terms, " "+t)
		}
	}
	return terms
}

// firstTrigger finds the earliest trigger occurrence. On equal positions the
// longer phrase wins.
func firstTrigger(text string, triggers []string) (int, string) {
	best, bestTrigger := -1, ""
	for _, t := range triggers {
		i := indexFold(text, t)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(t) > len(bestTrigger)) {
			best, bestTrigger = i, t
		}
	}
	return best, bestTrigger
}

func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, c := range trailingConnectors {
			if len(s) >= len(c) && strings.EqualFold(s[len(s)-len(c):], c) {
				s = strings.TrimSpace(s[:len(s)-len(c)])
				changed = true
			}
		}
	}
	return strings.Trim(s, `"'`)
}

// indexFold is strings.Index with ASCII case folding
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func replaceFold(s, old, repl string) string {
	var b strings.Builder
	for {
		i := indexFold(s, old)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(repl)
		s = s[i+len(old):]
	}
}
