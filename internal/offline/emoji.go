package offline

import "strings"

var emojiRules = []struct {
	keywords []string
	emoji    string
}{
	{[]string{"run", "marathon", "jog", "gym", "workout", "exercise", "lift"}, "🏃"},
	{[]string{"read", "book", "novel"}, "📚"},
	{[]string{"write", "journal", "blog", "essay"}, "✍️"},
	{[]string{"meditat", "mindful", "breath", "yoga"}, "🧘"},
	{[]string{"sleep", "rest", "nap", "recover"}, "😴"},
	{[]string{"learn", "study", "course", "class", "language", "spanish"}, "🎓"},
	{[]string{"money", "budget", "save", "invest", "finance"}, "💰"},
	{[]string{"code", "ship", "launch", "build", "deploy"}, "💻"},
	{[]string{"family", "friend", "partner", "kids"}, "👨‍👩‍👧"},
	{[]string{"health", "diet", "eat", "cook", "meal"}, "🥗"},
	{[]string{"music", "guitar", "piano", "sing"}, "🎸"},
	{[]string{"travel", "trip", "vacation"}, "✈️"},
	{[]string{"focus", "deep work", "craft"}, "🎯"},
}

// DefaultEmoji is used when no keyword matches
const DefaultEmoji = "⭐"

// PickEmoji chooses an emoji for a title by keyword. The first matching rule
// wins.
func PickEmoji(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range emojiRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.emoji
			}
		}
	}
	return DefaultEmoji
}

var energyRules = []struct {
	keywords []string
	tag      string
}{
	{[]string{"deep", "focus", "write", "study", "code", "plan"}, "deep"},
	{[]string{"run", "gym", "workout", "walk", "exercise", "yoga"}, "physical"},
	{[]string{"meet", "call", "lunch", "dinner", "coffee", "social", "party"}, "social"},
	{[]string{"rest", "nap", "break", "relax", "meditat"}, "rest"},
	{[]string{"email", "admin", "errand", "chores", "inbox", "light"}, "light"},
}

// EnergyTag classifies an activity title into an energy bucket. It returns
// the empty string when nothing matches.
func EnergyTag(title string) string {
	lower := strings.ToLower(title)
	for _, rule := range energyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tag
			}
		}
	}
	return ""
}
