// Package temporal extracts explicit and relative dates and times from free
// text. Resolution is deterministic and follows a fixed priority order so
// that overlapping phrases never compete.
package temporal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"go.uber.org/zap"
)

var (
	relativeDeltaRe = regexp.MustCompile(`(?i)\bin\s+(\d{1,4})\s*(minutes?|mins?|hours?|hrs?)\b`)
	namedDayRe      = regexp.MustCompile(`(?i)\b(today|tomorrow|yesterday|next\s+week)\b`)
	weekdayRe       = regexp.MustCompile(`(?i)\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	monthNameRe     = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	numericDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?\b`)
	noonRe          = regexp.MustCompile(`(?i)\b(noon|midday|midnight)\b`)
	atClockRe       = regexp.MustCompile(`(?i)\bat\s+(\d{1,2})(?::(\d{2}))?(?:\s*(am\b|pm\b|a\.m\.|p\.m\.)|\b)`)
	meridiemClockRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am\b|pm\b|a\.m\.|p\.m\.)`)
	dayPartRe       = regexp.MustCompile(`(?i)\b(morning|afternoon|evening|tonight)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var dayParts = map[string]int{
	"morning":   9,
	"afternoon": 15,
	"evening":   19,
	"tonight":   19,
}

// Parser resolves temporal phrases against a reference date
type Parser struct {
	now           func() time.Time
	loc           *time.Location
	preferredHour int
	preferredMin  int
	logger        *zap.Logger
}

// Option configures a Parser
type Option func(*Parser)

// WithClock overrides the source of "now"
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the location that calendar arithmetic happens in
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithPreferredStart sets the time used when only a date was named
func WithPreferredStart(hour, minute int) Option {
	return func(p *Parser) {
		if hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59 {
			p.preferredHour = hour
			p.preferredMin = minute
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a parser. The preferred start defaults to 09:00.
func New(opts ...Option) *Parser {
	p := &Parser{
		now:           time.Now,
		loc:           time.Local,
		preferredHour: 9,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the parser's current time in its location
func (p *Parser) Now() time.Time {
	return p.now().In(p.loc)
}

// Location returns the parser's location
func (p *Parser) Location() *time.Location {
	return p.loc
}

// PreferredStart returns the preferred start on the given day
func (p *Parser) PreferredStart(day time.Time) time.Time {
	d := day.In(p.loc)
	return time.Date(d.Year(), d.Month(), d.Day(), p.preferredHour, p.preferredMin, 0, 0, p.loc)
}

type clock struct {
	hour, minute int
	explicit     bool
}

// Parse extracts a date and/or time from text. It returns nil when the text
// carries no temporal signal; callers then apply their own default.
func (p *Parser) Parse(text string, reference time.Time) *models.ParsedEventTime {
	now := p.Now()
	if reference.IsZero() {
		reference = now
	}
	ref := startOfDay(reference.In(p.loc))

	if m := relativeDeltaRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			unit := time.Minute
			if strings.HasPrefix(strings.ToLower(m[2]), "h") {
				unit = time.Hour
			}
			return &models.ParsedEventTime{
				Date:            now.Add(time.Duration(n) * unit),
				HasExplicitDate: true,
				HasExplicitTime: true,
			}
		}
	}

	date, hasDate := p.resolveDate(text, ref, now)
	c, hasTime := resolveClock(text)

	switch {
	case hasDate && hasTime:
		return &models.ParsedEventTime{
			Date:            at(date, c, p.loc),
			HasExplicitDate: true,
			HasExplicitTime: c.explicit,
		}
	case hasDate:
		return &models.ParsedEventTime{
			Date:            p.PreferredStart(date),
			HasExplicitDate: true,
		}
	case hasTime:
		t := at(ref, c, p.loc)
		if t.Before(now) {
			t = t.AddDate(0, 0, 1)
		}
		return &models.ParsedEventTime{
			Date:            t,
			HasExplicitTime: c.explicit,
		}
	default:
		return nil
	}
}

// resolveDate applies the named-day, weekday and month-day rules in order
func (p *Parser) resolveDate(text string, ref, now time.Time) (time.Time, bool) {
	if m := namedDayRe.FindStringSubmatch(text); m != nil {
		switch strings.Join(strings.Fields(strings.ToLower(m[1])), " ") {
		case "today":
			return ref, true
		case "tomorrow":
			return ref.AddDate(0, 0, 1), true
		case "yesterday":
			return ref.AddDate(0, 0, -1), true
		case "next week":
			return ref.AddDate(0, 0, 7), true
		}
	}

	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		target := weekdays[strings.ToLower(m[1])]
		delta := (int(target) - int(ref.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return ref.AddDate(0, 0, delta), true
	}

	today := startOfDay(now)
	if m := monthNameRe.FindStringSubmatch(text); m != nil {
		month := monthFromName(m[1])
		day, _ := strconv.Atoi(m[2])
		if d, ok := p.monthDay(month, day, m[3], ref, today); ok {
			return d, true
		}
	}
	if m := numericDateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			if d, ok := p.monthDay(time.Month(month), day, m[3], ref, today); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// monthDay builds a calendar date, rolling forward a year when no year was
// given and the date already lies before today.
func (p *Parser) monthDay(month time.Month, day int, yearText string, ref, today time.Time) (time.Time, bool) {
	year := ref.Year()
	explicitYear := yearText != ""
	if explicitYear {
		y, err := strconv.Atoi(yearText)
		if err != nil {
			return time.Time{}, false
		}
		if y < 100 {
			y += 2000
		}
		year = y
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, p.loc)
	if d.Month() != month || d.Day() != day {
		p.logger.Debug("temporal_invalid_calendar_date",
			zap.Int("month", int(month)),
			zap.Int("day", day))
		return time.Time{}, false
	}
	if !explicitYear && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

// resolveClock finds an explicit clock time, falling back to a day part
func resolveClock(text string) (clock, bool) {
	if m := noonRe.FindStringSubmatch(text); m != nil {
		if strings.EqualFold(m[1], "midnight") {
			return clock{hour: 0, explicit: true}, true
		}
		return clock{hour: 12, explicit: true}, true
	}
	for _, re := range []*regexp.Regexp{atClockRe, meridiemClockRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if c, ok := clockFromParts(m[1], m[2], m[3]); ok {
				return c, true
			}
		}
	}
	if m := dayPartRe.FindStringSubmatch(text); m != nil {
		return clock{hour: dayParts[strings.ToLower(m[1])]}, true
	}
	return clock{}, false
}

func clockFromParts(hourText, minuteText, meridiem string) (clock, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return clock{}, false
	}
	minute := 0
	if minuteText != "" {
		if minute, err = strconv.Atoi(minuteText); err != nil {
			return clock{}, false
		}
	}
	switch strings.ToLower(strings.ReplaceAll(meridiem, ".", "")) {
	case "pm":
		if hour < 1 || hour > 12 {
			return clock{}, false
		}
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour < 1 || hour > 12 {
			return clock{}, false
		}
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return clock{}, false
	}
	return clock{hour: hour, minute: minute, explicit: true}, true
}

func monthFromName(name string) time.Month {
	switch strings.ToLower(name)[:3] {
	case "jan":
		return time.January
	case "feb":
		return time.February
	case "mar":
		return time.March
	case "apr":
		return time.April
	case "may":
		return time.May
	case "jun":
		return time.June
	case "jul":
		return time.July
	case "aug":
		return time.August
	case "sep":
		return time.September
	case "oct":
		return time.October
	case "nov":
		return time.November
	default:
		return time.December
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func at(day time.Time, c clock, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, loc)
}
