// Package offline turns utterances into commands with rules and regular
// expressions. It runs when the remote backend is unavailable, times out or
// declines to answer, and never needs the network.
package offline

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoActionableIntent is returned alongside a clarification when the
// utterance names no known entity and no creation keyword.
var ErrNoActionableIntent = errors.New("no actionable intent")

const (
	baseConfidence       = 0.55
	anchorBonus          = 0.25
	fieldBonus           = 0.05
	maxOfflineConfidence = 0.9
)

// ClarifyWhichEntity is asked when nothing in the utterance could be tied to
// a goal or pillar.
const ClarifyWhichEntity = "Which goal or pillar should I adjust?"

// Parser is the rule-based command extractor
type Parser struct {
	temporal *temporal.Parser
	logger   *zap.Logger
}

// New creates a parser. A nil temporal parser gets a default one.
func New(tp *temporal.Parser, logger *zap.Logger) *Parser {
	if tp == nil {
		tp = temporal.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{temporal: tp, logger: logger}
}

// draft collects what a single rule produced before it is turned into a
// response
type draft struct {
	commands []models.MindCommand
	summary  string
	action   models.ActionType
	anchored bool
	fields   int
	created  []string

	title           string
	durationSeconds int
	energy          string
	emoji           string
}

// Parse extracts commands from the utterance using the known goals and
// pillars for reference resolution. Both responses are always non-nil. The
// error is ErrNoActionableIntent when the result is the generic
// clarification. A recognized entity with nothing to change yields no
// commands and no error.
func (p *Parser) Parse(u models.Utterance, goals []models.Goal, pillars []models.Pillar) (*models.AIResponse, *models.MindCommandResponse, error) {
	text := strings.TrimSpace(u.Text)

	match := ResolveEntity(text, goals, pillars)
	if match != nil && len(match.Ambiguous) > 0 {
		p.logger.Info("ambiguous_reference",
			zap.String("resolved", string(match.Kind)+":"+match.Name),
			zap.Strings("candidates", match.Ambiguous))
	}

	d, err := p.route(text, u, match)
	resp, cmds := p.build(d)

	p.logger.Debug("offline_parse_completed",
		zap.Int("commands", len(cmds.Commands)),
		zap.Float64("confidence", resp.Confidence),
		zap.String("action", string(resp.Action())),
		zap.Bool("no_actionable_intent", err != nil))

	return resp, cmds, err
}

func (p *Parser) route(text string, u models.Utterance, match *Match) (draft, error) {
	if c, ok := findCreation(text); ok {
		switch c.keyword {
		case "chain", "routine":
			return p.parseCreateChain(text, u, c), nil
		case "goal":
			return p.parseCreateGoal(text, c, match), nil
		case "pillar":
			return p.parseCreatePillar(text, c), nil
		}
	}

	if d, ok := p.parseAddNode(text, match); ok {
		return d, nil
	}
	if d, ok := p.parseEvent(text, u, match); ok {
		return d, nil
	}

	if match != nil {
		if match.Kind == EntityPillar {
			return p.parseUpdatePillar(text, match), nil
		}
		return p.parseUpdateGoal(text, match), nil
	}

	if d, ok := p.parseBareKeyword(text); ok {
		return d, nil
	}

	return draft{
		commands: []models.MindCommand{models.NewClarification(ClarifyWhichEntity)},
		summary:  ClarifyWhichEntity,
	}, ErrNoActionableIntent
}

func (p *Parser) parseUpdatePillar(text string, match *Match) draft {
	fields, n := extractPillarFields(text)
	payload := &models.UpdatePillarPayload{
		Target:       models.PillarReference{ID: &match.Pillar.ID, Name: match.Pillar.Name},
		PillarFields: fields,
	}
	if rename, ok := extractField(text, "rename"); ok {
		payload.Rename = &rename
		n++
	}

	d := draft{anchored: true, fields: n, action: models.ActionUpdatePillar, title: match.Pillar.Name}
	if !payload.HasChanges() {
		d.summary = fmt.Sprintf("Found pillar %s but nothing to change.", match.Pillar.Name)
		return d
	}
	d.commands = []models.MindCommand{{Kind: models.CommandUpdatePillar, UpdatePillar: payload}}
	d.summary = fmt.Sprintf("Update pillar %s: %s.", match.Pillar.Name, strings.Join(describePillarFields(payload), ", "))
	return d
}

func (p *Parser) parseUpdateGoal(text string, match *Match) draft {
	payload := &models.UpdateGoalPayload{
		Target: models.GoalReference{ID: &match.Goal.ID, Title: match.Goal.Title},
	}
	var changed []string
	if rename, ok := extractField(text, "rename"); ok {
		payload.Title = &rename
		changed = append(changed, "title")
	}
	if detail, ok := extractField(text, "description"); ok {
		payload.Detail = &detail
		changed = append(changed, "detail")
	}
	if importance, ok := InferImportance(text); ok {
		payload.Importance = &importance
		changed = append(changed, fmt.Sprintf("importance %d", importance))
	}

	d := draft{anchored: true, fields: len(changed), action: models.ActionUpdateGoal, title: match.Goal.Title}
	if !payload.HasChanges() {
		d.summary = fmt.Sprintf("Found goal %s but nothing to change.", match.Goal.Title)
		return d
	}
	d.commands = []models.MindCommand{{Kind: models.CommandUpdateGoal, UpdateGoal: payload}}
	d.summary = fmt.Sprintf("Update goal %s: %s.", match.Goal.Title, strings.Join(changed, ", "))
	return d
}

// build turns a draft into the normalized response pair
func (p *Parser) build(d draft) (*models.AIResponse, *models.MindCommandResponse) {
	conf := baseConfidence
	if d.anchored {
		conf += anchorBonus
	}
	conf += fieldBonus * float64(d.fields)
	conf = math.Min(math.Round(conf*100)/100, maxOfflineConfidence)

	cmds := &models.MindCommandResponse{Summary: d.summary, Commands: d.commands}
	resp := &models.AIResponse{
		Text:         d.summary,
		Suggestions:  []models.Suggestion{},
		Confidence:   conf,
		CreatedItems: d.created,
	}
	if !cmds.Actionable() {
		return resp, cmds
	}

	resp.ActionType = models.ActionPtr(d.action)
	title := d.title
	if title == "" {
		title = d.summary
	}
	resp.Suggestions = append(resp.Suggestions, models.Suggestion{
		ID:              uuid.New(),
		Title:           title,
		DurationSeconds: d.durationSeconds,
		EnergyTag:       d.energy,
		EmojiTag:        d.emoji,
		Confidence:      conf,
		Explanation:     d.summary,
		Commands:        d.commands,
		CreatedAt:       p.temporal.Now(),
	})
	return resp, cmds
}

func extractPillarFields(text string) (models.PillarFields, int) {
	var f models.PillarFields
	n := 0
	if v, ok := extractField(text, "values"); ok {
		if f.Values = SplitList(v); len(f.Values) > 0 {
			n++
		}
	}
	if v, ok := extractField(text, "habits"); ok {
		if f.Habits = SplitList(v); len(f.Habits) > 0 {
			n++
		}
	}
	if v, ok := extractField(text, "constraints"); ok {
		if f.Constraints = SplitList(v); len(f.Constraints) > 0 {
			n++
		}
	}
	if v, ok := extractField(text, "description"); ok {
		f.Description = &v
		n++
	}
	if v, ok := extractField(text, "wisdom"); ok {
		f.Wisdom = &v
		n++
	}
	if v, ok := InferFrequency(text); ok {
		f.Frequency = &v
		n++
	}
	for _, w := range ExtractQuietHours(text) {
		f.QuietHours = append(f.QuietHours, w.Descriptor())
	}
	if len(f.QuietHours) > 0 {
		n++
	}
	return f, n
}

func describePillarFields(p *models.UpdatePillarPayload) []string {
	var out []string
	if p.Rename != nil {
		out = append(out, "rename to "+*p.Rename)
	}
	if len(p.Values) > 0 {
		out = append(out, "values "+strings.Join(p.Values, ", "))
	}
	if len(p.Habits) > 0 {
		out = append(out, "habits "+strings.Join(p.Habits, ", "))
	}
	if len(p.Constraints) > 0 {
		out = append(out, "constraints "+strings.Join(p.Constraints, ", "))
	}
	if p.Description != nil {
		out = append(out, "description")
	}
	if p.Wisdom != nil {
		out = append(out, "wisdom")
	}
	if p.Frequency != nil {
		out = append(out, "frequency "+*p.Frequency)
	}
	if len(p.QuietHours) > 0 {
		parts := make([]string, len(p.QuietHours))
		for i, q := range p.QuietHours {
			parts[i] = q.Start + "-" + q.End
		}
		out = append(out, "quiet hours "+strings.Join(parts, ", "))
	}
	return out
}

// capitalize upper-cases the first rune
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// titleWords upper-cases the first rune of every word
func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
