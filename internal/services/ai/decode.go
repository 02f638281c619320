package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/benvon/smart-planner/internal/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultConfidence is used when the backend omits a confidence value
	DefaultConfidence = 0.5
	// PillarReplyConfidence is used for an untyped pillar reply whose target
	// pillar was resolved and whose confidence was omitted
	PillarReplyConfidence = 0.8
)

// wireReply is the JSON object the backend may embed in its reply. Unknown
// fields are rejected.
type wireReply struct {
	Action          *string          `json:"action"`
	Confidence      *float64         `json:"confidence"`
	Message         string           `json:"message"`
	Target          *wireTarget      `json:"target"`
	Title           string           `json:"title"`
	Name            string           `json:"name"`
	Importance      *int             `json:"importance"`
	Emoji           string           `json:"emoji"`
	Description     *string          `json:"description"`
	Wisdom          *string          `json:"wisdom"`
	Values          stringList       `json:"values"`
	Habits          stringList       `json:"habits"`
	Constraints     stringList       `json:"constraints"`
	QuietHours      string           `json:"quiet_hours"`
	Frequency       *string          `json:"frequency"`
	Node            *wireNode        `json:"node"`
	Nodes           []wireNode       `json:"nodes"`
	When            string           `json:"when"`
	Start           string           `json:"start"`
	DurationMinutes *int             `json:"duration_minutes"`
	Energy          string           `json:"energy"`
	Blocks          []wireBlock      `json:"blocks"`
	Suggestions     []wireSuggestion `json:"suggestions"`
	Question        string           `json:"question"`
}

type wireTarget struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

type wireNode struct {
	Type   string   `json:"type"`
	Title  string   `json:"title"`
	Detail *string  `json:"detail"`
	Pinned bool     `json:"pinned"`
	Weight *float64 `json:"weight"`
}

type wireBlock struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"duration_minutes"`
	Energy          string `json:"energy"`
	Emoji           string `json:"emoji"`
}

type wireSuggestion struct {
	Title           string   `json:"title"`
	DurationMinutes int      `json:"duration_minutes"`
	Energy          string   `json:"energy"`
	Emoji           string   `json:"emoji"`
	Confidence      *float64 `json:"confidence"`
	Explanation     string   `json:"explanation"`
}

// stringList accepts either a JSON array of strings or a single delimited string
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*l = models.DedupeFold(arr)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = offline.SplitList(s)
	return nil
}

// Decoder turns a backend reply into an AIResponse and the commands it carries
type Decoder struct {
	temporal *temporal.Parser
	logger   *zap.Logger
}

// NewDecoder creates a decoder. The temporal parser resolves "when" phrases.
func NewDecoder(tp *temporal.Parser, logger *zap.Logger) *Decoder {
	if tp == nil {
		tp = temporal.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{temporal: tp, logger: logger}
}

// ExtractJSON returns the substring between the first "{" and the last "}"
// and the surrounding text with markdown fences removed.
func ExtractJSON(reply string) (object string, rest string, ok bool) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || end < start {
		return "", stripFences(reply), false
	}
	rest = stripFences(reply[:start] + " " + reply[end+1:])
	return reply[start : end+1], rest, true
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.Join(strings.Fields(s), " ")
}

// Decode parses a reply. It returns ErrAbstained for an empty reply or an
// abstain action. A JSON object that does not match the schema yields the
// reply text, no commands and an error wrapping ErrMalformedResponse.
//
// A reply without an action that carries pillar fields updates a pillar:
// its target, or the saved pillar the utterance names. When neither
// exists the reply counts as abstained.
func (d *Decoder) Decode(reply string, u models.Utterance, pillars []models.Pillar) (*models.AIResponse, *models.MindCommandResponse, error) {
	if strings.TrimSpace(reply) == "" {
		return nil, nil, ErrAbstained
	}

	object, rest, ok := ExtractJSON(reply)
	if !ok {
		resp := &models.AIResponse{
			Text:        rest,
			Suggestions: []models.Suggestion{},
			ActionType:  models.ActionPtr(models.ActionGeneralChat),
			Confidence:  DefaultConfidence,
		}
		return resp, &models.MindCommandResponse{Summary: rest}, nil
	}

	var w wireReply
	dec := json.NewDecoder(bytes.NewReader([]byte(object)))
	dec.DisallowUnknownFields()
	err := dec.Decode(&w)
	if err == nil && dec.More() {
		err = errors.New("trailing data after reply object")
	}
	if err != nil {
		d.logger.Warn("backend_reply_malformed",
			zap.Error(err),
			zap.String("reply_preview", SanitizeForLog(reply, false)),
		)
		resp := &models.AIResponse{Text: rest, Suggestions: []models.Suggestion{}}
		return resp, &models.MindCommandResponse{Summary: rest}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var action *models.ActionType
	if w.Action != nil {
		a := models.ActionType(*w.Action)
		if err := validation.ValidateActionType(string(a)); err != nil {
			resp := &models.AIResponse{Text: rest, Suggestions: []models.Suggestion{}}
			return resp, &models.MindCommandResponse{Summary: rest}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		if a == models.ActionAbstain {
			return nil, nil, ErrAbstained
		}
		action = &a
	}

	text := strings.TrimSpace(w.Message)
	if text == "" {
		text = rest
	}
	conf := DefaultConfidence
	if action == nil && w.hasPillarFields() {
		target := d.pillarTarget(&w, u, pillars)
		if target == nil {
			d.logger.Info("pillar_reply_unresolved")
			return nil, nil, ErrAbstained
		}
		a := models.ActionUpdatePillar
		action = &a
		w.Target = target
		conf = PillarReplyConfidence
	}
	if w.Confidence != nil {
		conf = clamp01(*w.Confidence)
	}

	now := d.temporal.Now()
	commands, err := d.commandsFor(action, &w, u)
	if err != nil {
		resp := &models.AIResponse{Text: text, Suggestions: []models.Suggestion{}}
		return resp, &models.MindCommandResponse{Summary: text}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	commands = NormalizeCommands(commands, d.logger)
	if q := strings.TrimSpace(w.Question); q != "" {
		commands = append(commands, models.NewClarification(q))
	}

	resp := &models.AIResponse{
		Text:        text,
		Suggestions: make([]models.Suggestion, 0, len(w.Suggestions)+1),
		ActionType:  action,
		Confidence:  conf,
	}
	for _, s := range w.Suggestions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		sc := conf
		if s.Confidence != nil {
			sc = clamp01(*s.Confidence)
		}
		emoji := s.Emoji
		if emoji == "" {
			emoji = offline.PickEmoji(s.Title)
		}
		energy := s.Energy
		if energy == "" {
			energy = offline.EnergyTag(s.Title)
		}
		resp.Suggestions = append(resp.Suggestions, models.Suggestion{
			ID:              uuid.New(),
			Title:           strings.TrimSpace(s.Title),
			DurationSeconds: minutesToSeconds(s.DurationMinutes),
			EnergyTag:       energy,
			EmojiTag:        emoji,
			Confidence:      sc,
			Explanation:     s.Explanation,
			CreatedAt:       now,
		})
	}

	cmdResp := &models.MindCommandResponse{Summary: text, Commands: commands}
	if cmdResp.Actionable() {
		title := firstNonEmpty(w.Title, w.Name, text)
		resp.Suggestions = append(resp.Suggestions, models.Suggestion{
			ID:              uuid.New(),
			Title:           title,
			DurationSeconds: durationOf(&w),
			EnergyTag:       w.Energy,
			EmojiTag:        w.Emoji,
			Confidence:      conf,
			Explanation:     text,
			Commands:        actionable(commands),
			CreatedAt:       now,
		})
		for _, c := range commands {
			if c.Kind != models.CommandClarification {
				resp.CreatedItems = append(resp.CreatedItems, title)
				break
			}
		}
	}
	return resp, cmdResp, nil
}

func (d *Decoder) commandsFor(action *models.ActionType, w *wireReply, u models.Utterance) ([]models.MindCommand, error) {
	if action == nil {
		return nil, nil
	}
	switch *action {
	case models.ActionCreateGoal:
		p := &models.CreateGoalPayload{
			Title:  strings.TrimSpace(w.Title),
			Emoji:  w.Emoji,
			Pillar: pillarRef(w.Target),
		}
		if w.Importance != nil {
			p.Importance = models.ClampImportance(*w.Importance)
		}
		if w.Description != nil {
			p.Detail = *w.Description
		}
		for _, n := range w.allNodes() {
			p.Nodes = append(p.Nodes, n.descriptor())
		}
		return []models.MindCommand{{Kind: models.CommandCreateGoal, CreateGoal: p}}, nil

	case models.ActionUpdateGoal:
		p := &models.UpdateGoalPayload{
			Target:     goalRef(w.Target),
			Title:      optString(w.Title),
			Detail:     w.Description,
			Importance: w.Importance,
			Emoji:      optString(w.Emoji),
		}
		if p.Importance != nil {
			v := models.ClampImportance(*p.Importance)
			p.Importance = &v
		}
		return []models.MindCommand{{Kind: models.CommandUpdateGoal, UpdateGoal: p}}, nil

	case models.ActionCreatePillar:
		fields, err := w.pillarFields()
		if err != nil {
			return nil, err
		}
		p := &models.CreatePillarPayload{Name: strings.TrimSpace(w.Name), PillarFields: fields}
		if p.Name == "" {
			p.Name = strings.TrimSpace(w.Title)
		}
		return []models.MindCommand{{Kind: models.CommandCreatePillar, CreatePillar: p}}, nil

	case models.ActionUpdatePillar:
		fields, err := w.pillarFields()
		if err != nil {
			return nil, err
		}
		p := &models.UpdatePillarPayload{PillarFields: fields}
		if w.Target != nil {
			p.Target = *pillarRef(w.Target)
			p.Rename = optString(w.Name)
		} else {
			p.Target = models.PillarReference{Name: strings.TrimSpace(w.Name)}
		}
		return []models.MindCommand{{Kind: models.CommandUpdatePillar, UpdatePillar: p}}, nil

	case models.ActionAddNode:
		ref := goalRef(w.Target)
		var out []models.MindCommand
		for _, n := range w.allNodes() {
			out = append(out, models.MindCommand{
				Kind:    models.CommandAddNode,
				AddNode: &models.AddNodePayload{Goal: ref, Node: n.descriptor()},
			})
		}
		return out, nil

	case models.ActionCreateEvent:
		when, err := d.when(w, u)
		if err != nil {
			return nil, err
		}
		title := strings.TrimSpace(w.Title)
		p := &models.CreateEventPayload{
			Title:           title,
			When:            when,
			DurationSeconds: durationOf(w),
			EnergyTag:       firstNonEmpty(w.Energy, offline.EnergyTag(title)),
			Emoji:           firstNonEmpty(w.Emoji, offline.PickEmoji(title)),
			Pillar:          pillarRef(w.Target),
		}
		return []models.MindCommand{{Kind: models.CommandCreateEvent, CreateEvent: p}}, nil

	case models.ActionCreateChain:
		when, err := d.when(w, u)
		if err != nil {
			return nil, err
		}
		p := &models.CreateChainPayload{Name: firstNonEmpty(strings.TrimSpace(w.Name), strings.TrimSpace(w.Title)), When: when}
		for _, b := range w.Blocks {
			title := strings.TrimSpace(b.Title)
			p.Blocks = append(p.Blocks, models.ChainBlock{
				Title:           title,
				DurationSeconds: minutesToSeconds(b.DurationMinutes),
				EnergyTag:       firstNonEmpty(b.Energy, offline.EnergyTag(title)),
				Emoji:           firstNonEmpty(b.Emoji, offline.PickEmoji(title)),
			})
		}
		return []models.MindCommand{{Kind: models.CommandCreateChain, CreateChain: p}}, nil
	}
	return nil, nil
}

// when resolves the event time: an RFC3339 start wins over a natural language phrase
func (d *Decoder) when(w *wireReply, u models.Utterance) (*models.ParsedEventTime, error) {
	if w.Start != "" {
		t, err := time.Parse(time.RFC3339, w.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid start %q: %w", w.Start, err)
		}
		return &models.ParsedEventTime{Date: t.In(d.temporal.Location()), HasExplicitDate: true, HasExplicitTime: true}, nil
	}
	phrase := w.When
	if phrase == "" {
		phrase = u.Text
	}
	ref := u.ReferenceDate
	if ref.IsZero() {
		ref = d.temporal.Now()
	}
	return d.temporal.Parse(phrase, ref), nil
}

func (w *wireReply) hasPillarFields() bool {
	return w.Description != nil || w.Wisdom != nil || w.Frequency != nil ||
		len(w.Values) > 0 || len(w.Habits) > 0 || len(w.Constraints) > 0 ||
		strings.TrimSpace(w.QuietHours) != ""
}

// pillarTarget returns the reply's own target or the saved pillar the
// utterance names
func (d *Decoder) pillarTarget(w *wireReply, u models.Utterance, pillars []models.Pillar) *wireTarget {
	if pillarRef(w.Target) != nil {
		return w.Target
	}
	m := offline.ResolveEntity(u.Text, nil, pillars)
	if m == nil || m.Pillar == nil {
		return nil
	}
	return &wireTarget{ID: m.Pillar.ID.String(), Name: m.Pillar.Name}
}

func (w *wireReply) allNodes() []wireNode {
	nodes := append([]wireNode(nil), w.Nodes...)
	if w.Node != nil {
		nodes = append([]wireNode{*w.Node}, nodes...)
	}
	return nodes
}

func (n wireNode) descriptor() models.NodeDescriptor {
	t := models.NodeType(strings.ToLower(strings.TrimSpace(n.Type)))
	if t == "" {
		t = models.NodeTypeTask
	}
	return models.NodeDescriptor{
		Type:   t,
		Title:  strings.TrimSpace(n.Title),
		Detail: n.Detail,
		Pinned: n.Pinned,
		Weight: n.Weight,
	}
}

func (w *wireReply) pillarFields() (models.PillarFields, error) {
	f := models.PillarFields{
		Description: w.Description,
		Wisdom:      w.Wisdom,
		Values:      w.Values,
		Habits:      w.Habits,
		Constraints: w.Constraints,
		Frequency:   w.Frequency,
		Emoji:       optString(w.Emoji),
	}
	if strings.TrimSpace(w.QuietHours) != "" {
		windows, err := models.ParseTimeWindows(w.QuietHours)
		if err != nil {
			return f, fmt.Errorf("invalid quiet_hours: %w", err)
		}
		for _, win := range windows {
			f.QuietHours = append(f.QuietHours, win.Descriptor())
		}
	}
	return f, nil
}

// NormalizeCommands validates commands and drops the ones that fail. It is
// applied to remote and offline output alike.
func NormalizeCommands(cmds []models.MindCommand, logger *zap.Logger) []models.MindCommand {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]models.MindCommand, 0, len(cmds))
	for i := range cmds {
		cmd := cmds[i]
		normalizeLists(&cmd)
		if err := validation.ValidateCommand(&cmd); err != nil {
			logger.Warn("command_dropped_invalid",
				zap.String("kind", string(cmd.Kind)),
				zap.Error(err),
			)
			continue
		}
		out = append(out, cmd)
	}
	return out
}

func normalizeLists(cmd *models.MindCommand) {
	var f *models.PillarFields
	switch {
	case cmd.CreatePillar != nil:
		f = &cmd.CreatePillar.PillarFields
	case cmd.UpdatePillar != nil:
		f = &cmd.UpdatePillar.PillarFields
	default:
		return
	}
	if f.Values != nil {
		f.Values = models.DedupeFold(f.Values)
	}
	if f.Habits != nil {
		f.Habits = models.DedupeFold(f.Habits)
	}
	if f.Constraints != nil {
		f.Constraints = models.DedupeFold(f.Constraints)
	}
}

func goalRef(t *wireTarget) models.GoalReference {
	if t == nil {
		return models.GoalReference{}
	}
	ref := models.GoalReference{Title: strings.TrimSpace(firstNonEmpty(t.Title, t.Name))}
	if id, err := uuid.Parse(t.ID); err == nil {
		ref.ID = &id
	}
	return ref
}

func pillarRef(t *wireTarget) *models.PillarReference {
	if t == nil {
		return nil
	}
	ref := models.PillarReference{Name: strings.TrimSpace(firstNonEmpty(t.Name, t.Title))}
	if id, err := uuid.Parse(t.ID); err == nil {
		ref.ID = &id
	}
	if ref.Empty() {
		return nil
	}
	return &ref
}

func actionable(cmds []models.MindCommand) []models.MindCommand {
	out := make([]models.MindCommand, 0, len(cmds))
	for _, c := range cmds {
		if c.Kind != models.CommandClarification {
			out = append(out, c)
		}
	}
	return out
}

func durationOf(w *wireReply) int {
	if w.DurationMinutes != nil {
		return minutesToSeconds(*w.DurationMinutes)
	}
	total := 0
	for _, b := range w.Blocks {
		total += minutesToSeconds(b.DurationMinutes)
	}
	return total
}

func minutesToSeconds(m int) int {
	if m < 0 {
		return 0
	}
	return m * 60
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
