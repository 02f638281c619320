package offline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

var (
	creationRe = regexp.MustCompile(`(?i)\b(?:new|create|start|make|set\s+up|add|begin)\s+(?:a\s+|an\s+|another\s+|the\s+)?(?:new\s+)?((?:[a-z]+\s+){0,2}?)(goal|pillar|chain|routine)\b`)
	calledRe   = regexp.MustCompile(`(?i)^\s*(?:(?:called|named|titled|to|of|about|for)\b|:|-)?\s*`)
	namedRe    = regexp.MustCompile(`(?i)\b(?:called|named)\s+(.+)`)
	pinnedRe   = regexp.MustCompile(`(?i)\bpin(?:ned)?\b`)
	bareGoalRe = regexp.MustCompile(`(?i)\b(?:my\s+)?goal\s*(?::|is\s+to|-)\s*(.+)`)
	barePillRe = regexp.MustCompile(`(?i)\b(?:my\s+)?pillar\s*(?::|is\b|-)\s*(.+)`)
	keywordRe  = regexp.MustCompile(`(?i)\b(goal|pillar)s?\b`)
	nodeRe     = regexp.MustCompile(`(?i)\badd\s+(?:a\s+|an\s+|another\s+)?(sub-?goal|task|note|resource|metric)\s*:?\s+(.+)`)
	weightRe   = regexp.MustCompile(`(?i)\bweight\s*(?:of|:|=)?\s*(0(?:\.\d+)?|1(?:\.0+)?|\.\d+)\b`)
	eventRe    = regexp.MustCompile(`(?i)\b(?:schedule|block\s+out|block|book|plan|remind\s+me\s+to|put)\s+(.+)`)
	durationRe = regexp.MustCompile(`(?i)\bfor\s+(?:(\d+)\s*(minutes?|mins?|m|hours?|hrs?|h)\b|(an?|one)\s+hour\b|half\s+an\s+hour\b)`)
	blockRe    = regexp.MustCompile(`(?i)^(.*?)\s*(?:for\s+)?(\d+)\s*(minutes?|mins?|m|hours?|hrs?|h)$`)

	temporalCutRe = regexp.MustCompile(`(?i)\s(?:(?:at|on|in|for|from|by|tomorrow|today|tonight|yesterday|next|this|every|monday|tuesday|wednesday|thursday|friday|saturday|sunday|morning|afternoon|evening|noon|midnight)\b|\d)`)
)

// modifier words that mean the creation regex latched onto a sentence
// about something else
var creationStopWords = map[string]bool{
	"to": true, "for": true, "on": true, "in": true, "into": true, "under": true,
	"from": true, "with": true, "my": true, "this": true, "that": true,
}

var titleTerminators = []string{".", "\n", ",", " with ", " under ", " in pillar", " because ", " priority", " importance", " - "}

const defaultBlockSeconds = 15 * 60

type creation struct {
	keyword  string
	modifier string
	rest     string
}

func findCreation(text string) (creation, bool) {
	loc := creationRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return creation{}, false
	}
	var modifier string
	if loc[2] >= 0 {
		modifier = strings.TrimSpace(text[loc[2]:loc[3]])
	}
	for _, w := range strings.Fields(strings.ToLower(modifier)) {
		if creationStopWords[w] {
			return creation{}, false
		}
	}
	return creation{
		keyword:  strings.ToLower(text[loc[4]:loc[5]]),
		modifier: modifier,
		rest:     text[loc[1]:],
	}, true
}

// leadingTitle strips connector words and cuts the remainder at the first
// terminator
func leadingTitle(rest string, extra ...string) string {
	rest = calledRe.ReplaceAllString(rest, "")
	cut := len(rest)
	for _, term := range append(append([]string{}, titleTerminators...), extra...) {
		if i := indexFold(rest, term); i >= 0 && i < cut {
			cut = i
		}
	}
	return cleanValue(rest[:cut])
}

func (p *Parser) parseCreateGoal(text string, c creation, match *Match) draft {
	title := leadingTitle(c.rest)
	// "priority 4" and ladder words never belong in a title
	title = strings.TrimSpace(explicitPriorityRe.ReplaceAllString(title, ""))
	if title == "" && c.modifier != "" {
		title = titleWords(c.modifier)
	}
	d := draft{anchored: true, action: models.ActionCreateGoal}
	if title == "" {
		q := "What should the new goal be called?"
		d.commands = []models.MindCommand{models.NewClarification(q)}
		d.summary = q
		return d
	}
	title = capitalize(title)

	payload := &models.CreateGoalPayload{Title: title}
	if importance, ok := InferImportance(text); ok {
		payload.Importance = importance
		d.fields++
	}
	if detail, ok := extractField(text, "description"); ok {
		payload.Detail = detail
		d.fields++
	}
	if match != nil && match.Kind == EntityPillar {
		payload.Pillar = &models.PillarReference{ID: &match.Pillar.ID, Name: match.Pillar.Name}
		d.fields++
	}

	d.commands = []models.MindCommand{{Kind: models.CommandCreateGoal, CreateGoal: payload}}
	d.summary = fmt.Sprintf("Create goal %s.", title)
	d.created = []string{title}
	d.title = title
	d.emoji = PickEmoji(title)
	return d
}

func (p *Parser) parseCreatePillar(text string, c creation) draft {
	name := leadingTitle(c.rest, " add ", " values", " habits", " constraints", " quiet")
	if name == "" && c.modifier != "" {
		name = c.modifier
	}
	d := draft{anchored: true, action: models.ActionCreatePillar}
	if name == "" {
		q := "What should the new pillar be called?"
		d.commands = []models.MindCommand{models.NewClarification(q)}
		d.summary = q
		return d
	}
	name = titleWords(name)

	fields, n := extractPillarFields(text)
	d.fields = n
	d.commands = []models.MindCommand{{
		Kind:         models.CommandCreatePillar,
		CreatePillar: &models.CreatePillarPayload{Name: name, PillarFields: fields},
	}}
	d.summary = fmt.Sprintf("Create pillar %s.", name)
	d.created = []string{name}
	d.title = name
	d.emoji = PickEmoji(name)
	return d
}

func (p *Parser) parseCreateChain(text string, u models.Utterance, c creation) draft {
	d := draft{anchored: true, action: models.ActionCreateChain}

	var name string
	if m := namedRe.FindStringSubmatch(c.rest); m != nil {
		name = leadingTitle(m[1], ":")
	}
	if name == "" {
		name = strings.TrimSpace(c.modifier + " " + c.keyword)
	}
	name = titleWords(name)

	var blocksText string
	if i := strings.Index(c.rest, ":"); i >= 0 {
		blocksText = c.rest[i+1:]
	} else if i := indexFold(c.rest, " with "); i >= 0 {
		blocksText = c.rest[i+len(" with "):]
	}
	blocksText = replaceFold(blocksText, " then ", ",")

	var blocks []models.ChainBlock
	total := 0
	for _, item := range SplitList(blocksText) {
		item = strings.TrimSuffix(strings.TrimSpace(item), ".")
		b := models.ChainBlock{Title: item, DurationSeconds: defaultBlockSeconds}
		if m := blockRe.FindStringSubmatch(item); m != nil && strings.TrimSpace(m[1]) != "" {
			b.Title = strings.TrimSpace(m[1])
			b.DurationSeconds = durationSeconds(m[2], m[3])
		}
		b.Title = capitalize(b.Title)
		b.EnergyTag = EnergyTag(b.Title)
		b.Emoji = PickEmoji(b.Title)
		blocks = append(blocks, b)
		total += b.DurationSeconds
	}
	if len(blocks) == 0 {
		q := fmt.Sprintf("Which blocks should %s include?", name)
		d.commands = []models.MindCommand{models.NewClarification(q)}
		d.summary = q
		return d
	}

	payload := &models.CreateChainPayload{Name: name, Blocks: blocks}
	d.fields = 1
	if when := p.temporal.Parse(text, u.ReferenceDate); when != nil {
		payload.When = when
		d.fields++
	}
	d.commands = []models.MindCommand{{Kind: models.CommandCreateChain, CreateChain: payload}}
	d.summary = fmt.Sprintf("Create chain %s with %d blocks.", name, len(blocks))
	d.created = []string{name}
	d.title = name
	d.durationSeconds = total
	d.emoji = PickEmoji(name)
	return d
}

func (p *Parser) parseAddNode(text string, match *Match) (draft, bool) {
	m := nodeRe.FindStringSubmatch(text)
	if m == nil {
		return draft{}, false
	}
	nodeType := models.NodeType(strings.ReplaceAll(strings.ToLower(m[1]), "-", ""))

	rest := m[2]
	cut := len(rest)
	var goalText string
	for _, term := range []string{" to ", " under ", " for "} {
		if i := indexFold(rest, term); i >= 0 && i < cut {
			cut = i
			goalText = rest[i+len(term):]
		}
	}
	title := cleanValue(strings.TrimSuffix(strings.TrimSpace(rest[:cut]), "."))
	title = strings.TrimSpace(weightRe.ReplaceAllString(title, ""))

	d := draft{anchored: true, action: models.ActionAddNode}
	var ref models.GoalReference
	switch {
	case match != nil && match.Kind == EntityGoal:
		ref = models.GoalReference{ID: &match.Goal.ID, Title: match.Goal.Title}
	case goalText != "":
		goalText = cleanValue(strings.TrimSuffix(strings.TrimSpace(goalText), "."))
		goalText = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(goalText, " goal"), " Goal"))
		ref = models.GoalReference{Title: goalText}
	}
	if ref.Empty() || title == "" {
		q := fmt.Sprintf("Which goal should I add the %s to?", nodeType)
		if title == "" {
			q = fmt.Sprintf("What should the new %s say?", nodeType)
		}
		d.commands = []models.MindCommand{models.NewClarification(q)}
		d.summary = q
		return d, true
	}

	node := models.NodeDescriptor{Type: nodeType, Title: capitalize(title)}
	d.fields = 1
	if pinnedRe.MatchString(text) {
		node.Pinned = true
		d.fields++
	}
	if wm := weightRe.FindStringSubmatch(text); wm != nil {
		if w, err := strconv.ParseFloat(wm[1], 64); err == nil {
			node.Weight = &w
			d.fields++
		}
	}
	target := ref.Title
	d.commands = []models.MindCommand{{Kind: models.CommandAddNode, AddNode: &models.AddNodePayload{Goal: ref, Node: node}}}
	d.summary = fmt.Sprintf("Add %s %s to %s.", nodeType, node.Title, target)
	d.title = node.Title
	return d, true
}

func (p *Parser) parseEvent(text string, u models.Utterance, match *Match) (draft, bool) {
	m := eventRe.FindStringSubmatch(text)
	if m == nil || MentionsQuietHours(text) {
		return draft{}, false
	}
	when := p.temporal.Parse(text, u.ReferenceDate)
	if when == nil {
		return draft{}, false
	}

	title := " " + m[1]
	if loc := temporalCutRe.FindStringIndex(title); loc != nil {
		title = title[:loc[0]]
	}
	title = cleanValue(strings.TrimSuffix(strings.TrimSpace(title), "."))
	for _, prefix := range []string{"time for ", "some ", "a ", "an "} {
		if len(title) > len(prefix) && strings.EqualFold(title[:len(prefix)], prefix) {
			title = title[len(prefix):]
		}
	}

	d := draft{anchored: true, action: models.ActionCreateEvent}
	if title == "" {
		q := "What should I put on the calendar?"
		d.commands = []models.MindCommand{models.NewClarification(q)}
		d.summary = q
		return d, true
	}
	title = capitalize(title)

	payload := &models.CreateEventPayload{Title: title, When: when}
	d.fields = 1
	if dm := durationRe.FindStringSubmatch(text); dm != nil {
		switch {
		case dm[1] != "":
			payload.DurationSeconds = durationSeconds(dm[1], dm[2])
		case dm[3] != "":
			payload.DurationSeconds = int(time.Hour / time.Second)
		default:
			payload.DurationSeconds = int(30 * time.Minute / time.Second)
		}
		d.fields++
	}
	if tag := EnergyTag(title); tag != "" {
		payload.EnergyTag = tag
		d.fields++
	}
	payload.Emoji = PickEmoji(title)
	if match != nil && match.Kind == EntityPillar {
		payload.Pillar = &models.PillarReference{ID: &match.Pillar.ID, Name: match.Pillar.Name}
		d.fields++
	}

	d.commands = []models.MindCommand{{Kind: models.CommandCreateEvent, CreateEvent: payload}}
	d.summary = fmt.Sprintf("Schedule %s for %s.", title, when.Date.Format("Mon Jan 2 15:04"))
	d.created = []string{title}
	d.title = title
	d.durationSeconds = payload.DurationSeconds
	d.energy = payload.EnergyTag
	d.emoji = payload.Emoji
	return d, true
}

// parseBareKeyword handles "goal: ..." or "pillar: ..." without a creation
// verb. A keyword without a usable name becomes a naming question.
func (p *Parser) parseBareKeyword(text string) (draft, bool) {
	if m := bareGoalRe.FindStringSubmatch(text); m != nil {
		return p.parseCreateGoal(text, creation{keyword: "goal", rest: m[1]}, nil), true
	}
	if m := barePillRe.FindStringSubmatch(text); m != nil {
		return p.parseCreatePillar(text, creation{keyword: "pillar", rest: m[1]}), true
	}
	if m := keywordRe.FindStringSubmatch(text); m != nil {
		kw := strings.ToLower(m[1])
		q := fmt.Sprintf("Which %s do you mean? I couldn't find one by that name.", kw)
		return draft{
			anchored: true,
			commands: []models.MindCommand{models.NewClarification(q)},
			summary:  q,
		}, true
	}
	return draft{}, false
}

func durationSeconds(amount, unit string) int {
	n, err := strconv.Atoi(amount)
	if err != nil || n <= 0 {
		return defaultBlockSeconds
	}
	if strings.HasPrefix(strings.ToLower(unit), "h") {
		return n * 3600
	}
	return n * 60
}
