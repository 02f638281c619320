package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

const dateLayout = "2006-01-02"

// SystemPrompt instructs the backend to answer with one JSON object in the
// schema the Decoder accepts.
const SystemPrompt = `You are a planning assistant that turns a user's message into structured changes to their goals, pillars, routines and calendar.
Reply with a short sentence for the user followed by at most one JSON object with these optional fields:
action (createEvent, createGoal, createPillar, createChain, updateGoal, updatePillar, addNode, suggestActivities, generalChat, abstain),
confidence (0..1), message, target {id, title, name}, title, name, importance (1..5), emoji, description, wisdom,
values, habits, constraints (lists of strings), quiet_hours ("HH:MM-HH:MM, ..."), frequency,
node {type, title, detail, pinned, weight}, nodes, when (natural language time), start (RFC3339), duration_minutes, energy,
blocks [{title, duration_minutes, energy, emoji}], suggestions [{title, duration_minutes, energy, emoji, confidence, explanation}], question.
Refer to existing goals and pillars by the id given in the context. Use action "abstain" if you cannot help.
Do not add any other fields.`

// PromptContext is the JSON context sent with every utterance
type PromptContext struct {
	CurrentDate   string         `json:"current_date"`
	ReferenceDate string         `json:"reference_date"`
	Energy        string         `json:"energy"`
	Mood          string         `json:"mood"`
	Goals         []promptGoal   `json:"goals"`
	Pillars       []promptPillar `json:"pillars"`
	Chains        []promptChain  `json:"chains"`
}

type promptGoal struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Importance int    `json:"importance"`
}

type promptPillar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type promptChain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BuildPromptContext flattens the snapshot and conversation state. Goals are
// ordered by importance so that truncating backends keep the relevant ones.
func BuildPromptContext(req *Request) PromptContext {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	ref := req.Utterance.ReferenceDate
	if ref.IsZero() {
		ref = now
	}

	energy := req.Context.Energy
	if energy == "" {
		energy = models.DefaultEnergy
	}
	mood := req.Context.Mood
	if mood == "" {
		mood = models.DefaultMood
	}

	pc := PromptContext{
		CurrentDate:   now.Format(dateLayout),
		ReferenceDate: ref.Format(dateLayout),
		Energy:        energy,
		Mood:          mood,
		Goals:         make([]promptGoal, 0, len(req.Snapshot.Goals)),
		Pillars:       make([]promptPillar, 0, len(req.Snapshot.Pillars)),
		Chains:        make([]promptChain, 0, len(req.Snapshot.Chains)),
	}
	for _, g := range req.Snapshot.Goals {
		pc.Goals = append(pc.Goals, promptGoal{ID: g.ID.String(), Title: g.Title, Importance: g.Importance})
	}
	sort.SliceStable(pc.Goals, func(i, j int) bool {
		return pc.Goals[i].Importance > pc.Goals[j].Importance
	})
	for _, p := range req.Snapshot.Pillars {
		pc.Pillars = append(pc.Pillars, promptPillar{ID: p.ID.String(), Name: p.Name})
	}
	for _, c := range req.Snapshot.Chains {
		pc.Chains = append(pc.Chains, promptChain{ID: c.ID.String(), Name: c.Name})
	}
	return pc
}

// BuildUserPrompt renders the user message: the utterance followed by the
// JSON context block.
func BuildUserPrompt(req *Request) (string, error) {
	ctxJSON, err := json.Marshal(BuildPromptContext(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt context: %w", err)
	}

	var b strings.Builder
	b.WriteString("Message: ")
	b.WriteString(strings.TrimSpace(req.Utterance.Text))
	b.WriteString("\n\nContext:\n")
	b.Write(ctxJSON)
	return b.String(), nil
}
