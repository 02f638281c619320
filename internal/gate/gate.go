// Package gate decides whether an interpreted response is executed
// immediately, staged for approval or turned into a clarifying question.
package gate

import (
	"regexp"

	"github.com/benvon/smart-planner/internal/models"
)

// Decision is the gate's verdict
type Decision string

const (
	Execute Decision = "execute"
	Stage   Decision = "stage"
	Clarify Decision = "clarify"
	None    Decision = "none"
)

// Threshold holds the execute and stage floors of one action type
type Threshold struct {
	Execute float64 `yaml:"execute"`
	Stage   float64 `yaml:"stage"`
}

// DefaultThresholds reflect the cost of being wrong per action
var DefaultThresholds = map[models.ActionType]Threshold{
	models.ActionCreateEvent:  {Execute: 0.70, Stage: 0.50},
	models.ActionCreateGoal:   {Execute: 0.80, Stage: 0.60},
	models.ActionCreatePillar: {Execute: 0.85, Stage: 0.60},
	models.ActionCreateChain:  {Execute: 0.75, Stage: 0.60},
	models.ActionUpdateGoal:   {Execute: 0.75, Stage: 0.55},
	models.ActionUpdatePillar: {Execute: 0.75, Stage: 0.55},
	models.ActionAddNode:      {Execute: 0.70, Stage: 0.50},
}

// DefaultCompositeBar is the execute bar for legacy responses without an action
const DefaultCompositeBar = 0.65

// heuristic weights for legacy responses
const (
	weightScheduling    = 0.20
	weightExplicitTime  = 0.20
	weightUrgency       = 0.15
	weightSingle        = 0.10
	weightRecentSuccess = 0.10
	weightTotal         = weightScheduling + weightExplicitTime + weightUrgency + weightSingle + weightRecentSuccess
)

// Signals are the auxiliary inputs to a decision
type Signals struct {
	HasSchedulingKeyword bool
	HasExplicitTime      bool
	HasUrgency           bool
	SuggestionCount      int
	RecentSuccess        bool
	// HasPayload is set when there is a concrete command to stage
	HasPayload bool
}

// Gate maps action, confidence and signals onto a Decision
type Gate struct {
	thresholds   map[models.ActionType]Threshold
	compositeBar float64
}

// New creates a gate with the default thresholds
func New() *Gate {
	t := make(map[models.ActionType]Threshold, len(DefaultThresholds))
	for k, v := range DefaultThresholds {
		t[k] = v
	}
	return &Gate{thresholds: t, compositeBar: DefaultCompositeBar}
}

// Threshold returns the thresholds of an action
func (g *Gate) Threshold(action models.ActionType) (Threshold, bool) {
	t, ok := g.thresholds[action]
	return t, ok
}

// Decide applies the per-action thresholds. Below the execute floor the
// stage band is only used when there is something concrete to stage;
// otherwise the answer is a clarification. suggestActivities always stages
// and generalChat stages only when suggestions are present.
func (g *Gate) Decide(action models.ActionType, confidence float64, signals Signals) Decision {
	switch action {
	case models.ActionSuggestActivities:
		return Stage
	case models.ActionGeneralChat:
		if signals.SuggestionCount > 0 {
			return Stage
		}
		return None
	case models.ActionAbstain:
		return None
	case "":
		if g.Composite(confidence, signals) >= g.compositeBar {
			return Execute
		}
		return Stage
	}

	t, ok := g.thresholds[action]
	if !ok {
		return Clarify
	}
	if confidence >= t.Execute {
		return Execute
	}
	if confidence >= t.Stage && (signals.HasPayload || signals.SuggestionCount > 0) {
		return Stage
	}
	return Clarify
}

// Composite blends raw confidence with keyword heuristics for responses
// that carry no typed action. The heuristic sum is normalized to [0,1] and
// averaged with the confidence.
func (g *Gate) Composite(confidence float64, s Signals) float64 {
	h := 0.0
	if s.HasSchedulingKeyword {
		h += weightScheduling
	}
	if s.HasExplicitTime {
		h += weightExplicitTime
	}
	if s.HasUrgency {
		h += weightUrgency
	}
	if s.SuggestionCount == 1 {
		h += weightSingle
	}
	if s.RecentSuccess {
		h += weightRecentSuccess
	}
	return (clamp01(confidence) + h/weightTotal) / 2
}

var (
	schedulingRe = regexp.MustCompile(`(?i)\b(?:schedule|block|book|plan|calendar|remind|meeting|appointment|slot|reschedule)\b`)
	urgencyRe    = regexp.MustCompile(`(?i)\b(?:urgent|asap|right\s+now|immediately|critical|today|tonight|deadline)\b`)
)

// SignalsFromText derives the keyword signals of an utterance. when is the
// parsed time of the utterance, if any.
func SignalsFromText(text string, when *models.ParsedEventTime) Signals {
	return Signals{
		HasSchedulingKeyword: schedulingRe.MatchString(text),
		HasExplicitTime:      when != nil && when.HasExplicitTime,
		HasUrgency:           urgencyRe.MatchString(text),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
