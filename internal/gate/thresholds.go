package gate

import (
	"fmt"
	"os"

	"github.com/benvon/smart-planner/internal/models"
	"gopkg.in/yaml.v3"
)

// thresholdFile is the YAML layout of a threshold override file:
//
//	composite_bar: 0.65
//	actions:
//	  createPillar: {execute: 0.9, stage: 0.6}
type thresholdFile struct {
	CompositeBar *float64                        `yaml:"composite_bar"`
	Actions      map[models.ActionType]Threshold `yaml:"actions"`
}

// WithOverrides returns a copy of the gate with the given overrides applied
func (g *Gate) WithOverrides(overrides map[models.ActionType]Threshold, compositeBar *float64) (*Gate, error) {
	out := New()
	for k, v := range g.thresholds {
		out.thresholds[k] = v
	}
	out.compositeBar = g.compositeBar

	for action, t := range overrides {
		if !action.Valid() {
			return nil, fmt.Errorf("unknown action %q", action)
		}
		if t.Stage < 0 || t.Execute > 1 || t.Stage > t.Execute {
			return nil, fmt.Errorf("invalid thresholds for %s: need 0 <= stage <= execute <= 1", action)
		}
		out.thresholds[action] = t
	}
	if compositeBar != nil {
		if *compositeBar < 0 || *compositeBar > 1 {
			return nil, fmt.Errorf("invalid composite_bar %v", *compositeBar)
		}
		out.compositeBar = *compositeBar
	}
	return out, nil
}

// ParseThresholds builds a gate from YAML override data
func ParseThresholds(data []byte) (*Gate, error) {
	var f thresholdFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse gate thresholds: %w", err)
	}
	return New().WithOverrides(f.Actions, f.CompositeBar)
}

// LoadThresholds reads a YAML override file. An empty path yields the
// default gate.
func LoadThresholds(path string) (*Gate, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gate thresholds file: %w", err)
	}
	return ParseThresholds(data)
}
