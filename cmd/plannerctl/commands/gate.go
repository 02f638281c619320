package commands

import (
	"fmt"

	"github.com/benvon/smart-planner/internal/gate"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/spf13/cobra"
)

type gateResult struct {
	Action     models.ActionType `json:"action,omitempty"`
	Confidence float64           `json:"confidence"`
	Decision   gate.Decision     `json:"decision"`
	Threshold  *gate.Threshold   `json:"threshold,omitempty"`
	Composite  *float64          `json:"composite,omitempty"`
}

func newGateCmd(s *settings) *cobra.Command {
	var (
		action      string
		confidence  float64
		text        string
		payload     bool
		suggestions int
		recent      bool
	)

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Show the decision for an action and confidence",
		Long: `Show whether an interpreted response would be executed, staged or turned
into a clarifying question. Without --action the legacy composite score is used,
with keyword signals taken from --text.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if confidence < 0 || confidence > 1 {
				return fmt.Errorf("--confidence must be within [0,1]")
			}
			g := gate.New()
			if path := s.v.GetString("thresholds-file"); path != "" {
				var err error
				if g, err = gate.LoadThresholds(path); err != nil {
					return err
				}
			}
			log, err := s.logger()
			if err != nil {
				return err
			}
			tp, err := s.temporal(log)
			if err != nil {
				return err
			}

			var signals gate.Signals
			if text != "" {
				signals = gate.SignalsFromText(text, tp.Parse(text, tp.Now()))
			}
			signals.HasPayload = payload
			signals.SuggestionCount = suggestions
			signals.RecentSuccess = recent

			act := models.ActionType(action)
			res := gateResult{
				Action:     act,
				Confidence: confidence,
				Decision:   g.Decide(act, confidence, signals),
			}
			if t, ok := g.Threshold(act); ok {
				res.Threshold = &t
			}
			if act == "" {
				c := g.Composite(confidence, signals)
				res.Composite = &c
			}

			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			rows := [][]any{
				{"action", displayAction(act)},
				{"confidence", fmt.Sprintf("%.2f", confidence)},
				{"decision", res.Decision},
			}
			if res.Threshold != nil {
				rows = append(rows,
					[]any{"execute at", fmt.Sprintf("%.2f", res.Threshold.Execute)},
					[]any{"stage at", fmt.Sprintf("%.2f", res.Threshold.Stage)},
				)
			}
			if res.Composite != nil {
				rows = append(rows, []any{"composite", fmt.Sprintf("%.3f", *res.Composite)})
			}
			tw := newTable(cmd.OutOrStdout(), "Field", "Value")
			for _, r := range rows {
				tw.AppendRow(r)
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "action type, e.g. createGoal (empty for legacy responses)")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "model confidence in [0,1]")
	cmd.Flags().StringVar(&text, "text", "", "utterance to derive keyword signals from")
	cmd.Flags().BoolVar(&payload, "payload", false, "a concrete command is available to stage")
	cmd.Flags().IntVar(&suggestions, "suggestions", 0, "number of suggestions in the response")
	cmd.Flags().BoolVar(&recent, "recent-success", false, "the conversation recently applied a command")
	cmd.Flags().String("thresholds-file", "", "YAML file overriding the default thresholds")
	_ = s.v.BindPFlag("thresholds-file", cmd.Flags().Lookup("thresholds-file"))
	return cmd
}

func displayAction(a models.ActionType) string {
	if a == "" {
		return "(none)"
	}
	return string(a)
}
