package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/applier"
	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/interpreter"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const cliConversation = "plannerctl"

type interpretStep struct {
	Utterance string              `json:"utterance"`
	Outcome   interpreter.Outcome `json:"outcome"`
}

type interpretResult struct {
	Steps   []interpretStep `json:"steps"`
	Goals   []models.Goal   `json:"goals"`
	Pillars []models.Pillar `json:"pillars"`
	Events  []models.Event  `json:"events"`
}

func newInterpretCmd(s *settings) *cobra.Command {
	var (
		accept  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "interpret UTTERANCE...",
		Short: "Run utterances through the interpreter against an empty planner",
		Long: `Run each argument as one utterance, in order, through the full interpreter
pipeline against an in-memory planner and print the outcomes and the final
planner state. The offline parser is used unless --ai-provider selects a
remote backend (the key is read from PLANNER_OPENAI_API_KEY).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := s.logger()
			if err != nil {
				return err
			}
			tp, err := s.temporal(log)
			if err != nil {
				return err
			}
			backend, err := s.backend(log)
			if err != nil {
				return err
			}

			store := database.NewMemoryStore()
			interp := interpreter.New(cliConversation, interpreter.Deps{
				Backend:  backend,
				Decoder:  ai.NewDecoder(tp, log),
				Offline:  offline.New(tp, log),
				Applier:  applier.New(store, tp, applier.WithLogger(log)),
				Store:    store,
				Contexts: ai.NewContextService(store),
				Temporal: tp,
				Logger:   log,
				Timeout:  timeout,
			})
			defer interp.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var res interpretResult
			for _, text := range args {
				now := tp.Now()
				out, err := interp.Submit(ctx, models.Utterance{
					Text:           text,
					SentAt:         now,
					ReferenceDate:  now,
					ConversationID: cliConversation,
				})
				if err != nil {
					return fmt.Errorf("failed to interpret %q: %w", text, err)
				}
				res.Steps = append(res.Steps, interpretStep{Utterance: text, Outcome: out})

				if !accept || out.Kind != interpreter.OutcomeStaged {
					continue
				}
				for _, sg := range out.Staged {
					accepted, err := interp.Accept(ctx, sg.ID)
					if errors.Is(err, interpreter.ErrSuggestionNotFound) {
						continue
					}
					if err != nil {
						return fmt.Errorf("failed to accept %q: %w", sg.Title, err)
					}
					res.Steps = append(res.Steps, interpretStep{Utterance: "accept: " + sg.Title, Outcome: accepted})
				}
			}

			if err := res.loadState(ctx, store, tp.Now()); err != nil {
				return err
			}
			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			res.render(cmd)
			return nil
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept every staged suggestion")
	cmd.Flags().DurationVar(&timeout, "timeout", interpreter.DefaultTimeout, "remote backend timeout")
	cmd.Flags().String("ai-provider", "none", "remote backend: none or openai")
	cmd.Flags().String("ai-model", "", "remote model name")
	cmd.Flags().String("ai-base-url", "", "remote API base URL")
	for _, name := range []string{"ai-provider", "ai-model", "ai-base-url"} {
		_ = s.v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
	return cmd
}

func (s *settings) backend(log *zap.Logger) (ai.Backend, error) {
	backend, err := ai.NewRegistry(log).GetProvider(s.v.GetString("ai-provider"), map[string]string{
		"api_key":  s.v.GetString("openai-api-key"),
		"base_url": s.v.GetString("ai-base-url"),
		"model":    s.v.GetString("ai-model"),
		"debug":    strconv.FormatBool(s.v.GetBool("debug")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI backend: %w", err)
	}
	return backend, nil
}

func (r *interpretResult) loadState(ctx context.Context, store database.Store, now time.Time) error {
	snap, err := store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read planner state: %w", err)
	}
	r.Goals, r.Pillars = snap.Goals, snap.Pillars
	events, err := store.EventsBetween(ctx, now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0))
	if err != nil {
		return fmt.Errorf("failed to read events: %w", err)
	}
	r.Events = events
	return nil
}

func (r *interpretResult) render(cmd *cobra.Command) {
	w := cmd.OutOrStdout()

	tw := newTable(w, "#", "Utterance", "Outcome", "Path", "Decision", "Confidence", "Message")
	for n, step := range r.Steps {
		o := step.Outcome
		tw.AppendRow([]any{n + 1, step.Utterance, o.Kind, o.Path, o.Decision, fmt.Sprintf("%.2f", o.Confidence), outcomeMessage(o)})
	}
	tw.Render()

	if len(r.Pillars) > 0 {
		tw = newTable(w, "Pillar", "Values", "Quiet hours")
		for _, p := range r.Pillars {
			tw.AppendRow([]any{p.Name, strings.Join(p.Values, ", "), models.FormatTimeWindows(p.QuietHours)})
		}
		tw.Render()
	}
	if len(r.Goals) > 0 {
		tw = newTable(w, "Goal", "Importance", "Nodes")
		for _, g := range r.Goals {
			tw.AppendRow([]any{g.Title, g.Importance, len(g.Nodes)})
		}
		tw.Render()
	}
	if len(r.Events) > 0 {
		tw = newTable(w, "Event", "Start", "End", "Energy")
		for _, e := range r.Events {
			tw.AppendRow([]any{strings.TrimSpace(e.Emoji + " " + e.Title), formatTime(e.Start), formatTime(e.End), e.EnergyTag})
		}
		tw.Render()
	}
}

func outcomeMessage(o interpreter.Outcome) string {
	switch {
	case o.Clarification != "":
		return o.Clarification
	case len(o.Applied) > 0:
		return strings.Join(o.Applied, "; ")
	case len(o.Staged) > 0:
		titles := make([]string, len(o.Staged))
		for i, sg := range o.Staged {
			titles[i] = sg.Title
		}
		return "staged: " + strings.Join(titles, ", ")
	}
	return o.Message
}
