package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/schedule"
	"github.com/spf13/cobra"
)

type slotResult struct {
	Proposed time.Time `json:"proposed"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Moved    bool      `json:"moved"`
}

func newFindSlotCmd(s *settings) *cobra.Command {
	var (
		at       string
		duration time.Duration
		busy     []string
	)

	cmd := &cobra.Command{
		Use:   "find-slot",
		Short: "Place a block without overlapping busy windows",
		Long: `Place a block of the given duration at the earliest start at or after --at
that does not overlap any --busy window. --at accepts natural language such as
"tomorrow at 3pm"; busy windows are HH:MM-HH:MM on the same day.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if at == "" {
				return fmt.Errorf("--at is required")
			}
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			log, err := s.logger()
			if err != nil {
				return err
			}
			tp, err := s.temporal(log)
			if err != nil {
				return err
			}

			parsed := tp.Parse(at, time.Time{})
			if parsed == nil {
				return fmt.Errorf("no date or time found in %q", at)
			}
			windows, err := models.ParseTimeWindows(strings.Join(busy, ","))
			if err != nil {
				return fmt.Errorf("invalid --busy: %w", err)
			}

			blocks := blocksOn(parsed.Date, windows)
			start := schedule.NewFinder(tp.Now).Find(parsed.Date, duration, blocks)
			res := slotResult{
				Proposed: parsed.Date,
				Start:    start,
				End:      start.Add(duration),
				Moved:    !start.Equal(parsed.Date),
			}

			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printFields(cmd.OutOrStdout(),
				[]any{"proposed", formatTime(res.Proposed)},
				[]any{"start", formatTime(res.Start)},
				[]any{"end", formatTime(res.End)},
				[]any{"moved", res.Moved},
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "proposed start")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Minute, "block duration")
	cmd.Flags().StringSliceVar(&busy, "busy", nil, "busy window HH:MM-HH:MM (repeatable)")
	return cmd
}

func blocksOn(day time.Time, windows []models.TimeWindow) []schedule.Block {
	blocks := make([]schedule.Block, 0, len(windows))
	for _, w := range windows {
		blocks = append(blocks, schedule.Block{
			Start: time.Date(day.Year(), day.Month(), day.Day(), w.StartHour, w.StartMinute, 0, 0, day.Location()),
			End:   time.Date(day.Year(), day.Month(), day.Day(), w.EndHour, w.EndMinute, 0, 0, day.Location()),
		})
	}
	return blocks
}
