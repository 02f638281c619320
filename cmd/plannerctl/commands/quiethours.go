package commands

import (
	"strings"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/spf13/cobra"
)

type quietHoursResult struct {
	Mentioned bool                         `json:"mentioned"`
	Windows   []models.QuietHourDescriptor `json:"windows"`
}

func newQuietHoursCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "quiet-hours TEXT...",
		Short: "Extract quiet-hour windows from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			windows := offline.ExtractQuietHours(text)
			res := quietHoursResult{
				Mentioned: offline.MentionsQuietHours(text),
				Windows:   make([]models.QuietHourDescriptor, 0, len(windows)),
			}
			for _, w := range windows {
				res.Windows = append(res.Windows, w.Descriptor())
			}

			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), res)
			}
			tw := newTable(cmd.OutOrStdout(), "Start", "End")
			for _, d := range res.Windows {
				tw.AppendRow([]any{d.Start, d.End})
			}
			tw.AppendFooter([]any{"mentions quiet hours", res.Mentioned})
			tw.Render()
			return nil
		},
	}
}
