package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newParseTimeCmd(s *settings) *cobra.Command {
	var reference string

	cmd := &cobra.Command{
		Use:   "parse-time TEXT...",
		Short: "Extract a date and time from free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := s.logger()
			if err != nil {
				return err
			}
			tp, err := s.temporal(log)
			if err != nil {
				return err
			}

			var ref time.Time
			if reference != "" {
				if ref, err = parseReference(reference, tp.Location()); err != nil {
					return err
				}
			}

			text := strings.Join(args, " ")
			parsed := tp.Parse(text, ref)
			if parsed == nil {
				return fmt.Errorf("no date or time found in %q", text)
			}

			if s.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), parsed)
			}
			printFields(cmd.OutOrStdout(),
				[]any{"date", formatTime(parsed.Date)},
				[]any{"explicit date", parsed.HasExplicitDate},
				[]any{"explicit time", parsed.HasExplicitTime},
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "reference date (YYYY-MM-DD or RFC3339), defaults to now")
	return cmd
}

// parseReference accepts a plain date or an RFC3339 timestamp
func parseReference(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference %q: want YYYY-MM-DD or RFC3339", raw)
	}
	return t.In(loc), nil
}
