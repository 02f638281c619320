// Package commands implements the plannerctl subcommands. Every command
// runs fully in process against an in-memory store, which makes the CLI a
// dry-run harness for the interpreter pipeline.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/logger"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every flag name to form its environment key
const EnvPrefix = "PLANNER"

// settings resolves flags and PLANNER_* environment variables
type settings struct {
	v *viper.Viper
}

// NewRootCmd builds the plannerctl command tree
func NewRootCmd() *cobra.Command {
	s := &settings{v: viper.New()}
	s.v.SetEnvPrefix(EnvPrefix)
	s.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	s.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Smart Planner command line tools",
		Long:          "Inspect how the planner parses times, places events, gates decisions and interprets utterances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("timezone", "Local", "IANA time zone used to resolve dates")
	flags.String("preferred-start", "09:00", "start time used for date-only phrases")
	flags.String("now", "", "fixed current time (RFC3339), defaults to the wall clock")
	flags.Bool("json", false, "output JSON")
	flags.Bool("debug", false, "log debug output to stderr")
	for _, name := range []string{"timezone", "preferred-start", "now", "json", "debug"} {
		_ = s.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newParseTimeCmd(s),
		newFindSlotCmd(s),
		newGateCmd(s),
		newQuietHoursCmd(s),
		newInterpretCmd(s),
	)
	return rootCmd
}

func (s *settings) jsonOutput() bool {
	return s.v.GetBool("json")
}

func (s *settings) location() (*time.Location, error) {
	name := s.v.GetString("timezone")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// clock returns the fixed --now time when set, otherwise time.Now
func (s *settings) clock(loc *time.Location) (func() time.Time, error) {
	raw := s.v.GetString("now")
	if raw == "" {
		return time.Now, nil
	}
	now, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --now %q: %w", raw, err)
	}
	now = now.In(loc)
	return func() time.Time { return now }, nil
}

// logger writes warnings to stderr, and everything with --debug
func (s *settings) logger() (*zap.Logger, error) {
	l, err := logger.NewDevelopmentLogger(logger.ServiceCLI, s.v.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// temporal builds a parser from the timezone, preferred start and clock settings
func (s *settings) temporal(log *zap.Logger) (*temporal.Parser, error) {
	loc, err := s.location()
	if err != nil {
		return nil, err
	}
	now, err := s.clock(loc)
	if err != nil {
		return nil, err
	}
	h, m, err := models.ParseClock(s.v.GetString("preferred-start"))
	if err != nil {
		return nil, fmt.Errorf("invalid --preferred-start: %w", err)
	}
	return temporal.New(
		temporal.WithLocation(loc),
		temporal.WithClock(now),
		temporal.WithPreferredStart(h, m),
		temporal.WithLogger(log),
	), nil
}
