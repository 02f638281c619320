// Package applier executes validated commands against the domain store.
package applier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultEventDuration is used for events that carry no duration
const DefaultEventDuration = 30 * time.Minute

// ErrAmbiguousReference means a title or name matched more than one entity
var ErrAmbiguousReference = errors.New("ambiguous reference")

// errUnresolved means a reference matched nothing
var errUnresolved = errors.New("unresolved reference")

// AuditSink receives one entry per applied command
type AuditSink interface {
	Record(ctx context.Context, entry models.AuditEntry) error
}

// AuditSinkFunc adapts a function to AuditSink
type AuditSinkFunc func(ctx context.Context, entry models.AuditEntry) error

// Record calls f
func (f AuditSinkFunc) Record(ctx context.Context, entry models.AuditEntry) error {
	return f(ctx, entry)
}

// NopSink discards audit entries
var NopSink AuditSink = AuditSinkFunc(func(context.Context, models.AuditEntry) error { return nil })

// ApplyOptions carries per-call context
type ApplyOptions struct {
	ConversationID string
	Source         models.CommandSource
	// ReferenceDate anchors events whose time is not explicit. Zero means now.
	ReferenceDate time.Time
}

// Applier applies MindCommands to a Store
type Applier struct {
	store           database.Store
	temporal        *temporal.Parser
	sink            AuditSink
	logger          *zap.Logger
	defaultDuration time.Duration
}

// Option configures an Applier
type Option func(*Applier)

// WithAuditSink sets the audit sink
func WithAuditSink(sink AuditSink) Option {
	return func(a *Applier) {
		if sink != nil {
			a.sink = sink
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDefaultDuration sets the duration of events that carry none
func WithDefaultDuration(d time.Duration) Option {
	return func(a *Applier) {
		if d > 0 {
			a.defaultDuration = d
		}
	}
}

// New creates an applier
func New(store database.Store, tp *temporal.Parser, opts ...Option) *Applier {
	if tp == nil {
		tp = temporal.New()
	}
	a := &Applier{
		store:           store,
		temporal:        tp,
		sink:            NopSink,
		logger:          zap.NewNop(),
		defaultDuration: DefaultEventDuration,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// applied is what a single command produced
type applied struct {
	message  string
	entityID *uuid.UUID
}

// Apply runs every command in order. Clarification commands and unresolved
// references fill the result's clarification; the first one wins. A store
// failure stops the run and is returned together with what was applied so far.
func (a *Applier) Apply(ctx context.Context, resp models.MindCommandResponse, opts ApplyOptions) (*models.ApplyResult, error) {
	result := &models.ApplyResult{AppliedMessages: []string{}}
	if opts.Source == "" {
		opts.Source = models.SourceRemote
	}

	for i := range resp.Commands {
		cmd := &resp.Commands[i]
		if cmd.Kind == models.CommandClarification {
			if cmd.Clarification != nil {
				setClarification(result, cmd.Clarification.Question)
			}
			continue
		}
		if err := cmd.Validate(); err != nil {
			a.logger.Warn("command_skipped_invalid", zap.String("kind", string(cmd.Kind)), zap.Error(err))
			continue
		}

		out, err := a.applyOne(ctx, cmd, opts)
		if err != nil {
			var q *clarifyError
			if errors.As(err, &q) {
				a.logger.Info("command_needs_clarification",
					zap.String("kind", string(cmd.Kind)),
					zap.String("question", q.question),
				)
				setClarification(result, q.question)
				continue
			}
			return result, fmt.Errorf("failed to apply %s: %w", cmd.Kind, err)
		}

		result.AppliedMessages = append(result.AppliedMessages, out.message)
		result.HasChanges = true
		a.audit(ctx, cmd.Kind, out, opts)
	}
	return result, nil
}

func (a *Applier) applyOne(ctx context.Context, cmd *models.MindCommand, opts ApplyOptions) (*applied, error) {
	switch cmd.Kind {
	case models.CommandCreateGoal:
		return a.createGoal(ctx, cmd.CreateGoal)
	case models.CommandUpdateGoal:
		return a.updateGoal(ctx, cmd.UpdateGoal)
	case models.CommandCreatePillar:
		return a.createPillar(ctx, cmd.CreatePillar)
	case models.CommandUpdatePillar:
		return a.updatePillar(ctx, cmd.UpdatePillar)
	case models.CommandAddNode:
		return a.addNode(ctx, cmd.AddNode)
	case models.CommandCreateEvent:
		return a.createEvent(ctx, cmd.CreateEvent, opts)
	case models.CommandCreateChain:
		return a.createChain(ctx, cmd.CreateChain, opts)
	}
	return nil, fmt.Errorf("%w: unsupported kind %q", models.ErrInvalidCommand, cmd.Kind)
}

func (a *Applier) audit(ctx context.Context, kind models.CommandKind, out *applied, opts ApplyOptions) {
	entry := models.AuditEntry{
		ID:             uuid.New(),
		ConversationID: opts.ConversationID,
		Kind:           kind,
		EntityID:       out.entityID,
		Message:        out.message,
		Source:         opts.Source,
		AppliedAt:      a.temporal.Now(),
	}
	if err := a.sink.Record(ctx, entry); err != nil {
		a.logger.Warn("audit_record_failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func setClarification(result *models.ApplyResult, question string) {
	question = strings.TrimSpace(question)
	if question == "" || result.Clarification != nil {
		return
	}
	result.Clarification = &question
}

// clarifyError carries the question to ask instead of applying a command
type clarifyError struct {
	question string
	err      error
}

func (e *clarifyError) Error() string { return e.question }
func (e *clarifyError) Unwrap() error { return e.err }

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
