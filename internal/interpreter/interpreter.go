// Package interpreter turns utterances into exactly one outcome each. Every
// conversation has a worker goroutine that consumes utterances in FIFO
// order, so commands apply in the order the user issued them.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-planner/internal/applier"
	"github.com/benvon/smart-planner/internal/cache"
	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/gate"
	"github.com/benvon/smart-planner/internal/logger"
	"github.com/benvon/smart-planner/internal/metrics"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds one backend call
	DefaultTimeout = 8 * time.Second
	// DefaultQueueSize is how many utterances may wait per conversation
	DefaultQueueSize = 32
)

var (
	// ErrClosed is returned after Close
	ErrClosed = errors.New("interpreter closed")
	// ErrSuggestionNotFound is returned for an unknown or superseded suggestion
	ErrSuggestionNotFound = errors.New("suggestion not found")
)

var tracer = otel.Tracer("github.com/benvon/smart-planner/internal/interpreter")

// Deps are the collaborators of an Interpreter. Store and Applier are
// required; everything else has a default.
type Deps struct {
	Backend   ai.Backend
	Decoder   *ai.Decoder
	Offline   *offline.Parser
	Gate      *gate.Gate
	Applier   *applier.Applier
	Store     database.Store
	Contexts  *ai.ContextService
	Tracker   cache.SuccessTracker
	Temporal  *temporal.Parser
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	Timeout   time.Duration
	QueueSize int
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Temporal == nil {
		d.Temporal = temporal.New()
	}
	if d.Backend == nil {
		d.Backend = ai.Unavailable
	}
	if d.Decoder == nil {
		d.Decoder = ai.NewDecoder(d.Temporal, d.Logger)
	}
	if d.Offline == nil {
		d.Offline = offline.New(d.Temporal, d.Logger)
	}
	if d.Gate == nil {
		d.Gate = gate.New()
	}
	if d.Tracker == nil {
		d.Tracker = cache.NewMemorySuccessTracker(0, d.Temporal.Now)
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	if d.QueueSize <= 0 {
		d.QueueSize = DefaultQueueSize
	}
}

type job struct {
	ctx   context.Context
	run   func(ctx context.Context) (Outcome, error)
	reply chan result
}

type result struct {
	outcome Outcome
	err     error
}

// Interpreter resolves the utterances of one conversation
type Interpreter struct {
	conversationID string
	deps           Deps
	logger         *zap.Logger

	jobs    chan job
	sendMu  sync.RWMutex
	closed  bool
	stopped chan struct{}

	// staged and pending are written only by the worker goroutine
	mu      sync.RWMutex
	staged  []models.Suggestion
	pending string
}

// New creates an interpreter and starts its worker
func New(conversationID string, deps Deps) *Interpreter {
	deps.defaults()
	i := &Interpreter{
		conversationID: conversationID,
		deps:           deps,
		logger:         deps.Logger.With(zap.String("conversation", ai.HashConversationID(conversationID))),
		jobs:           make(chan job, deps.QueueSize),
		stopped:        make(chan struct{}),
	}
	go i.worker()
	return i
}

// ConversationID returns the conversation this interpreter serves
func (i *Interpreter) ConversationID() string {
	return i.conversationID
}

func (i *Interpreter) worker() {
	defer close(i.stopped)
	for j := range i.jobs {
		i.deps.Metrics.QueueAdd(-1)
		out, err := j.run(j.ctx)
		j.reply <- result{outcome: out, err: err}
	}
}

// enqueue hands a job to the worker and waits for its result. If ctx ends
// first the caller gets ctx.Err() while the job still runs to completion.
func (i *Interpreter) enqueue(ctx context.Context, run func(context.Context) (Outcome, error)) (Outcome, error) {
	j := job{ctx: context.WithoutCancel(ctx), run: run, reply: make(chan result, 1)}

	i.sendMu.RLock()
	if i.closed {
		i.sendMu.RUnlock()
		return Outcome{}, ErrClosed
	}
	select {
	case i.jobs <- j:
		i.deps.Metrics.QueueAdd(1)
	case <-ctx.Done():
		i.sendMu.RUnlock()
		return Outcome{}, ctx.Err()
	}
	i.sendMu.RUnlock()

	select {
	case r := <-j.reply:
		return r.outcome, r.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Close stops accepting work, lets queued utterances finish and waits for
// the worker to exit.
func (i *Interpreter) Close() {
	i.sendMu.Lock()
	if !i.closed {
		i.closed = true
		close(i.jobs)
	}
	i.sendMu.Unlock()
	<-i.stopped
}

// Submit resolves one utterance. The returned error is only ever ErrClosed
// or the caller's context error; backend and apply failures end in a
// status outcome instead.
func (i *Interpreter) Submit(ctx context.Context, u models.Utterance) (Outcome, error) {
	if u.ConversationID == "" {
		u.ConversationID = i.conversationID
	}
	return i.enqueue(ctx, func(ctx context.Context) (Outcome, error) {
		return i.resolve(ctx, u), nil
	})
}

// Staged returns a copy of the staged suggestions
func (i *Interpreter) Staged() []models.Suggestion {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.Suggestion(nil), i.staged...)
}

// PendingClarification returns the open clarifying question, if any
func (i *Interpreter) PendingClarification() (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.pending, i.pending != ""
}

func (i *Interpreter) setStaged(s []models.Suggestion) {
	i.mu.Lock()
	i.staged = s
	i.mu.Unlock()
}

func (i *Interpreter) setPending(q string) {
	i.mu.Lock()
	i.pending = q
	i.mu.Unlock()
}

// resolve runs Sent -> Responded/TimedOut/Failed -> Resolved for one utterance
func (i *Interpreter) resolve(ctx context.Context, u models.Utterance) Outcome {
	ctx, span := tracer.Start(ctx, "interpreter.resolve")
	defer span.End()

	// a new utterance supersedes staged suggestions and the open question
	i.mu.Lock()
	i.staged = nil
	i.pending = ""
	i.mu.Unlock()

	now := i.deps.Temporal.Now()
	if u.SentAt.IsZero() {
		u.SentAt = now
	}
	if u.ReferenceDate.IsZero() {
		u.ReferenceDate = now
	}

	snapshot, err := i.deps.Store.Snapshot(ctx)
	if err != nil {
		i.logger.Warn("snapshot_failed", zap.Error(err))
		snapshot = models.DomainSnapshot{}
	}

	convCtx := models.ConversationContext{ConversationID: i.conversationID, Energy: models.DefaultEnergy, Mood: models.DefaultMood}
	if i.deps.Contexts != nil {
		convCtx = i.deps.Contexts.LoadContextForPrompt(ctx, i.conversationID)
	}

	i.logger.Debug("utterance_received", zap.String("text", logger.SanitizeUtterance(u.Text)))
	req := &ai.Request{Utterance: u, Snapshot: snapshot, Context: convCtx, Now: now}
	out := i.interpret(ctx, req)

	i.deps.Metrics.ObserveUtterance(string(out.Path), string(out.Kind))
	span.SetAttributes(
		attribute.String("planner.path", string(out.Path)),
		attribute.String("planner.state", string(out.State)),
		attribute.String("planner.outcome", string(out.Kind)),
	)
	i.logger.Info("utterance_resolved",
		zap.String("path", string(out.Path)),
		zap.String("state", string(out.State)),
		zap.String("outcome", string(out.Kind)),
		zap.String("decision", string(out.Decision)),
		zap.Float64("confidence", out.Confidence),
	)
	return out
}

func (i *Interpreter) interpret(ctx context.Context, req *ai.Request) Outcome {
	callCtx, cancel := context.WithTimeout(ai.WithConversationID(ctx, i.conversationID), i.deps.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := i.callBackend(callCtx, req)
	kind := ai.Classify(err)
	i.deps.Metrics.ObserveBackend(time.Since(start), string(kind))

	if err == nil {
		resp, cmds, derr := i.deps.Decoder.Decode(reply, req.Utterance, req.Snapshot.Pillars)
		kind = ai.Classify(derr)
		switch kind {
		case ai.FailureNone:
			out := i.decide(ctx, req.Utterance, resp, cmds, models.SourceRemote)
			out.Path, out.State = PathRemote, StateResponded
			return out
		case ai.FailureMalformed:
			i.logger.Warn("backend_reply_malformed_keeping_text", zap.Error(derr))
			out := statusOutcome(strings.TrimSpace(resp.Text))
			out.Path, out.State = PathRemote, StateResponded
			return out
		}
		err = derr
	}

	state := StateFailed
	switch kind {
	case ai.FailureTimeout:
		state = StateTimedOut
	case ai.FailureAbstained:
		state = StateResponded
	}
	i.logger.Info("backend_failed_using_offline",
		zap.String("failure", string(kind)),
		zap.Error(err),
	)

	span := trace.SpanFromContext(ctx)
	span.AddEvent("offline_fallback", trace.WithAttributes(attribute.String("planner.failure", string(kind))))

	out := i.offlinePath(ctx, req)
	out.Path, out.State = PathOffline, state
	return out
}

type backendReply struct {
	text string
	err  error
}

// callBackend runs the backend in its own goroutine so the worker always
// resolves, even when the backend panics or ignores ctx.
func (i *Interpreter) callBackend(ctx context.Context, req *ai.Request) (string, error) {
	done := make(chan backendReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("backend_panic", zap.Any("panic", r))
				done <- backendReply{err: fmt.Errorf("%w: backend panic: %v", ai.ErrBackendUnreachable, r)}
			}
		}()
		text, err := i.deps.Backend.Interpret(ctx, req)
		done <- backendReply{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		i.logger.Warn("backend_call_abandoned", zap.Error(ctx.Err()))
		return "", fmt.Errorf("%w: %w", ai.ErrBackendTimeout, ctx.Err())
	}
}

func (i *Interpreter) offlinePath(ctx context.Context, req *ai.Request) Outcome {
	resp, cmds, err := i.deps.Offline.Parse(req.Utterance, req.Snapshot.Goals, req.Snapshot.Pillars)
	if err != nil && !errors.Is(err, offline.ErrNoActionableIntent) {
		i.logger.Warn("offline_parse_failed", zap.Error(err))
		return statusOutcome("")
	}

	cmds.Commands = ai.NormalizeCommands(cmds.Commands, i.logger)
	for k := range resp.Suggestions {
		resp.Suggestions[k].Commands = ai.NormalizeCommands(resp.Suggestions[k].Commands, i.logger)
	}
	if len(cmds.Commands) == 0 {
		return statusOutcome("")
	}
	return i.decide(ctx, req.Utterance, resp, cmds, models.SourceOffline)
}

// decide routes a parsed response through the gate
func (i *Interpreter) decide(ctx context.Context, u models.Utterance, resp *models.AIResponse, cmds *models.MindCommandResponse, source models.CommandSource) Outcome {
	when := i.deps.Temporal.Parse(u.Text, u.ReferenceDate)
	signals := gate.SignalsFromText(u.Text, when)
	signals.SuggestionCount = len(resp.Suggestions)
	signals.HasPayload = cmds.Actionable()
	if ok, err := i.deps.Tracker.RecentSuccess(ctx, i.conversationID); err != nil {
		i.logger.Debug("success_tracker_unavailable", zap.Error(err))
	} else {
		signals.RecentSuccess = ok
	}

	decision := i.deps.Gate.Decide(resp.Action(), resp.Confidence, signals)
	i.deps.Metrics.ObserveGate(string(resp.Action()), string(decision))

	base := Outcome{Decision: decision, Action: string(resp.Action()), Confidence: resp.Confidence, Message: resp.Text}

	// a response that only asks a question is a clarification whatever the score
	if questions := cmds.Clarifications(); len(questions) > 0 && !cmds.Actionable() && len(resp.Suggestions) == 0 {
		return i.clarify(base, questions[0])
	}

	switch decision {
	case gate.Execute:
		if cmds.Actionable() {
			return i.execute(ctx, base, cmds, source, u.ReferenceDate)
		}
		if len(resp.Suggestions) > 0 {
			return i.stage(base, resp.Suggestions, u.ReferenceDate)
		}
	case gate.Stage:
		suggestions := resp.Suggestions
		if len(suggestions) == 0 && cmds.Actionable() {
			suggestions = []models.Suggestion{{
				ID:          uuid.New(),
				Title:       cmds.Summary,
				Confidence:  resp.Confidence,
				Explanation: cmds.Summary,
				Commands:    cmds.Commands,
				CreatedAt:   i.deps.Temporal.Now(),
			}}
		}
		if len(suggestions) > 0 {
			return i.stage(base, suggestions, u.ReferenceDate)
		}
	case gate.Clarify:
		q := confirmQuestion(resp, cmds)
		if questions := cmds.Clarifications(); len(questions) > 0 {
			q = questions[0]
		}
		return i.clarify(base, q)
	}

	out := base
	out.Kind = OutcomeStatus
	if strings.TrimSpace(out.Message) == "" {
		out.Message = StatusCouldNotApply
	}
	return out
}

func (i *Interpreter) execute(ctx context.Context, base Outcome, cmds *models.MindCommandResponse, source models.CommandSource, reference time.Time) Outcome {
	res, err := i.deps.Applier.Apply(ctx, *cmds, applier.ApplyOptions{
		ConversationID: i.conversationID,
		Source:         source,
		ReferenceDate:  reference,
	})
	if err != nil {
		i.logger.Error("apply_failed", zap.Error(err))
	}

	switch {
	case res != nil && res.HasChanges:
		out := base
		out.Kind = OutcomeApplied
		out.Applied = res.AppliedMessages
		if res.Clarification != nil {
			out.Clarification = *res.Clarification
			i.setPending(out.Clarification)
		}
		if terr := i.deps.Tracker.RecordSuccess(ctx, i.conversationID); terr != nil {
			i.logger.Debug("success_tracker_unavailable", zap.Error(terr))
		}
		return out
	case res != nil && res.Clarification != nil:
		return i.clarify(base, *res.Clarification)
	default:
		out := base
		out.Kind = OutcomeStatus
		out.Message = StatusCouldNotApply
		return out
	}
}

func (i *Interpreter) stage(base Outcome, suggestions []models.Suggestion, reference time.Time) Outcome {
	staged := make([]models.Suggestion, len(suggestions))
	copy(staged, suggestions)
	for k := range staged {
		if staged[k].ID == uuid.Nil {
			staged[k].ID = uuid.New()
		}
		if staged[k].ReferenceDate.IsZero() {
			staged[k].ReferenceDate = reference
		}
	}
	i.setStaged(staged)

	out := base
	out.Kind = OutcomeStaged
	out.Staged = append([]models.Suggestion(nil), staged...)
	return out
}

func (i *Interpreter) clarify(base Outcome, question string) Outcome {
	i.setPending(question)
	out := base
	out.Kind = OutcomeClarification
	out.Clarification = question
	return out
}

func confirmQuestion(resp *models.AIResponse, cmds *models.MindCommandResponse) string {
	summary := strings.TrimSpace(cmds.Summary)
	if summary == "" {
		summary = strings.TrimSpace(resp.Text)
	}
	if summary == "" {
		return "Could you say a bit more about what you'd like me to change?"
	}
	return fmt.Sprintf("I'm not sure I understood. Did you mean: %s?", strings.TrimRight(summary, ".?! "))
}

// Accept applies a staged suggestion through the conversation queue
func (i *Interpreter) Accept(ctx context.Context, suggestionID uuid.UUID) (Outcome, error) {
	return i.enqueue(ctx, func(ctx context.Context) (Outcome, error) {
		s, ok := i.take(suggestionID)
		if !ok {
			return Outcome{}, ErrSuggestionNotFound
		}

		cmds := s.Commands
		if len(cmds) == 0 {
			cmds = []models.MindCommand{activityCommand(s)}
		}
		base := Outcome{Path: PathAccepted, State: StateResolved, Action: string(cmds[0].Action()), Confidence: s.Confidence, Message: s.Title}
		out := i.execute(ctx, base, &models.MindCommandResponse{Summary: s.Title, Commands: cmds}, models.SourceAccepted, s.ReferenceDate)
		i.deps.Metrics.ObserveUtterance(string(PathAccepted), string(out.Kind))
		return out, nil
	})
}

// Reject discards a staged suggestion
func (i *Interpreter) Reject(ctx context.Context, suggestionID uuid.UUID) error {
	_, err := i.enqueue(ctx, func(ctx context.Context) (Outcome, error) {
		if _, ok := i.take(suggestionID); !ok {
			return Outcome{}, ErrSuggestionNotFound
		}
		if err := i.deps.Tracker.RecordRejection(ctx, i.conversationID); err != nil {
			i.logger.Debug("success_tracker_unavailable", zap.Error(err))
		}
		return Outcome{}, nil
	})
	return err
}

// take removes a staged suggestion; worker goroutine only
func (i *Interpreter) take(id uuid.UUID) (models.Suggestion, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, s := range i.staged {
		if s.ID == id {
			i.staged = append(i.staged[:k:k], i.staged[k+1:]...)
			return s, true
		}
	}
	return models.Suggestion{}, false
}

// activityCommand schedules a plain activity suggestion as an event
func activityCommand(s models.Suggestion) models.MindCommand {
	return models.MindCommand{
		Kind: models.CommandCreateEvent,
		CreateEvent: &models.CreateEventPayload{
			Title:           s.Title,
			DurationSeconds: s.DurationSeconds,
			EnergyTag:       s.EnergyTag,
			Emoji:           s.EmojiTag,
		},
	}
}
