package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/smart-planner/internal/interpreter"
	logpkg "github.com/benvon/smart-planner/internal/logger"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/request"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PlannerHandler serves the conversational planner API for the
// conversation resolved by the middleware chain.
type PlannerHandler struct {
	manager  *interpreter.Manager
	contexts *ai.ContextService
	temporal *temporal.Parser
	logger   *zap.Logger
}

// NewPlannerHandler creates a new planner handler
func NewPlannerHandler(manager *interpreter.Manager, contexts *ai.ContextService, tp *temporal.Parser, logger *zap.Logger) *PlannerHandler {
	if tp == nil {
		tp = temporal.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlannerHandler{
		manager:  manager,
		contexts: contexts,
		temporal: tp,
		logger:   logger,
	}
}

// RegisterRoutes registers planner routes on a router already carrying the
// /api/v1 prefix.
func (h *PlannerHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/utterances", h.SubmitUtterance).Methods(http.MethodPost)
	r.HandleFunc("/suggestions", h.ListSuggestions).Methods(http.MethodGet)
	r.HandleFunc("/suggestions/{id}/accept", h.AcceptSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/suggestions/{id}/reject", h.RejectSuggestion).Methods(http.MethodPost)
	r.HandleFunc("/clarification", h.GetClarification).Methods(http.MethodGet)
	r.HandleFunc("/context", h.GetContext).Methods(http.MethodGet)
	r.HandleFunc("/context", h.UpdateContext).Methods(http.MethodPut)
	r.HandleFunc("/time/parse", h.ParseTime).Methods(http.MethodPost)
}

// UtteranceRequest is the body of POST /utterances
type UtteranceRequest struct {
	Text          string     `json:"text" validate:"required,max=4000"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// SubmitUtterance interprets one utterance and returns its outcome
func (h *PlannerHandler) SubmitUtterance(w http.ResponseWriter, r *http.Request) {
	var req UtteranceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	u := models.Utterance{
		Text:           req.Text,
		SentAt:         time.Now(),
		ConversationID: conv.ConversationID(),
	}
	if req.ReferenceDate != nil {
		u.ReferenceDate = *req.ReferenceDate
	}

	outcome, err := conv.Submit(r.Context(), u)
	if err != nil {
		h.respondInterpreterError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// ListSuggestions returns the suggestions staged by the last utterance
func (h *PlannerHandler) ListSuggestions(w http.ResponseWriter, r *http.Request) {
	staged := []models.Suggestion{}
	if conv, ok := h.manager.Lookup(request.ConversationFromContext(r)); ok {
		if s := conv.Staged(); len(s) > 0 {
			staged = s
		}
	}
	respondJSON(w, http.StatusOK, staged)
}

// AcceptSuggestion applies a staged suggestion
func (h *PlannerHandler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := suggestionID(w, r)
	if !ok {
		return
	}
	conv, ok := h.existing(w, r)
	if !ok {
		return
	}

	outcome, err := conv.Accept(r.Context(), id)
	if err != nil {
		h.respondInterpreterError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// RejectSuggestion discards a staged suggestion
func (h *PlannerHandler) RejectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, ok := suggestionID(w, r)
	if !ok {
		return
	}
	conv, ok := h.existing(w, r)
	if !ok {
		return
	}

	if err := conv.Reject(r.Context(), id); err != nil {
		h.respondInterpreterError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"rejected": id.String()})
}

// ClarificationResponse reports the open question, if any
type ClarificationResponse struct {
	Pending  bool   `json:"pending"`
	Question string `json:"question,omitempty"`
}

// GetClarification returns the pending clarification question
func (h *PlannerHandler) GetClarification(w http.ResponseWriter, r *http.Request) {
	var resp ClarificationResponse
	if conv, ok := h.manager.Lookup(request.ConversationFromContext(r)); ok {
		resp.Question, resp.Pending = conv.PendingClarification()
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetContext returns the energy and mood sent with prompts
func (h *PlannerHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	cc, err := h.contexts.GetOrCreateContext(r.Context(), request.ConversationFromContext(r))
	if err != nil {
		h.logger.Error("failed_to_load_context", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load context")
		return
	}
	respondJSON(w, http.StatusOK, cc)
}

// ContextRequest is the body of PUT /context. Omitted fields are unchanged.
type ContextRequest struct {
	Energy string `json:"energy" validate:"omitempty,max=20"`
	Mood   string `json:"mood" validate:"omitempty,max=40"`
}

// UpdateContext sets energy and mood for the conversation
func (h *PlannerHandler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	cc, err := h.contexts.UpdateContext(r.Context(), request.ConversationFromContext(r), req.Energy, req.Mood)
	if err != nil {
		h.logger.Error("failed_to_update_context", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update context")
		return
	}
	respondJSON(w, http.StatusOK, cc)
}

// ParseTimeRequest is the body of POST /time/parse
type ParseTimeRequest struct {
	Text          string     `json:"text" validate:"required,max=500"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// ParseTime resolves a natural-language time phrase without side effects
func (h *PlannerHandler) ParseTime(w http.ResponseWriter, r *http.Request) {
	var req ParseTimeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ref := h.temporal.Now()
	if req.ReferenceDate != nil {
		ref = *req.ReferenceDate
	}
	parsed := h.temporal.Parse(req.Text, ref)
	if parsed == nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "No date or time found in text")
		return
	}
	respondJSON(w, http.StatusOK, parsed)
}

func (h *PlannerHandler) conversation(w http.ResponseWriter, r *http.Request) (*interpreter.Conversation, bool) {
	conv, err := h.manager.Get(request.ConversationFromContext(r))
	if err != nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Planner is shutting down")
		return nil, false
	}
	return conv, true
}

// existing returns the live conversation. Suggestions never outlive their
// conversation, so a missing one means the suggestion is gone too.
func (h *PlannerHandler) existing(w http.ResponseWriter, r *http.Request) (*interpreter.Conversation, bool) {
	conv, ok := h.manager.Lookup(request.ConversationFromContext(r))
	if !ok {
		respondJSONError(w, http.StatusNotFound, "Not Found", interpreter.ErrSuggestionNotFound.Error())
		return nil, false
	}
	return conv, true
}

func suggestionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid suggestion id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *PlannerHandler) respondInterpreterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, interpreter.ErrSuggestionNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, interpreter.ErrClosed):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Conversation closed")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// The utterance stays queued and will still be applied.
		h.logger.Info("request_ended_before_outcome",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("conversation", ai.HashConversationID(request.ConversationFromContext(r))),
		)
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "Request ended before the outcome was ready")
	default:
		h.logger.Error("interpreter_failed", zap.String("error", logpkg.SanitizeError(err)))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process request")
	}
}
