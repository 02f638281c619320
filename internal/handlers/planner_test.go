package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/applier"
	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/interpreter"
	"github.com/benvon/smart-planner/internal/middleware"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, 9, 23, 10, 0, 0, 0, time.UTC)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

type plannerFixture struct {
	router  *mux.Router
	store   *database.MemoryStore
	manager *interpreter.Manager
}

func newPlannerFixture(t *testing.T, backend ai.Backend) *plannerFixture {
	t.Helper()

	store := database.NewMemoryStore()
	tp := temporal.New(
		temporal.WithClock(func() time.Time { return fixedNow }),
		temporal.WithLocation(time.UTC),
	)
	contexts := ai.NewContextService(store)
	manager := interpreter.NewManager(interpreter.Deps{
		Backend:  backend,
		Applier:  applier.New(store, tp),
		Store:    store,
		Contexts: contexts,
		Temporal: tp,
		Timeout:  time.Second,
	})
	t.Cleanup(manager.Close)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Conversation(zap.NewNop()))
	NewPlannerHandler(manager, contexts, tp, zap.NewNop()).RegisterRoutes(api)

	return &plannerFixture{router: router, store: store, manager: manager}
}

func (f *plannerFixture) do(t *testing.T, method, path string, body any, conversation string) *httptest.ResponseRecorder {
	t.Helper()
	req := newTestRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if conversation != "" {
		req.Header.Set(middleware.ConversationHeader, conversation)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func replyWith(s string) ai.Backend {
	return ai.BackendFunc(func(context.Context, *ai.Request) (string, error) {
		return s, nil
	})
}

func TestPlannerHandler_StageThenAccept(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, replyWith(`{"action":"createGoal","title":"Learn Spanish","confidence":0.7}`))

	w := f.do(t, "POST", "/api/v1/utterances", UtteranceRequest{Text: "maybe learn spanish"}, "kitchen")
	if w.Code != http.StatusOK {
		t.Fatalf("utterance status = %d, body %s", w.Code, w.Body.String())
	}
	out := decodeEnvelope[interpreter.Outcome](t, w)
	if out.Data.Kind != interpreter.OutcomeStaged || len(out.Data.Staged) != 1 {
		t.Fatalf("outcome = %+v", out.Data)
	}

	w = f.do(t, "GET", "/api/v1/suggestions", nil, "kitchen")
	list := decodeEnvelope[[]models.Suggestion](t, w)
	if len(list.Data) != 1 || list.Data[0].ID != out.Data.Staged[0].ID {
		t.Fatalf("suggestions = %+v", list.Data)
	}

	w = f.do(t, "GET", "/api/v1/suggestions", nil, "bedroom")
	if other := decodeEnvelope[[]models.Suggestion](t, w); len(other.Data) != 0 {
		t.Errorf("other conversation sees suggestions: %+v", other.Data)
	}

	w = f.do(t, "POST", "/api/v1/suggestions/"+list.Data[0].ID.String()+"/accept", nil, "kitchen")
	if w.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body %s", w.Code, w.Body.String())
	}
	accepted := decodeEnvelope[interpreter.Outcome](t, w)
	if accepted.Data.Kind != interpreter.OutcomeApplied || accepted.Data.Path != interpreter.PathAccepted {
		t.Errorf("accept outcome = %+v", accepted.Data)
	}

	goals, _ := f.store.ListGoals(context.Background())
	if len(goals) != 1 || goals[0].Title != "Learn Spanish" {
		t.Errorf("goals = %+v", goals)
	}

	w = f.do(t, "POST", "/api/v1/suggestions/"+list.Data[0].ID.String()+"/accept", nil, "kitchen")
	if w.Code != http.StatusNotFound {
		t.Errorf("second accept status = %d, want 404", w.Code)
	}
}

func TestPlannerHandler_SuggestionErrors(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)
	if w := f.do(t, "POST", "/api/v1/utterances", UtteranceRequest{Text: "hello"}, ""); w.Code != http.StatusOK {
		t.Fatalf("utterance status = %d", w.Code)
	}

	tests := []struct {
		name       string
		path       string
		conv       string
		wantStatus int
	}{
		{name: "invalid id", path: "/api/v1/suggestions/not-a-uuid/accept", wantStatus: http.StatusBadRequest},
		{name: "unknown accept", path: "/api/v1/suggestions/" + uuid.NewString() + "/accept", wantStatus: http.StatusNotFound},
		{name: "unknown reject", path: "/api/v1/suggestions/" + uuid.NewString() + "/reject", wantStatus: http.StatusNotFound},
		{name: "no conversation yet", path: "/api/v1/suggestions/" + uuid.NewString() + "/reject", conv: "fresh", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", tt.path, nil, tt.conv)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestPlannerHandler_Reject(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, replyWith(`{"action":"createGoal","title":"Read more","confidence":0.7}`))
	out := decodeEnvelope[interpreter.Outcome](t, f.do(t, "POST", "/api/v1/utterances", UtteranceRequest{Text: "maybe read more"}, ""))
	if len(out.Data.Staged) != 1 {
		t.Fatalf("outcome = %+v", out.Data)
	}

	w := f.do(t, "POST", "/api/v1/suggestions/"+out.Data.Staged[0].ID.String()+"/reject", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("reject status = %d", w.Code)
	}
	if list := decodeEnvelope[[]models.Suggestion](t, f.do(t, "GET", "/api/v1/suggestions", nil, "")); len(list.Data) != 0 {
		t.Errorf("suggestions after reject = %+v", list.Data)
	}
	goals, _ := f.store.ListGoals(context.Background())
	if len(goals) != 0 {
		t.Errorf("rejected suggestion was applied: %+v", goals)
	}
}

func TestPlannerHandler_Clarification(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)

	w := f.do(t, "GET", "/api/v1/clarification", nil, "")
	if got := decodeEnvelope[ClarificationResponse](t, w); got.Data.Pending {
		t.Fatalf("fresh conversation has pending clarification: %+v", got.Data)
	}

	out := decodeEnvelope[interpreter.Outcome](t, f.do(t, "POST", "/api/v1/utterances", UtteranceRequest{Text: "make it better somehow"}, ""))
	if out.Data.Kind != interpreter.OutcomeClarification {
		t.Fatalf("outcome = %+v, want clarification", out.Data)
	}

	got := decodeEnvelope[ClarificationResponse](t, f.do(t, "GET", "/api/v1/clarification", nil, ""))
	if !got.Data.Pending || got.Data.Question != out.Data.Clarification {
		t.Errorf("clarification = %+v, want %q", got.Data, out.Data.Clarification)
	}
}

func TestPlannerHandler_SubmitValidation(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing text", body: map[string]any{}},
		{name: "unknown field", body: map[string]any{"text": "hi", "user": "x"}},
		{name: "wrong type", body: map[string]any{"text": 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", "/api/v1/utterances", tt.body, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if env := decodeEnvelope[any](t, w); env.Success {
				t.Error("expected success false")
			}
		})
	}
}

func TestPlannerHandler_SubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)
	f.manager.Close()

	w := f.do(t, "POST", "/api/v1/utterances", UtteranceRequest{Text: "hello"}, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestPlannerHandler_Context(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)

	got := decodeEnvelope[models.ConversationContext](t, f.do(t, "GET", "/api/v1/context", nil, "desk"))
	if got.Data.Energy != models.DefaultEnergy || got.Data.ConversationID != "desk" {
		t.Fatalf("default context = %+v", got.Data)
	}

	w := f.do(t, "PUT", "/api/v1/context", ContextRequest{Energy: "High"}, "desk")
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	updated := decodeEnvelope[models.ConversationContext](t, w)
	if updated.Data.Energy != "high" || updated.Data.Mood != models.DefaultMood {
		t.Errorf("updated context = %+v", updated.Data)
	}

	if w := f.do(t, "PUT", "/api/v1/context", map[string]any{"energy": "x", "focus": 1}, "desk"); w.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", w.Code)
	}
}

func TestPlannerHandler_ParseTime(t *testing.T) {
	t.Parallel()

	f := newPlannerFixture(t, nil)

	tests := []struct {
		name       string
		text       string
		wantStatus int
		wantDate   time.Time
	}{
		{
			name:       "tomorrow at 3pm",
			text:       "tomorrow at 3pm",
			wantStatus: http.StatusOK,
			wantDate:   time.Date(2025, 9, 24, 15, 0, 0, 0, time.UTC),
		},
		{
			name:       "no temporal signal",
			text:       "buy milk",
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, "POST", "/api/v1/time/parse", ParseTimeRequest{Text: tt.text}, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			got := decodeEnvelope[models.ParsedEventTime](t, w)
			if !got.Data.Date.Equal(tt.wantDate) || !got.Data.HasExplicitTime {
				t.Errorf("parsed = %+v, want %v", got.Data, tt.wantDate)
			}
		})
	}
}
