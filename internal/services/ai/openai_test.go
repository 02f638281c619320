package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/smart-planner/internal/models"
	"github.com/google/uuid"
)

var fixedNow = time.Date(2025, 9, 23, 10, 0, 0, 0, time.UTC)

func testRequest(text string) *Request {
	return &Request{
		Utterance: models.Utterance{Text: text, ReferenceDate: fixedNow},
		Snapshot: models.DomainSnapshot{
			Goals: []models.Goal{
				{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111"), Title: "Marathon", Importance: 2},
				{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Title: "Learn Spanish", Importance: 5},
			},
			Pillars: []models.Pillar{
				{ID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Name: "Health"},
			},
		},
		Now: fixedNow,
	}
}

// fakeChatServer answers chat completion requests with the given status and content
func fakeChatServer(t *testing.T, status int, content string, delay time.Duration, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(content))
			return
		}
		body := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": fixedNow.Unix(),
			"model":   DefaultOpenAIModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIBackend_Interpret(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		content  string
		delay    time.Duration
		timeout  time.Duration
		wantText string
		wantKind FailureKind
	}{
		{
			name:     "returns reply content",
			status:   http.StatusOK,
			content:  `Done. {"action":"createGoal","title":"Run a marathon","confidence":0.9}`,
			wantText: `Done. {"action":"createGoal","title":"Run a marathon","confidence":0.9}`,
		},
		{
			name:     "quota exhaustion is permanent",
			status:   http.StatusTooManyRequests,
			content:  `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			wantKind: FailureQuota,
		},
		{
			name:     "server error is unreachable",
			status:   http.StatusInternalServerError,
			content:  `{"error":{"message":"boom","type":"server_error"}}`,
			wantKind: FailureUnreachable,
		},
		{
			name:     "deadline is a timeout",
			status:   http.StatusOK,
			content:  "late",
			delay:    2 * time.Second,
			timeout:  50 * time.Millisecond,
			wantKind: FailureTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := fakeChatServer(t, tt.status, tt.content, tt.delay, nil)
			backend := NewOpenAIBackendWithLogger("sk-test-key", srv.URL+"/v1", "", nil, true)

			ctx := WithConversationID(context.Background(), "conv-1")
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			got, err := backend.Interpret(ctx, testRequest("add a marathon goal"))
			if kind := Classify(err); kind != tt.wantKind {
				t.Fatalf("Classify(err) = %q, want %q (err: %v)", kind, tt.wantKind, err)
			}
			if tt.wantKind == FailureNone && got != tt.wantText {
				t.Errorf("Interpret() = %q, want %q", got, tt.wantText)
			}
		})
	}
}

func TestBuildUserPrompt(t *testing.T) {
	t.Parallel()

	req := testRequest("Create pillar Deep Work")
	prompt, err := BuildUserPrompt(req)
	if err != nil {
		t.Fatalf("BuildUserPrompt() error = %v", err)
	}

	for _, want := range []string{
		"Message: Create pillar Deep Work",
		`"current_date":"2025-09-23"`,
		`"reference_date":"2025-09-23"`,
		`"energy":"medium"`,
		`"mood":"neutral"`,
		`"name":"Health"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %s\n%s", want, prompt)
		}
	}

	pc := BuildPromptContext(req)
	if len(pc.Goals) != 2 || pc.Goals[0].Title != "Learn Spanish" {
		t.Errorf("goals should be ordered by importance, got %+v", pc.Goals)
	}
	if pc.Chains == nil {
		t.Error("chains should encode as an empty list, not null")
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)

	if _, err := r.GetProvider("openai", map[string]string{}); err == nil {
		t.Error("expected error for missing api key")
	}
	if b, err := r.GetProvider("openai", map[string]string{"api_key": "sk-x"}); err != nil || b == nil {
		t.Errorf("GetProvider(openai) = %v, %v", b, err)
	}

	var notFound *ErrProviderNotFound
	if _, err := r.GetProvider("bogus", nil); !errors.As(err, &notFound) {
		t.Errorf("expected ErrProviderNotFound, got %v", err)
	}

	b, err := r.GetProvider("none", nil)
	if err != nil {
		t.Fatalf("GetProvider(none) error = %v", err)
	}
	if _, err := b.Interpret(context.Background(), testRequest("x")); Classify(err) != FailureUnreachable {
		t.Errorf("none backend should be unreachable, got %v", err)
	}
}
