package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		data     any
		wantData string
	}{
		{name: "object", status: http.StatusOK, data: map[string]string{"kind": "applied"}, wantData: `{"kind":"applied"}`},
		{name: "nil data", status: http.StatusCreated, data: nil, wantData: `null`},
		{name: "array", status: http.StatusOK, data: []string{"a", "b"}, wantData: `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			env := decodeEnvelope[json.RawMessage](t, w)
			if !env.Success {
				t.Error("success = false")
			}
			if diff := cmp.Diff(tt.wantData, string(env.Data)); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRespondJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		message     string
		wantMessage string
	}{
		{name: "bad request", status: http.StatusBadRequest, message: "text is required", wantMessage: "text is required"},
		{name: "long message truncated", status: http.StatusInternalServerError, message: strings.Repeat("x", 300), wantMessage: strings.Repeat("x", 200) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSONError(w, tt.status, http.StatusText(tt.status), tt.message)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body struct {
				Success   bool   `json:"success"`
				Error     string `json:"error"`
				Message   string `json:"message"`
				Timestamp string `json:"timestamp"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success || body.Error != http.StatusText(tt.status) || body.Message != tt.wantMessage {
				t.Errorf("body = %+v", body)
			}
			if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
				t.Errorf("timestamp %q is not RFC3339: %v", body.Timestamp, err)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Text string `json:"text" validate:"required"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"text":"hello"}`},
		{name: "empty body", body: "", wantErr: "request body is empty"},
		{name: "unknown field", body: `{"text":"hello","extra":1}`, wantErr: "invalid JSON"},
		{name: "trailing object", body: `{"text":"a"}{"text":"b"}`, wantErr: "single JSON object"},
		{name: "fails validation", body: `{"text":""}`, wantErr: "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var p payload
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(req, &p)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeJSON() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("decodeJSON() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// newTestRequest builds a request with body marshalled as JSON
func newTestRequest(method, path string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	data, _ := json.Marshal(body)
	return httptest.NewRequest(method, path, bytes.NewReader(data))
}
