package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		query      string
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			checks:     map[string]CheckFunc{"database": down},
			wantStatus: http.StatusOK,
		},
		{
			name:       "extended all healthy",
			checks:     map[string]CheckFunc{"database": healthy, "redis": healthy},
			query:      "?mode=extended",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "extended one down",
			checks:     map[string]CheckFunc{"database": healthy, "rabbitmq": down},
			query:      "?mode=extended",
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "healthy", "rabbitmq": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			NewHealthChecker(tt.checks).HealthCheck(w, httptest.NewRequest("GET", "/healthz"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var body HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.wantChecks, body.Checks); diff != "" {
				t.Errorf("checks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
