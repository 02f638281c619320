package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/benvon/smart-planner/internal/metrics"
	"github.com/benvon/smart-planner/internal/request"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		wantRoute     string
	}{
		{
			name:          "matched route uses template",
			method:        "POST",
			path:          "/api/v1/suggestions/abc/accept",
			handlerStatus: http.StatusOK,
			wantRoute:     "/api/v1/suggestions/{id}/accept",
		},
		{
			name:          "created",
			method:        "POST",
			path:          "/api/v1/utterances",
			handlerStatus: http.StatusCreated,
			wantRoute:     "/api/v1/utterances",
		},
		{
			name:          "unmatched path",
			method:        "GET",
			path:          "/notfound",
			handlerStatus: http.StatusNotFound,
			wantRoute:     "unmatched",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.InfoLevel)
			collector := metrics.NewCollector("test")

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})
			router := mux.NewRouter()
			router.Use(Logging(zap.New(core), collector))
			router.Handle("/api/v1/suggestions/{id}/accept", handler)
			router.Handle("/api/v1/utterances", handler)
			router.NotFoundHandler = Logging(zap.New(core), collector)(handler)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req = req.WithContext(request.WithConversation(req.Context(), "conv-1"))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, w.Code)
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request log, got %d", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["route"] != tt.wantRoute {
				t.Errorf("Expected route %q, got %v", tt.wantRoute, fields["route"])
			}
			if fields["conversation"] == "conv-1" {
				t.Error("Expected conversation id to be hashed in logs")
			}

			got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues(tt.method, tt.wantRoute, strconv.Itoa(tt.handlerStatus)))
			if got != 1 {
				t.Errorf("Expected 1 recorded request, got %v", got)
			}
		})
	}
}

func TestLogging_NilCollector(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("test"))
	})

	w := httptest.NewRecorder()
	Logging(zap.NewNop(), nil)(handler).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}
}
