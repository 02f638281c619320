package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   bool
		wantLogged bool
	}{
		{
			name: "passes through",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "string panic",
			handler:    func(http.ResponseWriter, *http.Request) { panic("interpreter exploded") },
			wantStatus: http.StatusInternalServerError,
			wantBody:   true,
			wantLogged: true,
		},
		{
			name: "runtime panic",
			handler: func(http.ResponseWriter, *http.Request) {
				var staged map[string]int
				staged["x"]++
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   true,
			wantLogged: true,
		},
		{
			name: "panic after headers",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				panic("late panic")
			},
			wantStatus: http.StatusAccepted,
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.ErrorLevel)
			w := httptest.NewRecorder()
			ErrorHandler(zap.New(core))(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/utterances", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := logs.FilterMessage("panic_recovered").Len() > 0; got != tt.wantLogged {
				t.Errorf("panic logged = %v, want %v", got, tt.wantLogged)
			}
			if !tt.wantBody {
				if w.Body.Len() != 0 {
					t.Errorf("unexpected body %q", w.Body.String())
				}
				return
			}

			var body ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if body.Success || body.Error != "Internal Server Error" || body.Path != "/api/v1/utterances" || body.Timestamp == "" {
				t.Errorf("body = %+v", body)
			}
			if body.Message != "An unexpected error occurred" {
				t.Errorf("panic detail leaked to client: %q", body.Message)
			}
		})
	}
}

func TestErrorHandler_RepanicsAbort(t *testing.T) {
	t.Parallel()

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) })
	ErrorHandler(zap.NewNop())(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
