package telemetry

import (
	"context"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider bool
	}{
		{
			name:         "valid configuration",
			cfg:          Config{ServiceName: "test-service", Endpoint: "localhost:4318", Insecure: true},
			wantProvider: true,
		},
		{
			name:         "empty service name",
			cfg:          Config{Endpoint: "localhost:4318", Insecure: true, SampleRatio: 0.5},
			wantProvider: true,
		},
		{
			name: "disabled without endpoint",
			cfg:  Config{ServiceName: "test-service"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("InitTracer() error = %v", err)
			}
			if (tp != nil) != tt.wantProvider {
				t.Fatalf("InitTracer() provider = %v, want provider %v", tp, tt.wantProvider)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := Shutdown(shutdownCtx, tp); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ratio float64
		want  string
	}{
		{0, sdktrace.AlwaysSample().Description()},
		{1, sdktrace.AlwaysSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tt := range tests {
		if got := sampler(tt.ratio).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestShutdown_NilProvider(t *testing.T) {
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown() with nil provider should not error, got: %v", err)
	}
}
