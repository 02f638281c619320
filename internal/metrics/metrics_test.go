package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Observe(t *testing.T) {
	t.Parallel()

	c := NewCollector("planner")
	c.ObserveUtterance("offline", "applied")
	c.ObserveUtterance("offline", "applied")
	c.ObserveGate("", "execute")
	c.ObserveBackend(120*time.Millisecond, "timeout")
	c.ObserveApplied("createGoal", "remote")

	if got := testutil.ToFloat64(c.Utterances.WithLabelValues("offline", "applied")); got != 2 {
		t.Errorf("utterances = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.GateDecisions.WithLabelValues("legacy", "execute")); got != 1 {
		t.Errorf("legacy gate decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.BackendFailures.WithLabelValues("timeout")); got != 1 {
		t.Errorf("backend failures = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "planner_commands_applied_total") {
		t.Error("metrics output missing planner_commands_applied_total")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.ObserveUtterance("remote", "status")
	c.ObserveGate("createGoal", "stage")
	c.ObserveBackend(time.Second, "")
	c.ObserveApplied("createGoal", "remote")
	c.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
	c.QueueAdd(1)
}
