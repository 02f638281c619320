// Package metrics exposes Prometheus metrics for the interpreter and HTTP API.
// All recording methods are safe on a nil *Collector.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Utterances      *prometheus.CounterVec
	GateDecisions   *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	BackendFailures *prometheus.CounterVec
	CommandsApplied *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Utterances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "utterances_total",
				Help:      "Utterances resolved, by interpretation path and outcome kind",
			},
			[]string{"path", "outcome"},
		),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Confidence gate decisions by action type",
			},
			[]string{"action", "decision"},
		),
		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Language model backend latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"result"},
		),
		BackendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_failures_total",
				Help:      "Backend failures by kind",
			},
			[]string{"kind"},
		),
		CommandsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_applied_total",
				Help:      "Commands applied to the store by kind and source",
			},
			[]string{"kind", "source"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conversation_queue_depth",
				Help:      "Utterances waiting across all conversation queues",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Utterances,
		c.GateDecisions,
		c.BackendDuration,
		c.BackendFailures,
		c.CommandsApplied,
		c.QueueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP request
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUtterance records how an utterance was resolved
func (c *Collector) ObserveUtterance(path, outcome string) {
	if c == nil {
		return
	}
	c.Utterances.WithLabelValues(path, outcome).Inc()
}

// ObserveGate records a gate decision
func (c *Collector) ObserveGate(action, decision string) {
	if c == nil {
		return
	}
	if action == "" {
		action = "legacy"
	}
	c.GateDecisions.WithLabelValues(action, decision).Inc()
}

// ObserveBackend records a backend call. An empty failure kind means success.
func (c *Collector) ObserveBackend(d time.Duration, failureKind string) {
	if c == nil {
		return
	}
	result := "ok"
	if failureKind != "" {
		result = "error"
		c.BackendFailures.WithLabelValues(failureKind).Inc()
	}
	c.BackendDuration.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveApplied records an applied command
func (c *Collector) ObserveApplied(kind, source string) {
	if c == nil {
		return
	}
	c.CommandsApplied.WithLabelValues(kind, source).Inc()
}

// QueueAdd moves the queue depth gauge
func (c *Collector) QueueAdd(delta float64) {
	if c == nil {
		return
	}
	c.QueueDepth.Add(delta)
}
