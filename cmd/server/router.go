package main

import (
	"net/http"
	"time"

	"github.com/benvon/smart-planner/internal/config"
	"github.com/benvon/smart-planner/internal/handlers"
	"github.com/benvon/smart-planner/internal/metrics"
	"github.com/benvon/smart-planner/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "smart-planner"

type routerDeps struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	planner  *handlers.PlannerHandler
	health   *handlers.HealthChecker
	openapi  *handlers.OpenAPIHandler
	verifier middleware.TokenVerifier // nil disables bearer auth
	redis    *redis.Client            // nil keeps rate limits in process
}

// newRouter assembles the HTTP surface. Router middleware runs in the order
// it is added; CORS wraps the router so preflights never hit a 405.
func newRouter(d routerDeps) (http.Handler, error) {
	r := mux.NewRouter()

	r.Use(otelmux.Middleware(serviceName))
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(middleware.Logging(d.logger, d.metrics))
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, d.logger))
	r.Use(middleware.ContentType(d.logger))
	r.Use(middleware.Timeout(requestTimeout(d.cfg)))

	r.HandleFunc("/healthz", d.health.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", d.metrics.Handler()).Methods(http.MethodGet)
	d.openapi.RegisterRoutes(r)

	rateLimit, err := middleware.RateLimit(d.cfg.RateLimit, d.redis, d.logger)
	if err != nil {
		return nil, err
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(rateLimit)
	if d.verifier != nil {
		api.Use(middleware.Auth(d.verifier, d.logger))
	}
	api.Use(middleware.Conversation(d.logger))
	d.planner.RegisterRoutes(api)

	return middleware.CORS(d.cfg.FrontendURL)(r), nil
}

// requestTimeout leaves room for a full backend call plus the offline path.
func requestTimeout(cfg *config.Config) time.Duration {
	if t := 2 * cfg.AITimeout; t > middleware.DefaultRequestTimeout {
		return t
	}
	return middleware.DefaultRequestTimeout
}
