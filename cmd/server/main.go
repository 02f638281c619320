package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/smart-planner/api/openapi"
	"github.com/benvon/smart-planner/internal/applier"
	"github.com/benvon/smart-planner/internal/cache"
	"github.com/benvon/smart-planner/internal/config"
	"github.com/benvon/smart-planner/internal/database"
	"github.com/benvon/smart-planner/internal/gate"
	"github.com/benvon/smart-planner/internal/handlers"
	"github.com/benvon/smart-planner/internal/interpreter"
	"github.com/benvon/smart-planner/internal/logger"
	"github.com/benvon/smart-planner/internal/metrics"
	"github.com/benvon/smart-planner/internal/offline"
	"github.com/benvon/smart-planner/internal/queue"
	"github.com/benvon/smart-planner/internal/services/ai"
	"github.com/benvon/smart-planner/internal/services/oidc"
	"github.com/benvon/smart-planner/internal/telemetry"
	"github.com/benvon/smart-planner/internal/temporal"
	"github.com/benvon/smart-planner/internal/workers"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sweepInterval   = time.Minute
	dlqGCInterval   = time.Hour
	shutdownTimeout = 30 * time.Second
	memoryQueueSize = 256
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(logger.ServiceServer, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
		zap.Bool("auth_enabled", cfg.AuthEnabled()),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("rabbitmq", cfg.RabbitMQURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zapLogger, debugMode); err != nil {
		zapLogger.Fatal("server_failed", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// run wires every component and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, debugMode bool) error {
	g, gctx := errgroup.WithContext(ctx)
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	otelCfg := telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Insecure:       true,
		SampleRatio:    cfg.OTELSampleRatio,
	}
	if cfg.OTELEnabled {
		otelCfg.Endpoint = cfg.OTELEndpoint
	}
	tracerProvider, err := telemetry.InitTracer(ctx, otelCfg)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	} else if tracerProvider != nil {
		zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
		cleanups = append(cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		})
	}

	collector := metrics.NewCollector("planner")
	checks := map[string]handlers.CheckFunc{}

	store, auditStore, closeStore, err := openStore(ctx, cfg, zapLogger, checks)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, closeStore)

	var redisClient *redis.Client
	var tracker cache.SuccessTracker = cache.NewMemorySuccessTracker(0, nil)
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		})
		tracker = cache.NewRedisSuccessTracker(redisClient, 0)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		zapLogger.Info("connected_to_redis")
	}

	jobQueue, err := openQueue(ctx, cfg, zapLogger)
	if err != nil {
		return err
	}
	closeQueue := sync.OnceFunc(func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_job_queue", zap.Error(err))
		}
	})
	cleanups = append(cleanups, closeQueue)
	checks["queue"] = jobQueue.HealthCheck

	backend, err := newBackend(cfg, zapLogger, debugMode)
	if err != nil {
		return err
	}

	thresholds := gate.New()
	if cfg.GateThresholdsFile != "" {
		if thresholds, err = gate.LoadThresholds(cfg.GateThresholdsFile); err != nil {
			return err
		}
		zapLogger.Info("gate_thresholds_loaded", zap.String("file", cfg.GateThresholdsFile))
	}

	tp := temporal.New(
		temporal.WithLocation(cfg.Timezone),
		temporal.WithPreferredStart(cfg.PreferredStartHour, cfg.PreferredStartMinute),
		temporal.WithLogger(zapLogger),
	)
	contexts := ai.NewContextService(store)
	manager := interpreter.NewManager(interpreter.Deps{
		Backend: backend,
		Decoder: ai.NewDecoder(tp, zapLogger),
		Offline: offline.New(tp, zapLogger),
		Gate:    thresholds,
		Applier: applier.New(store, tp,
			applier.WithAuditSink(queue.NewAuditPublisher(jobQueue)),
			applier.WithLogger(zapLogger),
			applier.WithDefaultDuration(cfg.DefaultEventDuration),
		),
		Store:    store,
		Contexts: contexts,
		Tracker:  tracker,
		Temporal: tp,
		Metrics:  collector,
		Logger:   zapLogger,
		Timeout:  cfg.AITimeout,
	})

	cleanups = append(cleanups, manager.Close)

	deps := routerDeps{
		cfg:     cfg,
		logger:  zapLogger,
		metrics: collector,
		planner: handlers.NewPlannerHandler(manager, contexts, tp, zapLogger),
		health:  handlers.NewHealthChecker(checks),
		redis:   redisClient,
	}
	if cfg.AuthEnabled() {
		deps.verifier = oidc.NewVerifier(oidc.NewJWKSManager(nil, oidc.DefaultJWKSTTL), cfg.JWKSURL, cfg.OIDCIssuer, cfg.OIDCAudience)
	}
	if deps.openapi, err = handlers.NewOpenAPIHandler(openapi.Spec); err != nil {
		return err
	}
	router, err := newRouter(deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      requestTimeout(cfg) + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if mq, ok := jobQueue.(*queue.MemoryQueue); ok {
		// No broker: record audit lines in process. The consumer outlives
		// ctx so queued lines drain once the queue is closed.
		recorder := workers.NewAuditRecorder(auditStore, mq, zapLogger)
		g.Go(func() error {
			return workers.Run(context.WithoutCancel(gctx), mq, cfg.RabbitMQPrefetch, recorder, zapLogger)
		})
	}
	if purger, ok := jobQueue.(queue.DLQPurger); ok {
		gc := queue.NewGarbageCollector(purger, dlqGCInterval, cfg.DLQRetention, zapLogger)
		g.Go(func() error { return ignoreCanceled(gc.Start(gctx)) })
	}
	sweeper := workers.NewSweeper(manager, sweepInterval, cfg.ConversationIdleTTL, zapLogger)
	g.Go(func() error { return ignoreCanceled(sweeper.Start(gctx)) })

	g.Go(func() error {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("server_shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Queued utterances finish before their audit lines are flushed.
		manager.Close()
		closeQueue()
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openStore returns Postgres stores when DATABASE_URL is set and an
// in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, checks map[string]handlers.CheckFunc) (database.Store, database.AuditStore, func(), error) {
	if cfg.DatabaseURL == "" {
		zapLogger.Warn("database_not_configured_using_memory_store")
		mem := database.NewMemoryStore()
		return mem, mem, func() {}, nil
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	zapLogger.Info("connected_to_database")
	checks["database"] = db.Health

	closeDB := func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}
	return database.NewPostgresStore(db), database.NewAuditRepository(db), closeDB, nil
}

// openQueue connects to RabbitMQ with exponential backoff, or returns an
// in-memory queue when no broker is configured.
func openQueue(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) (queue.JobQueue, error) {
	if cfg.RabbitMQURL == "" {
		return queue.NewMemoryQueue(memoryQueueSize), nil
	}

	const maxRetries = 10
	const initialDelay = 2 * time.Second
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<attempt), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, lastErr)
}

// newBackend builds the configured remote backend behind a circuit breaker.
func newBackend(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (ai.Backend, error) {
	backend, err := ai.NewRegistry(zapLogger).GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"base_url": cfg.AIBaseURL,
		"model":    cfg.AIModel,
		"debug":    strconv.FormatBool(debugMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI backend: %w", err)
	}
	if cfg.AIProvider == "none" {
		zapLogger.Warn("ai_backend_disabled_using_offline_parser")
		return backend, nil
	}

	breaker := ai.DefaultBreakerConfig()
	breaker.FailureThreshold = cfg.BreakerFailureRatio
	breaker.Timeout = cfg.BreakerOpenTimeout
	return ai.NewBreakerBackend(backend, breaker, zapLogger), nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
