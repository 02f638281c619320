package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/benvon/smart-planner/internal/models"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	OpenAIKey        string
	AIProvider       string
	AIModel          string
	AIBaseURL        string
	AITimeout        time.Duration
	EnableHSTS       bool
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
	OTELSampleRatio  float64

	// RateLimit uses the ulule/limiter formatted rate, e.g. "60-M"
	RateLimit    string
	JWKSURL      string
	OIDCIssuer   string
	OIDCAudience string

	Timezone             *time.Location
	PreferredStartHour   int
	PreferredStartMinute int
	DefaultEventDuration time.Duration
	GateThresholdsFile   string
	BreakerFailureRatio  float64
	BreakerOpenTimeout   time.Duration
	ConversationIdleTTL  time.Duration
	DLQRetention         time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		BaseURL:              getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:            getEnv("OPENAI_API_KEY", ""),
		AIProvider:           getEnv("AI_PROVIDER", "openai"),
		AIModel:              getEnv("AI_MODEL", ""),
		AIBaseURL:            getEnv("AI_BASE_URL", ""),
		AITimeout:            getEnvDuration("AI_TIMEOUT", 8*time.Second),
		EnableHSTS:           getEnvBool("ENABLE_HSTS", false),
		RedisURL:             getEnv("REDIS_URL", ""),
		RabbitMQURL:          getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:     getEnvInt("RABBITMQ_PREFETCH", 1),
		WorkerDebugMode:      getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:      getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:          getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:         getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio:      getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		RateLimit:            getEnv("RATE_LIMIT", "60-M"),
		JWKSURL:              getEnv("JWKS_URL", ""),
		OIDCIssuer:           getEnv("OIDC_ISSUER", ""),
		OIDCAudience:         getEnv("OIDC_AUDIENCE", ""),
		DefaultEventDuration: getEnvDuration("DEFAULT_EVENT_DURATION", 30*time.Minute),
		GateThresholdsFile:   getEnv("GATE_THRESHOLDS_FILE", ""),
		BreakerFailureRatio:  getEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeout:   getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		ConversationIdleTTL:  getEnvDuration("CONVERSATION_IDLE_TTL", 30*time.Minute),
		DLQRetention:         getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
	}

	loc, err := time.LoadLocation(getEnv("PLANNER_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLANNER_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	cfg.PreferredStartHour, cfg.PreferredStartMinute, err = models.ParseClock(getEnv("PREFERRED_START", "09:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREFERRED_START: %w", err)
	}

	if cfg.AIProvider != "openai" && cfg.AIProvider != "none" {
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", cfg.AIProvider)
	}
	if cfg.AIProvider == "openai" && cfg.OpenAIKey == "" {
		// without a key every utterance takes the offline path
		cfg.AIProvider = "none"
	}
	if cfg.AITimeout <= 0 {
		return nil, fmt.Errorf("AI_TIMEOUT must be positive")
	}
	if cfg.DefaultEventDuration <= 0 {
		return nil, fmt.Errorf("DEFAULT_EVENT_DURATION must be positive")
	}
	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		return nil, fmt.Errorf("BREAKER_FAILURE_RATIO must be in (0,1]")
	}
	if cfg.OTELEnabled && cfg.OTELEndpoint == "" {
		return nil, fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED is set")
	}
	if (cfg.JWKSURL == "") != (cfg.OIDCIssuer == "") {
		return nil, fmt.Errorf("JWKS_URL and OIDC_ISSUER must be set together")
	}

	return cfg, nil
}

// AuthEnabled reports whether bearer tokens are required
func (c *Config) AuthEnabled() bool {
	return c.JWKSURL != ""
}

// LoadWorker loads the configuration of cmd/worker, which needs a database
// and a broker.
func LoadWorker() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for audit job processing")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
