// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"iep-rehearsal/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

const (
	TelemetrySQLite   = "sqlite"
	TelemetryPostgres = "postgres"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	AIClientOpenAI = "openai"
	AIClientOllama = "ollama"
)

// Config is the full server configuration.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	AI AIConfig

	TelemetryDriver    string `envconfig:"TELEMETRY_DRIVER" default:"sqlite"`
	SQLitePath         string `envconfig:"SQLITE_PATH" default:"data/iep.db"`
	DatabaseURL        string `envconfig:"DATABASE_URL"`
	DBMaxConns         int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	RabbitMQURL        string `envconfig:"RABBITMQ_URL"`
	TelemetryQueueSize int    `envconfig:"TELEMETRY_QUEUE_SIZE" default:"128"`
	SuggestionsPath    string `envconfig:"SUGGESTIONS_PATH"`

	SessionStore  string        `envconfig:"SESSION_STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"2h"`

	ScoringMaxJobs     int      `envconfig:"SCORING_MAX_JOBS" default:"10"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AIConfig selects the generation backend.
type AIConfig struct {
	ClientType string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	BaseURL    string        `envconfig:"AI_BASE_URL"`
	Model      string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout    time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`
	OllamaURL  string        `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	// APIKey comes from the ai_api_key secret or AI_API_KEY.
	APIKey string `ignored:"true"`
}

// Endpoint is the base URL of the selected backend.
func (c AIConfig) Endpoint() string {
	if strings.EqualFold(c.ClientType, AIClientOllama) {
		return c.OllamaURL
	}
	return c.BaseURL
}

// Load reads .env when present, then the environment and secrets, and
// validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.AI.APIKey = utils.SecretOrEnv("ai_api_key", "AI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.AI.ClientType) {
	case AIClientOpenAI:
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("AI_API_KEY (or the ai_api_key secret) is required for the openai client"))
		}
	case AIClientOllama:
		if c.AI.OllamaURL == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required for the ollama client"))
		}
	default:
		errs = append(errs, fmt.Errorf("AI_CLIENT_TYPE must be %q or %q, got %q", AIClientOpenAI, AIClientOllama, c.AI.ClientType))
	}
	if c.AI.Timeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}

	switch c.TelemetryDriver {
	case TelemetrySQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite telemetry driver"))
		}
	case TelemetryPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres telemetry driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("TELEMETRY_DRIVER must be %q or %q, got %q", TelemetrySQLite, TelemetryPostgres, c.TelemetryDriver))
	}

	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis session store"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.SessionStore))
	}

	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.TelemetryQueueSize <= 0 {
		errs = append(errs, errors.New("TELEMETRY_QUEUE_SIZE must be positive"))
	}
	if c.ScoringMaxJobs <= 0 {
		errs = append(errs, errors.New("SCORING_MAX_JOBS must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Log writes the effective configuration with secrets masked.
func (c *Config) Log(logger *zap.Logger) {
	logger.Info("Configuration loaded",
		zap.String("env", c.Env),
		zap.String("httpPort", c.HTTPPort),
		zap.String("logLevel", c.LogLevel),
		zap.String("aiClient", c.AI.ClientType),
		zap.String("aiEndpoint", c.AI.Endpoint()),
		zap.String("aiModel", c.AI.Model),
		zap.Duration("aiTimeout", c.AI.Timeout),
		zap.String("aiAPIKey", utils.Mask(c.AI.APIKey)),
		zap.String("telemetryDriver", c.TelemetryDriver),
		zap.String("sqlitePath", c.SQLitePath),
		zap.String("databaseURL", utils.MaskDSN(c.DatabaseURL)),
		zap.String("rabbitMQURL", utils.MaskDSN(c.RabbitMQURL)),
		zap.String("sessionStore", c.SessionStore),
		zap.String("redisAddr", c.RedisAddr),
		zap.String("redisPassword", utils.Mask(c.RedisPassword)),
		zap.Duration("sessionTTL", c.SessionTTL),
		zap.Int("scoringMaxJobs", c.ScoringMaxJobs),
		zap.Strings("corsAllowedOrigins", c.CORSAllowedOrigins),
	)
}
