package config

import (
	"testing"
	"time"

	"iep-rehearsal/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func isolate(t *testing.T) {
	t.Helper()
	old := utils.SecretsDir
	utils.SecretsDir = t.TempDir()
	t.Cleanup(func() { utils.SecretsDir = old })
	t.Chdir(t.TempDir()) // no stray .env
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("AI_API_KEY", "sk-abcdef123456")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, TelemetrySQLite, cfg.TelemetryDriver)
	assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "sk-abcdef123456", cfg.AI.APIKey)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("AI_CLIENT_TYPE", "ollama")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://ollama:11434", cfg.AI.Endpoint())
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Config{
		AI:                 AIConfig{ClientType: "openai", Timeout: time.Second},
		TelemetryDriver:    TelemetryPostgres,
		SessionStore:       "disk",
		SessionTTL:         time.Hour,
		TelemetryQueueSize: 1,
		ScoringMaxJobs:     1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "AI_API_KEY")
	assert.ErrorContains(t, err, "DATABASE_URL")
	assert.ErrorContains(t, err, "SESSION_STORE")
}

func TestLogMasksSecrets(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := Config{
		AI:          AIConfig{ClientType: "openai", APIKey: "sk-verysecret9876"},
		DatabaseURL: "postgres://iep:hunter2@db:5432/iep",
	}
	cfg.Log(zap.New(core))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "****9876", fields["aiAPIKey"])
	assert.Equal(t, "postgres://iep:********@db:5432/iep", fields["databaseURL"])
}
