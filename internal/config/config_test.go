package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./glossary.csv", cfg.Glossary.Path)
	assert.Equal(t, 15, cfg.Engines.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.TTL)
	assert.Equal(t, "*/10 * * * *", cfg.Jobs.CleanupCron)
	assert.Equal(t, language.English, cfg.SourceLanguage)
	assert.Equal(t, language.Telugu, cfg.TargetLanguage)
}

func TestNewFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("SOURCE_LANG", "hi")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Engines.BatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.TTL)
	assert.Equal(t, language.Hindi, cfg.SourceLanguage)
	assert.Equal(t, "test-key", cfg.Engines.GeminiAPIKey)
}

func TestNewFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not a number")
	t.Setenv("JOB_TTL", "eventually")
	t.Setenv("SOURCE_LANG", "???")

	cfg, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.TTL)
	assert.Equal(t, language.English, cfg.SourceLanguage)
}

func TestNewFromEnv_Validation(t *testing.T) {
	t.Setenv("BATCH_SIZE", "-1")
	_, err := NewFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestNewFromEnv_Options(t *testing.T) {
	cfg, err := NewFromEnv(func(c *Config) {
		c.Server.Port = 7070
	})
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
