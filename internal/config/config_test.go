package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, 50, cfg.PoolMaxSize)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(512*1024), cfg.MaxBodyBytes)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-test")
	t.Setenv("POOL_MAX_SIZE", "20")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("POOL_GENERATE_CRON", "0 4 * * *")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.PoolMaxSize)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "0 4 * * *", cfg.PoolGenerateCron)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("POOL_MAX_SIZE", "many")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "POOL_MAX_SIZE")

	t.Setenv("POOL_MAX_SIZE", "")
	t.Setenv("STATS_INTERVAL", "soon")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "STATS_INTERVAL")
}

func TestValidate(t *testing.T) {
	base := Config{
		CacheBackend: "memory",
		DBDriver:     "sqlite",
		LLMProvider:  "openai",
		LLMAPIKey:    "sk-test",
		PoolMaxSize:  50,
		Timezone:     "UTC",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown cache", func(c *Config) { c.CacheBackend = "disk" }, "CACHE_BACKEND"},
		{"redis without addr", func(c *Config) { c.CacheBackend = "redis" }, "REDIS_ADDR"},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, "DB_DRIVER"},
		{"missing openai key", func(c *Config) { c.LLMAPIKey = "" }, "LLM_API_KEY"},
		{"missing gemini key", func(c *Config) { c.LLMProvider = "gemini" }, "GEMINI_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "claude" }, "LLM_PROVIDER"},
		{"zero pool size", func(c *Config) { c.PoolMaxSize = 0 }, "POOL_MAX_SIZE"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateStorageIgnoresLLM(t *testing.T) {
	cfg := Config{CacheBackend: "db", DBDriver: "postgres", PoolMaxSize: 50, Timezone: "Asia/Seoul"}
	require.NoError(t, cfg.ValidateStorage())
	assert.ErrorContains(t, cfg.Validate(), "LLM_PROVIDER")
}
