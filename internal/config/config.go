package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the gateway, read from the environment.
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	VersionID string // exact cache key version; empty uses the prompt registry version
	Timezone  string

	CacheBackend string // memory | redis | db
	RedisAddr    string

	DBDriver string // sqlite | postgres
	DBDSN    string

	LLMProvider  string // openai | gemini
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	GeminiAPIKey string
	GeminiModel  string

	PoolMaxSize        int
	PoolConcurrency    int
	WriteQueueSize     int
	WriteQueueWorkers  int
	RateLimitPerMinute int // 0 disables rate limiting
	RequestTimeout     time.Duration
	MaxBodyBytes       int64
	AdminToken         string

	StatsInterval    time.Duration
	PoolGenerateCron string // empty disables scheduled pre-generation
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables with defaults applied.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:      getenv("PORT", "8080"),
		Env:       getenv("ENV", "production"),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		VersionID: os.Getenv("GATEWAY_VERSION"),
		Timezone:  getenv("TIMEZONE", "Asia/Seoul"),

		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),

		DBDriver: getenv("DB_DRIVER", "sqlite"),
		DBDSN:    getenv("DB_DSN", "fortunegate.db"),

		LLMProvider:  getenv("LLM_PROVIDER", "openai"),
		LLMBaseURL:   getenv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     getenv("LLM_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.0-flash-lite"),

		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		PoolGenerateCron: os.Getenv("POOL_GENERATE_CRON"),
	}

	var err error
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"POOL_MAX_SIZE", 50, &cfg.PoolMaxSize},
		{"POOL_CONCURRENCY", 4, &cfg.PoolConcurrency},
		{"WRITE_QUEUE_SIZE", 256, &cfg.WriteQueueSize},
		{"WRITE_QUEUE_WORKERS", 2, &cfg.WriteQueueWorkers},
		{"RATE_LIMIT_PER_MINUTE", 60, &cfg.RateLimitPerMinute},
	}
	for _, v := range ints {
		if *v.dst, err = getenvInt(v.key, v.def); err != nil {
			return Config{}, err
		}
	}

	maxBody, err := getenvInt("MAX_BODY_BYTES", 512*1024)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StatsInterval, err = getenvDuration("STATS_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects unknown backends and settings that cannot work together.
func (c Config) Validate() error {
	if err := c.ValidateStorage(); err != nil {
		return err
	}
	switch c.LLMProvider {
	case "openai":
		if c.LLMAPIKey == "" {
			return errors.New("LLM_API_KEY is required")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

// ValidateStorage checks everything except the LLM provider, for commands
// that never generate.
func (c Config) ValidateStorage() error {
	switch c.CacheBackend {
	case "memory", "db":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("CACHE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	if c.PoolMaxSize <= 0 {
		return errors.New("POOL_MAX_SIZE must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone, or nil when it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
