// Package config holds engine configuration, loaded from environment
// variables with YAML profile overrides.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the arbitration protocol.
const (
	DefaultMaxConcurrentSessions = 10
	DefaultSessionTimeout        = 5 * time.Minute
)

// Config holds the recognized engine options.
type Config struct {
	AutoApplyPrecedents   bool
	EnableWaivers         bool
	EnableAppeals         bool
	MaxConcurrentSessions int
	SessionTimeout        time.Duration
	TrackPerformance      bool

	LogLevel     string
	DatabaseURL  string // postgres URL; empty selects the embedded sqlite store
	SQLitePath   string
	RedisAddr    string // empty selects the in-memory slot store
	OTLPEndpoint string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		AutoApplyPrecedents:   envBool("AUTO_APPLY_PRECEDENTS", true),
		EnableWaivers:         envBool("ENABLE_WAIVERS", true),
		EnableAppeals:         envBool("ENABLE_APPEALS", true),
		MaxConcurrentSessions: envInt("MAX_CONCURRENT_SESSIONS", DefaultMaxConcurrentSessions),
		TrackPerformance:      envBool("TRACK_PERFORMANCE", true),
		SessionTimeout:        DefaultSessionTimeout,

		LogLevel:     envString("LOG_LEVEL", "INFO"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   envString("SQLITE_PATH", "tribune.db"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OTLPEndpoint: envString("OTLP_ENDPOINT", "localhost:4317"),
	}

	if ms := envInt("SESSION_TIMEOUT_MS", 0); ms > 0 {
		cfg.SessionTimeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
