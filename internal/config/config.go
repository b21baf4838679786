package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for incidentdesk.
type Config struct {
	Server   ServerConfig
	Analyzer AnalyzerConfig
	History  HistoryConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
	// SessionIdleTimeout closes sessions unused for this long. Zero keeps them until shutdown.
	SessionIdleTimeout time.Duration
}

type AnalyzerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HistoryConfig selects where the profile history blob lives.
type HistoryConfig struct {
	Backend    string
	Key        string
	SQLitePath string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

// AuthConfig enables bearer-token auth on the session server when TokenHash is set.
type AuthConfig struct {
	TokenHash string
}

const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// DefaultHistoryKey is the storage key of the history blob.
const DefaultHistoryKey = "incident_analyzer_history_v1"

var validBackends = map[string]bool{
	BackendSQLite:   true,
	BackendRedis:    true,
	BackendPostgres: true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("INCIDENTDESK_PORT", 8080),
			Env:                envString("INCIDENTDESK_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MIN", 30),
			SessionIdleTimeout: envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: strings.TrimRight(envString("ANALYZER_BASE_URL", "http://127.0.0.1:8000"), "/"),
			Timeout: envDuration("ANALYZER_TIMEOUT", 60*time.Second),
		},
		History: HistoryConfig{
			Backend:    envString("HISTORY_BACKEND", BackendSQLite),
			Key:        envString("HISTORY_KEY", DefaultHistoryKey),
			SQLitePath: envString("HISTORY_SQLITE_PATH", "incidentdesk.db"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			TokenHash: os.Getenv("SESSION_TOKEN_HASH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Analyzer.BaseURL == "" {
		return fmt.Errorf("ANALYZER_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Analyzer.BaseURL, "http://") && !strings.HasPrefix(c.Analyzer.BaseURL, "https://") {
		return fmt.Errorf("ANALYZER_BASE_URL must start with http:// or https://, got %q", c.Analyzer.BaseURL)
	}
	if c.Analyzer.Timeout <= 0 {
		return fmt.Errorf("ANALYZER_TIMEOUT must be positive, got %s", c.Analyzer.Timeout)
	}

	if c.Server.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.Server.SessionIdleTimeout)
	}

	if !validBackends[c.History.Backend] {
		return fmt.Errorf("HISTORY_BACKEND must be one of sqlite, redis, postgres; got %q", c.History.Backend)
	}
	if c.History.Key == "" {
		return fmt.Errorf("HISTORY_KEY must not be empty")
	}

	switch c.History.Backend {
	case BackendSQLite:
		if c.History.SQLitePath == "" {
			return fmt.Errorf("HISTORY_SQLITE_PATH is required when HISTORY_BACKEND is sqlite")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when HISTORY_BACKEND is redis")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when HISTORY_BACKEND is postgres")
		}
	}

	if c.Auth.TokenHash != "" && !strings.HasPrefix(c.Auth.TokenHash, "$2") {
		return fmt.Errorf("SESSION_TOKEN_HASH must be a bcrypt hash")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
