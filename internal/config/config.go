package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Database drivers understood by DatabaseConfig.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Sweep scopes for the duplicate and self-loop passes of a merge.
const (
	SweepGlobal = "global"
	SweepScoped = "scoped"
)

type Config struct {
	Env           string // "development" exposes internal error detail in API responses
	Database      DatabaseConfig
	Consolidation ConsolidationConfig
	Web           WebConfig
	Log           LogConfig
}

type DatabaseConfig struct {
	Driver       string // postgres (default) or sqlite
	URL          string // PostgreSQL connection URL or SQLite file path
	MaxOpenConns int    // Maximum open connections (default 25, forced to 1 for sqlite)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ConsolidationConfig struct {
	Timeout    time.Duration // Deadline for a single merge transaction attempt
	MaxRetries int           // Retries after a serialization conflict
	Sweep      string        // global or scoped
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string   // Optional bearer token guarding /api/v1
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

type LogConfig struct {
	Level  string // zerolog level name
	Format string // console or json
}

// IsDevelopment reports whether internal error detail may be returned to API callers.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is envInt that also accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envDuration parses a Go duration string ("30s", "2m").
// Returns the default value if the env var is unset or not a positive duration.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

// envString returns the trimmed env var or the default when empty.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// normalizeSweep maps unknown sweep values to the global sweep.
func normalizeSweep(s string) string {
	if strings.EqualFold(s, SweepScoped) {
		return SweepScoped
	}
	return SweepGlobal
}

func Load() *Config {
	return &Config{
		Env: envString("APP_ENV", "production"),
		Database: DatabaseConfig{
			Driver:       strings.ToLower(envString("DATABASE_DRIVER", DriverPostgres)),
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Consolidation: ConsolidationConfig{
			Timeout:    envDuration("CONSOLIDATION_TIMEOUT", 30*time.Second),
			MaxRetries: envNonNegativeInt("CONSOLIDATION_MAX_RETRIES", 3),
			Sweep:      normalizeSweep(os.Getenv("CONSOLIDATION_SWEEP")),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "console")),
		},
	}
}
