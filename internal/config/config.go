package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"ledger/internal/core"
)

type Config struct {
	// Backend selection
	DataBackend   string
	SQLiteDBPath  string
	DataDirectory string

	// AMQP; an empty URL disables change events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Navigable window around the current month
	MonthsPast   int
	MonthsFuture int
	LedgerSort   string

	// Month bucket cache
	CacheSize int
	CacheTTL  time.Duration

	// Worker
	RefreshSchedule string

	LogLevel string
}

func Load() *Config {
	return &Config{
		DataBackend:   getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/ledger.db"),
		DataDirectory: getEnv("DATA_DIRECTORY", "./data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "ledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		MonthsPast:   getEnvInt("MONTHS_PAST", 12),
		MonthsFuture: getEnvInt("MONTHS_FUTURE", 3),
		LedgerSort:   getEnv("LEDGER_SORT", "asc"),

		CacheSize: getEnvInt("LEDGER_CACHE_SIZE", 64),
		CacheTTL:  getEnvDuration("LEDGER_CACHE_TTL", 5*time.Minute),

		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "*/15 * * * *"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// SortDirection returns the parsed LedgerSort. Call Validate first.
func (c *Config) SortDirection() core.SortDirection {
	d, err := core.ParseSortDirection(c.LedgerSort)
	if err != nil {
		return core.SortAscending
	}
	return d
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.MonthsPast < 0 || c.MonthsPast > 120 {
		errors = append(errors, fmt.Sprintf("invalid months past %d: must be between 0 and 120", c.MonthsPast))
	}
	if c.MonthsFuture < 0 || c.MonthsFuture > 120 {
		errors = append(errors, fmt.Sprintf("invalid months future %d: must be between 0 and 120", c.MonthsFuture))
	}

	if _, err := core.ParseSortDirection(c.LedgerSort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger sort '%s': must be 'asc' or 'desc'", c.LedgerSort))
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid refresh schedule '%s': %v", c.RefreshSchedule, err))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
