package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Currency conversion
	MainCurrency   string
	RatesCacheFile string
	RatesTTL       time.Duration
	RatesTimeout   time.Duration

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sync jobs
	SyncJobsDir    string
	SyncScriptsDir string
	// SyncStartupScript runs once, blocking, before serve materializes automations.
	SyncStartupScript string

	// Automations
	AutomationInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expenses_tracker.db"),

		MainCurrency:   strings.ToLower(getEnv("MAIN_CURRENCY", "eur")),
		RatesCacheFile: getEnv("RATES_CACHE_FILE", "./data/rates_cache.json"),
		RatesTTL:       getEnvDuration("RATES_TTL", 24*time.Hour),
		RatesTimeout:   getEnvDuration("RATES_TIMEOUT", 5*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		SyncJobsDir:       getEnv("SYNC_JOBS_DIR", "./data/sync_jobs"),
		SyncScriptsDir:    getEnv("SYNC_SCRIPTS_DIR", "./scripts"),
		SyncStartupScript: getEnv("SYNC_STARTUP_SCRIPT", ""),

		AutomationInterval: getEnvDuration("AUTOMATION_INTERVAL", time.Hour),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// AMQPEnabled reports whether ledger events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if len(c.MainCurrency) != 3 {
		errors = append(errors, fmt.Sprintf("invalid main currency '%s': must be a 3-letter code", c.MainCurrency))
	}
	if c.RatesTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rates TTL %v: must be positive", c.RatesTTL))
	}
	if c.RatesTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be at least 100ms", c.RatesTimeout))
	} else if c.RatesTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates timeout %v: must be at most 1 minute", c.RatesTimeout))
	}

	// Validate AMQP URL if provided
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

	if c.SyncJobsDir == "" {
		errors = append(errors, "sync jobs directory cannot be empty")
	}
	if c.SyncScriptsDir == "" {
		errors = append(errors, "sync scripts directory cannot be empty")
	}

	if c.AutomationInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid automation interval %v: must be at least 1 minute", c.AutomationInterval))
	} else if c.AutomationInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid automation interval %v: must be at most 24 hours", c.AutomationInterval))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Return combined errors
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
