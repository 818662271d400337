package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// HTTP settings
	Port         int
	MaxBodyBytes int64

	// Fetch settings
	FetchTimeout time.Duration

	// History settings (empty HistoryPath disables the journal)
	HistoryPath string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:         getEnvInt("PORT", 3000),
		MaxBodyBytes: int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		FetchTimeout: time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		HistoryPath:  "/data/fetch_history.db",
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	// An explicitly empty HISTORY_PATH disables the journal, so the lookup
	// must distinguish "unset" from "set to empty".
	if path, ok := os.LookupEnv("HISTORY_PATH"); ok {
		cfg.HistoryPath = path
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.MaxBodyBytes < 1 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	// The inner terminate timer fires ahead of the caller-facing deadline,
	// so the overall budget must leave room for both.
	if c.FetchTimeout < 2*time.Second {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be at least 2")
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
