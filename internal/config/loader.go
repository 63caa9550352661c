package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/daimoniac/securevision/internal/errors"
)

const (
	DefaultBaseURL           = "http://localhost:8000"
	DefaultPollInterval      = 30 * time.Second
	DefaultRequestTimeout    = 10 * time.Second
	DefaultHistoryLimit      = 1000
	DefaultPostureExpression = "incidents == 0 && compliance >= 80.0"
)

// Load loads configuration from environment variables and securevision.yml defaults
func Load() (*Config, error) {
	configPath := getEnv("SECUREVISION_CONFIG", "securevision.yml")

	baseURL := DefaultBaseURL
	pollInterval := DefaultPollInterval
	requestTimeout := DefaultRequestTimeout
	seriesEnabled := true
	historyLimit := DefaultHistoryLimit
	posture := PostureConfig{Expression: DefaultPostureExpression}

	// A missing file is fine; a broken one is not
	if _, err := os.Stat(configPath); err == nil {
		fc, err := ParseFile(configPath)
		if err != nil {
			return nil, err
		}
		if fc.MetricsBaseURL != "" {
			baseURL = fc.MetricsBaseURL
		}
		if d, err := fc.GetPollInterval(); err != nil {
			return nil, err
		} else if d > 0 {
			pollInterval = d
		}
		if d, err := fc.GetRequestTimeout(); err != nil {
			return nil, err
		} else if d > 0 {
			requestTimeout = d
		}
		if fc.SeriesEnabled != nil {
			seriesEnabled = *fc.SeriesEnabled
		}
		if fc.HistoryLimit > 0 {
			historyLimit = fc.HistoryLimit
		}
		if fc.Posture != nil && fc.Posture.Expression != "" {
			posture = PostureConfig{
				Expression:     fc.Posture.Expression,
				FailureMessage: fc.Posture.FailureMessage,
			}
		}
	}

	pollInterval, err := getEnvInterval("POLL_INTERVAL", pollInterval)
	if err != nil {
		return nil, err
	}
	requestTimeout, err = getEnvInterval("REQUEST_TIMEOUT", requestTimeout)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigPath: configPath,
		Poller: PollerConfig{
			BaseURL:        getEnv("METRICS_BASE_URL", baseURL),
			Interval:       pollInterval,
			RequestTimeout: requestTimeout,
			SeriesEnabled:  getEnvBool("SERIES_ENABLED", seriesEnabled),
		},
		Posture: PostureConfig{
			Expression:     getEnv("POSTURE_EXPRESSION", posture.Expression),
			FailureMessage: posture.FailureMessage,
		},
		StateStore: StateStoreConfig{
			Type:         getEnv("STATE_STORE_TYPE", "memory"),
			SQLitePath:   getEnv("SQLITE_PATH", "securevision.db"),
			ValkeyAddr:   getEnv("VALKEY_ADDR", ""),
			HistoryLimit: getEnvInt("HISTORY_LIMIT", historyLimit),
		},
		API: APIConfig{
			Enabled: getEnvBool("API_ENABLED", true),
			Port:    getEnvInt("API_PORT", 8080),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Poller.BaseURL == "" {
		return errors.NewPermanentf("METRICS_BASE_URL is required (e.g., http://localhost:8000)")
	}

	u, err := url.Parse(c.Poller.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.NewPermanentf("invalid metrics base URL: %q (must be an absolute http or https URL)", c.Poller.BaseURL)
	}

	if c.Poller.Interval <= 0 {
		return errors.NewPermanentf("poll interval must be positive, got %s", c.Poller.Interval)
	}

	if c.Poller.RequestTimeout <= 0 || c.Poller.RequestTimeout >= c.Poller.Interval {
		return errors.NewPermanentf("request timeout %s must be positive and shorter than the poll interval %s",
			c.Poller.RequestTimeout, c.Poller.Interval)
	}

	if strings.TrimSpace(c.Posture.Expression) == "" {
		return errors.NewPermanentf("posture expression must not be empty")
	}

	switch c.StateStore.Type {
	case "memory":
	case "sqlite":
		if c.StateStore.SQLitePath == "" {
			return errors.NewPermanentf("sqlite path is required when using sqlite state store")
		}
	case "valkey":
		if c.StateStore.ValkeyAddr == "" {
			return errors.NewPermanentf("valkey address is required when using valkey state store")
		}
	default:
		return errors.NewPermanentf("invalid state store type: %s (must be memory, sqlite, or valkey)", c.StateStore.Type)
	}

	if c.StateStore.HistoryLimit <= 0 {
		return errors.NewPermanentf("history limit must be positive, got %d", c.StateStore.HistoryLimit)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvInterval fails on a malformed value instead of silently using the default
func getEnvInterval(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := parseInterval(value)
	if err != nil {
		return 0, errors.NewPermanentf("invalid %s: %w", key, err)
	}
	return d, nil
}
