package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	ConfigPath    string
	Poller        PollerConfig
	Posture       PostureConfig
	StateStore    StateStoreConfig
	API           APIConfig
	Observability ObservabilityConfig
}

// PollerConfig configures the upstream metrics pollers
type PollerConfig struct {
	BaseURL        string
	Interval       time.Duration
	RequestTimeout time.Duration
	// SeriesEnabled adds the timeline and vulnerability distribution pollers
	SeriesEnabled bool
}

// PostureConfig configures the CEL posture policy
type PostureConfig struct {
	Expression     string
	FailureMessage string
}

// StateStoreConfig configures the snapshot history store
type StateStoreConfig struct {
	Type         string
	SQLitePath   string
	ValkeyAddr   string
	HistoryLimit int
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled bool
	Port    int
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}

// FileConfig is the optional securevision.yml file. Any value set here is
// overridden by the matching environment variable.
type FileConfig struct {
	MetricsBaseURL string             `yaml:"metricsBaseURL,omitempty"`
	PollInterval   string             `yaml:"pollInterval,omitempty"`
	RequestTimeout string             `yaml:"requestTimeout,omitempty"`
	SeriesEnabled  *bool              `yaml:"seriesEnabled,omitempty"`
	HistoryLimit   int                `yaml:"historyLimit,omitempty"`
	Posture        *PostureFileConfig `yaml:"posture,omitempty"`
}

// PostureFileConfig represents a CEL-based posture policy
type PostureFileConfig struct {
	Expression     string `yaml:"expression"`
	FailureMessage string `yaml:"failureMessage,omitempty"`
}
