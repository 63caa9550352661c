package config

import (
	"os"
	"time"

	"github.com/daimoniac/securevision/internal/errors"
	"gopkg.in/yaml.v3"
)

// ParseFile reads and parses a securevision.yml configuration file
func ParseFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errors.NewPermanentf("failed to parse config YAML: %w", err)
	}

	return &fc, nil
}

// GetPollInterval returns the configured poll interval, or 0 if unset
func (f *FileConfig) GetPollInterval() (time.Duration, error) {
	return optionalInterval(f.PollInterval)
}

// GetRequestTimeout returns the configured request timeout, or 0 if unset
func (f *FileConfig) GetRequestTimeout() (time.Duration, error) {
	return optionalInterval(f.RequestTimeout)
}

func optionalInterval(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := parseInterval(value)
	if err != nil {
		return 0, errors.NewPermanentf("invalid duration %q: %w", value, err)
	}
	return d, nil
}
