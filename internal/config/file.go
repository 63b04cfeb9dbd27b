package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daimoniac/vesselfit/internal/errors"
)

// DefaultHMACKeyEnv is the variable read for the audit HMAC key when the
// file does not name one.
const DefaultHMACKeyEnv = "VESSELFIT_AUDIT_KEY"

// Upper bounds for durations read from the file.
const (
	maxWatcherSettle = time.Hour
	maxRetryBackoff  = 24 * time.Hour
)

// ParseFile reads and parses a vesselfit.yml configuration file
func ParseFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewPermanentf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// GetHMACKeyEnv returns the variable holding the audit HMAC key
func (c *FileConfig) GetHMACKeyEnv() string {
	if c.Audit.HMACKeyEnv != "" {
		return c.Audit.HMACKeyEnv
	}
	return DefaultHMACKeyEnv
}

// GetWatcherSettle returns how long a dropped file must be quiet before it is read
func (c *FileConfig) GetWatcherSettle() (time.Duration, error) {
	if c.Watcher.Settle == "" {
		return 0, nil
	}
	return parseDuration(c.Watcher.Settle, maxWatcherSettle)
}

// GetWorkerRetryBackoff returns the base retry backoff
func (c *FileConfig) GetWorkerRetryBackoff() (time.Duration, error) {
	if c.Worker.RetryBackoff == "" {
		return 0, nil
	}
	return parseDuration(c.Worker.RetryBackoff, maxRetryBackoff)
}

