package config

import (
	"time"

	"github.com/daimoniac/vesselfit/internal/policy"
	"github.com/daimoniac/vesselfit/internal/validation"
)

// Config represents the complete application configuration
type Config struct {
	ConfigPath    string
	Queue         QueueConfig
	Worker        WorkerConfig
	StateStore    StateStoreConfig
	Materials     MaterialsConfig
	Validation    validation.Config
	Status        policy.StatusPolicy
	Audit         AuditConfig
	Watcher       WatcherConfig
	API           APIConfig
	Observability ObservabilityConfig
}

// QueueConfig configures the in-memory task queue
type QueueConfig struct {
	BufferSize int
}

// WorkerConfig configures the recalculation worker
type WorkerConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	Concurrency   int
	// BatchConcurrency bounds parallel inspections in a batch assessment
	BatchConcurrency int
}

// StateStoreConfig configures the audit store
type StateStoreConfig struct {
	Type       string
	SQLitePath string
}

// MaterialsConfig selects the allowable-stress table
type MaterialsConfig struct {
	// StressTable is a table file path; empty uses the embedded table
	StressTable       string
	VersionConstraint string
}

// AuditConfig configures audit checksums
type AuditConfig struct {
	// HMACKeyEnv names the environment variable holding the HMAC key
	HMACKeyEnv string
	HMACKey    string
}

// WatcherConfig configures the inspection drop-directory watcher
type WatcherConfig struct {
	Dir    string
	Settle time.Duration
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled   bool
	Port      int
	APIKey    string
	ReadOnly  bool
	RateLimit float64 // requests per second per client
	RateBurst int
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}

// FileConfig is the vesselfit.yml document
type FileConfig struct {
	Version    int                 `yaml:"version"`
	Materials  FileMaterials       `yaml:"materials"`
	Validation FileValidation      `yaml:"validation"`
	Status     policy.StatusPolicy `yaml:"status"`
	Audit      FileAudit           `yaml:"audit"`
	Watcher    FileWatcher         `yaml:"watcher"`
	Worker     FileWorker          `yaml:"worker"`
	Queue      FileQueue           `yaml:"queue"`
}

// FileMaterials selects the stress table
type FileMaterials struct {
	StressTable       string `yaml:"stressTable"`
	VersionConstraint string `yaml:"versionConstraint"`
}

// FileValidation overrides validation defaults
type FileValidation struct {
	Tolerance               float64           `yaml:"tolerance"`
	ReplacementLossFraction float64           `yaml:"replacementLossFraction"`
	MinRemainingLife        float64           `yaml:"minRemainingLife"`
	Bounds                  validation.Bounds `yaml:"bounds,omitempty"`
}

// FileAudit configures audit checksums
type FileAudit struct {
	HMACKeyEnv string `yaml:"hmacKeyEnv"`
}

// FileWatcher configures the drop-directory watcher
type FileWatcher struct {
	Dir    string `yaml:"dir"`
	Settle string `yaml:"settle,omitempty"`
}

// FileWorker configures the worker
type FileWorker struct {
	Concurrency      int    `yaml:"concurrency,omitempty"`
	BatchConcurrency int    `yaml:"batchConcurrency,omitempty"`
	RetryAttempts    int    `yaml:"retryAttempts,omitempty"`
	RetryBackoff     string `yaml:"retryBackoff,omitempty"`
}

// FileQueue configures the queue
type FileQueue struct {
	BufferSize int `yaml:"bufferSize,omitempty"`
}
