package config

import (
	"os"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/policy"
	"github.com/daimoniac/vesselfit/internal/validation"
)

// Load loads configuration from environment variables and vesselfit.yml.
// A missing file is not an error; every setting has a default.
func Load() (*Config, error) {
	configPath := getEnv("VESSELFIT_CONFIG", "vesselfit.yml")

	file := &FileConfig{}
	if parsed, err := ParseFile(configPath); err == nil {
		file = parsed
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	workerRetryBackoff, err := file.GetWorkerRetryBackoff()
	if err != nil {
		return nil, errors.NewPermanentf("invalid worker.retryBackoff: %w", err)
	}
	watcherSettle, err := file.GetWatcherSettle()
	if err != nil {
		return nil, errors.NewPermanentf("invalid watcher.settle: %w", err)
	}

	hmacKeyEnv := file.GetHMACKeyEnv()

	cfg := &Config{
		ConfigPath: configPath,
		Queue: QueueConfig{
			BufferSize: orDefault(file.Queue.BufferSize, 1000),
		},
		Worker: WorkerConfig{
			RetryAttempts:    orDefault(file.Worker.RetryAttempts, 3),
			RetryBackoff:     orDefault(workerRetryBackoff, 10*time.Second),
			Concurrency:      getEnvInt("WORKER_CONCURRENCY", orDefault(file.Worker.Concurrency, 3)),
			BatchConcurrency: orDefault(file.Worker.BatchConcurrency, 4),
		},
		StateStore: StateStoreConfig{
			Type:       getEnv("STATE_STORE_TYPE", "sqlite"),
			SQLitePath: getEnv("SQLITE_PATH", "vesselfit.db"),
		},
		Materials: MaterialsConfig{
			StressTable:       getEnv("VESSELFIT_STRESS_TABLE", file.Materials.StressTable),
			VersionConstraint: file.Materials.VersionConstraint,
		},
		Validation: validation.Config{
			Bounds:                  file.Validation.Bounds,
			Tolerance:               file.Validation.Tolerance,
			ReplacementLossFraction: file.Validation.ReplacementLossFraction,
			MinRemainingLife:        file.Validation.MinRemainingLife,
		},
		Status: policy.StatusPolicy{
			Critical:   file.Status.Critical,
			Acceptable: file.Status.Acceptable,
		},
		Audit: AuditConfig{
			HMACKeyEnv: hmacKeyEnv,
			HMACKey:    os.Getenv(hmacKeyEnv),
		},
		Watcher: WatcherConfig{
			Dir:    getEnv("VESSELFIT_WATCH_DIR", file.Watcher.Dir),
			Settle: orDefault(watcherSettle, 2*time.Second),
		},
		API: APIConfig{
			Enabled:   getEnvBool("API_ENABLED", true),
			Port:      getEnvInt("API_PORT", 8080),
			APIKey:    getEnv("VESSELFIT_API_KEY", ""),
			ReadOnly:  getEnvBool("API_READ_ONLY", false),
			RateLimit: getEnvFloat("API_RATE_LIMIT", 20),
			RateBurst: getEnvInt("API_RATE_BURST", 40),
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
	if c.StateStore.Type != "sqlite" && c.StateStore.Type != "memory" {
		return errors.NewPermanentf("invalid state store type: %s (must be sqlite or memory)", c.StateStore.Type)
	}

	if c.StateStore.Type == "sqlite" && c.StateStore.SQLitePath == "" {
		return errors.NewPermanentf("sqlite path is required when using sqlite state store")
	}

	if c.Materials.StressTable != "" {
		if _, err := os.Stat(c.Materials.StressTable); os.IsNotExist(err) {
			return errors.NewPermanentf("stress table not found: %s", c.Materials.StressTable)
		}
	}

	if c.Materials.VersionConstraint != "" {
		if _, err := semver.NewConstraint(c.Materials.VersionConstraint); err != nil {
			return errors.NewPermanentf("invalid stress table version constraint %q: %w", c.Materials.VersionConstraint, err)
		}
	}

	if c.Worker.Concurrency <= 0 || c.Worker.BatchConcurrency <= 0 {
		return errors.NewPermanentf("worker concurrency must be positive")
	}

	if c.Queue.BufferSize <= 0 {
		return errors.NewPermanentf("queue buffer size must be positive")
	}

	for _, p := range []struct {
		name string
		port int
	}{
		{"API_PORT", c.API.Port},
		{"METRICS_PORT", c.Observability.MetricsPort},
		{"HEALTH_CHECK_PORT", c.Observability.HealthCheckPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return errors.NewPermanentf("%s must be between 1 and 65535, got %d", p.name, p.port)
		}
	}
	// Metrics and health may share a listener; the API may not
	if c.API.Port == c.Observability.MetricsPort || c.API.Port == c.Observability.HealthCheckPort {
		return errors.NewPermanentf("API_PORT %d collides with an observability port", c.API.Port)
	}

	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return errors.NewPermanentf("API rate limit and burst must be positive")
	}

	return nil
}

// orDefault returns def when v is the zero value
func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Environment lookups fall back to the default when the variable is unset
// or does not parse.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	switch os.Getenv(key) {
	case "yes":
		return true
	case "no":
		return false
	}
	return defaultValue
}
