package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/validation"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vesselfit.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VESSELFIT_CONFIG", filepath.Join(t.TempDir(), "missing.yml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Queue.BufferSize != 1000 {
		t.Errorf("Expected buffer size 1000, got %d", cfg.Queue.BufferSize)
	}
	if cfg.Worker.RetryAttempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.Worker.RetryAttempts)
	}
	if cfg.Worker.RetryBackoff != 10*time.Second {
		t.Errorf("Expected 10s retry backoff, got %v", cfg.Worker.RetryBackoff)
	}
	if cfg.Worker.Concurrency != 3 || cfg.Worker.BatchConcurrency != 4 {
		t.Errorf("Expected concurrency 3/4, got %d/%d", cfg.Worker.Concurrency, cfg.Worker.BatchConcurrency)
	}
	if cfg.StateStore.Type != "sqlite" || cfg.StateStore.SQLitePath != "vesselfit.db" {
		t.Errorf("Expected sqlite at vesselfit.db, got %s at %s", cfg.StateStore.Type, cfg.StateStore.SQLitePath)
	}
	if cfg.Materials.StressTable != "" {
		t.Errorf("Expected embedded stress table, got %s", cfg.Materials.StressTable)
	}
	if cfg.Audit.HMACKeyEnv != DefaultHMACKeyEnv {
		t.Errorf("Expected HMAC key env %s, got %s", DefaultHMACKeyEnv, cfg.Audit.HMACKeyEnv)
	}
	if cfg.Watcher.Settle != 2*time.Second {
		t.Errorf("Expected 2s settle, got %v", cfg.Watcher.Settle)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Observability.MetricsPort != 9090 || cfg.Observability.HealthCheckPort != 8081 {
		t.Errorf("Expected ports 9090/8081, got %d/%d", cfg.Observability.MetricsPort, cfg.Observability.HealthCheckPort)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `version: 1
materials:
  versionConstraint: ">= 1.0.0, < 2.0.0"
validation:
  tolerance: 0.01
  minRemainingLife: 6
  bounds:
    designPressure:
      min: 1
      typicalMin: 15
      typicalMax: 1500
      max: 5000
      unit: psi
status:
  critical: "actual < tMin"
  acceptable: "actual >= tMin + designCA"
audit:
  hmacKeyEnv: PLANT_AUDIT_KEY
watcher:
  dir: /var/spool/vesselfit
  settle: 5s
worker:
  concurrency: 6
  retryAttempts: 5
  retryBackoff: 1m
queue:
  bufferSize: 50
`)
	t.Setenv("VESSELFIT_CONFIG", path)
	t.Setenv("PLANT_AUDIT_KEY", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ConfigPath != path {
		t.Errorf("Expected config path %s, got %s", path, cfg.ConfigPath)
	}
	if cfg.Materials.VersionConstraint != ">= 1.0.0, < 2.0.0" {
		t.Errorf("Unexpected version constraint %q", cfg.Materials.VersionConstraint)
	}
	if cfg.Validation.Tolerance != 0.01 || cfg.Validation.MinRemainingLife != 6 {
		t.Errorf("Unexpected validation settings %+v", cfg.Validation)
	}
	if b, ok := cfg.Validation.Bounds[validation.FieldDesignPressure]; !ok || b.TypicalMax != 1500 {
		t.Errorf("Expected designPressure bounds override, got %+v", cfg.Validation.Bounds)
	}
	if cfg.Status.Acceptable != "actual >= tMin + designCA" {
		t.Errorf("Unexpected acceptable expression %q", cfg.Status.Acceptable)
	}
	if cfg.Audit.HMACKeyEnv != "PLANT_AUDIT_KEY" || cfg.Audit.HMACKey != "s3cret" {
		t.Errorf("Expected HMAC key from PLANT_AUDIT_KEY, got %+v", cfg.Audit)
	}
	if cfg.Watcher.Dir != "/var/spool/vesselfit" || cfg.Watcher.Settle != 5*time.Second {
		t.Errorf("Unexpected watcher settings %+v", cfg.Watcher)
	}
	if cfg.Worker.Concurrency != 6 || cfg.Worker.RetryAttempts != 5 || cfg.Worker.RetryBackoff != time.Minute {
		t.Errorf("Unexpected worker settings %+v", cfg.Worker)
	}
	if cfg.Queue.BufferSize != 50 {
		t.Errorf("Expected buffer size 50, got %d", cfg.Queue.BufferSize)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `watcher:
  dir: /from/file
worker:
  concurrency: 6
`)
	t.Setenv("VESSELFIT_CONFIG", path)
	t.Setenv("VESSELFIT_WATCH_DIR", "/from/env")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("STATE_STORE_TYPE", "memory")
	t.Setenv("VESSELFIT_API_KEY", "key-1")
	t.Setenv("API_READ_ONLY", "yes")
	t.Setenv("API_RATE_LIMIT", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Watcher.Dir != "/from/env" {
		t.Errorf("Expected watch dir from env, got %s", cfg.Watcher.Dir)
	}
	if cfg.Worker.Concurrency != 2 {
		t.Errorf("Expected concurrency 2, got %d", cfg.Worker.Concurrency)
	}
	if cfg.StateStore.Type != "memory" {
		t.Errorf("Expected memory store, got %s", cfg.StateStore.Type)
	}
	if cfg.API.APIKey != "key-1" || !cfg.API.ReadOnly || cfg.API.RateLimit != 2.5 {
		t.Errorf("Unexpected API settings %+v", cfg.API)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"malformed yaml", "worker: [unclosed", "failed to parse config YAML"},
		{"bad backoff", "worker:\n  retryBackoff: soon\n", "invalid worker.retryBackoff"},
		{"bad settle", "watcher:\n  settle: 5w\n", "invalid watcher.settle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("VESSELFIT_CONFIG", writeConfig(t, tt.content))

			_, err := Load()
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
			if !errors.IsPermanent(err) {
				t.Errorf("Expected permanent error, got %v", err)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Queue:      QueueConfig{BufferSize: 10},
		Worker:     WorkerConfig{Concurrency: 1, BatchConcurrency: 1},
		StateStore: StateStoreConfig{Type: "sqlite", SQLitePath: "test.db"},
		API:        APIConfig{Port: 8080, RateLimit: 1, RateBurst: 1},
		Observability: ObservabilityConfig{
			MetricsPort:     9090,
			HealthCheckPort: 8081,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory store", func(c *Config) { c.StateStore = StateStoreConfig{Type: "memory"} }, ""},
		{"unknown store", func(c *Config) { c.StateStore.Type = "postgres" }, "invalid state store type"},
		{"missing sqlite path", func(c *Config) { c.StateStore.SQLitePath = "" }, "sqlite path is required"},
		{"missing stress table", func(c *Config) { c.Materials.StressTable = "/nonexistent/table.yml" }, "stress table not found"},
		{"bad constraint", func(c *Config) { c.Materials.VersionConstraint = "not a constraint" }, "invalid stress table version constraint"},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker concurrency must be positive"},
		{"zero buffer", func(c *Config) { c.Queue.BufferSize = 0 }, "queue buffer size must be positive"},
		{"port out of range", func(c *Config) { c.API.Port = 70000 }, "API_PORT must be between 1 and 65535"},
		{"api port clash", func(c *Config) { c.Observability.MetricsPort = 8080 }, "API_PORT 8080 collides"},
		{"shared observability port", func(c *Config) { c.Observability.HealthCheckPort = 9090 }, ""},
		{"zero rate", func(c *Config) { c.API.RateLimit = 0 }, "rate limit and burst must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
			if !errors.IsPermanent(err) {
				t.Errorf("Expected permanent error, got %v", err)
			}
		})
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}
