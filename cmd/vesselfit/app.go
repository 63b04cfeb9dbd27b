package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/daimoniac/vesselfit/internal/assessment"
	"github.com/daimoniac/vesselfit/internal/audit"
	"github.com/daimoniac/vesselfit/internal/config"
	"github.com/daimoniac/vesselfit/internal/materials"
	"github.com/daimoniac/vesselfit/internal/observability"
	"github.com/daimoniac/vesselfit/internal/policy"
	"github.com/daimoniac/vesselfit/internal/statestore"
	"github.com/daimoniac/vesselfit/internal/validation"
)

// store is what both state store implementations provide.
type store interface {
	statestore.Store
	observability.Pinger
	io.Closer
}

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	resolver   *materials.Resolver
	store      store
	audit      *audit.Service
	assessment *assessment.Service
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp builds the calculation and audit stack from cfg. The caller must
// Close the returned app.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	resolver, err := newResolver(cfg.Materials, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing status classifier")
	classifier, err := policy.NewClassifier(logger, cfg.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize status classifier: %w", err)
	}

	engine := validation.NewEngine(logger, resolver, cfg.Validation)

	logger.Debug("initializing state store",
		"type", cfg.StateStore.Type)
	st, err := openStore(cfg.StateStore)
	if err != nil {
		return nil, err
	}

	var auditOpts []audit.Option
	if cfg.Audit.HMACKey != "" {
		auditOpts = append(auditOpts, audit.WithHMACKey([]byte(cfg.Audit.HMACKey)))
	} else {
		logger.Warn("audit checksums are unkeyed; set the key named by audit.hmacKeyEnv to sign them",
			"env", cfg.Audit.HMACKeyEnv)
	}
	auditSvc := audit.NewService(logger, st, auditOpts...)

	svc := assessment.NewService(logger, engine, classifier,
		assessment.WithAudit(auditSvc),
		assessment.WithConcurrency(cfg.Worker.BatchConcurrency))

	return &app{
		cfg:        cfg,
		logger:     logger,
		resolver:   resolver,
		store:      st,
		audit:      auditSvc,
		assessment: svc,
	}, nil
}

func newResolver(cfg config.MaterialsConfig, logger *slog.Logger) (*materials.Resolver, error) {
	var (
		table *materials.StressTable
		err   error
	)
	if cfg.StressTable != "" {
		logger.Debug("loading stress table",
			"path", cfg.StressTable,
			"constraint", cfg.VersionConstraint)
		table, err = materials.LoadTable(cfg.StressTable, cfg.VersionConstraint)
	} else {
		table, err = materials.DefaultTable()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stress table: %w", err)
	}

	resolver, err := materials.NewResolver(table)
	if err != nil {
		return nil, fmt.Errorf("failed to index stress table: %w", err)
	}
	logger.Debug("stress table loaded",
		"reference", table.Reference())
	return resolver, nil
}

func openStore(cfg config.StateStoreConfig) (store, error) {
	switch cfg.Type {
	case "sqlite":
		st, err := statestore.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		return st, nil
	case "memory":
		return statestore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported state store type: %s", cfg.Type)
	}
}

func (a *app) Close() error {
	return a.store.Close()
}
