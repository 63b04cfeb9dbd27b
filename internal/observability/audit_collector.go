package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/daimoniac/vesselfit/internal/statestore"
)

var (
	auditCollectorOnce     sync.Once
	auditCollectorInstance *AuditCollector
)

// IntegrityCheckFunc returns the number of audit entries that fail
// checksum verification.
type IntegrityCheckFunc func(ctx context.Context) (int, error)

// AuditCollector collects audit store metrics on demand when /metrics is scraped
type AuditCollector struct {
	store     statestore.Store
	logger    *slog.Logger
	integrity IntegrityCheckFunc // Optional: full verification is expensive, so it is cached

	// Metric descriptors
	entriesDesc          *prometheus.Desc
	entitiesDesc         *prometheus.Desc
	entriesByActionDesc  *prometheus.Desc
	lastEntryDesc        *prometheus.Desc
	runsByStatusDesc     *prometheus.Desc
	integrityFailureDesc *prometheus.Desc

	// Cache for the integrity check (10-minute TTL)
	integrityMutex sync.RWMutex
	integrityCache int
	integrityTime  time.Time
	integrityTTL   time.Duration
}

// NewAuditCollector creates a new audit metrics collector
func NewAuditCollector(store statestore.Store, integrity IntegrityCheckFunc, logger *slog.Logger) *AuditCollector {
	return &AuditCollector{
		store:        store,
		logger:       logger,
		integrity:    integrity,
		integrityTTL: 10 * time.Minute,
		entriesDesc: prometheus.NewDesc(
			"vesselfit_audit_entries",
			"Current number of entries in the audit log",
			nil,
			nil,
		),
		entitiesDesc: prometheus.NewDesc(
			"vesselfit_audit_entities",
			"Current number of distinct entities with audit history",
			nil,
			nil,
		),
		entriesByActionDesc: prometheus.NewDesc(
			"vesselfit_audit_entries_by_action",
			"Current number of audit entries per action",
			[]string{"action"},
			nil,
		),
		lastEntryDesc: prometheus.NewDesc(
			"vesselfit_audit_last_entry_timestamp_seconds",
			"Unix time of the newest audit entry",
			nil,
			nil,
		),
		runsByStatusDesc: prometheus.NewDesc(
			"vesselfit_recalculation_runs",
			"Number of recent recalculation runs per status",
			[]string{"status"},
			nil,
		),
		integrityFailureDesc: prometheus.NewDesc(
			"vesselfit_audit_entries_failing_verification",
			"Number of audit entries whose checksum does not verify",
			nil,
			nil,
		),
	}
}

// RegisterAuditCollector registers the audit collector exactly once
func RegisterAuditCollector(store statestore.Store, integrity IntegrityCheckFunc, logger *slog.Logger) {
	auditCollectorOnce.Do(func() {
		auditCollectorInstance = NewAuditCollector(store, integrity, logger)
		prometheus.MustRegister(auditCollectorInstance)
		logger.Info("audit metrics collector registered")
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *AuditCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.entitiesDesc
	ch <- c.entriesByActionDesc
	ch <- c.lastEntryDesc
	ch <- c.runsByStatusDesc
	ch <- c.integrityFailureDesc
}

// Collect queries the store and sends current metrics to the provided channel
func (c *AuditCollector) Collect(ch chan<- prometheus.Metric) {
	// Bounded so a busy writer cannot block the /metrics endpoint
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c.collectStats(ctx, ch)
	c.collectRuns(ctx, ch)
	c.collectIntegrity(ctx, ch)
}

func (c *AuditCollector) collectStats(ctx context.Context, ch chan<- prometheus.Metric) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		c.logCollectError(ctx, "audit stats", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(stats.TotalEntries))
	ch <- prometheus.MustNewConstMetric(c.entitiesDesc, prometheus.GaugeValue, float64(stats.Entities))
	for action, count := range stats.ByAction {
		ch <- prometheus.MustNewConstMetric(c.entriesByActionDesc, prometheus.GaugeValue, float64(count), action)
	}
	if stats.LastEntryAt != nil {
		ch <- prometheus.MustNewConstMetric(c.lastEntryDesc, prometheus.GaugeValue,
			float64(stats.LastEntryAt.UnixNano())/1e9)
	}
}

// collectRuns counts the most recent runs by status
func (c *AuditCollector) collectRuns(ctx context.Context, ch chan<- prometheus.Metric) {
	runs, err := c.store.ListRuns(ctx, "", 1000)
	if err != nil {
		c.logCollectError(ctx, "recalculation runs", err)
		return
	}

	counts := map[statestore.RunStatus]int{
		statestore.RunQueued:    0,
		statestore.RunRunning:   0,
		statestore.RunCompleted: 0,
		statestore.RunFailed:    0,
	}
	for _, run := range runs {
		counts[run.Status]++
	}
	for status, count := range counts {
		ch <- prometheus.MustNewConstMetric(c.runsByStatusDesc, prometheus.GaugeValue, float64(count), string(status))
	}
}

func (c *AuditCollector) collectIntegrity(ctx context.Context, ch chan<- prometheus.Metric) {
	if c.integrity == nil {
		return
	}

	c.integrityMutex.RLock()
	if !c.integrityTime.IsZero() && time.Since(c.integrityTime) < c.integrityTTL {
		cached := c.integrityCache
		c.integrityMutex.RUnlock()
		ch <- prometheus.MustNewConstMetric(c.integrityFailureDesc, prometheus.GaugeValue, float64(cached))
		return
	}
	c.integrityMutex.RUnlock()

	failed, err := c.integrity(ctx)
	if err != nil {
		c.logCollectError(ctx, "audit integrity", err)
		return
	}

	c.integrityMutex.Lock()
	c.integrityCache = failed
	c.integrityTime = time.Now()
	c.integrityMutex.Unlock()

	ch <- prometheus.MustNewConstMetric(c.integrityFailureDesc, prometheus.GaugeValue, float64(failed))
}

func (c *AuditCollector) logCollectError(ctx context.Context, metric string, err error) {
	if ctx.Err() != nil {
		c.logger.Debug("metric collection timed out (likely database locked)", "metric", metric, "error", err)
		return
	}
	c.logger.Error("failed to collect metric", "metric", metric, "error", err)
}
