package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Queue metrics
	QueueDepth     prometheus.Gauge
	QueueEnqueued  prometheus.Counter
	QueueDequeued  prometheus.Counter
	QueueCompleted prometheus.Counter
	QueueFailed    prometheus.Counter

	// Calculation metrics
	CalculationsTotal   *prometheus.CounterVec
	CalculationsFailed  *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
	VesselAssessments   prometheus.Counter

	// Validation metrics
	ValidationSummaries *prometheus.CounterVec

	// Material metrics
	StressLookups *prometheus.CounterVec

	// Audit metrics
	AuditEntriesAppended   *prometheus.CounterVec
	AuditAppendFailures    prometheus.Counter
	AuditIntegrityFailures prometheus.Counter

	// Discovery metrics
	InspectionFilesDiscovered prometheus.Counter
	DiscoveryErrors           prometheus.Counter

	// Worker metrics
	WorkerTasksProcessed prometheus.Counter
	WorkerErrors         prometheus.Counter

	// API metrics
	APIRateLimited prometheus.Counter
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			// Queue metrics
			QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "vesselfit_queue_depth",
				Help: "Current number of recalculation tasks in the queue",
			}),
			QueueEnqueued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_queue_enqueued_total",
				Help: "Total number of recalculation tasks enqueued",
			}),
			QueueDequeued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_queue_dequeued_total",
				Help: "Total number of recalculation tasks dequeued",
			}),
			QueueCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_queue_completed_total",
				Help: "Total number of recalculation tasks completed successfully",
			}),
			QueueFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_queue_failed_total",
				Help: "Total number of recalculation tasks that failed",
			}),

			// Calculation metrics
			CalculationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vesselfit_calculations_total",
					Help: "Total number of component calculations by resulting status",
				},
				[]string{"status"}, // acceptable, monitoring, critical
			),
			CalculationsFailed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vesselfit_calculations_failed_total",
					Help: "Total number of component calculations that could not complete by error kind",
				},
				[]string{"kind"},
			),
			CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "vesselfit_calculation_duration_seconds",
				Help:    "Duration of component calculations in seconds, including the audit append",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
			}),
			VesselAssessments: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_vessel_assessments_total",
				Help: "Total number of vessel assessments performed",
			}),

			// Validation metrics
			ValidationSummaries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vesselfit_validation_summaries_total",
					Help: "Total number of input validations by overall status",
				},
				[]string{"status"},
			),

			// Material metrics
			StressLookups: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vesselfit_stress_lookups_total",
					Help: "Total number of allowable stress lookups by status",
				},
				[]string{"status"},
			),

			// Audit metrics
			AuditEntriesAppended: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "vesselfit_audit_entries_appended_total",
					Help: "Total number of audit entries appended by action",
				},
				[]string{"action"},
			),
			AuditAppendFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_audit_append_failures_total",
				Help: "Total number of audit appends that failed",
			}),
			AuditIntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_audit_integrity_failures_total",
				Help: "Total number of exports or chain verifications that found a checksum mismatch",
			}),

			// Discovery metrics
			InspectionFilesDiscovered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_inspection_files_discovered_total",
				Help: "Total number of inspection packages picked up from the drop directory",
			}),
			DiscoveryErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_discovery_errors_total",
				Help: "Total number of drop directory errors",
			}),

			// Worker metrics
			WorkerTasksProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_worker_tasks_processed_total",
				Help: "Total number of tasks processed by workers",
			}),
			WorkerErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_worker_errors_total",
				Help: "Total number of worker errors",
			}),

			// API metrics
			APIRateLimited: promauto.NewCounter(prometheus.CounterOpts{
				Name: "vesselfit_api_rate_limited_total",
				Help: "Total number of API requests rejected by the rate limiter",
			}),
		}
	})
	return metricsInstance
}
