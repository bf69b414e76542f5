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

	// Report processing metrics
	ReportsProcessed   prometheus.Counter
	ReportsFailed      prometheus.Counter
	ProcessingDuration prometheus.Histogram

	// Gate metrics
	GatePassed prometheus.Counter
	GateFailed prometheus.Counter

	// Finding metrics
	FindingsSeen    *prometheus.CounterVec
	FindingsIgnored prometheus.Counter
	FindingsPatched prometheus.Counter
	ExpiredIgnores  prometheus.Counter

	// Policy metrics
	PolicyReloads      prometheus.Counter
	PolicyReloadErrors prometheus.Counter

	// Discovery metrics
	ReportsDiscovered prometheus.Counter
	DiscoveryErrors   prometheus.Counter

	// Worker metrics
	WorkerTasksProcessed prometheus.Counter
	WorkerErrors         prometheus.Counter

	// Reprocess scheduling metrics
	ReprocessDecisionsTotal *prometheus.CounterVec
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
				Name: "ccp_queue_depth",
				Help: "Current number of tasks in the queue",
			}),
			QueueEnqueued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_queue_enqueued_total",
				Help: "Total number of tasks enqueued",
			}),
			QueueDequeued: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_queue_dequeued_total",
				Help: "Total number of tasks dequeued",
			}),
			QueueCompleted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_queue_completed_total",
				Help: "Total number of tasks completed successfully",
			}),
			QueueFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_queue_failed_total",
				Help: "Total number of tasks that failed",
			}),

			// Report processing metrics
			ReportsProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_reports_processed_total",
				Help: "Total number of reports run through the policy pipeline",
			}),
			ReportsFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_reports_failed_total",
				Help: "Total number of report runs that failed",
			}),
			ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ccp_processing_duration_seconds",
				Help:    "Duration of report processing in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			}),

			// Gate metrics
			GatePassed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_gate_passed_total",
				Help: "Total number of reports that passed gate evaluation",
			}),
			GateFailed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_gate_failed_total",
				Help: "Total number of reports that failed gate evaluation",
			}),

			// Finding metrics
			FindingsSeen: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ccp_findings_seen_total",
					Help: "Total number of findings seen by severity",
				},
				[]string{"severity"},
			),
			FindingsIgnored: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_findings_ignored_total",
				Help: "Total number of findings suppressed by ignore rules",
			}),
			FindingsPatched: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_findings_patched_total",
				Help: "Total number of findings covered by patch records",
			}),
			ExpiredIgnores: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_expired_ignores_total",
				Help: "Total number of ignore matches voided because the rule had expired",
			}),

			// Policy metrics
			PolicyReloads: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_policy_reloads_total",
				Help: "Total number of policy file reloads",
			}),
			PolicyReloadErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_policy_reload_errors_total",
				Help: "Total number of failed policy file reloads",
			}),

			// Discovery metrics
			ReportsDiscovered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_reports_discovered_total",
				Help: "Total number of report files discovered",
			}),
			DiscoveryErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_discovery_errors_total",
				Help: "Total number of discovery errors",
			}),

			// Worker metrics
			WorkerTasksProcessed: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_worker_tasks_processed_total",
				Help: "Total number of tasks processed by workers",
			}),
			WorkerErrors: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ccp_worker_errors_total",
				Help: "Total number of worker errors",
			}),

			// Reprocess scheduling metrics
			ReprocessDecisionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ccp_reprocess_decisions_total",
					Help: "Total number of reprocess decisions made",
				},
				[]string{"decision", "reason"},
			),
		}
	})
	return metricsInstance
}
