package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/statestore"
)

var (
	storeCollectorOnce     sync.Once
	storeCollectorInstance *StateStoreCollector
)

// StateStoreCollector collects metrics from the state store on-demand when /metrics is scraped
type StateStoreCollector struct {
	store       statestore.StateStore
	logger      *slog.Logger
	policyStore *policy.Store // Optional: used to calculate unapplied ignore rules

	// Metric descriptors
	activeSuppressionsDesc   *prometheus.Desc
	expiredSuppressionsDesc  *prometheus.Desc
	expiringSuppressionsDesc *prometheus.Desc
	suppressionsNoExpiryDesc *prometheus.Desc
	currentFindingsDesc      *prometheus.Desc
	unappliedIgnoresDesc     *prometheus.Desc
	gateFailedCurrentDesc    *prometheus.Desc
	reportsTrackedDesc       *prometheus.Desc

	// Cache for unapplied ignores (10-minute TTL)
	unappliedIgnoresMutex sync.RWMutex
	unappliedIgnoresCache int
	unappliedIgnoresTime  time.Time
	unappliedIgnoresTTL   time.Duration
}

// NewStateStoreCollector creates a new state store metrics collector
func NewStateStoreCollector(store statestore.StateStore, policyStore *policy.Store, logger *slog.Logger) *StateStoreCollector {
	return &StateStoreCollector{
		store:               store,
		logger:              logger,
		policyStore:         policyStore,
		unappliedIgnoresTTL: 10 * time.Minute,
		activeSuppressionsDesc: prometheus.NewDesc(
			"ccp_active_suppressions",
			"Current number of applied suppressions that have not expired",
			nil,
			nil,
		),
		expiredSuppressionsDesc: prometheus.NewDesc(
			"ccp_expired_suppressions",
			"Number of expired suppressions per report",
			[]string{"report"},
			nil,
		),
		expiringSuppressionsDesc: prometheus.NewDesc(
			"ccp_expiring_suppressions_soon",
			"Number of suppressions expiring within 7 days per report",
			[]string{"report"},
			nil,
		),
		suppressionsNoExpiryDesc: prometheus.NewDesc(
			"ccp_suppressions_without_expiry",
			"Number of suppressions without an expiry date per report",
			[]string{"report"},
			nil,
		),
		currentFindingsDesc: prometheus.NewDesc(
			"ccp_current_findings",
			"Current number of unsuppressed findings by severity",
			[]string{"severity"},
			nil,
		),
		unappliedIgnoresDesc: prometheus.NewDesc(
			"ccp_unapplied_ignores",
			"Number of ignore rule IDs defined in the policy file that have never been applied to any report",
			nil,
			nil,
		),
		gateFailedCurrentDesc: prometheus.NewDesc(
			"ccp_gate_failed_current",
			"Current number of reports whose latest run failed gate evaluation",
			nil,
			nil,
		),
		reportsTrackedDesc: prometheus.NewDesc(
			"ccp_reports_tracked",
			"Number of reports known to the state store",
			nil,
			nil,
		),
	}
}

// RegisterStateStoreCollector registers the state store collector exactly once
func RegisterStateStoreCollector(store statestore.StateStore, policyStore *policy.Store, logger *slog.Logger) {
	storeCollectorOnce.Do(func() {
		storeCollectorInstance = NewStateStoreCollector(store, policyStore, logger)
		prometheus.MustRegister(storeCollectorInstance)
		logger.Info("state store metrics collector registered")
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *StateStoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSuppressionsDesc
	ch <- c.expiredSuppressionsDesc
	ch <- c.expiringSuppressionsDesc
	ch <- c.suppressionsNoExpiryDesc
	ch <- c.currentFindingsDesc
	ch <- c.unappliedIgnoresDesc
	ch <- c.gateFailedCurrentDesc
	ch <- c.reportsTrackedDesc
}

// Collect queries the state store and sends current metrics to the provided channel
func (c *StateStoreCollector) Collect(ch chan<- prometheus.Metric) {
	// Metrics don't need to be real-time, but they should succeed even during
	// moderate database contention. 3 seconds keeps /metrics from blocking.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	queryStore, ok := c.store.(statestore.StateStoreQuery)
	if !ok {
		c.logger.Warn("state store does not support queries, skipping store metrics")
		return
	}

	c.collectStats(ctx, queryStore, ch)
	c.collectSuppressionExpiry(ctx, queryStore, ch)
	c.collectUnappliedIgnores(ctx, queryStore, ch)
	c.collectFindings(ctx, queryStore, ch)
}

// collectStats collects aggregate counters
func (c *StateStoreCollector) collectStats(ctx context.Context, store statestore.StateStoreQuery, ch chan<- prometheus.Metric) {
	stats, err := store.Stats(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("stats metric collection timed out (likely database locked)", "error", err)
		} else {
			c.logger.Error("failed to collect store stats", "error", err)
		}
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.activeSuppressionsDesc,
		prometheus.GaugeValue,
		float64(stats.ActiveSuppressions),
	)
	ch <- prometheus.MustNewConstMetric(
		c.gateFailedCurrentDesc,
		prometheus.GaugeValue,
		float64(stats.GateFailed),
	)
	ch <- prometheus.MustNewConstMetric(
		c.reportsTrackedDesc,
		prometheus.GaugeValue,
		float64(stats.Reports),
	)
}

// collectSuppressionExpiry collects expired, expiring-soon, and no-expiry
// suppression counts per report
func (c *StateStoreCollector) collectSuppressionExpiry(ctx context.Context, store statestore.StateStoreQuery, ch chan<- prometheus.Metric) {
	suppressions, err := store.ListSuppressions(ctx, statestore.SuppressionFilter{Limit: 10000})
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("suppression expiry metric collection timed out (likely database locked)", "error", err)
		} else {
			c.logger.Error("failed to collect suppression expiry metrics", "error", err)
		}
		return
	}

	type reportMetrics struct {
		expired  int
		expiring int
		noExpiry int
	}
	reportStats := make(map[string]*reportMetrics)
	now := time.Now()

	for _, suppression := range suppressions {
		stats, exists := reportStats[suppression.ReportName]
		if !exists {
			stats = &reportMetrics{}
			reportStats[suppression.ReportName] = stats
		}

		if suppression.ExpiresAt == nil {
			stats.noExpiry++
			continue
		}

		if suppression.ExpiresAt.Before(now) {
			stats.expired++
		} else if suppression.ExpiresAt.Sub(now) <= 7*24*time.Hour {
			stats.expiring++
		}
	}

	for report, stats := range reportStats {
		ch <- prometheus.MustNewConstMetric(
			c.expiredSuppressionsDesc,
			prometheus.GaugeValue,
			float64(stats.expired),
			report,
		)
		ch <- prometheus.MustNewConstMetric(
			c.expiringSuppressionsDesc,
			prometheus.GaugeValue,
			float64(stats.expiring),
			report,
		)
		ch <- prometheus.MustNewConstMetric(
			c.suppressionsNoExpiryDesc,
			prometheus.GaugeValue,
			float64(stats.noExpiry),
			report,
		)
	}
}

// collectUnappliedIgnores collects the count of ignore rules defined in the
// policy file but never applied to any report
func (c *StateStoreCollector) collectUnappliedIgnores(ctx context.Context, store statestore.StateStoreQuery, ch chan<- prometheus.Metric) {
	if c.policyStore == nil {
		return
	}

	// Check cache first
	c.unappliedIgnoresMutex.RLock()
	if time.Since(c.unappliedIgnoresTime) < c.unappliedIgnoresTTL {
		cachedValue := c.unappliedIgnoresCache
		c.unappliedIgnoresMutex.RUnlock()
		ch <- prometheus.MustNewConstMetric(
			c.unappliedIgnoresDesc,
			prometheus.GaugeValue,
			float64(cachedValue),
		)
		return
	}
	c.unappliedIgnoresMutex.RUnlock()

	doc := c.policyStore.Current()
	if doc == nil {
		return
	}

	definedIDs := make(map[string]bool)
	for _, entry := range doc.Ignore {
		definedIDs[entry.ID] = true
	}

	idSlice := make([]string, 0, len(definedIDs))
	for id := range definedIDs {
		idSlice = append(idSlice, id)
	}

	unappliedCount, err := store.CountUnappliedIgnores(ctx, idSlice)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("unapplied ignores metric collection timed out (likely database locked)", "error", err)
		} else {
			c.logger.Error("failed to collect unapplied ignores metric", "error", err)
		}
		return
	}

	c.unappliedIgnoresMutex.Lock()
	c.unappliedIgnoresCache = unappliedCount
	c.unappliedIgnoresTime = time.Now()
	c.unappliedIgnoresMutex.Unlock()

	ch <- prometheus.MustNewConstMetric(
		c.unappliedIgnoresDesc,
		prometheus.GaugeValue,
		float64(unappliedCount),
	)
}

// collectFindings collects current unsuppressed finding counts by severity
func (c *StateStoreCollector) collectFindings(ctx context.Context, store statestore.StateStoreQuery, ch chan<- prometheus.Metric) {
	counts, err := store.FindingCountsBySeverity(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("finding metric collection timed out (likely database locked)", "error", err)
		} else {
			c.logger.Error("failed to collect finding metrics", "error", err)
		}
		return
	}

	// Always report the standard severities, even at zero
	for _, severity := range []string{"CRITICAL", "HIGH", "MEDIUM", "LOW"} {
		ch <- prometheus.MustNewConstMetric(
			c.currentFindingsDesc,
			prometheus.GaugeValue,
			float64(counts[severity]),
			severity,
		)
	}
}
