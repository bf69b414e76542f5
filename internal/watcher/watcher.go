package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/observability"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/statestore"
)

// Watcher continuously monitors the input directory for new and updated
// scan reports
type Watcher interface {
	// Start begins the continuous discovery loop
	Start(ctx context.Context) error

	// Discover performs a single discovery cycle
	Discover(ctx context.Context) error
}

// watcherImpl implements the Watcher interface
type watcherImpl struct {
	source            report.Source
	policyStore       *policy.Store
	stateStore        statestore.StateStore
	taskQueue         queue.TaskQueue
	pollInterval      time.Duration
	reprocessInterval time.Duration
	logger            *slog.Logger
}

// Config contains configuration for the watcher
type Config struct {
	PollInterval      time.Duration
	ReprocessInterval time.Duration
}

// NewWatcher creates a new input directory watcher
func NewWatcher(
	source report.Source,
	policyStore *policy.Store,
	stateStore statestore.StateStore,
	taskQueue queue.TaskQueue,
	config Config,
	logger *slog.Logger,
) Watcher {
	return &watcherImpl{
		source:            source,
		policyStore:       policyStore,
		stateStore:        stateStore,
		taskQueue:         taskQueue,
		pollInterval:      config.PollInterval,
		reprocessInterval: config.ReprocessInterval,
		logger:            logger,
	}
}

// Start begins the continuous discovery loop
func (w *watcherImpl) Start(ctx context.Context) error {
	w.logger.Info("starting report watcher",
		"poll_interval", w.pollInterval.String(),
		"reprocess_interval", w.reprocessInterval.String())

	// Perform initial discovery
	if err := w.Discover(ctx); err != nil {
		w.logger.Error("initial discovery failed",
			"error", err.Error())
	}

	// Wait for poll interval after each discovery completes
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("report watcher shutting down")
			return ctx.Err()
		case <-time.After(w.pollInterval):
			if err := w.Discover(ctx); err != nil {
				w.logger.Error("discovery cycle failed",
					"error", err.Error())
			}
		}
	}
}

// Discover performs a single discovery cycle
func (w *watcherImpl) Discover(ctx context.Context) error {
	w.logger.Info("starting discovery cycle")

	metrics := observability.GetMetrics()

	// Pick up policy edits before deciding what to enqueue
	w.reloadPolicy()

	files, err := w.source.List(ctx)
	if err != nil {
		metrics.DiscoveryErrors.Inc()
		return fmt.Errorf("failed to list input directory: %w", err)
	}

	w.logger.Info("discovered report files",
		"count", len(files))

	due := w.dueForReprocess(ctx)

	for _, file := range files {
		if err := w.processFile(ctx, file, due); err != nil {
			metrics.DiscoveryErrors.Inc()
			w.logger.Error("failed to process report file",
				"file", file.Name,
				"error", err.Error())
			continue
		}
	}

	w.logger.Info("discovery cycle completed")
	return nil
}

// reloadPolicy reloads the policy file if it changed and warns about
// suppressions that are about to expire
func (w *watcherImpl) reloadPolicy() {
	metrics := observability.GetMetrics()

	changed, err := w.policyStore.ReloadIfChanged()
	if err != nil {
		metrics.PolicyReloadErrors.Inc()
		w.logger.Error("policy reload failed, using previous document",
			"policy", w.policyStore.Path(),
			"error", err.Error())
		return
	}
	if changed {
		metrics.PolicyReloads.Inc()
		w.logger.Info("policy file reloaded", "policy", w.policyStore.Path())
	}

	w.checkExpiringIgnores()
}

// checkExpiringIgnores logs warnings for ignore rules expiring soon
func (w *watcherImpl) checkExpiringIgnores() {
	doc := w.policyStore.Current()
	if doc == nil {
		return
	}

	warningThreshold := 7 * 24 * time.Hour

	for _, expiring := range doc.Expiring(warningThreshold, time.Now()) {
		w.logger.Warn("ignore rule expiring soon",
			"vuln_id", expiring.VulnID,
			"path", policy.JoinPath(expiring.Path),
			"reason", expiring.Reason,
			"expires_at", expiring.ExpiresAt.Format(time.RFC3339),
			"days_until_expiry", expiring.DaysUntil)
	}
}

// dueForReprocess queries which reports have a stale latest run, once per
// discovery cycle. A nil map means the query failed and the per-run
// timestamp check decides instead.
func (w *watcherImpl) dueForReprocess(ctx context.Context) map[string]bool {
	names, err := w.stateStore.ListDueForReprocess(ctx, w.reprocessInterval)
	if err != nil {
		w.logger.Error("failed to list reports due for reprocess",
			"error", err.Error())
		return nil
	}
	due := make(map[string]bool, len(names))
	for _, name := range names {
		due[name] = true
	}
	return due
}

// shouldProcess determines if a report revision needs processing based on
// content fingerprint and run history
func (w *watcherImpl) shouldProcess(
	ctx context.Context,
	file report.FileInfo,
	fingerprint string,
	due map[string]bool,
) (shouldProcess bool, reason string, isReprocess bool, err error) {
	// Step 1: Check run history for this exact content
	lastRun, err := w.stateStore.GetLastRun(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, statestore.ErrRunNotFound) {
			// No run for this fingerprint: the file is either brand new or
			// its content changed since the last run
			history, herr := w.stateStore.GetRunHistory(ctx, reportName(file.Name), 1)
			if herr == nil && len(history) > 0 {
				return true, "report content changed", false, nil
			}
			return true, "never processed before", false, nil
		}
		return false, "", false, fmt.Errorf("failed to check run history: %w", err)
	}

	// Step 2: Content unchanged. Reprocess once the interval elapses so
	// expired suppressions surface without a report update.
	timeSinceLastRun := time.Since(lastRun.ProcessedAt)
	stale := timeSinceLastRun >= w.reprocessInterval
	if due != nil {
		stale = due[reportName(file.Name)]
	}
	if stale {
		return true, fmt.Sprintf("reprocess interval elapsed (%v since last run)", timeSinceLastRun), true, nil
	}

	return false, fmt.Sprintf("already processed %v ago, no changes", timeSinceLastRun), false, nil
}

// processFile decides whether one report file needs a run and enqueues it
func (w *watcherImpl) processFile(ctx context.Context, file report.FileInfo, due map[string]bool) error {
	metrics := observability.GetMetrics()
	metrics.ReportsDiscovered.Inc()

	fingerprint, err := w.source.Fingerprint(ctx, file.Path)
	if err != nil {
		if pkgerrors.IsReportNotFound(err) {
			// File vanished between List and Fingerprint
			w.logger.Debug("report file vanished before fingerprinting",
				"file", file.Name)
			return nil
		}
		return fmt.Errorf("failed to fingerprint report: %w", err)
	}

	shouldProcess, reason, isReprocess, err := w.shouldProcess(ctx, file, fingerprint, due)
	if err != nil {
		w.logger.Error("failed to determine processing necessity, enqueuing to be safe",
			"file", file.Name,
			"error", err.Error())
		shouldProcess = true
		reason = "error checking run state"
		isReprocess = false
	}

	if !shouldProcess {
		w.logger.Debug("skipping report",
			"file", file.Name,
			"fingerprint", fingerprint,
			"reason", reason)
		metrics.ReprocessDecisionsTotal.WithLabelValues("skip", reason).Inc()
		return nil
	}

	w.logger.Debug("enqueuing report task",
		"file", file.Name,
		"fingerprint", fingerprint,
		"reason", reason,
		"is_reprocess", isReprocess)
	metrics.ReprocessDecisionsTotal.WithLabelValues("enqueue", reason).Inc()

	task := &queue.ReportTask{
		ID:          fmt.Sprintf("%s-%d", fingerprint, time.Now().Unix()),
		ReportName:  file.Name,
		ReportPath:  file.Path,
		Fingerprint: fingerprint,
		EnqueuedAt:  time.Now(),
		Attempts:    0,
		IsReprocess: isReprocess,
	}

	if err := w.taskQueue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// reportName strips the extension from a report filename, matching the name
// recorded by the worker
func reportName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
