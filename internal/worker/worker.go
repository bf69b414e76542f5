package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/gate"
	"github.com/cfarm/ccp-test/internal/observability"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/statestore"
)

// Worker defines the interface for processing report tasks
type Worker interface {
	// Start begins processing tasks from the queue
	Start(ctx context.Context) error

	// ProcessTask executes the complete workflow for one report
	ProcessTask(ctx context.Context, task *queue.ReportTask) error
}

// Config contains configuration for the worker
type Config struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	Concurrency   int // Number of concurrent workers
}

// DefaultConfig returns default worker configuration
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryBackoff:  10 * time.Second,
		Concurrency:   3,
	}
}

// ReportWorker implements the Worker interface
type ReportWorker struct {
	queue       queue.TaskQueue
	policyStore *policy.Store
	gate        gate.Gate
	stateStore  statestore.StateStore
	outputDir   string
	config      Config
	logger      *slog.Logger
	wg          sync.WaitGroup
	pipeline    *Pipeline
}

// NewReportWorker creates a new worker instance
func NewReportWorker(
	queue queue.TaskQueue,
	policyStore *policy.Store,
	gate gate.Gate,
	stateStore statestore.StateStore,
	outputDir string,
	config Config,
	logger *slog.Logger,
) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}

	worker := &ReportWorker{
		queue:       queue,
		policyStore: policyStore,
		gate:        gate,
		stateStore:  stateStore,
		outputDir:   outputDir,
		config:      config,
		logger:      logger,
	}

	worker.pipeline = NewPipeline(worker, logger)

	return worker
}

// Start begins processing tasks from the queue
func (w *ReportWorker) Start(ctx context.Context) error {
	concurrency := w.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	w.logger.Info("worker starting", "concurrency", concurrency)

	// Register store metrics collector (once across all worker instances)
	observability.RegisterStateStoreCollector(w.stateStore, w.policyStore, w.logger)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			w.processLoop(workerCtx, workerID)
		}(i)
	}

	<-workerCtx.Done()

	w.logger.Info("worker shutting down, waiting for in-flight tasks to complete")

	// Wait for in-flight tasks to complete with timeout
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker shutdown complete")
		return nil
	case <-time.After(30 * time.Second):
		w.logger.Warn("worker shutdown timeout, some tasks may not have completed")
		return fmt.Errorf("shutdown timeout")
	}
}

// processLoop is the main task processing loop
func (w *ReportWorker) processLoop(ctx context.Context, workerID int) {
	w.logger.Info("worker processing loop started", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker processing loop stopping", "worker_id", workerID)
			return
		default:
			// Dequeue a task (blocking with context)
			task, err := w.queue.Dequeue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					w.logger.Info("worker dequeue cancelled", "worker_id", workerID, "error", err)
					return
				}
				w.logger.Error("failed to dequeue task", "worker_id", workerID, "error", err)
				// Brief sleep to avoid tight loop on persistent errors
				time.Sleep(time.Second)
				continue
			}

			w.logger.Info("processing task",
				"worker_id", workerID,
				"task_id", task.ID,
				"report", task.ReportName,
				"fingerprint", task.Fingerprint,
				"is_reprocess", task.IsReprocess)

			if err := w.ProcessTask(ctx, task); err != nil {
				// Log once here with full context
				w.logger.Error("task processing failed",
					"worker_id", workerID,
					"task_id", task.ID,
					"report", task.ReportName,
					"fingerprint", task.Fingerprint,
					"error", err)
				metrics := observability.GetMetrics()
				metrics.WorkerErrors.Inc()
				_ = w.queue.Fail(ctx, task.ID, err)
			} else {
				w.logger.Info("task processing completed",
					"worker_id", workerID,
					"task_id", task.ID,
					"report", task.ReportName,
					"fingerprint", task.Fingerprint)
				metrics := observability.GetMetrics()
				metrics.WorkerTasksProcessed.Inc()
				_ = w.queue.Complete(ctx, task.ID)
			}
		}
	}
}

// ErrorHandlerAction determines what action to take for a given error
type ErrorHandlerAction int

const (
	// ActionRetry indicates the error is transient and should be retried
	ActionRetry ErrorHandlerAction = iota
	// ActionFail indicates the error is permanent and should not be retried
	ActionFail
	// ActionSpecialHandling indicates the error requires special handling (e.g., report file gone)
	ActionSpecialHandling
)

// handleTaskError classifies an error and determines the appropriate action.
func (w *ReportWorker) handleTaskError(err error, attempt int, task *queue.ReportTask) (ErrorHandlerAction, time.Duration) {
	if err == nil {
		return ActionRetry, 0
	}

	errorClass := errors.ClassifyError(err)

	switch errorClass {
	case errors.ErrorClassReportNotFound:
		// The report file disappeared between discovery and processing
		w.logger.Info("report file not found during task processing",
			"task_id", task.ID,
			"report", task.ReportName)
		return ActionSpecialHandling, 0

	case errors.ErrorClassPermanent:
		return ActionFail, 0

	case errors.ErrorClassTransient:
		if attempt >= w.config.RetryAttempts {
			// No more retries available
			return ActionFail, 0
		}

		backoff := w.config.RetryBackoff * time.Duration(attempt)
		w.logger.Warn("transient error, retrying",
			"task_id", task.ID,
			"report", task.ReportName,
			"attempt", attempt,
			"max_attempts", w.config.RetryAttempts,
			"backoff", backoff,
			"error", err)

		return ActionRetry, backoff

	case errors.ErrorClassUnknown:
		// Unknown errors default to permanent (safe default - don't retry)
		return ActionFail, 0

	default:
		return ActionFail, 0
	}
}

// ProcessTask executes the complete workflow for one report with retry logic
func (w *ReportWorker) ProcessTask(ctx context.Context, task *queue.ReportTask) error {
	if task == nil {
		return errors.NewPermanentf("task is nil")
	}

	var lastErr error
	for attempt := 1; attempt <= w.config.RetryAttempts; attempt++ {
		err := w.pipeline.Execute(ctx, task)
		if err == nil {
			return nil
		}

		lastErr = err

		action, backoff := w.handleTaskError(err, attempt, task)

		switch action {
		case ActionFail:
			return err

		case ActionSpecialHandling:
			// Report file gone - don't retry but return the error
			return err

		case ActionRetry:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				// Continue to next attempt
			}
		}
	}

	return errors.NewPermanentf("max retries exceeded: %w", lastErr)
}
