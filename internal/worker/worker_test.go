package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cfarm/ccp-test/internal/gate"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/statestore"
)

// mockQueue implements queue.TaskQueue for testing
type mockQueue struct {
	tasks       chan *queue.ReportTask
	dequeueErr  error
	completeErr error
	failErr     error
	closed      bool
}

func newMockQueue(bufferSize int) *mockQueue {
	return &mockQueue{
		tasks: make(chan *queue.ReportTask, bufferSize),
	}
}

func (m *mockQueue) Enqueue(ctx context.Context, task *queue.ReportTask) error {
	if m.closed {
		return errors.New("queue closed")
	}
	select {
	case m.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *mockQueue) Dequeue(ctx context.Context) (*queue.ReportTask, error) {
	if m.dequeueErr != nil {
		return nil, m.dequeueErr
	}
	select {
	case task, ok := <-m.tasks:
		if !ok {
			return nil, errors.New("queue closed")
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *mockQueue) Complete(ctx context.Context, taskID string) error {
	return m.completeErr
}

func (m *mockQueue) Fail(ctx context.Context, taskID string, err error) error {
	return m.failErr
}

func (m *mockQueue) GetQueueDepth(ctx context.Context) (int, error) {
	return len(m.tasks), nil
}

func (m *mockQueue) Close() error {
	if m.closed {
		return errors.New("already closed")
	}
	m.closed = true
	close(m.tasks)
	return nil
}

func TestNewReportWorker(t *testing.T) {
	mockQ := newMockQueue(10)
	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	if worker == nil {
		t.Fatal("expected worker to be created")
	}

	if worker.queue != mockQ {
		t.Error("expected queue to be set")
	}

	if worker.logger == nil {
		t.Error("expected logger to be set")
	}

	if worker.config.RetryAttempts != config.RetryAttempts {
		t.Errorf("expected retry attempts %d, got %d", config.RetryAttempts, worker.config.RetryAttempts)
	}
}

func TestWorkerStart_GracefulShutdown(t *testing.T) {
	mockQ := newMockQueue(10)
	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	// Give worker time to start
	time.Sleep(100 * time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("expected no error on graceful shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not shut down within timeout")
	}
}

func TestWorkerStart_ContextCancellation(t *testing.T) {
	mockQ := newMockQueue(10)
	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not respond to context cancellation")
	}
}

func TestWorkerStart_DequeueError(t *testing.T) {
	mockQ := newMockQueue(10)
	mockQ.dequeueErr = errors.New("dequeue error")

	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- worker.Start(ctx)
	}()

	// Worker should handle dequeue errors gracefully and continue
	<-ctx.Done()
}

func TestProcessTask_NilTask(t *testing.T) {
	mockQ := newMockQueue(10)
	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	err := worker.ProcessTask(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil task")
	}

	if !strings.Contains(err.Error(), "task is nil") {
		t.Errorf("expected 'task is nil' error, got: %v", err)
	}
}

func TestProcessTask_WithNilDependencies(t *testing.T) {
	mockQ := newMockQueue(10)
	logger := slog.Default()
	config := DefaultConfig()

	worker := NewReportWorker(mockQ, nil, nil, nil, "", config, logger)

	task := &queue.ReportTask{
		ID:          "test-1",
		ReportName:  "osv_api.json",
		ReportPath:  "reports/osv_api.json",
		Fingerprint: "sha256:abc123",
		EnqueuedAt:  time.Now(),
	}

	err := worker.ProcessTask(context.Background(), task)
	if err == nil {
		t.Error("expected error when dependencies are nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.RetryAttempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", config.RetryAttempts)
	}

	if config.RetryBackoff != 10*time.Second {
		t.Errorf("expected retry backoff 10s, got %v", config.RetryBackoff)
	}
}

func TestProcessTask_FullPipeline(t *testing.T) {
	dir := t.TempDir()
	logger := slog.Default()

	policyPath := filepath.Join(dir, ".snyk")
	policyYAML := `version: v1.25.0
ignore:
  CVE-2024-0001:
    - 'left-pad > minimist':
        reason: dev-only dependency
        expires: 2099-01-01T00:00:00.000Z
patch: {}
`
	if err := os.WriteFile(policyPath, []byte(policyYAML), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	reportPath := filepath.Join(dir, "deps_web.json")
	reportJSON := `{
  "schemaVersion": 1,
  "project": "web",
  "ecosystem": "npm",
  "findings": [
    {
      "id": "CVE-2024-0001",
      "severity": "critical",
      "package": "minimist",
      "version": "1.2.0",
      "from": ["left-pad", "minimist"]
    },
    {
      "id": "CVE-2024-0002",
      "severity": "low",
      "package": "lodash",
      "version": "4.17.0",
      "from": ["lodash"]
    }
  ]
}`
	if err := os.WriteFile(reportPath, []byte(reportJSON), 0o644); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}

	policyStore := policy.NewStore(policyPath, logger)
	if err := policyStore.Load(); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}

	gateEngine, err := gate.NewEngine(logger, gate.Config{}, policyStore)
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	store, err := statestore.NewSQLiteStore(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("failed to create state store: %v", err)
	}
	defer store.Close()

	outputDir := filepath.Join(dir, "processed")

	worker := NewReportWorker(newMockQueue(1), policyStore, gateEngine, store, outputDir, DefaultConfig(), logger)

	task := &queue.ReportTask{
		ID:          "test-1",
		ReportName:  "deps_web.json",
		ReportPath:  reportPath,
		Fingerprint: "sha256:full-pipeline",
		EnqueuedAt:  time.Now(),
	}

	if err := worker.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	// Processed output was written
	outPath := filepath.Join(outputDir, "deps_web.processed.json")
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("expected processed report at %s: %v", outPath, err)
	}

	// Run was recorded: the critical finding was ignored, so the gate passed
	run, err := store.GetLastRun(context.Background(), task.Fingerprint)
	if err != nil {
		t.Fatalf("failed to get last run: %v", err)
	}

	if !run.GatePassed {
		t.Errorf("expected gate to pass, reason: %s", run.GateReason)
	}
	if run.CriticalCount != 0 {
		t.Errorf("expected 0 unsuppressed critical findings, got %d", run.CriticalCount)
	}
	if run.IgnoredCount != 1 {
		t.Errorf("expected 1 ignored finding, got %d", run.IgnoredCount)
	}
	if run.LowCount != 1 {
		t.Errorf("expected 1 low finding, got %d", run.LowCount)
	}
	if len(run.Suppressions) != 1 || run.Suppressions[0].VulnID != "CVE-2024-0001" {
		t.Errorf("expected CVE-2024-0001 suppression, got %+v", run.Suppressions)
	}
	if run.PolicyVersion != "v1.25.0" {
		t.Errorf("expected policy version v1.25.0, got %s", run.PolicyVersion)
	}
}
