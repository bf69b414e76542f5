package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cfarm/ccp-test/internal/gate"
	"github.com/cfarm/ccp-test/internal/observability"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/statestore"
	"github.com/cfarm/ccp-test/internal/types"
)

// Pipeline orchestrates the complete report processing workflow
type Pipeline struct {
	worker *ReportWorker
	logger *slog.Logger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(worker *ReportWorker, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		worker: worker,
		logger: logger,
	}
}

// Execute runs the complete workflow for a single report revision
func (p *Pipeline) Execute(ctx context.Context, task *queue.ReportTask) error {
	startTime := time.Now()

	p.logger.Info("starting report workflow",
		"task_id", task.ID,
		"report", task.ReportName,
		"is_reprocess", task.IsReprocess)

	if err := p.validateDependencies(); err != nil {
		return err
	}

	// Phase 1: Parse
	rep, parseDuration, err := p.parsePhase(task)
	if err != nil {
		return err
	}

	// Phase 2: Policy filtering
	doc, applyResult, err := p.policyPhase(task, rep)
	if err != nil {
		return err
	}

	// Phase 3: Gate evaluation
	decision, err := p.gatePhase(ctx, task, rep, applyResult)
	if err != nil {
		return err
	}

	// Phase 4: Write processed output
	outputPath, err := p.outputPhase(task, rep, doc, applyResult, decision, startTime)
	if err != nil {
		return err
	}

	// Phase 5: Persistence
	if err := p.persistencePhase(ctx, task, rep, doc, applyResult, decision, outputPath, startTime); err != nil {
		// Log error but don't fail - the processed report is already written
		p.logger.Error("failed to persist run results", "report", task.ReportName, "error", err)
	}

	p.logCompletion(task, startTime, parseDuration, applyResult, decision, outputPath)

	return nil
}

// validateDependencies ensures all required components are configured
func (p *Pipeline) validateDependencies() error {
	if p.worker.policyStore == nil {
		return fmt.Errorf("policy store is not configured")
	}
	if p.worker.gate == nil {
		return fmt.Errorf("gate is not configured")
	}
	if p.worker.stateStore == nil {
		return fmt.Errorf("state store is not configured")
	}
	if p.worker.outputDir == "" {
		return fmt.Errorf("output directory is not configured")
	}
	return nil
}

// parsePhase reads and parses the report file
func (p *Pipeline) parsePhase(task *queue.ReportTask) (*report.Report, time.Duration, error) {
	parseStart := time.Now()

	p.logger.Debug("parsing report", "report", task.ReportName, "path", task.ReportPath)
	rep, err := report.ParseFile(task.ReportPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse report: %w", err)
	}
	parseDuration := time.Since(parseStart)

	metrics := observability.GetMetrics()
	for _, f := range rep.Findings {
		metrics.FindingsSeen.WithLabelValues(f.Severity).Inc()
	}

	p.logger.Info("report parsed",
		"report", task.ReportName,
		"format", rep.Format,
		"project", rep.Project,
		"findings", len(rep.Findings),
		"duration", parseDuration)

	return rep, parseDuration, nil
}

// policyPhase reloads the policy if the file changed and filters findings
func (p *Pipeline) policyPhase(task *queue.ReportTask, rep *report.Report) (*policy.Document, policy.ApplyResult, error) {
	metrics := observability.GetMetrics()

	changed, err := p.worker.policyStore.ReloadIfChanged()
	if err != nil {
		// A broken policy edit must not stall processing; keep filtering
		// with the last good document.
		metrics.PolicyReloadErrors.Inc()
		p.logger.Error("policy reload failed, using previous document",
			"policy", p.worker.policyStore.Path(),
			"error", err)
	} else if changed {
		metrics.PolicyReloads.Inc()
		p.logger.Info("policy file reloaded", "policy", p.worker.policyStore.Path())
	}

	doc := p.worker.policyStore.Current()
	if doc == nil {
		return nil, policy.ApplyResult{}, fmt.Errorf("no policy document loaded")
	}

	p.logger.Debug("applying policy",
		"report", task.ReportName,
		"ignore_rules", len(doc.Ignore),
		"patch_rules", len(doc.Patch))

	applyResult := doc.Apply(rep.Findings, time.Now())

	metrics.FindingsIgnored.Add(float64(len(applyResult.Ignores)))
	metrics.FindingsPatched.Add(float64(len(applyResult.Patches)))
	metrics.ExpiredIgnores.Add(float64(applyResult.ExpiredSkipped))

	if applyResult.ExpiredSkipped > 0 {
		p.logger.Warn("expired ignore rules matched but were void",
			"report", task.ReportName,
			"expired_matches", applyResult.ExpiredSkipped)
	}

	p.logger.Info("policy applied",
		"report", task.ReportName,
		"ignored", len(applyResult.Ignores),
		"patched", len(applyResult.Patches),
		"expired_skipped", applyResult.ExpiredSkipped)

	return doc, applyResult, nil
}

// gatePhase evaluates the gate expression over the filtered findings
func (p *Pipeline) gatePhase(ctx context.Context, task *queue.ReportTask, rep *report.Report, applyResult policy.ApplyResult) (*gate.Decision, error) {
	p.logger.Debug("evaluating gate", "report", task.ReportName)
	decision, err := p.worker.gate.Evaluate(ctx, rep.Name, applyResult)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate gate: %w", err)
	}

	metrics := observability.GetMetrics()
	if decision.Passed {
		metrics.GatePassed.Inc()
	} else {
		metrics.GateFailed.Inc()
	}

	p.logger.Info("gate evaluation completed",
		"report", task.ReportName,
		"passed", decision.Passed,
		"reason", decision.Reason)

	return decision, nil
}

// outputPhase writes the filtered, annotated report to the output directory
func (p *Pipeline) outputPhase(task *queue.ReportTask, rep *report.Report, doc *policy.Document, applyResult policy.ApplyResult, decision *gate.Decision, startTime time.Time) (string, error) {
	findings := make([]report.ProcessedFinding, 0, len(applyResult.Findings))
	for _, f := range applyResult.Findings {
		findings = append(findings, report.NewProcessedFinding(f))
	}

	processed := &report.ProcessedReport{
		Report:        rep.Name,
		Format:        rep.Format,
		Project:       rep.Project,
		Fingerprint:   task.Fingerprint,
		PolicyVersion: doc.Version,
		ProcessedAt:   startTime.UTC(),
		GatePassed:    decision.Passed,
		GateReason:    decision.Reason,
		Counts:        report.CountFindings(applyResult.Findings),
		Findings:      findings,
	}

	outputPath, err := report.WriteProcessed(p.worker.outputDir, processed)
	if err != nil {
		return "", fmt.Errorf("failed to write processed report: %w", err)
	}

	p.logger.Info("processed report written",
		"report", task.ReportName,
		"output_path", outputPath)

	return outputPath, nil
}

// persistencePhase records the run to the state store
func (p *Pipeline) persistencePhase(ctx context.Context, task *queue.ReportTask, rep *report.Report, doc *policy.Document, applyResult policy.ApplyResult, decision *gate.Decision, outputPath string, startTime time.Time) error {
	record := buildRunRecord(task, rep, doc, applyResult, decision, outputPath, startTime)

	p.logger.Debug("recording run results", "report", task.ReportName)
	if err := p.worker.stateStore.RecordRun(ctx, record); err != nil {
		return err
	}

	p.logger.Info("run results recorded", "report", task.ReportName)

	p.checkGateFailures(ctx, task, decision)

	return nil
}

// checkGateFailures logs warnings and alerts for gate failures
func (p *Pipeline) checkGateFailures(ctx context.Context, task *queue.ReportTask, decision *gate.Decision) {
	if decision.Passed {
		return
	}

	p.logger.Warn("report failed gate evaluation",
		"report", task.ReportName,
		"fingerprint", task.Fingerprint,
		"critical", decision.CriticalCount,
		"ignored", decision.IgnoredCount,
		"reason", decision.Reason)

	// Alert if a reprocess of an unchanged report flips from pass to fail.
	// The usual cause is an ignore rule expiring between runs.
	if task.IsReprocess {
		lastRun, err := p.worker.stateStore.GetLastRun(ctx, task.Fingerprint)
		if err == nil && lastRun != nil && lastRun.GatePassed {
			p.logger.Error("ALERT: previously passing report now fails gate",
				"report", task.ReportName,
				"fingerprint", task.Fingerprint,
				"previous_run", lastRun.ProcessedAt,
				"critical", decision.CriticalCount,
				"reason", decision.Reason)
		}
	}
}

// logCompletion logs the final workflow completion
func (p *Pipeline) logCompletion(task *queue.ReportTask, startTime time.Time, parseDuration time.Duration, applyResult policy.ApplyResult, decision *gate.Decision, outputPath string) {
	duration := time.Since(startTime)

	metrics := observability.GetMetrics()
	metrics.ReportsProcessed.Inc()
	metrics.ProcessingDuration.Observe(duration.Seconds())

	p.logger.Info("report workflow completed",
		"task_id", task.ID,
		"report", task.ReportName,
		"total_duration", duration,
		"parse_duration", parseDuration,
		"ignored", len(applyResult.Ignores),
		"patched", len(applyResult.Patches),
		"gate_passed", decision.Passed,
		"output_path", outputPath)
}

// buildRunRecord constructs a RunRecord from the workflow results
func buildRunRecord(
	task *queue.ReportTask,
	rep *report.Report,
	doc *policy.Document,
	applyResult policy.ApplyResult,
	decision *gate.Decision,
	outputPath string,
	startTime time.Time,
) *statestore.RunRecord {
	processedAt := startTime.UTC()
	findingConverter := types.NewFindingConverter()

	return &statestore.RunRecord{
		Fingerprint:   task.Fingerprint,
		ReportName:    rep.Name,
		Format:        rep.Format,
		ReportPath:    task.ReportPath,
		ProcessedAt:   processedAt,
		CriticalCount: decision.CriticalCount,
		HighCount:     decision.HighCount,
		MediumCount:   decision.MediumCount,
		LowCount:      decision.LowCount,
		IgnoredCount:  decision.IgnoredCount,
		PatchedCount:  decision.PatchedCount,
		GatePassed:    decision.Passed,
		GateReason:    decision.Reason,
		PolicyVersion: doc.Version,
		OutputPath:    outputPath,
		Findings:      findingConverter.ToFindingRecords(applyResult.Findings, rep.Name, task.Fingerprint, processedAt),
		Suppressions:  applyResult.Ignores,
		Patches:       applyResult.Patches,
	}
}
