package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/types"
)

// Gate defines the interface for deciding whether a processed report passes.
type Gate interface {
	// Evaluate decides if a report's filtered findings pass the gate.
	Evaluate(ctx context.Context, reportName string, result policy.ApplyResult) (*Decision, error)
}

// Config defines a CEL-based gate configuration.
type Config struct {
	// Expression is the CEL expression that must evaluate to true for the
	// gate to pass. Available variables:
	//   - findings: list of findings with fields:
	//       id, severity, packageName, version, fixedVersion, from,
	//       applicable, ignored, ignoreReason, patched
	//   - reportName: string name of the report
	//   - criticalCount: applicable unsuppressed critical findings
	//   - highCount, mediumCount, lowCount: same per severity
	//   - ignoredCount: findings suppressed by active ignore rules
	//   - patchedCount: findings covered by patch records
	Expression string `yaml:"expression" json:"expression"`

	// FailureMessage is returned when the gate fails (optional).
	FailureMessage string `yaml:"failureMessage" json:"failureMessage"`
}

// Decision represents the result of gate evaluation.
type Decision struct {
	Passed            bool
	Reason            string
	CriticalCount     int
	HighCount         int
	MediumCount       int
	LowCount          int
	IgnoredCount      int
	PatchedCount      int
	SuppressedVulnIDs []string
	ExpiringIgnores   []policy.ExpiringIgnore
}

// Engine implements the Gate interface using CEL expressions.
type Engine struct {
	logger              *slog.Logger
	expiryWarningWindow time.Duration
	config              Config
	policyStore         *policy.Store
	celProgram          cel.Program
}

// NewEngine creates a gate engine with a CEL-based pass/fail expression.
// The policy store is consulted for expiring-suppression warnings.
func NewEngine(logger *slog.Logger, config Config, policyStore *policy.Store) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Default gate: no critical findings survive filtering.
	if config.Expression == "" {
		config.Expression = `criticalCount == 0`
		config.FailureMessage = "critical findings remain after policy filtering"
	}

	env, err := cel.NewEnv(
		cel.Variable("findings", cel.ListType(cel.MapType(cel.StringType, cel.AnyType))),
		cel.Variable("reportName", cel.StringType),
		cel.Variable("criticalCount", cel.IntType),
		cel.Variable("highCount", cel.IntType),
		cel.Variable("mediumCount", cel.IntType),
		cel.Variable("lowCount", cel.IntType),
		cel.Variable("ignoredCount", cel.IntType),
		cel.Variable("patchedCount", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile gate expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:              logger,
		expiryWarningWindow: 7 * 24 * time.Hour,
		config:              config,
		policyStore:         policyStore,
		celProgram:          program,
	}, nil
}

// Evaluate decides whether filtered findings pass the gate expression.
func (e *Engine) Evaluate(ctx context.Context, reportName string, result policy.ApplyResult) (*Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decision := &Decision{
		SuppressedVulnIDs: make([]string, 0),
		ExpiringIgnores:   make([]policy.ExpiringIgnore, 0),
	}

	counts := report.CountFindings(result.Findings)
	decision.CriticalCount = counts.Critical
	decision.HighCount = counts.High
	decision.MediumCount = counts.Medium
	decision.LowCount = counts.Low
	decision.IgnoredCount = counts.Ignored
	decision.PatchedCount = counts.Patched

	celFindings := make([]map[string]interface{}, 0, len(result.Findings))
	var failing []types.Finding
	for _, f := range result.Findings {
		celFindings = append(celFindings, map[string]interface{}{
			"id":           f.ID,
			"severity":     f.Severity,
			"packageName":  f.PackageName,
			"version":      f.Version,
			"fixedVersion": f.FixedVersion,
			"from":         f.From,
			"applicable":   f.Applicable,
			"ignored":      f.Ignored,
			"ignoreReason": f.IgnoreReason,
			"patched":      f.Patched,
		})

		if f.Suppressed() {
			decision.SuppressedVulnIDs = append(decision.SuppressedVulnIDs, f.ID)
			e.logger.Info("finding suppressed",
				"vuln_id", f.ID,
				"severity", f.Severity,
				"package", f.PackageName,
				"patched", f.Patched,
				"report", reportName)
		} else if f.Applicable && f.Severity == "CRITICAL" {
			failing = append(failing, f)
		}
	}

	if doc := e.currentPolicy(); doc != nil {
		decision.ExpiringIgnores = doc.Expiring(e.expiryWarningWindow, time.Now())
		for _, exp := range decision.ExpiringIgnores {
			e.logger.Warn("suppression expiring soon",
				"vuln_id", exp.VulnID,
				"path", policy.JoinPath(exp.Path),
				"reason", exp.Reason,
				"expires_at", exp.ExpiresAt.Format(time.RFC3339),
				"days_until_expiry", exp.DaysUntil)
		}
	}

	out, _, err := e.celProgram.Eval(map[string]interface{}{
		"findings":      celFindings,
		"reportName":    reportName,
		"criticalCount": counts.Critical,
		"highCount":     counts.High,
		"mediumCount":   counts.Medium,
		"lowCount":      counts.Low,
		"ignoredCount":  counts.Ignored,
		"patchedCount":  counts.Patched,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate gate: %w", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("gate expression did not return a boolean: %v", out.Value())
	}
	decision.Passed = passed

	summary := fmt.Sprintf("critical=%d, high=%d, medium=%d, low=%d (ignored=%d, patched=%d)",
		counts.Critical, counts.High, counts.Medium, counts.Low, counts.Ignored, counts.Patched)

	if passed {
		decision.Reason = "gate passed: " + summary
		e.logger.Info("gate evaluation passed",
			"report", reportName,
			"critical", counts.Critical,
			"high", counts.High,
			"medium", counts.Medium,
			"low", counts.Low,
			"ignored", counts.Ignored,
			"patched", counts.Patched)
		return decision, nil
	}

	if e.config.FailureMessage != "" {
		decision.Reason = e.config.FailureMessage
	} else {
		decision.Reason = "gate failed: " + summary
	}

	e.logger.Warn("gate evaluation failed",
		"report", reportName,
		"critical", counts.Critical,
		"high", counts.High,
		"medium", counts.Medium,
		"low", counts.Low,
		"ignored", counts.Ignored,
		"patched", counts.Patched,
		"expression", e.config.Expression)

	for _, f := range failing {
		e.logger.Warn("finding details",
			"vuln_id", f.ID,
			"severity", f.Severity,
			"package", f.PackageName,
			"installed_version", f.Version,
			"fixed_version", f.FixedVersion,
			"dep_path", policy.JoinPath(f.From),
			"report", reportName)
	}

	return decision, nil
}

// SetExpiryWarningWindow sets the duration before expiry to trigger warnings.
func (e *Engine) SetExpiryWarningWindow(duration time.Duration) {
	e.expiryWarningWindow = duration
}

func (e *Engine) currentPolicy() *policy.Document {
	if e.policyStore == nil {
		return nil
	}
	return e.policyStore.Current()
}
