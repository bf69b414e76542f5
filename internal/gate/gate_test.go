package gate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cfarm/ccp-test/internal/observability"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/types"
)

func newTestEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	engine, err := NewEngine(observability.NewLogger("error"), config, nil)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

func TestNewEngine_InvalidExpression(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{
			name:       "syntax error",
			expression: "criticalCount ==",
		},
		{
			name:       "unknown variable",
			expression: "bogusCount == 0",
		},
		{
			name:       "non-boolean result",
			expression: "criticalCount + highCount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(observability.NewLogger("error"), Config{Expression: tt.expression}, nil)
			if err == nil {
				t.Errorf("NewEngine(%q) expected error, got nil", tt.expression)
			}
		})
	}
}

func TestEvaluate_DefaultExpression(t *testing.T) {
	tests := []struct {
		name       string
		findings   []types.Finding
		wantPassed bool
	}{
		{
			name:       "no findings",
			findings:   nil,
			wantPassed: true,
		},
		{
			name: "only lower severities",
			findings: []types.Finding{
				{ID: "a", Severity: "HIGH", Applicable: true},
				{ID: "b", Severity: "MEDIUM", Applicable: true},
			},
			wantPassed: true,
		},
		{
			name: "unsuppressed critical",
			findings: []types.Finding{
				{ID: "a", Severity: "CRITICAL", Applicable: true},
			},
			wantPassed: false,
		},
		{
			name: "ignored critical does not fail the gate",
			findings: []types.Finding{
				{ID: "a", Severity: "CRITICAL", Applicable: true, Ignored: true},
			},
			wantPassed: true,
		},
		{
			name: "patched critical does not fail the gate",
			findings: []types.Finding{
				{ID: "a", Severity: "CRITICAL", Applicable: true, Patched: true},
			},
			wantPassed: true,
		},
		{
			name: "inapplicable critical does not fail the gate",
			findings: []types.Finding{
				{ID: "a", Severity: "CRITICAL", Applicable: false},
			},
			wantPassed: true,
		},
	}

	engine := newTestEngine(t, Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := engine.Evaluate(context.Background(), "deps_web-app",
				policy.ApplyResult{Findings: tt.findings})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if decision.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (reason: %s)", decision.Passed, tt.wantPassed, decision.Reason)
			}
		})
	}
}

func TestEvaluate_CustomExpressions(t *testing.T) {
	findings := []types.Finding{
		{ID: "a", Severity: "CRITICAL", Applicable: true},
		{ID: "b", Severity: "HIGH", Applicable: true},
		{ID: "c", Severity: "HIGH", Applicable: true},
		{ID: "d", Severity: "HIGH", Applicable: true, Ignored: true},
		{ID: "e", Severity: "LOW", Applicable: true, Patched: true},
	}

	tests := []struct {
		name       string
		expression string
		wantPassed bool
	}{
		{
			name:       "severity counters",
			expression: "criticalCount <= 1 && highCount <= 2",
			wantPassed: true,
		},
		{
			name:       "strict high limit",
			expression: "highCount == 0",
			wantPassed: false,
		},
		{
			name:       "suppression counters",
			expression: "ignoredCount == 1 && patchedCount == 1",
			wantPassed: true,
		},
		{
			name:       "report name available",
			expression: `reportName.startsWith("deps_")`,
			wantPassed: true,
		},
		{
			name:       "findings list queries",
			expression: `findings.exists(f, f.id == "a" && f.severity == "CRITICAL")`,
			wantPassed: true,
		},
		{
			name:       "no unsuppressed critical in findings list",
			expression: `!findings.exists(f, f.severity == "CRITICAL" && !f.ignored && !f.patched)`,
			wantPassed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, Config{Expression: tt.expression})
			decision, err := engine.Evaluate(context.Background(), "deps_web-app",
				policy.ApplyResult{Findings: findings})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if decision.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", decision.Passed, tt.wantPassed)
			}
		})
	}
}

func TestEvaluate_DecisionCounts(t *testing.T) {
	findings := []types.Finding{
		{ID: "a", Severity: "CRITICAL", Applicable: true},
		{ID: "b", Severity: "HIGH", Applicable: true},
		{ID: "c", Severity: "MEDIUM", Applicable: true},
		{ID: "d", Severity: "LOW", Applicable: true},
		{ID: "e", Severity: "HIGH", Applicable: true, Ignored: true},
		{ID: "f", Severity: "HIGH", Applicable: true, Patched: true},
	}

	engine := newTestEngine(t, Config{Expression: "true"})
	decision, err := engine.Evaluate(context.Background(), "deps_web-app",
		policy.ApplyResult{Findings: findings})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if decision.CriticalCount != 1 || decision.HighCount != 1 ||
		decision.MediumCount != 1 || decision.LowCount != 1 {
		t.Errorf("severity counts = %d/%d/%d/%d",
			decision.CriticalCount, decision.HighCount, decision.MediumCount, decision.LowCount)
	}
	if decision.IgnoredCount != 1 || decision.PatchedCount != 1 {
		t.Errorf("suppression counts = %d/%d", decision.IgnoredCount, decision.PatchedCount)
	}
	if len(decision.SuppressedVulnIDs) != 2 {
		t.Errorf("SuppressedVulnIDs = %v", decision.SuppressedVulnIDs)
	}
}

func TestEvaluate_FailureMessage(t *testing.T) {
	findings := []types.Finding{
		{ID: "a", Severity: "CRITICAL", Applicable: true},
	}

	engine := newTestEngine(t, Config{
		Expression:     "criticalCount == 0",
		FailureMessage: "no critical vulnerabilities may ship",
	})
	decision, err := engine.Evaluate(context.Background(), "deps_web-app",
		policy.ApplyResult{Findings: findings})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if decision.Passed {
		t.Fatal("gate should fail")
	}
	if decision.Reason != "no critical vulnerabilities may ship" {
		t.Errorf("Reason = %q", decision.Reason)
	}

	// Without a configured message the reason carries the count summary.
	engine = newTestEngine(t, Config{Expression: "criticalCount == 0"})
	decision, err = engine.Evaluate(context.Background(), "deps_web-app",
		policy.ApplyResult{Findings: findings})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !strings.Contains(decision.Reason, "critical=1") {
		t.Errorf("Reason = %q, want count summary", decision.Reason)
	}
}

func TestEvaluate_ExpiringIgnoreWarnings(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".snyk")

	soon := time.Now().Add(3 * 24 * time.Hour).UTC().Format("2006-01-02T15:04:05.000Z")
	content := "version: v1.25.0\nignore:\n  CVE-2024-0001:\n    - 'left-pad > minimist':\n        reason: lapsing\n        expires: '" + soon + "'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	store := policy.NewStore(path, observability.NewLogger("error"))
	if err := store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	engine, err := NewEngine(observability.NewLogger("error"), Config{}, store)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	decision, err := engine.Evaluate(context.Background(), "deps_web-app", policy.ApplyResult{})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(decision.ExpiringIgnores) != 1 {
		t.Fatalf("ExpiringIgnores = %+v, want 1", decision.ExpiringIgnores)
	}
	if decision.ExpiringIgnores[0].VulnID != "CVE-2024-0001" {
		t.Errorf("expiring vuln = %q", decision.ExpiringIgnores[0].VulnID)
	}
}

func TestEvaluate_CancelledContext(t *testing.T) {
	engine := newTestEngine(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Evaluate(ctx, "deps_web-app", policy.ApplyResult{}); err == nil {
		t.Error("Evaluate() expected error for cancelled context")
	}
}
