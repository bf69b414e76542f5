package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/cfarm/ccp-test/internal/types"
)

func TestApply(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(30 * 24 * time.Hour)
	patchedAt := time.Date(2019, 5, 31, 9, 30, 56, 0, time.UTC)

	doc := NewDocument("v1.25.0")
	doc.AddIgnore("CVE-2024-0001", []string{"left-pad", "minimist"}, "Not reachable", &future)
	doc.AddIgnore("CVE-2024-0002", []string{"*"}, "lapsed acceptance", &past)
	doc.AddIgnore("CVE-2024-0003", []string{"express", "qs"}, "ignored but patched", &future)
	doc.AddPatch("CVE-2024-0003", []string{"express", "qs"}, patchedAt)

	findings := []types.Finding{
		{ID: "CVE-2024-0001", Severity: "HIGH", From: []string{"left-pad", "minimist"}, Applicable: true},
		{ID: "CVE-2024-0002", Severity: "CRITICAL", From: []string{"anything"}, Applicable: true},
		{ID: "CVE-2024-0003", Severity: "MEDIUM", From: []string{"express", "qs"}, Applicable: true},
		{ID: "CVE-2024-0004", Severity: "LOW", From: []string{"untouched"}, Applicable: true},
	}

	result := doc.Apply(findings, now)

	if len(result.Findings) != 4 {
		t.Fatalf("findings = %d, want 4", len(result.Findings))
	}

	ignored := result.Findings[0]
	if !ignored.Ignored || ignored.IgnoreReason != "Not reachable" {
		t.Errorf("finding 0 = %+v, want ignored", ignored)
	}
	if ignored.IgnoreExpires == nil || !ignored.IgnoreExpires.Equal(future) {
		t.Errorf("finding 0 expires = %v, want %v", ignored.IgnoreExpires, future)
	}

	// The only matching rule expired, so the finding stays unsuppressed.
	if result.Findings[1].Ignored {
		t.Error("finding 1 should not be suppressed by an expired rule")
	}
	if result.ExpiredSkipped != 1 {
		t.Errorf("ExpiredSkipped = %d, want 1", result.ExpiredSkipped)
	}

	// Patch wins over ignore: the finding is patched, never counted as ignored.
	patched := result.Findings[2]
	if !patched.Patched {
		t.Error("finding 2 should be patched")
	}
	if patched.Ignored {
		t.Error("finding 2 must not also be marked ignored")
	}
	if patched.PatchedAt == nil || !patched.PatchedAt.Equal(patchedAt) {
		t.Errorf("finding 2 patchedAt = %v, want %v", patched.PatchedAt, patchedAt)
	}

	if result.Findings[3].Suppressed() {
		t.Error("finding 3 should be untouched")
	}

	if len(result.Ignores) != 1 {
		t.Fatalf("applied ignores = %d, want 1", len(result.Ignores))
	}
	if result.Ignores[0].VulnID != "CVE-2024-0001" || !result.Ignores[0].AppliedAt.Equal(now) {
		t.Errorf("applied ignore = %+v", result.Ignores[0])
	}
	if len(result.Patches) != 1 {
		t.Fatalf("applied patches = %d, want 1", len(result.Patches))
	}
	if result.Patches[0].VulnID != "CVE-2024-0003" || !result.Patches[0].PatchedAt.Equal(patchedAt) {
		t.Errorf("applied patch = %+v", result.Patches[0])
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.Add(30 * 24 * time.Hour)

	doc := NewDocument("v1.25.0")
	doc.AddIgnore("CVE-2024-0001", []string{"*"}, "accepted", &future)

	findings := []types.Finding{
		{ID: "CVE-2024-0001", From: []string{"a"}, Applicable: true},
	}

	result := doc.Apply(findings, now)

	if findings[0].Ignored {
		t.Error("input finding mutated")
	}
	if !result.Findings[0].Ignored {
		t.Error("output finding not annotated")
	}
}

func TestGenerateStub(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	findings := []types.Finding{
		{ID: "CVE-2024-1111", Severity: "HIGH", From: []string{"express", "qs"}, Applicable: true},
		{ID: "CVE-2024-0001", Severity: "MEDIUM", From: []string{"a"}, Applicable: true, Ignored: true},
		{ID: "CVE-2024-2222", Severity: "LOW", From: []string{"b"}, Applicable: false},
		{ID: "CVE-2024-3333", Severity: "CRITICAL", From: nil, Applicable: true},
	}

	stub := GenerateStub("v1.25.0", findings, now)

	if stub.Version != "v1.25.0" {
		t.Errorf("version = %q", stub.Version)
	}

	ids := stub.Ignore.IDs()
	if len(ids) != 2 {
		t.Fatalf("stub entries = %v, want CVE-2024-1111 and CVE-2024-3333", ids)
	}

	entry := stub.Ignore.Get("CVE-2024-1111")
	if entry == nil || len(entry.Rules) != 1 {
		t.Fatal("expected one rule for CVE-2024-1111")
	}
	rule := entry.Rules[0]
	if JoinPath(rule.Path) != "express > qs" {
		t.Errorf("path = %q", JoinPath(rule.Path))
	}
	if rule.Reason() != "None given" {
		t.Errorf("reason = %q, want placeholder", rule.Reason())
	}
	expiresAt, ok, err := rule.ExpiresAt()
	if !ok || err != nil {
		t.Fatalf("ExpiresAt() = %v, %v", ok, err)
	}
	if want := now.Add(30 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", expiresAt, want)
	}

	// Findings without a dependency chain get the wildcard path.
	noChain := stub.Ignore.Get("CVE-2024-3333")
	if noChain == nil || len(noChain.Rules) != 1 {
		t.Fatal("expected one rule for CVE-2024-3333")
	}
	if len(noChain.Rules[0].Path) != 1 || noChain.Rules[0].Path[0] != Wildcard {
		t.Errorf("path = %v, want wildcard", noChain.Rules[0].Path)
	}

	if stub.Ignore.Get("CVE-2024-0001") != nil {
		t.Error("already-suppressed finding must not get a stub entry")
	}
	if stub.Ignore.Get("CVE-2024-2222") != nil {
		t.Error("inapplicable finding must not get a stub entry")
	}

	out, err := stub.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	for _, want := range []string{"version: v1.25.0", "CVE-2024-1111", "None given", "express > qs"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("stub output missing %q:\n%s", want, out)
		}
	}
}
