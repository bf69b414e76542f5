package types

import (
	"reflect"
	"testing"
	"time"
)

func TestFindingConverter_ToFindingRecord(t *testing.T) {
	processedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	finding := Finding{
		ID:           "CVE-2024-0001",
		Severity:     "HIGH",
		Ecosystem:    "npm",
		PackageName:  "minimist",
		Version:      "1.2.0",
		FixedVersion: "1.2.6",
		Title:        "Prototype Pollution",
		PrimaryURL:   "https://example.com",
		From:         []string{"left-pad", "minimist"},
		Applicable:   true,
		Ignored:      true,
	}

	converter := NewFindingConverter()
	record := converter.ToFindingRecord(finding, "deps_web-app", "sha256:abc", processedAt)

	if record.VulnID != "CVE-2024-0001" || record.Severity != "HIGH" {
		t.Errorf("record = %+v", record)
	}
	if record.InstalledVersion != "1.2.0" || record.FixedVersion != "1.2.6" {
		t.Errorf("versions = %q, %q", record.InstalledVersion, record.FixedVersion)
	}
	if !reflect.DeepEqual(record.DepPath, finding.From) {
		t.Errorf("DepPath = %v", record.DepPath)
	}
	if !record.Ignored || record.Patched {
		t.Errorf("annotations = ignored %v, patched %v", record.Ignored, record.Patched)
	}
	if record.ReportName != "deps_web-app" || record.Fingerprint != "sha256:abc" {
		t.Errorf("run context = %q, %q", record.ReportName, record.Fingerprint)
	}
	if !record.ProcessedAt.Equal(processedAt) {
		t.Errorf("ProcessedAt = %v", record.ProcessedAt)
	}
}

func TestFindingConverter_ToFindingRecords(t *testing.T) {
	converter := NewFindingConverter()
	now := time.Now()

	records := converter.ToFindingRecords([]Finding{
		{ID: "a"}, {ID: "b"},
	}, "deps_web-app", "sha256:abc", now)

	if len(records) != 2 || records[0].VulnID != "a" || records[1].VulnID != "b" {
		t.Errorf("records = %+v", records)
	}

	if got := converter.ToFindingRecords(nil, "deps_web-app", "sha256:abc", now); len(got) != 0 {
		t.Errorf("empty input should give empty output, got %+v", got)
	}
}

func TestSuppressionConverter_ToSuppressionInfo(t *testing.T) {
	appliedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	expires := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	applied := AppliedIgnore{
		VulnID:    "CVE-2024-0001",
		Path:      []string{"left-pad", "minimist"},
		Reason:    "Not reachable",
		ExpiresAt: &expires,
		AppliedAt: appliedAt,
	}

	converter := NewSuppressionConverter()
	info := converter.ToSuppressionInfo(applied, "deps_web-app")

	if info.VulnID != applied.VulnID || info.Reason != applied.Reason {
		t.Errorf("info = %+v", info)
	}
	if info.ExpiresAt == nil || !info.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v", info.ExpiresAt)
	}
	if info.ReportName != "deps_web-app" {
		t.Errorf("ReportName = %q", info.ReportName)
	}

	// A rule without expiry stays without expiry.
	info = converter.ToSuppressionInfo(AppliedIgnore{VulnID: "x", AppliedAt: appliedAt}, "deps_api")
	if info.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", info.ExpiresAt)
	}
}

func TestSuppressed(t *testing.T) {
	tests := []struct {
		name    string
		finding Finding
		want    bool
	}{
		{"untouched", Finding{}, false},
		{"ignored", Finding{Ignored: true}, true},
		{"patched", Finding{Patched: true}, true},
		{"both", Finding{Ignored: true, Patched: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.finding.Suppressed(); got != tt.want {
				t.Errorf("Suppressed() = %v, want %v", got, tt.want)
			}
		})
	}
}
