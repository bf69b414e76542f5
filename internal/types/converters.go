package types

import (
	"time"
)

// FindingConverter provides conversion methods for Finding types.
type FindingConverter struct{}

// NewFindingConverter creates a new FindingConverter instance.
func NewFindingConverter() *FindingConverter {
	return &FindingConverter{}
}

// ToFindingRecord converts a Finding to a FindingRecord with run context.
func (c *FindingConverter) ToFindingRecord(
	finding Finding,
	reportName, fingerprint string,
	processedAt time.Time,
) FindingRecord {
	return FindingRecord{
		VulnID:           finding.ID,
		Severity:         finding.Severity,
		Ecosystem:        finding.Ecosystem,
		PackageName:      finding.PackageName,
		InstalledVersion: finding.Version,
		FixedVersion:     finding.FixedVersion,
		Title:            finding.Title,
		PrimaryURL:       finding.PrimaryURL,
		DepPath:          finding.From,
		Applicable:       finding.Applicable,
		Ignored:          finding.Ignored,
		Patched:          finding.Patched,
		ReportName:       reportName,
		Fingerprint:      fingerprint,
		ProcessedAt:      processedAt,
	}
}

// ToFindingRecords converts a slice of Findings to FindingRecords.
func (c *FindingConverter) ToFindingRecords(
	findings []Finding,
	reportName, fingerprint string,
	processedAt time.Time,
) []FindingRecord {
	records := make([]FindingRecord, len(findings))
	for i, finding := range findings {
		records[i] = c.ToFindingRecord(finding, reportName, fingerprint, processedAt)
	}
	return records
}

// SuppressionConverter provides conversion methods for AppliedIgnore types.
type SuppressionConverter struct{}

// NewSuppressionConverter creates a new SuppressionConverter instance.
func NewSuppressionConverter() *SuppressionConverter {
	return &SuppressionConverter{}
}

// ToSuppressionInfo converts an AppliedIgnore to SuppressionInfo with report context.
func (c *SuppressionConverter) ToSuppressionInfo(
	applied AppliedIgnore,
	reportName string,
) SuppressionInfo {
	return SuppressionInfo{
		VulnID:     applied.VulnID,
		Path:       applied.Path,
		Reason:     applied.Reason,
		ExpiresAt:  applied.ExpiresAt,
		AppliedAt:  applied.AppliedAt,
		ReportName: reportName,
	}
}

// ToSuppressionInfos converts a slice of AppliedIgnores to SuppressionInfos.
func (c *SuppressionConverter) ToSuppressionInfos(
	applied []AppliedIgnore,
	reportName string,
) []SuppressionInfo {
	infos := make([]SuppressionInfo, len(applied))
	for i, a := range applied {
		infos[i] = c.ToSuppressionInfo(a, reportName)
	}
	return infos
}
