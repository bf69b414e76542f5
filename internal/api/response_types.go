package api

import (
	"time"

	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/statestore"
	"github.com/cfarm/ccp-test/internal/types"
)

// formatTimestamp converts a time to ISO8601 (RFC 3339) format.
// The output is always in UTC timezone and ends with "Z".
//
// Example:
//   formatTimestamp(time.Unix(1732896000, 0)) returns "2024-11-29T15:30:00Z"
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatNullableTimestamp converts a nullable time to ISO8601 or nil.
// If the input is nil, returns nil. Otherwise, converts to ISO8601 format.
func formatNullableTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTimestamp(*t)
	return &formatted
}

// FindingRecordResponse represents a finding for API responses.
// Timestamps are formatted as ISO8601 strings.
type FindingRecordResponse struct {
	VulnID           string   `json:"vuln_id"`
	Severity         string   `json:"severity"`
	Ecosystem        string   `json:"ecosystem"`
	PackageName      string   `json:"package_name"`
	InstalledVersion string   `json:"installed_version"`
	FixedVersion     string   `json:"fixed_version"`
	Title            string   `json:"title"`
	PrimaryURL       string   `json:"primary_url"`
	DepPath          []string `json:"dep_path"`
	Applicable       bool     `json:"applicable"`
	Ignored          bool     `json:"ignored"`
	Patched          bool     `json:"patched"`
	Report           string   `json:"report"`
	Fingerprint      string   `json:"fingerprint"`
	ProcessedAt      string   `json:"processed_at"` // ISO8601
}

// AppliedIgnoreResponse represents an applied ignore rule for API responses.
// Timestamps are formatted as ISO8601 strings.
type AppliedIgnoreResponse struct {
	VulnID    string   `json:"vuln_id"`
	Path      []string `json:"path"`
	Reason    string   `json:"reason"`
	ExpiresAt *string  `json:"expires_at"` // ISO8601 or null
	AppliedAt string   `json:"applied_at"` // ISO8601
}

// AppliedPatchResponse represents an applied patch record for API responses.
// Timestamps are formatted as ISO8601 strings.
type AppliedPatchResponse struct {
	VulnID    string   `json:"vuln_id"`
	Path      []string `json:"path"`
	PatchedAt string   `json:"patched_at"` // ISO8601
	AppliedAt string   `json:"applied_at"` // ISO8601
}

// RunRecordResponse represents a run record for API responses.
// Timestamps are formatted as ISO8601 strings.
type RunRecordResponse struct {
	Fingerprint   string                  `json:"fingerprint"`
	Report        string                  `json:"report"`
	Format        string                  `json:"format"`
	ReportPath    string                  `json:"report_path"`
	ProcessedAt   string                  `json:"processed_at"` // ISO8601
	CriticalCount int                     `json:"critical_count"`
	HighCount     int                     `json:"high_count"`
	MediumCount   int                     `json:"medium_count"`
	LowCount      int                     `json:"low_count"`
	IgnoredCount  int                     `json:"ignored_count"`
	PatchedCount  int                     `json:"patched_count"`
	GatePassed    bool                    `json:"gate_passed"`
	GateReason    string                  `json:"gate_reason"`
	PolicyVersion string                  `json:"policy_version"`
	OutputPath    string                  `json:"output_path"`
	Findings      []FindingRecordResponse `json:"findings"`
	Suppressions  []AppliedIgnoreResponse `json:"suppressions"`
	Patches       []AppliedPatchResponse  `json:"patches"`
	ErrorMessage  string                  `json:"error_message"`
	CreatedAt     string                  `json:"created_at"` // ISO8601
}

// SuppressionInfoResponse represents an applied suppression for API responses.
// Timestamps are formatted as ISO8601 strings.
type SuppressionInfoResponse struct {
	VulnID    string   `json:"vuln_id"`
	Path      []string `json:"path"`
	Reason    string   `json:"reason"`
	ExpiresAt *string  `json:"expires_at"` // ISO8601 or null
	AppliedAt string   `json:"applied_at"` // ISO8601
	Report    string   `json:"report"`
}

// toFindingRecordResponse converts an internal FindingRecord to a response DTO.
func toFindingRecordResponse(record *types.FindingRecord) FindingRecordResponse {
	return FindingRecordResponse{
		VulnID:           record.VulnID,
		Severity:         record.Severity,
		Ecosystem:        record.Ecosystem,
		PackageName:      record.PackageName,
		InstalledVersion: record.InstalledVersion,
		FixedVersion:     record.FixedVersion,
		Title:            record.Title,
		PrimaryURL:       record.PrimaryURL,
		DepPath:          record.DepPath,
		Applicable:       record.Applicable,
		Ignored:          record.Ignored,
		Patched:          record.Patched,
		Report:           record.ReportName,
		Fingerprint:      record.Fingerprint,
		ProcessedAt:      formatTimestamp(record.ProcessedAt),
	}
}

// toAppliedIgnoreResponse converts an internal AppliedIgnore to a response DTO.
func toAppliedIgnoreResponse(ignore types.AppliedIgnore) AppliedIgnoreResponse {
	return AppliedIgnoreResponse{
		VulnID:    ignore.VulnID,
		Path:      ignore.Path,
		Reason:    ignore.Reason,
		ExpiresAt: formatNullableTimestamp(ignore.ExpiresAt),
		AppliedAt: formatTimestamp(ignore.AppliedAt),
	}
}

// toAppliedPatchResponse converts an internal AppliedPatch to a response DTO.
func toAppliedPatchResponse(patch types.AppliedPatch) AppliedPatchResponse {
	return AppliedPatchResponse{
		VulnID:    patch.VulnID,
		Path:      patch.Path,
		PatchedAt: formatTimestamp(patch.PatchedAt),
		AppliedAt: formatTimestamp(patch.AppliedAt),
	}
}

// toRunRecordResponse converts an internal RunRecord to a response DTO.
func toRunRecordResponse(record *statestore.RunRecord) *RunRecordResponse {
	if record == nil {
		return nil
	}

	// Convert findings
	findings := make([]FindingRecordResponse, len(record.Findings))
	for i := range record.Findings {
		findings[i] = toFindingRecordResponse(&record.Findings[i])
	}

	// Convert applied suppressions
	suppressions := make([]AppliedIgnoreResponse, len(record.Suppressions))
	for i, ignore := range record.Suppressions {
		suppressions[i] = toAppliedIgnoreResponse(ignore)
	}

	// Convert applied patches
	patches := make([]AppliedPatchResponse, len(record.Patches))
	for i, patch := range record.Patches {
		patches[i] = toAppliedPatchResponse(patch)
	}

	return &RunRecordResponse{
		Fingerprint:   record.Fingerprint,
		Report:        record.ReportName,
		Format:        record.Format,
		ReportPath:    record.ReportPath,
		ProcessedAt:   formatTimestamp(record.ProcessedAt),
		CriticalCount: record.CriticalCount,
		HighCount:     record.HighCount,
		MediumCount:   record.MediumCount,
		LowCount:      record.LowCount,
		IgnoredCount:  record.IgnoredCount,
		PatchedCount:  record.PatchedCount,
		GatePassed:    record.GatePassed,
		GateReason:    record.GateReason,
		PolicyVersion: record.PolicyVersion,
		OutputPath:    record.OutputPath,
		Findings:      findings,
		Suppressions:  suppressions,
		Patches:       patches,
		ErrorMessage:  record.ErrorMessage,
		CreatedAt:     formatTimestamp(record.CreatedAt),
	}
}

// toSuppressionInfoResponse converts an internal SuppressionInfo to a response DTO.
func toSuppressionInfoResponse(info *types.SuppressionInfo) SuppressionInfoResponse {
	return SuppressionInfoResponse{
		VulnID:    info.VulnID,
		Path:      info.Path,
		Reason:    info.Reason,
		ExpiresAt: formatNullableTimestamp(info.ExpiresAt),
		AppliedAt: formatTimestamp(info.AppliedAt),
		Report:    info.ReportName,
	}
}

// PolicyRuleResponse represents one rule of a policy entry for API responses.
// The expires and patched values are returned exactly as authored in the
// policy file.
type PolicyRuleResponse struct {
	Path    string  `json:"path"`
	Reason  string  `json:"reason,omitempty"`
	Expires *string `json:"expires,omitempty"`
	Patched *string `json:"patched,omitempty"`
}

// PolicyEntryResponse represents all rules for one advisory for API responses.
type PolicyEntryResponse struct {
	ID    string               `json:"id"`
	Rules []PolicyRuleResponse `json:"rules"`
}

// PolicyResponse represents the currently loaded policy document for API responses.
type PolicyResponse struct {
	Version  string                `json:"version"`
	Path     string                `json:"path"`
	LoadedAt string                `json:"loaded_at"` // ISO8601
	Ignore   []PolicyEntryResponse `json:"ignore"`
	Patch    []PolicyEntryResponse `json:"patch"`
}

// toPolicyEntryResponses converts a policy section to response DTOs.
func toPolicyEntryResponses(section policy.Section) []PolicyEntryResponse {
	entries := make([]PolicyEntryResponse, len(section))
	for i, entry := range section {
		rules := make([]PolicyRuleResponse, len(entry.Rules))
		for j, rule := range entry.Rules {
			resp := PolicyRuleResponse{
				Path:   policy.JoinPath(rule.Path),
				Reason: rule.Reason(),
			}
			if expires, ok := rule.Expires(); ok {
				resp.Expires = &expires
			}
			if patched, ok := rule.Patched(); ok {
				resp.Patched = &patched
			}
			rules[j] = resp
		}
		entries[i] = PolicyEntryResponse{
			ID:    entry.ID,
			Rules: rules,
		}
	}
	return entries
}

// toPolicyResponse converts a policy document to a response DTO.
func toPolicyResponse(doc *policy.Document, path string, loadedAt time.Time) *PolicyResponse {
	return &PolicyResponse{
		Version:  doc.Version,
		Path:     path,
		LoadedAt: formatTimestamp(loadedAt),
		Ignore:   toPolicyEntryResponses(doc.Ignore),
		Patch:    toPolicyEntryResponses(doc.Patch),
	}
}

// Note: TriggerRunResponse (defined in handlers.go) does not contain timestamp
// fields and therefore does not require a response DTO. It only contains
// integer and string fields: Queued (int), TaskID (string).
