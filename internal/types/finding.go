package types

import "time"

// Finding represents the canonical dependency-vulnerability finding type.
// This is the single source of truth for finding data structures across
// report parsers, the policy filter, the gate, and the state store.
type Finding struct {
	ID              string   // advisory identifier, e.g. "npm:ms:20170412" or "CVE-2024-1234"
	Severity        string   // CRITICAL, HIGH, MEDIUM, LOW
	Ecosystem       string   // npm, pypi, maven, ...
	PackageName     string
	Version         string   // installed version
	VulnerableRange string   // semver constraint describing affected versions
	FixedVersion    string
	Title           string
	Description     string
	PrimaryURL      string
	From            []string // dependency chain from project root to the vulnerable package

	// Applicable reports whether the installed version actually falls inside
	// the advisory's vulnerable range. Findings with an unparseable or empty
	// range stay applicable.
	Applicable bool

	// Policy annotations, set by the policy filter.
	Ignored       bool
	IgnoreReason  string
	IgnoreExpires *time.Time // nil when the suppressing rule has no expiry
	Patched       bool
	PatchedAt     *time.Time
}

// Suppressed reports whether the finding is removed from gate consideration,
// either by an active ignore rule or an applied patch record.
func (f *Finding) Suppressed() bool {
	return f.Ignored || f.Patched
}

// AppliedIgnore records that an ignore rule suppressed a finding during a run.
// Used by the state store for the audit trail.
type AppliedIgnore struct {
	VulnID    string
	Path      []string
	Reason    string
	ExpiresAt *time.Time // nil means no expiry
	AppliedAt time.Time
}

// AppliedPatch records that a patch record covered a finding during a run.
type AppliedPatch struct {
	VulnID    string
	Path      []string
	PatchedAt time.Time
	AppliedAt time.Time
}

// FindingRecord extends Finding with run context for storage.
// Note: This uses explicit fields instead of embedding to match statestore naming conventions.
type FindingRecord struct {
	VulnID           string
	Severity         string
	Ecosystem        string
	PackageName      string
	InstalledVersion string
	FixedVersion     string
	Title            string
	PrimaryURL       string
	DepPath          []string
	Applicable       bool
	Ignored          bool
	Patched          bool
	// Run information
	ReportName  string
	Fingerprint string
	ProcessedAt time.Time
}

// SuppressionInfo extends AppliedIgnore with report context for queries.
// Each suppression appears once per report it was applied to.
type SuppressionInfo struct {
	VulnID     string
	Path       []string
	Reason     string
	ExpiresAt  *time.Time
	AppliedAt  time.Time
	ReportName string
}
