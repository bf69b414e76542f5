package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/cfarm/ccp-test/internal/types"
)

// ErrRunNotFound is returned by GetLastRun when no run record exists for the
// given fingerprint. This is a normal condition indicating the report
// revision has never been processed before. Callers should use errors.Is()
// to check for this specific error.
var ErrRunNotFound = errors.New("run not found")

// StateStore defines the interface for persisting and querying processing runs
type StateStore interface {
	// RecordRun saves a processing run with full finding details
	RecordRun(ctx context.Context, record *RunRecord) error

	// GetLastRun retrieves the most recent run for a report fingerprint
	GetLastRun(ctx context.Context, fingerprint string) (*RunRecord, error)

	// GetRunHistory returns run history for a report name with full details
	GetRunHistory(ctx context.Context, reportName string, limit int) ([]*RunRecord, error)

	// ListRuns returns run records with optional filters
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)

	// QueryFindings searches findings across all runs
	QueryFindings(ctx context.Context, filter FindingFilter) ([]*types.FindingRecord, error)

	// GetReportsByVuln returns the latest run of every report affected by an advisory
	GetReportsByVuln(ctx context.Context, vulnID string) ([]*RunRecord, error)

	// ListSuppressions returns applied suppressions with optional filters
	ListSuppressions(ctx context.Context, filter SuppressionFilter) ([]*types.SuppressionInfo, error)

	// ListDueForReprocess returns report names whose latest run is older than
	// the interval. Reprocessing matters because suppressions expire between runs.
	ListDueForReprocess(ctx context.Context, interval time.Duration) ([]string, error)
}

// StateStoreQuery is implemented by stores that can answer the aggregate
// queries the metrics collector needs. Kept separate from StateStore so a
// minimal store does not have to carry reporting queries.
type StateStoreQuery interface {
	// Stats returns aggregate counters across all reports
	Stats(ctx context.Context) (Stats, error)

	// FindingCountsBySeverity returns current unsuppressed finding counts
	FindingCountsBySeverity(ctx context.Context) (map[string]int, error)

	// ListSuppressions returns applied suppressions with optional filters
	ListSuppressions(ctx context.Context, filter SuppressionFilter) ([]*types.SuppressionInfo, error)

	// CountUnappliedIgnores returns how many of the given advisory IDs have
	// never been applied as a suppression in any run
	CountUnappliedIgnores(ctx context.Context, vulnIDs []string) (int, error)
}

// RunRecord represents one processing run of a report revision
type RunRecord struct {
	Fingerprint   string
	ReportName    string
	Format        string
	ReportPath    string
	ProcessedAt   time.Time
	CriticalCount int
	HighCount     int
	MediumCount   int
	LowCount      int
	IgnoredCount  int
	PatchedCount  int
	GatePassed    bool
	GateReason    string
	PolicyVersion string
	OutputPath    string
	Findings      []types.FindingRecord
	Suppressions  []types.AppliedIgnore
	Patches       []types.AppliedPatch
	ErrorMessage  string
	CreatedAt     time.Time
}

// FindingFilter defines criteria for querying findings
type FindingFilter struct {
	VulnID      string
	Severity    string
	PackageName string
	ReportName  string
	Limit       int
}

// RunFilter defines criteria for listing runs
type RunFilter struct {
	ReportName string
	GatePassed *bool
	Limit      int
	Offset     int
}

// SuppressionFilter defines criteria for listing applied suppressions
type SuppressionFilter struct {
	VulnID       string
	ReportName   string
	Expired      *bool
	ExpiringSoon *bool // Within 7 days
	Limit        int
}
