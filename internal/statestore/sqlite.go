package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/types"
)

// SQLiteStore implements StateStore using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite state store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Add pragmas and optimizations for better concurrent access
	// _foreign_keys=1: Ensures CASCADE DELETE works properly
	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: Write-Ahead Logging allows concurrent readers and a single writer
	// _busy_timeout=3000: Wait up to 3 seconds for locks to allow metrics to succeed
	connStr := dbPath + "?_foreign_keys=1&mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	// WAL mode supports one writer and multiple concurrent readers
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		db.Close()
		return nil, errors.NewTransientf("failed to check foreign keys status: %w", err)
	}
	if fkEnabled != 1 {
		db.Close()
		return nil, errors.NewTransientf("foreign keys are not enabled (got %d, expected 1)", fkEnabled)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// initSchema creates the database schema with all tables and indexes
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		format TEXT,
		path TEXT,
		created_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer))
	);

	CREATE TABLE IF NOT EXISTS run_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL,
		fingerprint TEXT NOT NULL,
		critical_count INTEGER NOT NULL,
		high_count INTEGER NOT NULL,
		medium_count INTEGER NOT NULL,
		low_count INTEGER NOT NULL,
		ignored_count INTEGER NOT NULL,
		patched_count INTEGER NOT NULL,
		gate_passed BOOLEAN NOT NULL,
		gate_reason TEXT,
		policy_version TEXT,
		output_path TEXT,
		error_message TEXT,
		applied_patches_json TEXT, -- JSON array of AppliedPatch objects for audit trail
		created_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer)),
		FOREIGN KEY (report_id) REFERENCES reports(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_record_id INTEGER NOT NULL,
		vuln_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		ecosystem TEXT,
		package_name TEXT NOT NULL,
		installed_version TEXT,
		fixed_version TEXT,
		title TEXT,
		primary_url TEXT,
		dep_path TEXT,
		applicable BOOLEAN NOT NULL,
		ignored BOOLEAN NOT NULL,
		patched BOOLEAN NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer)),
		FOREIGN KEY (run_record_id) REFERENCES run_records(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS suppressions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_record_id INTEGER NOT NULL,
		vuln_id TEXT NOT NULL,
		dep_path TEXT,
		reason TEXT,
		expires_at INTEGER,
		applied_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (cast(strftime('%s', 'now') as integer)),
		FOREIGN KEY (run_record_id) REFERENCES run_records(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_records_report ON run_records(report_id);
	CREATE INDEX IF NOT EXISTS idx_run_records_fingerprint ON run_records(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_run_records_created ON run_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_record_id);
	CREATE INDEX IF NOT EXISTS idx_findings_vuln ON findings(vuln_id);
	CREATE INDEX IF NOT EXISTS idx_findings_severity ON findings(severity);
	CREATE INDEX IF NOT EXISTS idx_suppressions_run ON suppressions(run_record_id);
	CREATE INDEX IF NOT EXISTS idx_suppressions_vuln ON suppressions(vuln_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun saves a processing run with full finding details in a transaction
func (s *SQLiteStore) RecordRun(ctx context.Context, record *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewTransientf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Create or update report by name
	var reportID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO reports (name, format, path)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET format = excluded.format, path = excluded.path
		RETURNING id`,
		record.ReportName, record.Format, record.ReportPath).Scan(&reportID)
	if err != nil {
		return errors.NewTransientf("failed to upsert report: %w", err)
	}

	patchesJSON, err := json.Marshal(record.Patches)
	if err != nil {
		return errors.NewPermanentf("failed to marshal applied patches: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO run_records (
			report_id, fingerprint,
			critical_count, high_count, medium_count, low_count,
			ignored_count, patched_count,
			gate_passed, gate_reason, policy_version, output_path,
			error_message, applied_patches_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reportID, record.Fingerprint,
		record.CriticalCount, record.HighCount, record.MediumCount, record.LowCount,
		record.IgnoredCount, record.PatchedCount,
		record.GatePassed, record.GateReason, record.PolicyVersion, record.OutputPath,
		record.ErrorMessage, string(patchesJSON), record.ProcessedAt.Unix())
	if err != nil {
		return errors.NewTransientf("failed to insert run record: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return errors.NewTransientf("failed to get run record id: %w", err)
	}

	for _, finding := range record.Findings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (
				run_record_id, vuln_id, severity, ecosystem, package_name,
				installed_version, fixed_version, title, primary_url,
				dep_path, applicable, ignored, patched
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, finding.VulnID, finding.Severity, finding.Ecosystem, finding.PackageName,
			finding.InstalledVersion, finding.FixedVersion, finding.Title, finding.PrimaryURL,
			policy.JoinPath(finding.DepPath), finding.Applicable, finding.Ignored, finding.Patched)
		if err != nil {
			return errors.NewTransientf("failed to insert finding %s: %w", finding.VulnID, err)
		}
	}

	for _, suppression := range record.Suppressions {
		var expiresAt sql.NullInt64
		if suppression.ExpiresAt != nil {
			expiresAt = sql.NullInt64{Int64: suppression.ExpiresAt.Unix(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO suppressions (
				run_record_id, vuln_id, dep_path, reason, expires_at, applied_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, suppression.VulnID, policy.JoinPath(suppression.Path),
			suppression.Reason, expiresAt, suppression.AppliedAt.Unix())
		if err != nil {
			return errors.NewTransientf("failed to insert suppression %s: %w", suppression.VulnID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewTransientf("failed to commit run record: %w", err)
	}

	return nil
}

const runSelectColumns = `
	rr.id, r.name, r.format, r.path, rr.fingerprint,
	rr.critical_count, rr.high_count, rr.medium_count, rr.low_count,
	rr.ignored_count, rr.patched_count,
	rr.gate_passed, rr.gate_reason, rr.policy_version, rr.output_path,
	rr.error_message, rr.applied_patches_json, rr.created_at`

// GetLastRun retrieves the most recent run for a report fingerprint
func (s *SQLiteStore) GetLastRun(ctx context.Context, fingerprint string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runSelectColumns+`
		FROM run_records rr
		JOIN reports r ON r.id = rr.report_id
		WHERE rr.fingerprint = ?
		ORDER BY rr.created_at DESC, rr.id DESC
		LIMIT 1`, fingerprint)

	record, runID, err := scanRunRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, errors.NewTransientf("failed to get last run: %w", err)
	}

	if err := s.loadRunDetails(ctx, runID, record); err != nil {
		return nil, err
	}

	return record, nil
}

// GetRunHistory returns run history for a report name with full details
func (s *SQLiteStore) GetRunHistory(ctx context.Context, reportName string, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runSelectColumns+`
		FROM run_records rr
		JOIN reports r ON r.id = rr.report_id
		WHERE r.name = ?
		ORDER BY rr.created_at DESC, rr.id DESC
		LIMIT ?`, reportName, limit)
	if err != nil {
		return nil, errors.NewTransientf("failed to query run history: %w", err)
	}
	defer rows.Close()

	return s.collectRuns(ctx, rows)
}

// ListRuns returns run records with optional filters
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	query := `
		SELECT ` + runSelectColumns + `
		FROM run_records rr
		JOIN reports r ON r.id = rr.report_id
		WHERE 1=1`
	var args []interface{}

	if filter.ReportName != "" {
		query += " AND r.name = ?"
		args = append(args, filter.ReportName)
	}
	if filter.GatePassed != nil {
		query += " AND rr.gate_passed = ?"
		args = append(args, *filter.GatePassed)
	}

	query += " ORDER BY rr.created_at DESC, rr.id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransientf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return s.collectRuns(ctx, rows)
}

// QueryFindings searches findings across all runs
func (s *SQLiteStore) QueryFindings(ctx context.Context, filter FindingFilter) ([]*types.FindingRecord, error) {
	query := `
		SELECT f.vuln_id, f.severity, f.ecosystem, f.package_name,
			f.installed_version, f.fixed_version, f.title, f.primary_url,
			f.dep_path, f.applicable, f.ignored, f.patched,
			r.name, rr.fingerprint, rr.created_at
		FROM findings f
		JOIN run_records rr ON rr.id = f.run_record_id
		JOIN reports r ON r.id = rr.report_id
		WHERE 1=1`
	var args []interface{}

	if filter.VulnID != "" {
		query += " AND f.vuln_id = ?"
		args = append(args, filter.VulnID)
	}
	if filter.Severity != "" {
		query += " AND f.severity = ?"
		args = append(args, filter.Severity)
	}
	if filter.PackageName != "" {
		query += " AND f.package_name = ?"
		args = append(args, filter.PackageName)
	}
	if filter.ReportName != "" {
		query += " AND r.name = ?"
		args = append(args, filter.ReportName)
	}

	query += " ORDER BY rr.created_at DESC, f.id"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransientf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var records []*types.FindingRecord
	for rows.Next() {
		var rec types.FindingRecord
		var ecosystem, installedVersion, fixedVersion, title, primaryURL, depPath sql.NullString
		var processedAt int64
		if err := rows.Scan(
			&rec.VulnID, &rec.Severity, &ecosystem, &rec.PackageName,
			&installedVersion, &fixedVersion, &title, &primaryURL,
			&depPath, &rec.Applicable, &rec.Ignored, &rec.Patched,
			&rec.ReportName, &rec.Fingerprint, &processedAt); err != nil {
			return nil, errors.NewTransientf("failed to scan finding: %w", err)
		}
		rec.Ecosystem = ecosystem.String
		rec.InstalledVersion = installedVersion.String
		rec.FixedVersion = fixedVersion.String
		rec.Title = title.String
		rec.PrimaryURL = primaryURL.String
		rec.DepPath = policy.ParsePath(depPath.String)
		rec.ProcessedAt = time.Unix(processedAt, 0).UTC()
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// GetReportsByVuln returns the latest run of every report affected by an advisory
func (s *SQLiteStore) GetReportsByVuln(ctx context.Context, vulnID string) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runSelectColumns+`
		FROM run_records rr
		JOIN reports r ON r.id = rr.report_id
		WHERE rr.id IN (
			SELECT MAX(rr2.id)
			FROM run_records rr2
			JOIN findings f ON f.run_record_id = rr2.id
			WHERE f.vuln_id = ?
			GROUP BY rr2.report_id
		)
		ORDER BY rr.created_at DESC`, vulnID)
	if err != nil {
		return nil, errors.NewTransientf("failed to query reports by vuln: %w", err)
	}
	defer rows.Close()

	return s.collectRuns(ctx, rows)
}

// ListSuppressions returns applied suppressions with optional filters.
// Each suppression appears once per report, taken from the report's latest run.
func (s *SQLiteStore) ListSuppressions(ctx context.Context, filter SuppressionFilter) ([]*types.SuppressionInfo, error) {
	query := `
		SELECT sp.vuln_id, sp.dep_path, sp.reason, sp.expires_at, sp.applied_at, r.name
		FROM suppressions sp
		JOIN run_records rr ON rr.id = sp.run_record_id
		JOIN reports r ON r.id = rr.report_id
		WHERE rr.id IN (
			SELECT MAX(id) FROM run_records GROUP BY report_id
		)`
	var args []interface{}

	if filter.VulnID != "" {
		query += " AND sp.vuln_id = ?"
		args = append(args, filter.VulnID)
	}
	if filter.ReportName != "" {
		query += " AND r.name = ?"
		args = append(args, filter.ReportName)
	}

	now := time.Now().Unix()
	if filter.Expired != nil {
		if *filter.Expired {
			query += " AND sp.expires_at IS NOT NULL AND sp.expires_at < ?"
		} else {
			query += " AND (sp.expires_at IS NULL OR sp.expires_at >= ?)"
		}
		args = append(args, now)
	}
	if filter.ExpiringSoon != nil && *filter.ExpiringSoon {
		query += " AND sp.expires_at IS NOT NULL AND sp.expires_at >= ? AND sp.expires_at < ?"
		args = append(args, now, now+int64(7*24*time.Hour/time.Second))
	}

	query += " ORDER BY sp.applied_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewTransientf("failed to list suppressions: %w", err)
	}
	defer rows.Close()

	var infos []*types.SuppressionInfo
	for rows.Next() {
		var info types.SuppressionInfo
		var depPath, reason sql.NullString
		var expiresAt sql.NullInt64
		var appliedAt int64
		if err := rows.Scan(&info.VulnID, &depPath, &reason, &expiresAt, &appliedAt, &info.ReportName); err != nil {
			return nil, errors.NewTransientf("failed to scan suppression: %w", err)
		}
		info.Path = policy.ParsePath(depPath.String)
		info.Reason = reason.String
		if expiresAt.Valid {
			t := time.Unix(expiresAt.Int64, 0).UTC()
			info.ExpiresAt = &t
		}
		info.AppliedAt = time.Unix(appliedAt, 0).UTC()
		infos = append(infos, &info)
	}

	return infos, rows.Err()
}

// ListDueForReprocess returns report names whose latest run is older than the interval
func (s *SQLiteStore) ListDueForReprocess(ctx context.Context, interval time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-interval).Unix()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.name
		FROM reports r
		JOIN run_records rr ON rr.id = (
			SELECT MAX(id) FROM run_records WHERE report_id = r.id
		)
		WHERE rr.created_at <= ?
		ORDER BY r.name`, cutoff)
	if err != nil {
		return nil, errors.NewTransientf("failed to list reports due for reprocess: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewTransientf("failed to scan report name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRunRecord
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRunRecord(row rowScanner) (*RunRecord, int64, error) {
	var record RunRecord
	var runID int64
	var format, path, gateReason, policyVersion, outputPath, errorMessage, patchesJSON sql.NullString
	var createdAt int64

	err := row.Scan(
		&runID, &record.ReportName, &format, &path, &record.Fingerprint,
		&record.CriticalCount, &record.HighCount, &record.MediumCount, &record.LowCount,
		&record.IgnoredCount, &record.PatchedCount,
		&record.GatePassed, &gateReason, &policyVersion, &outputPath,
		&errorMessage, &patchesJSON, &createdAt)
	if err != nil {
		return nil, 0, err
	}

	record.Format = format.String
	record.ReportPath = path.String
	record.GateReason = gateReason.String
	record.PolicyVersion = policyVersion.String
	record.OutputPath = outputPath.String
	record.ErrorMessage = errorMessage.String
	record.ProcessedAt = time.Unix(createdAt, 0).UTC()
	record.CreatedAt = record.ProcessedAt

	if patchesJSON.Valid && patchesJSON.String != "" && patchesJSON.String != "null" {
		if err := json.Unmarshal([]byte(patchesJSON.String), &record.Patches); err != nil {
			return nil, 0, err
		}
	}

	return &record, runID, nil
}

func (s *SQLiteStore) collectRuns(ctx context.Context, rows *sql.Rows) ([]*RunRecord, error) {
	var records []*RunRecord
	var runIDs []int64

	for rows.Next() {
		record, runID, err := scanRunRecord(rows)
		if err != nil {
			return nil, errors.NewTransientf("failed to scan run record: %w", err)
		}
		records = append(records, record)
		runIDs = append(runIDs, runID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("failed to iterate run records: %w", err)
	}

	for i, record := range records {
		if err := s.loadRunDetails(ctx, runIDs[i], record); err != nil {
			return nil, err
		}
	}

	return records, nil
}

// loadRunDetails attaches findings and suppressions to a run record
func (s *SQLiteStore) loadRunDetails(ctx context.Context, runID int64, record *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vuln_id, severity, ecosystem, package_name,
			installed_version, fixed_version, title, primary_url,
			dep_path, applicable, ignored, patched
		FROM findings
		WHERE run_record_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return errors.NewTransientf("failed to load findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec types.FindingRecord
		var ecosystem, installedVersion, fixedVersion, title, primaryURL, depPath sql.NullString
		if err := rows.Scan(
			&rec.VulnID, &rec.Severity, &ecosystem, &rec.PackageName,
			&installedVersion, &fixedVersion, &title, &primaryURL,
			&depPath, &rec.Applicable, &rec.Ignored, &rec.Patched); err != nil {
			return errors.NewTransientf("failed to scan finding: %w", err)
		}
		rec.Ecosystem = ecosystem.String
		rec.InstalledVersion = installedVersion.String
		rec.FixedVersion = fixedVersion.String
		rec.Title = title.String
		rec.PrimaryURL = primaryURL.String
		rec.DepPath = policy.ParsePath(depPath.String)
		rec.ReportName = record.ReportName
		rec.Fingerprint = record.Fingerprint
		rec.ProcessedAt = record.ProcessedAt
		record.Findings = append(record.Findings, rec)
	}
	if err := rows.Err(); err != nil {
		return errors.NewTransientf("failed to iterate findings: %w", err)
	}

	suppRows, err := s.db.QueryContext(ctx, `
		SELECT vuln_id, dep_path, reason, expires_at, applied_at
		FROM suppressions
		WHERE run_record_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return errors.NewTransientf("failed to load suppressions: %w", err)
	}
	defer suppRows.Close()

	for suppRows.Next() {
		var applied types.AppliedIgnore
		var depPath, reason sql.NullString
		var expiresAt sql.NullInt64
		var appliedAt int64
		if err := suppRows.Scan(&applied.VulnID, &depPath, &reason, &expiresAt, &appliedAt); err != nil {
			return errors.NewTransientf("failed to scan suppression: %w", err)
		}
		applied.Path = policy.ParsePath(depPath.String)
		applied.Reason = reason.String
		if expiresAt.Valid {
			t := time.Unix(expiresAt.Int64, 0).UTC()
			applied.ExpiresAt = &t
		}
		applied.AppliedAt = time.Unix(appliedAt, 0).UTC()
		record.Suppressions = append(record.Suppressions, applied)
	}

	return suppRows.Err()
}

// countWhere is a small helper for the metrics collector
func (s *SQLiteStore) countWhere(ctx context.Context, query string, args ...interface{}) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.NewTransientf("failed to count: %w", err)
	}
	return count, nil
}

// Stats returns aggregate counters for the metrics collector
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.Reports, err = s.countWhere(ctx, `SELECT COUNT(*) FROM reports`); err != nil {
		return stats, err
	}
	if stats.Runs, err = s.countWhere(ctx, `SELECT COUNT(*) FROM run_records`); err != nil {
		return stats, err
	}
	if stats.GateFailed, err = s.countWhere(ctx, `
		SELECT COUNT(*) FROM run_records
		WHERE gate_passed = 0 AND id IN (SELECT MAX(id) FROM run_records GROUP BY report_id)`); err != nil {
		return stats, err
	}

	now := time.Now().Unix()
	latest := `rr.id IN (SELECT MAX(id) FROM run_records GROUP BY report_id)`

	if stats.ActiveSuppressions, err = s.countWhere(ctx, `
		SELECT COUNT(*) FROM suppressions sp JOIN run_records rr ON rr.id = sp.run_record_id
		WHERE `+latest+` AND (sp.expires_at IS NULL OR sp.expires_at >= ?)`, now); err != nil {
		return stats, err
	}
	if stats.ExpiredSuppressions, err = s.countWhere(ctx, `
		SELECT COUNT(*) FROM suppressions sp JOIN run_records rr ON rr.id = sp.run_record_id
		WHERE `+latest+` AND sp.expires_at IS NOT NULL AND sp.expires_at < ?`, now); err != nil {
		return stats, err
	}

	return stats, nil
}

// CountUnappliedIgnores returns how many of the given advisory IDs have
// never been applied as a suppression in any run
func (s *SQLiteStore) CountUnappliedIgnores(ctx context.Context, vulnIDs []string) (int, error) {
	if len(vulnIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(vulnIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]interface{}, len(vulnIDs))
	for i, id := range vulnIDs {
		args[i] = id
	}

	var applied int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT vuln_id) FROM suppressions
		WHERE vuln_id IN (`+placeholders+`)`, args...).Scan(&applied)
	if err != nil {
		return 0, errors.NewTransientf("failed to count applied ignores: %w", err)
	}

	return len(vulnIDs) - applied, nil
}

// Stats holds aggregate counters exposed by the metrics collector
type Stats struct {
	Reports             int
	Runs                int
	GateFailed          int
	ActiveSuppressions  int
	ExpiredSuppressions int
}

// severityCount is used by the metrics collector to report current findings
type severityCount struct {
	Severity string
	Count    int
}

// FindingCountsBySeverity returns current (latest-run) finding counts per severity,
// excluding suppressed and non-applicable findings
func (s *SQLiteStore) FindingCountsBySeverity(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.severity, COUNT(*)
		FROM findings f
		JOIN run_records rr ON rr.id = f.run_record_id
		WHERE rr.id IN (SELECT MAX(id) FROM run_records GROUP BY report_id)
			AND f.ignored = 0 AND f.patched = 0 AND f.applicable = 1
		GROUP BY f.severity`)
	if err != nil {
		return nil, errors.NewTransientf("failed to count findings by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sc severityCount
		if err := rows.Scan(&sc.Severity, &sc.Count); err != nil {
			return nil, errors.NewTransientf("failed to scan severity count: %w", err)
		}
		counts[sc.Severity] = sc.Count
	}

	return counts, rows.Err()
}
