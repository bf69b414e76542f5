package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cfarm/ccp-test/internal/policy"
	"github.com/cfarm/ccp-test/internal/queue"
	"github.com/cfarm/ccp-test/internal/report"
	"github.com/cfarm/ccp-test/internal/statestore"
	"github.com/cfarm/ccp-test/internal/types"
)

// handleGetRun retrieves a run record with findings for a specific fingerprint
// @Summary Get run by fingerprint
// @Description Retrieve detailed run information for a specific report fingerprint
// @Tags Runs
// @Accept json
// @Produce json
// @Param fingerprint path string true "Report fingerprint (e.g., sha256:abc123...)"
// @Success 200 {object} RunRecordResponse
// @Failure 400 {object} map[string]string "Invalid fingerprint format"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Run not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /runs/{fingerprint} [get]
func (s *APIServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Extract fingerprint from URL path
	// Path format: /api/v1/runs/{fingerprint}
	path := r.URL.Path
	prefix := "/api/v1/runs/"
	if !strings.HasPrefix(path, prefix) {
		s.respondError(w, http.StatusBadRequest, "Invalid path")
		return
	}

	fingerprint := strings.TrimPrefix(path, prefix)
	if fingerprint == "" {
		s.respondError(w, http.StatusBadRequest, "Fingerprint is required")
		return
	}

	// Get run record from state store
	record, err := s.stateStore.GetLastRun(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, statestore.ErrRunNotFound) {
			s.respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get run: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, toRunRecordResponse(record))
}

// handleListRuns lists run records with optional filters
// @Summary List runs
// @Description List all processing runs with optional filtering and pagination
// @Tags Runs
// @Accept json
// @Produce json
// @Param report query string false "Filter by report name"
// @Param gate_passed query boolean false "Filter by gate outcome"
// @Param limit query int false "Maximum number of results" default(100)
// @Param offset query int false "Pagination offset" default(0)
// @Success 200 {array} RunRecordResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /runs [get]
func (s *APIServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Parse query parameters
	filter := statestore.RunFilter{
		ReportName: parseQueryParam(r, "report"),
		GatePassed: parseQueryParamBool(r, "gate_passed"),
		Limit:      parseQueryParamInt(r, "limit", 100),
		Offset:     parseQueryParamInt(r, "offset", 0),
	}

	// Get runs from state store
	records, err := s.stateStore.ListRuns(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}

	responses := make([]*RunRecordResponse, len(records))
	for i, record := range records {
		responses[i] = toRunRecordResponse(record)
	}

	s.respondJSON(w, http.StatusOK, responses)
}

// handleQueryFindings searches findings across all runs
// @Summary Query findings
// @Description Search for findings across all runs with filtering
// @Tags Findings
// @Accept json
// @Produce json
// @Param vuln_id query string false "Filter by advisory ID"
// @Param severity query string false "Filter by severity (CRITICAL, HIGH, MEDIUM, LOW)"
// @Param package_name query string false "Filter by package name"
// @Param report query string false "Filter by report name"
// @Param limit query int false "Maximum number of results" default(100)
// @Success 200 {array} FindingRecordResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /findings [get]
func (s *APIServer) handleQueryFindings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Parse query parameters
	filter := statestore.FindingFilter{
		VulnID:      parseQueryParam(r, "vuln_id"),
		Severity:    parseQueryParam(r, "severity"),
		PackageName: parseQueryParam(r, "package_name"),
		ReportName:  parseQueryParam(r, "report"),
		Limit:       parseQueryParamInt(r, "limit", 100),
	}

	// Query findings from state store
	findings, err := s.stateStore.QueryFindings(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to query findings: %v", err))
		return
	}

	responses := make([]FindingRecordResponse, len(findings))
	for i, finding := range findings {
		responses[i] = toFindingRecordResponse(finding)
	}

	s.respondJSON(w, http.StatusOK, responses)
}

// handleReportsByVuln lists every report affected by one advisory
// @Summary Reports affected by an advisory
// @Description Returns the latest run of every report that contains the given advisory
// @Tags Findings
// @Accept json
// @Produce json
// @Param vuln_id path string true "Advisory ID (e.g., CVE-2024-0001)"
// @Success 200 {array} RunRecordResponse
// @Failure 400 {object} map[string]string "Missing advisory ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /vulnerabilities/{vuln_id}/reports [get]
func (s *APIServer) handleReportsByVuln(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Path format: /api/v1/vulnerabilities/{vuln_id}/reports
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/vulnerabilities/")
	vulnID := strings.TrimSuffix(path, "/reports")
	if vulnID == "" || vulnID == path {
		s.respondError(w, http.StatusBadRequest, "Path must be /api/v1/vulnerabilities/{vuln_id}/reports")
		return
	}

	records, err := s.stateStore.GetReportsByVuln(r.Context(), vulnID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to query reports: %v", err))
		return
	}

	responses := make([]*RunRecordResponse, len(records))
	for i, record := range records {
		responses[i] = toRunRecordResponse(record)
	}

	s.respondJSON(w, http.StatusOK, responses)
}

// handleListSuppressions lists applied suppressions with optional filters
// @Summary List suppressions
// @Description List all applied suppressions with optional filtering. Returns one entry per report + advisory combination from the latest run of each report.
// @Tags Suppressions
// @Accept json
// @Produce json
// @Param vuln_id query string false "Filter by advisory ID"
// @Param report query string false "Filter by report name"
// @Param expired query boolean false "Filter by expiration status"
// @Param expiring_soon query boolean false "Show suppressions expiring within 7 days"
// @Param limit query int false "Maximum number of results" default(100)
// @Success 200 {array} SuppressionInfoResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /suppressions [get]
func (s *APIServer) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Parse query parameters
	filter := statestore.SuppressionFilter{
		VulnID:       parseQueryParam(r, "vuln_id"),
		ReportName:   parseQueryParam(r, "report"),
		Expired:      parseQueryParamBool(r, "expired"),
		ExpiringSoon: parseQueryParamBool(r, "expiring_soon"),
		Limit:        parseQueryParamInt(r, "limit", 100),
	}

	// List suppressions from state store
	suppressions, err := s.stateStore.ListSuppressions(r.Context(), filter)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list suppressions: %v", err))
		return
	}

	responses := make([]SuppressionInfoResponse, len(suppressions))
	for i, info := range suppressions {
		responses[i] = toSuppressionInfoResponse(info)
	}

	s.respondJSON(w, http.StatusOK, responses)
}

// handleGetPolicy returns the currently loaded policy document
// @Summary Get policy
// @Description Return the currently loaded policy document with its ignore and patch rules
// @Tags Policy
// @Accept json
// @Produce json
// @Success 200 {object} PolicyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /policy [get]
func (s *APIServer) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	doc := s.policyStore.Current()
	if doc == nil {
		s.respondError(w, http.StatusInternalServerError, "No policy document loaded")
		return
	}

	s.respondJSON(w, http.StatusOK, toPolicyResponse(doc, s.policyStore.Path(), s.policyStore.LoadedAt()))
}

// handleGetPolicyStub generates a policy stub for a report's unsuppressed findings
// @Summary Generate policy stub
// @Description Generate a policy document pre-populated with ignore entries for every unsuppressed applicable finding of a report's latest run, for a human to fill in during triage
// @Tags Policy
// @Accept json
// @Produce plain
// @Param report query string true "Report name"
// @Success 200 {string} string "Policy stub in YAML format"
// @Failure 400 {object} map[string]string "Missing report parameter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "No runs found for report"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /policy/stub [get]
func (s *APIServer) handleGetPolicyStub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	reportName := parseQueryParam(r, "report")
	if reportName == "" {
		s.respondError(w, http.StatusBadRequest, "Report name is required")
		return
	}

	// Get the latest run for this report
	runs, err := s.stateStore.GetRunHistory(r.Context(), reportName, 1)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get run history: %v", err))
		return
	}
	if len(runs) == 0 {
		s.respondError(w, http.StatusNotFound, "No runs found for report")
		return
	}

	// Rebuild findings from the stored records so the stub generator can
	// filter on suppression state and applicability
	lastRun := runs[0]
	findings := make([]types.Finding, len(lastRun.Findings))
	for i, record := range lastRun.Findings {
		findings[i] = types.Finding{
			ID:          record.VulnID,
			Severity:    record.Severity,
			PackageName: record.PackageName,
			From:        record.DepPath,
			Applicable:  record.Applicable,
			Ignored:     record.Ignored,
			Patched:     record.Patched,
		}
	}

	version := lastRun.PolicyVersion
	if doc := s.policyStore.Current(); doc != nil {
		version = doc.Version
	}

	stub := policy.GenerateStub(version, findings, time.Now())
	encoded, err := stub.Encode()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to encode policy stub: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded); err != nil {
		s.logger.Error("error writing policy stub response",
			"error", err.Error())
	}
}

// TriggerRunRequest represents the request body for triggering a reprocess
type TriggerRunRequest struct {
	Report string `json:"report,omitempty"`
}

// TriggerRunResponse represents the response for a triggered reprocess
type TriggerRunResponse struct {
	Queued int    `json:"queued"`
	TaskID string `json:"task_id,omitempty"`
}

// handleTriggerRun triggers reprocessing of a report from the input directory
// @Summary Trigger reprocess
// @Description Trigger reprocessing of a specific report, or of every report currently in the input directory when no report is named
// @Tags Runs
// @Accept json
// @Produce json
// @Param request body TriggerRunRequest true "Trigger request (report name, optional)"
// @Success 200 {object} TriggerRunResponse
// @Failure 400 {object} map[string]string "Invalid request"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "API is in read-only mode"
// @Failure 404 {object} map[string]string "Report not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Security BearerAuth
// @Router /runs/trigger [post]
func (s *APIServer) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Parse request body (optional report filter)
	var req TriggerRunRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Empty body is acceptable, so only error on malformed JSON
			if err.Error() != "EOF" {
				s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
				return
			}
		}
	}

	ctx := r.Context()

	// Discover reports currently in the input directory
	files, err := s.source.List(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list reports: %v", err))
		return
	}

	queuedCount := 0
	matched := false
	var taskID string

	for _, file := range files {
		name := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
		if req.Report != "" && name != req.Report && file.Name != req.Report {
			continue
		}
		if !report.IsReportFile(file.Name) {
			continue
		}
		matched = true

		fingerprint, err := s.source.Fingerprint(ctx, file.Path)
		if err != nil {
			s.logger.Error("failed to fingerprint report",
				"report", file.Name,
				"error", err.Error())
			continue
		}

		task := &queue.ReportTask{
			ID:          fmt.Sprintf("%s-%d", fingerprint, time.Now().Unix()),
			ReportName:  name,
			ReportPath:  file.Path,
			Fingerprint: fingerprint,
			EnqueuedAt:  time.Now(),
			Attempts:    0,
			IsReprocess: true,
		}

		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue task",
				"report", file.Name,
				"error", err.Error())
			continue
		}

		queuedCount++
		taskID = task.ID
	}

	if !matched {
		s.respondError(w, http.StatusNotFound, "Report not found")
		return
	}

	s.logger.Info("triggered reprocess",
		"report_filter", req.Report,
		"queued", queuedCount)

	// Return response
	response := TriggerRunResponse{
		Queued: queuedCount,
	}
	if queuedCount == 1 {
		response.TaskID = taskID
	}

	s.respondJSON(w, http.StatusOK, response)
}

// handleHealth provides health check endpoint
// @Summary Health check
// @Description Check the health status of the API server
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
