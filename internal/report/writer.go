package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/types"
)

// ProcessedReport is the filtered, annotated form written to the output
// directory after a report has been run through the policy and the gate.
type ProcessedReport struct {
	Report        string             `json:"report"`
	Format        string             `json:"format"`
	Project       string             `json:"project,omitempty"`
	Fingerprint   string             `json:"fingerprint"`
	PolicyVersion string             `json:"policyVersion"`
	ProcessedAt   time.Time          `json:"processedAt"`
	GatePassed    bool               `json:"gatePassed"`
	GateReason    string             `json:"gateReason"`
	Counts        SeverityCounts     `json:"counts"`
	Findings      []ProcessedFinding `json:"findings"`
}

// SeverityCounts summarizes a processed report. Severity counters only cover
// applicable, unsuppressed findings.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Ignored  int `json:"ignored"`
	Patched  int `json:"patched"`
}

// ProcessedFinding is one finding with its policy annotations.
type ProcessedFinding struct {
	ID            string     `json:"id"`
	Severity      string     `json:"severity"`
	Package       string     `json:"package"`
	Version       string     `json:"version"`
	FixedVersion  string     `json:"fixedVersion,omitempty"`
	Title         string     `json:"title,omitempty"`
	URL           string     `json:"url,omitempty"`
	From          []string   `json:"from"`
	Applicable    bool       `json:"applicable"`
	Ignored       bool       `json:"ignored,omitempty"`
	IgnoreReason  string     `json:"ignoreReason,omitempty"`
	IgnoreExpires *time.Time `json:"ignoreExpires,omitempty"`
	Patched       bool       `json:"patched,omitempty"`
	PatchedAt     *time.Time `json:"patchedAt,omitempty"`
}

// NewProcessedFinding converts a canonical annotated finding.
func NewProcessedFinding(f types.Finding) ProcessedFinding {
	return ProcessedFinding{
		ID:            f.ID,
		Severity:      f.Severity,
		Package:       f.PackageName,
		Version:       f.Version,
		FixedVersion:  f.FixedVersion,
		Title:         f.Title,
		URL:           f.PrimaryURL,
		From:          f.From,
		Applicable:    f.Applicable,
		Ignored:       f.Ignored,
		IgnoreReason:  f.IgnoreReason,
		IgnoreExpires: f.IgnoreExpires,
		Patched:       f.Patched,
		PatchedAt:     f.PatchedAt,
	}
}

// CountFindings tallies severity counters over annotated findings.
func CountFindings(findings []types.Finding) SeverityCounts {
	var counts SeverityCounts
	for _, f := range findings {
		switch {
		case f.Patched:
			counts.Patched++
		case f.Ignored:
			counts.Ignored++
		case !f.Applicable:
			// Out-of-range findings are reported but never counted.
		default:
			switch f.Severity {
			case "CRITICAL":
				counts.Critical++
			case "HIGH":
				counts.High++
			case "MEDIUM":
				counts.Medium++
			case "LOW":
				counts.Low++
			}
		}
	}
	return counts
}

// WriteProcessed saves a processed report into the output directory as
// <report name>.processed.json, creating the directory if needed.
// Returns the written path.
func WriteProcessed(outputDir string, processed *ProcessedReport) (string, error) {
	if outputDir == "" {
		return "", errors.NewPermanentf("output directory is required")
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", errors.ClassifyFileError(outputDir, fmt.Errorf("failed to create output directory: %w", err))
	}

	data, err := json.MarshalIndent(processed, "", "  ")
	if err != nil {
		return "", errors.NewPermanentf("failed to encode processed report %s: %w", processed.Report, err)
	}
	data = append(data, '\n')

	outPath := filepath.Join(outputDir, processed.Report+".processed.json")
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return "", errors.ClassifyFileError(outPath, fmt.Errorf("failed to write processed report: %w", err))
	}

	return outPath, nil
}
