package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/types"
)

// OSVParser handles OSV scanner result files ("osv_" prefix).
type OSVParser struct{}

// osvOutput mirrors the subset of the osv-scanner JSON output this service
// consumes.
type osvOutput struct {
	Results []osvResult `json:"results"`
}

type osvResult struct {
	Source   osvSource          `json:"source"`
	Packages []osvPackageResult `json:"packages"`
}

type osvSource struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type osvPackageResult struct {
	Package         osvPackage `json:"package"`
	Vulnerabilities []osvVuln  `json:"vulnerabilities"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
}

type osvVuln struct {
	ID               string            `json:"id"`
	Aliases          []string          `json:"aliases"`
	Summary          string            `json:"summary"`
	Details          string            `json:"details"`
	Affected         []osvAffected     `json:"affected"`
	References       []osvReference    `json:"references"`
	Severity         []osvSeverity     `json:"severity"`
	DatabaseSpecific map[string]any    `json:"database_specific"`
}

type osvAffected struct {
	Ranges []osvRange `json:"ranges"`
}

type osvRange struct {
	Type   string     `json:"type"`
	Events []osvEvent `json:"events"`
}

type osvEvent struct {
	Introduced string `json:"introduced"`
	Fixed      string `json:"fixed"`
}

type osvReference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type osvSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Format returns the format name.
func (p *OSVParser) Format() string {
	return "osv"
}

// Parse decodes an OSV scanner result file.
func (p *OSVParser) Parse(name string, data []byte) (*Report, error) {
	var raw osvOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewPermanentf("failed to parse OSV report %s: %w", name, err)
	}

	var findings []types.Finding
	project := ""

	for _, result := range raw.Results {
		if project == "" {
			project = result.Source.Path
		}

		for _, pkg := range result.Packages {
			for _, vuln := range pkg.Vulnerabilities {
				if vuln.ID == "" {
					return nil, errors.NewPermanentf("OSV report %s contains a vulnerability without an id", name)
				}

				vulnRange, fixed := rangeFromAffected(vuln.Affected)

				findings = append(findings, types.Finding{
					ID:              vuln.ID,
					Severity:        osvSeverityOf(vuln),
					Ecosystem:       strings.ToLower(pkg.Package.Ecosystem),
					PackageName:     pkg.Package.Name,
					Version:         pkg.Package.Version,
					VulnerableRange: vulnRange,
					FixedVersion:    fixed,
					Title:           vuln.Summary,
					Description:     vuln.Details,
					PrimaryURL:      primaryURLOf(vuln.References),
					// OSV lockfile scans report flat package lists; the
					// chain is the package itself.
					From: []string{pkg.Package.Name},
				})
			}
		}
	}

	return &Report{
		Name:     name,
		Format:   p.Format(),
		Project:  project,
		Findings: findings,
	}, nil
}

// rangeFromAffected derives a semver constraint and a fixed version from the
// first SEMVER or ECOSYSTEM range in the affected list.
func rangeFromAffected(affected []osvAffected) (string, string) {
	for _, a := range affected {
		for _, r := range a.Ranges {
			if r.Type != "SEMVER" && r.Type != "ECOSYSTEM" {
				continue
			}

			introduced, fixed := "", ""
			for _, e := range r.Events {
				if e.Introduced != "" {
					introduced = e.Introduced
				}
				if e.Fixed != "" {
					fixed = e.Fixed
				}
			}

			switch {
			case fixed != "" && (introduced == "" || introduced == "0"):
				return fmt.Sprintf("< %s", fixed), fixed
			case fixed != "":
				return fmt.Sprintf(">= %s, < %s", introduced, fixed), fixed
			case introduced != "" && introduced != "0":
				return fmt.Sprintf(">= %s", introduced), ""
			}
		}
	}
	return "", ""
}

// osvSeverityOf resolves a severity label: database_specific.severity when
// present, otherwise bucketed from the CVSS score.
func osvSeverityOf(vuln osvVuln) string {
	if raw, ok := vuln.DatabaseSpecific["severity"]; ok {
		if s, ok := raw.(string); ok && s != "" {
			return normalizeSeverity(s)
		}
	}

	for _, sev := range vuln.Severity {
		score, err := strconv.ParseFloat(sev.Score, 64)
		if err != nil {
			continue
		}
		switch {
		case score >= 9.0:
			return "CRITICAL"
		case score >= 7.0:
			return "HIGH"
		case score >= 4.0:
			return "MEDIUM"
		case score > 0:
			return "LOW"
		}
	}

	return "UNKNOWN"
}

func primaryURLOf(refs []osvReference) string {
	for _, ref := range refs {
		if ref.Type == "ADVISORY" {
			return ref.URL
		}
	}
	if len(refs) > 0 {
		return refs[0].URL
	}
	return ""
}
