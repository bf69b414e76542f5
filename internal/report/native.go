package report

import (
	"encoding/json"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/types"
)

// NativeParser handles the native report format ("deps_" prefix): the JSON
// shape this service's own tooling and CI exporters write.
type NativeParser struct{}

// nativeReport is the on-disk shape of a native scan report.
type nativeReport struct {
	SchemaVersion int             `json:"schemaVersion"`
	Project       string          `json:"project"`
	Ecosystem     string          `json:"ecosystem"`
	Findings      []nativeFinding `json:"findings"`
}

type nativeFinding struct {
	ID              string   `json:"id"`
	Severity        string   `json:"severity"`
	Package         string   `json:"package"`
	Version         string   `json:"version"`
	VulnerableRange string   `json:"vulnerableRange"`
	FixedVersion    string   `json:"fixedVersion"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	From            []string `json:"from"`
}

// Format returns the format name.
func (p *NativeParser) Format() string {
	return "deps"
}

// Parse decodes a native report.
func (p *NativeParser) Parse(name string, data []byte) (*Report, error) {
	var raw nativeReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewPermanentf("failed to parse native report %s: %w", name, err)
	}

	if raw.SchemaVersion != 1 {
		return nil, errors.NewPermanentf("native report %s has unsupported schema version %d", name, raw.SchemaVersion)
	}

	findings := make([]types.Finding, 0, len(raw.Findings))
	for _, f := range raw.Findings {
		if f.ID == "" {
			return nil, errors.NewPermanentf("native report %s contains a finding without an identifier", name)
		}

		from := f.From
		if len(from) == 0 {
			// Direct dependency with no recorded chain.
			from = []string{f.Package}
		}

		findings = append(findings, types.Finding{
			ID:              f.ID,
			Severity:        normalizeSeverity(f.Severity),
			Ecosystem:       raw.Ecosystem,
			PackageName:     f.Package,
			Version:         f.Version,
			VulnerableRange: f.VulnerableRange,
			FixedVersion:    f.FixedVersion,
			Title:           f.Title,
			Description:     f.Description,
			PrimaryURL:      f.URL,
			From:            from,
		})
	}

	return &Report{
		Name:      name,
		Format:    p.Format(),
		Project:   raw.Project,
		Ecosystem: raw.Ecosystem,
		Findings:  findings,
	}, nil
}

func normalizeSeverity(severity string) string {
	switch severity {
	case "critical", "CRITICAL":
		return "CRITICAL"
	case "high", "HIGH":
		return "HIGH"
	case "medium", "moderate", "MEDIUM", "MODERATE":
		return "MEDIUM"
	case "low", "LOW":
		return "LOW"
	default:
		return "UNKNOWN"
	}
}
