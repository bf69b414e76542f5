package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/cfarm/ccp-test/internal/errors"
	"github.com/cfarm/ccp-test/internal/types"
)

// Report is the canonical parsed form of a dependency scan report.
type Report struct {
	Name      string // base filename without extension
	Path      string
	Format    string
	Project   string
	Ecosystem string
	Findings  []types.Finding
}

// Parser decodes one scan report format into canonical findings.
type Parser interface {
	// Format returns the format name this parser handles.
	Format() string

	// Parse decodes report bytes into a canonical Report.
	Parse(name string, data []byte) (*Report, error)
}

// Report formats are keyed by filename prefix. Filenames are formatted as
// "<prefix><name>.json".
var formatPrefixes = map[string]Parser{
	"deps_": &NativeParser{},
	"osv_":  &OSVParser{},
}

// ParserForFile selects a parser from the report filename prefix.
func ParserForFile(filename string) (Parser, error) {
	base := filepath.Base(filename)
	for prefix, parser := range formatPrefixes {
		if strings.HasPrefix(base, prefix) {
			return parser, nil
		}
	}
	return nil, errors.NewPermanentf("file %q does not specify a known report format", base)
}

// IsReportFile reports whether a filename looks like a scan report.
func IsReportFile(filename string) bool {
	base := strings.ToLower(filepath.Base(filename))
	if !strings.HasSuffix(base, ".json") {
		return false
	}
	for prefix := range formatPrefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// Formats returns the known format names, sorted.
func Formats() []string {
	formats := make([]string, 0, len(formatPrefixes))
	for _, parser := range formatPrefixes {
		formats = append(formats, parser.Format())
	}
	sort.Strings(formats)
	return formats
}

// ParseFile reads a report file and parses it with the parser matching its
// filename prefix. Findings come back with applicability already marked.
func ParseFile(path string) (*Report, error) {
	parser, err := ParserForFile(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ClassifyFileError(path, fmt.Errorf("failed to read report file: %w", err))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rep, err := parser.Parse(name, data)
	if err != nil {
		return nil, err
	}
	rep.Path = path

	markApplicability(rep.Findings)
	return rep, nil
}

// markApplicability checks each finding's installed version against the
// advisory's vulnerable semver range. Findings with an empty or unparseable
// range, or a version that is not semver, stay applicable; only a definite
// out-of-range version clears the flag.
func markApplicability(findings []types.Finding) {
	for i := range findings {
		findings[i].Applicable = true

		if findings[i].VulnerableRange == "" {
			continue
		}
		constraint, err := semver.NewConstraint(findings[i].VulnerableRange)
		if err != nil {
			continue
		}
		version, err := semver.NewVersion(findings[i].Version)
		if err != nil {
			continue
		}
		findings[i].Applicable = constraint.Check(version)
	}
}
