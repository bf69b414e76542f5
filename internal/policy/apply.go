package policy

import (
	"time"

	"github.com/cfarm/ccp-test/internal/types"
)

// ApplyResult is the outcome of filtering a report's findings through the
// policy document.
type ApplyResult struct {
	// Findings are annotated copies of the input findings.
	Findings []types.Finding

	// Ignores and Patches record which rules fired, for the audit trail.
	Ignores []types.AppliedIgnore
	Patches []types.AppliedPatch

	// ExpiredSkipped counts ignore rules that matched a finding's identifier
	// but were void due to expiry.
	ExpiredSkipped int
}

// Apply filters findings through the document at the given instant.
// Patch records win over ignore rules: a finding along an already-patched
// path is marked patched and never counted as ignored.
func (d *Document) Apply(findings []types.Finding, now time.Time) ApplyResult {
	result := ApplyResult{
		Findings: make([]types.Finding, len(findings)),
	}

	for i, finding := range findings {
		annotated := finding

		if rule, ok := d.MatchPatch(finding.ID, finding.From); ok {
			annotated.Patched = true
			if patchedAt, ok, err := rule.PatchedAt(); ok && err == nil {
				annotated.PatchedAt = &patchedAt
			}
			result.Patches = append(result.Patches, types.AppliedPatch{
				VulnID:    finding.ID,
				Path:      rule.Path,
				PatchedAt: derefOrZero(annotated.PatchedAt),
				AppliedAt: now,
			})
			result.Findings[i] = annotated
			continue
		}

		if rule, ok := d.MatchIgnore(finding.ID, finding.From, now); ok {
			annotated.Ignored = true
			annotated.IgnoreReason = rule.Reason()
			if expiresAt, ok, err := rule.ExpiresAt(); ok && err == nil {
				annotated.IgnoreExpires = &expiresAt
			}
			result.Ignores = append(result.Ignores, types.AppliedIgnore{
				VulnID:    finding.ID,
				Path:      rule.Path,
				Reason:    rule.Reason(),
				ExpiresAt: annotated.IgnoreExpires,
				AppliedAt: now,
			})
		} else {
			result.ExpiredSkipped += countExpiredMatches(d, finding, now)
		}

		result.Findings[i] = annotated
	}

	return result
}

// countExpiredMatches counts void rules that would have suppressed the
// finding had they not expired. Surfaced in logs so triage knows a
// previously accepted risk is back.
func countExpiredMatches(d *Document, finding types.Finding, now time.Time) int {
	count := 0
	for _, rule := range d.IgnoresFor(finding.ID) {
		if rule.Expired(now) && PathMatches(rule.Path, finding.From) {
			count++
		}
	}
	return count
}

func derefOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// GenerateStub builds a policy document pre-populated with ignore entries for
// every unsuppressed applicable finding, for a human to fill in during
// triage. Reasons are left as the conventional placeholder and expiries
// default to 30 days out.
func GenerateStub(version string, findings []types.Finding, now time.Time) *Document {
	doc := NewDocument(version)
	expires := now.Add(30 * 24 * time.Hour)

	for _, finding := range findings {
		if finding.Suppressed() || !finding.Applicable {
			continue
		}
		path := finding.From
		if len(path) == 0 {
			path = []string{Wildcard}
		}
		doc.AddIgnore(finding.ID, path, "None given", &expires)
	}

	return doc
}
