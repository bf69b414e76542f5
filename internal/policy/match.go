package policy

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathSeparator joins package names into a dependency-path key.
const PathSeparator = " > "

// Wildcard matches any single package in a dependency path; a path
// consisting of only the wildcard matches every path.
const Wildcard = "*"

// ParsePath splits a dependency-path key ("a > b > c") into package names.
func ParsePath(key string) []string {
	parts := strings.Split(key, ">")
	path := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			path = append(path, p)
		}
	}
	return path
}

// JoinPath renders a package chain as a dependency-path key.
func JoinPath(path []string) string {
	return strings.Join(path, PathSeparator)
}

// stripVersion removes a trailing "@version" qualifier from a package name.
// Scoped names keep their leading "@": "@scope/pkg@1.0.0" becomes "@scope/pkg".
func stripVersion(name string) string {
	idx := strings.LastIndex(name, "@")
	if idx > 0 {
		return name[:idx]
	}
	return name
}

// segmentMatches compares one pattern segment against one chain package.
// A pattern without a version qualifier matches any version of the package.
func segmentMatches(pattern, pkg string) bool {
	if pattern == Wildcard {
		return true
	}
	if pattern == pkg {
		return true
	}
	if stripVersion(pattern) == pattern {
		return pattern == stripVersion(pkg)
	}
	return false
}

// PathMatches reports whether a rule path pattern covers a dependency chain.
// Segments pair up positionally, "*" matches exactly one package, and a
// trailing "*" additionally covers any remaining suffix of the chain.
func PathMatches(pattern, chain []string) bool {
	if len(pattern) == 1 && pattern[0] == Wildcard {
		return true
	}

	trailingWildcard := len(pattern) > 0 && pattern[len(pattern)-1] == Wildcard

	if trailingWildcard {
		prefix := pattern[:len(pattern)-1]
		if len(chain) <= len(prefix) {
			return false
		}
		for i, seg := range prefix {
			if !segmentMatches(seg, chain[i]) {
				return false
			}
		}
		return true
	}

	if len(pattern) != len(chain) {
		return false
	}
	for i, seg := range pattern {
		if !segmentMatches(seg, chain[i]) {
			return false
		}
	}
	return true
}

// IgnoresFor returns the ignore rules recorded for a vulnerability identifier.
func (d *Document) IgnoresFor(vulnID string) []*Rule {
	entry := d.Ignore.Get(vulnID)
	if entry == nil {
		return nil
	}
	return entry.Rules
}

// PatchesFor returns the patch rules recorded for a vulnerability identifier.
func (d *Document) PatchesFor(vulnID string) []*Rule {
	entry := d.Patch.Get(vulnID)
	if entry == nil {
		return nil
	}
	return entry.Rules
}

// MatchIgnore returns the first ignore rule that suppresses the given
// vulnerability along the given dependency chain at the given instant.
// Expired rules are void and never match.
func (d *Document) MatchIgnore(vulnID string, chain []string, now time.Time) (*Rule, bool) {
	for _, rule := range d.IgnoresFor(vulnID) {
		if rule.Expired(now) {
			continue
		}
		if PathMatches(rule.Path, chain) {
			return rule, true
		}
	}
	return nil, false
}

// MatchPatch returns the first patch rule covering the given vulnerability
// along the given dependency chain. Patch records do not expire.
func (d *Document) MatchPatch(vulnID string, chain []string) (*Rule, bool) {
	for _, rule := range d.PatchesFor(vulnID) {
		if PathMatches(rule.Path, chain) {
			return rule, true
		}
	}
	return nil, false
}

// AddIgnore records a suppression for a vulnerability along a dependency
// path. A nil expiry means the suppression never lapses.
func (d *Document) AddIgnore(vulnID string, path []string, reason string, expires *time.Time) {
	rule := &Rule{Path: path}
	rule.setField(fieldReason, reason, 0)
	if expires != nil {
		rule.setField(fieldExpires, formatTimestamp(*expires), yaml.SingleQuotedStyle)
	}
	d.Ignore = appendRule(d.Ignore, vulnID, rule)
	d.ensureTopKey(keyIgnore)
}

// AddPatch records that a patch was applied for a vulnerability along a
// dependency path.
func (d *Document) AddPatch(vulnID string, path []string, patched time.Time) {
	rule := &Rule{Path: path}
	rule.setField(fieldPatched, formatTimestamp(patched), yaml.SingleQuotedStyle)
	d.Patch = appendRule(d.Patch, vulnID, rule)
	d.ensureTopKey(keyPatch)
}

func appendRule(section Section, vulnID string, rule *Rule) Section {
	if entry := section.Get(vulnID); entry != nil {
		entry.Rules = append(entry.Rules, rule)
		return section
	}
	return append(section, &Entry{ID: vulnID, Rules: []*Rule{rule}})
}

func (d *Document) ensureTopKey(key string) {
	for _, k := range d.topOrder {
		if k == key {
			return
		}
	}
	d.topOrder = append(d.topOrder, key)
}

// PrunedIgnore describes an expired suppression removed by Prune.
type PrunedIgnore struct {
	VulnID    string
	Path      []string
	Reason    string
	ExpiredAt time.Time
}

// Prune removes expired ignore rules from the document and returns what was
// dropped. Identifiers left without rules are removed entirely. Patch records
// are never pruned; they are history, not policy.
func (d *Document) Prune(now time.Time) []PrunedIgnore {
	var pruned []PrunedIgnore
	var kept Section

	for _, entry := range d.Ignore {
		var keptRules []*Rule
		for _, rule := range entry.Rules {
			if !rule.Expired(now) {
				keptRules = append(keptRules, rule)
				continue
			}
			expiredAt, _, _ := rule.ExpiresAt()
			pruned = append(pruned, PrunedIgnore{
				VulnID:    entry.ID,
				Path:      rule.Path,
				Reason:    rule.Reason(),
				ExpiredAt: expiredAt,
			})
		}
		if len(keptRules) > 0 {
			entry.Rules = keptRules
			kept = append(kept, entry)
		}
	}

	d.Ignore = kept
	return pruned
}

// ExpiringIgnore describes a suppression lapsing within the warning window.
type ExpiringIgnore struct {
	VulnID    string
	Path      []string
	Reason    string
	ExpiresAt time.Time
	DaysUntil int
}

// Expiring returns ignore rules that will expire within the given duration.
func (d *Document) Expiring(within time.Duration, now time.Time) []ExpiringIgnore {
	threshold := now.Add(within)
	var expiring []ExpiringIgnore

	for _, entry := range d.Ignore {
		for _, rule := range entry.Rules {
			expiresAt, ok, err := rule.ExpiresAt()
			if !ok || err != nil {
				continue
			}
			if expiresAt.After(now) && expiresAt.Before(threshold) {
				expiring = append(expiring, ExpiringIgnore{
					VulnID:    entry.ID,
					Path:      rule.Path,
					Reason:    rule.Reason(),
					ExpiresAt: expiresAt,
					DaysUntil: int(expiresAt.Sub(now).Hours() / 24),
				})
			}
		}
	}

	return expiring
}

// formatTimestamp renders timestamps the way scanner tooling writes them:
// RFC3339 UTC with millisecond precision.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
