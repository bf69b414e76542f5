package policy

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cfarm/ccp-test/internal/errors"
)

// Top-level document keys.
const (
	keyVersion = "version"
	keyIgnore  = "ignore"
	keyPatch   = "patch"
)

// Rule value keys.
const (
	fieldReason  = "reason"
	fieldExpires = "expires"
	fieldPatched = "patched"
)

// Document is the in-memory form of a dependency-vulnerability policy file.
// The wire format is YAML with top-level keys `version`, `ignore` and `patch`;
// `ignore` and `patch` map vulnerability identifiers to sequences of rule
// entries keyed by dependency path.
//
// The document keeps enough of the underlying YAML structure (key order,
// sequence order, scalar styles, comments on retained nodes) that a
// parse/serialize round trip reproduces the authored file.
type Document struct {
	Version string
	Ignore  Section
	Patch   Section

	versionNode *yaml.Node
	// topOrder records the authored order of top-level keys, including
	// extension keys, so serialization does not reshuffle the file.
	topOrder []string
	extras   map[string]*extraEntry
}

// Section is an ordered list of per-vulnerability rule sets.
type Section []*Entry

// Entry holds all rules recorded for one vulnerability identifier.
// A vulnerability identifier may carry zero or more rules.
type Entry struct {
	ID    string
	Rules []*Rule

	keyNode  *yaml.Node
	seqStyle yaml.Style
}

// Rule is a single policy decision for one dependency path. Under `ignore`
// it carries `reason` and `expires`; under `patch` it carries `patched`.
// Unknown fields are preserved verbatim for round-tripping.
type Rule struct {
	// Path is the dependency chain from the project root to the vulnerable
	// package. A single "*" element matches every path.
	Path []string

	pathNode *yaml.Node // original path key scalar, kept for fidelity
	mapStyle yaml.Style
	fields   []ruleField
}

type ruleField struct {
	key       string
	keyNode   *yaml.Node
	valueNode *yaml.Node
}

type extraEntry struct {
	keyNode   *yaml.Node
	valueNode *yaml.Node
}

// Get returns the entry for a vulnerability identifier, or nil.
func (s Section) Get(id string) *Entry {
	for _, e := range s {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// IDs returns the vulnerability identifiers in authored order.
func (s Section) IDs() []string {
	ids := make([]string, len(s))
	for i, e := range s {
		ids[i] = e.ID
	}
	return ids
}

// field returns the raw scalar value of a rule field and whether it exists.
func (r *Rule) field(key string) (string, bool) {
	for _, f := range r.fields {
		if f.key == key && f.valueNode != nil {
			return f.valueNode.Value, true
		}
	}
	return "", false
}

func (r *Rule) setField(key, value string, style yaml.Style) {
	for i, f := range r.fields {
		if f.key == key {
			r.fields[i].valueNode = scalarNode(value, style)
			return
		}
	}
	r.fields = append(r.fields, ruleField{
		key:       key,
		keyNode:   scalarNode(key, 0),
		valueNode: scalarNode(value, style),
	})
}

// Reason returns the free-text justification of an ignore rule.
// An absent reason is indistinguishable from an empty one by design of the
// format; both come back as "".
func (r *Rule) Reason() string {
	reason, _ := r.field(fieldReason)
	return reason
}

// Expires returns the raw expiry timestamp text of an ignore rule.
func (r *Rule) Expires() (string, bool) {
	return r.field(fieldExpires)
}

// ExpiresAt parses the expiry timestamp of an ignore rule.
// The second return value is false when the rule has no expiry.
func (r *Rule) ExpiresAt() (time.Time, bool, error) {
	raw, ok := r.field(fieldExpires)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, true, errors.NewPermanentf("invalid expires timestamp %q: %w", raw, err)
	}
	return t, true, nil
}

// Expired reports whether an ignore rule is void at the given instant.
// Rules without an expiry never expire; rules with an unparseable expiry are
// treated as expired so that a malformed timestamp cannot suppress forever.
func (r *Rule) Expired(now time.Time) bool {
	t, ok, err := r.ExpiresAt()
	if !ok {
		return false
	}
	if err != nil {
		return true
	}
	return t.Before(now)
}

// Patched returns the raw patched timestamp text of a patch rule.
func (r *Rule) Patched() (string, bool) {
	return r.field(fieldPatched)
}

// PatchedAt parses the patched timestamp of a patch rule.
func (r *Rule) PatchedAt() (time.Time, bool, error) {
	raw, ok := r.field(fieldPatched)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return time.Time{}, true, errors.NewPermanentf("invalid patched timestamp %q: %w", raw, err)
	}
	return t, true, nil
}

// NewDocument creates an empty policy document with the given schema version.
func NewDocument(version string) *Document {
	return &Document{
		Version:  version,
		topOrder: []string{keyVersion, keyIgnore, keyPatch},
		extras:   make(map[string]*extraEntry),
	}
}

// timestampLayouts are accepted for `expires` and `patched` values, most
// specific first. Scanner tooling writes RFC3339 with millisecond precision;
// hand-edited files commonly use date-only form.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			if layout == "2006-01-02" {
				// Date-only expiries cover the whole stated day.
				t = time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
			}
			if layout == "2006-01-02T15:04:05" {
				t = t.UTC()
			}
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func scalarNode(value string, style yaml.Style) *yaml.Node {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!str",
		Value: value,
		Style: style,
	}
}
