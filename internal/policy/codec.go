package policy

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cfarm/ccp-test/internal/errors"
)

// Parse decodes a policy document from YAML bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewPermanentf("failed to parse policy YAML: %w", err)
	}
	return &doc, nil
}

// Load reads and parses a policy file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ClassifyFileError(path, fmt.Errorf("failed to read policy file: %w", err))
	}
	return Parse(data)
}

// Encode serializes the document back to YAML, preserving authored key
// order, sequence order and scalar styles.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, errors.NewPermanentf("failed to encode policy document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewPermanentf("failed to finalize policy document: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to a file.
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.ClassifyFileError(path, fmt.Errorf("failed to write policy file: %w", err))
	}
	return nil
}

// UnmarshalYAML decodes the document from its root mapping node.
func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("policy document must be a mapping, got %v", kindName(value.Kind))
	}

	d.extras = make(map[string]*extraEntry)
	d.topOrder = nil

	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		val := value.Content[i+1]
		d.topOrder = append(d.topOrder, key.Value)

		switch key.Value {
		case keyVersion:
			d.Version = val.Value
			d.versionNode = val
		case keyIgnore:
			section, err := decodeSection(val)
			if err != nil {
				return fmt.Errorf("ignore: %w", err)
			}
			d.Ignore = section
		case keyPatch:
			section, err := decodeSection(val)
			if err != nil {
				return fmt.Errorf("patch: %w", err)
			}
			d.Patch = section
		default:
			// Extension keys (x-gate and friends) and anything else the
			// external scanner may add are preserved verbatim.
			d.extras[key.Value] = &extraEntry{keyNode: key, valueNode: val}
		}
	}

	return nil
}

func decodeSection(node *yaml.Node) (Section, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected mapping of vulnerability identifiers, got %v", kindName(node.Kind))
	}

	var section Section
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]

		entry := &Entry{
			ID:      key.Value,
			keyNode: key,
		}

		if val.Kind == yaml.ScalarNode && val.Tag == "!!null" {
			section = append(section, entry)
			continue
		}
		if val.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%s: expected sequence of rules, got %v", key.Value, kindName(val.Kind))
		}
		entry.seqStyle = val.Style

		for _, item := range val.Content {
			rule, err := decodeRule(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key.Value, err)
			}
			entry.Rules = append(entry.Rules, rule)
		}

		section = append(section, entry)
	}

	return section, nil
}

func decodeRule(node *yaml.Node) (*Rule, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return nil, fmt.Errorf("rule entry must be a single-key mapping of dependency path to rule")
	}

	pathKey := node.Content[0]
	body := node.Content[1]

	rule := &Rule{
		Path:     ParsePath(pathKey.Value),
		pathNode: pathKey,
	}

	if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
		return rule, nil
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: rule body must be a mapping, got %v", pathKey.Value, kindName(body.Kind))
	}
	rule.mapStyle = body.Style

	for i := 0; i+1 < len(body.Content); i += 2 {
		rule.fields = append(rule.fields, ruleField{
			key:       body.Content[i].Value,
			keyNode:   body.Content[i],
			valueNode: body.Content[i+1],
		})
	}

	return rule, nil
}

// MarshalYAML rebuilds the YAML node tree from the model, reusing retained
// nodes so styles and comments survive the round trip.
func (d *Document) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	order := d.topOrder
	if len(order) == 0 {
		order = []string{keyVersion, keyIgnore, keyPatch}
	}

	for _, key := range order {
		switch key {
		case keyVersion:
			vnode := d.versionNode
			if vnode == nil || vnode.Value != d.Version {
				vnode = scalarNode(d.Version, 0)
			}
			root.Content = append(root.Content, scalarNode(keyVersion, 0), vnode)
		case keyIgnore:
			root.Content = append(root.Content, scalarNode(keyIgnore, 0), encodeSection(d.Ignore))
		case keyPatch:
			root.Content = append(root.Content, scalarNode(keyPatch, 0), encodeSection(d.Patch))
		default:
			extra, ok := d.extras[key]
			if !ok {
				continue
			}
			root.Content = append(root.Content, extra.keyNode, extra.valueNode)
		}
	}

	return root, nil
}

func encodeSection(section Section) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, entry := range section {
		key := entry.keyNode
		if key == nil || key.Value != entry.ID {
			key = scalarNode(entry.ID, yaml.SingleQuotedStyle)
		}

		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: entry.seqStyle}
		for _, rule := range entry.Rules {
			seq.Content = append(seq.Content, encodeRule(rule))
		}

		node.Content = append(node.Content, key, seq)
	}
	return node
}

func encodeRule(rule *Rule) *yaml.Node {
	// Keep the authored key text and quote style as long as the path
	// itself was not mutated, even when it is spelled without the
	// canonical " > " spacing.
	pathKey := rule.pathNode
	if pathKey == nil || !slices.Equal(ParsePath(pathKey.Value), rule.Path) {
		pathKey = scalarNode(JoinPath(rule.Path), 0)
	}

	body := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Style: rule.mapStyle}
	for _, f := range rule.fields {
		keyNode := f.keyNode
		if keyNode == nil {
			keyNode = scalarNode(f.key, 0)
		}
		body.Content = append(body.Content, keyNode, f.valueNode)
	}

	return &yaml.Node{
		Kind:    yaml.MappingNode,
		Tag:     "!!map",
		Content: []*yaml.Node{pathKey, body},
	}
}

// Validate checks the schema-level invariants of the document: non-empty
// identifiers, non-empty dependency paths, and parseable timestamps.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Version) == "" {
		return errors.NewPermanentf("policy document has no version")
	}

	for _, entry := range d.Ignore {
		if err := validateEntry(entry, false); err != nil {
			return errors.NewPermanentf("ignore: %w", err)
		}
	}
	for _, entry := range d.Patch {
		if err := validateEntry(entry, true); err != nil {
			return errors.NewPermanentf("patch: %w", err)
		}
	}

	return nil
}

func validateEntry(entry *Entry, isPatch bool) error {
	if strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("empty vulnerability identifier")
	}

	for i, rule := range entry.Rules {
		if len(rule.Path) == 0 {
			return fmt.Errorf("%s: rule %d has an empty dependency path", entry.ID, i)
		}
		for _, seg := range rule.Path {
			if strings.TrimSpace(seg) == "" {
				return fmt.Errorf("%s: rule %d has an empty package name in its path", entry.ID, i)
			}
		}

		if isPatch {
			if _, ok, err := rule.PatchedAt(); err != nil {
				return fmt.Errorf("%s: rule %d: %w", entry.ID, i, err)
			} else if !ok {
				return fmt.Errorf("%s: rule %d has no patched timestamp", entry.ID, i)
			}
			continue
		}

		if _, _, err := rule.ExpiresAt(); err != nil {
			return fmt.Errorf("%s: rule %d: %w", entry.ID, i, err)
		}
	}

	return nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
