package policy

import (
	"reflect"
	"testing"
	"time"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single package",
			input: "minimist",
			want:  []string{"minimist"},
		},
		{
			name:  "chain",
			input: "mocha > mkdirp > minimist",
			want:  []string{"mocha", "mkdirp", "minimist"},
		},
		{
			name:  "uneven whitespace",
			input: "a>b >  c",
			want:  []string{"a", "b", "c"},
		},
		{
			name:  "wildcard",
			input: "*",
			want:  []string{"*"},
		},
		{
			name:  "empty",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePath(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePath(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestJoinPath(t *testing.T) {
	got := JoinPath([]string{"mocha", "mkdirp", "minimist"})
	if got != "mocha > mkdirp > minimist" {
		t.Errorf("JoinPath() = %q", got)
	}
}

func TestPathMatches(t *testing.T) {
	tests := []struct {
		name    string
		pattern []string
		chain   []string
		want    bool
	}{
		{
			name:    "exact match",
			pattern: []string{"a", "b", "c"},
			chain:   []string{"a", "b", "c"},
			want:    true,
		},
		{
			name:    "length mismatch",
			pattern: []string{"a", "b"},
			chain:   []string{"a", "b", "c"},
			want:    false,
		},
		{
			name:    "lone wildcard matches anything",
			pattern: []string{"*"},
			chain:   []string{"x", "y", "z"},
			want:    true,
		},
		{
			name:    "lone wildcard matches empty chain",
			pattern: []string{"*"},
			chain:   nil,
			want:    true,
		},
		{
			name:    "wildcard segment matches one package",
			pattern: []string{"a", "*", "c"},
			chain:   []string{"a", "anything", "c"},
			want:    true,
		},
		{
			name:    "trailing wildcard covers suffix",
			pattern: []string{"a", "*"},
			chain:   []string{"a", "b", "c", "d"},
			want:    true,
		},
		{
			name:    "trailing wildcard needs at least one more package",
			pattern: []string{"a", "*"},
			chain:   []string{"a"},
			want:    false,
		},
		{
			name:    "versioned pattern matches exact version",
			pattern: []string{"lodash@4.17.20"},
			chain:   []string{"lodash@4.17.20"},
			want:    true,
		},
		{
			name:    "versioned pattern rejects other version",
			pattern: []string{"lodash@4.17.20"},
			chain:   []string{"lodash@4.17.21"},
			want:    false,
		},
		{
			name:    "unversioned pattern matches any version",
			pattern: []string{"lodash"},
			chain:   []string{"lodash@4.17.21"},
			want:    true,
		},
		{
			name:    "scoped package keeps leading at sign",
			pattern: []string{"@scope/pkg"},
			chain:   []string{"@scope/pkg@1.0.0"},
			want:    true,
		},
		{
			name:    "different package",
			pattern: []string{"lodash"},
			chain:   []string{"underscore"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PathMatches(tt.pattern, tt.chain)
			if got != tt.want {
				t.Errorf("PathMatches(%v, %v) = %v, want %v", tt.pattern, tt.chain, got, tt.want)
			}
		})
	}
}

func TestMatchIgnore(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(30 * 24 * time.Hour)

	doc := NewDocument("v1.25.0")
	doc.AddIgnore("CVE-2024-0001", []string{"a", "b"}, "expired rule", &past)
	doc.AddIgnore("CVE-2024-0001", []string{"a", "b"}, "active rule", &future)
	doc.AddIgnore("CVE-2024-0002", []string{"c"}, "no expiry", nil)

	tests := []struct {
		name       string
		vulnID     string
		chain      []string
		wantMatch  bool
		wantReason string
	}{
		{
			name:       "expired rule skipped in favor of active one",
			vulnID:     "CVE-2024-0001",
			chain:      []string{"a", "b"},
			wantMatch:  true,
			wantReason: "active rule",
		},
		{
			name:      "chain not covered",
			vulnID:    "CVE-2024-0001",
			chain:     []string{"x"},
			wantMatch: false,
		},
		{
			name:       "rule without expiry never lapses",
			vulnID:     "CVE-2024-0002",
			chain:      []string{"c"},
			wantMatch:  true,
			wantReason: "no expiry",
		},
		{
			name:      "unknown vulnerability",
			vulnID:    "CVE-2024-9999",
			chain:     []string{"a", "b"},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := doc.MatchIgnore(tt.vulnID, tt.chain, now)
			if ok != tt.wantMatch {
				t.Fatalf("MatchIgnore() matched = %v, want %v", ok, tt.wantMatch)
			}
			if ok && rule.Reason() != tt.wantReason {
				t.Errorf("reason = %q, want %q", rule.Reason(), tt.wantReason)
			}
		})
	}
}

func TestMatchPatch(t *testing.T) {
	patched := time.Date(2019, 5, 31, 9, 30, 56, 0, time.UTC)

	doc := NewDocument("v1.25.0")
	doc.AddPatch("npm:ms:20170412", []string{"ms"}, patched)

	if _, ok := doc.MatchPatch("npm:ms:20170412", []string{"ms"}); !ok {
		t.Error("expected patch match")
	}
	if _, ok := doc.MatchPatch("npm:ms:20170412", []string{"express", "ms"}); ok {
		t.Error("patch should not cover a different chain")
	}
	if _, ok := doc.MatchPatch("CVE-2024-0001", []string{"ms"}); ok {
		t.Error("patch should not cover a different vulnerability")
	}
}

func TestAddIgnore_RoundTrips(t *testing.T) {
	expires := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	doc := NewDocument("v1.25.0")
	doc.AddIgnore("CVE-2024-0001", []string{"left-pad", "minimist"}, "Not reachable", &expires)
	doc.AddIgnore("CVE-2024-0001", []string{"*"}, "Wildcard fallback", nil)

	out, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	entry := reparsed.Ignore.Get("CVE-2024-0001")
	if entry == nil {
		t.Fatal("expected entry after round trip")
	}
	if len(entry.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(entry.Rules))
	}
	if entry.Rules[0].Reason() != "Not reachable" {
		t.Errorf("reason = %q", entry.Rules[0].Reason())
	}
	expiresAt, ok, err := entry.Rules[0].ExpiresAt()
	if !ok || err != nil {
		t.Fatalf("ExpiresAt() = %v, %v, %v", expiresAt, ok, err)
	}
	if !expiresAt.Equal(expires) {
		t.Errorf("expires = %v, want %v", expiresAt, expires)
	}
	if _, ok, _ := entry.Rules[1].ExpiresAt(); ok {
		t.Error("wildcard rule should have no expiry")
	}
}

func TestPrune(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(30 * 24 * time.Hour)

	doc := NewDocument("v1.25.0")
	doc.AddIgnore("CVE-2024-0001", []string{"a"}, "lapsed", &past)
	doc.AddIgnore("CVE-2024-0001", []string{"b"}, "still good", &future)
	doc.AddIgnore("CVE-2024-0002", []string{"c"}, "fully lapsed", &past)
	doc.AddPatch("npm:ms:20170412", []string{"ms"}, past)

	pruned := doc.Prune(now)

	if len(pruned) != 2 {
		t.Fatalf("pruned = %d rules, want 2", len(pruned))
	}
	if pruned[0].VulnID != "CVE-2024-0001" || pruned[0].Reason != "lapsed" {
		t.Errorf("pruned[0] = %+v", pruned[0])
	}
	if pruned[1].VulnID != "CVE-2024-0002" {
		t.Errorf("pruned[1] = %+v", pruned[1])
	}

	entry := doc.Ignore.Get("CVE-2024-0001")
	if entry == nil || len(entry.Rules) != 1 {
		t.Fatal("expected one surviving rule for CVE-2024-0001")
	}
	if entry.Rules[0].Reason() != "still good" {
		t.Errorf("survivor reason = %q", entry.Rules[0].Reason())
	}
	if doc.Ignore.Get("CVE-2024-0002") != nil {
		t.Error("identifier with no surviving rules should be removed")
	}
	if doc.Patch.Get("npm:ms:20170412") == nil {
		t.Error("patch records must never be pruned")
	}
}

func TestExpiring(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	doc := NewDocument("v1.25.0")
	soon := now.Add(5 * 24 * time.Hour)
	far := now.Add(90 * 24 * time.Hour)
	gone := now.Add(-24 * time.Hour)
	doc.AddIgnore("CVE-2024-0001", []string{"a"}, "lapsing soon", &soon)
	doc.AddIgnore("CVE-2024-0002", []string{"b"}, "far out", &far)
	doc.AddIgnore("CVE-2024-0003", []string{"c"}, "already gone", &gone)
	doc.AddIgnore("CVE-2024-0004", []string{"d"}, "forever", nil)

	expiring := doc.Expiring(30*24*time.Hour, now)

	if len(expiring) != 1 {
		t.Fatalf("expiring = %d, want 1: %+v", len(expiring), expiring)
	}
	if expiring[0].VulnID != "CVE-2024-0001" {
		t.Errorf("expiring vuln = %q", expiring[0].VulnID)
	}
	if expiring[0].DaysUntil != 5 {
		t.Errorf("days until = %d, want 5", expiring[0].DaysUntil)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "millisecond precision",
			input: "2024-06-01T10:30:00.000Z",
			want:  time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 with offset",
			input: "2024-06-01T10:30:00+02:00",
			want:  time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			name:  "date only covers the whole day",
			input: "2024-06-01",
			want:  time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC),
		},
		{
			name:  "no zone designator",
			input: "2024-06-01T10:30:00",
			want:  time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			name:    "garbage",
			input:   "next tuesday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("parseTimestamp() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimestamp() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
