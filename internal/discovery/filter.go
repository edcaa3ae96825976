package discovery

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Exclusions holds the lower-cased excluded contract and test names.
// A name is excluded when it occurs, case-insensitively, inside any configured entry.
type Exclusions struct {
	groups []string
	cases  []string
}

// NewExclusions builds Exclusions from the configured lists
func NewExclusions(groups, cases []string) Exclusions {
	return Exclusions{groups: lowerAll(groups), cases: lowerAll(cases)}
}

// ExcludesGroup reports whether a contract name is excluded
func (e Exclusions) ExcludesGroup(name string) bool {
	return containedIn(e.groups, name)
}

// ExcludesCase reports whether a test name is excluded
func (e Exclusions) ExcludesCase(name string) bool {
	return containedIn(e.cases, name)
}

func containedIn(entries []string, name string) bool {
	if name == "" {
		return false
	}
	name = strings.ToLower(name)
	for _, entry := range entries {
		if strings.Contains(entry, name) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

// Filter filters test files by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName keeps the files whose base name matches pattern.
// Patterns with wildcards ("*Vault*.t.sol", "Counter?.t.sol") are globs, falling back to
// an ordered match of the literal parts; plain patterns are substrings.
func (f *Filter) FilterByName(tests []string, pattern string) []string {
	if pattern == "" {
		return tests
	}

	var filtered []string
	for _, test := range tests {
		if matchName(pattern, filepath.Base(test)) {
			filtered = append(filtered, test)
		}
	}
	return filtered
}

func matchName(pattern, name string) bool {
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}
	if ok, err := doublestar.Match(pattern, name); err == nil && ok {
		return true
	}

	rest := name
	matchedAny := false
	for _, part := range strings.FieldsFunc(pattern, func(r rune) bool { return r == '*' || r == '?' }) {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
		matchedAny = true
	}
	return matchedAny
}
