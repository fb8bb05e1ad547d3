// Package cli provides shared helpers for passctl commands.
package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// SiteFilter matches entry site names against a --filter argument.
// Patterns containing glob characters (*?[) use filepath.Match syntax;
// anything else matches as a substring. Matching is case-insensitive
// either way, and the empty pattern matches every name.
type SiteFilter struct {
	pattern string
	glob    bool
}

// NewSiteFilter compiles a filter, rejecting malformed glob syntax.
func NewSiteFilter(pattern string) (*SiteFilter, error) {
	lowered := strings.ToLower(pattern)
	if _, err := filepath.Match(lowered, ""); err != nil {
		return nil, fmt.Errorf("invalid filter '%s': %w", pattern, err)
	}
	return &SiteFilter{
		pattern: lowered,
		glob:    strings.ContainsAny(lowered, "*?["),
	}, nil
}

// Match reports whether a site name passes the filter.
func (f *SiteFilter) Match(name string) bool {
	if f.pattern == "" {
		return true
	}
	lowered := strings.ToLower(name)
	if f.glob {
		// Pattern syntax was validated in NewSiteFilter.
		ok, _ := filepath.Match(f.pattern, lowered)
		return ok
	}
	return strings.Contains(lowered, f.pattern)
}

// MapKeys extracts keys from a map and returns them sorted.
func MapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
