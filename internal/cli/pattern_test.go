package cli

import (
	"testing"
)

func TestSiteFilter(t *testing.T) {
	names := []string{
		"github.com",
		"gitlab.com",
		"GitHub Enterprise",
		"bank.example.com",
		"news.ycombinator.com",
	}

	tests := []struct {
		name     string
		pattern  string
		expected []string
		wantErr  bool
	}{
		{
			name:     "empty pattern matches all",
			pattern:  "",
			expected: names,
		},
		{
			name:     "prefix glob",
			pattern:  "git*",
			expected: []string{"github.com", "gitlab.com", "GitHub Enterprise"},
		},
		{
			name:     "suffix glob",
			pattern:  "*.com",
			expected: []string{"github.com", "gitlab.com", "bank.example.com", "news.ycombinator.com"},
		},
		{
			name:     "question mark",
			pattern:  "git?ub.com",
			expected: []string{"github.com"},
		},
		{
			name:     "glob is case-insensitive",
			pattern:  "GITHUB*",
			expected: []string{"github.com", "GitHub Enterprise"},
		},
		{
			name:     "plain text matches as substring",
			pattern:  "bank",
			expected: []string{"bank.example.com"},
		},
		{
			name:     "substring is case-insensitive",
			pattern:  "HUB",
			expected: []string{"github.com", "GitHub Enterprise"},
		},
		{
			name:     "no matches yields empty",
			pattern:  "nonexistent*",
			expected: nil,
		},
		{
			name:    "invalid pattern",
			pattern: "[oops",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter, err := NewSiteFilter(tc.pattern)

			if tc.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			var matches []string
			for _, name := range names {
				if filter.Match(name) {
					matches = append(matches, name)
				}
			}

			if len(matches) != len(tc.expected) {
				t.Errorf("got %v, want %v", matches, tc.expected)
				return
			}
			for i, exp := range tc.expected {
				if matches[i] != exp {
					t.Errorf("position %d: got %s, want %s", i, matches[i], exp)
				}
			}
		})
	}
}

func TestMapKeys(t *testing.T) {
	m := map[string]string{"zone": "a", "account": "b", "pin": "c"}
	result := MapKeys(m)

	expected := []string{"account", "pin", "zone"}
	if len(result) != len(expected) {
		t.Fatalf("got %d keys, want %d", len(result), len(expected))
	}
	for i, v := range result {
		if v != expected[i] {
			t.Errorf("position %d: got %s, want %s", i, v, expected[i])
		}
	}
}
