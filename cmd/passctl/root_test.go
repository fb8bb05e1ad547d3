package main

import (
	"testing"

	"github.com/mossfield13/passctl/pkg/engine"
)

func TestParseCustomFields(t *testing.T) {
	tests := []struct {
		name        string
		pairs       []string
		expected    map[string]string
		expectError bool
	}{
		{
			name:     "no pairs",
			pairs:    nil,
			expected: nil,
		},
		{
			name:     "single pair",
			pairs:    []string{"pin=1234"},
			expected: map[string]string{"pin": "1234"},
		},
		{
			name:     "multiple pairs",
			pairs:    []string{"pin=1234", "branch=Main St"},
			expected: map[string]string{"pin": "1234", "branch": "Main St"},
		},
		{
			name:     "value containing equals",
			pairs:    []string{"recovery=a=b=c"},
			expected: map[string]string{"recovery": "a=b=c"},
		},
		{
			name:     "empty value",
			pairs:    []string{"pin="},
			expected: map[string]string{"pin": ""},
		},
		{
			name:        "missing equals",
			pairs:       []string{"pin1234"},
			expectError: true,
		},
		{
			name:        "empty name",
			pairs:       []string{"=1234"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := parseCustomFields(tt.pairs)

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(fields) != len(tt.expected) {
				t.Fatalf("got %d fields, want %d", len(fields), len(tt.expected))
			}
			for name, value := range tt.expected {
				if fields[name] != value {
					t.Errorf("field %q = %q, want %q", name, fields[name], value)
				}
			}
		})
	}
}

func TestEntryFlags(t *testing.T) {
	tests := []struct {
		name     string
		entry    engine.EntryView
		expected string
	}{
		{
			name:     "plain entry",
			entry:    engine.EntryView{},
			expected: "",
		},
		{
			name:     "favorite only",
			entry:    engine.EntryView{Favorite: true},
			expected: "favorite",
		},
		{
			name:     "totp only",
			entry:    engine.EntryView{HasTOTP: true},
			expected: "totp",
		},
		{
			name:     "favorite and totp",
			entry:    engine.EntryView{Favorite: true, HasTOTP: true},
			expected: "favorite,totp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := entryFlags(&tt.entry)
			if result != tt.expected {
				t.Errorf("entryFlags() = %q, want %q", result, tt.expected)
			}
		})
	}
}
