package importer

import (
	"encoding/json"
	"fmt"

	"github.com/mossfield13/passctl/pkg/vault"
)

// NativeParser parses passctl's own JSON export, so a vault exported on one
// machine can be replayed into a fresh vault on another.
type NativeParser struct{}

// nativeExportVersion is the highest export format version this build reads.
const nativeExportVersion = 1

// nativeExport mirrors the wire shape of an export payload. Only the fields
// the import needs are declared; extra keys like exported_at are ignored.
type nativeExport struct {
	Version int           `json:"version"`
	Entries []nativeEntry `json:"entries"`
}

type nativeEntry struct {
	SiteName     string            `json:"site_name"`
	URL          string            `json:"url"`
	Username     string            `json:"username"`
	Password     string            `json:"password"`
	Notes        string            `json:"notes"`
	TOTPSecret   string            `json:"totp_secret"`
	CustomFields map[string]string `json:"custom_fields"`
	Favorite     bool              `json:"favorite"`
}

// Source returns the source type for this parser.
func (p *NativeParser) Source() Source {
	return SourceNative
}

// Parse parses a passctl JSON export.
func (p *NativeParser) Parse(data []byte) (*Result, error) {
	result := &Result{
		Entries:  make([]vault.EntryFields, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}

	var export nativeExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("importer: failed to parse export JSON: %w", err)
	}
	if export.Version > nativeExportVersion {
		return nil, fmt.Errorf("importer: export version %d is newer than this build supports (%d)",
			export.Version, nativeExportVersion)
	}

	for i, e := range export.Entries {
		fields := vault.EntryFields{
			SiteName:     Normalize(e.SiteName),
			URL:          Normalize(e.URL),
			Username:     Normalize(e.Username),
			Password:     e.Password,
			Notes:        e.Notes,
			TOTPSecret:   Normalize(e.TOTPSecret),
			CustomFields: e.CustomFields,
			Favorite:     e.Favorite,
		}
		if fields.SiteName == "" {
			fields.SiteName = FallbackSiteName(fields.URL, i+1)
		}
		if fields.Username == "" || fields.Password == "" {
			result.Skipped = append(result.Skipped, SkippedItem{
				Name:   fields.SiteName,
				Reason: "missing username or password",
			})
			continue
		}
		result.Entries = append(result.Entries, fields)
	}

	return result, nil
}
