package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mossfield13/passctl/pkg/vault"
)

// ChromeParser parses Chrome/Chromium password CSV exports with the column
// layout name,url,username,password,note. The note column only exists in
// exports from Chrome 102 and later, so it is optional.
type ChromeParser struct{}

// Chrome CSV column names.
const (
	chromeColName     = "name"
	chromeColURL      = "url"
	chromeColUsername = "username"
	chromeColPassword = "password"
	chromeColNote     = "note"
)

// Source returns the source type for this parser.
func (p *ChromeParser) Source() Source {
	return SourceChrome
}

// Parse parses Chrome CSV data.
func (p *ChromeParser) Parse(data []byte) (*Result, error) {
	result := &Result{
		Entries:  make([]vault.EntryFields, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{chromeColURL, chromeColUsername, chromeColPassword} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("importer: missing required column %q", required)
		}
	}

	itemCounter := 1
	rowNum := 1 // header is row 1
	for {
		rowNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: failed to parse: %v", rowNum, err))
			continue
		}
		if len(row) != len(header) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)",
					rowNum, len(header), len(row)))
			continue
		}

		getValue := func(col string) string {
			if idx, ok := colIndex[col]; ok && idx < len(row) {
				return Normalize(row[idx])
			}
			return ""
		}

		fields := vault.EntryFields{
			SiteName: getValue(chromeColName),
			URL:      getValue(chromeColURL),
			Username: getValue(chromeColUsername),
			Password: getValue(chromeColPassword),
			Notes:    getValue(chromeColNote),
		}
		if fields.SiteName == "" {
			fields.SiteName = FallbackSiteName(fields.URL, itemCounter)
			itemCounter++
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
