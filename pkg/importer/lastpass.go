package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mossfield13/passctl/pkg/vault"
)

// LastPassParser parses LastPass CSV export files with the column layout
// url,username,password,totp,extra,name,grouping,fav. Columns are located
// by header name, so reordered or extended exports still parse.
type LastPassParser struct{}

// LastPass CSV column names.
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
	lpColFav      = "fav"
)

// lastPassSecureNoteURL marks secure-note rows in LastPass exports.
const lastPassSecureNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte) (*Result, error) {
	result := &Result{
		Entries:  make([]vault.EntryFields, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // real exports contain stray quotes
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{lpColName, lpColURL, lpColPassword} {
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
		p.parseRow(row, colIndex, result, rowNum, &itemCounter)
	}

	return result, nil
}

// parseRow converts one CSV row, appending to the result's entries, skips,
// or warnings as appropriate.
func (p *LastPassParser) parseRow(row []string, colIndex map[string]int, result *Result, rowNum int, itemCounter *int) {
	getValue := func(col string) string {
		if idx, ok := colIndex[col]; ok && idx < len(row) {
			// LastPass HTML-encodes special characters in some exports.
			return Normalize(DecodeHTMLEntities(row[idx]))
		}
		return ""
	}

	name := getValue(lpColName)
	rawURL := getValue(lpColURL)

	if rawURL == lastPassSecureNoteURL {
		result.Skipped = append(result.Skipped, SkippedItem{
			Name:   name,
			Reason: "secure notes carry no login credentials",
		})
		return
	}

	fields := vault.EntryFields{
		SiteName: name,
		URL:      rawURL,
		Username: getValue(lpColUsername),
		Password: getValue(lpColPassword),
		Notes:    getValue(lpColExtra),
		Favorite: getValue(lpColFav) == "1",
	}
	if fields.SiteName == "" {
		fields.SiteName = FallbackSiteName(rawURL, *itemCounter)
		*itemCounter++
	}
	if fields.Username == "" || fields.Password == "" {
		result.Skipped = append(result.Skipped, SkippedItem{
			Name:   fields.SiteName,
			Reason: "missing username or password",
		})
		return
	}

	if raw := getValue(lpColTOTP); raw != "" {
		secret, ok := secretFromOTPAuth(raw)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("row %d: otpauth URI has no extractable secret, TOTP dropped", rowNum))
		}
		fields.TOTPSecret = secret
	}

	// The folder path survives as a custom field; the vault has no
	// grouping of its own.
	if grouping := getValue(lpColGrouping); grouping != "" {
		fields.CustomFields = map[string]string{"folder": grouping}
	}

	result.Entries = append(result.Entries, fields)
}
