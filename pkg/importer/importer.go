// Package importer parses credential exports from other password managers
// into entry fields ready for vault insertion.
//
// Parsers are lenient where real exports are messy: they tolerate BOMs and
// sloppy quoting, decode the HTML entities LastPass leaves behind, and
// NFC-normalize all text so that visually identical names compare equal
// during duplicate detection. Rows that cannot become a vault entry (no
// username or password, secure notes, card data) are reported as skipped
// rather than failing the whole import.
package importer

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/mossfield13/passctl/pkg/vault"
)

// Source identifies an export format.
type Source string

const (
	// SourceNative is passctl's own JSON export.
	SourceNative Source = "passctl"
	// SourceBitwarden is the Bitwarden unencrypted JSON export.
	SourceBitwarden Source = "bitwarden"
	// SourceLastPass is the LastPass CSV export.
	SourceLastPass Source = "lastpass"
	// SourceChrome is the Chrome/Chromium password CSV export.
	SourceChrome Source = "chrome"
)

// Result holds everything a parser extracted from one export file.
type Result struct {
	// Entries are the parsed credentials, ready for validation and
	// insertion. Duplicate detection happens at insertion time, not here.
	Entries []vault.EntryFields

	// Warnings are non-fatal problems: malformed rows, undecodable TOTP
	// URIs, unknown custom field types.
	Warnings []string

	// Skipped are items that could not become vault entries, with reasons.
	Skipped []SkippedItem
}

// SkippedItem is one export item that was left out of the result.
type SkippedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Parser turns one export format into a Result.
type Parser interface {
	Parse(data []byte) (*Result, error)
	Source() Source
}

// GetParser returns the parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case SourceNative:
		return &NativeParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	case SourceChrome:
		return &ChromeParser{}, nil
	default:
		return nil, fmt.Errorf("importer: unsupported import source %q", source)
	}
}

// ValidSources lists the accepted source names for CLI help and validation.
func ValidSources() []string {
	return []string{
		string(SourceNative),
		string(SourceBitwarden),
		string(SourceLastPass),
		string(SourceChrome),
	}
}

// Normalize trims whitespace and applies Unicode NFC so that imported text
// compares equal regardless of how the source application composed it.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// FallbackSiteName names an entry whose export row has no title: the URL
// hostname when one exists, otherwise a positional placeholder.
func FallbackSiteName(rawURL string, counter int) string {
	if hostname := extractHostname(rawURL); hostname != "" {
		return hostname
	}
	return fmt.Sprintf("imported-item-%d", counter)
}

// extractHostname pulls the bare hostname out of a URL without requiring it
// to parse as RFC 3986; exports frequently hold scheme-less values.
func extractHostname(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if idx := strings.Index(s, "/"); idx != -1 {
		s = s[:idx]
	}
	if idx := strings.Index(s, ":"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimPrefix(s, "www.")
}

// DecodeHTMLEntities decodes the entities LastPass leaves in CSV exports.
// &amp; decodes last so that a literal "&amp;lt;" survives as "&lt;".
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// secretFromOTPAuth extracts the shared secret from a TOTP value that may be
// either a raw base32 string or a full otpauth:// URI (the form Bitwarden
// and 1Password export). A URI without a secret parameter reports !ok so the
// caller can warn and drop the TOTP while keeping the entry.
func secretFromOTPAuth(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(trimmed), "otpauth://") {
		return trimmed, true
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	secret := u.Query().Get("secret")
	if secret == "" {
		return "", false
	}
	return secret, true
}
