package importer

import (
	"encoding/json"
	"fmt"

	"github.com/mossfield13/passctl/pkg/vault"
)

// BitwardenParser parses Bitwarden unencrypted JSON export files.
type BitwardenParser struct{}

// Bitwarden item types. Only logins carry credentials the vault can hold;
// the other types are reported as skipped.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
	bitwardenFieldLinked  = 3
)

// bitwardenExport is the top-level export structure.
type bitwardenExport struct {
	Items []bitwardenItem `json:"items"`
}

// bitwardenItem is one vault item.
type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	Favorite bool                   `json:"favorite"`
	Login    *bitwardenLogin        `json:"login"`
	Fields   []bitwardenCustomField `json:"fields"`
}

// bitwardenLogin is the credential block of a login item.
type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

// bitwardenURI is one of a login's associated URIs.
type bitwardenURI struct {
	URI string `json:"uri"`
}

// bitwardenCustomField is a user-defined field on any item.
type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte) (*Result, error) {
	result := &Result{
		Entries:  make([]vault.EntryFields, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}

	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("importer: failed to parse Bitwarden JSON: %w", err)
	}

	itemCounter := 1
	for i := range export.Items {
		item := &export.Items[i]

		if reason := skipReason(item); reason != "" {
			result.Skipped = append(result.Skipped, SkippedItem{
				Name:   Normalize(item.Name),
				Reason: reason,
			})
			continue
		}

		fields, warnings := p.parseLogin(item, &itemCounter)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): %s", i+1, item.Name, w))
		}
		result.Entries = append(result.Entries, fields)
	}

	return result, nil
}

// skipReason reports why an item cannot become a vault entry, or "" when it
// can.
func skipReason(item *bitwardenItem) string {
	switch item.Type {
	case bitwardenTypeLogin:
	case bitwardenTypeSecureNote:
		return "secure notes carry no login credentials"
	case bitwardenTypeCard:
		return "card items are not supported"
	case bitwardenTypeIdentity:
		return "identity items are not supported"
	default:
		return fmt.Sprintf("unknown item type %d", item.Type)
	}
	if item.Login == nil || item.Login.Username == "" || item.Login.Password == "" {
		return "missing username or password"
	}
	return ""
}

// parseLogin converts one login item; skipReason has already vetted it.
func (p *BitwardenParser) parseLogin(item *bitwardenItem, itemCounter *int) (vault.EntryFields, []string) {
	login := item.Login
	var warnings []string

	fields := vault.EntryFields{
		SiteName: Normalize(item.Name),
		Username: Normalize(login.Username),
		Password: login.Password,
		Notes:    item.Notes,
		Favorite: item.Favorite,
	}

	if len(login.URIs) > 0 {
		fields.URL = Normalize(login.URIs[0].URI)
	}
	if fields.SiteName == "" {
		fields.SiteName = FallbackSiteName(fields.URL, *itemCounter)
		*itemCounter++
	}

	if login.TOTP != "" {
		secret, ok := secretFromOTPAuth(login.TOTP)
		if !ok {
			warnings = append(warnings, "otpauth URI has no extractable secret, TOTP dropped")
		}
		fields.TOTPSecret = Normalize(secret)
	}

	custom := make(map[string]string)
	// Secondary URIs survive as custom fields so nothing is silently lost.
	for i := 1; i < len(login.URIs); i++ {
		if uri := Normalize(login.URIs[i].URI); uri != "" {
			custom[fmt.Sprintf("url_%d", i+1)] = uri
		}
	}
	for _, cf := range item.Fields {
		switch cf.Type {
		case bitwardenFieldText, bitwardenFieldHidden, bitwardenFieldBoolean:
			name := Normalize(cf.Name)
			if name == "" {
				name = "custom_field"
			}
			custom[name] = cf.Value
		case bitwardenFieldLinked:
			warnings = append(warnings, fmt.Sprintf("linked field %q dropped", cf.Name))
		default:
			warnings = append(warnings, fmt.Sprintf("custom field %q has unknown type %d, dropped", cf.Name, cf.Type))
		}
	}
	if len(custom) > 0 {
		fields.CustomFields = custom
	}

	return fields, warnings
}
