package engine

import (
	"time"

	"github.com/mossfield13/passctl/pkg/importer"
	"github.com/mossfield13/passctl/pkg/vault"
)

// Meta carries caller context that ends up in audit records. A CLI caller
// leaves IP empty; a transport wrapper fills in what it knows.
type Meta struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// InitRequest creates the vault.
type InitRequest struct {
	MasterPassword string `json:"master_password"`
}

// InitResponse reports the outcome of initialization.
type InitResponse struct {
	Initialized bool `json:"initialized"`
}

// StatusResponse reports whether the vault exists yet.
type StatusResponse struct {
	Initialized bool `json:"initialized"`
}

// LoginRequest authenticates the master password.
type LoginRequest struct {
	MasterPassword string `json:"master_password"`
}

// LoginResponse carries the session token for subsequent operations.
type LoginResponse struct {
	Token string `json:"token"`
}

// EntryView is the outward shape of a decrypted entry. The raw TOTP secret
// never leaves the engine; callers only learn whether one exists.
type EntryView struct {
	ID           string            `json:"id"`
	SiteName     string            `json:"site_name"`
	URL          string            `json:"url,omitempty"`
	Username     string            `json:"username"`
	Password     string            `json:"password"`
	Notes        string            `json:"notes,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Favorite     bool              `json:"favorite"`
	HasTOTP      bool              `json:"has_totp"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// newEntryView projects a vault entry into its outward shape.
func newEntryView(e *vault.Entry) *EntryView {
	return &EntryView{
		ID:           e.ID,
		SiteName:     e.SiteName,
		URL:          e.URL,
		Username:     e.Username,
		Password:     e.Password,
		Notes:        e.Notes,
		CustomFields: e.CustomFields,
		Favorite:     e.Favorite,
		HasTOTP:      e.HasTOTP(),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// CreateEntryRequest holds the fields of a new entry.
type CreateEntryRequest struct {
	SiteName     string            `json:"site_name"`
	URL          string            `json:"url,omitempty"`
	Username     string            `json:"username"`
	Password     string            `json:"password"`
	Notes        string            `json:"notes,omitempty"`
	TOTPSecret   string            `json:"totp_secret,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Favorite     bool              `json:"favorite,omitempty"`
}

func (r CreateEntryRequest) fields() vault.EntryFields {
	return vault.EntryFields{
		SiteName:     r.SiteName,
		URL:          r.URL,
		Username:     r.Username,
		Password:     r.Password,
		Notes:        r.Notes,
		TOTPSecret:   r.TOTPSecret,
		CustomFields: r.CustomFields,
		Favorite:     r.Favorite,
	}
}

// UpdateEntryRequest is a partial update: nil pointers leave a field
// untouched, a pointer to the empty string clears an optional field, and a
// non-nil CustomFields replaces the whole map.
type UpdateEntryRequest struct {
	SiteName     *string           `json:"site_name,omitempty"`
	URL          *string           `json:"url,omitempty"`
	Username     *string           `json:"username,omitempty"`
	Password     *string           `json:"password,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
	TOTPSecret   *string           `json:"totp_secret,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Favorite     *bool             `json:"favorite,omitempty"`
}

func (r UpdateEntryRequest) changes() vault.EntryChanges {
	return vault.EntryChanges{
		SiteName:     r.SiteName,
		URL:          r.URL,
		Username:     r.Username,
		Password:     r.Password,
		Notes:        r.Notes,
		TOTPSecret:   r.TOTPSecret,
		CustomFields: r.CustomFields,
		Favorite:     r.Favorite,
	}
}

// TOTPResponse is one generated code and its time to live.
type TOTPResponse struct {
	Code             string `json:"code"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// ChangePasswordRequest rotates the master password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// BackupSettingsRequest replaces the backup schedule.
type BackupSettingsRequest struct {
	Enabled   bool   `json:"enabled"`
	Frequency string `json:"frequency"`
	KeepCount int    `json:"keep_count"`
}

// BackupRunResponse describes one completed backup run.
type BackupRunResponse struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Pruned int    `json:"pruned"`
}

// RestoreResponse names the snapshot that was installed and the safety copy
// of the replaced vault.
type RestoreResponse struct {
	Backup     string `json:"backup"`
	PreRestore string `json:"pre_restore"`
}

// GeneratePasswordRequest controls password generation. The zero value asks
// for the default length using all character classes.
type GeneratePasswordRequest struct {
	Length      int    `json:"length,omitempty"`
	NoLowercase bool   `json:"no_lowercase,omitempty"`
	NoUppercase bool   `json:"no_uppercase,omitempty"`
	NoDigits    bool   `json:"no_digits,omitempty"`
	NoSymbols   bool   `json:"no_symbols,omitempty"`
	Exclude     string `json:"exclude,omitempty"`
}

// GeneratePasswordResponse carries the generated password and its strength
// label.
type GeneratePasswordResponse struct {
	Password string `json:"password"`
	Strength string `json:"strength"`
}

// ExportPayload is the native JSON export document. It includes raw TOTP
// secrets: an export is a portability artifact the user explicitly asked
// for, not a display surface.
type ExportPayload struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Entries    []*vault.Entry `json:"entries"`
}

// ImportRequest carries an export file to replay into the vault.
type ImportRequest struct {
	// Source names the export format; empty means the native format.
	Source string `json:"source,omitempty"`
	Data   []byte `json:"data"`
}

// ImportResult counts what an import did.
type ImportResult struct {
	Imported int                    `json:"imported"`
	Skipped  []importer.SkippedItem `json:"skipped"`
	Warnings []string               `json:"warnings,omitempty"`
}
