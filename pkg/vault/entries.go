package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mossfield13/passctl/pkg/crypto"
	"github.com/mossfield13/passctl/pkg/totp"
)

// Input validation limits for entry fields.
const (
	MaxSiteNameLength   = 256
	MaxURLLength        = 2048 // RFC 3986 practical bound
	MaxUsernameLength   = 256
	MaxPasswordLength   = 1024
	MaxNotesSize        = 10 * 1024
	MaxTOTPSecretLength = 256
	MaxCustomFieldsSize = 10 * 1024 // marshaled JSON
)

// Entry is one decrypted credential record. Plaintext exists only in
// memory during an authenticated operation; the store persists ciphertext.
type Entry struct {
	ID           string            `json:"id"`
	SiteName     string            `json:"site_name"`
	URL          string            `json:"url,omitempty"`
	Username     string            `json:"username"`
	Password     string            `json:"password"`
	Notes        string            `json:"notes,omitempty"`
	TOTPSecret   string            `json:"totp_secret,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Favorite     bool              `json:"favorite"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HasTOTP reports whether the entry carries a TOTP secret.
func (e *Entry) HasTOTP() bool {
	return e.TOTPSecret != ""
}

// EntryFields is the caller input for creating an entry.
type EntryFields struct {
	SiteName     string
	URL          string
	Username     string
	Password     string
	Notes        string
	TOTPSecret   string
	CustomFields map[string]string
	Favorite     bool
}

// EntryChanges is a partial update: nil pointers leave the field untouched,
// a pointer to the empty string clears an optional field. CustomFields
// replaces the whole map when non-nil.
type EntryChanges struct {
	SiteName     *string
	URL          *string
	Username     *string
	Password     *string
	Notes        *string
	TOTPSecret   *string
	CustomFields map[string]string
	Favorite     *bool
}

// CreateEntry validates, encrypts, and persists a new entry, returning the
// decrypted record for immediate display.
func (s *Store) CreateEntry(ctx context.Context, keys *crypto.KeySet, fields EntryFields) (*Entry, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireInitialized(ctx); err != nil {
		return nil, err
	}

	// Second precision matches the stored representation, so the returned
	// entry compares equal to a later read.
	now := time.Now().UTC().Truncate(time.Second)
	entry := &Entry{
		ID:           uuid.NewString(),
		SiteName:     fields.SiteName,
		URL:          fields.URL,
		Username:     fields.Username,
		Password:     fields.Password,
		Notes:        fields.Notes,
		TOTPSecret:   fields.TOTPSecret,
		CustomFields: fields.CustomFields,
		Favorite:     fields.Favorite,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	row, err := encryptEntry(keys, entry)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, site_name_enc, url_enc, username_enc, password_enc,
			notes_enc, totp_secret_enc, custom_fields_enc, favorite, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.id, row.siteName, row.url, row.username, row.password,
		row.notes, row.totpSecret, row.customFields, boolToInt(entry.Favorite),
		now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("vault: failed to insert entry: %w", err)
	}

	return entry, nil
}

// ListEntries decrypts every stored entry with the caller's keys. Any
// ciphertext that fails authentication makes the whole read fail with
// ErrAuthentication: the vault is unreadable under this key set.
func (s *Store) ListEntries(ctx context.Context, keys *crypto.KeySet) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadRows(ctx, s.db)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := decryptEntry(keys, row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetEntry decrypts a single entry by id.
func (s *Store) GetEntry(ctx context.Context, keys *crypto.KeySet, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntryLocked(ctx, keys, id)
}

func (s *Store) getEntryLocked(ctx context.Context, keys *crypto.KeySet, id string) (*Entry, error) {
	row, err := s.loadRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return decryptEntry(keys, row)
}

// UpdateEntry re-encrypts the changed fields of an entry and bumps
// updated_at. Unchanged ciphertext stays byte-identical.
func (s *Store) UpdateEntry(ctx context.Context, keys *crypto.KeySet, id string, changes EntryChanges) (*Entry, error) {
	if err := validateChanges(changes); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Confirm the target exists and the keys can read it before writing.
	if _, err := s.getEntryLocked(ctx, keys, id); err != nil {
		return nil, err
	}

	assignments := make([]string, 0, 8)
	args := make([]any, 0, 9)

	appendEncrypted := func(column string, value string, optional bool) error {
		blob, err := encryptField(keys.Entry, value, optional)
		if err != nil {
			return err
		}
		assignments = append(assignments, column+" = ?")
		args = append(args, blob)
		return nil
	}

	if changes.SiteName != nil {
		if err := appendEncrypted("site_name_enc", *changes.SiteName, false); err != nil {
			return nil, err
		}
	}
	if changes.URL != nil {
		if err := appendEncrypted("url_enc", *changes.URL, true); err != nil {
			return nil, err
		}
	}
	if changes.Username != nil {
		if err := appendEncrypted("username_enc", *changes.Username, false); err != nil {
			return nil, err
		}
	}
	if changes.Password != nil {
		if err := appendEncrypted("password_enc", *changes.Password, false); err != nil {
			return nil, err
		}
	}
	if changes.Notes != nil {
		if err := appendEncrypted("notes_enc", *changes.Notes, true); err != nil {
			return nil, err
		}
	}
	if changes.TOTPSecret != nil {
		if err := appendEncrypted("totp_secret_enc", *changes.TOTPSecret, true); err != nil {
			return nil, err
		}
	}
	if changes.CustomFields != nil {
		blob, err := encryptCustomFields(keys.Entry, changes.CustomFields)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, "custom_fields_enc = ?")
		args = append(args, blob)
	}
	if changes.Favorite != nil {
		assignments = append(assignments, "favorite = ?")
		args = append(args, boolToInt(*changes.Favorite))
	}

	if len(assignments) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrValidation)
	}

	assignments = append(assignments, "updated_at = ?")
	args = append(args, time.Now().UTC().Unix(), id)

	query := "UPDATE entries SET " + strings.Join(assignments, ", ") + " WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to update entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("vault: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrEntryNotFound
	}

	return s.getEntryLocked(ctx, keys, id)
}

// DeleteEntry removes an entry permanently.
func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("vault: failed to delete entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("vault: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// CountEntries returns the number of stored entries without decrypting.
func (s *Store) CountEntries(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("vault: failed to count entries: %w", err)
	}
	return n, nil
}

func (s *Store) requireInitialized(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault_meta`).Scan(&n); err != nil {
		return fmt.Errorf("vault: failed to query metadata: %w", err)
	}
	if n == 0 {
		return ErrNotInitialized
	}
	return nil
}

// encRow is the ciphertext shape of one entries row.
type encRow struct {
	id           string
	siteName     []byte
	url          []byte
	username     []byte
	password     []byte
	notes        []byte
	totpSecret   []byte
	customFields []byte
	favorite     int
	createdAt    int64
	updatedAt    int64
}

const entryColumns = `id, site_name_enc, url_enc, username_enc, password_enc,
	notes_enc, totp_secret_enc, custom_fields_enc, favorite, created_at, updated_at`

func (s *Store) loadRow(ctx context.Context, id string) (*encRow, error) {
	row := &encRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id).Scan(
		&row.id, &row.siteName, &row.url, &row.username, &row.password,
		&row.notes, &row.totpSecret, &row.customFields, &row.favorite,
		&row.createdAt, &row.updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to load entry: %w", err)
	}
	return row, nil
}

func (s *Store) loadRows(ctx context.Context, q querier) ([]*encRow, error) {
	// rowid breaks created_at ties in insertion order.
	rows, err := q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to query entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []*encRow
	for rows.Next() {
		row := &encRow{}
		if err := rows.Scan(
			&row.id, &row.siteName, &row.url, &row.username, &row.password,
			&row.notes, &row.totpSecret, &row.customFields, &row.favorite,
			&row.createdAt, &row.updatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan entry row: %v", ErrCorrupted, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vault: entry iteration failed: %w", err)
	}
	return out, nil
}

// encryptEntry produces the ciphertext row for a decrypted entry.
func encryptEntry(keys *crypto.KeySet, e *Entry) (*encRow, error) {
	row := &encRow{
		id:        e.ID,
		favorite:  boolToInt(e.Favorite),
		createdAt: e.CreatedAt.Unix(),
		updatedAt: e.UpdatedAt.Unix(),
	}

	var err error
	if row.siteName, err = encryptField(keys.Entry, e.SiteName, false); err != nil {
		return nil, err
	}
	if row.url, err = encryptField(keys.Entry, e.URL, true); err != nil {
		return nil, err
	}
	if row.username, err = encryptField(keys.Entry, e.Username, false); err != nil {
		return nil, err
	}
	if row.password, err = encryptField(keys.Entry, e.Password, false); err != nil {
		return nil, err
	}
	if row.notes, err = encryptField(keys.Entry, e.Notes, true); err != nil {
		return nil, err
	}
	if row.totpSecret, err = encryptField(keys.Entry, e.TOTPSecret, true); err != nil {
		return nil, err
	}
	if row.customFields, err = encryptCustomFields(keys.Entry, e.CustomFields); err != nil {
		return nil, err
	}
	return row, nil
}

// decryptEntry reverses encryptEntry. AEAD failures surface as
// ErrAuthentication; structural damage surfaces as ErrCorrupted.
func decryptEntry(keys *crypto.KeySet, row *encRow) (*Entry, error) {
	entry := &Entry{
		ID:        row.id,
		Favorite:  intToBool(row.favorite),
		CreatedAt: time.Unix(row.createdAt, 0).UTC(),
		UpdatedAt: time.Unix(row.updatedAt, 0).UTC(),
	}

	var err error
	if entry.SiteName, err = decryptField(keys.Entry, row.siteName); err != nil {
		return nil, err
	}
	if entry.URL, err = decryptField(keys.Entry, row.url); err != nil {
		return nil, err
	}
	if entry.Username, err = decryptField(keys.Entry, row.username); err != nil {
		return nil, err
	}
	if entry.Password, err = decryptField(keys.Entry, row.password); err != nil {
		return nil, err
	}
	if entry.Notes, err = decryptField(keys.Entry, row.notes); err != nil {
		return nil, err
	}
	if entry.TOTPSecret, err = decryptField(keys.Entry, row.totpSecret); err != nil {
		return nil, err
	}

	if row.customFields != nil {
		raw, err := decryptField(keys.Entry, row.customFields)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &entry.CustomFields); err != nil {
			return nil, fmt.Errorf("%w: malformed custom fields: %v", ErrCorrupted, err)
		}
	}
	return entry, nil
}

// encryptField seals one field value. Optional empty fields are stored as
// NULL rather than as ciphertext of the empty string.
func encryptField(key []byte, value string, optional bool) ([]byte, error) {
	if value == "" && optional {
		return nil, nil
	}
	blob, err := crypto.Encrypt(key, []byte(value))
	if err != nil {
		return nil, fmt.Errorf("vault: failed to encrypt field: %w", err)
	}
	return blob, nil
}

// decryptField opens one field blob; nil means an absent optional field.
func decryptField(key, blob []byte) (string, error) {
	if blob == nil {
		return "", nil
	}
	plaintext, err := crypto.Decrypt(key, blob)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrCiphertextTooShort) {
			return "", ErrAuthentication
		}
		return "", fmt.Errorf("vault: failed to decrypt field: %w", err)
	}
	return string(plaintext), nil
}

// encryptCustomFields marshals and seals the custom field map; empty maps
// are stored as NULL.
func encryptCustomFields(key []byte, fields map[string]string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to marshal custom fields: %w", err)
	}
	if len(raw) > MaxCustomFieldsSize {
		return nil, fmt.Errorf("%w: custom fields exceed %d bytes", ErrValidation, MaxCustomFieldsSize)
	}
	return encryptField(key, string(raw), false)
}

// validateFields enforces the create-time contract.
func validateFields(f EntryFields) error {
	if f.SiteName == "" {
		return fmt.Errorf("%w: site_name is required", ErrValidation)
	}
	if f.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if f.Password == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	return validateLimits(f.SiteName, f.URL, f.Username, f.Password, f.Notes, f.TOTPSecret)
}

// validateChanges enforces the update-time contract on provided fields.
func validateChanges(ch EntryChanges) error {
	if ch.SiteName != nil && *ch.SiteName == "" {
		return fmt.Errorf("%w: site_name cannot be empty", ErrValidation)
	}
	if ch.Username != nil && *ch.Username == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrValidation)
	}
	if ch.Password != nil && *ch.Password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrValidation)
	}

	get := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return validateLimits(get(ch.SiteName), get(ch.URL), get(ch.Username),
		get(ch.Password), get(ch.Notes), get(ch.TOTPSecret))
}

func validateLimits(siteName, url, username, password, notes, totpSecret string) error {
	switch {
	case len(siteName) > MaxSiteNameLength:
		return fmt.Errorf("%w: site_name exceeds %d characters", ErrValidation, MaxSiteNameLength)
	case len(url) > MaxURLLength:
		return fmt.Errorf("%w: url exceeds %d characters", ErrValidation, MaxURLLength)
	case len(username) > MaxUsernameLength:
		return fmt.Errorf("%w: username exceeds %d characters", ErrValidation, MaxUsernameLength)
	case len(password) > MaxPasswordLength:
		return fmt.Errorf("%w: password exceeds %d characters", ErrValidation, MaxPasswordLength)
	case len(notes) > MaxNotesSize:
		return fmt.Errorf("%w: notes exceed %d bytes", ErrValidation, MaxNotesSize)
	case len(totpSecret) > MaxTOTPSecretLength:
		return fmt.Errorf("%w: totp_secret exceeds %d characters", ErrValidation, MaxTOTPSecretLength)
	}

	if totpSecret != "" {
		if err := totp.Validate(totpSecret); err != nil {
			return fmt.Errorf("%w: totp_secret is not a valid base32 secret", ErrValidation)
		}
	}
	return nil
}
