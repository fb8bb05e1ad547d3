// Package engine exposes the vault as a request/response surface: tagged
// request types in, tagged responses out, with session resolution, audit
// mirroring, and error mapping handled in one place. Transport wrappers
// convert their protocol into these calls and never touch the storage or
// crypto packages directly.
//
// Every authenticated operation resolves the session token first, which
// also enforces idle expiry. Mutations are refused once storage corruption
// has been observed; restoring a backup is the recovery path and clears
// that state.
package engine

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mossfield13/passctl/pkg/audit"
	"github.com/mossfield13/passctl/pkg/backup"
	"github.com/mossfield13/passctl/pkg/crypto"
	"github.com/mossfield13/passctl/pkg/importer"
	"github.com/mossfield13/passctl/pkg/security"
	"github.com/mossfield13/passctl/pkg/session"
	"github.com/mossfield13/passctl/pkg/totp"
	"github.com/mossfield13/passctl/pkg/vault"
)

const (
	// DefaultAuditLimit is the audit page size when the caller passes none.
	DefaultAuditLimit = 50
	// MaxAuditLimit caps one audit page.
	MaxAuditLimit = 500

	// DefaultHTTPTimeout bounds outbound breach-check requests.
	DefaultHTTPTimeout = 10 * time.Second

	// loginThrottleWindow and loginThrottleLimit gate brute-force attempts:
	// five failures inside the window refuse further logins until it slides.
	loginThrottleWindow = 30 * time.Second
	loginThrottleLimit  = 5

	// exportVersion is written into native JSON exports.
	exportVersion = 1
)

// Export formats accepted by ExportEntries.
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// ErrLoginThrottled indicates too many recent failed login attempts.
var ErrLoginThrottled = errors.New("engine: too many failed login attempts, try again later")

// Engine orchestrates the vault packages behind the operation surface.
type Engine struct {
	// mu guards the store and the collaborators bound to its database
	// handle, which RestoreBackup swaps out wholesale.
	mu       sync.RWMutex
	store    *vault.Store
	auditLog *audit.Logger
	backups  *backup.Manager

	sessions  *session.Manager
	backupDir string
	client    *http.Client
	log       *slog.Logger

	// corrupted latches once vault.ErrCorrupted is observed; mutations are
	// refused from then on until a backup restore succeeds.
	corrupted atomic.Bool

	// kdfParams is the Argon2id cost used when minting a new salt. Existing
	// vaults keep the cost persisted alongside their salt.
	kdfParams crypto.Params
	now       func() time.Time
}

// New builds an engine over an opened store. A nil client gets the default
// breach-check timeout; a nil logger falls back to slog's default.
func New(store *vault.Store, sessions *session.Manager, backupDir string, client *http.Client, log *slog.Logger) *Engine {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:     store,
		auditLog:  audit.NewLogger(store.DB()),
		backups:   backup.NewManager(store, backupDir),
		sessions:  sessions,
		backupDir: backupDir,
		client:    client,
		log:       log,
		kdfParams: crypto.DefaultParams(),
		now:       time.Now,
	}
}

// Close wipes all sessions and closes the store.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions.InvalidateAll()
	return e.store.Close()
}

// observe latches the corruption flag when err signals unreadable storage,
// then returns err unchanged.
func (e *Engine) observe(err error) error {
	if errors.Is(err, vault.ErrCorrupted) {
		if e.corrupted.CompareAndSwap(false, true) {
			e.log.Error("storage corruption detected, mutations disabled", "error", err)
		}
	}
	return err
}

// refuseIfCorrupted guards mutating operations once corruption is latched.
func (e *Engine) refuseIfCorrupted() error {
	if e.corrupted.Load() {
		return fmt.Errorf("%w: mutations disabled until a backup is restored", vault.ErrCorrupted)
	}
	return nil
}

// recordAudit appends best-effort: a failed append never fails the
// operation that triggered it, but it is always reported.
func (e *Engine) recordAudit(ctx context.Context, event audit.Event) {
	if err := e.auditLog.Record(ctx, event); err != nil {
		e.log.Error("failed to append audit record", "action", event.Action, "error", err)
	}
}

// Init creates the vault: policy-checks the master password, derives the
// first key set, and seals the verification token.
func (e *Engine) Init(ctx context.Context, req InitRequest, meta Meta) (*InitResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	if err := security.ValidateMasterPassword(req.MasterPassword); err != nil {
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	keys, err := crypto.DeriveKeySet([]byte(req.MasterPassword), salt, e.kdfParams)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	if err := e.store.Init(ctx, keys, salt, e.kdfParams); err != nil {
		return nil, e.observe(err)
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionVaultInit,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	e.log.Info("vault initialized")
	return &InitResponse{Initialized: true}, nil
}

// Status reports whether the vault has been initialized. No session needed.
func (e *Engine) Status(ctx context.Context) (*StatusResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	initialized, err := e.store.Initialized(ctx)
	if err != nil {
		return nil, e.observe(err)
	}
	return &StatusResponse{Initialized: initialized}, nil
}

// Login verifies the master password and starts the single active session.
// A failure never distinguishes a wrong password from tampered storage, and
// five failures inside the throttle window refuse further attempts with
// ErrLoginThrottled until the window slides past them.
func (e *Engine) Login(ctx context.Context, req LoginRequest, meta Meta) (*LoginResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	now := e.now()
	failures, err := e.store.CountRecentFailures(ctx, now.Add(-loginThrottleWindow))
	if err != nil {
		return nil, e.observe(err)
	}
	if failures >= loginThrottleLimit {
		e.recordAudit(ctx, audit.Event{
			Action:    audit.ActionLogin,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Detail:    "throttled",
		})
		return nil, ErrLoginThrottled
	}

	vmeta, err := e.store.Meta(ctx)
	if err != nil {
		return nil, e.observe(err)
	}
	keys, err := crypto.DeriveKeySet([]byte(req.MasterPassword), vmeta.Salt, vmeta.Params)
	if err != nil {
		return nil, err
	}

	if err := e.store.VerifyKeys(ctx, keys); err != nil {
		keys.Wipe()
		if errors.Is(err, vault.ErrAuthentication) {
			if recErr := e.store.RecordLoginAttempt(ctx, meta.IP, false, now); recErr != nil {
				e.log.Error("failed to record login attempt", "error", recErr)
			}
			e.recordAudit(ctx, audit.Event{
				Action:    audit.ActionLogin,
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
				Detail:    "verification failed",
			})
		}
		return nil, e.observe(err)
	}

	if err := e.store.RecordLoginAttempt(ctx, meta.IP, true, now); err != nil {
		e.log.Error("failed to record login attempt", "error", err)
	}
	if err := e.store.ClearLoginFailures(ctx); err != nil {
		e.log.Error("failed to clear login failures", "error", err)
	}

	token, err := e.sessions.Start(keys)
	if err != nil {
		keys.Wipe()
		return nil, err
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionLogin,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return &LoginResponse{Token: token}, nil
}

// Logout destroys the session and wipes its key material.
func (e *Engine) Logout(ctx context.Context, token string, meta Meta) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.sessions.Logout(token); err != nil {
		return err
	}
	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionLogout,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// ListEntries returns every entry decrypted under the session's keys.
func (e *Engine) ListEntries(ctx context.Context, token string, meta Meta) ([]*EntryView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListEntries(ctx, keys)
	if err != nil {
		return nil, e.observe(err)
	}

	views := make([]*EntryView, len(entries))
	for i, entry := range entries {
		views[i] = newEntryView(entry)
	}
	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionEntryRead,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Detail:    "list",
	})
	return views, nil
}

// CreateEntry validates, encrypts, and stores a new entry.
func (e *Engine) CreateEntry(ctx context.Context, token string, req CreateEntryRequest, meta Meta) (*EntryView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.CreateEntry(ctx, keys, req.fields())
	if err != nil {
		return nil, e.observe(err)
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionEntryCreate,
		EntryID:   entry.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return newEntryView(entry), nil
}

// UpdateEntry applies a partial update to one entry.
func (e *Engine) UpdateEntry(ctx context.Context, token, id string, req UpdateEntryRequest, meta Meta) (*EntryView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.UpdateEntry(ctx, keys, id, req.changes())
	if err != nil {
		return nil, e.observe(err)
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionEntryUpdate,
		EntryID:   id,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return newEntryView(entry), nil
}

// DeleteEntry removes one entry.
func (e *Engine) DeleteEntry(ctx context.Context, token, id string, meta Meta) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return err
	}
	if _, err := e.sessions.Resolve(token); err != nil {
		return err
	}
	if err := e.store.DeleteEntry(ctx, id); err != nil {
		return e.observe(err)
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionEntryDelete,
		EntryID:   id,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return nil
}

// TOTPCode computes the current one-time code for an entry. An entry
// without a TOTP secret reports not-found, the same as an unknown id.
func (e *Engine) TOTPCode(ctx context.Context, token, entryID string, meta Meta) (*TOTPResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entry, err := e.store.GetEntry(ctx, keys, entryID)
	if err != nil {
		return nil, e.observe(err)
	}
	if !entry.HasTOTP() {
		return nil, fmt.Errorf("%w: entry has no TOTP secret", vault.ErrEntryNotFound)
	}

	code, err := totp.Compute(entry.TOTPSecret, e.now())
	if err != nil {
		return nil, err
	}
	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionTOTPRead,
		EntryID:   entryID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return &TOTPResponse{Code: code.Value, RemainingSeconds: code.RemainingSeconds}, nil
}

// ChangeMasterPassword rotates the vault key: it re-derives the old keys
// from the supplied current password, re-encrypts every entry under fresh
// keys in one transaction, and invalidates every session.
func (e *Engine) ChangeMasterPassword(ctx context.Context, token string, req ChangePasswordRequest, meta Meta) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return err
	}
	if _, err := e.sessions.Resolve(token); err != nil {
		return err
	}
	if err := security.ValidateMasterPassword(req.NewPassword); err != nil {
		return err
	}

	vmeta, err := e.store.Meta(ctx)
	if err != nil {
		return e.observe(err)
	}
	oldKeys, err := crypto.DeriveKeySet([]byte(req.CurrentPassword), vmeta.Salt, vmeta.Params)
	if err != nil {
		return err
	}
	defer oldKeys.Wipe()

	newSalt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	newKeys, err := crypto.DeriveKeySet([]byte(req.NewPassword), newSalt, e.kdfParams)
	if err != nil {
		return err
	}
	defer newKeys.Wipe()

	if err := e.store.RotateKey(ctx, oldKeys, newKeys, newSalt, e.kdfParams); err != nil {
		if errors.Is(err, vault.ErrAuthentication) {
			e.recordAudit(ctx, audit.Event{
				Action:    audit.ActionPasswordChange,
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
				Detail:    "current password rejected",
			})
		}
		return e.observe(err)
	}

	// Every live session holds keys derived under the retired salt.
	e.sessions.InvalidateAll()
	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionPasswordChange,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	e.log.Info("master password rotated")
	return nil
}

// BackupSettings returns the persisted backup schedule.
func (e *Engine) BackupSettings(ctx context.Context, token string) (*vault.BackupSettings, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.sessions.Resolve(token); err != nil {
		return nil, err
	}
	settings, err := e.store.BackupSettings(ctx)
	if err != nil {
		return nil, e.observe(err)
	}
	return settings, nil
}

// UpdateBackupSettings replaces the backup schedule and returns it.
func (e *Engine) UpdateBackupSettings(ctx context.Context, token string, req BackupSettingsRequest) (*vault.BackupSettings, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	if _, err := e.sessions.Resolve(token); err != nil {
		return nil, err
	}
	err := e.store.SaveBackupSettings(ctx, vault.BackupSettings{
		Enabled:   req.Enabled,
		Frequency: req.Frequency,
		KeepCount: req.KeepCount,
	})
	if err != nil {
		return nil, e.observe(err)
	}
	settings, err := e.store.BackupSettings(ctx)
	if err != nil {
		return nil, e.observe(err)
	}
	return settings, nil
}

// RunBackup triggers a manual snapshot and prune.
func (e *Engine) RunBackup(ctx context.Context, token string, meta Meta) (*BackupRunResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	if _, err := e.sessions.Resolve(token); err != nil {
		return nil, err
	}

	report, err := e.backups.Run(ctx)
	if err != nil {
		e.recordAudit(ctx, audit.Event{
			Action:    audit.ActionBackupRun,
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
			Detail:    err.Error(),
		})
		return nil, err
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionBackupRun,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Detail:    report.Snapshot.Name,
	})
	return backupRunResponse(report), nil
}

// BackupIfDue runs a scheduled backup when one is overdue. Callers invoke
// it opportunistically; it is a no-op when backups are disabled, not yet
// due, or the vault is flagged corrupted. A nil response means no backup
// ran.
func (e *Engine) BackupIfDue(ctx context.Context) (*BackupRunResponse, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Never let the schedule overwrite good snapshots with corrupt state.
	if e.corrupted.Load() {
		return nil, nil
	}

	report, err := e.backups.RunIfDue(ctx)
	if err != nil || report == nil {
		return nil, err
	}
	e.recordAudit(ctx, audit.Event{
		Action:  audit.ActionBackupRun,
		Success: true,
		Detail:  report.Snapshot.Name,
	})
	return backupRunResponse(report), nil
}

func backupRunResponse(report *backup.RunReport) *BackupRunResponse {
	return &BackupRunResponse{
		Name:   report.Snapshot.Name,
		Path:   report.Snapshot.Path,
		Size:   report.Snapshot.Size,
		Pruned: report.Pruned,
	}
}

// ListBackups names the available snapshots, newest first.
func (e *Engine) ListBackups() ([]backup.Info, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.backups.List()
}

// RestoreBackup replaces the live vault with the named snapshot. It needs
// no session: restoring is the recovery path for a vault whose master
// password or storage is beyond use, so it must work when login cannot.
// All sessions are invalidated; the caller logs in again afterwards.
func (e *Engine) RestoreBackup(ctx context.Context, name string, meta Meta) (*RestoreResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions.InvalidateAll()

	path := e.store.Path()
	if err := e.store.Close(); err != nil {
		return nil, e.reopen(ctx, path, fmt.Errorf("engine: failed to close vault before restore: %w", err))
	}

	result, err := e.backups.Restore(ctx, name)
	if err != nil {
		return nil, e.reopen(ctx, path, err)
	}

	store, err := vault.Open(ctx, path)
	if err != nil {
		e.corrupted.Store(true)
		return nil, fmt.Errorf("engine: failed to reopen restored vault: %w", err)
	}
	e.adopt(store)
	e.corrupted.Store(false)

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionBackupRestore,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Detail:    name,
	})
	e.log.Info("vault restored from backup", "backup", name)
	return &RestoreResponse{Backup: result.Backup, PreRestore: result.PreRestore}, nil
}

// reopen re-attaches the engine to the database at path after a failed
// restore, preserving the original error for the caller.
func (e *Engine) reopen(ctx context.Context, path string, cause error) error {
	store, err := vault.Open(ctx, path)
	if err != nil {
		e.corrupted.Store(true)
		e.log.Error("failed to reopen vault after restore failure", "error", err)
		return fmt.Errorf("engine: vault unusable after failed restore: %w", cause)
	}
	e.adopt(store)
	return cause
}

// adopt swaps in a fresh store and rebuilds the collaborators bound to its
// database handle. The caller holds the write lock.
func (e *Engine) adopt(store *vault.Store) {
	e.store = store
	e.auditLog = audit.NewLogger(store.DB())
	e.backups = backup.NewManager(store, e.backupDir)
}

// AuditLogs returns the most recent audit records, newest first. The limit
// defaults to DefaultAuditLimit and is capped at MaxAuditLimit.
func (e *Engine) AuditLogs(ctx context.Context, token string, limit int) ([]audit.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.sessions.Resolve(token); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	return e.auditLog.List(ctx, min(limit, MaxAuditLimit))
}

// AuditVerify recomputes the audit hash chain and reports every break.
func (e *Engine) AuditVerify(ctx context.Context, token string) (*audit.VerifyResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.sessions.Resolve(token); err != nil {
		return nil, err
	}
	return e.auditLog.Verify(ctx)
}

// GeneratePassword produces a random password. No session needed: it
// touches no vault state.
func (e *Engine) GeneratePassword(_ context.Context, req GeneratePasswordRequest) (*GeneratePasswordResponse, error) {
	password, err := security.Generate(security.GenerateOptions{
		Length:      req.Length,
		NoLowercase: req.NoLowercase,
		NoUppercase: req.NoUppercase,
		NoDigits:    req.NoDigits,
		NoSymbols:   req.NoSymbols,
		Exclude:     req.Exclude,
	})
	if err != nil {
		return nil, err
	}
	return &GeneratePasswordResponse{
		Password: password,
		Strength: security.Strength(password).String(),
	}, nil
}

// ExportEntries renders every entry, TOTP secrets included, as JSON or CSV.
// An export is a portability artifact the user explicitly asked for; the
// caller is responsible for where the bytes land.
func (e *Engine) ExportEntries(ctx context.Context, token, format string, meta Meta) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListEntries(ctx, keys)
	if err != nil {
		return nil, e.observe(err)
	}

	if format == "" {
		format = ExportFormatJSON
	}
	var data []byte
	switch format {
	case ExportFormatJSON:
		payload := ExportPayload{
			Version:    exportVersion,
			ExportedAt: e.now().UTC(),
			Entries:    entries,
		}
		data, err = json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("engine: failed to marshal export: %w", err)
		}
	case ExportFormatCSV:
		data, err = exportCSV(entries)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", vault.ErrValidation, format)
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionExport,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Detail:    format,
	})
	return data, nil
}

// exportCSV renders entries in a flat spreadsheet-friendly layout; custom
// fields survive as a JSON column rather than being dropped.
func exportCSV(entries []*vault.Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"site_name", "url", "username", "password", "notes", "totp_secret", "custom_fields", "favorite"}}
	for _, entry := range entries {
		custom := ""
		if len(entry.CustomFields) > 0 {
			raw, err := json.Marshal(entry.CustomFields)
			if err != nil {
				return nil, fmt.Errorf("engine: failed to marshal custom fields: %w", err)
			}
			custom = string(raw)
		}
		favorite := "0"
		if entry.Favorite {
			favorite = "1"
		}
		rows = append(rows, []string{
			entry.SiteName, entry.URL, entry.Username, entry.Password,
			entry.Notes, entry.TOTPSecret, custom, favorite,
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("engine: failed to render CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportEntries replays an export file into the vault. Rows whose site and
// username match an existing entry (or an earlier row) are skipped, rows
// that fail entry validation are skipped with the validation message, and
// everything else is created. Parsing problems that do not invalidate the
// whole file come back as warnings.
func (e *Engine) ImportEntries(ctx context.Context, token string, req ImportRequest, meta Meta) (*ImportResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if err := e.refuseIfCorrupted(); err != nil {
		return nil, err
	}
	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}

	source := importer.Source(req.Source)
	if req.Source == "" {
		source = importer.SourceNative
	}
	parser, err := importer.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrValidation, err)
	}
	parsed, err := parser.Parse(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrValidation, err)
	}

	existing, err := e.store.ListEntries(ctx, keys)
	if err != nil {
		return nil, e.observe(err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[dedupeKey(entry.SiteName, entry.Username)] = struct{}{}
	}

	result := &ImportResult{Skipped: parsed.Skipped, Warnings: parsed.Warnings}
	for _, fields := range parsed.Entries {
		key := dedupeKey(fields.SiteName, fields.Username)
		if _, dup := seen[key]; dup {
			result.Skipped = append(result.Skipped, importer.SkippedItem{
				Name:   fields.SiteName,
				Reason: "duplicate site and username",
			})
			continue
		}
		if _, err := e.store.CreateEntry(ctx, keys, fields); err != nil {
			if errors.Is(err, vault.ErrValidation) {
				result.Skipped = append(result.Skipped, importer.SkippedItem{
					Name:   fields.SiteName,
					Reason: err.Error(),
				})
				continue
			}
			return nil, e.observe(err)
		}
		seen[key] = struct{}{}
		result.Imported++
	}

	e.recordAudit(ctx, audit.Event{
		Action:    audit.ActionImport,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Success:   true,
		Detail:    fmt.Sprintf("%s: %d imported, %d skipped", source, result.Imported, len(result.Skipped)),
	})
	return result, nil
}

// dedupeKey identifies an entry by site and username, case-insensitively
// and NFC-normalized, so exports from different systems compare equal.
func dedupeKey(siteName, username string) string {
	return strings.ToLower(importer.Normalize(siteName)) + "\x00" + strings.ToLower(importer.Normalize(username))
}

// CheckPasswordBreach looks the password up in the Have I Been Pwned corpus
// via the k-anonymity range API. No session needed; a network failure is a
// soft error that never blocks vault use.
func (e *Engine) CheckPasswordBreach(ctx context.Context, password string) (*security.BreachResult, error) {
	result, err := security.CheckBreach(ctx, e.client, password)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SecurityReport scores the vault's health: password strength, reuse,
// staleness, and TOTP coverage.
func (e *Engine) SecurityReport(ctx context.Context, token string) (*security.Report, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	keys, err := e.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ListEntries(ctx, keys)
	if err != nil {
		return nil, e.observe(err)
	}

	reportEntries := make([]security.ReportEntry, len(entries))
	for i, entry := range entries {
		reportEntries[i] = security.ReportEntry{
			Name:      entry.SiteName,
			Password:  entry.Password,
			HasTOTP:   entry.HasTOTP(),
			UpdatedAt: entry.UpdatedAt,
		}
	}
	return security.BuildReport(reportEntries, e.now()), nil
}
