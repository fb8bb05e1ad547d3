// Package vault implements the encrypted credential store for passctl.
//
// All persistent state lives in one SQLite database: vault metadata (salt,
// verification token, KDF parameters), the encrypted entries, the audit
// log, backup settings, and the login-attempt history. Entry fields are
// encrypted with the caller's entry subkey before they reach SQLite and
// decrypted only for an authenticated caller holding a live session; the
// verification token is a random value sealed under a separate subkey so
// that login never depends on entries existing.
//
// Mutations are serialized through a write lock so that key rotation can
// never interleave with a concurrent create or update; reads share the
// lock. Rotation replaces the metadata and every ciphertext in a single
// transaction, which keeps the old state fully intact if the process dies
// before commit.
package vault

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/mossfield13/passctl/pkg/crypto"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	// verifyTokenLength is the size of the random verification token
	// sealed into vault_meta on initialization.
	verifyTokenLength = 32

	// FileMode restricts the database and snapshots to the owner.
	FileMode = 0o600
	// DirMode restricts the vault directory to the owner.
	DirMode = 0o700
)

// Store provides access to the persisted vault state.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.RWMutex

	// rotateTestHook runs inside the rotation transaction after all writes
	// and before commit. Tests use it to simulate a crash mid-rotation.
	rotateTestHook func() error
}

// Meta is the vault metadata created at initialization.
type Meta struct {
	Salt      []byte
	Params    crypto.Params
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open opens (creating if necessary) the vault database at path and applies
// pending schema migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return nil, fmt.Errorf("vault: failed to create vault directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to open database: %w", err)
	}

	// A single connection serializes all statements and keeps SQLite's
	// cross-connection locking out of the picture.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("vault: failed to apply %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := os.Chmod(path, FileMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vault: failed to restrict database permissions: %w", err)
	}

	return &Store{path: path, db: db}, nil
}

// migrate applies the embedded goose migrations.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("vault: failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("vault: failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("vault: failed to close database: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for collaborators that share the
// persistence primitive without needing encryption (the audit log).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Initialized reports whether vault metadata exists.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault_meta`).Scan(&n); err != nil {
		return false, fmt.Errorf("vault: failed to query metadata: %w", err)
	}
	return n > 0, nil
}

// Init creates the vault metadata: the salt, the KDF parameters, and a
// fresh verification token sealed under the verify subkey. It fails with
// ErrAlreadyInitialized when metadata already exists.
func (s *Store) Init(ctx context.Context, keys *crypto.KeySet, salt []byte, params crypto.Params) error {
	if len(salt) != crypto.SaltLength {
		return fmt.Errorf("%w: salt must be %d bytes", ErrValidation, crypto.SaltLength)
	}
	if !params.Valid() {
		return fmt.Errorf("%w: invalid key derivation parameters", ErrValidation)
	}

	token, err := crypto.RandomBytes(verifyTokenLength)
	if err != nil {
		return fmt.Errorf("vault: failed to generate verification token: %w", err)
	}
	defer crypto.SecureWipe(token)

	blob, err := crypto.Encrypt(keys.Verify, token)
	if err != nil {
		return fmt.Errorf("vault: failed to seal verification token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vault: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM vault_meta`).Scan(&n); err != nil {
		return fmt.Errorf("vault: failed to query metadata: %w", err)
	}
	if n > 0 {
		return ErrAlreadyInitialized
	}

	now := time.Now().UTC().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO vault_meta (id, salt, verify_blob, kdf_time, kdf_memory_kib, kdf_threads, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`, salt, blob, params.Time, params.MemoryKiB, params.Threads, now, now)
	if err != nil {
		return fmt.Errorf("vault: failed to write metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vault: failed to commit initialization: %w", err)
	}
	return nil
}

// Meta loads the vault metadata, or ErrNotInitialized.
func (s *Store) Meta(ctx context.Context) (*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metaLocked(ctx)
}

func (s *Store) metaLocked(ctx context.Context) (*Meta, error) {
	var (
		m                Meta
		created, updated int64
		kdfTime, kdfMem  int64
		kdfThreads       int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT salt, kdf_time, kdf_memory_kib, kdf_threads, created_at, updated_at
		FROM vault_meta WHERE id = 1
	`).Scan(&m.Salt, &kdfTime, &kdfMem, &kdfThreads, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("vault: failed to load metadata: %w", err)
	}

	//nolint:gosec // range-checked by Params.Valid below
	m.Params = crypto.Params{
		Time:      uint32(kdfTime),
		MemoryKiB: uint32(kdfMem),
		Threads:   uint8(kdfThreads),
	}
	if !m.Params.Valid() {
		return nil, fmt.Errorf("%w: stored key derivation parameters are invalid", ErrCorrupted)
	}
	m.CreatedAt = time.Unix(created, 0).UTC()
	m.UpdatedAt = time.Unix(updated, 0).UTC()
	return &m, nil
}

// VerifyKeys checks the key set against the stored verification token.
// A decryption failure maps to ErrAuthentication without distinguishing a
// wrong password from a tampered token.
func (s *Store) VerifyKeys(ctx context.Context, keys *crypto.KeySet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verifyBlobLocked(ctx, s.db, keys)
}

// querier covers *sql.DB and *sql.Tx for helpers shared with rotation.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) verifyBlobLocked(ctx context.Context, q querier, keys *crypto.KeySet) error {
	var blob []byte
	err := q.QueryRowContext(ctx, `SELECT verify_blob FROM vault_meta WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("vault: failed to load verification token: %w", err)
	}

	token, err := crypto.Decrypt(keys.Verify, blob)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrCiphertextTooShort) {
			return ErrAuthentication
		}
		return fmt.Errorf("vault: failed to open verification token: %w", err)
	}
	crypto.SecureWipe(token)
	return nil
}

// SnapshotTo writes a consistent copy of the database to dst using VACUUM
// INTO. The copy carries only ciphertext, so it is safe to park on backup
// media as-is. Snapshots share the read lock with other readers but can
// never observe a half-committed rotation.
func (s *Store) SnapshotTo(ctx context.Context, dst string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("vault: snapshot target already exists: %s", dst)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vault: failed to snapshot database: %w", err)
	}
	if err := os.Chmod(dst, FileMode); err != nil {
		return fmt.Errorf("vault: failed to restrict snapshot permissions: %w", err)
	}
	return nil
}

// CheckIntegrity verifies the SQLite file and the expected schema. Any
// finding maps to ErrCorrupted: the caller must treat the vault as
// read-only at best.
func (s *Store) CheckIntegrity(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result string
	if err := s.db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: integrity check failed to run: %v", ErrCorrupted, err)
	}
	if !strings.EqualFold(result, "ok") {
		return fmt.Errorf("%w: integrity check reported %q", ErrCorrupted, result)
	}

	for _, table := range []string{"vault_meta", "entries", "audit_log", "backup_settings", "login_attempts"} {
		var name string
		err := s.db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: missing table %q", ErrCorrupted, table)
		}
		if err != nil {
			return fmt.Errorf("%w: schema probe failed: %v", ErrCorrupted, err)
		}
	}
	return nil
}

// boolToInt converts for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
