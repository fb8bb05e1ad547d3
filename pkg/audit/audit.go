// Package audit appends tamper-evident records of vault operations to the
// vault database. Each record carries a SHA-256 chain value computed over
// its own fields and the previous record's chain value, so any edit,
// removal, or reordering of past records breaks verification from that
// point on.
//
// The chain is keyless: records such as failed login attempts are written
// before any key material exists.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// genesis seeds the chain before the first record.
const genesis = "genesis"

// Actions recorded in the audit log.
const (
	ActionVaultInit      = "vault.init"
	ActionLogin          = "vault.login"
	ActionLogout         = "vault.logout"
	ActionEntryCreate    = "entry.create"
	ActionEntryRead      = "entry.read"
	ActionEntryUpdate    = "entry.update"
	ActionEntryDelete    = "entry.delete"
	ActionTOTPRead       = "totp.read"
	ActionPasswordChange = "password.change"
	ActionBackupRun      = "backup.run"
	ActionBackupRestore  = "backup.restore"
	ActionExport         = "export.run"
	ActionImport         = "import.run"
)

// Event is the caller-supplied portion of an audit record.
type Event struct {
	Action    string
	EntryID   string
	IP        string
	UserAgent string
	Success   bool
	Detail    string
}

// Record is one persisted audit log row.
type Record struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	EntryID   string    `json:"entry_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	Chain     string    `json:"chain"`
}

// VerifyResult reports the outcome of a chain walk.
type VerifyResult struct {
	Valid   bool     `json:"valid"`
	Records int      `json:"records"`
	Errors  []string `json:"errors,omitempty"`
}

// Logger appends and verifies audit records. It shares the vault's
// database handle so records commit with the durability of the vault
// itself.
type Logger struct {
	db *sql.DB
	mu sync.Mutex
}

// NewLogger wraps an open vault database.
func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Record appends one event to the log, extending the hash chain.
func (l *Logger) Record(ctx context.Context, event Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit: action is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// The chain head and the next sequence number come from the same
	// transaction that writes the record, so concurrent writers cannot
	// fork the chain.
	var (
		seq  int64
		prev string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1,
			COALESCE((SELECT chain FROM audit_log ORDER BY seq DESC LIMIT 1), ?)
		FROM audit_log
	`, genesis).Scan(&seq, &prev)
	if err != nil {
		return fmt.Errorf("audit: failed to read chain head: %w", err)
	}

	ts := time.Now().UTC().Format(time.RFC3339Nano)
	chain := chainValue(seq, ts, event, prev)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (seq, ts, action, entry_id, ip, user_agent, success, detail, chain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, seq, ts, event.Action, event.EntryID, event.IP, event.UserAgent,
		boolToInt(event.Success), event.Detail, chain)
	if err != nil {
		return fmt.Errorf("audit: failed to insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("audit: failed to commit record: %w", err)
	}
	return nil
}

// List returns up to limit records, most recent first. A limit of 0
// returns everything.
func (l *Logger) List(ctx context.Context, limit int) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	query := `
		SELECT seq, ts, action, entry_id, ip, user_agent, success, detail, chain
		FROM audit_log ORDER BY seq DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: record iteration failed: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (l *Logger) Count(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: failed to count records: %w", err)
	}
	return n, nil
}

// Verify walks the whole chain oldest-first and recomputes every link.
// It reports all problems found rather than stopping at the first.
func (l *Logger) Verify(ctx context.Context) (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, ts, action, entry_id, ip, user_agent, success, detail, chain
		FROM audit_log ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result := &VerifyResult{Valid: true}
	prev := genesis
	var expectedSeq int64 = 1

	for rows.Next() {
		var (
			record  Record
			ts      string
			success int
		)
		if err := rows.Scan(&record.Seq, &ts, &record.Action, &record.EntryID,
			&record.IP, &record.UserAgent, &success, &record.Detail, &record.Chain); err != nil {
			return nil, fmt.Errorf("audit: failed to scan record: %w", err)
		}
		result.Records++

		if record.Seq != expectedSeq {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"sequence gap: expected %d, got %d", expectedSeq, record.Seq))
			expectedSeq = record.Seq
		}

		event := Event{
			Action:    record.Action,
			EntryID:   record.EntryID,
			IP:        record.IP,
			UserAgent: record.UserAgent,
			Success:   success != 0,
			Detail:    record.Detail,
		}
		if computed := chainValue(record.Seq, ts, event, prev); computed != record.Chain {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"chain mismatch at seq %d: record altered or reordered", record.Seq))
		}

		prev = record.Chain
		expectedSeq++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: record iteration failed: %w", err)
	}
	return result, nil
}

// chainValue computes the chain entry for one record. The canonical form
// pipe-joins every persisted field plus the previous chain value.
func chainValue(seq int64, ts string, event Event, prev string) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%d|%s|%s",
		seq, ts, event.Action, event.EntryID, event.IP, event.UserAgent,
		boolToInt(event.Success), event.Detail, prev)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		record  Record
		ts      string
		success int
	)
	if err := rows.Scan(&record.Seq, &ts, &record.Action, &record.EntryID,
		&record.IP, &record.UserAgent, &success, &record.Detail, &record.Chain); err != nil {
		return Record{}, fmt.Errorf("audit: failed to scan record: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Record{}, fmt.Errorf("audit: malformed timestamp %q: %w", ts, err)
	}
	record.Timestamp = parsed
	record.Success = success != 0
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
