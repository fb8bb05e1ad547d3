package vault

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Backup frequency values accepted by SaveBackupSettings.
const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
	FrequencyManual = "manual"
)

// BackupSettings is the persisted automatic backup policy. The row is
// seeded disabled by the initial migration so reads never miss.
type BackupSettings struct {
	Enabled      bool       `json:"enabled"`
	Frequency    string     `json:"frequency"`
	KeepCount    int        `json:"keep_count"`
	LastBackupAt *time.Time `json:"last_backup_at,omitempty"`
}

// BackupSettings returns the current backup policy.
func (s *Store) BackupSettings(ctx context.Context) (*BackupSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		settings BackupSettings
		enabled  int
		last     sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT enabled, frequency, keep_count, last_backup_at
		FROM backup_settings WHERE id = 1
	`).Scan(&enabled, &settings.Frequency, &settings.KeepCount, &last)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to load backup settings: %w", err)
	}

	settings.Enabled = intToBool(enabled)
	if last.Valid {
		t := time.Unix(last.Int64, 0).UTC()
		settings.LastBackupAt = &t
	}
	return &settings, nil
}

// SaveBackupSettings validates and persists a new backup policy.
// LastBackupAt is managed by the backup runner and ignored here.
func (s *Store) SaveBackupSettings(ctx context.Context, settings BackupSettings) error {
	switch settings.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyManual:
	default:
		return fmt.Errorf("%w: frequency must be daily, weekly, or manual", ErrValidation)
	}
	if settings.KeepCount < 1 {
		return fmt.Errorf("%w: keep_count must be at least 1", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE backup_settings SET enabled = ?, frequency = ?, keep_count = ?
		WHERE id = 1
	`, boolToInt(settings.Enabled), settings.Frequency, settings.KeepCount)
	if err != nil {
		return fmt.Errorf("vault: failed to save backup settings: %w", err)
	}
	return nil
}

// SetLastBackupAt records the completion time of the latest backup.
func (s *Store) SetLastBackupAt(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE backup_settings SET last_backup_at = ? WHERE id = 1
	`, at.UTC().Unix())
	if err != nil {
		return fmt.Errorf("vault: failed to record backup time: %w", err)
	}
	return nil
}

// RecordLoginAttempt appends one login attempt for throttling decisions.
func (s *Store) RecordLoginAttempt(ctx context.Context, ip string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO login_attempts (ts, ip, success) VALUES (?, ?, ?)
	`, at.UTC().Unix(), ip, boolToInt(success))
	if err != nil {
		return fmt.Errorf("vault: failed to record login attempt: %w", err)
	}
	return nil
}

// CountRecentFailures counts failed login attempts at or after since.
func (s *Store) CountRecentFailures(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts WHERE success = 0 AND ts >= ?
	`, since.UTC().Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("vault: failed to count login failures: %w", err)
	}
	return n, nil
}

// ClearLoginFailures drops the failure history, typically after a
// successful login ends a throttling window.
func (s *Store) ClearLoginFailures(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE success = 0`)
	if err != nil {
		return fmt.Errorf("vault: failed to clear login failures: %w", err)
	}
	return nil
}
