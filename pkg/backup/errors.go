// Package backup creates, rotates, and restores snapshots of the vault
// database. Snapshots are plain SQLite files: the fields inside them carry
// the same AES-256-GCM encryption as the live vault, so a backup is exactly
// as hard to open as the vault itself.
package backup

import "errors"

var (
	// ErrBackupIO marks filesystem failures while creating, listing,
	// pruning, or installing snapshots. It never invalidates the session.
	ErrBackupIO = errors.New("backup: backup io failure")

	// ErrBackupNotFound indicates the named snapshot does not exist.
	ErrBackupNotFound = errors.New("backup: backup not found")

	// ErrInvalidName indicates the snapshot name is not a bare file name.
	ErrInvalidName = errors.New("backup: invalid backup name")

	// ErrInsufficientSpace indicates the destination filesystem is too
	// full to hold another snapshot safely.
	ErrInsufficientSpace = errors.New("backup: insufficient disk space")

	// ErrSnapshotInvalid indicates a snapshot failed verification and
	// must not replace the live vault.
	ErrSnapshotInvalid = errors.New("backup: snapshot failed verification")
)
