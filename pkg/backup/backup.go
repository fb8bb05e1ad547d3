package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mossfield13/passctl/pkg/vault"
)

const (
	filePrefix = "passctl-backup-"
	fileSuffix = ".db"
	timeLayout = "2006-01-02_15-04-05"

	preRestoreSuffix = ".pre-restore"
	restoreTmpSuffix = ".restore-tmp"

	// MinDiskSpace is the floor below which no snapshot is attempted,
	// regardless of vault size.
	MinDiskSpace = 10 * 1024 * 1024

	fileMode = os.FileMode(0o600)
	dirMode  = os.FileMode(0o700)
)

// Vault is the slice of the store the backup manager works against.
// *vault.Store satisfies it.
type Vault interface {
	SnapshotTo(ctx context.Context, dst string) error
	Path() string
	BackupSettings(ctx context.Context) (*vault.BackupSettings, error)
	SetLastBackupAt(ctx context.Context, at time.Time) error
}

// Info describes one snapshot file on disk.
type Info struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// RunReport describes one completed backup run.
type RunReport struct {
	Snapshot Info `json:"snapshot"`
	Pruned   int  `json:"pruned"`
}

// RestoreResult names the files involved in a completed restore.
type RestoreResult struct {
	Backup     string `json:"backup"`
	PreRestore string `json:"pre_restore"`
}

// DiskSpace reports filesystem capacity at the backup destination.
type DiskSpace struct {
	Total     uint64 `json:"total"`
	Free      uint64 `json:"free"`
	Available uint64 `json:"available"`
	UsedPct   int    `json:"used_pct"`
}

// Manager runs the snapshot lifecycle: scheduling, creation, retention,
// and restore.
type Manager struct {
	vault Vault
	dir   string
	now   func() time.Time
}

// NewManager builds a manager writing snapshots under dir.
func NewManager(v Vault, dir string) *Manager {
	return &Manager{vault: v, dir: dir, now: time.Now}
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Run takes a snapshot now, records the completion time, and prunes old
// snapshots beyond the configured keep count.
func (m *Manager) Run(ctx context.Context) (*RunReport, error) {
	if err := os.MkdirAll(m.dir, dirMode); err != nil {
		return nil, fmt.Errorf("%w: failed to create backup directory: %w", ErrBackupIO, err)
	}
	if err := m.checkSpace(); err != nil {
		return nil, err
	}

	path := m.freshSnapshotPath()
	if err := m.vault.SnapshotTo(ctx, path); err != nil {
		return nil, fmt.Errorf("%w: snapshot failed: %w", ErrBackupIO, err)
	}

	now := m.now().UTC()
	if err := m.vault.SetLastBackupAt(ctx, now); err != nil {
		return nil, err
	}

	settings, err := m.vault.BackupSettings(ctx)
	if err != nil {
		return nil, err
	}
	pruned, err := m.prune(settings.KeepCount)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat snapshot: %w", ErrBackupIO, err)
	}
	return &RunReport{
		Snapshot: Info{
			Name:      filepath.Base(path),
			Path:      path,
			Size:      stat.Size(),
			CreatedAt: stat.ModTime().UTC(),
		},
		Pruned: pruned,
	}, nil
}

// RunIfDue takes a snapshot when the configured schedule calls for one.
// It returns (nil, nil) when no backup is due.
func (m *Manager) RunIfDue(ctx context.Context) (*RunReport, error) {
	settings, err := m.vault.BackupSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}

	every, scheduled := interval(settings.Frequency)
	if !scheduled {
		return nil, nil
	}
	if settings.LastBackupAt != nil && m.now().UTC().Before(settings.LastBackupAt.Add(every)) {
		return nil, nil
	}
	return m.Run(ctx)
}

// List returns the snapshots on disk, newest first. Files that do not
// match the snapshot naming pattern are ignored.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read backup directory: %w", ErrBackupIO, err)
	}

	var infos []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to stat %s: %w", ErrBackupIO, name, err)
		}
		infos = append(infos, Info{
			Name:      name,
			Path:      filepath.Join(m.dir, name),
			Size:      stat.Size(),
			CreatedAt: stat.ModTime().UTC(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Name > infos[j].Name
	})
	return infos, nil
}

// Restore replaces the live vault database with the named snapshot. The
// caller must have closed the vault first; the previous database is kept
// beside the new one with a .pre-restore suffix.
func (m *Manager) Restore(ctx context.Context, name string) (*RestoreResult, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, ErrInvalidName
	}
	src := filepath.Join(m.dir, name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil, ErrBackupNotFound
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to stat snapshot: %w", ErrBackupIO, err)
	}

	vaultPath := m.vault.Path()
	tmp := vaultPath + restoreTmpSuffix

	if err := copyFile(src, tmp); err != nil {
		return nil, fmt.Errorf("%w: failed to stage snapshot: %w", ErrBackupIO, err)
	}
	if err := verifySnapshot(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	preRestore := vaultPath + preRestoreSuffix
	if _, err := os.Stat(vaultPath); err == nil {
		_ = os.Remove(preRestore)
		if err := os.Rename(vaultPath, preRestore); err != nil {
			_ = os.Remove(tmp)
			return nil, fmt.Errorf("%w: failed to set aside current vault: %w", ErrBackupIO, err)
		}
	} else {
		preRestore = ""
	}

	// Leftover WAL side files from an unclean shutdown would be replayed
	// into the restored database.
	_ = os.Remove(vaultPath + "-wal")
	_ = os.Remove(vaultPath + "-shm")

	if err := os.Rename(tmp, vaultPath); err != nil {
		// Put the live vault back rather than leaving no database at all.
		if preRestore != "" {
			_ = os.Rename(preRestore, vaultPath)
		}
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("%w: failed to install snapshot: %w", ErrBackupIO, err)
	}
	return &RestoreResult{Backup: name, PreRestore: preRestore}, nil
}

// verifySnapshot opens the staged copy and confirms it is a healthy,
// initialized vault before it may replace the live one.
func verifySnapshot(ctx context.Context, path string) error {
	store, err := vault.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	defer store.Close() //nolint:errcheck

	if err := store.CheckIntegrity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	initialized, err := store.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotInvalid, err)
	}
	if !initialized {
		return fmt.Errorf("%w: snapshot holds an uninitialized vault", ErrSnapshotInvalid)
	}
	return nil
}

// freshSnapshotPath picks a timestamped name, extending it when a
// same-second snapshot already exists.
func (m *Manager) freshSnapshotPath() string {
	base := m.now().UTC().Format(timeLayout)
	path := filepath.Join(m.dir, filePrefix+base+fileSuffix)
	for n := 2; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(m.dir, fmt.Sprintf("%s%s-%d%s", filePrefix, base, n, fileSuffix))
	}
}

// prune removes the oldest snapshots beyond keep, returning how many
// files it deleted.
func (m *Manager) prune(keep int) (int, error) {
	if keep < 1 {
		return 0, nil
	}
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, info := range infos[min(keep, len(infos)):] {
		if err := os.Remove(info.Path); err != nil {
			return pruned, fmt.Errorf("%w: failed to prune %s: %w", ErrBackupIO, info.Name, err)
		}
		pruned++
	}
	return pruned, nil
}

// checkSpace refuses to snapshot onto a filesystem that could not hold
// roughly two more copies of the vault.
func (m *Manager) checkSpace() error {
	space, err := diskSpace(m.dir)
	if err != nil {
		return fmt.Errorf("%w: failed to check disk space: %w", ErrBackupIO, err)
	}

	required := uint64(MinDiskSpace)
	if stat, err := os.Stat(m.vault.Path()); err == nil {
		if need := uint64(stat.Size()) * 2; need > required {
			required = need
		}
	}
	if space.Available < required {
		return fmt.Errorf("%w: %d bytes available, %d required",
			ErrInsufficientSpace, space.Available, required)
	}
	return nil
}

func interval(frequency string) (time.Duration, bool) {
	switch frequency {
	case vault.FrequencyDaily:
		return 24 * time.Hour, true
	case vault.FrequencyWeekly:
		return 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck,gosec
		_ = os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck,gosec
		return err
	}
	return out.Close()
}
