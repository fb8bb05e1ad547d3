//go:build !windows

package backup

import (
	"fmt"
	"path/filepath"
	"syscall"
)

// diskSpace returns filesystem capacity at path, falling back to the
// parent when path does not exist yet.
func diskSpace(path string) (DiskSpace, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		if err := syscall.Statfs(filepath.Dir(path), &stat); err != nil {
			return DiskSpace{}, fmt.Errorf("failed to get disk stats: %w", err)
		}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)

	usedPct := 0
	if total > 0 {
		usedPct = int(100 * (total - free) / total)
	}

	return DiskSpace{
		Total:     total,
		Free:      free,
		Available: available,
		UsedPct:   usedPct,
	}, nil
}
