package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PurgeStats summarises a purge run.
type PurgeStats struct {
	DryRun     bool
	MatchedCSV int
	DeletedCSV int
	TotalBytes int64
}

// Purge deletes every cached shard below the cache root, then the root
// itself. With dryRun it only reports what a real run would delete.
func (l Layout) Purge(dryRun bool) (PurgeStats, error) {
	stats := PurgeStats{DryRun: dryRun}

	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".csv") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.MatchedCSV++
		stats.TotalBytes += info.Size()
		if !dryRun {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("delete shard %s: %w", path, err)
			}
			stats.DeletedCSV++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("purge cache %s: %w", l.Root, err)
	}

	if !dryRun {
		if err := os.RemoveAll(l.Root); err != nil {
			return stats, fmt.Errorf("remove cache root %s: %w", l.Root, err)
		}
	}
	return stats, nil
}

// CleanLeftovers removes files in the cache that are neither shards nor
// manifests (downloaded zips, abandoned temp files), then prunes empty
// directories bottom-up. Failing to remove a non-empty directory is not an
// error; failing to remove a file is.
func (l Layout) CleanLeftovers() error {
	if _, err := os.Stat(l.Root); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var dirs []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == l.Root {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".csv") || name == ManifestName {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove leftover %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clean cache %s: %w", l.Root, err)
	}

	// Deepest first so emptied parents can go too.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		_ = os.Remove(dir) // fails on non-empty dirs, which is fine
	}
	return nil
}
