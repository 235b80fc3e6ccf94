// Package cache computes the on-disk layout of extracted trip-data shards
// and answers completeness queries against per-month manifests.
//
// Layout under the cache root:
//
//	<root>/<year>-citibike-tripdata/<yyyymm>/<yyyymm>-citibike-tripdata_<n>.csv
//	<root>/<year>-citibike-tripdata/<yyyymm>/.manifest.json
package cache

import (
	"fmt"
	"path/filepath"
	"sort"

	"citisampler/internal/timerange"
)

// ManifestName is the side-car file recording a month's expected shard set.
const ManifestName = ".manifest.json"

// Layout computes deterministic cache paths relative to a root directory.
type Layout struct {
	Root string
}

// YearBundleName is the naming convention shared by annual archives and
// their extracted directories.
func YearBundleName(year int) string {
	return fmt.Sprintf("%d-citibike-tripdata", year)
}

// MonthBundleName is the naming convention shared by monthly archives and
// the shard files extracted from them.
func MonthBundleName(ym timerange.YearMonth) string {
	return fmt.Sprintf("%d%02d-citibike-tripdata", ym.Year, ym.Month)
}

// YearBundleDir returns the directory holding one year's worth of months.
func (l Layout) YearBundleDir(year int) string {
	return filepath.Join(l.Root, YearBundleName(year))
}

// MonthDir returns the directory holding one month's shards and manifest.
func (l Layout) MonthDir(ym timerange.YearMonth) string {
	return filepath.Join(l.YearBundleDir(ym.Year), fmt.Sprintf("%d%02d", ym.Year, ym.Month))
}

// ManifestPath returns the manifest location for a month unit.
func (l Layout) ManifestPath(ym timerange.YearMonth) string {
	return filepath.Join(l.MonthDir(ym), ManifestName)
}

// ShardPaths lists the shard files currently on disk for a month as absolute
// paths, sorted by filename. A missing month directory yields an empty list,
// not an error.
func (l Layout) ShardPaths(ym timerange.YearMonth) ([]string, error) {
	monthDir, err := filepath.Abs(l.MonthDir(ym))
	if err != nil {
		return nil, fmt.Errorf("resolve month directory for %s: %w", ym, err)
	}
	paths, err := filepath.Glob(filepath.Join(monthDir, MonthBundleName(ym)+"_*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob shards for %s: %w", ym, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RangeShardPaths unions per-month shard lists across a time range in
// (year, month, filename) ascending order.
func (l Layout) RangeShardPaths(r timerange.Range) ([]string, error) {
	var all []string
	for _, ym := range r.Months() {
		paths, err := l.ShardPaths(ym)
		if err != nil {
			return nil, err
		}
		all = append(all, paths...)
	}
	return all, nil
}
