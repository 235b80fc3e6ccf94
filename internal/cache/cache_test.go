package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citisampler/internal/timerange"
)

func testLayout(t *testing.T) Layout {
	t.Helper()
	return Layout{Root: filepath.Join(t.TempDir(), "source_data")}
}

func writeShards(t *testing.T, l Layout, ym timerange.YearMonth, count int) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(l.MonthDir(ym), 0o755))
	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		path := filepath.Join(l.MonthDir(ym), fmt.Sprintf("%s_%d.csv", MonthBundleName(ym), i))
		require.NoError(t, os.WriteFile(path, []byte("ride_id,started_at,ended_at\n"), 0o644))
		paths = append(paths, path)
	}
	return paths
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/cache"}
	ym := timerange.YearMonth{Year: 2024, Month: 3}

	assert.Equal(t, "2024-citibike-tripdata", YearBundleName(2024))
	assert.Equal(t, "202403-citibike-tripdata", MonthBundleName(ym))
	assert.Equal(t, filepath.Join("/cache", "2024-citibike-tripdata"), l.YearBundleDir(2024))
	assert.Equal(t, filepath.Join("/cache", "2024-citibike-tripdata", "202403"), l.MonthDir(ym))
	assert.Equal(t, filepath.Join(l.MonthDir(ym), ManifestName), l.ManifestPath(ym))
}

func TestShardPathsSortedAndScoped(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}
	written := writeShards(t, l, ym, 3)

	// Files that are not shards of this month must not show up.
	other := filepath.Join(l.MonthDir(ym), "notes.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	paths, err := l.ShardPaths(ym)
	require.NoError(t, err)
	assert.Equal(t, written, paths)

	// A month with no directory yields an empty list.
	empty, err := l.ShardPaths(timerange.YearMonth{Year: 2024, Month: 4})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManifestRoundTrip(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}
	written := writeShards(t, l, ym, 2)

	m, err := l.WriteManifest(ym)
	require.NoError(t, err)
	assert.Equal(t, 2024, m.Year)
	assert.Equal(t, 3, m.Month)
	assert.Equal(t, written, m.CSVFiles)

	read, err := l.ReadManifest(ym)
	require.NoError(t, err)
	assert.Equal(t, m, read)
}

func TestMonthCompleteness(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}

	assert.Equal(t, IncompleteNoManifest, l.MonthCompleteness(ym))

	paths := writeShards(t, l, ym, 2)
	assert.Equal(t, IncompleteNoManifest, l.MonthCompleteness(ym))

	_, err := l.WriteManifest(ym)
	require.NoError(t, err)
	assert.Equal(t, Complete, l.MonthCompleteness(ym))
	assert.True(t, l.IsMonthFullyCached(ym))

	// A shard deleted after extraction is corruption.
	require.NoError(t, os.Remove(paths[0]))
	assert.Equal(t, IncompleteMissingFiles, l.MonthCompleteness(ym))

	// So is a manifest that no longer parses.
	require.NoError(t, os.WriteFile(l.ManifestPath(ym), []byte("{broken"), 0o644))
	assert.Equal(t, IncompleteMissingFiles, l.MonthCompleteness(ym))
}

func TestMonthCompletenessIgnoresExtraShards(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}
	writeShards(t, l, ym, 1)
	_, err := l.WriteManifest(ym)
	require.NoError(t, err)

	// Extra files beyond the manifest do not make a month incomplete.
	extra := filepath.Join(l.MonthDir(ym), MonthBundleName(ym)+"_9.csv")
	require.NoError(t, os.WriteFile(extra, []byte("ride_id,started_at,ended_at\n"), 0o644))
	assert.Equal(t, Complete, l.MonthCompleteness(ym))
}

func TestIsYearFullyCached(t *testing.T) {
	l := testLayout(t)
	for month := 1; month <= 12; month++ {
		ym := timerange.YearMonth{Year: 2021, Month: month}
		writeShards(t, l, ym, 1)
		_, err := l.WriteManifest(ym)
		require.NoError(t, err)
	}
	assert.True(t, l.IsYearFullyCached(2021))

	require.NoError(t, os.Remove(l.ManifestPath(timerange.YearMonth{Year: 2021, Month: 7})))
	assert.False(t, l.IsYearFullyCached(2021))
}

func TestCleanLeftovers(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}
	shards := writeShards(t, l, ym, 2)
	_, err := l.WriteManifest(ym)
	require.NoError(t, err)

	// Leftovers from an interrupted fetch.
	zipPath := filepath.Join(l.Root, "202404-citibike-tripdata.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("zip"), 0o644))
	tempPath := filepath.Join(l.Root, "202405-citibike-tripdata.zip.download")
	require.NoError(t, os.WriteFile(tempPath, []byte("partial"), 0o644))
	emptyDir := filepath.Join(l.Root, "2022-citibike-tripdata", "202201")
	require.NoError(t, os.MkdirAll(emptyDir, 0o755))

	require.NoError(t, l.CleanLeftovers())

	assert.NoFileExists(t, zipPath)
	assert.NoFileExists(t, tempPath)
	assert.NoDirExists(t, emptyDir)
	assert.NoDirExists(t, filepath.Dir(emptyDir))

	// Shards and manifest survive.
	for _, shard := range shards {
		assert.FileExists(t, shard)
	}
	assert.FileExists(t, l.ManifestPath(ym))
	assert.Equal(t, Complete, l.MonthCompleteness(ym))
}

func TestCleanLeftoversMissingRoot(t *testing.T) {
	l := Layout{Root: filepath.Join(t.TempDir(), "never-created")}
	assert.NoError(t, l.CleanLeftovers())
}

func TestPurge(t *testing.T) {
	l := testLayout(t)
	ym := timerange.YearMonth{Year: 2024, Month: 3}
	writeShards(t, l, ym, 3)
	_, err := l.WriteManifest(ym)
	require.NoError(t, err)

	dry, err := l.Purge(true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 3, dry.MatchedCSV)
	assert.Zero(t, dry.DeletedCSV)
	assert.DirExists(t, l.Root)

	real, err := l.Purge(false)
	require.NoError(t, err)
	assert.Equal(t, 3, real.DeletedCSV)
	assert.NoDirExists(t, l.Root)
}
