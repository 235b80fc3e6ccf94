package trips

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shard.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadShard(t *testing.T) {
	path := writeCSV(t, "ride_id,started_at,ended_at,rideable_type\n"+
		"a,2024-01-01 10:00:00,2024-01-01 10:20:00,classic_bike\n"+
		"b,2024-01-02 11:00:00,2024-01-02 11:10:00,electric_bike\n")

	f, err := ReadShard(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ride_id", "started_at", "ended_at", "rideable_type"}, f.Columns)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"a", "b"}, f.Column(ColRideID))
}

func TestReadShardHeaderOnly(t *testing.T) {
	f, err := ReadShard(writeCSV(t, "ride_id,started_at,ended_at\n"))
	require.NoError(t, err)
	assert.Zero(t, f.Len())
}

func TestReadShardMissingColumn(t *testing.T) {
	_, err := ReadShard(writeCSV(t, "ride_id,started_at\nx,2024-01-01 10:00:00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended_at")
}

func TestReadShardEmptyFile(t *testing.T) {
	_, err := ReadShard(writeCSV(t, ""))
	require.Error(t, err)
}

func TestParseTimeLayouts(t *testing.T) {
	for _, value := range []string{
		"2024-01-02 15:04:05",
		"2024-01-02 15:04:05.123",
		"2024-01-02T15:04:05",
		"2024-01-02T15:04:05.123456",
	} {
		parsed, ok := ParseTime(value)
		assert.True(t, ok, value)
		assert.Equal(t, 2024, parsed.Year())
	}

	_, ok := ParseTime("not a time")
	assert.False(t, ok)
}

func TestAppendAlignsColumnsByName(t *testing.T) {
	a := &Frame{
		Columns: []string{"ride_id", "started_at", "ended_at"},
		Rows:    [][]string{{"a", "s1", "e1"}},
	}
	b := &Frame{
		Columns: []string{"started_at", "ride_id", "ended_at", "member_casual"},
		Rows:    [][]string{{"s2", "b", "e2", "member"}},
	}

	a.Append(b)
	require.Equal(t, 2, a.Len())
	assert.Equal(t, []string{"ride_id", "started_at", "ended_at", "member_casual"}, a.Columns)
	assert.Equal(t, []string{"a", "s1", "e1", ""}, a.Rows[0])
	assert.Equal(t, []string{"b", "s2", "e2", "member"}, a.Rows[1])
}

func TestAppendIntoEmptyFrame(t *testing.T) {
	combined := &Frame{}
	combined.Append(&Frame{
		Columns: []string{"ride_id", "started_at", "ended_at"},
		Rows:    [][]string{{"a", "s", "e"}},
	})
	assert.Equal(t, 1, combined.Len())
	assert.Equal(t, []string{"ride_id", "started_at", "ended_at"}, combined.Columns)
}

func TestSortByTimestampColumn(t *testing.T) {
	f := &Frame{
		Columns: []string{"ride_id", "started_at", "ended_at"},
		Rows: [][]string{
			{"c", "2024-01-03 09:00:00", "2024-01-03 09:30:00"},
			{"a", "2024-01-01 09:00:00", "2024-01-01 09:30:00"},
			{"b", "2024-01-02 09:00:00", "2024-01-02 09:30:00"},
		},
	}
	require.NoError(t, f.SortBy(ColStartedAt))
	assert.Equal(t, []string{"a", "b", "c"}, f.Column(ColRideID))

	assert.Error(t, f.SortBy("no_such_column"))
}

func TestSortByUnparseableValues(t *testing.T) {
	f := &Frame{
		Columns: []string{"ride_id", "started_at", "ended_at"},
		Rows: [][]string{
			{"bad2", "zzz", "e"},
			{"good", "2024-01-01 09:00:00", "e"},
			{"bad1", "aaa", "e"},
		},
	}
	require.NoError(t, f.SortBy(ColStartedAt))

	// Parseable rows first, the rest ordered by raw value.
	assert.Equal(t, []string{"good", "bad1", "bad2"}, f.Column(ColRideID))
}
