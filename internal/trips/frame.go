// Package trips loads trip-record shards into a simple column-oriented
// frame. Shards are CSV files whose column sets vary across years, so the
// frame keeps rows as strings and only interprets the timestamp columns.
package trips

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"time"
)

// Column names every shard is expected to carry.
const (
	ColRideID    = "ride_id"
	ColStartedAt = "started_at"
	ColEndedAt   = "ended_at"
)

// Timestamp layouts seen across archive generations.
var timeLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Frame is an ordered set of trip records sharing one column set.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of records.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// ColumnIndex returns the position of a named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ParseTime parses a trip timestamp in any known layout.
func ParseTime(value string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ReadShard loads one CSV shard. The header row is mandatory and must
// include the ride ID and both timestamps; a shard with a header but no
// data rows is valid and yields an empty frame.
func ReadShard(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shard: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.ReuseRecord = false

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read shard %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("shard %s has no header row", path)
	}

	f := &Frame{Columns: records[0], Rows: records[1:]}
	for _, required := range []string{ColRideID, ColStartedAt, ColEndedAt} {
		if f.ColumnIndex(required) < 0 {
			return nil, fmt.Errorf("shard %s is missing column %q", path, required)
		}
	}
	return f, nil
}

// Append adds another frame's rows, aligning columns by name. Columns absent
// from one side are filled with empty strings.
func (f *Frame) Append(other *Frame) {
	if other.Len() == 0 {
		return
	}
	if len(f.Columns) == 0 {
		f.Columns = append([]string(nil), other.Columns...)
	}

	// Extend our column set with any new columns.
	for _, c := range other.Columns {
		if f.ColumnIndex(c) < 0 {
			f.Columns = append(f.Columns, c)
			for i, row := range f.Rows {
				f.Rows[i] = append(row, "")
			}
		}
	}

	mapping := make([]int, len(f.Columns))
	for i, c := range f.Columns {
		mapping[i] = other.ColumnIndex(c)
	}
	for _, src := range other.Rows {
		row := make([]string, len(f.Columns))
		for i, j := range mapping {
			if j >= 0 && j < len(src) {
				row[i] = src[j]
			}
		}
		f.Rows = append(f.Rows, row)
	}
}

// SortBy stably sorts rows ascending by a timestamp column. Values that fail
// to parse order by their raw string form.
func (f *Frame) SortBy(column string) error {
	idx := f.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("cannot sort: no column %q", column)
	}

	type key struct {
		t  time.Time
		ok bool
		s  string
	}
	keys := make([]key, len(f.Rows))
	for i, row := range f.Rows {
		var k key
		if idx < len(row) {
			k.s = row[idx]
			k.t, k.ok = ParseTime(row[idx])
		}
		keys[i] = k
	}

	order := make([]int, len(f.Rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ka, kb := keys[order[a]], keys[order[b]]
		if ka.ok && kb.ok {
			return ka.t.Before(kb.t)
		}
		if ka.ok != kb.ok {
			return ka.ok // parseable rows sort first
		}
		return ka.s < kb.s
	})

	sorted := make([][]string, len(f.Rows))
	for i, j := range order {
		sorted[i] = f.Rows[j]
	}
	f.Rows = sorted
	return nil
}

// Column returns all values of a named column in row order.
func (f *Frame) Column(name string) []string {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, 0, len(f.Rows))
	for _, row := range f.Rows {
		if idx < len(row) {
			out = append(out, row[idx])
		} else {
			out = append(out, "")
		}
	}
	return out
}
