package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"citisampler/internal/timerange"
)

// Manifest records the canonical shard set for a month unit at extraction
// time. It is written once after a successful extraction and never mutated
// in place; re-extraction replaces it wholesale.
type Manifest struct {
	Year     int      `json:"year"`
	Month    int      `json:"month"`
	CSVFiles []string `json:"csv_files"`
}

// WriteManifest globs the month's current shards and writes them as the
// expected set. Must only be called as the final step of an extraction.
func (l Layout) WriteManifest(ym timerange.YearMonth) (*Manifest, error) {
	paths, err := l.ShardPaths(ym)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Year: ym.Year, Month: ym.Month, CSVFiles: paths}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest for %s: %w", ym, err)
	}
	if err := os.WriteFile(l.ManifestPath(ym), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest for %s: %w", ym, err)
	}
	return m, nil
}

// ReadManifest loads the manifest for a month. A missing manifest surfaces
// as fs.ErrNotExist.
func (l Layout) ReadManifest(ym timerange.YearMonth) (*Manifest, error) {
	data, err := os.ReadFile(l.ManifestPath(ym))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest for %s: %w", ym, err)
	}
	return &m, nil
}

// Completeness is the three-valued result of a month cache check. The
// distinction matters diagnostically: a missing manifest means "never
// extracted", missing files under an existing manifest mean corruption.
type Completeness int

const (
	Complete Completeness = iota
	IncompleteNoManifest
	IncompleteMissingFiles
)

func (c Completeness) String() string {
	switch c {
	case Complete:
		return "complete"
	case IncompleteNoManifest:
		return "no manifest"
	case IncompleteMissingFiles:
		return "missing files"
	default:
		return fmt.Sprintf("completeness(%d)", int(c))
	}
}

// MonthCompleteness checks a month against its manifest. The manifest is the
// source of truth: a month is complete iff the manifest exists and every
// path it lists is present on disk. An unreadable manifest counts as
// corruption, like a deleted shard.
func (l Layout) MonthCompleteness(ym timerange.YearMonth) Completeness {
	m, err := l.ReadManifest(ym)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return IncompleteNoManifest
		}
		return IncompleteMissingFiles
	}

	actual, err := l.ShardPaths(ym)
	if err != nil {
		return IncompleteMissingFiles
	}
	onDisk := make(map[string]bool, len(actual))
	for _, p := range actual {
		onDisk[p] = true
	}
	for _, expected := range m.CSVFiles {
		if !onDisk[expected] {
			return IncompleteMissingFiles
		}
	}
	return Complete
}

// IsMonthFullyCached reports whether a month needs no fetch.
func (l Layout) IsMonthFullyCached(ym timerange.YearMonth) bool {
	return l.MonthCompleteness(ym) == Complete
}

// IsYearFullyCached reports whether all 12 months of a year are complete.
func (l Layout) IsYearFullyCached(year int) bool {
	for month := 1; month <= 12; month++ {
		if !l.IsMonthFullyCached(timerange.YearMonth{Year: year, Month: month}) {
			return false
		}
	}
	return true
}
