// Package loader ingests the full, unthinned trip data for a time range.
// Mind the volume: single months run to millions of records.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"citisampler/internal/cache"
	"citisampler/internal/progress"
	"citisampler/internal/sampler"
	"citisampler/internal/timerange"
	"citisampler/internal/trips"
)

// Loader reads complete months from the shard cache. A nil Fetcher skips the
// pre-load fetch and requires the range to be cached already.
type Loader struct {
	Layout   cache.Layout
	Fetcher  sampler.RangeFetcher
	Logger   *slog.Logger
	Reporter progress.Reporter
}

func (l *Loader) reporter() progress.Reporter {
	if l.Reporter == nil {
		return progress.Nop{}
	}
	return l.Reporter
}

// LoadAll returns every trip record in the range as one frame. Each month is
// loaded whole, validated and sorted by end time before concatenation;
// months missing from the cache are fetched first.
func (l *Loader) LoadAll(ctx context.Context, r timerange.Range) (*trips.Frame, error) {
	if l.Fetcher != nil {
		if err := l.Fetcher.FetchRange(ctx, r, true); err != nil {
			return nil, fmt.Errorf("fetch data for loading: %w", err)
		}
	}

	months := r.Months()
	reporter := l.reporter()
	reporter.StartTask("Loading months", len(months))

	combined := &trips.Frame{}
	for _, ym := range months {
		monthFrame, err := l.loadFullMonth(ym)
		if err != nil {
			reporter.FinishTask(err)
			return nil, err
		}
		combined.Append(monthFrame)
		reporter.Advance(1)
	}

	reporter.FinishTask(nil)
	return combined, nil
}

// loadFullMonth reads all of a month's shards, sorted by trip end time. The
// month must be complete per its manifest, every ride ID must be unique
// within the month, and a warning is logged when the data does not cover
// every calendar day.
func (l *Loader) loadFullMonth(ym timerange.YearMonth) (*trips.Frame, error) {
	if status := l.Layout.MonthCompleteness(ym); status != cache.Complete {
		return nil, fmt.Errorf("month %s is not fully cached (%s)", ym, status)
	}

	paths, err := l.Layout.ShardPaths(ym)
	if err != nil {
		return nil, err
	}

	total := 0
	frame := &trips.Frame{}
	for _, path := range paths {
		shard, err := trips.ReadShard(path)
		if err != nil {
			return nil, err
		}
		total += shard.Len()
		frame.Append(shard)
	}
	if frame.Len() != total {
		return nil, fmt.Errorf("month %s: concatenated %d records from shards totalling %d", ym, frame.Len(), total)
	}

	if err := frame.SortBy(trips.ColEndedAt); err != nil {
		return nil, err
	}
	if err := validateUniqueRides(ym, frame); err != nil {
		return nil, err
	}
	l.warnOnDayGaps(ym, frame)
	return frame, nil
}

func validateUniqueRides(ym timerange.YearMonth, frame *trips.Frame) error {
	seen := make(map[string]bool, frame.Len())
	for _, id := range frame.Column(trips.ColRideID) {
		if seen[id] {
			return fmt.Errorf("month %s contains duplicate ride ID %q", ym, id)
		}
		seen[id] = true
	}
	return nil
}

// warnOnDayGaps flags months whose records do not span every calendar day, a
// typical symptom of a truncated shard.
func (l *Loader) warnOnDayGaps(ym timerange.YearMonth, frame *trips.Frame) {
	days := make(map[string]bool)
	for _, raw := range frame.Column(trips.ColEndedAt) {
		if t, ok := trips.ParseTime(raw); ok {
			days[t.Format("2006-01-02")] = true
		}
	}

	expected := daysInMonth(ym)
	if len(days) != expected {
		l.Logger.Warn("Month does not cover every calendar day.",
			slog.String("month", ym.String()),
			slog.Int("expected_days", expected),
			slog.Int("actual_days", len(days)))
	}
}

func daysInMonth(ym timerange.YearMonth) int {
	first := time.Date(ym.Year, time.Month(ym.Month), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
