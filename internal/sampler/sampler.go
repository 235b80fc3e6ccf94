// Package sampler draws a random fraction of trip records across a time
// range, reading every cached shard in parallel and concatenating the
// per-shard samples into one frame.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"citisampler/internal/cache"
	"citisampler/internal/config"
	"citisampler/internal/eventlog"
	"citisampler/internal/progress"
	"citisampler/internal/timerange"
	"citisampler/internal/trips"
)

// ErrInvalidFraction rejects sampling fractions outside the open interval
// (0, 1).
var ErrInvalidFraction = errors.New("sampling fraction must be between 0 and 1")

// RangeFetcher makes a time range available in the local cache before
// sampling reads it.
type RangeFetcher interface {
	FetchRange(ctx context.Context, r timerange.Range, skipIfExists bool) error
}

// Options tunes one sampling run.
type Options struct {
	// Fraction of records to retain, strictly between 0 and 1.
	Fraction float64
	// Seed makes the run reproducible. Nil draws a fresh sample every run.
	Seed *int64
	// MaxWorkers caps parallel shard jobs. Zero means the configured default.
	MaxWorkers int
	// Verbose enables the summary log line at the end of a run.
	Verbose bool
}

// Engine samples trip records from the shard cache. A nil Fetcher skips the
// pre-sampling fetch and reads whatever the cache already holds.
type Engine struct {
	Layout   cache.Layout
	Fetcher  RangeFetcher
	Logger   *slog.Logger
	Events   *eventlog.Log
	Reporter progress.Reporter
}

func (e *Engine) reporter() progress.Reporter {
	if e.Reporter == nil {
		return progress.Nop{}
	}
	return e.Reporter
}

// Run samples a fraction of all trip records in the range and returns them
// as one frame sorted by start time. Months missing from the cache are
// fetched first. Shard jobs run in parallel and never abort each other: if
// any fail, the failures are aggregated into a single ProcessingError after
// every job has finished.
func (e *Engine) Run(ctx context.Context, r timerange.Range, opts Options) (*trips.Frame, error) {
	if !(opts.Fraction > 0 && opts.Fraction < 1) {
		return nil, ErrInvalidFraction
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = config.DefaultMaxWorkers()
	}

	start := time.Now()
	subject := fmt.Sprintf("%s..%s", r.Start, r.End)
	_ = e.Events.Record(ctx, subject, eventlog.KindRange, eventlog.EventSampleStart, "",
		fmt.Sprintf("fraction=%g", opts.Fraction), nil)

	if e.Fetcher != nil {
		if err := e.Fetcher.FetchRange(ctx, r, true); err != nil {
			return nil, fmt.Errorf("fetch data for sampling: %w", err)
		}
	}

	paths, err := e.Layout.RangeShardPaths(r)
	if err != nil {
		return nil, err
	}
	e.Logger.Debug("Sampling from shards.",
		slog.Int("shard_count", len(paths)),
		slog.Float64("fraction", opts.Fraction))

	reporter := e.reporter()
	reporter.StartTask("Sampling from trip-data shards", len(paths))

	// Jobs write into disjoint slots, so the only coordination needed is
	// the group wait.
	results := make([]jobResult, len(paths))
	var group errgroup.Group
	group.SetLimit(workers)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			results[i] = sampleShard(path, i, opts.Fraction, opts.Seed)
			reporter.Advance(1)
			return nil
		})
	}
	_ = group.Wait()

	totalOriginal := 0
	var frames []*trips.Frame
	var failures []Failure
	for _, res := range results {
		if !res.Success {
			failures = append(failures, Failure{SourcePath: res.SourcePath, Message: res.FailureMessage})
			continue
		}
		totalOriginal += res.OriginalCount
		if res.Frame != nil {
			frames = append(frames, res.Frame)
		}
	}

	// No job produced any samples: warn once and hand back an empty frame.
	// This deliberately takes precedence over failure reporting.
	if len(frames) == 0 {
		e.Logger.Warn("All sampled frames were empty. Unless your sampling " +
			"fraction was very low, the cached data may be corrupted.")
		reporter.FinishTask(nil)
		return &trips.Frame{}, nil
	}

	if len(failures) > 0 {
		procErr := &ProcessingError{Failures: failures}
		reporter.FinishTask(procErr)
		_ = e.Events.Record(ctx, subject, eventlog.KindRange, eventlog.EventError, "", procErr.Error(), nil)
		return nil, procErr
	}

	combined := &trips.Frame{}
	for _, frame := range frames {
		combined.Append(frame)
	}
	if err := combined.SortBy(trips.ColStartedAt); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if opts.Verbose {
		empirical := float64(combined.Len()) / float64(totalOriginal) * 100
		e.Logger.Info("Sampling complete.",
			slog.Int("sampled_records", combined.Len()),
			slog.String("empirical_fraction", fmt.Sprintf("%.2f%%", empirical)),
			slog.Duration("duration", duration.Round(time.Millisecond)))
	}
	reporter.FinishTask(nil)
	_ = e.Events.Record(ctx, subject, eventlog.KindRange, eventlog.EventSampleEnd, "",
		fmt.Sprintf("%d records", combined.Len()), &duration)
	return combined, nil
}

// sampleShard draws the sample for one shard. With a master seed the
// selection depends only on (seed, jobIndex); without one each run draws
// fresh. Errors never propagate as errors: they become failed results so the
// caller can report all bad shards at once.
func sampleShard(path string, jobIndex int, fraction float64, masterSeed *int64) jobResult {
	frame, err := trips.ReadShard(path)
	if err != nil {
		return jobResult{SourcePath: path, FailureMessage: err.Error()}
	}

	count := frame.Len()
	if count == 0 {
		return jobResult{Success: true, SourcePath: path}
	}

	n := int(math.Round(fraction * float64(count)))
	if n == 0 {
		return jobResult{Success: true, OriginalCount: count, SourcePath: path}
	}

	var perm []int
	if masterSeed != nil {
		rng := rand.New(rand.NewSource(DeriveJobSeed(*masterSeed, jobIndex)))
		perm = rng.Perm(count)
	} else {
		perm = rand.Perm(count)
	}

	sampled := &trips.Frame{Columns: frame.Columns, Rows: make([][]string, 0, n)}
	for _, idx := range perm[:n] {
		sampled.Rows = append(sampled.Rows, frame.Rows[idx])
	}
	if err := sampled.SortBy(trips.ColStartedAt); err != nil {
		return jobResult{SourcePath: path, FailureMessage: err.Error()}
	}
	return jobResult{Success: true, OriginalCount: count, Frame: sampled, SourcePath: path}
}
