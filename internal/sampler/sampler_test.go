package sampler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citisampler/internal/cache"
	"citisampler/internal/timerange"
	"citisampler/internal/trips"
)

// recordingHandler captures log records so tests can count warnings.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) countLevel(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// writeShard puts one shard with the given row count into the cache, with
// ride IDs unique across all shards.
func writeShard(t *testing.T, layout cache.Layout, ym timerange.YearMonth, shard, rows int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(layout.MonthDir(ym), 0o755))

	path := filepath.Join(layout.MonthDir(ym), fmt.Sprintf("%s_%d.csv", cache.MonthBundleName(ym), shard))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = fmt.Fprintln(f, "ride_id,started_at,ended_at")
	require.NoError(t, err)
	for i := 0; i < rows; i++ {
		start := time.Date(ym.Year, time.Month(ym.Month), 1+i%28, 6+i%12, 0, 0, 0, time.UTC)
		_, err = fmt.Fprintf(f, "ride_%d%02d_%d_%d,%s,%s\n",
			ym.Year, ym.Month, shard, i,
			start.Format("2006-01-02 15:04:05"),
			start.Add(20*time.Minute).Format("2006-01-02 15:04:05"))
		require.NoError(t, err)
	}
}

func seededCache(t *testing.T, r timerange.Range) cache.Layout {
	t.Helper()
	layout := cache.Layout{Root: filepath.Join(t.TempDir(), "source_data")}
	for _, ym := range r.Months() {
		writeShard(t, layout, ym, 1, 40)
		writeShard(t, layout, ym, 2, 30)
		_, err := layout.WriteManifest(ym)
		require.NoError(t, err)
	}
	return layout
}

func newTestEngine(layout cache.Layout) (*Engine, *recordingHandler) {
	handler := &recordingHandler{}
	return &Engine{
		Layout: layout,
		Logger: slog.New(handler),
	}, handler
}

func mustRange(t *testing.T, start, end string) timerange.Range {
	t.Helper()
	r, err := timerange.Normalize(start, end)
	require.NoError(t, err)
	return r
}

func int64Ptr(v int64) *int64 { return &v }

func TestDeriveJobSeed(t *testing.T) {
	assert.Equal(t, DeriveJobSeed(42, 0), DeriveJobSeed(42, 0))
	assert.NotEqual(t, DeriveJobSeed(42, 0), DeriveJobSeed(42, 1))
	assert.NotEqual(t, DeriveJobSeed(42, 0), DeriveJobSeed(23, 0))

	for _, idx := range []int{0, 1, 7, 100} {
		seed := DeriveJobSeed(42, idx)
		assert.GreaterOrEqual(t, seed, int64(0))
		assert.Less(t, seed, int64(1_000_000_000))
	}
}

func TestRunRejectsInvalidFraction(t *testing.T) {
	engine, _ := newTestEngine(cache.Layout{Root: t.TempDir()})
	r := mustRange(t, "2024-01", "")

	for _, fraction := range []float64{0, 1, -0.5, 1.5} {
		_, err := engine.Run(context.Background(), r, Options{Fraction: fraction})
		assert.ErrorIs(t, err, ErrInvalidFraction, "fraction %g", fraction)
	}
}

func TestRunDeterministicWithSeed(t *testing.T) {
	r := mustRange(t, "2024-01", "2024-02")
	layout := seededCache(t, r)
	engine, _ := newTestEngine(layout)

	run := func(seed int64) []string {
		frame, err := engine.Run(context.Background(), r, Options{Fraction: 0.25, Seed: int64Ptr(seed), MaxWorkers: 4})
		require.NoError(t, err)
		require.NotZero(t, frame.Len())
		return frame.Column(trips.ColRideID)
	}

	first := run(42)
	second := run(42)
	assert.Equal(t, first, second, "same seed must reproduce the same sample")

	other := run(23)
	assert.NotEqual(t, first, other, "different seeds should draw different samples")

	// Sampling is without replacement.
	seen := make(map[string]bool, len(first))
	for _, id := range first {
		assert.False(t, seen[id], "duplicate ride %s", id)
		seen[id] = true
	}
}

func TestRunResultSortedByStartTime(t *testing.T) {
	r := mustRange(t, "2024-01", "2024-03")
	engine, _ := newTestEngine(seededCache(t, r))

	frame, err := engine.Run(context.Background(), r, Options{Fraction: 0.3, Seed: int64Ptr(7)})
	require.NoError(t, err)
	require.NotZero(t, frame.Len())

	starts := frame.Column(trips.ColStartedAt)
	for i := 1; i < len(starts); i++ {
		prev, ok := trips.ParseTime(starts[i-1])
		require.True(t, ok)
		cur, ok := trips.ParseTime(starts[i])
		require.True(t, ok)
		assert.False(t, cur.Before(prev), "row %d out of order", i)
	}
}

func TestRunTinyFractionWarnsOnceAndReturnsEmpty(t *testing.T) {
	r := mustRange(t, "2024-01", "")
	engine, handler := newTestEngine(seededCache(t, r))

	frame, err := engine.Run(context.Background(), r, Options{Fraction: 1e-20, Seed: int64Ptr(1)})
	require.NoError(t, err)
	assert.Zero(t, frame.Len())
	assert.Equal(t, 1, handler.countLevel(slog.LevelWarn))
}

func TestRunAggregatesShardFailures(t *testing.T) {
	r := mustRange(t, "2024-01", "")
	layout := seededCache(t, r)
	engine, _ := newTestEngine(layout)

	// Shard with a broken header: readable CSV, but missing the required
	// columns.
	ym := r.Start
	badPath := filepath.Join(layout.MonthDir(ym), cache.MonthBundleName(ym)+"_3.csv")
	require.NoError(t, os.WriteFile(badPath, []byte("foo,bar\n1,2\n"), 0o644))

	_, err := engine.Run(context.Background(), r, Options{Fraction: 0.5, Seed: int64Ptr(42)})
	require.Error(t, err)

	var procErr *ProcessingError
	require.ErrorAs(t, err, &procErr)
	require.Len(t, procErr.Failures, 1)
	assert.Equal(t, badPath, procErr.Failures[0].SourcePath)
	assert.Contains(t, err.Error(), badPath)
}

func TestRunAllFailuresStillReturnsEmptyFrame(t *testing.T) {
	r := mustRange(t, "2024-01", "")
	layout := cache.Layout{Root: filepath.Join(t.TempDir(), "source_data")}
	ym := r.Start
	require.NoError(t, os.MkdirAll(layout.MonthDir(ym), 0o755))
	badPath := filepath.Join(layout.MonthDir(ym), cache.MonthBundleName(ym)+"_1.csv")
	require.NoError(t, os.WriteFile(badPath, []byte("foo,bar\n1,2\n"), 0o644))

	engine, handler := newTestEngine(layout)
	frame, err := engine.Run(context.Background(), r, Options{Fraction: 0.5})
	require.NoError(t, err)
	assert.Zero(t, frame.Len())
	assert.Equal(t, 1, handler.countLevel(slog.LevelWarn))
}

// fetchRecorder stands in for the fetch orchestrator.
type fetchRecorder struct {
	calls []timerange.Range
	skips []bool
}

func (f *fetchRecorder) FetchRange(_ context.Context, r timerange.Range, skipIfExists bool) error {
	f.calls = append(f.calls, r)
	f.skips = append(f.skips, skipIfExists)
	return nil
}

func TestRunFetchesRangeBeforeSampling(t *testing.T) {
	r := mustRange(t, "2024-01", "")
	layout := seededCache(t, r)

	recorder := &fetchRecorder{}
	engine := &Engine{
		Layout:  layout,
		Fetcher: recorder,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := engine.Run(context.Background(), r, Options{Fraction: 0.2, Seed: int64Ptr(5)})
	require.NoError(t, err)
	require.Len(t, recorder.calls, 1)
	assert.Equal(t, r, recorder.calls[0])
	assert.True(t, recorder.skips[0], "pre-sampling fetch must not re-download cached months")
}
