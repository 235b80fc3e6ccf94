package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"citisampler/internal/cache"
	"citisampler/internal/config"
	"citisampler/internal/eventlog"
	"citisampler/internal/timerange"
)

// Extractor unpacks downloaded archives into the cache layout.
type Extractor struct {
	Layout cache.Layout
	Logger *slog.Logger
	Events *eventlog.Log
}

// UnpackYearBundle expands an annual archive into its 12 nested monthly
// archives under the year bundle directory. The bundle must contain all 12
// members or extraction fails with the missing names listed. Unpacking goes
// through a staging directory so an interrupted run never leaves a partially
// populated bundle directory in place.
func (e *Extractor) UnpackYearBundle(ctx context.Context, year int) error {
	start := time.Now()
	bundleName := cache.YearBundleName(year)
	archivePath := filepath.Join(e.Layout.Root, bundleName+".zip")

	l := e.Logger.With(slog.String("archive", archivePath), slog.Int("year", year))
	l.Info("Unpacking annual bundle.")
	_ = e.Events.Record(ctx, bundleName+".zip", eventlog.KindArchive, eventlog.EventExtractStart, "", "", nil)

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractionError{Year: year, Err: fmt.Errorf("open archive: %w", err)}
	}
	defer reader.Close()

	members := make(map[string]*zip.File, 12)
	for _, file := range reader.File {
		members[path.Clean(file.Name)] = file
	}

	// Every month must be present before anything is written.
	var missing []string
	expected := make(map[int]*zip.File, 12)
	for month := 1; month <= 12; month++ {
		ym := timerange.YearMonth{Year: year, Month: month}
		name := path.Join(bundleName, cache.MonthBundleName(ym)+".zip")
		file, ok := members[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		expected[month] = file
	}
	if len(missing) > 0 {
		extErr := &ExtractionError{Year: year, Missing: missing}
		_ = e.Events.Record(ctx, bundleName+".zip", eventlog.KindArchive, eventlog.EventError, "", extErr.Error(), nil)
		return extErr
	}

	staging, err := os.MkdirTemp(e.Layout.Root, bundleName+".tmp-")
	if err != nil {
		return &ExtractionError{Year: year, Err: fmt.Errorf("create staging directory: %w", err)}
	}
	defer os.RemoveAll(staging)

	for month := 1; month <= 12; month++ {
		ym := timerange.YearMonth{Year: year, Month: month}
		dest := filepath.Join(staging, cache.MonthBundleName(ym)+".zip")
		if err := copyZipMember(expected[month], dest); err != nil {
			return &ExtractionError{Year: year, Err: err}
		}
	}

	// Swap the staged bundle in whole.
	bundleDir := e.Layout.YearBundleDir(year)
	if err := os.RemoveAll(bundleDir); err != nil {
		return &ExtractionError{Year: year, Err: fmt.Errorf("remove stale bundle directory: %w", err)}
	}
	if err := os.Rename(staging, bundleDir); err != nil {
		return &ExtractionError{Year: year, Err: fmt.Errorf("promote bundle directory: %w", err)}
	}

	duration := time.Since(start)
	l.Info("Annual bundle unpacked.", slog.Duration("duration", duration.Round(time.Millisecond)))
	_ = e.Events.Record(ctx, bundleName+".zip", eventlog.KindArchive, eventlog.EventExtractEnd, "", "", &duration)
	return nil
}

// ExtractMonthShards expands one monthly archive into the month's shard
// directory and writes the manifest as the final step. For bundled years the
// archive sits inside the year bundle directory; for later years it sits at
// the cache root where DownloadArchive left it.
func (e *Extractor) ExtractMonthShards(ctx context.Context, ym timerange.YearMonth) error {
	start := time.Now()
	archiveName := cache.MonthBundleName(ym) + ".zip"
	archivePath := filepath.Join(e.Layout.Root, archiveName)
	if ym.Year <= config.LastBundledYear {
		archivePath = filepath.Join(e.Layout.YearBundleDir(ym.Year), archiveName)
	}

	l := e.Logger.With(slog.String("archive", archivePath), slog.String("month", ym.String()))
	l.Debug("Extracting month shards.")
	_ = e.Events.Record(ctx, ym.String(), eventlog.KindMonth, eventlog.EventExtractStart, "", "", nil)

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: fmt.Errorf("open archive: %w", err)}
	}
	defer reader.Close()

	monthDir := e.Layout.MonthDir(ym)
	if err := os.MkdirAll(monthDir, 0o755); err != nil {
		return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: err}
	}
	staging, err := os.MkdirTemp(monthDir, "tmp-")
	if err != nil {
		return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: err}
	}
	defer os.RemoveAll(staging)

	shards := 0
	for _, file := range reader.File {
		name := path.Base(file.Name)
		if file.FileInfo().IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		// macOS resource forks and other hidden junk ride along in some
		// published archives.
		if strings.HasPrefix(name, ".") || strings.Contains(file.Name, "__MACOSX") {
			continue
		}
		if err := copyZipMember(file, filepath.Join(staging, name)); err != nil {
			return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: err}
		}
		shards++
	}
	if shards == 0 {
		extErr := &ExtractionError{Year: ym.Year, Month: ym.Month, Err: fmt.Errorf("archive %s contains no shards", archivePath)}
		_ = e.Events.Record(ctx, ym.String(), eventlog.KindMonth, eventlog.EventError, "", extErr.Error(), nil)
		return extErr
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: err}
	}
	for _, entry := range entries {
		from := filepath.Join(staging, entry.Name())
		to := filepath.Join(monthDir, entry.Name())
		if err := os.Rename(from, to); err != nil {
			return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: fmt.Errorf("promote shard %s: %w", entry.Name(), err)}
		}
	}

	// The manifest is written last: its presence asserts the shards above it
	// are all in place.
	if _, err := e.Layout.WriteManifest(ym); err != nil {
		return &ExtractionError{Year: ym.Year, Month: ym.Month, Err: err}
	}

	duration := time.Since(start)
	l.Info("Month extracted.",
		slog.Int("shards", shards),
		slog.Duration("duration", duration.Round(time.Millisecond)))
	_ = e.Events.Record(ctx, ym.String(), eventlog.KindMonth, eventlog.EventExtractEnd, "", fmt.Sprintf("%d shards", shards), &duration)
	return nil
}

func copyZipMember(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open member %s: %w", file.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("extract member %s: %w", file.Name, err)
	}
	return out.Close()
}
