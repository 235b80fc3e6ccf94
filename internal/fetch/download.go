// Package fetch downloads trip-data archives, extracts their CSV shards into
// the local cache and orchestrates cache-aware fetch requests.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"citisampler/internal/cache"
	"citisampler/internal/eventlog"
	"citisampler/internal/timerange"
)

// Realistic user agents, rotated per request.
var commonUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
}

func randomUserAgent() string {
	return commonUserAgents[rand.Intn(len(commonUserAgents))]
}

// DefaultHTTPClient allows generous timeouts: annual bundles run to several
// gigabytes.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Minute}
}

// tempSuffix marks an in-flight download. A file only appears under its final
// name after the transfer completed, so a crash can never leave a truncated
// archive masquerading as a good one.
const tempSuffix = ".download"

// Fetcher downloads archives from the remote trip-data bucket into the cache
// root.
type Fetcher struct {
	BaseURL string
	Layout  cache.Layout
	Client  *http.Client
	Logger  *slog.Logger
	Events  *eventlog.Log
}

// NewFetcher wires a Fetcher with the default HTTP client.
func NewFetcher(baseURL string, layout cache.Layout, logger *slog.Logger, events *eventlog.Log) *Fetcher {
	return &Fetcher{
		BaseURL: baseURL,
		Layout:  layout,
		Client:  DefaultHTTPClient(),
		Logger:  logger,
		Events:  events,
	}
}

// ArchiveName returns the remote object name for a period. Month zero names
// an annual bundle.
func ArchiveName(year, month int) string {
	if month == 0 {
		return cache.YearBundleName(year) + ".zip"
	}
	return cache.MonthBundleName(timerange.YearMonth{Year: year, Month: month}) + ".zip"
}

// ArchiveURL returns the full download URL for a period.
func (f *Fetcher) ArchiveURL(year, month int) string {
	return f.BaseURL + "/" + ArchiveName(year, month)
}

// archivePath is where a downloaded archive lands before extraction. Annual
// bundles and monthly archives both sit directly under the cache root.
func (f *Fetcher) archivePath(year, month int) string {
	return filepath.Join(f.Layout.Root, ArchiveName(year, month))
}

// DownloadArchive streams one archive to the cache root. The transfer writes
// to a temp name and renames into place on success; on any failure the temp
// file is removed and a DownloadError returned.
func (f *Fetcher) DownloadArchive(ctx context.Context, year, month int) (string, error) {
	start := time.Now()
	url := f.ArchiveURL(year, month)
	finalPath := f.archivePath(year, month)
	tempPath := finalPath + tempSuffix

	l := f.Logger.With(slog.String("url", url), slog.String("output_path", finalPath))
	l.Info("Starting download.")
	_ = f.Events.Record(ctx, ArchiveName(year, month), eventlog.KindArchive, eventlog.EventDownloadStart, url, "", nil)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", randomUserAgent())
	req.Header.Set("Accept", "application/zip,application/octet-stream,*/*")

	resp, err := f.Client.Do(req)
	if err != nil {
		dlErr := &DownloadError{URL: url, Err: err}
		f.recordError(ctx, year, month, url, dlErr)
		return "", dlErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		dlErr := &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
		f.recordError(ctx, year, month, url, dlErr)
		l.Error("Download failed.", "error", dlErr)
		return "", dlErr
	}

	out, err := os.Create(tempPath)
	if err != nil {
		dlErr := &DownloadError{URL: url, Err: err}
		f.recordError(ctx, year, month, url, dlErr)
		return "", dlErr
	}

	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		dlErr := &DownloadError{URL: url, Err: err}
		f.recordError(ctx, year, month, url, dlErr)
		l.Error("Download failed mid-transfer.", "error", dlErr)
		return "", dlErr
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		dlErr := &DownloadError{URL: url, Err: err}
		f.recordError(ctx, year, month, url, dlErr)
		return "", dlErr
	}

	duration := time.Since(start)
	l.Info("Download complete.",
		slog.Int64("bytes", written),
		slog.Duration("duration", duration.Round(time.Millisecond)))
	_ = f.Events.Record(ctx, ArchiveName(year, month), eventlog.KindArchive, eventlog.EventDownloadEnd, url, "", &duration)
	return finalPath, nil
}

func (f *Fetcher) recordError(ctx context.Context, year, month int, url string, err error) {
	_ = f.Events.Record(ctx, ArchiveName(year, month), eventlog.KindArchive, eventlog.EventError, url, err.Error(), nil)
}
