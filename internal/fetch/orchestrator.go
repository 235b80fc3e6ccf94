package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"citisampler/internal/cache"
	"citisampler/internal/config"
	"citisampler/internal/eventlog"
	"citisampler/internal/progress"
	"citisampler/internal/timerange"
)

// ArchiveDownloader fetches one remote archive into the cache root and
// returns the downloaded path. Month zero means the year's annual bundle.
type ArchiveDownloader interface {
	DownloadArchive(ctx context.Context, year, month int) (string, error)
}

// Orchestrator answers fetch requests cache-first: it only downloads and
// extracts what the month manifests say is missing, and always leaves the
// cache free of archives and temp files, whether the request succeeded or
// not.
type Orchestrator struct {
	Layout     cache.Layout
	Downloader ArchiveDownloader
	Extractor  *Extractor
	Logger     *slog.Logger
	Events     *eventlog.Log
	Reporter   progress.Reporter

	// Now is the clock used for request validation. Nil means time.Now.
	Now func() time.Time
}

// NewOrchestrator wires an orchestrator around a real downloader.
func NewOrchestrator(cfg config.Config, logger *slog.Logger, events *eventlog.Log, reporter progress.Reporter) *Orchestrator {
	layout := cache.Layout{Root: cfg.CacheDir}
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &Orchestrator{
		Layout:     layout,
		Downloader: NewFetcher(cfg.BaseURL, layout, logger, events),
		Extractor:  &Extractor{Layout: layout, Logger: logger, Events: events},
		Logger:     logger,
		Events:     events,
		Reporter:   reporter,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// validate rejects requests no archive can exist for. Month zero means the
// whole year.
func (o *Orchestrator) validate(year, month int) error {
	now := o.now()

	if year < config.FirstSupportedYear || year > now.Year() {
		return &TimeRequestError{Year: year, Month: month,
			Reason: fmt.Sprintf("year must be between %d and %d", config.FirstSupportedYear, now.Year())}
	}
	if month != 0 && (month < 1 || month > 12) {
		return &TimeRequestError{Year: year, Month: month, Reason: "month must be between 1 and 12"}
	}
	if year <= config.LastBundledYear {
		if month != 0 {
			return &TimeRequestError{Year: year, Month: month,
				Reason: fmt.Sprintf("years up to %d are published as annual bundles only", config.LastBundledYear)}
		}
		return nil
	}
	if year == now.Year() {
		if month == 0 {
			return &TimeRequestError{Year: year,
				Reason: "the current year is incomplete, request individual months"}
		}
		if month >= int(now.Month()) {
			return &TimeRequestError{Year: year, Month: month,
				Reason: "archives appear only after the month has ended"}
		}
	}
	return nil
}

// Fetch makes one period available in the cache. Validation errors are
// returned as-is; any later failure comes back wrapped in a RequestError,
// after leftover archives and temp files have been cleaned up.
func (o *Orchestrator) Fetch(ctx context.Context, year, month int, skipIfExists bool) error {
	if err := o.validate(year, month); err != nil {
		return err
	}

	var err error
	if year <= config.LastBundledYear {
		err = o.fetchBundledYear(ctx, year, skipIfExists)
	} else {
		err = o.fetchMonthly(ctx, year, month, skipIfExists)
	}

	// Cleanup runs on both paths: a successful fetch leaves spent archives
	// behind, a failed one leaves partial state.
	if cleanErr := o.Layout.CleanLeftovers(); cleanErr != nil {
		o.Logger.Warn("Cache cleanup failed.", "error", cleanErr)
		err = errors.Join(err, cleanErr)
	}

	if err != nil {
		return &RequestError{Err: err}
	}
	return nil
}

// fetchBundledYear downloads and unpacks one annual bundle, then extracts
// all 12 months. A bad month does not stop the others; failures are
// aggregated so one corrupt nested archive still yields 11 usable months.
func (o *Orchestrator) fetchBundledYear(ctx context.Context, year int, skipIfExists bool) error {
	l := o.Logger.With(slog.Int("year", year))

	if skipIfExists && o.Layout.IsYearFullyCached(year) {
		l.Info("Year already cached, skipping download.")
		_ = o.Events.Record(ctx, fmt.Sprintf("%d", year), eventlog.KindArchive, eventlog.EventSkip, "", "fully cached", nil)
		return nil
	}

	if _, err := o.Downloader.DownloadArchive(ctx, year, 0); err != nil {
		return err
	}
	if err := o.Extractor.UnpackYearBundle(ctx, year); err != nil {
		return err
	}

	var monthErrs error
	for month := 1; month <= 12; month++ {
		ym := timerange.YearMonth{Year: year, Month: month}
		if err := o.Extractor.ExtractMonthShards(ctx, ym); err != nil {
			l.Error("Month extraction failed.", slog.String("month", ym.String()), "error", err)
			monthErrs = errors.Join(monthErrs, err)
			continue
		}
		o.Reporter.Advance(1)
	}
	return monthErrs
}

// fetchMonthly handles post-bundle years, where each month is its own
// archive. Month zero expands to all 12 months of the year.
func (o *Orchestrator) fetchMonthly(ctx context.Context, year, month int, skipIfExists bool) error {
	months := []int{month}
	if month == 0 {
		months = make([]int, 12)
		for i := range months {
			months[i] = i + 1
		}
	}

	for _, m := range months {
		ym := timerange.YearMonth{Year: year, Month: m}
		if skipIfExists && o.Layout.IsMonthFullyCached(ym) {
			o.Logger.Info("Month already cached, skipping download.", slog.String("month", ym.String()))
			_ = o.Events.Record(ctx, ym.String(), eventlog.KindMonth, eventlog.EventSkip, "", "fully cached", nil)
			o.Reporter.Advance(1)
			continue
		}
		if _, err := o.Downloader.DownloadArchive(ctx, year, m); err != nil {
			return err
		}
		if err := o.Extractor.ExtractMonthShards(ctx, ym); err != nil {
			return err
		}
		o.Reporter.Advance(1)
	}
	return nil
}

// FetchRange makes every month of a range available, stopping at the first
// failed period. Because bundled years can only be fetched whole, a range
// touching them must start in January and end in December of those years.
func (o *Orchestrator) FetchRange(ctx context.Context, r timerange.Range, skipIfExists bool) error {
	if r.Start.Year <= config.LastBundledYear && r.Start.Month != 1 {
		return &TimeRequestError{Year: r.Start.Year, Month: r.Start.Month,
			Reason: fmt.Sprintf("ranges beginning in a bundled year must start in January (%d and earlier download whole years)", config.LastBundledYear)}
	}
	if r.End.Year <= config.LastBundledYear && r.End.Month != 12 {
		return &TimeRequestError{Year: r.End.Year, Month: r.End.Month,
			Reason: fmt.Sprintf("ranges ending in a bundled year must end in December (%d and earlier download whole years)", config.LastBundledYear)}
	}

	o.Reporter.StartTask(fmt.Sprintf("Fetching %s to %s", r.Start, r.End), len(r.Months()))
	_ = o.Events.Record(ctx, fmt.Sprintf("%s..%s", r.Start, r.End), eventlog.KindRange, eventlog.EventDownloadStart, "", "", nil)

	var rangeErr error
	for year := r.Start.Year; year <= r.End.Year && rangeErr == nil; year++ {
		if rangeErr = ctx.Err(); rangeErr != nil {
			break
		}
		if year <= config.LastBundledYear {
			rangeErr = o.Fetch(ctx, year, 0, skipIfExists)
			continue
		}
		firstMonth, lastMonth := 1, 12
		if year == r.Start.Year {
			firstMonth = r.Start.Month
		}
		if year == r.End.Year {
			lastMonth = r.End.Month
		}
		for month := firstMonth; month <= lastMonth && rangeErr == nil; month++ {
			rangeErr = o.Fetch(ctx, year, month, skipIfExists)
		}
	}

	o.Reporter.FinishTask(rangeErr)
	_ = o.Events.Record(ctx, fmt.Sprintf("%s..%s", r.Start, r.End), eventlog.KindRange, eventlog.EventDownloadEnd, "", "", nil)
	return rangeErr
}
