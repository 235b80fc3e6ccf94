package fetch

import (
	"fmt"
	"strings"
)

// DownloadError reports a failed archive transfer. The partial temp file has
// already been removed by the time this error is returned.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError reports a structurally bad or incomplete archive. Month is
// zero for annual bundles. Missing lists the member names an annual bundle
// was expected to contain but did not.
type ExtractionError struct {
	Year    int
	Month   int
	Missing []string
	Err     error
}

func (e *ExtractionError) Error() string {
	subject := fmt.Sprintf("%d", e.Year)
	if e.Month != 0 {
		subject = fmt.Sprintf("%d-%02d", e.Year, e.Month)
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("extract %s: archive is missing members: %s",
			subject, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("extract %s: %v", subject, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// TimeRequestError reports a request for a period no archive can exist for.
type TimeRequestError struct {
	Year   int
	Month  int
	Reason string
}

func (e *TimeRequestError) Error() string {
	if e.Month != 0 {
		return fmt.Sprintf("cannot fetch %d-%02d: %s", e.Year, e.Month, e.Reason)
	}
	return fmt.Sprintf("cannot fetch %d: %s", e.Year, e.Reason)
}

// RequestError wraps any failure of a fetch request after validation passed.
// Cleanup of partial downloads has already run when it is returned.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("fetch failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
