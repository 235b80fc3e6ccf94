// Package timerange normalises flexible year/month inputs into canonical
// (year, month) ranges. It performs no network or filesystem access.
package timerange

import (
	"fmt"
	"regexp"
	"strconv"
)

var yearMonthPattern = regexp.MustCompile(`^(\d{4})(?:-(\d{1,2}))?$`)

// YearMonth identifies one month unit.
type YearMonth struct {
	Year  int
	Month int
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%d-%02d", ym.Year, ym.Month)
}

// Compare orders lexicographically on (year, month).
func (ym YearMonth) Compare(other YearMonth) int {
	if ym.Year != other.Year {
		if ym.Year < other.Year {
			return -1
		}
		return 1
	}
	if ym.Month != other.Month {
		if ym.Month < other.Month {
			return -1
		}
		return 1
	}
	return 0
}

// Range is an inclusive, ordered pair of month units.
type Range struct {
	Start YearMonth
	End   YearMonth
}

// Months enumerates every month unit in the range in ascending order.
func (r Range) Months() []YearMonth {
	var months []YearMonth
	for ym := r.Start; ym.Compare(r.End) <= 0; {
		months = append(months, ym)
		ym.Month++
		if ym.Month > 12 {
			ym.Month = 1
			ym.Year++
		}
	}
	return months
}

// FormatError reports an input that does not match the year[-month] pattern
// or carries an out-of-bounds month.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid date format: %q (expected YYYY, YYYY-M or YYYY-MM)", e.Input)
}

// RangeError reports a start after the end.
type RangeError struct {
	Start YearMonth
	End   YearMonth
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("start date %s is after end date %s", e.Start, e.End)
}

// Normalize parses a start and end value into a canonical range. Accepted
// inputs are "YYYY", "YYYY-M" and "YYYY-MM"; a bare year means January as a
// start and December as an end. An empty end means "same as start".
func Normalize(start, end string) (Range, error) {
	if end == "" {
		end = start
	}

	s, err := parse(start, true)
	if err != nil {
		return Range{}, err
	}
	e, err := parse(end, false)
	if err != nil {
		return Range{}, err
	}

	if s.Compare(e) > 0 {
		return Range{}, &RangeError{Start: s, End: e}
	}
	return Range{Start: s, End: e}, nil
}

func parse(value string, isStart bool) (YearMonth, error) {
	m := yearMonthPattern.FindStringSubmatch(value)
	if m == nil {
		return YearMonth{}, &FormatError{Input: value}
	}

	year, _ := strconv.Atoi(m[1])
	month := 1
	if !isStart {
		month = 12
	}
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return YearMonth{}, &FormatError{Input: value}
		}
	}
	return YearMonth{Year: year, Month: month}, nil
}
