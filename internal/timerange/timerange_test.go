package timerange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name       string
		start, end string
		want       Range
	}{
		{"bare years", "2021", "2021", Range{YearMonth{2021, 1}, YearMonth{2021, 12}}},
		{"single month", "2020-6", "", Range{YearMonth{2020, 6}, YearMonth{2020, 6}}},
		{"single year", "2020", "", Range{YearMonth{2020, 1}, YearMonth{2020, 12}}},
		{"short months", "2022-4", "2023-9", Range{YearMonth{2022, 4}, YearMonth{2023, 9}}},
		{"padded months", "2024-04", "2025-09", Range{YearMonth{2024, 4}, YearMonth{2025, 9}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.start, tc.end)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	r, err := Normalize("2020", "2023-7")
	require.NoError(t, err)

	again, err := Normalize(r.Start.String(), r.End.String())
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestNormalizeInvalidFormat(t *testing.T) {
	for _, input := range []string{"20", "abcd", "2020-13", "2020-0", "2020-1-1", "05-2020"} {
		_, err := Normalize(input, "")
		var formatErr *FormatError
		assert.ErrorAs(t, err, &formatErr, "input %q", input)
	}
}

func TestNormalizeInvalidRange(t *testing.T) {
	for _, tc := range [][2]string{{"2021", "2020"}, {"2022-2", "2022-1"}} {
		_, err := Normalize(tc[0], tc[1])
		var rangeErr *RangeError
		require.True(t, errors.As(err, &rangeErr), "start=%q end=%q", tc[0], tc[1])
	}
}

func TestMonths(t *testing.T) {
	r := Range{YearMonth{2023, 12}, YearMonth{2024, 2}}
	assert.Equal(t, []YearMonth{{2023, 12}, {2024, 1}, {2024, 2}}, r.Months())

	single := Range{YearMonth{2020, 1}, YearMonth{2020, 1}}
	assert.Equal(t, []YearMonth{{2020, 1}}, single.Months())
}
