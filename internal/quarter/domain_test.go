package quarter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseQuarterID(t *testing.T) {
	cases := []struct {
		id     string
		number int
		year   int
		ok     bool
	}{
		{"q1-2025", 1, 2025, true},
		{"q4-1999", 4, 1999, true},
		{"q5-2025", 0, 0, false},
		{"q0-2025", 0, 0, false},
		{"Q1-2025", 0, 0, false},
		{"q1-25", 0, 0, false},
		{"q1-2025-extra", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		number, year, err := ParseQuarterID(tc.id)
		if !tc.ok {
			require.ErrorIs(t, err, ErrInvalidQuarterID, tc.id)
			continue
		}
		require.NoError(t, err, tc.id)
		require.Equal(t, tc.number, number)
		require.Equal(t, tc.year, year)
	}
}

func TestFormatQuarterID(t *testing.T) {
	require.Equal(t, "q2-2025", FormatQuarterID(2, 2025))

	number, year, err := ParseQuarterID(FormatQuarterID(3, 2024))
	require.NoError(t, err)
	require.Equal(t, 3, number)
	require.Equal(t, 2024, year)
}

func TestQuarterOf(t *testing.T) {
	number, year := QuarterOf(time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC))
	require.Equal(t, 1, number)
	require.Equal(t, 2025, year)

	number, year = QuarterOf(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 2, number)
	require.Equal(t, 2025, year)

	number, _ = QuarterOf(time.Date(2025, time.December, 31, 12, 0, 0, 0, time.UTC))
	require.Equal(t, 4, number)
}

func TestRange(t *testing.T) {
	start, end := Range(2025, 1)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2025, time.March, 31, 23, 59, 59, 999_000_000, time.UTC), end)

	start, end = Range(2025, 4)
	require.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, 2025, end.Year())
	require.Equal(t, time.December, end.Month())
	require.Equal(t, 31, end.Day())
}

func TestMonths(t *testing.T) {
	require.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, Months(2025, 1))
	require.Equal(t, []string{"2025-10", "2025-11", "2025-12"}, Months(2025, 4))
}

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		current Status
		next    Status
		ok      bool
	}{
		{StatusOpen, StatusOpen, true},
		{StatusOpen, StatusClosed, true},
		{StatusOpen, StatusArchived, true},
		{StatusClosed, StatusArchived, true},
		{StatusClosed, StatusClosed, true},
		{StatusClosed, StatusOpen, false},
		{StatusArchived, StatusOpen, false},
		{StatusArchived, StatusClosed, false},
		{StatusArchived, StatusArchived, true},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.current, tc.next)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.current, tc.next)
		} else {
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.current, tc.next)
		}
	}
}

func TestNetProfit(t *testing.T) {
	require.Equal(t, 9000.0, NetProfit(20000, 1000, 10000))
	require.Equal(t, -500.0, NetProfit(1000, 500, 1000))
}

func TestProfitMargin(t *testing.T) {
	require.Equal(t, 45.0, ProfitMargin(9000, 20000))
	require.Equal(t, 33.3, ProfitMargin(1000, 3000))
	require.Equal(t, 0.0, ProfitMargin(500, 0))
	require.Equal(t, 0.0, ProfitMargin(500, -10))
	require.Equal(t, -50.0, ProfitMargin(-500, 1000))
}
