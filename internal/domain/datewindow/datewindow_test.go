package datewindow_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/tracker/internal/domain/datewindow"
)

func TestDayBounds(t *testing.T) {
	noon := time.Date(2024, 3, 15, 12, 34, 56, 0, time.UTC)
	r := datewindow.DayBounds(noon)

	assert.True(t, r.Start.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), "start = %v", r.Start)
	assert.True(t, r.End.Equal(time.Date(2024, 3, 15, 23, 59, 59, 999_000_000, time.UTC)), "end = %v", r.End)
	assert.Equal(t, 24*time.Hour-time.Millisecond, r.End.Sub(r.Start))
}

func TestDayBoundsKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 21:00 UTC on the 14th is already the 15th in UTC+5.
	instant := time.Date(2024, 3, 14, 21, 0, 0, 0, time.UTC).In(loc)
	r := datewindow.DayBounds(instant)

	assert.Equal(t, "2024-03-15", datewindow.DateKey(r.Start))
	assert.Same(t, loc, r.Start.Location())
}

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		in      time.Time
		wantEnd time.Time
	}{
		{time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 23, 59, 59, 999_000_000, time.UTC)},
		{time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 2, 28, 23, 59, 59, 999_000_000, time.UTC)},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 23, 59, 59, 999_000_000, time.UTC)},
		{time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 30, 23, 59, 59, 999_000_000, time.UTC)},
	}
	for _, tt := range tests {
		r := datewindow.MonthBounds(tt.in)
		wantStart := time.Date(tt.in.Year(), tt.in.Month(), 1, 0, 0, 0, 0, time.UTC)
		assert.True(t, r.Start.Equal(wantStart), "MonthBounds(%v) start = %v", tt.in, r.Start)
		assert.True(t, r.End.Equal(tt.wantEnd), "MonthBounds(%v) end = %v", tt.in, r.End)
	}
}

func TestRangeContainsBothEnds(t *testing.T) {
	r := datewindow.DayBounds(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	assert.True(t, r.Contains(r.Start))
	assert.True(t, r.Contains(r.End))
	assert.False(t, r.Contains(r.End.Add(time.Millisecond)), "next day midnight")
	assert.False(t, r.Contains(r.Start.Add(-time.Nanosecond)), "previous day")
}

func TestDateKey(t *testing.T) {
	tests := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "2024-03-05"},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), "2024-12-31"},
		{time.Date(999, 1, 1, 0, 0, 0, 0, time.UTC), "0999-01-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, datewindow.DateKey(tt.in), "DateKey(%v)", tt.in)
	}
}

func TestDateKeySameDay(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	day := datewindow.DayBounds(time.Date(2024, 3, 15, 12, 0, 0, 0, loc))
	instants := []time.Time{
		day.Start,
		day.Start.Add(time.Nanosecond),
		time.Date(2024, 3, 15, 12, 0, 0, 0, loc),
		day.End,
	}

	for _, a := range instants {
		for _, b := range instants {
			assert.Equal(t, datewindow.DateKey(a), datewindow.DateKey(b), "%v and %v", a, b)
		}
	}
	assert.Equal(t, "2024-03-15", datewindow.DateKey(day.Start))
	assert.NotEqual(t, datewindow.DateKey(day.End), datewindow.DateKey(day.End.Add(time.Millisecond)))
	assert.NotEqual(t, datewindow.DateKey(day.Start), datewindow.DateKey(day.Start.Add(-time.Nanosecond)))
}

func TestParseDateKey(t *testing.T) {
	loc := time.FixedZone("test", -3*60*60)
	got, err := datewindow.ParseDateKey("2024-03-15", loc)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, loc)), "got %v", got)
	assert.Equal(t, "2024-03-15", datewindow.DateKey(got))

	for _, bad := range []string{"", "2024-3-15", "15/03/2024", "2024-02-30"} {
		_, err := datewindow.ParseDateKey(bad, loc)
		assert.Error(t, err, "ParseDateKey(%q)", bad)
	}
}

func TestParseMonth(t *testing.T) {
	got, err := datewindow.ParseMonth("2024-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", datewindow.DateKey(datewindow.MonthBounds(got).End))

	_, err = datewindow.ParseMonth("2024-13", time.UTC)
	assert.Error(t, err)
}
