// Package datewindow derives the inclusive instant ranges used to scope
// date-based queries.
package datewindow

import (
	"fmt"
	"time"
)

const (
	// KeyLayout is the canonical calendar date key layout.
	KeyLayout   = "2006-01-02"
	MonthLayout = "2006-01"

	lastMillisecond = 999 * int(time.Millisecond)
)

// Range is an inclusive [Start, End] pair of instants.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies within the range, both ends inclusive.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// DayBounds returns 00:00:00.000 to 23:59:59.999 of t's calendar day in t's location.
func DayBounds(t time.Time) Range {
	y, m, d := t.Date()
	return Range{
		Start: time.Date(y, m, d, 0, 0, 0, 0, t.Location()),
		End:   time.Date(y, m, d, 23, 59, 59, lastMillisecond, t.Location()),
	}
}

// MonthBounds returns the first instant of t's month to the last millisecond
// of its final day. The final day is day 0 of the following month.
func MonthBounds(t time.Time) Range {
	y, m, _ := t.Date()
	last := time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location())
	return Range{
		Start: time.Date(y, m, 1, 0, 0, 0, 0, t.Location()),
		End:   time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, lastMillisecond, t.Location()),
	}
}

// DateKey formats t's calendar day, in its own location, as "YYYY-MM-DD".
func DateKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// ParseDateKey parses "YYYY-MM-DD" as midnight of that day in loc.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(KeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// ParseMonth parses "YYYY-MM" as the first day of that month in loc.
func ParseMonth(month string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, month, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	return t, nil
}
