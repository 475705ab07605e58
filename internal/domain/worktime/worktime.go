// Package worktime computes elapsed hours between clock-of-day values and
// renders them for display.
package worktime

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

const minutesPerDay = 24 * 60

// ComputeHours returns the hours elapsed from start to end, both "HH:MM".
// An end earlier than start wraps past midnight. Equal values yield 0.
func ComputeHours(start, end string) float64 {
	diff := clockMinutes(end) - clockMinutes(start)
	if diff < 0 {
		diff += minutesPerDay
	}
	return float64(diff) / 60
}

// FormatHours renders fractional hours as "7h" or "7h 45m".
// Minutes that round up to 60 carry into the hour.
func FormatHours(hours float64) string {
	if hours < 0 || math.IsNaN(hours) {
		hours = 0
	}
	whole := int(math.Floor(hours))
	minutes := int(math.Round((hours - float64(whole)) * 60))
	if minutes == 60 {
		whole++
		minutes = 0
	}
	if minutes == 0 {
		return fmt.Sprintf("%dh", whole)
	}
	return fmt.Sprintf("%dh %dm", whole, minutes)
}

// TotalHours sums ComputeHours over every log.
func TotalHours(logs []entities.WorkLog) float64 {
	var total float64
	for _, l := range logs {
		total += ComputeHours(l.StartTime, l.EndTime)
	}
	return total
}

// ParseClock strictly parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(s[3:])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// clockMinutes is the lenient counterpart of ParseClock; unparsable parts count as zero.
func clockMinutes(s string) int {
	hh, mm, _ := strings.Cut(s, ":")
	h, _ := strconv.Atoi(strings.TrimSpace(hh))
	m, _ := strconv.Atoi(strings.TrimSpace(mm))
	return h*60 + m
}
