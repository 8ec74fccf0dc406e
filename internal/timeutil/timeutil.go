// Package timeutil provides date-string and minute-interval helpers used
// throughout the scheduling engine. Dates are "2006-01-02" strings and
// times of day are "HH:MM" strings at minute granularity.
package timeutil

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar-date wire format.
const DateLayout = "2006-01-02"

// FormatDate renders t as a calendar-date string in t's location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a "2006-01-02" date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// AddDays returns the date n days after the given date string.
func AddDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return FormatDate(t.AddDate(0, 0, n))
}

// DaysBetween returns the whole days from a to b (negative if b < a).
func DaysBetween(a, b string) int {
	ta, err := ParseDate(a)
	if err != nil {
		return 0
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// Weekday returns the weekday number (0=Sunday) for a date string.
func Weekday(date string) int {
	t, err := ParseDate(date)
	if err != nil {
		return -1
	}
	return int(t.Weekday())
}

// TimeToMinutes converts "HH:MM" to minutes from midnight. Malformed
// input yields 0.
func TimeToMinutes(hhmm string) int {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0
	}
	return h*60 + m
}

// MinutesToTime converts minutes from midnight to "HH:MM".
func MinutesToTime(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// Interval is a half-open minute-of-day range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Duration returns the interval length in minutes.
func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps reports whether two intervals share any time.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && iv.End > other.Start
}

// MergeIntervals sorts intervals by start and coalesces overlapping or
// touching ranges into a minimal busy list.
func MergeIntervals(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}
