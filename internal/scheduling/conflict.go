package scheduling

import (
	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// ConflictType classifies a commitment-vs-commitment conflict.
type ConflictType string

const (
	// ConflictStrict means both commitments share a recurrence type and
	// the edit should be rejected.
	ConflictStrict ConflictType = "strict"
	// ConflictOverride means a one-off overlaps a recurring commitment:
	// the one-off wins and the recurring occurrences on the overlapping
	// dates are suppressed.
	ConflictOverride ConflictType = "override"
)

// ConflictResult reports the first conflict found between a candidate
// commitment and the existing set.
type ConflictResult struct {
	HasConflict bool
	Conflicting *models.Commitment
	Type        ConflictType
	// Dates holds the specific overlapping dates for override conflicts.
	Dates []string
}

// CheckCommitmentConflict detects overlap between a prospective
// new/edited commitment and the existing ones. excludeID skips the
// commitment being edited. Returns the first conflict, not an exhaustive
// list.
func CheckCommitmentConflict(candidate models.Commitment, existing []models.Commitment, excludeID string) ConflictResult {
	candStart := timeutil.TimeToMinutes(candidate.StartTime)
	candEnd := timeutil.TimeToMinutes(candidate.EndTime)

	for i := range existing {
		other := existing[i]
		if other.ID == excludeID {
			continue
		}
		otherIv := timeutil.Interval{
			Start: timeutil.TimeToMinutes(other.StartTime),
			End:   timeutil.TimeToMinutes(other.EndTime),
		}
		if !otherIv.Overlaps(timeutil.Interval{Start: candStart, End: candEnd}) {
			continue
		}

		switch {
		case candidate.Recurring && other.Recurring:
			if sharesWeekday(candidate.DaysOfWeek, other.DaysOfWeek) {
				return ConflictResult{HasConflict: true, Conflicting: &other, Type: ConflictStrict}
			}
		case !candidate.Recurring && !other.Recurring:
			if len(sharedDates(candidate.SpecificDates, other.SpecificDates)) > 0 {
				return ConflictResult{HasConflict: true, Conflicting: &other, Type: ConflictStrict}
			}
		default:
			// Mixed recurrence: find which one-off dates land on the
			// recurring commitment's weekdays.
			oneOff, recurring := candidate, other
			if candidate.Recurring {
				oneOff, recurring = other, candidate
			}
			dates := datesOnWeekdays(oneOff.SpecificDates, recurring.DaysOfWeek, recurring.DeletedOccurrences)
			if len(dates) > 0 {
				return ConflictResult{HasConflict: true, Conflicting: &other, Type: ConflictOverride, Dates: dates}
			}
		}
	}
	return ConflictResult{}
}

func sharesWeekday(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sharedDates(a, b []string) []string {
	var shared []string
	for _, x := range a {
		for _, y := range b {
			if x == y {
				shared = append(shared, x)
			}
		}
	}
	return shared
}

// datesOnWeekdays returns the one-off dates that fall on the recurring
// weekdays and are not already suppressed.
func datesOnWeekdays(dates []string, weekdays []int, deleted []string) []string {
	var out []string
	for _, d := range dates {
		wd := timeutil.Weekday(d)
		match := false
		for _, w := range weekdays {
			if w == wd {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		suppressed := false
		for _, del := range deleted {
			if del == d {
				suppressed = true
				break
			}
		}
		if !suppressed {
			out = append(out, d)
		}
	}
	return out
}
