package scheduling

import (
	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// ResolveOccurrence expands a commitment against a target date. It
// returns the concrete occurrence for that date, or ok=false when the
// commitment does not apply or the occurrence was deleted. Per-date
// modifications override the base fields partially.
func ResolveOccurrence(c models.Commitment, date string) (models.Occurrence, bool) {
	if !appliesOn(c, date) {
		return models.Occurrence{}, false
	}

	occ := models.Occurrence{
		CommitmentID: c.ID,
		Title:        c.Title,
		StartTime:    c.StartTime,
		EndTime:      c.EndTime,
		Type:         c.Type,
	}

	if ov, ok := c.ModifiedOccurrences[date]; ok {
		if ov.Title != nil {
			occ.Title = *ov.Title
		}
		if ov.StartTime != nil {
			occ.StartTime = *ov.StartTime
		}
		if ov.EndTime != nil {
			occ.EndTime = *ov.EndTime
		}
		if ov.Type != nil {
			occ.Type = *ov.Type
		}
	}
	return occ, true
}

func appliesOn(c models.Commitment, date string) bool {
	for _, d := range c.DeletedOccurrences {
		if d == date {
			return false
		}
	}
	if c.Recurring {
		weekday := timeutil.Weekday(date)
		for _, d := range c.DaysOfWeek {
			if d == weekday {
				return true
			}
		}
		return false
	}
	for _, d := range c.SpecificDates {
		if d == date {
			return true
		}
	}
	return false
}

// ResolveOccurrences expands all commitments for one date.
func ResolveOccurrences(commitments []models.Commitment, date string) []models.Occurrence {
	var occs []models.Occurrence
	for _, c := range commitments {
		if occ, ok := ResolveOccurrence(c, date); ok {
			occs = append(occs, occ)
		}
	}
	return occs
}

// CommitmentIntervals resolves all commitments for a date into busy
// minute intervals.
func CommitmentIntervals(commitments []models.Commitment, date string) []timeutil.Interval {
	var busy []timeutil.Interval
	for _, occ := range ResolveOccurrences(commitments, date) {
		busy = append(busy, timeutil.Interval{
			Start: timeutil.TimeToMinutes(occ.StartTime),
			End:   timeutil.TimeToMinutes(occ.EndTime),
		})
	}
	return busy
}
