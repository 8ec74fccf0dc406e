package scheduling

import (
	"fmt"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// PlanConflicts scans a candidate plan set for overlapping sessions,
// daily-capacity violations, and session-length violations. It
// short-circuits on the first violation, returning true and a diagnostic
// for it. Sessions carrying redistribution metadata are exempt from the
// capacity and length checks: they represent overflow the user already
// accepted.
func PlanConflicts(plans PlanSet, st models.Settings) (bool, string) {
	minH := st.MinSessionHours()
	maxH := st.MaxSessionHours()

	for _, date := range sortedDates(plans) {
		p := plans[date]

		var placed []timeutil.Interval
		var regularHours float64
		for _, s := range p.Sessions {
			if s.Status == models.SessionStatusSkipped {
				continue
			}
			if s.Placed() {
				iv := sessionInterval(s)
				for _, other := range placed {
					if iv.Overlaps(other) {
						return true, fmt.Sprintf("%s: session %s-%s overlaps another session", date, s.StartTime, s.EndTime)
					}
				}
				placed = append(placed, iv)
			}
			if s.Redistributed() {
				continue
			}
			regularHours += s.AllocatedHours
			if s.AllocatedHours < minH-hoursEpsilon || s.AllocatedHours > maxH+hoursEpsilon {
				return true, fmt.Sprintf("%s: session of %.2fh outside [%.2fh, %.2fh]", date, s.AllocatedHours, minH, maxH)
			}
		}
		if regularHours > st.DailyAvailableHours+hoursEpsilon {
			return true, fmt.Sprintf("%s: %.2fh scheduled exceeds daily capacity %.2fh", date, regularHours, st.DailyAvailableHours)
		}
	}
	return false, ""
}

// sessionInterval converts a placed session's times to a minute interval.
func sessionInterval(s *models.Session) timeutil.Interval {
	return timeutil.Interval{
		Start: timeutil.TimeToMinutes(s.StartTime),
		End:   timeutil.TimeToMinutes(s.EndTime),
	}
}
