package scheduling

import (
	"math"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// FindSlot returns the earliest open time-of-day slot of at least the
// required length within the study window, or ok=false when no gap fits.
// Busy intervals come from resolved commitments; placed holds the
// sessions already holding slots on the day. First-fit: the earliest gap
// wins, not the tightest.
func FindSlot(hours float64, placed []*models.Session, busy []timeutil.Interval, st models.Settings) (start, end string, ok bool) {
	need := int(math.Round(hours * 60))
	if need <= 0 {
		return "", "", false
	}

	windowStart := st.StudyWindowStartHour * 60
	windowEnd := st.StudyWindowEndHour * 60

	all := make([]timeutil.Interval, 0, len(busy)+len(placed))
	all = append(all, busy...)
	for _, s := range placed {
		if s.Status == models.SessionStatusSkipped || !s.Placed() {
			continue
		}
		all = append(all, timeutil.Interval{
			Start: timeutil.TimeToMinutes(s.StartTime),
			End:   timeutil.TimeToMinutes(s.EndTime),
		})
	}
	merged := timeutil.MergeIntervals(all)

	cursor := windowStart
	for _, iv := range merged {
		if iv.End <= cursor {
			continue
		}
		if iv.Start >= windowEnd {
			break
		}
		if iv.Start-cursor >= need {
			return timeutil.MinutesToTime(cursor), timeutil.MinutesToTime(cursor + need), true
		}
		// Advance past the busy block plus the inter-session buffer.
		next := iv.End + st.BufferTimeBetweenSessions
		if next > cursor {
			cursor = next
		}
	}

	if windowEnd-cursor >= need {
		return timeutil.MinutesToTime(cursor), timeutil.MinutesToTime(cursor + need), true
	}
	return "", "", false
}
