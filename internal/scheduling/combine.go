package scheduling

import (
	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// combinePlans merges same-task sessions sharing a day into one
// contiguous block, renumbered to 1. Skipped and finished sessions are
// never combined and keep their own entries. Idempotent: a second run
// over the result is a no-op.
//
// A merge must yield a session the day can actually hold. Merges that
// would exceed the per-session cap are rejected and the originals kept
// separate. Strict mode additionally rejects merges below the minimum
// session length (missed sessions are exempt from the minimum
// individually, but a forced invalid merge would lose that exemption's
// history). A placed merge keeps the group's earliest start when the
// stretched interval is free of other sessions and commitments;
// otherwise the block is re-placed into the first open slot, and when
// none fits the originals stay separate.
//
// If any group member carries redistribution metadata the merged block
// inherits it, so moved-from history survives combination.
func combinePlans(plans PlanSet, st models.Settings, commitments []models.Commitment, strict bool) {
	for date, p := range plans {
		p.Sessions = combineDay(p.Sessions, CommitmentIntervals(commitments, date), st, strict)
	}
}

func combineDay(sessions []*models.Session, busy []timeutil.Interval, st models.Settings, strict bool) []*models.Session {
	groups := make(map[string][]*models.Session)
	var order []string
	var kept []*models.Session

	for _, s := range sessions {
		if s.Status == models.SessionStatusSkipped || s.Finished() {
			kept = append(kept, s)
			continue
		}
		if len(groups[s.TaskID]) == 0 {
			order = append(order, s.TaskID)
		}
		groups[s.TaskID] = append(groups[s.TaskID], s)
	}

	for gi, taskID := range order {
		group := groups[taskID]
		if len(group) == 1 {
			kept = append(kept, group[0])
			continue
		}

		var total float64
		for _, s := range group {
			total += s.AllocatedHours
		}
		total = roundHours(total)

		if total > st.MaxSessionHours()+hoursEpsilon {
			kept = append(kept, group...)
			continue
		}
		if strict && total < st.MinSessionHours()-hoursEpsilon {
			kept = append(kept, group...)
			continue
		}

		// Day occupancy outside this group: blocks already settled plus
		// the groups still waiting their turn.
		others := append([]*models.Session{}, kept...)
		for _, tid := range order[gi+1:] {
			others = append(others, groups[tid]...)
		}

		merged := group[0].Clone()
		merged.AllocatedHours = total
		merged.SessionNumber = 1
		if !merged.Redistributed() {
			adoptRedistribution(merged, group[1:])
		}

		if start, ok := earliestStart(group); ok {
			iv := timeutil.Interval{
				Start: timeutil.TimeToMinutes(start),
				End:   timeutil.TimeToMinutes(start) + int(total*60),
			}
			if blockFits(iv, others, busy, st) {
				merged.StartTime = timeutil.MinutesToTime(iv.Start)
				merged.EndTime = timeutil.MinutesToTime(iv.End)
			} else if s2, e2, found := FindSlot(total, others, busy, st); found {
				merged.StartTime = s2
				merged.EndTime = e2
			} else {
				// The combined block fits nowhere on the day: invalid
				// merge, keep the originals separate.
				kept = append(kept, group...)
				continue
			}
		} else {
			merged.StartTime = ""
			merged.EndTime = ""
		}
		kept = append(kept, merged)
	}
	return kept
}

// adoptRedistribution copies redistribution metadata from the first
// moved member so the merged block keeps its history.
func adoptRedistribution(merged *models.Session, rest []*models.Session) {
	for _, s := range rest {
		if !s.Redistributed() {
			continue
		}
		merged.OriginalDate = s.OriginalDate
		merged.OriginalTime = s.OriginalTime
		if s.RescheduledAt != nil {
			ts := *s.RescheduledAt
			merged.RescheduledAt = &ts
		}
		return
	}
}

// blockFits reports whether the interval lies inside the study window,
// clear of busy time and of other placed sessions.
func blockFits(iv timeutil.Interval, others []*models.Session, busy []timeutil.Interval, st models.Settings) bool {
	if iv.Start < st.StudyWindowStartHour*60 || iv.End > st.StudyWindowEndHour*60 {
		return false
	}
	for _, s := range others {
		if s.Status == models.SessionStatusSkipped || !s.Placed() {
			continue
		}
		if iv.Overlaps(sessionInterval(s)) {
			return false
		}
	}
	for _, b := range busy {
		if iv.Overlaps(b) {
			return false
		}
	}
	return true
}

func earliestStart(group []*models.Session) (string, bool) {
	best := -1
	for _, s := range group {
		if !s.Placed() {
			continue
		}
		m := timeutil.TimeToMinutes(s.StartTime)
		if best < 0 || m < best {
			best = m
		}
	}
	if best < 0 {
		return "", false
	}
	return timeutil.MinutesToTime(best), true
}
