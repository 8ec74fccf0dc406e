package scheduling

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// Priority score weights for missed sessions.
const (
	importanceBonus   = 1000
	pastDeadlineBonus = 2000
	urgencyBase       = 100
)

// MovedSession describes one successful relocation.
type MovedSession struct {
	SessionID string
	TaskID    string
	FromDate  string
	ToDate    string
	StartTime string
	EndTime   string
}

// FailedSession describes a session that could not be relocated.
type FailedSession struct {
	SessionID string
	TaskID    string
	Date      string
	Reason    string
}

// Feedback carries structured counts and human-readable diagnostics from
// a redistribution attempt.
type Feedback struct {
	TotalMissed       int
	SuccessfullyMoved int
	FailedToMove      int
	RemainingMissed   int
	HasConflicts      bool
	Issues            []string
	Suggestions       []string
}

// RedistributeResult is the outcome of RedistributeMissed. On rollback
// Plans is the unchanged input snapshot.
type RedistributeResult struct {
	Plans    PlanSet
	Moved    []MovedSession
	Failed   []FailedSession
	Feedback Feedback
}

// RedistributeMissed relocates missed sessions to the earliest available
// future slot within a bounded horizon, preserving relative task
// priority. The operation is all-or-nothing at the validation boundary:
// if the resulting plan set has conflicts, the input is returned
// unchanged and every candidate reported failed.
func RedistributeMissed(plans PlanSet, st models.Settings, commitments []models.Commitment, tasks []models.Task, now time.Time) RedistributeResult {
	today := timeutil.FormatDate(now)
	tidx := taskIndex(tasks)

	candidates := rankMissed(plans, tidx, today, now)

	if gate, ok := preflight(plans, candidates, st, today); !ok {
		return RedistributeResult{Plans: plans, Feedback: gate}
	}
	feedback := Feedback{TotalMissed: len(candidates)}
	feedback.Suggestions = pastDeadlineWarnings(candidates, tidx, today)

	working := ClonePlans(plans)
	var moved []MovedSession
	var failed []FailedSession

	for _, cand := range candidates {
		dest, start, end, ok := findDestination(working, commitments, cand.session.AllocatedHours, st, today)
		if !ok {
			failed = append(failed, FailedSession{
				SessionID: cand.session.ID,
				TaskID:    cand.session.TaskID,
				Date:      cand.date,
				Reason:    "no open slot within the search horizon",
			})
			continue
		}

		relocated := cand.session.Clone()
		relocated.OriginalDate = cand.date
		relocated.OriginalTime = cand.session.StartTime
		relocated.StartTime = start
		relocated.EndTime = end
		relocated.Status = models.SessionStatusScheduled
		ts := now
		relocated.RescheduledAt = &ts

		p := planFor(working, dest, st)
		p.Sessions = append(p.Sessions, relocated)
		removeSession(working, cand.date, cand.session.ID)

		moved = append(moved, MovedSession{
			SessionID: relocated.ID,
			TaskID:    relocated.TaskID,
			FromDate:  cand.date,
			ToDate:    dest,
			StartTime: start,
			EndTime:   end,
		})
	}

	// Strict combination: merges that would violate length bounds or fit
	// no open slot keep the originals separate.
	combinePlans(working, st, commitments, true)
	pruneOrphans(working, moved)
	prunePlans(working)
	recalcPlans(working)

	if conflict, diag := PlanConflicts(working, st); conflict {
		feedback.HasConflicts = true
		feedback.Issues = append(feedback.Issues, fmt.Sprintf("redistribution produced conflicts, rolled back: %s", diag))
		var allFailed []FailedSession
		for _, cand := range candidates {
			allFailed = append(allFailed, FailedSession{
				SessionID: cand.session.ID,
				TaskID:    cand.session.TaskID,
				Date:      cand.date,
				Reason:    "rolled back after validation failure",
			})
		}
		feedback.FailedToMove = len(allFailed)
		feedback.RemainingMissed = len(candidates)
		return RedistributeResult{Plans: plans, Failed: allFailed, Feedback: feedback}
	}

	feedback.SuccessfullyMoved = len(moved)
	feedback.FailedToMove = len(failed)
	feedback.RemainingMissed = len(candidates) - len(moved)
	for _, f := range failed {
		feedback.Issues = append(feedback.Issues, fmt.Sprintf("session for task %s on %s: %s", f.TaskID, f.Date, f.Reason))
	}

	return RedistributeResult{Plans: working, Moved: moved, Failed: failed, Feedback: feedback}
}

// RedistributeAfterTaskDeletion repacks the schedule after a task and its
// pending sessions were removed. Even mode aggressively repacks the
// remaining tasks into the freed capacity; eisenhower mode regenerates
// outright. Both reduce to a full generation pass over the surviving
// tasks.
func RedistributeAfterTaskDeletion(tasks []models.Task, st models.Settings, commitments []models.Commitment, plans PlanSet, now time.Time) PlanSet {
	return Generate(tasks, st, commitments, plans, now).Plans
}

// rankedMissed is a missed session tagged with its computed priority.
type rankedMissed struct {
	missedRef
	priority int
}

// rankMissed collects missed sessions, scores them, and orders them:
// task groups by descending best priority, sessions within a group by
// descending priority. Grouping keeps a task's sessions adjacent so they
// tend to land on the same or nearby days.
func rankMissed(plans PlanSet, tidx map[string]models.Task, today string, now time.Time) []rankedMissed {
	groups := make(map[string][]rankedMissed)
	best := make(map[string]int)
	var order []string

	for _, date := range sortedDates(plans) {
		for _, s := range plans[date].Sessions {
			if Classify(s, date, now) != models.SessionStatusMissed {
				continue
			}
			score := priorityScore(tidx[s.TaskID], today)
			if _, seen := groups[s.TaskID]; !seen {
				order = append(order, s.TaskID)
			}
			groups[s.TaskID] = append(groups[s.TaskID], rankedMissed{
				missedRef: missedRef{date: date, session: s},
				priority:  score,
			})
			if score > best[s.TaskID] {
				best[s.TaskID] = score
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return best[order[i]] > best[order[j]]
	})

	var ranked []rankedMissed
	for _, taskID := range order {
		group := groups[taskID]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].priority > group[j].priority
		})
		ranked = append(ranked, group...)
	}
	return ranked
}

// priorityScore combines the importance bonus with an urgency bonus:
// past-deadline tasks outrank everything, otherwise urgency decays with
// days until the deadline.
func priorityScore(t models.Task, today string) int {
	score := 0
	if t.Importance {
		score += importanceBonus
	}
	if t.Deadline != "" && t.Deadline < today {
		score += pastDeadlineBonus
	} else if t.Deadline != "" {
		days := timeutil.DaysBetween(today, t.Deadline)
		if urgencyBase-days > 0 {
			score += urgencyBase - days
		}
	}
	return score
}

// findDestination searches today through today+redistributeHorizonDays
// (work days only) for the first day with a contiguous open gap large
// enough for the session. Missed sessions are exempt from min/max length
// validation, so only the gap size matters.
func findDestination(plans PlanSet, commitments []models.Commitment, hours float64, st models.Settings, today string) (date, start, end string, ok bool) {
	for offset := 0; offset <= redistributeHorizonDays; offset++ {
		date := timeutil.AddDays(today, offset)
		if !st.IsWorkDay(timeutil.Weekday(date)) {
			continue
		}
		var placed []*models.Session
		if p, exists := plans[date]; exists {
			placed = p.Sessions
		}
		busy := CommitmentIntervals(commitments, date)
		if start, end, found := FindSlot(hours, placed, busy, st); found {
			return date, start, end, true
		}
	}
	return "", "", "", false
}

// preflight applies the edge-case gate: refuse to run when there is
// nothing to move, no feasible capacity, or no work days ahead. Returns
// the diagnostic feedback and ok=false on refusal.
func preflight(plans PlanSet, candidates []rankedMissed, st models.Settings, today string) (Feedback, bool) {
	var fb Feedback
	fb.TotalMissed = len(candidates)

	if len(candidates) == 0 {
		fb.Issues = append(fb.Issues, "no missed sessions to redistribute")
		return fb, false
	}

	workDays := 0
	available := 0.0
	for offset := 0; offset < feasibilityWindowDays; offset++ {
		date := timeutil.AddDays(today, offset)
		if !st.IsWorkDay(timeutil.Weekday(date)) {
			continue
		}
		workDays++
		used := 0.0
		if p, ok := plans[date]; ok {
			used = p.ScheduledHours()
		}
		available += math.Max(0, st.DailyAvailableHours-used)
	}

	if workDays == 0 {
		fb.Issues = append(fb.Issues, fmt.Sprintf("no available work days in the next %d days", feasibilityWindowDays))
		fb.RemainingMissed = len(candidates)
		return fb, false
	}

	var needed float64
	for _, c := range candidates {
		needed += c.session.AllocatedHours
	}
	if needed > available+hoursEpsilon {
		fb.Issues = append(fb.Issues, fmt.Sprintf("insufficient available time: %.1fh needed, %.1fh available over the next %d days", needed, available, feasibilityWindowDays))
		fb.RemainingMissed = len(candidates)
		return fb, false
	}

	return fb, true
}

// pastDeadlineWarnings flags candidates whose task deadline already
// passed. Warnings only: they do not block the attempt.
func pastDeadlineWarnings(candidates []rankedMissed, tidx map[string]models.Task, today string) []string {
	seen := make(map[string]bool)
	var warnings []string
	for _, c := range candidates {
		t, ok := tidx[c.session.TaskID]
		if !ok || seen[t.ID] {
			continue
		}
		if t.Deadline != "" && t.Deadline < today {
			seen[t.ID] = true
			warnings = append(warnings, fmt.Sprintf("task %q deadline %s has passed; rescheduled sessions will land after it", t.Title, t.Deadline))
		}
	}
	return warnings
}

// pruneOrphans removes duplicates left behind when a moved session still
// sits in its original plan slot.
func pruneOrphans(plans PlanSet, moved []MovedSession) {
	for _, m := range moved {
		src, ok := plans[m.FromDate]
		if !ok {
			continue
		}
		var keep []*models.Session
		for _, s := range src.Sessions {
			if s.ID == m.SessionID && !s.Redistributed() {
				continue
			}
			keep = append(keep, s)
		}
		src.Sessions = keep
	}
}
