package scheduling

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// Suggestion reports task hours that could not be placed before the
// task's deadline. Non-fatal: generation still returns a best-effort
// plan, and the caller prompts the user for corrective settings changes.
type Suggestion struct {
	TaskID             string
	TaskTitle          string
	UnscheduledMinutes int
	Message            string
}

// GenerateResult is the output of a full plan generation.
type GenerateResult struct {
	Plans       PlanSet
	Suggestions []Suggestion
}

// Generate produces a day-by-day study plan for all pending tasks.
//
// Finished (done or skipped) sessions and all past-date sessions from the
// existing plans are preserved; missed past sessions are carried forward
// into open capacity with redistribution metadata. Everything else is
// rebuilt from scratch according to the configured strategy.
func Generate(tasks []models.Task, st models.Settings, commitments []models.Commitment, existing PlanSet, now time.Time) GenerateResult {
	today := timeutil.FormatDate(now)

	var pending []models.Task
	for _, t := range tasks {
		if t.Pending() {
			pending = append(pending, t)
		}
	}
	pending = byPriority(pending)

	plans := preserveSessions(existing, today)
	horizon := horizonDates(pending, st, today)

	capacity := make(map[string]float64, len(horizon))
	for _, date := range horizon {
		used := 0.0
		if p, ok := plans[date]; ok {
			used = p.ScheduledHours()
		}
		capacity[date] = math.Max(0, roundHours(st.DailyAvailableHours-used))
	}

	// Preserved sessions keep their identity and already hold hours
	// against the task's estimate, so the fresh allocation only covers
	// the remainder. Skipped sessions return their hours to the pool.
	missed := collectMissed(plans, now)
	remaining := make(map[string]float64, len(pending))
	for _, t := range pending {
		rem := t.EstimatedHours
		for _, p := range plans {
			for _, s := range p.Sessions {
				if s.TaskID == t.ID && s.Status != models.SessionStatusSkipped {
					rem -= s.AllocatedHours
				}
			}
		}
		remaining[t.ID] = math.Max(0, roundHours(rem))
	}

	var unscheduled map[string]float64
	if st.StudyPlanMode == models.PlanModeEisenhower {
		unscheduled = allocateEisenhower(pending, remaining, horizon, capacity, plans, commitments, st)
	} else {
		unscheduled = allocateEvenAll(pending, remaining, horizon, capacity, plans, st)
		combinePlans(plans, st, commitments, false)
	}

	carried := carryMissedForward(plans, missed, pending, horizon, capacity, st, now)
	if st.StudyPlanMode != models.PlanModeEisenhower {
		combinePlans(plans, st, commitments, false)
	}

	assignTimes(plans, commitments, pending, st, today)
	prunePlans(plans)
	recalcPlans(plans)

	return GenerateResult{
		Plans:       plans,
		Suggestions: append(buildSuggestions(pending, unscheduled), carried...),
	}
}

// preserveSessions copies forward the sessions regeneration must not
// discard: every session on a past date, and finished sessions anywhere.
func preserveSessions(existing PlanSet, today string) PlanSet {
	plans := make(PlanSet)
	for date, p := range existing {
		var keep []*models.Session
		for _, s := range p.Sessions {
			if date < today || s.Finished() {
				keep = append(keep, s.Clone())
			}
		}
		if len(keep) > 0 {
			np := &models.Plan{Date: date, AvailableHours: p.AvailableHours, Sessions: keep}
			np.RecalcTotals()
			plans[date] = np
		}
	}
	return plans
}

// horizonDates lists the candidate scheduling dates: every work day from
// today through the latest buffer-adjusted deadline, plus each task's own
// adjusted deadline date even when it falls outside the work days.
func horizonDates(pending []models.Task, st models.Settings, today string) []string {
	latest := today
	for _, t := range pending {
		if d := effectiveDeadline(t, st); d > latest {
			latest = d
		}
	}

	set := make(map[string]bool)
	for date := today; date <= latest; date = timeutil.AddDays(date, 1) {
		if st.IsWorkDay(timeutil.Weekday(date)) {
			set[date] = true
		}
	}
	for _, t := range pending {
		if d := effectiveDeadline(t, st); d >= today {
			set[d] = true
		}
	}

	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// taskWindow returns the horizon dates a task may be scheduled on.
func taskWindow(t models.Task, horizon []string, st models.Settings) []string {
	deadline := effectiveDeadline(t, st)
	var window []string
	for _, d := range horizon {
		if d <= deadline {
			window = append(window, d)
		}
	}
	return window
}

// --- even-distribution strategy ---

// allocateEvenAll runs the per-task even allocation in priority order,
// then up to maxGlobalPasses system-wide retry passes for tasks still
// short of their estimate. Returns unscheduled hours per task id.
func allocateEvenAll(pending []models.Task, remaining map[string]float64, horizon []string, capacity map[string]float64, plans PlanSet, st models.Settings) map[string]float64 {
	unscheduled := make(map[string]float64, len(pending))
	for _, t := range pending {
		unscheduled[t.ID] = allocateTaskEven(t, remaining[t.ID], taskWindow(t, horizon, st), capacity, plans, st)
	}

	for pass := 0; pass < maxGlobalPasses; pass++ {
		progressed := false
		for _, t := range pending {
			if unscheduled[t.ID] <= hoursEpsilon {
				continue
			}
			placed := retryRounds(t, unscheduled[t.ID], taskWindow(t, horizon, st), capacity, plans, st)
			if placed > hoursEpsilon {
				unscheduled[t.ID] = roundHours(unscheduled[t.ID] - placed)
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
	return unscheduled
}

// allocateTaskEven distributes a task's hours across its window as
// evenly as possible, then retries leftovers against any window day with
// remaining capacity for a bounded number of rounds.
func allocateTaskEven(t models.Task, hours float64, window []string, capacity map[string]float64, plans PlanSet, st models.Settings) float64 {
	if hours <= hoursEpsilon {
		return 0
	}
	if len(window) == 0 {
		return hours
	}
	placed := allocateRound(t, hours, window, capacity, plans, st)
	un := roundHours(hours - placed)
	if un <= hoursEpsilon {
		return 0
	}
	un = roundHours(un - retryRounds(t, un, window, capacity, plans, st))
	return math.Max(0, un)
}

// retryRounds re-attempts unscheduled hours for up to
// maxRedistributionRounds, recomputing the optimal split each round and
// stopping early once a round places nothing. Returns the hours placed.
func retryRounds(t models.Task, hours float64, window []string, capacity map[string]float64, plans PlanSet, st models.Settings) float64 {
	var placed float64
	un := hours
	for round := 0; round < maxRedistributionRounds && un > hoursEpsilon; round++ {
		p := allocateRound(t, un, window, capacity, plans, st)
		if p <= hoursEpsilon {
			break
		}
		placed = roundHours(placed + p)
		un = roundHours(un - p)
	}
	return placed
}

// allocateRound performs one allocation pass: split the hours into a
// target session count, then assign the chunks to window days in order,
// clipping each to the day's remaining capacity.
func allocateRound(t models.Task, hours float64, window []string, capacity map[string]float64, plans PlanSet, st models.Settings) float64 {
	minH := st.MinSessionHours()
	if hours < minH-hoursEpsilon {
		return 0
	}

	chunks := splitHours(hours, sessionTarget(hours, len(window), st), st)
	var placed float64
	di := 0
	for _, chunk := range chunks {
		left := roundHours(hours - placed)
		if left < minH-hoursEpsilon {
			break
		}
		for di < len(window) && capacity[window[di]] < minH-hoursEpsilon {
			di++
		}
		if di >= len(window) {
			break
		}
		date := window[di]
		alloc := roundHours(math.Min(math.Min(chunk, left), capacity[date]))
		if alloc < minH-hoursEpsilon {
			di++
			continue
		}
		appendSession(plans, date, t.ID, alloc, st)
		capacity[date] = math.Max(0, roundHours(capacity[date]-alloc))
		placed = roundHours(placed + alloc)
		di++
	}
	return placed
}

// sessionTarget computes how many sessions the hours should be split
// into: bounded by the eligible day count, floored at one session.
func sessionTarget(hours float64, days int, st models.Settings) int {
	if days <= 0 {
		return 0
	}
	target := int(hours / st.MinSessionHours())
	if target < 1 {
		target = 1
	}
	if target > days {
		target = days
	}
	return target
}

// splitHours divides hours into target near-equal chunks capped at the
// per-session maximum, folding the rounding remainder into the first
// chunk.
func splitHours(hours float64, target int, st models.Settings) []float64 {
	if target <= 0 {
		return nil
	}
	maxH := st.MaxSessionHours()
	per := roundHours(hours / float64(target))
	if per > maxH {
		per = maxH
	}

	chunks := make([]float64, target)
	total := 0.0
	for i := range chunks {
		chunks[i] = per
		total = roundHours(total + per)
	}
	remainder := roundHours(hours - total)
	if remainder != 0 {
		first := roundHours(chunks[0] + remainder)
		if first > maxH {
			first = maxH
		}
		if first > 0 {
			chunks[0] = first
		}
	}
	return chunks
}

// --- eisenhower (deadline-priority) strategy ---

// allocateEisenhower makes a single greedy forward pass over the horizon:
// per day, each eligible task in priority order takes as much of the
// day's remaining capacity as it needs, placed immediately. Strictly
// priority-ordered, so low-importance tasks with near deadlines can be
// starved by important work; that shortfall surfaces as a suggestion.
func allocateEisenhower(pending []models.Task, remaining map[string]float64, horizon []string, capacity map[string]float64, plans PlanSet, commitments []models.Commitment, st models.Settings) map[string]float64 {
	minH := st.MinSessionHours()
	maxH := st.MaxSessionHours()

	for _, date := range horizon {
		if capacity[date] < minH-hoursEpsilon {
			continue
		}
		busy := CommitmentIntervals(commitments, date)
		for _, t := range pending {
			rem := remaining[t.ID]
			if rem <= hoursEpsilon {
				continue
			}
			if effectiveDeadline(t, st) < date {
				continue
			}
			alloc := roundHours(math.Min(math.Min(rem, capacity[date]), maxH))
			if alloc < minH-hoursEpsilon {
				continue
			}

			sess := appendSession(plans, date, t.ID, alloc, st)
			if start, end, ok := FindSlot(alloc, plans[date].Sessions, busy, st); ok {
				sess.StartTime = start
				sess.EndTime = end
			}
			capacity[date] = math.Max(0, roundHours(capacity[date]-alloc))
			remaining[t.ID] = roundHours(rem - alloc)
			if capacity[date] < minH-hoursEpsilon {
				break
			}
		}
	}
	return remaining
}

// --- shared helpers ---

// appendSession creates a fresh scheduled session for the task on the
// given date, numbered after its existing non-skipped siblings.
func appendSession(plans PlanSet, date, taskID string, hours float64, st models.Settings) *models.Session {
	p := planFor(plans, date, st)
	n := 1
	for _, s := range p.Sessions {
		if s.TaskID == taskID && s.Status != models.SessionStatusSkipped {
			n++
		}
	}
	sess := &models.Session{
		ID:             newSessionID(),
		TaskID:         taskID,
		AllocatedHours: hours,
		SessionNumber:  n,
		Status:         models.SessionStatusScheduled,
	}
	p.Sessions = append(p.Sessions, sess)
	return sess
}

// missedRef locates a missed session inside a plan set.
type missedRef struct {
	date    string
	session *models.Session
}

// collectMissed groups the plan set's missed sessions by task id.
func collectMissed(plans PlanSet, now time.Time) map[string][]missedRef {
	missed := make(map[string][]missedRef)
	for _, date := range sortedDates(plans) {
		for _, s := range plans[date].Sessions {
			if Classify(s, date, now) == models.SessionStatusMissed {
				missed[s.TaskID] = append(missed[s.TaskID], missedRef{date: date, session: s})
			}
		}
	}
	return missed
}

// carryMissedForward moves missed past sessions into horizon days with
// open capacity, stamping redistribution metadata. Placement prefers the
// task's own deadline-bounded window; when the window is full the
// session still lands on a later horizon day, flagged with a suggestion.
// Sessions that fit nowhere stay missed in their original plan for a
// later redistribution attempt.
func carryMissedForward(plans PlanSet, missed map[string][]missedRef, pending []models.Task, horizon []string, capacity map[string]float64, st models.Settings, now time.Time) []Suggestion {
	var suggestions []Suggestion
	for _, t := range pending {
		window := taskWindow(t, horizon, st)
		for _, ref := range missed[t.ID] {
			date, ok := firstFit(window, capacity, ref.session.AllocatedHours)
			pastWindow := false
			if !ok {
				date, ok = firstFit(horizon, capacity, ref.session.AllocatedHours)
				pastWindow = ok
			}
			if !ok {
				continue
			}

			moved := ref.session.Clone()
			moved.OriginalDate = ref.date
			moved.OriginalTime = ref.session.StartTime
			moved.StartTime = ""
			moved.EndTime = ""
			moved.Status = models.SessionStatusScheduled
			ts := now
			moved.RescheduledAt = &ts

			p := planFor(plans, date, st)
			p.Sessions = append(p.Sessions, moved)
			capacity[date] = math.Max(0, roundHours(capacity[date]-moved.AllocatedHours))
			removeSession(plans, ref.date, ref.session.ID)

			if pastWindow {
				minutes := int(math.Round(moved.AllocatedHours * 60))
				suggestions = append(suggestions, Suggestion{
					TaskID:             t.ID,
					TaskTitle:          t.Title,
					UnscheduledMinutes: minutes,
					Message:            fmt.Sprintf("%s: a missed %d min session was carried to %s, past the deadline; extend daily hours, add work days, or move the deadline", t.Title, minutes, date),
				})
			}
		}
	}
	return suggestions
}

// firstFit returns the earliest date with enough remaining capacity.
func firstFit(dates []string, capacity map[string]float64, hours float64) (string, bool) {
	for _, d := range dates {
		if capacity[d] >= hours-hoursEpsilon {
			return d, true
		}
	}
	return "", false
}

// removeSession deletes a session by id from the plan at date.
func removeSession(plans PlanSet, date, sessionID string) {
	p, ok := plans[date]
	if !ok {
		return
	}
	var keep []*models.Session
	for _, s := range p.Sessions {
		if s.ID != sessionID {
			keep = append(keep, s)
		}
	}
	p.Sessions = keep
}

// assignTimes gives every unplaced, unfinished session from today onward
// a concrete slot via the first-fit finder, in task priority order.
// Sessions that find no slot keep empty times: they still count as
// allocated but are not visible on a calendar.
func assignTimes(plans PlanSet, commitments []models.Commitment, pending []models.Task, st models.Settings, fromDate string) {
	tasks := taskIndex(pending)
	for _, date := range sortedDates(plans) {
		if date < fromDate {
			continue
		}
		p := plans[date]
		busy := CommitmentIntervals(commitments, date)

		var toPlace []*models.Session
		for _, s := range p.Sessions {
			if s.Status == models.SessionStatusSkipped || s.Finished() || s.Placed() {
				continue
			}
			toPlace = append(toPlace, s)
		}
		sort.SliceStable(toPlace, func(i, j int) bool {
			a, aok := tasks[toPlace[i].TaskID]
			b, bok := tasks[toPlace[j].TaskID]
			if !aok || !bok {
				return aok
			}
			if a.Importance != b.Importance {
				return a.Importance
			}
			return a.Deadline < b.Deadline
		})

		for _, s := range toPlace {
			if start, end, ok := FindSlot(s.AllocatedHours, p.Sessions, busy, st); ok {
				s.StartTime = start
				s.EndTime = end
			} else {
				s.StartTime = ""
				s.EndTime = ""
			}
		}
	}
}

func buildSuggestions(pending []models.Task, unscheduled map[string]float64) []Suggestion {
	var suggestions []Suggestion
	for _, t := range pending {
		un := unscheduled[t.ID]
		if un <= hoursEpsilon {
			continue
		}
		minutes := int(math.Round(un * 60))
		suggestions = append(suggestions, Suggestion{
			TaskID:             t.ID,
			TaskTitle:          t.Title,
			UnscheduledMinutes: minutes,
			Message:            fmt.Sprintf("%s: %d min could not be scheduled before the deadline; extend daily hours, add work days, or move the deadline", t.Title, minutes),
		})
	}
	return suggestions
}
