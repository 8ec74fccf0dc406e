// Package scheduling implements the plan-generation and redistribution
// engine. Every entry point is a pure transformation: it receives
// immutable snapshots of tasks, settings, commitments, and plans plus an
// explicit clock value, and returns newly built collections. Callers own
// persistence.
package scheduling

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/timeutil"
)

// PlanSet maps "2006-01-02" dates to day plans.
type PlanSet map[string]*models.Plan

// Bounded retry/search limits. Empirical termination bounds, not semantic
// contracts.
const (
	maxRedistributionRounds = 10
	maxGlobalPasses         = 3
	redistributeHorizonDays = 14
	feasibilityWindowDays   = 7
)

// hoursEpsilon guards float comparisons on hour quantities; allocations
// are rounded to minute granularity so anything below half a minute is
// noise.
const hoursEpsilon = 1.0 / 240

// ClonePlans deep-copies a plan set so the engine never mutates its input.
func ClonePlans(plans PlanSet) PlanSet {
	out := make(PlanSet, len(plans))
	for date, p := range plans {
		out[date] = p.Clone()
	}
	return out
}

// planFor returns the plan for date, creating it on demand.
func planFor(plans PlanSet, date string, st models.Settings) *models.Plan {
	if p, ok := plans[date]; ok {
		return p
	}
	p := &models.Plan{Date: date, AvailableHours: st.DailyAvailableHours}
	plans[date] = p
	return p
}

// prunePlans drops plans left with zero sessions.
func prunePlans(plans PlanSet) {
	for date, p := range plans {
		if len(p.Sessions) == 0 {
			delete(plans, date)
		}
	}
}

// recalcPlans refreshes every plan's progress total.
func recalcPlans(plans PlanSet) {
	for _, p := range plans {
		p.RecalcTotals()
	}
}

// newSessionID generates a ULID for a freshly created session.
func newSessionID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// roundHours snaps an hour quantity to minute granularity.
func roundHours(h float64) float64 {
	return math.Round(h*60) / 60
}

// effectiveDeadline shifts a task deadline earlier by the configured
// buffer days. Scheduling-only: the stored deadline is untouched.
func effectiveDeadline(t models.Task, st models.Settings) string {
	if st.BufferDays <= 0 {
		return t.Deadline
	}
	return timeutil.AddDays(t.Deadline, -st.BufferDays)
}

// byPriority orders tasks importance-first, then earliest deadline.
func byPriority(tasks []models.Task) []models.Task {
	sorted := make([]models.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Importance != sorted[j].Importance {
			return sorted[i].Importance
		}
		return sorted[i].Deadline < sorted[j].Deadline
	})
	return sorted
}

// taskIndex builds a lookup from task id to task.
func taskIndex(tasks []models.Task) map[string]models.Task {
	idx := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		idx[t.ID] = t
	}
	return idx
}

// sortedDates returns the plan set's dates in ascending order.
func sortedDates(plans PlanSet) []string {
	dates := make([]string, 0, len(plans))
	for d := range plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
