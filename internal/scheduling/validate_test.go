package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joescharf/sp/internal/models"
)

func validateSettings() models.Settings {
	st := models.DefaultSettings()
	st.DailyAvailableHours = 4
	st.MinSessionLength = 30
	return st
}

func TestPlanConflicts_Clean(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "10:00", AllocatedHours: 2},
			{ID: "b", StartTime: "10:10", EndTime: "12:10", AllocatedHours: 2},
		}},
	}
	conflict, _ := PlanConflicts(plans, validateSettings())
	assert.False(t, conflict)
}

func TestPlanConflicts_Overlap(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "10:00", AllocatedHours: 2},
			{ID: "b", StartTime: "09:30", EndTime: "10:30", AllocatedHours: 1},
		}},
	}
	conflict, diag := PlanConflicts(plans, validateSettings())
	assert.True(t, conflict)
	assert.Contains(t, diag, "overlaps")
}

func TestPlanConflicts_SkippedSessionsIgnored(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "10:00", AllocatedHours: 2},
			{ID: "b", StartTime: "09:30", EndTime: "10:30", AllocatedHours: 1, Status: models.SessionStatusSkipped},
		}},
	}
	conflict, _ := PlanConflicts(plans, validateSettings())
	assert.False(t, conflict, "skipped sessions do not count toward overlap or capacity")
}

func TestPlanConflicts_CapacityExceeded(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "11:00", AllocatedHours: 3},
			{ID: "b", StartTime: "11:10", EndTime: "13:40", AllocatedHours: 2.5},
		}},
	}
	conflict, diag := PlanConflicts(plans, validateSettings())
	assert.True(t, conflict)
	assert.Contains(t, diag, "capacity")
}

func TestPlanConflicts_RedistributedExemptFromCapacity(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "11:00", AllocatedHours: 3},
			{ID: "b", StartTime: "11:10", EndTime: "13:40", AllocatedHours: 2.5, OriginalTime: "08:00", OriginalDate: "2026-08-28"},
		}},
	}
	conflict, _ := PlanConflicts(plans, validateSettings())
	assert.False(t, conflict, "overflow already accepted by the user is allowed")
}

func TestPlanConflicts_SessionTooShort(t *testing.T) {
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "08:15", AllocatedHours: 0.25},
		}},
	}
	conflict, diag := PlanConflicts(plans, validateSettings())
	assert.True(t, conflict)
	assert.Contains(t, diag, "outside")
}

func TestPlanConflicts_SessionTooLong(t *testing.T) {
	st := validateSettings()
	st.DailyAvailableHours = 8
	plans := PlanSet{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "a", StartTime: "08:00", EndTime: "13:00", AllocatedHours: 5},
		}},
	}
	conflict, _ := PlanConflicts(plans, st)
	assert.True(t, conflict, "5h session exceeds the 4h cap")
}
