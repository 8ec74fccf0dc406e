package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sp/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Task CRUD ---

func TestTaskCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{
		Title:          "Linear algebra problem set",
		Description:    "Chapters 3-4",
		Deadline:       "2026-09-12",
		Importance:     true,
		EstimatedHours: 6,
	}
	err := s.CreateTask(ctx, task)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linear algebra problem set", got.Title)
	assert.Equal(t, "2026-09-12", got.Deadline)
	assert.True(t, got.Importance)
	assert.InDelta(t, 6, got.EstimatedHours, 1e-9)

	got.EstimatedHours = 4.5
	got.Status = models.TaskStatusInProgress
	err = s.UpdateTask(ctx, got)
	require.NoError(t, err)

	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, got.EstimatedHours, 1e-9)
	assert.Equal(t, models.TaskStatusInProgress, got.Status)

	err = s.DeleteTask(ctx, task.ID)
	require.NoError(t, err)

	_, err = s.GetTask(ctx, task.ID)
	assert.Error(t, err)
}

func TestFindTaskByPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &models.Task{Title: "Essay", Deadline: "2026-09-10", EstimatedHours: 2}
	require.NoError(t, s.CreateTask(ctx, task))

	got, err := s.FindTaskByPrefix(ctx, task.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = s.FindTaskByPrefix(ctx, "nonexistent")
	assert.Error(t, err)
}

func TestListTasks_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTask(ctx, &models.Task{Title: "a", Deadline: "2026-09-05", EstimatedHours: 1}))
	require.NoError(t, s.CreateTask(ctx, &models.Task{Title: "b", Deadline: "2026-09-20", EstimatedHours: 1}))
	done := &models.Task{Title: "c", Deadline: "2026-09-01", EstimatedHours: 1}
	require.NoError(t, s.CreateTask(ctx, done))
	done.Status = models.TaskStatusCompleted
	require.NoError(t, s.UpdateTask(ctx, done))

	pending, err := s.ListTasks(ctx, TaskListFilter{Status: models.TaskStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	due, err := s.ListTasks(ctx, TaskListFilter{Status: models.TaskStatusPending, DueBy: "2026-09-10"})
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "a", due[0].Title)

	all, err := s.ListTasks(ctx, TaskListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[2].Title, "completed tasks sort last")
}

// --- Commitment CRUD ---

func TestCommitmentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	title := "Linear Algebra (room change)"
	c := &models.Commitment{
		Title:      "Linear Algebra",
		StartTime:  "09:00",
		EndTime:    "10:30",
		Type:       models.CommitmentTypeClass,
		Recurring:  true,
		DaysOfWeek: []int{1, 3, 5},
		DeletedOccurrences: []string{"2026-09-02"},
		ModifiedOccurrences: map[string]models.OccurrenceOverride{
			"2026-09-04": {Title: &title},
		},
	}
	err := s.CreateCommitment(ctx, c)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	got, err := s.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra", got.Title)
	assert.Equal(t, models.CommitmentTypeClass, got.Type)
	assert.True(t, got.Recurring)
	assert.Equal(t, []int{1, 3, 5}, got.DaysOfWeek)
	assert.Equal(t, []string{"2026-09-02"}, got.DeletedOccurrences)
	require.Contains(t, got.ModifiedOccurrences, "2026-09-04")
	require.NotNil(t, got.ModifiedOccurrences["2026-09-04"].Title)
	assert.Equal(t, title, *got.ModifiedOccurrences["2026-09-04"].Title)

	got.DeletedOccurrences = append(got.DeletedOccurrences, "2026-09-09")
	err = s.UpdateCommitment(ctx, got)
	require.NoError(t, err)

	got, err = s.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.DeletedOccurrences, 2)

	err = s.DeleteCommitment(ctx, c.ID)
	require.NoError(t, err)

	_, err = s.GetCommitment(ctx, c.ID)
	assert.Error(t, err)
}

func TestListCommitments_OneOff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Commitment{
		Title:         "Dentist",
		StartTime:     "14:00",
		EndTime:       "15:00",
		Type:          models.CommitmentTypeAppointment,
		SpecificDates: []string{"2026-09-08"},
	}
	require.NoError(t, s.CreateCommitment(ctx, c))

	list, err := s.ListCommitments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Recurring)
	assert.Equal(t, []string{"2026-09-08"}, list[0].SpecificDates)
	assert.Empty(t, list[0].DaysOfWeek)
}

// --- Plans ---

func TestPlanRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	completedAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	p := &models.Plan{
		Date:           "2026-09-01",
		AvailableHours: 4,
		Sessions: []*models.Session{
			{
				TaskID: "task1", StartTime: "08:00", EndTime: "09:00",
				AllocatedHours: 1, SessionNumber: 1,
				Status: models.SessionStatusCompleted, Done: true,
				ActualHours: 1.25, CompletedAt: &completedAt,
			},
			{
				TaskID: "task2", StartTime: "09:10", EndTime: "10:10",
				AllocatedHours: 1, SessionNumber: 1,
				Status:       models.SessionStatusScheduled,
				OriginalDate: "2026-08-28", OriginalTime: "11:00",
			},
		},
	}
	p.RecalcTotals()
	require.NoError(t, s.SavePlan(ctx, p))

	got, err := s.GetPlan(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, got.Sessions, 2)
	assert.Equal(t, "task1", got.Sessions[0].TaskID, "session order survives the round trip")
	assert.True(t, got.Sessions[0].Done)
	assert.InDelta(t, 1.25, got.Sessions[0].ActualHours, 1e-9)
	require.NotNil(t, got.Sessions[0].CompletedAt)
	assert.True(t, got.Sessions[0].CompletedAt.Equal(completedAt))
	assert.Equal(t, "2026-08-28", got.Sessions[1].OriginalDate)
	assert.True(t, got.Sessions[1].Redistributed())
	assert.InDelta(t, 1, got.TotalStudyHours, 1e-9)
}

func TestReplaceAllPlans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := &models.Plan{Date: "2026-09-01", AvailableHours: 4, Sessions: []*models.Session{
		{TaskID: "task1", AllocatedHours: 1, SessionNumber: 1},
	}}
	require.NoError(t, s.SavePlan(ctx, old))

	next := map[string]*models.Plan{
		"2026-09-02": {Date: "2026-09-02", AvailableHours: 4, Sessions: []*models.Session{
			{TaskID: "task2", StartTime: "08:00", EndTime: "09:00", AllocatedHours: 1, SessionNumber: 1},
		}},
		"2026-09-03": {Date: "2026-09-03", AvailableHours: 4, Sessions: []*models.Session{
			{TaskID: "task2", StartTime: "08:00", EndTime: "09:00", AllocatedHours: 1, SessionNumber: 2},
		}},
	}
	require.NoError(t, s.ReplaceAllPlans(ctx, next))

	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.NotContains(t, plans, "2026-09-01", "old plans are gone after replace")
	require.Contains(t, plans, "2026-09-02")
	assert.Len(t, plans["2026-09-02"].Sessions, 1)
}

func TestGetPlan_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPlan(context.Background(), "2026-01-01")
	assert.Error(t, err)
}

// --- Settings ---

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	s := newTestStore(t)

	st, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), st)
}

func TestSettings_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st := models.DefaultSettings()
	st.DailyAvailableHours = 6
	st.WorkDays = []int{0, 1, 2, 3, 4, 5, 6}
	st.StudyPlanMode = models.PlanModeEisenhower
	require.NoError(t, s.SaveSettings(ctx, st))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	// Upsert
	st.BufferDays = 2
	require.NoError(t, s.SaveSettings(ctx, st))
	got, err = s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BufferDays)
}
