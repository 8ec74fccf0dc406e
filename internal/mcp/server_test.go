package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/store"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	tasks       []*models.Task
	commitments []*models.Commitment
	plans       map[string]*models.Plan
	settings    *models.Settings

	// Track calls for verification.
	createdTasks  []*models.Task
	replacedPlans map[string]*models.Plan

	// Optional error injection.
	listTasksErr  error
	createTaskErr error
}

func (m *mockStore) CreateTask(_ context.Context, t *models.Task) error {
	if m.createTaskErr != nil {
		return m.createTaskErr
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("task-%d", len(m.tasks)+1)
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = time.Now()
	m.tasks = append(m.tasks, t)
	m.createdTasks = append(m.createdTasks, t)
	return nil
}
func (m *mockStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	for _, t := range m.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task not found: %s", id)
}
func (m *mockStore) FindTaskByPrefix(_ context.Context, prefix string) (*models.Task, error) {
	for _, t := range m.tasks {
		if strings.HasPrefix(t.ID, prefix) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("task not found: %s", prefix)
}
func (m *mockStore) ListTasks(_ context.Context, filter store.TaskListFilter) ([]*models.Task, error) {
	if m.listTasksErr != nil {
		return nil, m.listTasksErr
	}
	var result []*models.Task
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.DueBy != "" && t.Deadline > filter.DueBy {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}
func (m *mockStore) UpdateTask(_ context.Context, task *models.Task) error {
	for idx, t := range m.tasks {
		if t.ID == task.ID {
			m.tasks[idx] = task
			return nil
		}
	}
	return fmt.Errorf("task not found: %s", task.ID)
}
func (m *mockStore) DeleteTask(_ context.Context, _ string) error { return nil }

func (m *mockStore) CreateCommitment(_ context.Context, c *models.Commitment) error {
	if c.ID == "" {
		c.ID = fmt.Sprintf("commitment-%d", len(m.commitments)+1)
	}
	m.commitments = append(m.commitments, c)
	return nil
}
func (m *mockStore) GetCommitment(_ context.Context, id string) (*models.Commitment, error) {
	for _, c := range m.commitments {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("commitment not found: %s", id)
}
func (m *mockStore) ListCommitments(_ context.Context) ([]*models.Commitment, error) {
	return m.commitments, nil
}
func (m *mockStore) UpdateCommitment(_ context.Context, _ *models.Commitment) error { return nil }
func (m *mockStore) DeleteCommitment(_ context.Context, _ string) error             { return nil }

func (m *mockStore) GetPlan(_ context.Context, date string) (*models.Plan, error) {
	if p, ok := m.plans[date]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no plan for date: %s", date)
}
func (m *mockStore) ListPlans(_ context.Context) (map[string]*models.Plan, error) {
	if m.plans == nil {
		return map[string]*models.Plan{}, nil
	}
	return m.plans, nil
}
func (m *mockStore) SavePlan(_ context.Context, p *models.Plan) error {
	if m.plans == nil {
		m.plans = make(map[string]*models.Plan)
	}
	m.plans[p.Date] = p
	return nil
}
func (m *mockStore) ReplaceAllPlans(_ context.Context, plans map[string]*models.Plan) error {
	m.plans = plans
	m.replacedPlans = plans
	return nil
}

func (m *mockStore) GetSettings(_ context.Context) (models.Settings, error) {
	if m.settings != nil {
		return *m.settings, nil
	}
	return models.DefaultSettings(), nil
}
func (m *mockStore) SaveSettings(_ context.Context, st models.Settings) error {
	m.settings = &st
	return nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// Reference clock: Tuesday 2026-09-01, 12:00.
var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

// newTestServer creates a Server with a mock store and a fixed clock.
func newTestServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()

	ms := &mockStore{}
	srv := NewServer(ms)
	require.NotNil(t, srv)
	srv.now = func() time.Time { return testNow }

	return srv, ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// seedTask adds a task to the mock store and returns it.
func seedTask(t *testing.T, ms *mockStore, title, deadline string, hours float64, important bool) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:             fmt.Sprintf("task-%s-%d", title, len(ms.tasks)+1),
		Title:          title,
		Deadline:       deadline,
		Importance:     important,
		EstimatedHours: hours,
		Status:         models.TaskStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	ms.tasks = append(ms.tasks, task)
	return task
}

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: sp_list_tasks
// ---------------------------------------------------------------------------

func TestHandleListTasks_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListTasks(context.Background(), callToolReq("sp_list_tasks", nil))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.NotEmpty(t, text, "should return some output even with no tasks")
}

func TestHandleListTasks_StatusFilter(t *testing.T) {
	srv, ms := newTestServer(t)
	seedTask(t, ms, "Essay", "2026-09-05", 3, false)
	done := seedTask(t, ms, "Reading", "2026-09-03", 2, false)
	done.Status = models.TaskStatusCompleted

	result, err := srv.handleListTasks(context.Background(),
		callToolReq("sp_list_tasks", map[string]any{"status": "pending"}))
	require.NoError(t, err)

	var out []map[string]any
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "Essay", out[0]["title"])
}

func TestHandleListTasks_StoreError(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.listTasksErr = fmt.Errorf("boom")

	result, err := srv.handleListTasks(context.Background(), callToolReq("sp_list_tasks", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: sp_create_task
// ---------------------------------------------------------------------------

func TestHandleCreateTask(t *testing.T) {
	srv, ms := newTestServer(t)

	result, err := srv.handleCreateTask(context.Background(),
		callToolReq("sp_create_task", map[string]any{
			"title":           "Exam prep",
			"deadline":        "2026-09-10",
			"estimated_hours": 6.5,
			"important":       true,
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	require.Len(t, ms.createdTasks, 1)
	created := ms.createdTasks[0]
	assert.Equal(t, "Exam prep", created.Title)
	assert.Equal(t, "2026-09-10", created.Deadline)
	assert.True(t, created.Importance)
	assert.InDelta(t, 6.5, created.EstimatedHours, 1e-9)

	var out map[string]any
	resultJSON(t, result, &out)
	assert.Equal(t, "pending", out["status"])
}

func TestHandleCreateTask_MissingTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateTask(context.Background(),
		callToolReq("sp_create_task", map[string]any{"deadline": "2026-09-10", "estimated_hours": 2.0}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateTask_BadDeadline(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateTask(context.Background(),
		callToolReq("sp_create_task", map[string]any{
			"title": "x", "deadline": "tomorrow", "estimated_hours": 2.0,
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "YYYY-MM-DD")
}

func TestHandleCreateTask_NonPositiveHours(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateTask(context.Background(),
		callToolReq("sp_create_task", map[string]any{
			"title": "x", "deadline": "2026-09-10", "estimated_hours": 0.0,
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: sp_today
// ---------------------------------------------------------------------------

func TestHandleToday(t *testing.T) {
	srv, ms := newTestServer(t)
	task := seedTask(t, ms, "Essay", "2026-09-05", 3, false)
	ms.plans = map[string]*models.Plan{
		"2026-09-01": {Date: "2026-09-01", Sessions: []*models.Session{
			{ID: "s1", TaskID: task.ID, StartTime: "14:00", EndTime: "15:00", AllocatedHours: 1, SessionNumber: 1},
			{ID: "s2", TaskID: task.ID, StartTime: "16:00", EndTime: "17:00", AllocatedHours: 1, Status: models.SessionStatusSkipped},
		}},
	}
	ms.commitments = []*models.Commitment{
		{ID: "c1", Title: "Lecture", StartTime: "09:00", EndTime: "10:00", Recurring: true, DaysOfWeek: []int{2}},
	}

	result, err := srv.handleToday(context.Background(), callToolReq("sp_today", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Date     string `json:"date"`
		Sessions []struct {
			TaskTitle string `json:"task_title"`
			Status    string `json:"status"`
		} `json:"sessions"`
		Commitments []struct {
			Title string `json:"title"`
		} `json:"commitments"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "2026-09-01", out.Date)
	require.Len(t, out.Sessions, 1, "skipped sessions are hidden")
	assert.Equal(t, "Essay", out.Sessions[0].TaskTitle)
	assert.Equal(t, "scheduled", out.Sessions[0].Status, "14:00 session has not started at noon")
	require.Len(t, out.Commitments, 1)
	assert.Equal(t, "Lecture", out.Commitments[0].Title)
}

func TestHandleToday_NoPlan(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleToday(context.Background(), callToolReq("sp_today", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		Sessions []any `json:"sessions"`
	}
	resultJSON(t, result, &out)
	assert.Empty(t, out.Sessions)
}

// ---------------------------------------------------------------------------
// Tests: sp_generate_plan
// ---------------------------------------------------------------------------

func TestHandleGeneratePlan(t *testing.T) {
	srv, ms := newTestServer(t)
	seedTask(t, ms, "Essay", "2026-09-03", 2, false)

	result, err := srv.handleGeneratePlan(context.Background(), callToolReq("sp_generate_plan", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	require.NotNil(t, ms.replacedPlans, "generated plans are persisted")
	assert.NotEmpty(t, ms.replacedPlans)

	var out struct {
		Mode string `json:"mode"`
		Days []struct {
			Date     string `json:"date"`
			Sessions int    `json:"sessions"`
		} `json:"days"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "even", out.Mode)
	assert.NotEmpty(t, out.Days)
}

// ---------------------------------------------------------------------------
// Tests: sp_redistribute_missed
// ---------------------------------------------------------------------------

func TestHandleRedistributeMissed(t *testing.T) {
	srv, ms := newTestServer(t)
	task := seedTask(t, ms, "Lab report", "2026-09-05", 2, false)
	ms.plans = map[string]*models.Plan{
		"2026-08-31": {Date: "2026-08-31", Sessions: []*models.Session{
			{ID: "m1", TaskID: task.ID, StartTime: "09:00", EndTime: "10:00", AllocatedHours: 1, SessionNumber: 1},
		}},
	}

	result, err := srv.handleRedistributeMissed(context.Background(), callToolReq("sp_redistribute_missed", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		TotalMissed       int `json:"total_missed"`
		SuccessfullyMoved int `json:"successfully_moved"`
		Moved             []struct {
			FromDate string `json:"from_date"`
			ToDate   string `json:"to_date"`
		} `json:"moved"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 1, out.TotalMissed)
	assert.Equal(t, 1, out.SuccessfullyMoved)
	require.Len(t, out.Moved, 1)
	assert.Equal(t, "2026-08-31", out.Moved[0].FromDate)
	assert.Equal(t, "2026-09-01", out.Moved[0].ToDate)

	require.NotNil(t, ms.replacedPlans, "successful redistribution is persisted")
}

func TestHandleRedistributeMissed_NothingToMove(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleRedistributeMissed(context.Background(), callToolReq("sp_redistribute_missed", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		TotalMissed int      `json:"total_missed"`
		Issues      []string `json:"issues"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, 0, out.TotalMissed)
	require.NotEmpty(t, out.Issues)
	assert.Contains(t, out.Issues[0], "no missed sessions")
}

// ---------------------------------------------------------------------------
// Tests: sp_check_commitment_conflicts
// ---------------------------------------------------------------------------

func TestHandleCheckCommitmentConflicts_Strict(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.commitments = []*models.Commitment{
		{ID: "c1", Title: "Lecture", StartTime: "09:00", EndTime: "10:00", Recurring: true, DaysOfWeek: []int{1, 3}},
	}

	result, err := srv.handleCheckCommitmentConflicts(context.Background(),
		callToolReq("sp_check_commitment_conflicts", map[string]any{
			"start_time":   "09:30",
			"end_time":     "10:30",
			"days_of_week": "3,5",
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out struct {
		HasConflict      bool   `json:"has_conflict"`
		Type             string `json:"type"`
		ConflictingTitle string `json:"conflicting_title"`
	}
	resultJSON(t, result, &out)
	assert.True(t, out.HasConflict)
	assert.Equal(t, "strict", out.Type)
	assert.Equal(t, "Lecture", out.ConflictingTitle)
}

func TestHandleCheckCommitmentConflicts_Override(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.commitments = []*models.Commitment{
		{ID: "c1", Title: "Lecture", StartTime: "09:00", EndTime: "10:00", Recurring: true, DaysOfWeek: []int{3}},
	}

	result, err := srv.handleCheckCommitmentConflicts(context.Background(),
		callToolReq("sp_check_commitment_conflicts", map[string]any{
			"start_time": "09:30",
			"end_time":   "10:30",
			"dates":      "2026-09-02",
		}))
	require.NoError(t, err)

	var out struct {
		HasConflict   bool     `json:"has_conflict"`
		Type          string   `json:"type"`
		OverrideDates []string `json:"override_dates"`
	}
	resultJSON(t, result, &out)
	assert.True(t, out.HasConflict)
	assert.Equal(t, "override", out.Type)
	assert.Equal(t, []string{"2026-09-02"}, out.OverrideDates)
}

func TestHandleCheckCommitmentConflicts_NoShape(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCheckCommitmentConflicts(context.Background(),
		callToolReq("sp_check_commitment_conflicts", map[string]any{
			"start_time": "09:00",
			"end_time":   "10:00",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
