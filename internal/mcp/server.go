package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/scheduling"
	"github.com/joescharf/sp/internal/store"
	"github.com/joescharf/sp/internal/timeutil"
)

// Server wraps the sp data layer and exposes it as MCP tools.
type Server struct {
	store store.Store
	now   func() time.Time
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store) *Server {
	return &Server{
		store: s,
		now:   time.Now,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("sp", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.listTasksTool())
	srv.AddTool(s.createTaskTool())
	srv.AddTool(s.todayTool())
	srv.AddTool(s.generatePlanTool())
	srv.AddTool(s.redistributeMissedTool())
	srv.AddTool(s.checkCommitmentConflictsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// sp_list_tasks
func (s *Server) listTasksTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_list_tasks",
		mcp.WithDescription("List tasks. Returns a JSON array of tasks with id, title, description, deadline, importance, estimated_hours, and status (pending/in_progress/completed)."),
		mcp.WithString("status", mcp.Description("Status filter: pending, in_progress, completed")),
		mcp.WithString("due_by", mcp.Description("Only tasks due on or before this date, YYYY-MM-DD")),
	)
	return tool, s.handleListTasks
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.TaskListFilter{
		Status: models.TaskStatus(request.GetString("status", "")),
		DueBy:  request.GetString("due_by", ""),
	}

	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	out := make([]map[string]any, len(tasks))
	for i, t := range tasks {
		out[i] = taskOut(t)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sp_create_task
func (s *Server) createTaskTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_create_task",
		mcp.WithDescription("Create a new task. Returns the created task as JSON. Run sp_generate_plan afterwards to schedule it."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("deadline", mcp.Required(), mcp.Description("Due date, YYYY-MM-DD")),
		mcp.WithNumber("estimated_hours", mcp.Required(), mcp.Description("Estimated hours of work")),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithBoolean("important", mcp.Description("Mark the task as important (default false)")),
	)
	return tool, s.handleCreateTask
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	deadline, err := request.RequireString("deadline")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: deadline"), nil
	}
	if _, err := timeutil.ParseDate(deadline); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid deadline %q: expected YYYY-MM-DD", deadline)), nil
	}
	hours, err := request.RequireFloat("estimated_hours")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: estimated_hours"), nil
	}
	if hours <= 0 {
		return mcp.NewToolResultError("estimated_hours must be positive"), nil
	}

	task := &models.Task{
		Title:          title,
		Description:    request.GetString("description", ""),
		Deadline:       deadline,
		Importance:     request.GetBool("important", false),
		EstimatedHours: hours,
		Status:         models.TaskStatusPending,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create task: %v", err)), nil
	}

	data, err := json.Marshal(taskOut(task))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal task: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sp_today
func (s *Server) todayTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_today",
		mcp.WithDescription("Get today's study plan: sessions with times, task titles, and live status (scheduled/in_progress/overdue/completed), plus today's commitments."),
	)
	return tool, s.handleToday
}

func (s *Server) handleToday(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := s.now()
	today := timeutil.FormatDate(now)

	titles, err := s.taskTitles(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tasks: %v", err)), nil
	}

	sessions := []map[string]any{}
	if p, err := s.store.GetPlan(ctx, today); err == nil {
		for _, sess := range p.Sessions {
			if sess.Status == models.SessionStatusSkipped {
				continue
			}
			sessions = append(sessions, map[string]any{
				"id":              sess.ID,
				"task_id":         sess.TaskID,
				"task_title":      titles[sess.TaskID],
				"start_time":      sess.StartTime,
				"end_time":        sess.EndTime,
				"allocated_hours": sess.AllocatedHours,
				"session_number":  sess.SessionNumber,
				"status":          string(scheduling.Classify(sess, today, now)),
			})
		}
	}

	commitments := []map[string]any{}
	stored, err := s.store.ListCommitments(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list commitments: %v", err)), nil
	}
	for _, c := range stored {
		occ, ok := scheduling.ResolveOccurrence(*c, today)
		if !ok || occ.Type == models.CommitmentTypeBuffer {
			continue
		}
		commitments = append(commitments, map[string]any{
			"title":      occ.Title,
			"start_time": occ.StartTime,
			"end_time":   occ.EndTime,
			"type":       string(occ.Type),
		})
	}

	result := map[string]any{
		"date":        today,
		"sessions":    sessions,
		"commitments": commitments,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal plan: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sp_generate_plan
func (s *Server) generatePlanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_generate_plan",
		mcp.WithDescription("Regenerate the full study plan from pending tasks using the configured strategy. Completed and past sessions are preserved. Returns a summary with per-day session counts and any unscheduled-hours suggestions."),
	)
	return tool, s.handleGeneratePlan
}

func (s *Server) handleGeneratePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, st, commitments, plans, err := s.loadEngineInputs(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := scheduling.Generate(tasks, st, commitments, plans, s.now())
	if err := s.store.ReplaceAllPlans(ctx, res.Plans); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save plans: %v", err)), nil
	}

	days := make([]map[string]any, 0, len(res.Plans))
	for _, date := range sortedPlanDates(res.Plans) {
		p := res.Plans[date]
		days = append(days, map[string]any{
			"date":            date,
			"sessions":        len(p.Sessions),
			"scheduled_hours": p.ScheduledHours(),
		})
	}
	suggestions := make([]map[string]any, len(res.Suggestions))
	for i, sug := range res.Suggestions {
		suggestions[i] = map[string]any{
			"task_id":             sug.TaskID,
			"task_title":          sug.TaskTitle,
			"unscheduled_minutes": sug.UnscheduledMinutes,
			"message":             sug.Message,
		}
	}

	result := map[string]any{
		"mode":        string(st.StudyPlanMode),
		"days":        days,
		"suggestions": suggestions,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sp_redistribute_missed
func (s *Server) redistributeMissedTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_redistribute_missed",
		mcp.WithDescription("Move missed study sessions to the earliest open future slots, highest-priority tasks first. All-or-nothing: when the result would conflict, nothing changes. Returns structured feedback."),
	)
	return tool, s.handleRedistributeMissed
}

func (s *Server) handleRedistributeMissed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, st, commitments, plans, err := s.loadEngineInputs(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := scheduling.RedistributeMissed(scheduling.PlanSet(plans), st, commitments, tasks, s.now())
	if len(res.Moved) > 0 && !res.Feedback.HasConflicts {
		if err := s.store.ReplaceAllPlans(ctx, res.Plans); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to save plans: %v", err)), nil
		}
	}

	moved := make([]map[string]any, len(res.Moved))
	for i, m := range res.Moved {
		moved[i] = map[string]any{
			"session_id": m.SessionID,
			"task_id":    m.TaskID,
			"from_date":  m.FromDate,
			"to_date":    m.ToDate,
			"start_time": m.StartTime,
			"end_time":   m.EndTime,
		}
	}

	result := map[string]any{
		"total_missed":       res.Feedback.TotalMissed,
		"successfully_moved": res.Feedback.SuccessfullyMoved,
		"failed_to_move":     res.Feedback.FailedToMove,
		"remaining_missed":   res.Feedback.RemainingMissed,
		"has_conflicts":      res.Feedback.HasConflicts,
		"issues":             res.Feedback.Issues,
		"suggestions":        res.Feedback.Suggestions,
		"moved":              moved,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// sp_check_commitment_conflicts
func (s *Server) checkCommitmentConflictsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("sp_check_commitment_conflicts",
		mcp.WithDescription("Check a candidate commitment against existing commitments without saving it. Returns conflict type: none, strict (same kind overlaps, rejected), or override (one-off over recurring, allowed with suppressed dates)."),
		mcp.WithString("start_time", mcp.Required(), mcp.Description("Start time, HH:MM")),
		mcp.WithString("end_time", mcp.Required(), mcp.Description("End time, HH:MM")),
		mcp.WithString("days_of_week", mcp.Description("Comma-separated weekday numbers (0=Sunday) for a recurring commitment")),
		mcp.WithString("dates", mcp.Description("Comma-separated YYYY-MM-DD dates for a one-off commitment")),
	)
	return tool, s.handleCheckCommitmentConflicts
}

func (s *Server) handleCheckCommitmentConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startTime, err := request.RequireString("start_time")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: start_time"), nil
	}
	endTime, err := request.RequireString("end_time")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: end_time"), nil
	}

	candidate := models.Commitment{StartTime: startTime, EndTime: endTime}
	if daysStr := request.GetString("days_of_week", ""); daysStr != "" {
		days, err := parseDays(daysStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		candidate.Recurring = true
		candidate.DaysOfWeek = days
	} else if datesStr := request.GetString("dates", ""); datesStr != "" {
		candidate.SpecificDates = splitCSV(datesStr)
	} else {
		return mcp.NewToolResultError("specify days_of_week or dates"), nil
	}

	stored, err := s.store.ListCommitments(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list commitments: %v", err)), nil
	}
	existing := make([]models.Commitment, len(stored))
	for i, c := range stored {
		existing[i] = *c
	}

	res := scheduling.CheckCommitmentConflict(candidate, existing, "")
	result := map[string]any{
		"has_conflict": res.HasConflict,
		"type":         "none",
	}
	if res.HasConflict {
		result["type"] = string(res.Type)
		result["conflicting_id"] = res.Conflicting.ID
		result["conflicting_title"] = res.Conflicting.Title
		if len(res.Dates) > 0 {
			result["override_dates"] = res.Dates
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func taskOut(t *models.Task) map[string]any {
	return map[string]any{
		"id":              t.ID,
		"title":           t.Title,
		"description":     t.Description,
		"deadline":        t.Deadline,
		"important":       t.Importance,
		"estimated_hours": t.EstimatedHours,
		"status":          string(t.Status),
		"created_at":      t.CreatedAt.Format(time.RFC3339),
		"updated_at":      t.UpdatedAt.Format(time.RFC3339),
	}
}

// loadEngineInputs fetches everything a scheduling run needs.
func (s *Server) loadEngineInputs(ctx context.Context) ([]models.Task, models.Settings, []models.Commitment, map[string]*models.Plan, error) {
	storedTasks, err := s.store.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return nil, models.Settings{}, nil, nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]models.Task, len(storedTasks))
	for i, t := range storedTasks {
		tasks[i] = *t
	}

	st, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, models.Settings{}, nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	storedCommitments, err := s.store.ListCommitments(ctx)
	if err != nil {
		return nil, models.Settings{}, nil, nil, fmt.Errorf("failed to list commitments: %w", err)
	}
	commitments := make([]models.Commitment, len(storedCommitments))
	for i, c := range storedCommitments {
		commitments[i] = *c
	}

	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, models.Settings{}, nil, nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return tasks, st, commitments, plans, nil
}

func (s *Server) taskTitles(ctx context.Context) (map[string]string, error) {
	tasks, err := s.store.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return nil, err
	}
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}
	return titles, nil
}

func sortedPlanDates(plans map[string]*models.Plan) []string {
	dates := make([]string, 0, len(plans))
	for d := range plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func parseDays(csv string) ([]int, error) {
	var days []int
	for _, part := range splitCSV(csv) {
		var d int
		if _, err := fmt.Sscanf(part, "%d", &d); err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %q: expected 0-6", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
