package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/output"
	"github.com/joescharf/sp/internal/scheduling"
	"github.com/joescharf/sp/internal/store"
	"github.com/joescharf/sp/internal/timeutil"
)

var (
	taskTitle     string
	taskDesc      string
	taskDeadline  string
	taskHours     float64
	taskImportant bool
	taskStatus    string
	taskDueBy     string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  "Track tasks with deadlines and hour estimates. Generated plans schedule pending tasks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new task",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskAddRun()
	},
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskListRun()
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskShowRun(args[0])
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a task",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one task id")
		}
		return taskUpdateRun(cmd, args[0])
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskDoneRun(args[0])
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <task-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task and repack its sessions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskDeleteRun(args[0])
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	taskAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskDeadline, "deadline", "", "Due date, YYYY-MM-DD (required)")
	taskAddCmd.Flags().Float64Var(&taskHours, "hours", 0, "Estimated hours of work (required)")
	taskAddCmd.Flags().BoolVar(&taskImportant, "important", false, "Mark as important")
	_ = taskAddCmd.MarkFlagRequired("title")
	_ = taskAddCmd.MarkFlagRequired("deadline")
	_ = taskAddCmd.MarkFlagRequired("hours")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status: pending, in_progress, completed")
	taskListCmd.Flags().StringVar(&taskDueBy, "due-by", "", "Only tasks due on or before this date, YYYY-MM-DD")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVar(&taskDesc, "desc", "", "New description")
	taskUpdateCmd.Flags().StringVar(&taskDeadline, "deadline", "", "New due date, YYYY-MM-DD")
	taskUpdateCmd.Flags().Float64Var(&taskHours, "hours", 0, "New estimated hours")
	taskUpdateCmd.Flags().BoolVar(&taskImportant, "important", false, "Importance flag")
	taskUpdateCmd.Flags().StringVar(&taskStatus, "status", "", "New status")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskImportCmd)
	rootCmd.AddCommand(taskCmd)
}

func taskAddRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if _, err := timeutil.ParseDate(taskDeadline); err != nil {
		return fmt.Errorf("invalid deadline %q: expected YYYY-MM-DD", taskDeadline)
	}
	if taskHours <= 0 {
		return fmt.Errorf("estimated hours must be positive")
	}

	task := &models.Task{
		Title:          taskTitle,
		Description:    taskDesc,
		Deadline:       taskDeadline,
		Importance:     taskImportant,
		EstimatedHours: taskHours,
		Status:         models.TaskStatusPending,
	}

	if dryRun {
		ui.DryRunMsg("Would add task: %s (%.1fh, due %s)", taskTitle, taskHours, taskDeadline)
		return nil
	}

	if err := s.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	ui.Success("Created task %s: %s", output.Cyan(shortID(task.ID)), task.Title)
	ui.Info("Run 'sp plan generate' to schedule it.")
	return nil
}

func taskListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if taskDueBy != "" {
		if _, err := timeutil.ParseDate(taskDueBy); err != nil {
			return fmt.Errorf("invalid --due-by %q: expected YYYY-MM-DD", taskDueBy)
		}
	}

	tasks, err := s.ListTasks(ctx, store.TaskListFilter{
		Status: models.TaskStatus(taskStatus),
		DueBy:  taskDueBy,
	})
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		ui.Info("No tasks found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Deadline", "Est", "Important", "Status"})
	for _, t := range tasks {
		imp := ""
		if t.Importance {
			imp = "yes"
		}
		_ = table.Append([]string{
			shortID(t.ID),
			t.Title,
			t.Deadline,
			fmt.Sprintf("%.1fh", t.EstimatedHours),
			imp,
			output.StatusColor(string(t.Status)),
		})
	}
	_ = table.Render()
	return nil
}

func taskShowRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := s.FindTaskByPrefix(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(task.ID)), task.Title)
	fmt.Fprintf(ui.Out, "  Deadline:   %s\n", task.Deadline)
	fmt.Fprintf(ui.Out, "  Estimate:   %.1fh\n", task.EstimatedHours)
	fmt.Fprintf(ui.Out, "  Important:  %v\n", task.Importance)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(task.Status)))
	if task.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", task.Description)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", task.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", task.ID)
	return nil
}

func taskUpdateRun(cmd *cobra.Command, id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := s.FindTaskByPrefix(ctx, id)
	if err != nil {
		return err
	}

	changed := false
	if taskTitle != "" {
		task.Title = taskTitle
		changed = true
	}
	if taskDesc != "" {
		task.Description = taskDesc
		changed = true
	}
	if taskDeadline != "" {
		if _, err := timeutil.ParseDate(taskDeadline); err != nil {
			return fmt.Errorf("invalid deadline %q: expected YYYY-MM-DD", taskDeadline)
		}
		task.Deadline = taskDeadline
		changed = true
	}
	if cmd.Flags().Changed("hours") {
		if taskHours <= 0 {
			return fmt.Errorf("estimated hours must be positive")
		}
		task.EstimatedHours = taskHours
		changed = true
	}
	if cmd.Flags().Changed("important") {
		task.Importance = taskImportant
		changed = true
	}
	if taskStatus != "" {
		st := models.TaskStatus(taskStatus)
		if st != models.TaskStatusPending && st != models.TaskStatusInProgress && st != models.TaskStatusCompleted {
			return fmt.Errorf("invalid status %q: expected pending, in_progress, or completed", taskStatus)
		}
		task.Status = st
		changed = true
	}

	if !changed {
		return fmt.Errorf("no updates specified (use --title, --desc, --deadline, --hours, --important, or --status)")
	}

	if dryRun {
		ui.DryRunMsg("Would update task %s", shortID(task.ID))
		return nil
	}

	if err := s.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	ui.Success("Updated task %s", output.Cyan(shortID(task.ID)))
	ui.Info("Run 'sp plan generate' to reschedule.")
	return nil
}

func taskDoneRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := s.FindTaskByPrefix(ctx, id)
	if err != nil {
		return err
	}

	task.Status = models.TaskStatusCompleted

	if dryRun {
		ui.DryRunMsg("Would complete task %s: %s", shortID(task.ID), task.Title)
		return nil
	}

	if err := s.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("complete task: %w", err)
	}

	ui.Success("Completed task %s: %s", output.Cyan(shortID(task.ID)), task.Title)
	return nil
}

func taskDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	task, err := s.FindTaskByPrefix(ctx, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete task %s and repack its sessions", shortID(task.ID))
		return nil
	}

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	// Drop the deleted task's unfinished sessions, then repack the
	// survivors so the freed slots get reused.
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	for _, p := range plans {
		kept := p.Sessions[:0]
		for _, sess := range p.Sessions {
			if sess.TaskID == task.ID && !sess.Finished() {
				continue
			}
			kept = append(kept, sess)
		}
		p.Sessions = kept
	}

	tasks, settings, commitments, err := loadEngineState(ctx, s)
	if err != nil {
		return err
	}

	repacked := scheduling.RedistributeAfterTaskDeletion(tasks, settings, commitments, plans, time.Now())
	if err := s.ReplaceAllPlans(ctx, repacked); err != nil {
		return fmt.Errorf("save plans: %w", err)
	}

	ui.Success("Deleted task %s: %s", output.Cyan(shortID(task.ID)), task.Title)
	ui.Info("Remaining sessions repacked across %d days.", len(repacked))
	return nil
}

// loadEngineState fetches the snapshots a scheduling run needs.
func loadEngineState(ctx context.Context, s store.Store) ([]models.Task, models.Settings, []models.Commitment, error) {
	storedTasks, err := s.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return nil, models.Settings{}, nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]models.Task, len(storedTasks))
	for i, t := range storedTasks {
		tasks[i] = *t
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, models.Settings{}, nil, fmt.Errorf("load settings: %w", err)
	}

	storedCommitments, err := s.ListCommitments(ctx)
	if err != nil {
		return nil, models.Settings{}, nil, fmt.Errorf("list commitments: %w", err)
	}
	commitments := make([]models.Commitment, len(storedCommitments))
	for i, c := range storedCommitments {
		commitments[i] = *c
	}

	return tasks, settings, commitments, nil
}

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
