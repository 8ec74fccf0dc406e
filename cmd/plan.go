package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/output"
	"github.com/joescharf/sp/internal/scheduling"
	"github.com/joescharf/sp/internal/store"
	"github.com/joescharf/sp/internal/timeutil"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and manage the study plan",
	Long:  "Generate day-by-day study plans, view them, and handle missed sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return planShowRun("")
	},
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Regenerate the study plan from pending tasks",
	Long: `Regenerate the full study plan. Completed and past sessions are
preserved; everything else is rebuilt from the pending tasks using the
configured strategy (even or eisenhower).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return planGenerateRun()
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show [date]",
	Short: "Show the plan for a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date := ""
		if len(args) > 0 {
			date = args[0]
		}
		return planShowRun(date)
	},
}

var planWeekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the plan for the next seven days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return planWeekRun()
	},
}

var planRedistributeCmd = &cobra.Command{
	Use:   "redistribute",
	Short: "Move missed sessions to open future slots",
	Long: `Move missed study sessions into the earliest open future slots,
highest-priority tasks first. The move is all-or-nothing: if the
resulting plan would conflict with commitments or capacity, nothing
changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return planRedistributeRun()
	},
}

var planDoneCmd = &cobra.Command{
	Use:   "done <session-id>",
	Short: "Mark a study session completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planDoneRun(args[0])
	},
}

var planSkipCmd = &cobra.Command{
	Use:   "skip <session-id>",
	Short: "Skip a study session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return planSkipRun(args[0])
	},
}

func init() {
	planCmd.AddCommand(planGenerateCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planWeekCmd)
	planCmd.AddCommand(planRedistributeCmd)
	planCmd.AddCommand(planDoneCmd)
	planCmd.AddCommand(planSkipCmd)
	rootCmd.AddCommand(planCmd)
}

func planGenerateRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	tasks, settings, commitments, err := loadEngineState(ctx, s)
	if err != nil {
		return err
	}
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	res := scheduling.Generate(tasks, settings, commitments, plans, time.Now())

	if dryRun {
		ui.DryRunMsg("Would replace the plan with %d days", len(res.Plans))
		printPlanSummary(res)
		return nil
	}

	if err := s.ReplaceAllPlans(ctx, res.Plans); err != nil {
		return fmt.Errorf("save plans: %w", err)
	}

	ui.Success("Generated plan: %d days (%s mode)", len(res.Plans), settings.StudyPlanMode)
	printPlanSummary(res)
	return nil
}

func printPlanSummary(res scheduling.GenerateResult) {
	dates := make([]string, 0, len(res.Plans))
	for d := range res.Plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	table := ui.Table([]string{"Date", "Sessions", "Hours"})
	for _, d := range dates {
		p := res.Plans[d]
		_ = table.Append([]string{
			d,
			fmt.Sprintf("%d", len(p.Sessions)),
			fmt.Sprintf("%.1f", p.ScheduledHours()),
		})
	}
	_ = table.Render()

	for _, sug := range res.Suggestions {
		ui.Warning("%s", sug.Message)
	}
}

func planShowRun(date string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now()

	if date == "" {
		date = timeutil.FormatDate(now)
	} else if _, err := timeutil.ParseDate(date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}

	titles, err := taskTitleIndex(ctx, s)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(date))

	printed := false
	if p, err := s.GetPlan(ctx, date); err == nil && len(p.Sessions) > 0 {
		printed = printPlanDay(p, titles, now)
	}
	if !printed {
		ui.Info("No study sessions planned.")
	}

	commitments, err := s.ListCommitments(ctx)
	if err != nil {
		return err
	}
	printCommitmentsForDate(commitments, date)
	return nil
}

func planWeekRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()
	now := time.Now()
	today := timeutil.FormatDate(now)

	titles, err := taskTitleIndex(ctx, s)
	if err != nil {
		return err
	}
	commitments, err := s.ListCommitments(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < 7; i++ {
		date := timeutil.AddDays(today, i)
		fmt.Fprintf(ui.Out, "%s\n", output.Cyan(date))

		printed := false
		if p, err := s.GetPlan(ctx, date); err == nil && len(p.Sessions) > 0 {
			printed = printPlanDay(p, titles, now)
		}
		if !printed {
			ui.Info("No study sessions planned.")
		}
		printCommitmentsForDate(commitments, date)
		fmt.Fprintln(ui.Out)
	}
	return nil
}

// printPlanDay renders one plan's sessions; returns false if every
// session was skipped.
func printPlanDay(p *models.Plan, titles map[string]string, now time.Time) bool {
	table := ui.Table([]string{"ID", "Task", "Time", "Hours", "Status"})
	rows := 0
	for _, sess := range p.Sessions {
		if sess.Status == models.SessionStatusSkipped {
			continue
		}
		timeRange := "unplaced"
		if sess.Placed() {
			timeRange = fmt.Sprintf("%s-%s", sess.StartTime, sess.EndTime)
		}
		status := scheduling.Classify(sess, p.Date, now)
		_ = table.Append([]string{
			shortID(sess.ID),
			titles[sess.TaskID],
			timeRange,
			fmt.Sprintf("%.1f", sess.AllocatedHours),
			output.StatusColor(string(status)),
		})
		rows++
	}
	if rows == 0 {
		return false
	}
	_ = table.Render()
	return true
}

func printCommitmentsForDate(commitments []*models.Commitment, date string) {
	var lines []string
	for _, c := range commitments {
		occ, ok := scheduling.ResolveOccurrence(*c, date)
		if !ok || occ.Type == models.CommitmentTypeBuffer {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s-%s  %s (%s)", occ.StartTime, occ.EndTime, occ.Title, occ.Type))
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(ui.Out, "Commitments:")
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(ui.Out, l)
	}
}

func planRedistributeRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	tasks, settings, commitments, err := loadEngineState(ctx, s)
	if err != nil {
		return err
	}
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	res := scheduling.RedistributeMissed(plans, settings, commitments, tasks, time.Now())
	fb := res.Feedback

	for _, issue := range fb.Issues {
		ui.Warning("%s", issue)
	}
	if fb.TotalMissed == 0 {
		return nil
	}

	if len(res.Moved) > 0 && !fb.HasConflicts {
		if dryRun {
			ui.DryRunMsg("Would move %d sessions", len(res.Moved))
		} else if err := s.ReplaceAllPlans(ctx, res.Plans); err != nil {
			return fmt.Errorf("save plans: %w", err)
		}
	}

	titles, err := taskTitleIndex(ctx, s)
	if err != nil {
		return err
	}

	if len(res.Moved) > 0 {
		table := ui.Table([]string{"Task", "From", "To", "Time"})
		for _, m := range res.Moved {
			_ = table.Append([]string{
				titles[m.TaskID],
				m.FromDate,
				m.ToDate,
				fmt.Sprintf("%s-%s", m.StartTime, m.EndTime),
			})
		}
		_ = table.Render()
	}
	for _, f := range res.Failed {
		ui.Warning("Could not move %s session: %s", titles[f.TaskID], f.Reason)
	}
	for _, sug := range fb.Suggestions {
		ui.Info("%s", sug)
	}

	ui.Success("Moved %d of %d missed sessions (%d remaining)",
		fb.SuccessfullyMoved, fb.TotalMissed, fb.RemainingMissed)
	return nil
}

func planDoneRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	plan, sess, err := findSession(ctx, s, id)
	if err != nil {
		return err
	}
	if sess.Finished() {
		return fmt.Errorf("session %s is already finished", shortID(sess.ID))
	}

	task, err := s.GetTask(ctx, sess.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would complete session %s (%s)", shortID(sess.ID), task.Title)
		return nil
	}

	now := time.Now()
	sess.Done = true
	sess.Status = models.SessionStatusCompleted
	sess.ActualHours = sess.AllocatedHours
	sess.CompletedAt = &now
	plan.RecalcTotals()

	if err := s.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	// Burn the completed hours off the estimate, then check the updated
	// task for completion.
	task.EstimatedHours -= sess.ActualHours
	if task.EstimatedHours < 1e-9 {
		task.EstimatedHours = 0
	}
	done, err := taskSessionsFinished(ctx, s, task.ID)
	if err != nil {
		return err
	}
	if done || task.EstimatedHours == 0 {
		task.Status = models.TaskStatusCompleted
	}
	if err := s.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	ui.Success("Completed session %s (%s, %.1fh)", output.Cyan(shortID(sess.ID)), task.Title, sess.ActualHours)
	if task.Status == models.TaskStatusCompleted {
		ui.Success("Task %q is complete.", task.Title)
	}
	return nil
}

func planSkipRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	plan, sess, err := findSession(ctx, s, id)
	if err != nil {
		return err
	}
	if sess.Finished() {
		return fmt.Errorf("session %s is already finished", shortID(sess.ID))
	}

	task, err := s.GetTask(ctx, sess.TaskID)
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would skip session %s (%s)", shortID(sess.ID), task.Title)
		return nil
	}

	sess.Status = models.SessionStatusSkipped
	plan.RecalcTotals()
	if err := s.SavePlan(ctx, plan); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}

	// A task whose every session is done or skipped needs no further
	// scheduling.
	done, err := taskSessionsFinished(ctx, s, task.ID)
	if err != nil {
		return err
	}
	if done && task.Status != models.TaskStatusCompleted {
		task.Status = models.TaskStatusCompleted
		if err := s.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		ui.Success("Task %q is complete.", task.Title)
	}

	ui.Success("Skipped session %s (%s)", output.Cyan(shortID(sess.ID)), task.Title)
	return nil
}

// findSession locates a session by ID prefix across all plans.
func findSession(ctx context.Context, s store.Store, id string) (*models.Plan, *models.Session, error) {
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list plans: %w", err)
	}

	upper := strings.ToUpper(id)
	var foundPlan *models.Plan
	var foundSess *models.Session
	matches := 0
	for _, p := range plans {
		for _, sess := range p.Sessions {
			if strings.HasPrefix(sess.ID, upper) {
				foundPlan = p
				foundSess = sess
				matches++
			}
		}
	}

	switch matches {
	case 0:
		return nil, nil, fmt.Errorf("session not found: %s", id)
	case 1:
		return foundPlan, foundSess, nil
	default:
		return nil, nil, fmt.Errorf("ambiguous session ID %s: matches %d sessions", id, matches)
	}
}

// taskSessionsFinished reports whether every session of the task is done
// or skipped. A task with no sessions at all is not considered finished.
func taskSessionsFinished(ctx context.Context, s store.Store, taskID string) (bool, error) {
	plans, err := s.ListPlans(ctx)
	if err != nil {
		return false, fmt.Errorf("list plans: %w", err)
	}

	total := 0
	for _, p := range plans {
		for _, sess := range p.Sessions {
			if sess.TaskID != taskID {
				continue
			}
			total++
			if !sess.Finished() {
				return false, nil
			}
		}
	}
	return total > 0, nil
}

func taskTitleIndex(ctx context.Context, s store.Store) (map[string]string, error) {
	tasks, err := s.ListTasks(ctx, store.TaskListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	titles := make(map[string]string, len(tasks))
	for _, t := range tasks {
		titles[t.ID] = t.Title
	}
	return titles, nil
}
