package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/output"
	"github.com/joescharf/sp/internal/scheduling"
	"github.com/joescharf/sp/internal/store"
	"github.com/joescharf/sp/internal/timeutil"
)

var (
	commitTitle string
	commitStart string
	commitEnd   string
	commitType  string
	commitDays  string
	commitDates string
)

var commitmentCmd = &cobra.Command{
	Use:     "commitment",
	Aliases: []string{"commit"},
	Short:   "Manage fixed commitments",
	Long:    "Track classes, work shifts, and appointments. Generated plans schedule around them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitmentListRun()
	},
}

var commitmentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a commitment",
	Long: `Add a recurring or one-off commitment.

Recurring: --days with comma-separated weekday numbers (0=Sunday).
One-off:   --dates with comma-separated YYYY-MM-DD dates.

Overlap with an existing commitment of the same kind is rejected. A
one-off overlapping a recurring commitment wins: the recurring
occurrences on those dates are suppressed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitmentAddRun()
	},
}

var commitmentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List commitments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitmentListRun()
	},
}

var commitmentUpdateCmd = &cobra.Command{
	Use:   "update <commitment-id>",
	Short: "Update a commitment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitmentUpdateRun(args[0])
	},
}

var commitmentDeleteCmd = &cobra.Command{
	Use:     "delete <commitment-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a commitment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commitmentDeleteRun(args[0])
	},
}

func init() {
	commitmentAddCmd.Flags().StringVar(&commitTitle, "title", "", "Commitment title (required)")
	commitmentAddCmd.Flags().StringVar(&commitStart, "start", "", "Start time, HH:MM (required)")
	commitmentAddCmd.Flags().StringVar(&commitEnd, "end", "", "End time, HH:MM (required)")
	commitmentAddCmd.Flags().StringVar(&commitType, "type", "class", "Type: class, work, appointment, other, buffer")
	commitmentAddCmd.Flags().StringVar(&commitDays, "days", "", "Recurring weekdays, comma-separated (0=Sunday)")
	commitmentAddCmd.Flags().StringVar(&commitDates, "dates", "", "One-off dates, comma-separated YYYY-MM-DD")
	_ = commitmentAddCmd.MarkFlagRequired("title")
	_ = commitmentAddCmd.MarkFlagRequired("start")
	_ = commitmentAddCmd.MarkFlagRequired("end")

	commitmentUpdateCmd.Flags().StringVar(&commitTitle, "title", "", "New title")
	commitmentUpdateCmd.Flags().StringVar(&commitStart, "start", "", "New start time, HH:MM")
	commitmentUpdateCmd.Flags().StringVar(&commitEnd, "end", "", "New end time, HH:MM")
	commitmentUpdateCmd.Flags().StringVar(&commitType, "type", "", "New type")
	commitmentUpdateCmd.Flags().StringVar(&commitDays, "days", "", "New recurring weekdays")
	commitmentUpdateCmd.Flags().StringVar(&commitDates, "dates", "", "New one-off dates")

	commitmentCmd.AddCommand(commitmentAddCmd)
	commitmentCmd.AddCommand(commitmentListCmd)
	commitmentCmd.AddCommand(commitmentUpdateCmd)
	commitmentCmd.AddCommand(commitmentDeleteCmd)
	rootCmd.AddCommand(commitmentCmd)
}

func commitmentAddRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	c := models.Commitment{
		Title:     commitTitle,
		StartTime: commitStart,
		EndTime:   commitEnd,
		Type:      models.CommitmentType(commitType),
	}
	if err := validateCommitmentTimes(&c); err != nil {
		return err
	}
	if err := applyRecurrenceFlags(&c); err != nil {
		return err
	}

	existing, err := loadCommitments(ctx, s)
	if err != nil {
		return err
	}

	res := scheduling.CheckCommitmentConflict(c, existing, "")
	if res.HasConflict && res.Type == scheduling.ConflictStrict {
		return fmt.Errorf("conflicts with %q (%s-%s)", res.Conflicting.Title, res.Conflicting.StartTime, res.Conflicting.EndTime)
	}

	if dryRun {
		ui.DryRunMsg("Would add commitment: %s %s-%s", commitTitle, commitStart, commitEnd)
		return nil
	}

	if res.HasConflict && res.Type == scheduling.ConflictOverride {
		if err := suppressOverriddenDates(ctx, s, &c, res); err != nil {
			return err
		}
	}

	if err := s.CreateCommitment(ctx, &c); err != nil {
		return fmt.Errorf("create commitment: %w", err)
	}

	ui.Success("Created commitment %s: %s", output.Cyan(shortID(c.ID)), c.Title)
	ui.Info("Run 'sp plan generate' to reschedule around it.")
	return nil
}

func commitmentListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	commitments, err := s.ListCommitments(ctx)
	if err != nil {
		return err
	}

	if len(commitments) == 0 {
		ui.Info("No commitments found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Time", "Type", "When"})
	for _, c := range commitments {
		_ = table.Append([]string{
			shortID(c.ID),
			c.Title,
			fmt.Sprintf("%s-%s", c.StartTime, c.EndTime),
			string(c.Type),
			describeRecurrence(c),
		})
	}
	_ = table.Render()
	return nil
}

func commitmentUpdateRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	c, err := findCommitment(ctx, s, id)
	if err != nil {
		return err
	}

	changed := false
	if commitTitle != "" {
		c.Title = commitTitle
		changed = true
	}
	if commitStart != "" {
		c.StartTime = commitStart
		changed = true
	}
	if commitEnd != "" {
		c.EndTime = commitEnd
		changed = true
	}
	if commitType != "" {
		c.Type = models.CommitmentType(commitType)
		changed = true
	}
	if commitDays != "" || commitDates != "" {
		if err := applyRecurrenceFlags(c); err != nil {
			return err
		}
		changed = true
	}

	if !changed {
		return fmt.Errorf("no updates specified (use --title, --start, --end, --type, --days, or --dates)")
	}
	if err := validateCommitmentTimes(c); err != nil {
		return err
	}

	existing, err := loadCommitments(ctx, s)
	if err != nil {
		return err
	}

	res := scheduling.CheckCommitmentConflict(*c, existing, c.ID)
	if res.HasConflict && res.Type == scheduling.ConflictStrict {
		return fmt.Errorf("conflicts with %q (%s-%s)", res.Conflicting.Title, res.Conflicting.StartTime, res.Conflicting.EndTime)
	}

	if dryRun {
		ui.DryRunMsg("Would update commitment %s", shortID(c.ID))
		return nil
	}

	if res.HasConflict && res.Type == scheduling.ConflictOverride {
		if err := suppressOverriddenDates(ctx, s, c, res); err != nil {
			return err
		}
	}

	if err := s.UpdateCommitment(ctx, c); err != nil {
		return fmt.Errorf("update commitment: %w", err)
	}

	ui.Success("Updated commitment %s", output.Cyan(shortID(c.ID)))
	ui.Info("Run 'sp plan generate' to reschedule around it.")
	return nil
}

func commitmentDeleteRun(id string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	c, err := findCommitment(ctx, s, id)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete commitment %s: %s", shortID(c.ID), c.Title)
		return nil
	}

	if err := s.DeleteCommitment(ctx, c.ID); err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}

	ui.Success("Deleted commitment %s: %s", output.Cyan(shortID(c.ID)), c.Title)
	return nil
}

// suppressOverriddenDates resolves an override conflict: the one-off wins
// and the recurring commitment's occurrences on the overlapping dates are
// suppressed.
func suppressOverriddenDates(ctx context.Context, s store.Store, candidate *models.Commitment, res scheduling.ConflictResult) error {
	recurring := res.Conflicting
	if candidate.Recurring {
		// The existing one-off wins over the recurring candidate.
		recurring = candidate
	}
	recurring.DeletedOccurrences = appendMissing(recurring.DeletedOccurrences, res.Dates)
	ui.Warning("%s", overrideNotice(candidate, res))

	if recurring == candidate {
		// Not persisted yet; the caller will create/update it.
		return nil
	}
	if err := s.UpdateCommitment(ctx, recurring); err != nil {
		return fmt.Errorf("suppress recurring occurrences: %w", err)
	}
	return nil
}

// overrideNotice phrases the override in the direction it applies: a
// recurring candidate loses to the existing one-off, a one-off candidate
// wins over the existing recurring commitment.
func overrideNotice(candidate *models.Commitment, res scheduling.ConflictResult) string {
	dates := strings.Join(res.Dates, ", ")
	if candidate.Recurring {
		return fmt.Sprintf("Existing %q overrides this commitment on %s", res.Conflicting.Title, dates)
	}
	return fmt.Sprintf("Overrides %q on %s", res.Conflicting.Title, dates)
}

func appendMissing(existing, add []string) []string {
	for _, d := range add {
		found := false
		for _, e := range existing {
			if e == d {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, d)
		}
	}
	return existing
}

func validateCommitmentTimes(c *models.Commitment) error {
	for _, tm := range []string{c.StartTime, c.EndTime} {
		if _, err := time.Parse("15:04", tm); err != nil {
			return fmt.Errorf("invalid time %q: expected HH:MM", tm)
		}
	}
	if timeutil.TimeToMinutes(c.StartTime) >= timeutil.TimeToMinutes(c.EndTime) {
		return fmt.Errorf("start time %s must be before end time %s", c.StartTime, c.EndTime)
	}
	switch c.Type {
	case models.CommitmentTypeClass, models.CommitmentTypeWork, models.CommitmentTypeAppointment,
		models.CommitmentTypeOther, models.CommitmentTypeBuffer:
		return nil
	}
	return fmt.Errorf("invalid type %q: expected class, work, appointment, other, or buffer", c.Type)
}

// applyRecurrenceFlags sets the recurrence shape from --days / --dates.
func applyRecurrenceFlags(c *models.Commitment) error {
	switch {
	case commitDays != "" && commitDates != "":
		return fmt.Errorf("specify --days or --dates, not both")
	case commitDays != "":
		days, err := parseWeekdays(commitDays)
		if err != nil {
			return err
		}
		c.Recurring = true
		c.DaysOfWeek = days
		c.SpecificDates = nil
	case commitDates != "":
		dates := splitList(commitDates)
		for _, d := range dates {
			if _, err := timeutil.ParseDate(d); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", d)
			}
		}
		c.Recurring = false
		c.DaysOfWeek = nil
		c.SpecificDates = dates
	default:
		return fmt.Errorf("specify --days (recurring) or --dates (one-off)")
	}
	return nil
}

func parseWeekdays(csv string) ([]int, error) {
	var days []int
	for _, part := range splitList(csv) {
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %q: expected 0-6", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var weekdayNames = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func describeRecurrence(c *models.Commitment) string {
	if c.Recurring {
		names := make([]string, 0, len(c.DaysOfWeek))
		for _, d := range c.DaysOfWeek {
			if d >= 0 && d < len(weekdayNames) {
				names = append(names, weekdayNames[d])
			}
		}
		return strings.Join(names, ",")
	}
	return strings.Join(c.SpecificDates, ",")
}

// findCommitment finds a commitment by full ID or prefix match.
func findCommitment(ctx context.Context, s store.Store, id string) (*models.Commitment, error) {
	commitments, err := s.ListCommitments(ctx)
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(id)
	var matches []*models.Commitment
	for _, c := range commitments {
		if strings.HasPrefix(c.ID, upper) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("commitment not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous commitment ID %s: matches %d commitments", id, len(matches))
	}
}

func loadCommitments(ctx context.Context, s store.Store) ([]models.Commitment, error) {
	stored, err := s.ListCommitments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	out := make([]models.Commitment, len(stored))
	for i, c := range stored {
		out[i] = *c
	}
	return out, nil
}
