package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/sp/internal/models"
)

var (
	setDailyHours  float64
	setWorkDays    string
	setBufferDays  int
	setMinSession  int
	setBufferTime  int
	setWindowStart int
	setWindowEnd   int
	setMode        string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change scheduling preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun()
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current scheduling preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsShowRun()
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change scheduling preferences",
	Long: `Change scheduling preferences. Only the flags you pass change;
everything else keeps its current value. Changes apply on the next
'sp plan generate'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return settingsSetRun(cmd)
	},
}

func init() {
	settingsSetCmd.Flags().Float64Var(&setDailyHours, "daily-hours", 0, "Study hours available per work day")
	settingsSetCmd.Flags().StringVar(&setWorkDays, "workdays", "", "Comma-separated weekday numbers (0=Sunday)")
	settingsSetCmd.Flags().IntVar(&setBufferDays, "buffer-days", 0, "Finish this many days before each deadline")
	settingsSetCmd.Flags().IntVar(&setMinSession, "min-session", 0, "Minimum session length in minutes")
	settingsSetCmd.Flags().IntVar(&setBufferTime, "buffer-time", 0, "Minutes of buffer after each session")
	settingsSetCmd.Flags().IntVar(&setWindowStart, "window-start", 0, "Study window start hour (0-23)")
	settingsSetCmd.Flags().IntVar(&setWindowEnd, "window-end", 0, "Study window end hour (0-23)")
	settingsSetCmd.Flags().StringVar(&setMode, "mode", "", "Plan mode: even or eisenhower")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func settingsShowRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	st, err := s.GetSettings(context.Background())
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	days := make([]string, len(st.WorkDays))
	for i, d := range st.WorkDays {
		days[i] = weekdayNames[d%7]
	}

	fmt.Fprintf(ui.Out, "  daily-hours:   %.1f\n", st.DailyAvailableHours)
	fmt.Fprintf(ui.Out, "  workdays:      %s\n", strings.Join(days, ","))
	fmt.Fprintf(ui.Out, "  buffer-days:   %d\n", st.BufferDays)
	fmt.Fprintf(ui.Out, "  min-session:   %d min\n", st.MinSessionLength)
	fmt.Fprintf(ui.Out, "  buffer-time:   %d min\n", st.BufferTimeBetweenSessions)
	fmt.Fprintf(ui.Out, "  study window:  %02d:00-%02d:00\n", st.StudyWindowStartHour, st.StudyWindowEndHour)
	fmt.Fprintf(ui.Out, "  mode:          %s\n", st.StudyPlanMode)
	return nil
}

func settingsSetRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	st, err := s.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	changed := false
	if cmd.Flags().Changed("daily-hours") {
		if setDailyHours <= 0 || setDailyHours > 24 {
			return fmt.Errorf("daily-hours must be between 0 and 24")
		}
		st.DailyAvailableHours = setDailyHours
		changed = true
	}
	if setWorkDays != "" {
		days, err := parseWeekdays(setWorkDays)
		if err != nil {
			return err
		}
		if len(days) == 0 {
			return fmt.Errorf("workdays must name at least one day")
		}
		st.WorkDays = days
		changed = true
	}
	if cmd.Flags().Changed("buffer-days") {
		if setBufferDays < 0 {
			return fmt.Errorf("buffer-days must not be negative")
		}
		st.BufferDays = setBufferDays
		changed = true
	}
	if cmd.Flags().Changed("min-session") {
		if setMinSession <= 0 {
			return fmt.Errorf("min-session must be positive")
		}
		st.MinSessionLength = setMinSession
		changed = true
	}
	if cmd.Flags().Changed("buffer-time") {
		if setBufferTime < 0 {
			return fmt.Errorf("buffer-time must not be negative")
		}
		st.BufferTimeBetweenSessions = setBufferTime
		changed = true
	}
	if cmd.Flags().Changed("window-start") {
		st.StudyWindowStartHour = setWindowStart
		changed = true
	}
	if cmd.Flags().Changed("window-end") {
		st.StudyWindowEndHour = setWindowEnd
		changed = true
	}
	if setMode != "" {
		mode := models.PlanMode(setMode)
		if mode != models.PlanModeEven && mode != models.PlanModeEisenhower {
			return fmt.Errorf("invalid mode %q: expected even or eisenhower", setMode)
		}
		st.StudyPlanMode = mode
		changed = true
	}

	if !changed {
		return fmt.Errorf("no settings specified (see 'sp settings set --help')")
	}

	if st.StudyWindowStartHour < 0 || st.StudyWindowStartHour > 23 ||
		st.StudyWindowEndHour < 0 || st.StudyWindowEndHour > 23 {
		return fmt.Errorf("window hours must be between 0 and 23")
	}
	if st.StudyWindowEndHour <= st.StudyWindowStartHour {
		return fmt.Errorf("window-end (%d) must be after window-start (%d)", st.StudyWindowEndHour, st.StudyWindowStartHour)
	}

	if dryRun {
		ui.DryRunMsg("Would update settings")
		return nil
	}

	if err := s.SaveSettings(ctx, st); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	ui.Success("Settings updated.")
	ui.Info("Run 'sp plan generate' to apply them.")
	return nil
}
