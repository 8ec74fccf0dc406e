package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/sp/internal/llm"
	"github.com/joescharf/sp/internal/models"
	"github.com/joescharf/sp/internal/store"
	"github.com/joescharf/sp/internal/timeutil"
)

var importDryRun bool

var taskImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tasks from a notes file",
	Long: `Import tasks from a markdown or plain-text file using an LLM to
extract structured data.

The file can be a syllabus excerpt, an assignment list, or free-form
notes. Each extracted task gets a title, deadline, hour estimate, and
importance flag; relative dates are resolved against today.

Requires ANTHROPIC_API_KEY environment variable or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return taskImportRun(args[0])
	},
}

func init() {
	taskImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview extracted tasks without creating them")
}

func taskImportRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}

	model := viper.GetString("anthropic.model")
	today := timeutil.FormatDate(time.Now())

	ui.Info("Extracting tasks with LLM (%s)...", model)
	client := llm.NewClient(apiKey, model)
	extracted, err := client.ExtractTasks(ctx, content, today)
	if err != nil {
		return fmt.Errorf("extract tasks: %w", err)
	}

	if len(extracted) == 0 {
		ui.Info("No tasks extracted from file.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"#", "Title", "Deadline", "Est", "Important"})
	for i, e := range extracted {
		imp := ""
		if e.Important {
			imp = "yes"
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Title,
			e.Deadline,
			fmt.Sprintf("%.1fh", e.EstimatedHours),
			imp,
		})
	}
	_ = table.Render()

	if importDryRun || dryRun {
		ui.DryRunMsg("Would create %d tasks", len(extracted))
		return nil
	}

	return createExtractedTasks(ctx, s, extracted)
}

// createExtractedTasks validates and creates extracted tasks in the store.
func createExtractedTasks(ctx context.Context, s store.Store, extracted []llm.ExtractedTask) error {
	created := 0
	skipped := 0

	for _, e := range extracted {
		if e.Title == "" {
			skipped++
			continue
		}
		if _, err := timeutil.ParseDate(e.Deadline); err != nil {
			ui.Warning("Skipping task %q: bad deadline %q", e.Title, e.Deadline)
			skipped++
			continue
		}
		hours := e.EstimatedHours
		if hours <= 0 {
			hours = 2
		}

		task := &models.Task{
			Title:          e.Title,
			Description:    e.Description,
			Deadline:       e.Deadline,
			Importance:     e.Important,
			EstimatedHours: hours,
			Status:         models.TaskStatusPending,
		}
		if err := s.CreateTask(ctx, task); err != nil {
			ui.Warning("Failed to create task %q: %v", e.Title, err)
			skipped++
			continue
		}
		created++
	}

	ui.Success("Created %d tasks", created)
	if skipped > 0 {
		ui.Warning("Skipped %d tasks", skipped)
	}
	ui.Info("Run 'sp plan generate' to schedule them.")
	return nil
}
