package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/sp/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This allows Claude Code to manage your study plan natively. Configure
in Claude Code with:

  {
    "mcpServers": {
      "sp": { "command": "sp", "args": ["mcp"] }
    }
  }

Available tools: sp_list_tasks, sp_create_task, sp_today,
sp_generate_plan, sp_redistribute_missed, sp_check_commitment_conflicts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		return mcp.NewServer(s).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
