package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "overseer",
	Short: "Autonomous agent coordination engine",
	Long: `Overseer runs an autonomous coordination loop over a roster of agents.

Each pass it condenses recent history and system state, asks a decision
oracle what to do next, dispatches the resulting assignments through a
worker pool, and records the full pass for later analysis.

Core capabilities:
- Nine-state supervisor that adapts to workload and errors
- Scored agent selection with on-demand sub-agent spawning
- Durable iteration history with learnings and metrics
- Telegram escalation for human-paired agents`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
