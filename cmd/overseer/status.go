package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/overseer-dev/overseer/internal/history"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent coordination history",
	Long: `Display recent iteration history for this project.

Shows:
  - The last few iteration passes and their outcomes
  - Success rate over recent iterations
  - Error clusters by phase
  - Dispatched task outcomes`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := history.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = history.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No history yet. Run 'overseer run' to start.")
		return nil
	}

	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	recent := store.Recent(5)
	if len(recent) == 0 {
		fmt.Println("No iterations recorded yet.")
		return nil
	}

	bold := color.New(color.Bold)
	bold.Println("Recent iterations")
	for _, rec := range recent {
		when := rec.Timestamp.Format("2006-01-02 15:04:05")
		if rec.Succeeded() {
			summary := ""
			if rec.Decision != nil {
				summary, _ = rec.Decision["decision_summary"].(string)
			}
			color.Green("  #%d  %s  ok    %s", rec.ID, when, summary)
		} else {
			color.Red("  #%d  %s  error in %s: %s", rec.ID, when, rec.ErrorInfo.Phase, rec.ErrorInfo.Message)
		}
	}

	fmt.Println()
	bold.Println("Summary")
	fmt.Printf("  Success rate (last 50): %.0f%%\n", store.SuccessRate(50)*100)

	succeeded, failed := store.ExecutionOutcomes(50)
	fmt.Printf("  Tasks dispatched:       %d ok, %d failed\n", succeeded, failed)

	if summaries := store.DecisionSummaries(50); len(summaries) > 0 {
		fmt.Println()
		bold.Println("Frequent decisions")
		for i, c := range summaries {
			if i == 5 {
				break
			}
			fmt.Printf("  %-3d %s\n", c.Count, c.Category)
		}
	}

	if clusters := store.ErrorsByPhase(50); len(clusters) > 0 {
		fmt.Println()
		bold.Println("Errors by phase")
		for _, c := range clusters {
			color.Red("  %-16s %d", c.Category, c.Count)
		}
	}
	return nil
}
