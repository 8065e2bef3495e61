package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize an overseer project",
	Long: `Initialize a directory for use with overseer.

Creates the .overseer directory structure, a starter project config,
and an example agent roster.

The directory argument is optional and defaults to the current directory.

Examples:
  overseer init              # Initialize current directory
  overseer init ./myproject  # Initialize specific directory
  overseer init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

const starterConfig = `# Overseer project configuration.
# Values here override ~/.config/overseer/config.yaml.
engine:
  iteration_delay: 5s
agents:
  roster: .overseer/roster.yaml
`

const starterRoster = `# Agent roster. Exactly one boss is required.
agents:
  - name: boss
    role: boss
    capabilities: [planning, delegation]
    max_concurrent_tasks: 5
  - name: worker-1
    role: sub_agent
    capabilities: [general_purpose]
    max_concurrent_tasks: 3
`

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}
	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", absPath, err)
	}

	overseerDir := filepath.Join(absPath, ".overseer")
	if _, err := os.Stat(overseerDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	for _, dir := range []string{overseerDir, filepath.Join(overseerDir, "signals")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	files := map[string]string{
		filepath.Join(absPath, ".overseer.yaml"):  starterConfig,
		filepath.Join(overseerDir, "roster.yaml"): starterRoster,
		filepath.Join(overseerDir, ".gitignore"):  "history.db*\nsignals/\nlogs/\n",
	}
	for path, content := range files {
		if _, err := os.Stat(path); err == nil && !initForce {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	color.Green("Initialized overseer project in %s", absPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit .overseer/roster.yaml to describe your agents")
	fmt.Println("  2. Set ANTHROPIC_API_KEY or 'overseer config anthropic.api_key <key>'")
	fmt.Println("  3. overseer run --watch")
	return nil
}
