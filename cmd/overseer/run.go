package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/overseer-dev/overseer/internal/config"
	"github.com/overseer-dev/overseer/internal/engine"
	"github.com/overseer-dev/overseer/internal/history"
	"github.com/overseer-dev/overseer/internal/notify"
	"github.com/overseer-dev/overseer/internal/oracle"
	"github.com/overseer-dev/overseer/internal/registry"
	"github.com/overseer-dev/overseer/internal/supervisor"
	"github.com/overseer-dev/overseer/internal/taskqueue"
	"github.com/overseer-dev/overseer/internal/tui"
)

var runWatch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the autonomous coordination loop",
	Long: `Start the autonomous coordination loop in the current project.

The loop runs until interrupted, a stop signal file appears under
.overseer/signals, or the terminal dashboard is quit.

Examples:
  overseer run           # Run headless, logging to stderr
  overseer run --watch   # Run with the terminal dashboard`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Show the terminal dashboard while running")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = history.ProjectDBPath(cwd)
	}
	store, err := history.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	reg := registry.New(registry.Limits{
		MaxSubAgents:    cfg.Agents.MaxSubAgents,
		MaxPairedAgents: cfg.Agents.MaxPairedAgents,
		MaxShadowAgents: cfg.Agents.MaxShadowAgents,
		SpawnThreshold:  cfg.Agents.SpawnThreshold,
		IdleTimeout:     cfg.Agents.IdleTimeout,
	})
	if cfg.Agents.Roster != "" {
		agents, err := config.LoadRoster(cfg.Agents.Roster)
		if err != nil {
			return fmt.Errorf("load roster: %w", err)
		}
		for _, a := range agents {
			reg.Register(a)
		}
		fmt.Printf("Loaded %d agents from %s\n", len(agents), cfg.Agents.Roster)
	}

	brain, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	var notifier notify.Channel = notify.LogChannel{}
	if cfg.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("telegram setup: %w", err)
		}
		notifier = tg
	}

	debug := engine.NewDebugLoggerForProject(cwd)
	defer debug.Close()

	sup := supervisor.New()
	queue := taskqueue.New(cfg.Queue.Workers, cfg.Queue.Capacity)
	eng := engine.New(sup, queue, reg, store,
		engine.WithDebugLogger(debug),
		engine.WithOracle(brain),
		engine.WithNotifier(notifier),
		engine.WithNotifyChannelID(cfg.Telegram.DefaultChatID),
		engine.WithIterationDelay(cfg.Engine.IterationDelay),
		engine.WithHistoryWindow(cfg.Engine.HistoryWindow),
		engine.WithReflectInterval(cfg.Engine.ReflectInterval),
		engine.WithHealthInterval(cfg.Engine.HealthInterval),
		engine.WithMetricsInterval(cfg.Engine.MetricsInterval),
		engine.WithDefaultTaskTimeout(cfg.Queue.DefaultTimeout),
	)

	watcher, err := engine.NewSignalWatcher(cwd)
	if err != nil {
		return fmt.Errorf("signal watcher: %w", err)
	}
	defer watcher.Close()
	watcher.ClearSignals()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng.Start(ctx)
	defer eng.Stop()

	if runWatch {
		return watchLoop(ctx, eng, sup, queue, reg, watcher)
	}

	color.Green("Overseer running. Ctrl+C to stop.")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case <-ticker.C:
			if watcher.ShouldStop() {
				fmt.Println("Stop signal received, shutting down...")
				return nil
			}
			eng.SetPaused(watcher.ShouldPause())
		}
	}
}

// buildOracle selects a live Anthropic oracle when credentials are
// configured and a scripted no-op oracle otherwise.
func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	hasKey := cfg.Anthropic.APIKey != "" || os.Getenv("ANTHROPIC_API_KEY") != ""
	if !hasKey && !cfg.Anthropic.UseAWSBedrock {
		color.Yellow("No Anthropic credentials configured; running with a no-op oracle.")
		return oracle.NewStatic(), nil
	}

	client, err := oracle.NewClient(oracle.ClientConfig{
		Model:         cfg.Anthropic.Model,
		APIKey:        cfg.Anthropic.APIKey,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("oracle setup: %w", err)
	}
	return client, nil
}

func watchLoop(ctx context.Context, eng *engine.Engine, sup *supervisor.Supervisor, queue *taskqueue.Queue, reg *registry.Registry, watcher *engine.SignalWatcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Signal files work under the dashboard too: a stop file kills the
	// program, a pause file suspends iterations.
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if watcher.ShouldStop() {
					cancel()
					return
				}
				eng.SetPaused(watcher.ShouldPause())
			}
		}
	}()

	poll := func() tui.Snapshot {
		return tui.Snapshot{
			State:   string(sup.Current()),
			Summary: sup.Summarize(),
			System:  sup.Snapshot(),
			Queue:   queue.Stats(),
			Agents:  reg.All(),
			Passes:  eng.Passes(),
		}
	}

	app := tui.New(poll, eng.Events())
	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
