package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/overseer-dev/overseer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify overseer configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/overseer/config.yaml
Project-specific overrides can be placed in .overseer.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}
	tokenDisplay := "(not set)"
	if cfg.Telegram.Token != "" {
		tokenDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("engine.iteration_delay: %s\n", cfg.Engine.IterationDelay)
	fmt.Printf("engine.history_window: %d\n", cfg.Engine.HistoryWindow)
	fmt.Printf("engine.reflect_interval: %s\n", cfg.Engine.ReflectInterval)
	fmt.Printf("queue.workers: %d\n", cfg.Queue.Workers)
	fmt.Printf("queue.capacity: %d\n", cfg.Queue.Capacity)
	fmt.Printf("queue.default_timeout: %s\n", cfg.Queue.DefaultTimeout)
	fmt.Printf("agents.roster: %s\n", cfg.Agents.Roster)
	fmt.Printf("agents.max_sub_agents: %d\n", cfg.Agents.MaxSubAgents)
	fmt.Printf("agents.spawn_threshold: %d\n", cfg.Agents.SpawnThreshold)
	fmt.Printf("agents.idle_timeout: %s\n", cfg.Agents.IdleTimeout)
	fmt.Printf("telegram.token: %s\n", tokenDisplay)
	fmt.Printf("telegram.default_chat_id: %s\n", cfg.Telegram.DefaultChatID)
	fmt.Printf("storage.db_path: %s\n", cfg.Storage.DBPath)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "engine.iteration_delay":
		return cfg.Engine.IterationDelay.String(), nil
	case "engine.history_window":
		return strconv.Itoa(cfg.Engine.HistoryWindow), nil
	case "engine.reflect_interval":
		return cfg.Engine.ReflectInterval.String(), nil
	case "queue.workers":
		return strconv.Itoa(cfg.Queue.Workers), nil
	case "queue.capacity":
		return strconv.Itoa(cfg.Queue.Capacity), nil
	case "queue.default_timeout":
		return cfg.Queue.DefaultTimeout.String(), nil
	case "agents.roster":
		return cfg.Agents.Roster, nil
	case "agents.max_sub_agents":
		return strconv.Itoa(cfg.Agents.MaxSubAgents), nil
	case "agents.spawn_threshold":
		return strconv.Itoa(cfg.Agents.SpawnThreshold), nil
	case "agents.idle_timeout":
		return cfg.Agents.IdleTimeout.String(), nil
	case "telegram.default_chat_id":
		return cfg.Telegram.DefaultChatID, nil
	case "storage.db_path":
		return cfg.Storage.DBPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "engine.iteration_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for iteration_delay: %w", err)
		}
		cfg.Engine.IterationDelay = d
	case "engine.history_window":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for history_window: %w", err)
		}
		cfg.Engine.HistoryWindow = n
	case "engine.reflect_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for reflect_interval: %w", err)
		}
		cfg.Engine.ReflectInterval = d
	case "queue.workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for workers: %w", err)
		}
		cfg.Queue.Workers = n
	case "queue.capacity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for capacity: %w", err)
		}
		cfg.Queue.Capacity = n
	case "queue.default_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for default_timeout: %w", err)
		}
		cfg.Queue.DefaultTimeout = d
	case "agents.roster":
		cfg.Agents.Roster = value
	case "agents.max_sub_agents":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_sub_agents: %w", err)
		}
		cfg.Agents.MaxSubAgents = n
	case "agents.spawn_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for spawn_threshold: %w", err)
		}
		cfg.Agents.SpawnThreshold = n
	case "agents.idle_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for idle_timeout: %w", err)
		}
		cfg.Agents.IdleTimeout = d
	case "telegram.token":
		cfg.Telegram.Token = value
	case "telegram.default_chat_id":
		cfg.Telegram.DefaultChatID = value
	case "storage.db_path":
		cfg.Storage.DBPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
