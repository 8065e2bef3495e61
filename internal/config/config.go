// Package config handles configuration loading for overseer.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the coordinator.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// AnthropicConfig holds decision oracle API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int64  `mapstructure:"max_tokens"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// EngineConfig holds iteration controller settings.
type EngineConfig struct {
	// IterationDelay is the pause between loop passes.
	IterationDelay time.Duration `mapstructure:"iteration_delay"`
	// HistoryWindow is how many recent records go to the oracle.
	HistoryWindow int `mapstructure:"history_window"`
	// ReflectInterval triggers periodic reflection.
	ReflectInterval time.Duration `mapstructure:"reflect_interval"`
	// HealthInterval drives the health monitor loop.
	HealthInterval time.Duration `mapstructure:"health_interval"`
	// MetricsInterval drives the metrics collection loop.
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
}

// QueueConfig holds task queue settings.
type QueueConfig struct {
	Workers        int           `mapstructure:"workers"`
	Capacity       int           `mapstructure:"capacity"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// AgentsConfig holds agent registry settings.
type AgentsConfig struct {
	// Roster is the path to the YAML agent roster.
	Roster          string        `mapstructure:"roster"`
	MaxSubAgents    int           `mapstructure:"max_sub_agents"`
	MaxPairedAgents int           `mapstructure:"max_paired_agents"`
	MaxShadowAgents int           `mapstructure:"max_shadow_agents"`
	SpawnThreshold  int           `mapstructure:"spawn_threshold"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
}

// TelegramConfig holds the human-notification transport settings.
type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	DefaultChatID string `mapstructure:"default_chat_id"`
}

// StorageConfig holds history store settings.
type StorageConfig struct {
	// DBPath overrides the default project-local database location.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OVERSEER_TELEGRAM_TOKEN)
// 2. Project config (.overseer.yaml in current directory or parent)
// 3. User config (~/.config/overseer/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("telegram.token", "OVERSEER_TELEGRAM_TOKEN")
	v.BindEnv("telegram.default_chat_id", "OVERSEER_TELEGRAM_CHAT_ID")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("engine.iteration_delay", cfg.Engine.IterationDelay.String())
	v.Set("engine.history_window", cfg.Engine.HistoryWindow)
	v.Set("engine.reflect_interval", cfg.Engine.ReflectInterval.String())
	v.Set("queue.workers", cfg.Queue.Workers)
	v.Set("queue.capacity", cfg.Queue.Capacity)
	v.Set("queue.default_timeout", cfg.Queue.DefaultTimeout.String())
	v.Set("agents.roster", cfg.Agents.Roster)
	v.Set("agents.spawn_threshold", cfg.Agents.SpawnThreshold)
	v.Set("agents.idle_timeout", cfg.Agents.IdleTimeout.String())
	v.Set("telegram.default_chat_id", cfg.Telegram.DefaultChatID)
	v.Set("storage.db_path", cfg.Storage.DBPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if present.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Default returns a Config with default values.
func Default() *Config {
	cfg, _ := LoadFromMap(nil)
	return cfg
}

// LoadFromMap builds a Config from defaults plus explicit overrides.
func LoadFromMap(overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, value := range overrides {
		v.Set(key, value)
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("engine.iteration_delay", "5s")
	v.SetDefault("engine.history_window", 100)
	v.SetDefault("engine.reflect_interval", "5m")
	v.SetDefault("engine.health_interval", "30s")
	v.SetDefault("engine.metrics_interval", "1m")

	v.SetDefault("queue.workers", 3)
	v.SetDefault("queue.capacity", 1024)
	v.SetDefault("queue.default_timeout", "5m")

	v.SetDefault("agents.roster", "")
	v.SetDefault("agents.max_sub_agents", 10)
	v.SetDefault("agents.max_paired_agents", 5)
	v.SetDefault("agents.max_shadow_agents", 3)
	v.SetDefault("agents.spawn_threshold", 8)
	v.SetDefault("agents.idle_timeout", "30m")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.default_chat_id", "")

	v.SetDefault("storage.db_path", "")
}

// getUserConfigDir returns the XDG config directory for overseer.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "overseer")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "overseer")
	}
	return filepath.Join(home, ".config", "overseer")
}

// findProjectConfig searches for .overseer.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".overseer.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
