package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/overseer-dev/overseer/pkg/models"
)

// RosterEntry describes one statically configured agent.
type RosterEntry struct {
	Name               string   `yaml:"name"`
	Role               string   `yaml:"role"`
	Capabilities       []string `yaml:"capabilities"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
	PairedHuman        string   `yaml:"paired_human"`
	ShadowPermissions  []string `yaml:"shadow_permissions"`
	NotifyChannelID    string   `yaml:"notify_channel_id"`
}

type rosterFile struct {
	Agents []RosterEntry `yaml:"agents"`
}

// LoadRoster reads the YAML agent roster and converts it to agent
// models. Exactly one boss entry is required when the roster is
// non-empty; invalid roles fail the load.
func LoadRoster(path string) ([]*models.Agent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	bosses := 0
	agents := make([]*models.Agent, 0, len(file.Agents))
	for i, entry := range file.Agents {
		role := models.AgentRole(entry.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("roster entry %d (%s): invalid role %q", i, entry.Name, entry.Role)
		}
		if entry.Name == "" {
			return nil, fmt.Errorf("roster entry %d: missing name", i)
		}
		if role == models.AgentRoleBoss {
			bosses++
		}

		maxTasks := entry.MaxConcurrentTasks
		if maxTasks <= 0 {
			maxTasks = 3
		}
		agents = append(agents, &models.Agent{
			Name:               entry.Name,
			Role:               role,
			Capabilities:       entry.Capabilities,
			Status:             models.AgentStatusIdle,
			MaxConcurrentTasks: maxTasks,
			PairedHuman:        entry.PairedHuman,
			ShadowPermissions:  entry.ShadowPermissions,
			NotifyChannelID:    entry.NotifyChannelID,
		})
	}

	if len(agents) > 0 && bosses != 1 {
		return nil, fmt.Errorf("roster must declare exactly one boss agent, found %d", bosses)
	}
	return agents, nil
}
