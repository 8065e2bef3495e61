// Package models defines the shared data types for the Overseer engine.
package models

import "time"

// AgentRole tags an agent with its position in the hierarchy.
// Role-specific behavior is dispatched via switches on this tag rather
// than a type hierarchy.
type AgentRole string

const (
	// AgentRoleBoss is the top-level decision-making agent.
	AgentRoleBoss AgentRole = "boss"
	// AgentRoleSubAgent is an ordinary subordinate agent, spawned and reaped on demand.
	AgentRoleSubAgent AgentRole = "sub_agent"
	// AgentRoleHumanPaired is an agent collaborating with a specific human,
	// soliciting input before or after autonomous action.
	AgentRoleHumanPaired AgentRole = "human_paired"
	// AgentRoleHumanShadow is an agent acting with a delegated permission set
	// on behalf of a specific human, escalating outside those permissions.
	AgentRoleHumanShadow AgentRole = "human_shadow"
)

// Valid returns true if the role is a known value.
func (r AgentRole) Valid() bool {
	switch r {
	case AgentRoleBoss, AgentRoleSubAgent, AgentRoleHumanPaired, AgentRoleHumanShadow:
		return true
	default:
		return false
	}
}

// HumanInteractive returns true for roles that involve a paired human.
// These agents are never reaped and never auto-spawned.
func (r AgentRole) HumanInteractive() bool {
	return r == AgentRoleHumanPaired || r == AgentRoleHumanShadow
}

// AgentStatus represents the operational state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent has no current tasks.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusActive indicates the agent is working below its cap.
	AgentStatusActive AgentStatus = "active"
	// AgentStatusBusy indicates the agent is at its concurrency cap.
	AgentStatusBusy AgentStatus = "busy"
	// AgentStatusError indicates the agent's last task errored.
	AgentStatusError AgentStatus = "error"
	// AgentStatusOffline indicates the agent is unreachable.
	AgentStatusOffline AgentStatus = "offline"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusActive, AgentStatusBusy, AgentStatusError, AgentStatusOffline:
		return true
	default:
		return false
	}
}

// Available returns true if the agent can be considered for new work.
func (s AgentStatus) Available() bool {
	return s == AgentStatusIdle || s == AgentStatusActive
}

// Agent represents a worker agent tracked by the registry.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// Name is the display name (e.g. "Boss", "Auto-Agent-3fa2b1c9").
	Name string `json:"name"`
	// Role is the agent's hierarchy tag.
	Role AgentRole `json:"role"`
	// Capabilities lists what the agent can do (e.g. "data_processing").
	Capabilities []string `json:"capabilities,omitempty"`
	// Status is the agent's operational state.
	Status AgentStatus `json:"status"`
	// MaxConcurrentTasks caps how many tasks run on this agent at once.
	MaxConcurrentTasks int `json:"max_concurrent_tasks"`
	// CurrentTasks lists the IDs of tasks currently assigned.
	// Invariant: len(CurrentTasks) <= MaxConcurrentTasks.
	CurrentTasks []string `json:"current_tasks,omitempty"`
	// PairedHuman names the human this agent collaborates with or shadows.
	// Only meaningful for human-paired and human-shadow roles.
	PairedHuman string `json:"paired_human,omitempty"`
	// ShadowPermissions bounds what a shadow agent may do on the human's behalf.
	ShadowPermissions []string `json:"shadow_permissions,omitempty"`
	// NotifyChannelID routes escalations and check-ins for human-interactive roles.
	NotifyChannelID string `json:"notify_channel_id,omitempty"`
	// TasksCompleted counts successful task completions.
	TasksCompleted int `json:"tasks_completed"`
	// TasksFailed counts failed task completions.
	TasksFailed int `json:"tasks_failed"`
	// SuccessRate is TasksCompleted over total completions.
	SuccessRate float64 `json:"success_rate"`
	// AvgDuration is the rolling mean task duration.
	AvgDuration time.Duration `json:"avg_duration"`
	// Score is the composite performance score used by the assignment scorer.
	Score float64 `json:"score"`
	// CreatedAt is when the agent was registered.
	CreatedAt time.Time `json:"created_at"`
	// LastActive is the last time the agent started or finished a task.
	LastActive time.Time `json:"last_active"`
}

// Load returns the number of currently assigned tasks.
func (a *Agent) Load() int {
	return len(a.CurrentTasks)
}

// LoadFactor returns current load as a fraction of capacity.
func (a *Agent) LoadFactor() float64 {
	if a.MaxConcurrentTasks <= 0 {
		return 1.0
	}
	return float64(len(a.CurrentTasks)) / float64(a.MaxConcurrentTasks)
}

// HasCapacity returns true if the agent is under its concurrency cap.
func (a *Agent) HasCapacity() bool {
	return len(a.CurrentTasks) < a.MaxConcurrentTasks
}

// HasCapabilities returns true if the agent holds every listed capability.
func (a *Agent) HasCapabilities(required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(a.Capabilities))
	for _, c := range a.Capabilities {
		have[c] = true
	}
	for _, c := range required {
		if !have[c] {
			return false
		}
	}
	return true
}
