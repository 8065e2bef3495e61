package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates a worker is executing the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled before execution.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal value.
// A terminal status never changes once set.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority orders tasks by urgency. Lower value means higher priority.
// The queue currently dispatches pure FIFO and does not consult this field;
// it is carried for callers and the oracle.
type TaskPriority int

const (
	// PriorityCritical is the highest priority.
	PriorityCritical TaskPriority = 1
	// PriorityHigh is above-normal priority.
	PriorityHigh TaskPriority = 2
	// PriorityMedium is the default priority.
	PriorityMedium TaskPriority = 3
	// PriorityLow is the lowest priority.
	PriorityLow TaskPriority = 4
)

// String returns the priority name.
func (p TaskPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Task represents a unit of work in the system.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Name is the short description of the task.
	Name string `json:"name"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Priority is the task's urgency level.
	Priority TaskPriority `json:"priority"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// FunctionName names the registered function that executes this task.
	FunctionName string `json:"function_name"`
	// Parameters is the parameter map passed to the task function.
	Parameters map[string]any `json:"parameters,omitempty"`
	// Timeout bounds execution time. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty"`
	// AssignedAgentID is the ID of the agent this task was dispatched to.
	AssignedAgentID string `json:"assigned_agent_id,omitempty"`
	// RequiredCapabilities lists capabilities an agent must hold to accept this task.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// RequiresBossLevel marks tasks that should go to the boss agent.
	RequiresBossLevel bool `json:"requires_boss_level,omitempty"`
	// RequiresHuman marks tasks that need a human-interactive agent.
	RequiresHuman bool `json:"requires_human,omitempty"`
	// RetryCount is the number of times this task has been retried.
	// No queue-level retry loop consumes it today.
	RetryCount int `json:"retry_count,omitempty"`
	// MaxRetries is the retry budget. Like RetryCount, currently unconsumed.
	MaxRetries int `json:"max_retries,omitempty"`
	// Result holds the value returned by the task function on success.
	Result any `json:"result,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when a worker picked the task up, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskResult is the outcome of a single task execution.
type TaskResult struct {
	// TaskID is the ID of the executed task.
	TaskID string `json:"task_id"`
	// Success is true if the task function returned without error.
	Success bool `json:"success"`
	// Result holds the returned value on success.
	Result any `json:"result,omitempty"`
	// Error holds the failure message on error.
	Error string `json:"error,omitempty"`
	// Duration is how long the execution took.
	Duration time.Duration `json:"duration"`
	// Timestamp is when the execution finished.
	Timestamp time.Time `json:"timestamp"`
}
