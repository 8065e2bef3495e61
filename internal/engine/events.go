package engine

import "time"

// EventType represents the kind of engine event.
type EventType string

const (
	// EventIterationStarted marks the beginning of a loop pass.
	EventIterationStarted EventType = "iteration_started"
	// EventIterationCompleted marks a finalized loop pass.
	EventIterationCompleted EventType = "iteration_completed"
	// EventDecisionMade carries the oracle's decision summary.
	EventDecisionMade EventType = "decision_made"
	// EventTaskDispatched indicates an assignment entered the queue.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskFinished indicates a queued task reached a terminal status.
	EventTaskFinished EventType = "task_finished"
	// EventStateChanged indicates a supervisor transition was applied.
	EventStateChanged EventType = "state_changed"
	// EventAgentSpawned indicates an agent was created on demand.
	EventAgentSpawned EventType = "agent_spawned"
	// EventAgentReaped indicates an idle agent was removed.
	EventAgentReaped EventType = "agent_reaped"
	// EventIterationError indicates a loop pass recorded an error.
	EventIterationError EventType = "iteration_error"
)

// Event is emitted by the engine for observers such as the TUI.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// IterationID is the related iteration, if applicable.
	IterationID int64
	// TaskID is the related task, if applicable.
	TaskID string
	// AgentID is the related agent, if applicable.
	AgentID string
	// Message provides additional context.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
