// Package oracle defines the decision oracle boundary: the consultative
// service that, given structured system context, returns a plan of
// agent assignments and task priorities. The Anthropic-backed client is
// the production implementation; Static serves tests and offline runs.
package oracle

import (
	"context"

	"github.com/overseer-dev/overseer/pkg/models"
)

// PreprocessRequest carries the raw context condensed before a decision.
type PreprocessRequest struct {
	// Snapshot is the current system state.
	Snapshot models.SystemSnapshot `json:"snapshot"`
	// RecentSummaries are prior iteration decision summaries, newest first.
	RecentSummaries []string `json:"recent_summaries,omitempty"`
	// PatternNotes are derived history patterns (error clusters, rates).
	PatternNotes []string `json:"pattern_notes,omitempty"`
	// ExternalContext is arbitrary data from outside systems.
	ExternalContext map[string]any `json:"external_context,omitempty"`
}

// PreprocessResult is the condensed context and insights for a decision.
type PreprocessResult struct {
	// ProcessedContext is the condensed narrative of the system state.
	ProcessedContext string `json:"processed_context"`
	// PriorityInsights highlight what the decision should weigh most.
	PriorityInsights []string `json:"priority_insights,omitempty"`
}

// DecisionRequest is the full context handed to the oracle for a plan.
type DecisionRequest struct {
	// CurrentState is the supervisor's current state name.
	CurrentState string `json:"current_state"`
	// RecentHistory holds up to the last 100 iteration records.
	RecentHistory []*models.IterationRecord `json:"recent_history,omitempty"`
	// AvailableAgents lists agents with capacity for new work.
	AvailableAgents []*models.Agent `json:"available_agents,omitempty"`
	// ProcessedContext is the pre-processing phase output, if any.
	ProcessedContext string `json:"processed_context,omitempty"`
	// ExternalContext is arbitrary data from outside systems.
	ExternalContext map[string]any `json:"external_context,omitempty"`
}

// Assignment is one parsed "<agent>: <task>" pair.
type Assignment struct {
	// AgentName is the display name of the agent to dispatch to.
	AgentName string `json:"agent_name"`
	// TaskDescription is the work the agent should perform.
	TaskDescription string `json:"task_description"`
}

// Decision is the oracle's parsed plan for one iteration.
type Decision struct {
	// Summary is the one-line decision statement.
	Summary string `json:"summary"`
	// Assignments are the parsed agent/task pairs, malformed lines skipped.
	Assignments []Assignment `json:"assignments,omitempty"`
	// PriorityTasks is the ordered task list, highest priority first.
	PriorityTasks []string `json:"priority_tasks,omitempty"`
	// Rationale explains the plan.
	Rationale string `json:"rationale,omitempty"`
}

// Oracle is the decision boundary consumed by the iteration controller.
type Oracle interface {
	// Preprocess condenses raw system context ahead of a decision.
	Preprocess(ctx context.Context, req PreprocessRequest) (*PreprocessResult, error)
	// Decide produces the plan for the next iteration.
	Decide(ctx context.Context, req DecisionRequest) (*Decision, error)
}
