package models

import "time"

// IterationPhase names the sub-phase of a control-loop pass.
type IterationPhase string

const (
	// PhasePreProcessing gathers and condenses context for the decision.
	PhasePreProcessing IterationPhase = "pre_processing"
	// PhaseDecision consults the decision oracle.
	PhaseDecision IterationPhase = "decision"
	// PhaseExecution dispatches the decided assignments.
	PhaseExecution IterationPhase = "execution"
	// PhaseNextPrep analyzes the pass and primes the next one.
	PhaseNextPrep IterationPhase = "next_prep"
)

// SystemSnapshot is a point-in-time copy of the supervisor's aggregate
// workload data. The supervisor owns the mutable original; everything
// else works on copies like this one.
type SystemSnapshot struct {
	// Workload is the current workload count (active task executions).
	Workload int `json:"workload"`
	// ActiveAgents lists the IDs of agents with at least one current task.
	ActiveAgents []string `json:"active_agents,omitempty"`
	// PendingTasks lists IDs of tasks waiting in the queue.
	PendingTasks []string `json:"pending_tasks,omitempty"`
	// CompletedTasks lists IDs of archived successful tasks.
	CompletedTasks []string `json:"completed_tasks,omitempty"`
	// FailedTasks lists IDs of archived failed tasks.
	FailedTasks []string `json:"failed_tasks,omitempty"`
	// Errors accumulates reported system error strings.
	Errors []string `json:"errors,omitempty"`
	// TotalProcessed counts all terminal task outcomes observed.
	TotalProcessed int `json:"total_processed"`
	// SuccessRate is completed over total processed.
	SuccessRate float64 `json:"success_rate"`
	// LastReflection is when the supervisor last entered Reflecting.
	LastReflection *time.Time `json:"last_reflection,omitempty"`
	// ImprovementActions is the backlog of self-improvement items.
	ImprovementActions []string `json:"improvement_actions,omitempty"`
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// PhasePayload is the recorded output of one iteration sub-phase.
// Payloads are stored as loosely-typed maps because their shape is
// owned by the oracle contract, not by this package.
type PhasePayload map[string]any

// ErrorInfo captures the failure of an iteration pass.
type ErrorInfo struct {
	// Phase is the sub-phase that raised.
	Phase IterationPhase `json:"phase"`
	// Message is the error text.
	Message string `json:"message"`
	// Timestamp is when the error was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// IterationRecord is the immutable record of one complete control-loop
// pass. Exactly one record is finalized per pass; ErrorInfo is non-nil
// if and only if the pass raised.
type IterationRecord struct {
	// ID is the monotonically increasing iteration number, never reused.
	ID int64 `json:"id"`
	// Phase is the last phase the pass reached.
	Phase IterationPhase `json:"phase"`
	// PreProcessing is the pre-processing phase payload.
	PreProcessing PhasePayload `json:"pre_processing,omitempty"`
	// Decision is the decision phase payload.
	Decision PhasePayload `json:"decision,omitempty"`
	// Execution is the execution summary payload.
	Execution PhasePayload `json:"execution,omitempty"`
	// NextPrep is the next-iteration preparation payload.
	NextPrep PhasePayload `json:"next_prep,omitempty"`
	// ErrorInfo is set when the pass raised, nil otherwise.
	ErrorInfo *ErrorInfo `json:"error_info,omitempty"`
	// Timestamp is when the pass started.
	Timestamp time.Time `json:"timestamp"`
}

// Succeeded reports whether the pass completed without error.
func (r *IterationRecord) Succeeded() bool {
	return r.ErrorInfo == nil
}

// LearningEntry tags an analysis blob to an iteration. Entries are
// append-only and never mutated after creation.
type LearningEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// Kind classifies the entry (iteration_analysis, error_analysis, ...).
	Kind string `json:"kind"`
	// Content is the analysis payload.
	Content PhasePayload `json:"content"`
	// IterationID links the entry to the pass that produced it.
	IterationID int64 `json:"iteration_id"`
	// CreatedAt is when the entry was appended.
	CreatedAt time.Time `json:"created_at"`
}
