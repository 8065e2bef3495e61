// Package supervisor implements the finite-state machine that tracks the
// system's operating mode and owns the aggregate workload snapshot.
//
// The snapshot is mutated by several background loops (health monitor,
// workload manager, reflection, the iteration controller). All mutations
// are serialized behind the supervisor's mutex; readers only ever see
// copies, so no caller can observe or introduce a torn write.
package supervisor

import (
	"log"
	"sync"
	"time"

	"github.com/overseer-dev/overseer/pkg/models"
)

// Thresholds used by the workload-based transition suggestion.
const (
	highWorkload     = 10
	veryHighWorkload = 15
	lowWorkload      = 5
)

// TransitionRecord is one entry of the state history.
type TransitionRecord struct {
	// From is the state that was left.
	From State
	// Timestamp is when the transition happened.
	Timestamp time.Time
}

// Callback runs when the supervisor enters a state. Callbacks run while
// the supervisor lock is held; they must not call back into the supervisor.
type Callback func(entered State, snap models.SystemSnapshot)

// Supervisor tracks the operating mode and the system snapshot.
type Supervisor struct {
	mu        sync.RWMutex
	current   State
	previous  State
	enteredAt time.Time
	history   []TransitionRecord
	callbacks map[State][]Callback
	snap      models.SystemSnapshot
}

// New creates a Supervisor in the Idle state.
func New() *Supervisor {
	return &Supervisor{
		current:   StateIdle,
		enteredAt: time.Now(),
		callbacks: make(map[State][]Callback),
		snap:      models.SystemSnapshot{Timestamp: time.Now()},
	}
}

// Current returns the current state.
func (s *Supervisor) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Previous returns the state before the last transition.
func (s *Supervisor) Previous() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// TransitionTo attempts a table-checked transition. It returns false and
// leaves the state untouched when the edge does not exist. It never panics.
func (s *Supervisor) TransitionTo(target State, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !CanTransition(s.current, target) {
		log.Printf("[supervisor] invalid transition %s -> %s (%s)", s.current, target, reason)
		return false
	}

	s.applyTransition(target, reason, false)
	return true
}

// ForceTransition bypasses the table. It is reserved for error escalation
// and resets, and is logged as forced.
func (s *Supervisor) ForceTransition(target State, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("[supervisor] FORCED transition %s -> %s (%s)", s.current, target, reason)
	s.applyTransition(target, reason, true)
}

// applyTransition records history, moves state, and fires callbacks.
// Caller must hold s.mu.
func (s *Supervisor) applyTransition(target State, reason string, forced bool) {
	s.history = append(s.history, TransitionRecord{From: s.current, Timestamp: time.Now()})
	s.previous = s.current
	s.current = target
	s.enteredAt = time.Now()

	if target == StateReflecting {
		now := time.Now()
		s.snap.LastReflection = &now
	}

	if !forced {
		log.Printf("[supervisor] %s -> %s (%s)", s.previous, target, reason)
	}

	snapCopy := s.snapshotLocked()
	for _, cb := range s.callbacks[target] {
		cb(target, snapCopy)
	}
}

// OnEnter registers a callback fired whenever the supervisor enters state.
func (s *Supervisor) OnEnter(state State, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[state] = append(s.callbacks[state], cb)
}

// SuggestByWorkload proposes the next state from fixed workload thresholds.
// The suggestion is advisory; the empty string means "stay put".
func (s *Supervisor) SuggestByWorkload() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workload := s.snap.Workload
	pending := len(s.snap.PendingTasks)
	errs := len(s.snap.Errors)

	switch s.current {
	case StateIdle:
		if pending > 0 {
			return StateAwake
		}
	case StateAwake:
		if pending == 0 {
			return StateIdle
		}
		if workload > highWorkload {
			return StateThinking
		}
		return StateExecuting
	case StateExecuting:
		if workload == 0 {
			return StateReflecting
		}
		if workload > veryHighWorkload {
			return StateThinking
		}
	case StateThinking:
		if workload < lowWorkload {
			return StateExecuting
		}
		if errs > 0 {
			return StateResearching
		}
	case StateResearching:
		if errs == 0 {
			return StateThinking
		}
	case StateReflecting:
		if pending > 0 {
			return StateAwake
		}
		return StateIdle
	}
	return ""
}

// ReportError appends a system error and moves to Researching unless the
// supervisor is already researching or in a critical state.
func (s *Supervisor) ReportError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Errors = append(s.snap.Errors, msg)

	switch s.current {
	case StateResearching, StateStop, StateRestart:
		return
	}
	if CanTransition(s.current, StateResearching) {
		s.applyTransition(StateResearching, "error: "+msg, false)
	}
}

// ClearErrors drops accumulated system errors.
func (s *Supervisor) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Errors = nil
}

// Reset forces the supervisor back to Idle and clears the snapshot.
func (s *Supervisor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("[supervisor] reset to idle")
	s.applyTransition(StateIdle, "system reset", true)
	s.snap = models.SystemSnapshot{Timestamp: time.Now()}
}

// StateDuration returns how long the supervisor has been in its state.
func (s *Supervisor) StateDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.enteredAt)
}

// TransitionCount returns the number of recorded transitions.
func (s *Supervisor) TransitionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// History returns a copy of the transition history.
func (s *Supervisor) History() []TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransitionRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns a copy of the current system snapshot.
func (s *Supervisor) Snapshot() models.SystemSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked copies the snapshot. Caller must hold s.mu.
func (s *Supervisor) snapshotLocked() models.SystemSnapshot {
	snap := s.snap
	snap.Timestamp = time.Now()
	snap.ActiveAgents = append([]string(nil), s.snap.ActiveAgents...)
	snap.PendingTasks = append([]string(nil), s.snap.PendingTasks...)
	snap.CompletedTasks = append([]string(nil), s.snap.CompletedTasks...)
	snap.FailedTasks = append([]string(nil), s.snap.FailedTasks...)
	snap.Errors = append([]string(nil), s.snap.Errors...)
	snap.ImprovementActions = append([]string(nil), s.snap.ImprovementActions...)
	return snap
}

// UpdateWorkload sets the current workload count.
func (s *Supervisor) UpdateWorkload(workload int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Workload = workload
}

// SetPendingTasks replaces the pending-task id list.
func (s *Supervisor) SetPendingTasks(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.PendingTasks = append([]string(nil), ids...)
}

// AgentActivated records an agent as active.
func (s *Supervisor) AgentActivated(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.snap.ActiveAgents {
		if id == agentID {
			return
		}
	}
	s.snap.ActiveAgents = append(s.snap.ActiveAgents, agentID)
}

// AgentDeactivated removes an agent from the active list.
func (s *Supervisor) AgentDeactivated(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range s.snap.ActiveAgents {
		if id == agentID {
			s.snap.ActiveAgents = append(s.snap.ActiveAgents[:i], s.snap.ActiveAgents[i+1:]...)
			return
		}
	}
}

// TaskCompleted archives a successful task id and refreshes the success rate.
func (s *Supervisor) TaskCompleted(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CompletedTasks = append(s.snap.CompletedTasks, taskID)
	s.recountLocked()
}

// TaskFailed archives a failed task id and refreshes the success rate.
func (s *Supervisor) TaskFailed(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.FailedTasks = append(s.snap.FailedTasks, taskID)
	s.recountLocked()
}

// recountLocked refreshes derived counters. Caller must hold s.mu.
func (s *Supervisor) recountLocked() {
	s.snap.TotalProcessed = len(s.snap.CompletedTasks) + len(s.snap.FailedTasks)
	if s.snap.TotalProcessed > 0 {
		s.snap.SuccessRate = float64(len(s.snap.CompletedTasks)) / float64(s.snap.TotalProcessed)
	}
}

// AddImprovementAction appends to the self-improvement backlog.
func (s *Supervisor) AddImprovementAction(action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ImprovementActions = append(s.snap.ImprovementActions, action)
}

// Summary describes the supervisor for status output.
type Summary struct {
	// Current is the current state.
	Current State `json:"current_state"`
	// Previous is the prior state, empty before the first transition.
	Previous State `json:"previous_state,omitempty"`
	// Duration is time spent in the current state.
	Duration time.Duration `json:"duration"`
	// Transitions is the total transition count.
	Transitions int `json:"transitions"`
	// Workload is the current workload count.
	Workload int `json:"workload"`
	// ActiveAgents is the active agent count.
	ActiveAgents int `json:"active_agents"`
	// PendingTasks is the pending task count.
	PendingTasks int `json:"pending_tasks"`
}

// Summarize returns a point-in-time summary.
func (s *Supervisor) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Current:      s.current,
		Previous:     s.previous,
		Duration:     time.Since(s.enteredAt),
		Transitions:  len(s.history),
		Workload:     s.snap.Workload,
		ActiveAgents: len(s.snap.ActiveAgents),
		PendingTasks: len(s.snap.PendingTasks),
	}
}
