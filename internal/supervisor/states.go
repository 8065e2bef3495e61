package supervisor

// State is an operating mode of the supervisor's finite-state machine.
type State string

const (
	// StateIdle is the resting state; the system waits for work.
	StateIdle State = "idle"
	// StateAwake means the system is assessing workload.
	StateAwake State = "awake"
	// StateThinking means the system is analyzing tasks and resources.
	StateThinking State = "thinking"
	// StateRethink means the system is revisiting a prior analysis.
	StateRethink State = "rethink"
	// StateExecuting means the system is managing task assignments.
	StateExecuting State = "executing"
	// StateResearching means the system is investigating errors.
	StateResearching State = "researching"
	// StateReflecting means the system is analyzing its own performance.
	StateReflecting State = "reflecting"
	// StateRestart means the system is restarting.
	StateRestart State = "restart"
	// StateStop is the terminal state.
	StateStop State = "stop"
)

// validTransitions is the fixed directed graph of allowed state changes.
var validTransitions = map[State][]State{
	StateIdle:        {StateAwake, StateStop, StateRestart},
	StateAwake:       {StateThinking, StateExecuting, StateResearching, StateIdle, StateStop},
	StateThinking:    {StateExecuting, StateResearching, StateRethink, StateReflecting, StateIdle},
	StateRethink:     {StateThinking, StateExecuting, StateReflecting, StateIdle},
	StateExecuting:   {StateThinking, StateReflecting, StateIdle, StateAwake},
	StateResearching: {StateThinking, StateExecuting, StateReflecting, StateIdle},
	StateReflecting:  {StateThinking, StateIdle, StateAwake},
	StateRestart:     {StateIdle, StateAwake},
	StateStop:        {},
}

// CanTransition returns true if the edge from -> to exists in the table.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStates returns the allowed successor states of from.
func NextStates(from State) []State {
	next := validTransitions[from]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// Terminal returns true if the state has no outgoing edges.
func (s State) Terminal() bool {
	return len(validTransitions[s]) == 0
}
