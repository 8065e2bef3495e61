package supervisor

import (
	"testing"

	"github.com/overseer-dev/overseer/pkg/models"
)

func TestNewStartsIdle(t *testing.T) {
	s := New()
	if s.Current() != StateIdle {
		t.Errorf("expected initial state idle, got %s", s.Current())
	}
}

func TestTransitionTableMembership(t *testing.T) {
	// For every pair of states, TransitionTo must succeed iff the edge
	// exists in the table, and failure must leave the state untouched.
	all := []State{
		StateIdle, StateAwake, StateThinking, StateRethink, StateExecuting,
		StateResearching, StateReflecting, StateRestart, StateStop,
	}

	for _, from := range all {
		for _, to := range all {
			s := New()
			s.ForceTransition(from, "test setup")

			ok := s.TransitionTo(to, "test")
			if ok != CanTransition(from, to) {
				t.Errorf("TransitionTo(%s -> %s) = %v, table says %v", from, to, ok, CanTransition(from, to))
			}
			if !ok && s.Current() != from {
				t.Errorf("failed transition %s -> %s mutated state to %s", from, to, s.Current())
			}
			if ok && s.Current() != to {
				t.Errorf("successful transition %s -> %s left state at %s", from, to, s.Current())
			}
		}
	}
}

func TestStopIsTerminal(t *testing.T) {
	s := New()
	if !s.TransitionTo(StateStop, "shutting down") {
		t.Fatal("idle -> stop should be allowed")
	}

	for _, to := range []State{StateIdle, StateAwake, StateExecuting} {
		if s.TransitionTo(to, "should fail") {
			t.Errorf("stop -> %s should be rejected", to)
		}
	}
	if !StateStop.Terminal() {
		t.Error("stop should report terminal")
	}
}

func TestTransitionRecordsHistory(t *testing.T) {
	s := New()
	s.TransitionTo(StateAwake, "work arrived")
	s.TransitionTo(StateExecuting, "dispatch")

	if s.TransitionCount() != 2 {
		t.Fatalf("expected 2 transitions, got %d", s.TransitionCount())
	}

	hist := s.History()
	if hist[0].From != StateIdle || hist[1].From != StateAwake {
		t.Errorf("unexpected history: %+v", hist)
	}
	if s.Previous() != StateAwake {
		t.Errorf("expected previous awake, got %s", s.Previous())
	}
}

func TestOnEnterCallbackFires(t *testing.T) {
	s := New()
	fired := 0
	s.OnEnter(StateAwake, func(state State, snap models.SystemSnapshot) {
		fired++
		if state != StateAwake {
			t.Errorf("callback got state %s", state)
		}
	})

	s.TransitionTo(StateAwake, "test")
	s.TransitionTo(StateIdle, "test")
	s.TransitionTo(StateAwake, "test")

	if fired != 2 {
		t.Errorf("expected callback to fire twice, fired %d times", fired)
	}
}

func TestForceTransitionBypassesTable(t *testing.T) {
	s := New()
	// idle -> reflecting is not a table edge.
	if s.TransitionTo(StateReflecting, "direct") {
		t.Fatal("idle -> reflecting should be rejected by the table")
	}
	s.ForceTransition(StateReflecting, "escalation")
	if s.Current() != StateReflecting {
		t.Errorf("expected reflecting after force, got %s", s.Current())
	}
}

func TestSuggestByWorkload(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		workload int
		pending  int
		errors   int
		want     State
	}{
		{"idle with pending wakes", StateIdle, 0, 3, 0, StateAwake},
		{"idle without pending stays", StateIdle, 0, 0, 0, ""},
		{"awake empty goes idle", StateAwake, 0, 0, 0, StateIdle},
		{"awake high workload thinks", StateAwake, 11, 2, 0, StateThinking},
		{"awake normal executes", StateAwake, 4, 2, 0, StateExecuting},
		{"executing drained reflects", StateExecuting, 0, 0, 0, StateReflecting},
		{"executing overloaded thinks", StateExecuting, 16, 0, 0, StateThinking},
		{"thinking low workload executes", StateThinking, 2, 0, 0, StateExecuting},
		{"thinking with errors researches", StateThinking, 8, 0, 1, StateResearching},
		{"researching clear thinks", StateResearching, 8, 0, 0, StateThinking},
		{"reflecting with pending wakes", StateReflecting, 0, 2, 0, StateAwake},
		{"reflecting empty idles", StateReflecting, 0, 0, 0, StateIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.ForceTransition(tt.state, "test setup")
			s.UpdateWorkload(tt.workload)
			pending := make([]string, tt.pending)
			for i := range pending {
				pending[i] = "t"
			}
			s.SetPendingTasks(pending)
			for i := 0; i < tt.errors; i++ {
				// Append errors without triggering the research transition.
				s.mu.Lock()
				s.snap.Errors = append(s.snap.Errors, "boom")
				s.mu.Unlock()
			}

			if got := s.SuggestByWorkload(); got != tt.want {
				t.Errorf("SuggestByWorkload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScenarioExecutingDrainedThenReflecting(t *testing.T) {
	// Executing with workload suddenly 0 suggests Reflecting; applying it
	// succeeds; from Reflecting with pending tasks the suggestion is Awake.
	s := New()
	s.ForceTransition(StateExecuting, "test setup")
	s.UpdateWorkload(0)

	suggested := s.SuggestByWorkload()
	if suggested != StateReflecting {
		t.Fatalf("expected reflecting, got %q", suggested)
	}
	if !s.TransitionTo(suggested, "workload drained") {
		t.Fatal("executing -> reflecting should be a table edge")
	}

	s.SetPendingTasks([]string{"t1", "t2"})
	if got := s.SuggestByWorkload(); got != StateAwake {
		t.Errorf("expected awake from reflecting with pending tasks, got %q", got)
	}
}

func TestReportErrorForcesResearch(t *testing.T) {
	s := New()
	s.TransitionTo(StateAwake, "test")
	s.ReportError("disk full")

	if s.Current() != StateResearching {
		t.Errorf("expected researching after error, got %s", s.Current())
	}
	if len(s.Snapshot().Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %d", len(s.Snapshot().Errors))
	}

	// Already researching: a second error accumulates without transition.
	s.ReportError("network down")
	if s.Current() != StateResearching {
		t.Errorf("expected to remain researching, got %s", s.Current())
	}
	if len(s.Snapshot().Errors) != 2 {
		t.Errorf("expected 2 recorded errors, got %d", len(s.Snapshot().Errors))
	}
}

func TestReportErrorInTerminalState(t *testing.T) {
	s := New()
	s.TransitionTo(StateStop, "done")
	s.ReportError("late error")
	if s.Current() != StateStop {
		t.Errorf("stop state must not leave on error, got %s", s.Current())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.SetPendingTasks([]string{"t1"})

	snap := s.Snapshot()
	snap.PendingTasks[0] = "mutated"
	snap.Workload = 99

	again := s.Snapshot()
	if again.PendingTasks[0] != "t1" {
		t.Error("mutating a snapshot leaked into the supervisor")
	}
	if again.Workload != 0 {
		t.Error("mutating a snapshot leaked workload into the supervisor")
	}
}

func TestTaskAccountingSuccessRate(t *testing.T) {
	s := New()
	s.TaskCompleted("t1")
	s.TaskCompleted("t2")
	s.TaskFailed("t3")

	snap := s.Snapshot()
	if snap.TotalProcessed != 3 {
		t.Errorf("expected 3 processed, got %d", snap.TotalProcessed)
	}
	want := 2.0 / 3.0
	if snap.SuccessRate < want-0.001 || snap.SuccessRate > want+0.001 {
		t.Errorf("expected success rate ~%.3f, got %.3f", want, snap.SuccessRate)
	}
}

func TestAgentActivation(t *testing.T) {
	s := New()
	s.AgentActivated("a1")
	s.AgentActivated("a1") // duplicate is a no-op
	s.AgentActivated("a2")

	if n := len(s.Snapshot().ActiveAgents); n != 2 {
		t.Fatalf("expected 2 active agents, got %d", n)
	}

	s.AgentDeactivated("a1")
	snap := s.Snapshot()
	if len(snap.ActiveAgents) != 1 || snap.ActiveAgents[0] != "a2" {
		t.Errorf("unexpected active agents: %v", snap.ActiveAgents)
	}
}

func TestResetClearsSnapshot(t *testing.T) {
	s := New()
	s.TransitionTo(StateAwake, "test")
	s.UpdateWorkload(7)
	s.ReportError("boom")

	s.Reset()
	if s.Current() != StateIdle {
		t.Errorf("expected idle after reset, got %s", s.Current())
	}
	snap := s.Snapshot()
	if snap.Workload != 0 || len(snap.Errors) != 0 {
		t.Errorf("expected cleared snapshot, got %+v", snap)
	}
}
