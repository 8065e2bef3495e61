package oracle

import (
	"context"
	"fmt"
	"sync"
)

// Static is a scripted oracle for tests and offline operation. Each
// Decide call consumes the next scripted response; when the script is
// exhausted it repeats the last entry, or returns an empty plan if no
// script was provided.
type Static struct {
	mu        sync.Mutex
	script    []string
	calls     int
	preCalls  int
	lastState string
}

var _ Oracle = (*Static)(nil)

// NewStatic creates a Static oracle from raw response texts. Responses
// go through the same parser as live oracle output.
func NewStatic(responses ...string) *Static {
	return &Static{script: responses}
}

// Preprocess summarizes the snapshot without external calls.
func (s *Static) Preprocess(_ context.Context, req PreprocessRequest) (*PreprocessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preCalls++
	return &PreprocessResult{
		ProcessedContext: fmt.Sprintf("workload=%d pending=%d errors=%d",
			req.Snapshot.Workload, len(req.Snapshot.PendingTasks), len(req.Snapshot.Errors)),
	}, nil
}

// Decide returns the next scripted response, parsed.
func (s *Static) Decide(_ context.Context, req DecisionRequest) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastState = req.CurrentState

	if len(s.script) == 0 {
		s.calls++
		return &Decision{Summary: "no action"}, nil
	}
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	return ParseDecision(s.script[idx]), nil
}

// Calls returns how many Decide calls were made.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastState returns the state name of the most recent Decide request.
func (s *Static) LastState() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastState
}
