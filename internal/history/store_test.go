package history

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/overseer-dev/overseer/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id int64) *models.IterationRecord {
	return &models.IterationRecord{
		ID:        id,
		Phase:     models.PhaseNextPrep,
		Timestamp: time.Now(),
	}
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)

	rec := &models.IterationRecord{
		ID:    s.NextID(),
		Phase: models.PhaseNextPrep,
		PreProcessing: models.PhasePayload{
			"context": "workload rising",
			"sources": []any{"snapshot", "history"},
		},
		Decision: models.PhasePayload{
			"decision_summary": "dispatch research tasks",
			"assignments":      float64(2),
		},
		Execution: models.PhasePayload{
			"succeeded": float64(2),
			"failed":    float64(0),
		},
		NextPrep: models.PhasePayload{
			"focus": "verify research output",
		},
		ErrorInfo: &models.ErrorInfo{
			Phase:     models.PhaseExecution,
			Message:   "agent pool exhausted",
			Timestamp: time.Now().UTC().Truncate(time.Second),
		},
		Timestamp: time.Now(),
	}
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.ByID(rec.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got == nil {
		t.Fatal("ByID returned nil for a persisted record")
	}
	if got.Phase != rec.Phase {
		t.Errorf("Phase = %s, want %s", got.Phase, rec.Phase)
	}
	if !reflect.DeepEqual(got.PreProcessing, rec.PreProcessing) {
		t.Errorf("PreProcessing = %v, want %v", got.PreProcessing, rec.PreProcessing)
	}
	if !reflect.DeepEqual(got.Decision, rec.Decision) {
		t.Errorf("Decision = %v, want %v", got.Decision, rec.Decision)
	}
	if !reflect.DeepEqual(got.Execution, rec.Execution) {
		t.Errorf("Execution = %v, want %v", got.Execution, rec.Execution)
	}
	if !reflect.DeepEqual(got.NextPrep, rec.NextPrep) {
		t.Errorf("NextPrep = %v, want %v", got.NextPrep, rec.NextPrep)
	}
	if got.ErrorInfo == nil {
		t.Fatal("ErrorInfo lost in round trip")
	}
	if got.ErrorInfo.Phase != rec.ErrorInfo.Phase || got.ErrorInfo.Message != rec.ErrorInfo.Message {
		t.Errorf("ErrorInfo = %+v, want %+v", got.ErrorInfo, rec.ErrorInfo)
	}
}

func TestByIDUnknown(t *testing.T) {
	s := openTestStore(t)
	got, err := s.ByID(999)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got != nil {
		t.Fatalf("ByID(999) = %+v, want nil", got)
	}
}

func TestRecentBoundedAndOrdered(t *testing.T) {
	s := openTestStore(t)

	total := DefaultRingSize + 5
	for i := 0; i < total; i++ {
		if err := s.Append(record(s.NextID())); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	recent := s.Recent(0)
	if len(recent) != DefaultRingSize {
		t.Fatalf("ring holds %d records, want %d", len(recent), DefaultRingSize)
	}
	if recent[0].ID != int64(total) {
		t.Fatalf("newest record id = %d, want %d", recent[0].ID, total)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ID != recent[i-1].ID-1 {
			t.Fatalf("recent not ordered newest first at index %d", i)
		}
	}

	three := s.Recent(3)
	if len(three) != 3 || three[0].ID != int64(total) {
		t.Fatalf("Recent(3) = %d records starting at %d", len(three), three[0].ID)
	}
}

func TestIDsMonotonicAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var lastID int64
	for i := 0; i < 3; i++ {
		lastID = s.NextID()
		if err := s.Append(record(lastID)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	if got := s2.NextID(); got <= lastID {
		t.Fatalf("NextID after reopen = %d, want > %d", got, lastID)
	}
	if got := len(s2.Recent(0)); got != 3 {
		t.Fatalf("ring after reopen holds %d, want 3", got)
	}
}

func TestSuccessRate(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		if err := s.Append(record(s.NextID())); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	bad := record(s.NextID())
	bad.ErrorInfo = &models.ErrorInfo{Phase: models.PhaseDecision, Message: "oracle unavailable"}
	if err := s.Append(bad); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if got := s.SuccessRate(4); got != 0.75 {
		t.Fatalf("SuccessRate(4) = %v, want 0.75", got)
	}
	if got := s.SuccessRate(1); got != 0.0 {
		t.Fatalf("SuccessRate(1) = %v, want 0 (newest failed)", got)
	}

	empty := openTestStore(t)
	if got := empty.SuccessRate(10); got != 1.0 {
		t.Fatalf("SuccessRate with no history = %v, want 1.0", got)
	}
}

func TestErrorsByPhase(t *testing.T) {
	s := openTestStore(t)

	phases := []models.IterationPhase{
		models.PhaseDecision, models.PhaseDecision, models.PhaseExecution,
	}
	for _, p := range phases {
		rec := record(s.NextID())
		rec.ErrorInfo = &models.ErrorInfo{Phase: p, Message: "boom"}
		if err := s.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := s.Append(record(s.NextID())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	counts := s.ErrorsByPhase(0)
	if len(counts) != 2 {
		t.Fatalf("got %d categories, want 2", len(counts))
	}
	if counts[0].Category != string(models.PhaseDecision) || counts[0].Count != 2 {
		t.Fatalf("top category = %+v, want decision x2", counts[0])
	}
}

func TestExecutionOutcomes(t *testing.T) {
	s := openTestStore(t)

	rec := record(s.NextID())
	rec.Execution = models.PhasePayload{"succeeded": 3, "failed": 1}
	if err := s.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	rec2 := record(s.NextID())
	rec2.Execution = models.PhasePayload{"succeeded": float64(2), "failed": float64(0)}
	if err := s.Append(rec2); err != nil {
		t.Fatalf("Append: %v", err)
	}

	ok, bad := s.ExecutionOutcomes(0)
	if ok != 5 || bad != 1 {
		t.Fatalf("ExecutionOutcomes = (%d, %d), want (5, 1)", ok, bad)
	}
}

func TestLearnings(t *testing.T) {
	s := openTestStore(t)

	iterID := s.NextID()
	if err := s.Append(record(iterID)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entry, err := s.AddLearning("iteration_analysis",
		models.PhasePayload{"insight": "research tasks dominate"}, iterID)
	if err != nil {
		t.Fatalf("AddLearning: %v", err)
	}
	if entry.ID == "" {
		t.Fatal("learning entry has no id")
	}
	if _, err := s.AddLearning("error_analysis",
		models.PhasePayload{"insight": "timeouts cluster"}, iterID+1); err != nil {
		t.Fatalf("AddLearning: %v", err)
	}

	forIter, err := s.LearningsForIteration(iterID)
	if err != nil {
		t.Fatalf("LearningsForIteration: %v", err)
	}
	if len(forIter) != 1 || forIter[0].Kind != "iteration_analysis" {
		t.Fatalf("LearningsForIteration = %+v, want one iteration_analysis", forIter)
	}
	if forIter[0].Content["insight"] != "research tasks dominate" {
		t.Fatalf("content = %v", forIter[0].Content)
	}

	all, err := s.Learnings(10)
	if err != nil {
		t.Fatalf("Learnings: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Learnings = %d entries, want 2", len(all))
	}
}

func TestMetrics(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordMetric("workload", 4); err != nil {
		t.Fatalf("RecordMetric: %v", err)
	}
	if err := s.RecordMetric("workload", 7); err != nil {
		t.Fatalf("RecordMetric: %v", err)
	}
	if err := s.RecordMetric("success_rate", 0.9); err != nil {
		t.Fatalf("RecordMetric: %v", err)
	}

	samples, err := s.Metrics("workload", 10)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].Value != 7 {
		t.Fatalf("newest sample = %v, want 7", samples[0].Value)
	}
}
