package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/overseer-dev/overseer/pkg/models"
)

func newTask(id, fn string) *models.Task {
	return &models.Task{
		ID:           id,
		Name:         id,
		FunctionName: fn,
		Priority:     models.PriorityMedium,
	}
}

func waitForResult(t *testing.T, q *Queue, want string) models.TaskResult {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case res := <-q.Results():
			if res.TaskID == want {
				return res
			}
		case <-deadline:
			t.Fatalf("timed out waiting for result of task %s", want)
		}
	}
}

func TestAddRejectedWhenStopped(t *testing.T) {
	q := New(1, 4)
	if err := q.Add(newTask("t1", "noop")); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Add on stopped queue: got %v, want ErrNotRunning", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	q := New(2, 16)
	q.Register("double", func(ctx context.Context, params map[string]any) (any, error) {
		return params["n"].(int) * 2, nil
	})
	q.Start(context.Background())
	defer q.Stop()

	task := newTask("t1", "double")
	task.Parameters = map[string]any{"n": 21}
	if err := q.Add(task); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res := waitForResult(t, q, "t1")
	if !res.Success {
		t.Fatalf("task failed: %s", res.Error)
	}
	if res.Result != 42 {
		t.Fatalf("result = %v, want 42", res.Result)
	}

	got := q.Get("t1")
	if got == nil || got.Status != models.TaskStatusCompleted {
		t.Fatalf("task not archived as completed: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
}

func TestUnknownFunctionFails(t *testing.T) {
	q := New(1, 4)
	q.Start(context.Background())
	defer q.Stop()

	if err := q.Add(newTask("t1", "missing")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res := waitForResult(t, q, "t1")
	if res.Success {
		t.Fatal("expected failure for unregistered function")
	}
	if !strings.Contains(res.Error, "not registered") {
		t.Fatalf("error = %q, want function-not-registered", res.Error)
	}
}

func TestErrorDoesNotKillWorker(t *testing.T) {
	q := New(1, 4)
	q.Register("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	q.Register("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return "fine", nil
	})
	q.Start(context.Background())
	defer q.Stop()

	if err := q.Add(newTask("t1", "boom")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := q.Add(newTask("t2", "ok")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res := waitForResult(t, q, "t2")
	if !res.Success {
		t.Fatalf("follow-up task failed: %s", res.Error)
	}
}

func TestPanicRecovered(t *testing.T) {
	q := New(1, 4)
	q.Register("panic", func(ctx context.Context, params map[string]any) (any, error) {
		panic("deliberate")
	})
	q.Start(context.Background())
	defer q.Stop()

	if err := q.Add(newTask("t1", "panic")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res := waitForResult(t, q, "t1")
	if res.Success {
		t.Fatal("panicking task reported success")
	}
	if !strings.Contains(res.Error, "panicked") {
		t.Fatalf("error = %q, want panic classification", res.Error)
	}
}

func TestTimeoutFreesWorker(t *testing.T) {
	q := New(1, 4)
	release := make(chan struct{})
	q.Register("slow", func(ctx context.Context, params map[string]any) (any, error) {
		select {
		case <-release:
			return "late", nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("test hung")
		}
	})
	q.Register("quick", func(ctx context.Context, params map[string]any) (any, error) {
		return "ok", nil
	})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	slow := newTask("t-slow", "slow")
	slow.Timeout = 50 * time.Millisecond
	if err := q.Add(slow); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res := waitForResult(t, q, "t-slow")
	if res.Success {
		t.Fatal("timed-out task reported success")
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Fatalf("error = %q, want timeout classification", res.Error)
	}

	got := q.Get("t-slow")
	if got == nil || got.Status != models.TaskStatusFailed {
		t.Fatalf("task status = %v, want failed", got)
	}

	// The single worker must be free even though the slow function
	// is still blocked on its channel.
	if err := q.Add(newTask("t-quick", "quick")); err != nil {
		t.Fatalf("Add after timeout: %v", err)
	}
	quick := waitForResult(t, q, "t-quick")
	if !quick.Success {
		t.Fatalf("worker not freed after timeout: %s", quick.Error)
	}
}

func TestFIFOIgnoresPriority(t *testing.T) {
	q := New(1, 16)

	var mu sync.Mutex
	var order []string
	gate := make(chan struct{})
	q.Register("record", func(ctx context.Context, params map[string]any) (any, error) {
		<-gate
		mu.Lock()
		order = append(order, params["id"].(string))
		mu.Unlock()
		return nil, nil
	})
	q.Start(context.Background())
	defer q.Stop()

	submit := []struct {
		id       string
		priority models.TaskPriority
	}{
		{"first", models.PriorityHigh},
		{"second", models.PriorityLow},
		{"third", models.PriorityMedium},
	}
	for _, s := range submit {
		task := newTask(s.id, "record")
		task.Priority = s.priority
		task.Parameters = map[string]any{"id": s.id}
		if err := q.Add(task); err != nil {
			t.Fatalf("Add(%s): %v", s.id, err)
		}
	}
	close(gate)

	for range submit {
		<-q.Results()
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("completion order = %v, want %v", order, want)
		}
	}
}

func TestQueueFull(t *testing.T) {
	q := New(1, 2)
	gate := make(chan struct{})
	q.Register("wait", func(ctx context.Context, params map[string]any) (any, error) {
		<-gate
		return nil, nil
	})
	q.Start(context.Background())
	defer q.Stop()
	defer close(gate)

	// One task occupies the worker, two fill the buffer.
	var err error
	for i := 0; i < 8; i++ {
		err = q.Add(newTask(fmt.Sprintf("t%d", i), "wait"))
		if err != nil {
			break
		}
		// Give the worker a moment to pull the first task.
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	q := New(1, 4)
	gate := make(chan struct{})
	q.Register("wait", func(ctx context.Context, params map[string]any) (any, error) {
		<-gate
		return nil, nil
	})
	q.Start(context.Background())
	defer q.Stop()
	defer close(gate)

	if err := q.Add(newTask("dup", "wait")); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if err := q.Add(newTask("dup", "wait")); err == nil {
		t.Fatal("duplicate id accepted")
	}
}

func TestStopFinalizesLeftoverTasks(t *testing.T) {
	q := New(1, 8)
	started := make(chan struct{})
	block := make(chan struct{})
	q.Register("block", func(ctx context.Context, params map[string]any) (any, error) {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	q.Start(context.Background())

	running := newTask("t-running", "block")
	if err := q.Add(running); err != nil {
		t.Fatalf("Add: %v", err)
	}
	<-started

	pending := newTask("t-pending", "block")
	if err := q.Add(pending); err != nil {
		t.Fatalf("Add: %v", err)
	}

	q.Stop()
	close(block)

	r := q.Get("t-running")
	if r == nil || r.Status != models.TaskStatusFailed {
		t.Fatalf("running task status = %+v, want failed", r)
	}
	if !strings.Contains(r.Error, "shutdown") && !strings.Contains(r.Error, "aborted") {
		t.Fatalf("running task error = %q, want shutdown classification", r.Error)
	}
	p := q.Get("t-pending")
	if p == nil || p.Status != models.TaskStatusCancelled {
		t.Fatalf("pending task status = %+v, want cancelled", p)
	}

	stats := q.Stats()
	if stats.Cancelled != 1 {
		t.Fatalf("stats.Cancelled = %d, want 1", stats.Cancelled)
	}
}

func TestStopEmitsResultsForLeftovers(t *testing.T) {
	q := New(1, 8)
	started := make(chan struct{})
	q.Register("block", func(ctx context.Context, params map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	q.Start(context.Background())

	if err := q.Add(newTask("t-running", "block")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	<-started
	if err := q.Add(newTask("t-pending", "block")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	q.Stop()

	// Every leftover task must have a failure result buffered so a
	// consumer draining after shutdown can settle assignments.
	got := make(map[string]models.TaskResult)
	for {
		select {
		case res := <-q.Results():
			got[res.TaskID] = res
			continue
		default:
		}
		break
	}

	for _, id := range []string{"t-running", "t-pending"} {
		res, ok := got[id]
		if !ok {
			t.Fatalf("no result emitted for %s", id)
		}
		if res.Success {
			t.Fatalf("result for %s reports success", id)
		}
		if !strings.Contains(res.Error, "shutdown") && !strings.Contains(res.Error, "aborted") {
			t.Fatalf("result error for %s = %q, want shutdown classification", id, res.Error)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	q := New(1, 4)
	q.Start(context.Background())
	q.Stop()
	q.Stop()
	q.Start(context.Background())
	q.Stop()
}

func TestStatsCounts(t *testing.T) {
	q := New(2, 16)
	q.Register("ok", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, nil
	})
	q.Register("bad", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, errors.New("bad")
	})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		if err := q.Add(newTask(fmt.Sprintf("ok-%d", i), "ok")); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := q.Add(newTask("bad-0", "bad")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for i := 0; i < 4; i++ {
		<-q.Results()
	}

	stats := q.Stats()
	if stats.TotalTasks != 4 {
		t.Fatalf("TotalTasks = %d, want 4", stats.TotalTasks)
	}
	if stats.Completed != 3 {
		t.Fatalf("Completed = %d, want 3", stats.Completed)
	}
	if stats.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", stats.Failed)
	}
}
