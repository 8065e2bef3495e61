// Package taskqueue implements the FIFO work queue and its worker pool.
//
// Intake is strictly first-in-first-out by arrival. Tasks carry a
// priority field but the queue does not reorder by it; completion order
// across workers is likewise not guaranteed to match submission order.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/overseer-dev/overseer/pkg/models"
)

// Errors returned by queue operations.
var (
	// ErrNotRunning is returned when adding to a stopped queue.
	ErrNotRunning = errors.New("task queue is not running")
	// ErrQueueFull is returned when the intake buffer is at capacity.
	ErrQueueFull = errors.New("task queue is full")
	// ErrUnknownFunction is recorded on tasks whose function was never registered.
	ErrUnknownFunction = errors.New("task function not registered")
	// ErrTaskTimeout classifies a task killed by its timeout.
	ErrTaskTimeout = errors.New("task timed out")
	// ErrShutdown classifies tasks failed by a queue shutdown.
	ErrShutdown = errors.New("task aborted by shutdown")
)

// Func is a registered task function. It receives the task's parameter
// map and must honor ctx cancellation at its blocking points.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Stats summarizes queue activity.
type Stats struct {
	// TotalTasks is the number of tasks ever accepted.
	TotalTasks int `json:"total_tasks"`
	// Completed is the number of tasks that finished successfully.
	Completed int `json:"completed"`
	// Failed is the number of tasks that ended in failure.
	Failed int `json:"failed"`
	// Cancelled is the number of tasks cancelled before execution.
	Cancelled int `json:"cancelled"`
	// AvgDuration is the mean execution time of finished tasks.
	AvgDuration time.Duration `json:"avg_duration"`
	// TasksPerMinute is the completion throughput since start.
	TasksPerMinute float64 `json:"tasks_per_minute"`
}

// Queue is a FIFO task queue fed to a fixed pool of workers.
type Queue struct {
	workers  int
	capacity int

	mu        sync.RWMutex
	funcs     map[string]Func
	active    map[string]*models.Task
	completed map[string]*models.Task
	failed    map[string]*models.Task
	running   bool

	intake chan *models.Task
	cancel context.CancelFunc
	wg     sync.WaitGroup

	results chan models.TaskResult
	dropped uint64

	totalAccepted int
	cancelledN    int
	totalDuration time.Duration
	startedAt     time.Time
}

// New creates a Queue with the given worker count and intake capacity.
// Non-positive values fall back to 3 workers and a 1024-slot buffer.
func New(workers, capacity int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{
		workers:   workers,
		capacity:  capacity,
		funcs:     make(map[string]Func),
		active:    make(map[string]*models.Task),
		completed: make(map[string]*models.Task),
		failed:    make(map[string]*models.Task),
		results:   make(chan models.TaskResult, capacity),
	}
}

// Register binds a function name to its implementation.
// Callers must register before adding tasks that reference the name.
func (q *Queue) Register(name string, fn Func) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.funcs[name] = fn
}

// Start launches the worker pool. Starting an already-running queue is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}

	ctx, q.cancel = context.WithCancel(ctx)
	q.intake = make(chan *models.Task, q.capacity)
	q.running = true
	q.startedAt = time.Now()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
	log.Printf("[taskqueue] started with %d workers", q.workers)
}

// Stop cancels the workers and waits for them to exit. Any task still
// running is marked failed with a shutdown error; tasks accepted but
// never started are marked cancelled. Both kinds get a failure result
// on the results channel so consumers can settle them after draining.
// Stopping an already-stopped queue is a no-op.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.mu.Unlock()

	cancel()
	q.wg.Wait()

	// No orphaned non-terminal tasks: everything left in the active map
	// gets a terminal status now. Cancelled and shutdown-failed tasks
	// are archived alongside the failures.
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for id, task := range q.active {
		switch task.Status {
		case models.TaskStatusRunning:
			task.Status = models.TaskStatusFailed
			task.Error = ErrShutdown.Error()
			task.CompletedAt = &now
			q.failed[id] = task
		case models.TaskStatusPending:
			task.Status = models.TaskStatusCancelled
			task.CompletedAt = &now
			q.failed[id] = task
			q.cancelledN++
		default:
			delete(q.active, id)
			continue
		}
		delete(q.active, id)

		res := models.TaskResult{
			TaskID:    id,
			Success:   false,
			Error:     ErrShutdown.Error(),
			Timestamp: now,
		}
		select {
		case q.results <- res:
		default:
			q.dropped++
		}
	}
	log.Printf("[taskqueue] stopped")
}

// Add enqueues a task in FIFO order and registers it as active.
// The task's priority field is not consulted.
func (q *Queue) Add(task *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return ErrNotRunning
	}
	if _, exists := q.active[task.ID]; exists {
		return fmt.Errorf("task %s already queued", task.ID)
	}

	task.Status = models.TaskStatusPending
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	select {
	case q.intake <- task:
		q.active[task.ID] = task
		q.totalAccepted++
		return nil
	default:
		return ErrQueueFull
	}
}

// worker dequeues and executes tasks one at a time until cancelled.
// A task's failure never aborts the worker.
func (q *Queue) worker(ctx context.Context, name string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-q.intake:
			if ctx.Err() != nil {
				// Leave the task pending; Stop finalizes it as cancelled.
				return
			}
			q.execute(ctx, task)
		}
	}
}

// execute runs one task, honoring its timeout, and archives the outcome.
func (q *Queue) execute(ctx context.Context, task *models.Task) {
	start := time.Now()

	q.mu.Lock()
	if task.Status != models.TaskStatusPending {
		// Stop() already finalized it.
		q.mu.Unlock()
		return
	}
	task.Status = models.TaskStatusRunning
	task.StartedAt = &start
	fn := q.funcs[task.FunctionName]
	q.mu.Unlock()

	if fn == nil {
		q.finish(task, models.TaskResult{
			TaskID:    task.ID,
			Success:   false,
			Error:     fmt.Sprintf("%v: %q", ErrUnknownFunction, task.FunctionName),
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
		return
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if task.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		result, err := fn(runCtx, task.Parameters)
		done <- outcome{result: result, err: err}
	}()

	var res models.TaskResult
	select {
	case out := <-done:
		res = models.TaskResult{
			TaskID:    task.ID,
			Success:   out.err == nil,
			Result:    out.result,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}
		if out.err != nil {
			res.Error = out.err.Error()
		}
	case <-runCtx.Done():
		// The function goroutine may still be winding down; the task is
		// finalized and the worker moves on regardless.
		errMsg := ErrShutdown.Error()
		if task.Timeout > 0 && ctx.Err() == nil {
			errMsg = fmt.Sprintf("%v after %s", ErrTaskTimeout, task.Timeout)
		}
		res = models.TaskResult{
			TaskID:    task.ID,
			Success:   false,
			Error:     errMsg,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}
	}

	q.finish(task, res)
}

// finish moves a task to its terminal archive and emits the result.
func (q *Queue) finish(task *models.Task, res models.TaskResult) {
	q.mu.Lock()
	now := res.Timestamp
	task.CompletedAt = &now
	if res.Success {
		task.Status = models.TaskStatusCompleted
		task.Result = res.Result
		q.completed[task.ID] = task
	} else {
		task.Status = models.TaskStatusFailed
		task.Error = res.Error
		q.failed[task.ID] = task
	}
	delete(q.active, task.ID)
	q.totalDuration += res.Duration
	q.mu.Unlock()

	if !res.Success {
		log.Printf("[taskqueue] task %s (%s) failed: %s", task.ID, task.Name, res.Error)
	}

	select {
	case q.results <- res:
	default:
		q.mu.Lock()
		q.dropped++
		q.mu.Unlock()
	}
}

// Results returns the completion channel. Results are dropped, not
// blocked on, when the channel is full.
func (q *Queue) Results() <-chan models.TaskResult {
	return q.results
}

// DroppedResults returns how many results were dropped from the channel.
func (q *Queue) DroppedResults() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dropped
}

// Get returns the task with the given id from any collection, or nil.
func (q *Queue) Get(id string) *models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if t, ok := q.active[id]; ok {
		return t
	}
	if t, ok := q.completed[id]; ok {
		return t
	}
	return q.failed[id]
}

// ActiveTasks returns the tasks currently queued or running.
func (q *Queue) ActiveTasks() []*models.Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*models.Task, 0, len(q.active))
	for _, t := range q.active {
		out = append(out, t)
	}
	return out
}

// PendingIDs returns the ids of tasks that have not started yet.
func (q *Queue) PendingIDs() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var ids []string
	for id, t := range q.active {
		if t.Status == models.TaskStatusPending {
			ids = append(ids, id)
		}
	}
	return ids
}

// RunningCount returns how many tasks are currently executing.
func (q *Queue) RunningCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, t := range q.active {
		if t.Status == models.TaskStatusRunning {
			n++
		}
	}
	return n
}

// QueueDepth returns the number of tasks waiting in the intake buffer.
func (q *Queue) QueueDepth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.intake == nil {
		return 0
	}
	return len(q.intake)
}

// Running reports whether the worker pool is up.
func (q *Queue) Running() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.running
}

// Stats returns a snapshot of queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	finished := len(q.completed) + len(q.failed)
	s := Stats{
		TotalTasks: q.totalAccepted,
		Completed:  len(q.completed),
		Failed:     len(q.failed) - q.cancelledN,
		Cancelled:  q.cancelledN,
	}
	if finished > 0 {
		s.AvgDuration = q.totalDuration / time.Duration(finished)
	}
	if !q.startedAt.IsZero() {
		minutes := time.Since(q.startedAt).Minutes()
		if minutes > 0 {
			s.TasksPerMinute = float64(len(q.completed)) / minutes
		}
	}
	return s
}
