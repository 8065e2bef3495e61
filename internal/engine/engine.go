// Package engine implements the autonomous iteration controller: the
// top-level loop that snapshots system state, consults the decision
// oracle, dispatches assignments through the agent registry and task
// queue, and records every pass in the history store.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/overseer-dev/overseer/internal/history"
	"github.com/overseer-dev/overseer/internal/notify"
	"github.com/overseer-dev/overseer/internal/oracle"
	"github.com/overseer-dev/overseer/internal/registry"
	"github.com/overseer-dev/overseer/internal/supervisor"
	"github.com/overseer-dev/overseer/internal/taskqueue"
	"github.com/overseer-dev/overseer/pkg/models"
)

// assignmentFunction is the queue function dispatched for oracle
// assignments unless the caller registered a richer implementation.
const assignmentFunction = "agent_assignment"

// Engine drives the autonomous loop and its background maintenance.
type Engine struct {
	sup      *supervisor.Supervisor
	queue    *taskqueue.Queue
	reg      *registry.Registry
	store    *history.Store
	oracle   oracle.Oracle
	notifier notify.Channel
	debug    *DebugLogger

	iterationDelay   time.Duration
	historyWindow    int
	reflectInterval  time.Duration
	healthInterval   time.Duration
	metricsInterval  time.Duration
	defaultTimeout   time.Duration
	defaultChannelID string
	externalContext  func() map[string]any

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	events chan Event
	passes atomic.Int64
	lastID atomic.Int64
	paused atomic.Bool
}

// New creates an Engine over its collaborators. Without options the
// engine uses a scripted no-op oracle and log-based notifications.
func New(sup *supervisor.Supervisor, queue *taskqueue.Queue, reg *registry.Registry, store *history.Store, opts ...Option) *Engine {
	e := &Engine{
		sup:             sup,
		queue:           queue,
		reg:             reg,
		store:           store,
		oracle:          oracle.NewStatic(),
		notifier:        notify.LogChannel{},
		debug:           NopLogger(),
		iterationDelay:  5 * time.Second,
		historyWindow:   history.DefaultRingSize,
		reflectInterval: 5 * time.Minute,
		healthInterval:  30 * time.Second,
		metricsInterval: time.Minute,
		defaultTimeout:  5 * time.Minute,
		events:          make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the engine's event stream. Events are dropped, not
// blocked on, when the channel is full.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Passes returns how many loop passes have been finalized.
func (e *Engine) Passes() int64 {
	return e.passes.Load()
}

// Running reports whether the autonomous loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// SetPaused suspends or resumes iteration passes. Background
// maintenance and result consumption keep running while paused.
func (e *Engine) SetPaused(paused bool) {
	if e.paused.Swap(paused) != paused {
		if paused {
			log.Printf("[engine] iteration loop paused")
		} else {
			log.Printf("[engine] iteration loop resumed")
		}
	}
}

// Paused reports whether iteration passes are suspended.
func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// Start launches the autonomous loop and background maintenance.
// Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true

	ctx, e.cancel = context.WithCancel(ctx)

	e.queue.Register(assignmentFunction, e.executeAssignmentTask)
	e.queue.Start(ctx)

	e.sup.TransitionTo(supervisor.StateAwake, "autonomous operation started")

	loops := []func(context.Context){
		e.iterationLoop,
		e.consumeResults,
		e.healthLoop,
		e.reflectionLoop,
		e.reaperLoop,
		e.metricsLoop,
	}
	for _, loop := range loops {
		e.wg.Add(1)
		go func(fn func(context.Context)) {
			defer e.wg.Done()
			fn(ctx)
		}(loop)
	}
	log.Printf("[engine] autonomous operation started")
}

// Stop cancels the loop at its next suspension point and waits for an
// orderly exit. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.queue.Stop()
	e.drainResults()

	if !e.sup.TransitionTo(supervisor.StateStop, "autonomous operation stopped") {
		e.sup.ForceTransition(supervisor.StateStop, "autonomous operation stopped")
	}
	log.Printf("[engine] autonomous operation stopped after %d passes", e.passes.Load())
}

// iterationLoop runs passes until cancelled, pausing between them.
func (e *Engine) iterationLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if e.paused.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.iterationDelay):
			}
			continue
		}

		rec := e.runIteration(ctx)
		if err := e.store.Append(rec); err != nil {
			// Persistence is best-effort; the ring keeps serving reads.
			log.Printf("[engine] persist iteration %d: %v", rec.ID, err)
		}
		e.passes.Add(1)
		e.lastID.Store(rec.ID)
		e.emit(Event{Type: EventIterationCompleted, IterationID: rec.ID, Timestamp: time.Now()})

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.iterationDelay):
		}
	}
}

// runIteration executes one pass: pre-processing, decision, execution,
// then next-prep. An error in any phase is captured on the record and
// skips the remaining main phases; next-prep always runs.
func (e *Engine) runIteration(ctx context.Context) *models.IterationRecord {
	rec := &models.IterationRecord{
		ID:        e.store.NextID(),
		Phase:     models.PhasePreProcessing,
		Timestamp: time.Now(),
	}
	e.emit(Event{Type: EventIterationStarted, IterationID: rec.ID, Timestamp: rec.Timestamp})
	e.debug.Log("iteration %d: starting in state %s", rec.ID, e.sup.Current())

	fail := func(phase models.IterationPhase, err error) {
		rec.ErrorInfo = &models.ErrorInfo{
			Phase:     phase,
			Message:   err.Error(),
			Timestamp: time.Now(),
		}
		e.sup.ReportError(err.Error())
		e.debug.Log("iteration %d: %s phase failed: %v", rec.ID, phase, err)
		e.emit(Event{Type: EventIterationError, IterationID: rec.ID, Message: err.Error(), Timestamp: time.Now()})
	}

	pre, err := e.oracle.Preprocess(ctx, e.buildPreprocessRequest())
	if err != nil {
		fail(models.PhasePreProcessing, fmt.Errorf("oracle preprocess: %w", err))
	} else {
		rec.PreProcessing = models.PhasePayload{
			"processed_context": pre.ProcessedContext,
			"priority_insights": toAnySlice(pre.PriorityInsights),
		}
	}

	var decision *oracle.Decision
	if rec.Succeeded() {
		rec.Phase = models.PhaseDecision
		decision, err = e.oracle.Decide(ctx, e.buildDecisionRequest(pre))
		if err != nil {
			fail(models.PhaseDecision, fmt.Errorf("oracle decision: %w", err))
		} else {
			rec.Decision = models.PhasePayload{
				"decision_summary": decision.Summary,
				"assignments":      len(decision.Assignments),
				"priority_tasks":   toAnySlice(decision.PriorityTasks),
				"rationale":        decision.Rationale,
			}
			e.emit(Event{Type: EventDecisionMade, IterationID: rec.ID, Message: decision.Summary, Timestamp: time.Now()})
		}
	}

	if rec.Succeeded() && decision != nil {
		rec.Phase = models.PhaseExecution
		succeeded, failed, details := e.executeAssignments(rec.ID, decision)
		rec.Execution = models.PhasePayload{
			"succeeded": succeeded,
			"failed":    failed,
			"details":   details,
		}
	}

	rec.Phase = models.PhaseNextPrep
	e.nextPrep(rec, decision)
	return rec
}

// executeAssignments dispatches each parsed assignment. A failing
// assignment is tallied and recorded but never halts the rest.
func (e *Engine) executeAssignments(iterationID int64, decision *oracle.Decision) (succeeded, failed int, details []any) {
	pending := len(e.queue.PendingIDs()) + len(decision.Assignments)

	for _, assignment := range decision.Assignments {
		task := e.taskForAssignment(assignment)

		agent, err := e.resolveAgent(assignment.AgentName, task, pending)
		if err != nil {
			failed++
			details = append(details, map[string]any{
				"agent": assignment.AgentName,
				"task":  assignment.TaskDescription,
				"error": err.Error(),
			})
			log.Printf("[engine] assignment to %q failed: %v", assignment.AgentName, err)
			continue
		}

		if err := e.queue.Add(task); err != nil {
			// Free the slot the assignment reserved; the task never ran,
			// so the agent's metrics stay untouched.
			_ = e.reg.Release(agent.ID, task.ID)
			failed++
			details = append(details, map[string]any{
				"agent": agent.Name,
				"task":  assignment.TaskDescription,
				"error": err.Error(),
			})
			continue
		}

		e.sup.AgentActivated(agent.ID)
		succeeded++
		details = append(details, map[string]any{
			"agent":   agent.Name,
			"task_id": task.ID,
		})
		e.debug.Log("iteration %d: dispatched %s to %s", iterationID, task.ID, agent.Name)
		e.emit(Event{Type: EventTaskDispatched, IterationID: iterationID, TaskID: task.ID, AgentID: agent.ID, Timestamp: time.Now()})
	}
	return succeeded, failed, details
}

// resolveAgent finds the named agent if it can accept the task, and
// otherwise falls back to scored assignment with on-demand spawning.
func (e *Engine) resolveAgent(name string, task *models.Task, pending int) (*models.Agent, error) {
	if agent := e.reg.GetByName(name); agent != nil && registry.CanAccept(agent, task) {
		if err := e.reg.Assign(agent.ID, task.ID); err == nil {
			task.AssignedAgentID = agent.ID
			return agent, nil
		}
	}

	before := e.reg.Count()
	agent, err := e.reg.AssignBest(task, pending)
	if err != nil {
		return nil, err
	}
	if e.reg.Count() > before {
		e.emit(Event{Type: EventAgentSpawned, AgentID: agent.ID, Message: agent.Name, Timestamp: time.Now()})
	}
	return agent, nil
}

func (e *Engine) taskForAssignment(assignment oracle.Assignment) *models.Task {
	name := assignment.TaskDescription
	if len(name) > 60 {
		name = name[:60]
	}
	return &models.Task{
		ID:           uuid.New().String()[:8],
		Name:         name,
		Description:  assignment.TaskDescription,
		Priority:     models.PriorityMedium,
		FunctionName: assignmentFunction,
		Parameters: map[string]any{
			"description": assignment.TaskDescription,
			"agent":       assignment.AgentName,
		},
		Timeout:   e.defaultTimeout,
		CreatedAt: time.Now(),
	}
}

// executeAssignmentTask is the default queue function for oracle
// assignments: it notifies the paired human channel when one is
// configured and reports the work as acknowledged.
func (e *Engine) executeAssignmentTask(ctx context.Context, params map[string]any) (any, error) {
	description, _ := params["description"].(string)
	agentName, _ := params["agent"].(string)

	channelID := e.defaultChannelID
	if agent := e.reg.GetByName(agentName); agent != nil && agent.NotifyChannelID != "" {
		channelID = agent.NotifyChannelID
	}
	if channelID != "" {
		payload := fmt.Sprintf("[%s] %s", agentName, description)
		if d := e.notifier.Send(ctx, channelID, payload); !d.Delivered {
			return nil, fmt.Errorf("notify %s: %s", channelID, d.Error)
		}
	}
	return map[string]any{"acknowledged": description}, nil
}

// nextPrep analyzes the finished pass, appends a learning entry, and
// precomputes hints for the next pass.
func (e *Engine) nextPrep(rec *models.IterationRecord, decision *oracle.Decision) {
	analysis := models.PhasePayload{
		"iteration_succeeded": rec.Succeeded(),
		"recent_success_rate": e.store.SuccessRate(20),
		"queue_depth":         len(e.queue.PendingIDs()),
	}
	if rec.ErrorInfo != nil {
		analysis["error"] = rec.ErrorInfo.Message
		analysis["error_phase"] = string(rec.ErrorInfo.Phase)
	}

	if _, err := e.store.AddLearning("iteration_analysis", analysis, rec.ID); err != nil {
		log.Printf("[engine] append learning for iteration %d: %v", rec.ID, err)
	}

	var recommended []any
	for i, agent := range e.reg.Available() {
		if i == 3 {
			break
		}
		recommended = append(recommended, agent.Name)
	}
	prep := models.PhasePayload{
		"analysis":           analysis,
		"recommended_agents": recommended,
	}
	if decision != nil && len(decision.PriorityTasks) > 0 {
		prep["continuation_focus"] = decision.PriorityTasks[0]
	}
	rec.NextPrep = prep
}

func (e *Engine) buildPreprocessRequest() oracle.PreprocessRequest {
	snap := e.sup.Snapshot()

	var summaries []string
	for _, prev := range e.store.Recent(10) {
		if prev.Decision != nil {
			if s, ok := prev.Decision["decision_summary"].(string); ok && s != "" {
				summaries = append(summaries, s)
			}
		}
	}

	var patterns []string
	patterns = append(patterns, fmt.Sprintf("success rate over last 50 iterations: %.2f", e.store.SuccessRate(50)))
	for _, c := range e.store.ErrorsByPhase(50) {
		patterns = append(patterns, fmt.Sprintf("%d recent errors in %s phase", c.Count, c.Category))
	}

	req := oracle.PreprocessRequest{
		Snapshot:        snap,
		RecentSummaries: summaries,
		PatternNotes:    patterns,
	}
	if e.externalContext != nil {
		req.ExternalContext = e.externalContext()
	}
	return req
}

func (e *Engine) buildDecisionRequest(pre *oracle.PreprocessResult) oracle.DecisionRequest {
	req := oracle.DecisionRequest{
		CurrentState:    string(e.sup.Current()),
		RecentHistory:   e.store.Recent(e.historyWindow),
		AvailableAgents: e.reg.Available(),
	}
	if pre != nil {
		req.ProcessedContext = pre.ProcessedContext
		if len(pre.PriorityInsights) > 0 {
			req.ProcessedContext += "\ninsights: " + strings.Join(pre.PriorityInsights, "; ")
		}
	}
	if e.externalContext != nil {
		req.ExternalContext = e.externalContext()
	}
	return req
}

// consumeResults applies task outcomes to the registry and supervisor.
func (e *Engine) consumeResults(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-e.queue.Results():
			e.applyResult(res)
		}
	}
}

// drainResults applies the outcomes still buffered after the queue has
// stopped, so shutdown-finalized tasks release their agents.
func (e *Engine) drainResults() {
	for {
		select {
		case res := <-e.queue.Results():
			e.applyResult(res)
		default:
			return
		}
	}
}

func (e *Engine) applyResult(res models.TaskResult) {
	task := e.queue.Get(res.TaskID)
	if task != nil && task.AssignedAgentID != "" {
		if err := e.reg.Complete(task.AssignedAgentID, res.TaskID, res.Success, res.Duration); err != nil {
			log.Printf("[engine] complete task %s: %v", res.TaskID, err)
		}
		if agent := e.reg.Get(task.AssignedAgentID); agent != nil && agent.Load() == 0 {
			e.sup.AgentDeactivated(task.AssignedAgentID)
		}
	}
	if res.Success {
		e.sup.TaskCompleted(res.TaskID)
	} else {
		e.sup.TaskFailed(res.TaskID)
	}
	e.emit(Event{Type: EventTaskFinished, TaskID: res.TaskID, Message: res.Error, Timestamp: time.Now()})
}

// emit sends an event without blocking; slow observers lose events.
func (e *Engine) emit(event Event) {
	select {
	case e.events <- event:
	default:
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
