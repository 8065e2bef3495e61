package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/overseer-dev/overseer/internal/supervisor"
	"github.com/overseer-dev/overseer/pkg/models"
)

// reapInterval is how often idle sub-agents are checked for expiry.
const reapInterval = time.Minute

// healthLoop resyncs the supervisor's workload picture from the queue
// and applies workload-driven state suggestions.
func (e *Engine) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(e.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.syncWorkload()
		}
	}
}

func (e *Engine) syncWorkload() {
	e.sup.UpdateWorkload(e.queue.RunningCount())
	e.sup.SetPendingTasks(e.queue.PendingIDs())

	if suggestion := e.sup.SuggestByWorkload(); suggestion != "" {
		if e.sup.TransitionTo(suggestion, "workload suggestion") {
			e.emit(Event{Type: EventStateChanged, Message: string(suggestion), Timestamp: time.Now()})
		}
	}
}

// reflectionLoop periodically steps into the reflecting state and
// turns a degraded success rate into an improvement backlog item.
func (e *Engine) reflectionLoop(ctx context.Context) {
	ticker := time.NewTicker(e.reflectInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reflect()
		}
	}
}

func (e *Engine) reflect() {
	if !e.sup.TransitionTo(supervisor.StateReflecting, "periodic reflection") {
		return
	}

	rate := e.store.SuccessRate(50)
	if rate < 0.8 {
		e.sup.AddImprovementAction(fmt.Sprintf("success rate dropped to %.2f over the last 50 iterations", rate))
	}
	for _, c := range e.store.ErrorsByPhase(50) {
		if c.Count >= 3 {
			e.sup.AddImprovementAction(fmt.Sprintf("%d recent errors in %s phase", c.Count, c.Category))
		}
	}
	// Errors reviewed here are resolved; draining them lets the
	// supervisor leave Researching on the next workload sync.
	e.sup.ClearErrors()

	payload := models.PhasePayload{
		"success_rate": rate,
		"queue_depth":  len(e.queue.PendingIDs()),
		"agent_count":  e.reg.Count(),
	}
	if _, err := e.store.AddLearning("reflection", payload, e.lastID.Load()); err != nil {
		log.Printf("[engine] record reflection: %v", err)
	}
}

// reaperLoop retires auto-created sub-agents that sat idle too long.
func (e *Engine) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range e.reg.ReapIdle(time.Now()) {
				e.sup.AgentDeactivated(id)
				e.emit(Event{Type: EventAgentReaped, AgentID: id, Timestamp: time.Now()})
			}
		}
	}
}

// metricsLoop samples operational gauges into the history store.
func (e *Engine) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(e.metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := e.sup.Snapshot()
			stats := e.queue.Stats()
			samples := map[string]float64{
				"workload":         float64(snap.Workload),
				"queue_depth":      float64(len(snap.PendingTasks)),
				"agents":           float64(e.reg.Count()),
				"task_success":     snap.SuccessRate,
				"tasks_per_minute": stats.TasksPerMinute,
			}
			for name, value := range samples {
				if err := e.store.RecordMetric(name, value); err != nil {
					log.Printf("[engine] record metric %s: %v", name, err)
				}
			}
		}
	}
}
