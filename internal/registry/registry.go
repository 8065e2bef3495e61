// Package registry manages agent state and task assignment.
// It provides thread-safe storage of agents, suitability scoring,
// on-demand spawning under load, and idle reclamation.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overseer-dev/overseer/pkg/models"
)

// Errors returned by assignment operations.
var (
	// ErrNoSuitableAgent is returned when no agent can accept the task
	// and spawning is not possible.
	ErrNoSuitableAgent = errors.New("no suitable agent for task")
	// ErrUnknownAgent is returned for operations on unregistered agent ids.
	ErrUnknownAgent = errors.New("agent not registered")
	// ErrAgentAtCapacity is returned when assigning past an agent's
	// concurrency cap.
	ErrAgentAtCapacity = errors.New("agent at max concurrent tasks")
	// ErrRoleCapReached is returned when spawning would exceed the
	// per-role agent limit.
	ErrRoleCapReached = errors.New("agent limit for role reached")
)

// Limits configures registry capacity and lifecycle thresholds.
type Limits struct {
	// MaxSubAgents caps dynamically spawnable sub-agents.
	MaxSubAgents int
	// MaxPairedAgents caps human-paired agents.
	MaxPairedAgents int
	// MaxShadowAgents caps human-shadow agents.
	MaxShadowAgents int
	// SpawnThreshold is the pending workload at which a new agent is
	// created when no existing agent is suitable. Zero or negative
	// disables on-demand spawning.
	SpawnThreshold int
	// IdleTimeout is how long a sub-agent may sit idle before reaping.
	IdleTimeout time.Duration
}

// DefaultLimits returns the standard registry limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSubAgents:    10,
		MaxPairedAgents: 5,
		MaxShadowAgents: 3,
		SpawnThreshold:  8,
		IdleTimeout:     30 * time.Minute,
	}
}

// Registry is a thread-safe store of agents with assignment scoring.
type Registry struct {
	// agents maps agent IDs to agent models.
	agents map[string]*models.Agent
	// order preserves registration order for deterministic tie-breaks.
	order []string
	// limits holds capacity and lifecycle thresholds.
	limits Limits
	// mu protects all fields.
	mu sync.RWMutex
}

// New creates a Registry with the given limits. Zero-valued cap and
// timeout fields fall back to their defaults individually; the spawn
// threshold is taken as given (zero disables spawning).
func New(limits Limits) *Registry {
	def := DefaultLimits()
	if limits.MaxSubAgents == 0 {
		limits.MaxSubAgents = def.MaxSubAgents
	}
	if limits.MaxPairedAgents == 0 {
		limits.MaxPairedAgents = def.MaxPairedAgents
	}
	if limits.MaxShadowAgents == 0 {
		limits.MaxShadowAgents = def.MaxShadowAgents
	}
	if limits.IdleTimeout == 0 {
		limits.IdleTimeout = def.IdleTimeout
	}
	return &Registry{
		agents: make(map[string]*models.Agent),
		limits: limits,
	}
}

// Register adds an agent to the registry.
func (r *Registry) Register(a *models.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerLocked(a)
}

func (r *Registry) registerLocked(a *models.Agent) {
	if a.ID == "" {
		a.ID = uuid.New().String()[:8]
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.LastActive.IsZero() {
		a.LastActive = a.CreatedAt
	}
	if a.MaxConcurrentTasks <= 0 {
		a.MaxConcurrentTasks = 1
	}
	if a.Status == "" {
		a.Status = models.AgentStatusIdle
	}
	if _, exists := r.agents[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.agents[a.ID] = a
}

// Unregister removes an agent from the registry.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(agentID)
}

func (r *Registry) removeLocked(agentID string) {
	delete(r.agents, agentID)
	for i, id := range r.order {
		if id == agentID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// cloneAgent copies an agent, including its slices, so callers can
// read it outside the registry lock while assignments keep mutating
// the stored original.
func cloneAgent(a *models.Agent) *models.Agent {
	if a == nil {
		return nil
	}
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	c.CurrentTasks = append([]string(nil), a.CurrentTasks...)
	c.ShadowPermissions = append([]string(nil), a.ShadowPermissions...)
	return &c
}

// Get retrieves a copy of the agent by ID. Returns nil if not
// registered. Mutations go through registry operations, not the copy.
func (r *Registry) Get(agentID string) *models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneAgent(r.agents[agentID])
}

// GetByName retrieves a copy of the first agent with the given display
// name, in registration order. Returns nil if none matches.
func (r *Registry) GetByName(name string) *models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if a := r.agents[id]; a != nil && a.Name == name {
			return cloneAgent(a)
		}
	}
	return nil
}

// All returns copies of all registered agents in registration order.
func (r *Registry) All() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, cloneAgent(r.agents[id]))
	}
	return out
}

// Available returns copies of agents that can take on more work.
func (r *Registry) Available() []*models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Agent
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status.Available() && a.HasCapacity() {
			out = append(out, cloneAgent(a))
		}
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// CountByRole returns how many agents carry the given role.
func (r *Registry) CountByRole(role models.AgentRole) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.countByRoleLocked(role)
}

func (r *Registry) countByRoleLocked(role models.AgentRole) int {
	n := 0
	for _, a := range r.agents {
		if a.Role == role {
			n++
		}
	}
	return n
}

// CanAccept reports whether the agent may be assigned the task.
// The agent must be available, under its concurrency cap, and hold
// every capability the task requires.
func CanAccept(a *models.Agent, task *models.Task) bool {
	if !a.Status.Available() || !a.HasCapacity() {
		return false
	}
	if task.RequiresHuman && !a.Role.HumanInteractive() {
		return false
	}
	return a.HasCapabilities(task.RequiredCapabilities)
}

// AssignBest picks the highest-scoring agent that can accept the task,
// marks the assignment, and returns a copy of the agent. Ties go to
// the earlier registered agent. If no agent is suitable and the pending
// workload has reached the spawn threshold, a sub-agent is created on
// demand.
func (r *Registry) AssignBest(task *models.Task, pendingWorkload int) (*models.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := r.bestLocked(task)
	if best == nil {
		spawned, err := r.spawnForTaskLocked(task, pendingWorkload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSuitableAgent, task.Name)
		}
		best = spawned
	}

	if err := r.assignLocked(best, task); err != nil {
		return nil, err
	}
	return cloneAgent(best), nil
}

func (r *Registry) bestLocked(task *models.Task) *models.Agent {
	var best *models.Agent
	bestScore := -1.0
	for _, id := range r.order {
		a := r.agents[id]
		if !CanAccept(a, task) {
			continue
		}
		if s := Score(a, task); s > bestScore {
			best = a
			bestScore = s
		}
	}
	return best
}

// spawnForTaskLocked creates a sub-agent when the workload justifies
// it. Human-interactive agents are never auto-created.
func (r *Registry) spawnForTaskLocked(task *models.Task, pendingWorkload int) (*models.Agent, error) {
	if r.limits.SpawnThreshold <= 0 || pendingWorkload < r.limits.SpawnThreshold {
		return nil, ErrNoSuitableAgent
	}
	if task.RequiresHuman {
		return nil, ErrNoSuitableAgent
	}
	if r.countByRoleLocked(models.AgentRoleSubAgent) >= r.limits.MaxSubAgents {
		return nil, ErrRoleCapReached
	}

	capabilities := task.RequiredCapabilities
	if len(capabilities) == 0 {
		capabilities = []string{"general_purpose"}
	}
	a := &models.Agent{
		ID:                 uuid.New().String()[:8],
		Name:               fmt.Sprintf("auto-agent-%s", uuid.New().String()[:8]),
		Role:               models.AgentRoleSubAgent,
		Capabilities:       capabilities,
		Status:             models.AgentStatusIdle,
		MaxConcurrentTasks: 3,
	}
	r.registerLocked(a)
	return a, nil
}

// Assign records a task against an agent, enforcing the concurrency cap.
func (r *Registry) Assign(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.agents[agentID]
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return r.assignTaskIDLocked(a, taskID)
}

func (r *Registry) assignLocked(a *models.Agent, task *models.Task) error {
	if err := r.assignTaskIDLocked(a, task.ID); err != nil {
		return err
	}
	task.AssignedAgentID = a.ID
	return nil
}

func (r *Registry) assignTaskIDLocked(a *models.Agent, taskID string) error {
	if !a.HasCapacity() {
		return fmt.Errorf("%w: %s", ErrAgentAtCapacity, a.ID)
	}
	a.CurrentTasks = append(a.CurrentTasks, taskID)
	a.LastActive = time.Now()
	if len(a.CurrentTasks) >= a.MaxConcurrentTasks {
		a.Status = models.AgentStatusBusy
	} else {
		a.Status = models.AgentStatusActive
	}
	return nil
}

// Release removes a task from an agent without touching its rolling
// metrics. It undoes an assignment that never executed, such as a task
// rejected at enqueue.
func (r *Registry) Release(agentID, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.agents[agentID]
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	for i, id := range a.CurrentTasks {
		if id == taskID {
			a.CurrentTasks = append(a.CurrentTasks[:i], a.CurrentTasks[i+1:]...)
			break
		}
	}
	if len(a.CurrentTasks) == 0 {
		a.Status = models.AgentStatusIdle
	} else {
		a.Status = models.AgentStatusActive
	}
	return nil
}

// Complete records a finished task, updating the agent's rolling metrics.
func (r *Registry) Complete(agentID, taskID string, success bool, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.agents[agentID]
	if a == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}

	for i, id := range a.CurrentTasks {
		if id == taskID {
			a.CurrentTasks = append(a.CurrentTasks[:i], a.CurrentTasks[i+1:]...)
			break
		}
	}

	if success {
		a.TasksCompleted++
	} else {
		a.TasksFailed++
	}
	total := a.TasksCompleted + a.TasksFailed
	a.SuccessRate = float64(a.TasksCompleted) / float64(total)
	a.AvgDuration = time.Duration((int64(a.AvgDuration)*(int64(total)-1) + int64(duration)) / int64(total))
	a.Score = a.SuccessRate*2.0 + (1.0 - a.LoadFactor())
	a.LastActive = time.Now()

	if len(a.CurrentTasks) == 0 {
		a.Status = models.AgentStatusIdle
	} else {
		a.Status = models.AgentStatusActive
	}
	return nil
}

// ReapIdle removes sub-agents with no work whose last activity is older
// than the idle timeout. Boss and human-interactive agents are exempt.
// Returns the ids of removed agents.
func (r *Registry) ReapIdle(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	for _, id := range append([]string(nil), r.order...) {
		a := r.agents[id]
		if a.Role != models.AgentRoleSubAgent {
			continue
		}
		if len(a.CurrentTasks) > 0 {
			continue
		}
		if now.Sub(a.LastActive) > r.limits.IdleTimeout {
			r.removeLocked(id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

// Stats summarizes the registry for snapshots and reporting.
type Stats struct {
	// Total is the number of registered agents.
	Total int `json:"total"`
	// ActiveIDs lists agents currently carrying at least one task.
	ActiveIDs []string `json:"active_ids"`
	// ByRole counts agents per role.
	ByRole map[models.AgentRole]int `json:"by_role"`
	// ByStatus counts agents per status.
	ByStatus map[models.AgentStatus]int `json:"by_status"`
}

// Summarize returns current registry statistics.
func (r *Registry) Summarize() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:    len(r.agents),
		ByRole:   make(map[models.AgentRole]int),
		ByStatus: make(map[models.AgentStatus]int),
	}
	for _, id := range r.order {
		a := r.agents[id]
		s.ByRole[a.Role]++
		s.ByStatus[a.Status]++
		if len(a.CurrentTasks) > 0 {
			s.ActiveIDs = append(s.ActiveIDs, a.ID)
		}
	}
	return s
}
