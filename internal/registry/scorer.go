package registry

import "github.com/overseer-dev/overseer/pkg/models"

// Scoring weights. Higher total wins; ties break on registration order.
const (
	availabilityBonus   = 1.0
	bossLevelBonus      = 3.0
	subAgentBonus       = 1.0
	capabilityWeight    = 2.0
	performanceWeight   = 2.0
	humanMatchBonus     = 2.0
	autonomousTaskBonus = 1.0
)

// Score computes how suitable an agent is for a task. The score sums
// an availability bonus, a role preference, the capability overlap
// ratio, historical success rate, and an inverse load factor.
func Score(a *models.Agent, task *models.Task) float64 {
	score := 0.0

	if a.Status.Available() {
		score += availabilityBonus
	}

	switch a.Role {
	case models.AgentRoleBoss:
		if task.RequiresBossLevel {
			score += bossLevelBonus
		}
	case models.AgentRoleSubAgent:
		score += subAgentBonus
	}

	if n := len(task.RequiredCapabilities); n > 0 {
		matched := 0
		for _, c := range task.RequiredCapabilities {
			for _, have := range a.Capabilities {
				if have == c {
					matched++
					break
				}
			}
		}
		score += float64(matched) / float64(n) * capabilityWeight
	}

	if a.TasksCompleted > 0 {
		score += a.SuccessRate * performanceWeight
	}

	score += 1.0 - a.LoadFactor()

	if task.RequiresHuman {
		if a.Role.HumanInteractive() {
			score += humanMatchBonus
		}
	} else if !a.Role.HumanInteractive() {
		score += autonomousTaskBonus
	}

	return score
}
