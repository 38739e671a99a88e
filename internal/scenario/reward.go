package scenario

import (
	"fmt"
	"math"

	"pursuit/internal/world"
)

// Reward dispatches on the agent's role. The agent must be non-nil; the
// role-specific rewards below ignore it and accept nil.
func (s *Scenario) Reward(agent *world.Agent, w *world.World) (float64, error) {
	if agent == nil {
		return 0, fmt.Errorf("%w: nil agent", ErrInvalidConfig)
	}
	switch agent.Role {
	case world.RoleAdversary:
		return s.AdversaryReward(agent, w)
	case world.RoleCooperator:
		return s.AgentReward(agent, w)
	default:
		return 0, fmt.Errorf("%w: %s has role %d", ErrUnknownRole, agent.Name, agent.Role)
	}
}

// AgentReward is shared by every cooperator: the negated goal distance of
// the best-placed cooperator. The agent argument is not consulted.
func (s *Scenario) AgentReward(_ *world.Agent, w *world.World) (float64, error) {
	d, err := nearestGoalDistance(w)
	if err != nil {
		return 0, err
	}
	return -d, nil
}

// AdversaryReward is the exact negation of AgentReward.
func (s *Scenario) AdversaryReward(_ *world.Agent, w *world.World) (float64, error) {
	return nearestGoalDistance(w)
}

func nearestGoalDistance(w *world.World) (float64, error) {
	best := math.Inf(1)
	seen := false
	for _, a := range w.Agents {
		if a.Role != world.RoleCooperator {
			continue
		}
		d, err := goalDistance(a)
		if err != nil {
			return 0, err
		}
		seen = true
		best = math.Min(best, d)
	}
	if !seen {
		return 0, ErrNoCooperators
	}
	return best, nil
}

func goalDistance(a *world.Agent) (float64, error) {
	if a.Goal == nil {
		return 0, fmt.Errorf("%w: %s", ErrGoalUnset, a.Name)
	}
	if len(a.State.Pos) == 0 || len(a.State.Pos) != len(a.Goal.State.Pos) {
		return 0, fmt.Errorf("%w: %s position has %d dims, goal has %d", ErrInvalidConfig, a.Name, len(a.State.Pos), len(a.Goal.State.Pos))
	}
	return world.Distance(a.State.Pos, a.Goal.State.Pos), nil
}
