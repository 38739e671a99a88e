package scenario

import (
	"fmt"

	"pursuit/internal/world"
)

// Layout describes where each field sits in an observation vector:
// landmark positions, then per-agent position and velocity, then (for
// cooperators only) the goal position.
type Layout struct {
	NumLandmarks int
	NumAgents    int
	DimP         int
}

func (s *Scenario) Layout() Layout {
	return Layout{NumLandmarks: s.cfg.NumLandmarks, NumAgents: s.cfg.NumAgents, DimP: s.cfg.DimP}
}

func (l Layout) Size(role world.Role) int {
	n := l.DimP*l.NumLandmarks + 2*l.DimP*l.NumAgents
	if role == world.RoleCooperator {
		n += l.DimP
	}
	return n
}

func (l Layout) LandmarkPos(obs []float64, i int) []float64 {
	off := i * l.DimP
	return obs[off : off+l.DimP]
}

func (l Layout) AgentPos(obs []float64, i int) []float64 {
	off := l.DimP*l.NumLandmarks + 2*l.DimP*i
	return obs[off : off+l.DimP]
}

func (l Layout) AgentVel(obs []float64, i int) []float64 {
	off := l.DimP*l.NumLandmarks + 2*l.DimP*i + l.DimP
	return obs[off : off+l.DimP]
}

// GoalPos reports false for observations that carry no goal (adversary view).
func (l Layout) GoalPos(obs []float64) ([]float64, bool) {
	if len(obs) != l.Size(world.RoleCooperator) {
		return nil, false
	}
	off := len(obs) - l.DimP
	return obs[off:], true
}

func (s *Scenario) ObservationSize(role world.Role) int {
	return s.Layout().Size(role)
}

func (s *Scenario) Observation(agent *world.Agent, w *world.World) ([]float64, error) {
	if agent == nil {
		return nil, fmt.Errorf("%w: nil agent", ErrInvalidConfig)
	}
	layout := Layout{NumLandmarks: len(w.Landmarks), NumAgents: len(w.Agents), DimP: w.DimP}
	obs := make([]float64, 0, layout.Size(agent.Role))
	for _, l := range w.Landmarks {
		obs = append(obs, l.State.Pos...)
	}
	for _, a := range w.Agents {
		obs = append(obs, a.State.Pos...)
		obs = append(obs, a.State.Vel...)
	}

	switch agent.Role {
	case world.RoleAdversary:
		return obs, nil
	case world.RoleCooperator:
		if agent.Goal == nil {
			return nil, fmt.Errorf("%w: %s", ErrGoalUnset, agent.Name)
		}
		return append(obs, agent.Goal.State.Pos...), nil
	default:
		return nil, fmt.Errorf("%w: %s has role %d", ErrUnknownRole, agent.Name, agent.Role)
	}
}
