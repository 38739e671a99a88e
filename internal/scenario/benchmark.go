package scenario

import "pursuit/internal/world"

// BenchmarkData reports whether a cooperator occupies the goal. The flag is
// overwritten per cooperator, so only the last cooperator in world order
// decides the result; the agent argument is not consulted.
func (s *Scenario) BenchmarkData(_ *world.Agent, w *world.World) ([]int, error) {
	occupied := 0
	seen := false
	for _, a := range w.Agents {
		if a.Role == world.RoleAdversary {
			continue
		}
		d, err := goalDistance(a)
		if err != nil {
			return nil, err
		}
		seen = true
		if d < OccupancyThreshold {
			occupied = 1
		} else {
			occupied = 0
		}
	}
	if !seen {
		return nil, ErrNoCooperators
	}
	return []int{occupied}, nil
}
