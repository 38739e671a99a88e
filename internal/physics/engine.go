package physics

import (
	"fmt"
	"math"

	"pursuit/internal/world"
)

// Engine advances a world by one tick given one action per agent.
type Engine interface {
	Step(w *world.World, actions [][]float64) error
}

// PointMass integrates damped point masses with soft contact forces.
// Entities with Movable == false are never moved.
type PointMass struct {
	DT            float64
	Damping       float64
	Mass          float64
	Sensitivity   float64
	ContactForce  float64
	ContactMargin float64
}

func NewPointMass() PointMass {
	return PointMass{
		DT:            0.1,
		Damping:       0.25,
		Mass:          1.0,
		Sensitivity:   5.0,
		ContactForce:  1e2,
		ContactMargin: 1e-3,
	}
}

func (e PointMass) Step(w *world.World, actions [][]float64) error {
	if len(actions) != len(w.Agents) {
		return fmt.Errorf("physics: expected %d actions, got %d", len(w.Agents), len(actions))
	}
	bodies := w.Bodies()
	force := make([][]float64, len(bodies))
	for i := range force {
		force[i] = make([]float64, w.DimP)
	}

	for i, a := range w.Agents {
		if len(actions[i]) != w.DimP {
			return fmt.Errorf("physics: agent %s action has %d components, want %d", a.Name, len(actions[i]), w.DimP)
		}
		if !a.Movable {
			continue
		}
		for k, u := range actions[i] {
			force[i][k] += clamp(u, -1, 1) * e.Sensitivity
		}
	}

	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			fa, fb := e.collisionForce(bodies[i], bodies[j])
			if fa == nil {
				continue
			}
			for k := range fa {
				force[i][k] += fa[k]
				force[j][k] += fb[k]
			}
		}
	}

	for i, b := range bodies {
		if !b.Movable {
			continue
		}
		for k := range b.State.Vel {
			b.State.Vel[k] *= 1 - e.Damping
			b.State.Vel[k] += force[i][k] / e.Mass * e.DT
			b.State.Pos[k] += b.State.Vel[k] * e.DT
		}
	}

	for _, a := range w.Agents {
		if a.Silent {
			a.State.Comm = world.Zeros(w.DimC)
		}
	}
	return nil
}

// collisionForce returns nil when the pair does not interact.
func (e PointMass) collisionForce(a, b world.Body) ([]float64, []float64) {
	if !a.Collide || !b.Collide {
		return nil, nil
	}
	delta := make([]float64, len(a.State.Pos))
	for k := range delta {
		delta[k] = a.State.Pos[k] - b.State.Pos[k]
	}
	dist := world.Distance(a.State.Pos, b.State.Pos)
	if dist == 0 {
		return nil, nil
	}
	minDist := a.Size + b.Size
	k := e.ContactMargin
	penetration := logAddExp(0, -(dist-minDist)/k) * k

	fa := make([]float64, len(delta))
	fb := make([]float64, len(delta))
	for i := range delta {
		f := e.ContactForce * delta[i] / dist * penetration
		if a.Movable {
			fa[i] = f
		}
		if b.Movable {
			fb[i] = -f
		}
	}
	return fa, fb
}

func logAddExp(a, b float64) float64 {
	hi := math.Max(a, b)
	return hi + math.Log1p(math.Exp(-math.Abs(a-b)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
