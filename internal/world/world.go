package world

import "math"

// Role selects which reward variant and observation view an agent gets.
type Role int

const (
	RoleCooperator Role = iota
	RoleAdversary
)

func (r Role) String() string {
	switch r {
	case RoleCooperator:
		return "cooperator"
	case RoleAdversary:
		return "adversary"
	default:
		return "unknown"
	}
}

// Color is an RGB triple used for display only.
type Color [3]float64

type EntityState struct {
	Pos []float64 `json:"pos"`
	Vel []float64 `json:"vel"`
}

type AgentState struct {
	EntityState
	Comm []float64 `json:"comm"`
}

type Agent struct {
	Name    string
	Role    Role
	Collide bool
	Silent  bool
	Movable bool
	Size    float64
	State   AgentState
	Color   Color

	// Goal is shared with every other cooperator and is nil for adversaries.
	Goal *Landmark
}

func (a *Agent) Adversary() bool {
	return a.Role == RoleAdversary
}

type Landmark struct {
	Name    string
	Index   int
	Collide bool
	Movable bool
	Size    float64
	State   EntityState
	Color   Color
}

// World is the entity graph one episode loop owns. Entity counts never
// change after construction.
type World struct {
	Agents    []*Agent
	Landmarks []*Landmark
	DimC      int
	DimP      int
}

func (w *World) Cooperators() []*Agent {
	out := make([]*Agent, 0, len(w.Agents))
	for _, a := range w.Agents {
		if a.Role == RoleCooperator {
			out = append(out, a)
		}
	}
	return out
}

func (w *World) Adversaries() []*Agent {
	out := make([]*Agent, 0, len(w.Agents))
	for _, a := range w.Agents {
		if a.Role == RoleAdversary {
			out = append(out, a)
		}
	}
	return out
}

// Body is the physics view of an entity.
type Body struct {
	State   *EntityState
	Collide bool
	Movable bool
	Size    float64
}

// Bodies lists agents first, then landmarks, in world order.
func (w *World) Bodies() []Body {
	out := make([]Body, 0, len(w.Agents)+len(w.Landmarks))
	for _, a := range w.Agents {
		out = append(out, Body{State: &a.State.EntityState, Collide: a.Collide, Movable: a.Movable, Size: a.Size})
	}
	for _, l := range w.Landmarks {
		out = append(out, Body{State: &l.State, Collide: l.Collide, Movable: l.Movable, Size: l.Size})
	}
	return out
}

func Zeros(n int) []float64 {
	return make([]float64, n)
}

// Distance is the Euclidean norm of a-b. Both vectors must have the same
// length.
func Distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
