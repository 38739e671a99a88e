package policy

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"pursuit/internal/scape"
	"pursuit/internal/world"
)

const (
	seekGain    = 2.0
	seekDamping = 1.0
)

const (
	RandomName = "random"
	StillName  = "still"
	SeekName   = "seek"
	ShadowName = "shadow"
)

func init() {
	for _, spec := range []Spec{
		{Name: RandomName, Factory: newRandom},
		{Name: StillName, Factory: newStill},
		{Name: SeekName, Factory: newSeek, Compatible: requireRole(world.RoleCooperator)},
		{Name: ShadowName, Factory: newShadow, Compatible: requireRole(world.RoleAdversary)},
	} {
		if err := Register(spec); err != nil {
			panic(err)
		}
	}
}

type randomPolicy struct {
	id   string
	dimP int
	rng  *rand.Rand
}

func newRandom(p Params) (scape.Policy, error) {
	if p.Rng == nil {
		return nil, fmt.Errorf("random policy for agent %d requires an rng", p.AgentIndex)
	}
	return &randomPolicy{id: policyID(RandomName, p), dimP: p.Layout.DimP, rng: p.Rng}, nil
}

func (r *randomPolicy) ID() string { return r.id }

func (r *randomPolicy) Act(_ context.Context, _ []float64) ([]float64, error) {
	out := make([]float64, r.dimP)
	for i := range out {
		out[i] = r.rng.Float64()*2 - 1
	}
	return out, nil
}

type stillPolicy struct {
	id   string
	dimP int
}

func newStill(p Params) (scape.Policy, error) {
	return stillPolicy{id: policyID(StillName, p), dimP: p.Layout.DimP}, nil
}

func (s stillPolicy) ID() string { return s.id }

func (s stillPolicy) Act(_ context.Context, _ []float64) ([]float64, error) {
	return make([]float64, s.dimP), nil
}

// seekPolicy steers a cooperator toward the goal it observes with a
// proportional pull on position and a damping term on velocity.
type seekPolicy struct {
	id     string
	params Params
}

func newSeek(p Params) (scape.Policy, error) {
	return seekPolicy{id: policyID(SeekName, p), params: p}, nil
}

func (s seekPolicy) ID() string { return s.id }

func (s seekPolicy) Act(_ context.Context, obs []float64) ([]float64, error) {
	layout := s.params.Layout
	goal, ok := layout.GoalPos(obs)
	if !ok {
		return nil, fmt.Errorf("observation of length %d carries no goal", len(obs))
	}
	self := layout.AgentPos(obs, s.params.AgentIndex)
	vel := layout.AgentVel(obs, s.params.AgentIndex)
	out := make([]float64, len(self))
	for i := range out {
		out[i] = clamp(seekGain*(goal[i]-self[i])-seekDamping*vel[i], -1, 1)
	}
	return out, nil
}

// shadowPolicy guards the landmark some cooperator is closest to, since
// the adversary cannot see which landmark is the goal.
type shadowPolicy struct {
	id     string
	params Params
}

func newShadow(p Params) (scape.Policy, error) {
	return shadowPolicy{id: policyID(ShadowName, p), params: p}, nil
}

func (s shadowPolicy) ID() string { return s.id }

func (s shadowPolicy) Act(_ context.Context, obs []float64) ([]float64, error) {
	layout := s.params.Layout
	if len(obs) < layout.Size(world.RoleAdversary) {
		return nil, fmt.Errorf("observation of length %d is shorter than layout %d", len(obs), layout.Size(world.RoleAdversary))
	}
	best := math.Inf(1)
	var target []float64
	for i, role := range s.params.Roles {
		if role != world.RoleCooperator {
			continue
		}
		pos := layout.AgentPos(obs, i)
		for l := 0; l < layout.NumLandmarks; l++ {
			candidate := layout.LandmarkPos(obs, l)
			if d := world.Distance(pos, candidate); d < best {
				best = d
				target = candidate
			}
		}
	}
	self := layout.AgentPos(obs, s.params.AgentIndex)
	if target == nil {
		return make([]float64, len(self)), nil
	}
	return heading(self, target), nil
}

// heading returns the unit vector from -> to, or zero when they coincide.
func heading(from, to []float64) []float64 {
	out := make([]float64, len(from))
	d := world.Distance(from, to)
	if d == 0 {
		return out
	}
	for i := range out {
		out[i] = (to[i] - from[i]) / d
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func policyID(name string, p Params) string {
	return fmt.Sprintf("%s/agent-%d", name, p.AgentIndex)
}
