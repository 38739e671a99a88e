package physics

import (
	"math/rand"
	"testing"

	"pursuit/internal/scenario"
	"pursuit/internal/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := scenario.MustNew(scenario.DefaultConfig()).MakeWorld(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	w.Agents[0].State.Pos = []float64{-0.5, 0}
	w.Agents[1].State.Pos = []float64{0.5, 0}
	return w
}

func TestPointMassMovesAgentsAlongAction(t *testing.T) {
	w := newWorld(t)
	engine := NewPointMass()
	if err := engine.Step(w, [][]float64{{0, 0}, {1, 0}}); err != nil {
		t.Fatalf("step: %v", err)
	}
	moved := w.Agents[1]
	if moved.State.Vel[0] <= 0 || moved.State.Pos[0] <= 0.5 {
		t.Fatalf("expected agent to accelerate along +x, got pos=%v vel=%v", moved.State.Pos, moved.State.Vel)
	}
	still := w.Agents[0]
	if still.State.Pos[0] != -0.5 || still.State.Vel[0] != 0 {
		t.Fatalf("expected idle agent to stay put, got pos=%v vel=%v", still.State.Pos, still.State.Vel)
	}
}

func TestPointMassNeverMovesLandmarks(t *testing.T) {
	w := newWorld(t)
	before := make([][]float64, len(w.Landmarks))
	for i, l := range w.Landmarks {
		// Park each landmark on top of an agent; landmarks do not collide.
		l.State.Pos = append([]float64(nil), w.Agents[i].State.Pos...)
		before[i] = append([]float64(nil), l.State.Pos...)
	}
	engine := NewPointMass()
	for i := 0; i < 25; i++ {
		if err := engine.Step(w, [][]float64{{1, 1}, {-1, 1}}); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	for i, l := range w.Landmarks {
		if world.Distance(before[i], l.State.Pos) != 0 {
			t.Fatalf("landmark %d moved from %v to %v", i, before[i], l.State.Pos)
		}
		for _, v := range l.State.Vel {
			if v != 0 {
				t.Fatalf("landmark %d gained velocity %v", i, l.State.Vel)
			}
		}
	}
}

func TestPointMassSeparatesOverlappingAgents(t *testing.T) {
	w := newWorld(t)
	w.Agents[0].State.Pos = []float64{0, 0}
	w.Agents[1].State.Pos = []float64{0.02, 0}
	engine := NewPointMass()
	if err := engine.Step(w, [][]float64{{0, 0}, {0, 0}}); err != nil {
		t.Fatalf("step: %v", err)
	}
	if w.Agents[0].State.Vel[0] >= 0 || w.Agents[1].State.Vel[0] <= 0 {
		t.Fatalf("expected contact force to push agents apart, got v0=%v v1=%v", w.Agents[0].State.Vel, w.Agents[1].State.Vel)
	}
}

func TestPointMassRejectsMalformedActions(t *testing.T) {
	w := newWorld(t)
	engine := NewPointMass()
	if err := engine.Step(w, [][]float64{{0, 0}}); err == nil {
		t.Fatal("expected action count mismatch error")
	}
	if err := engine.Step(w, [][]float64{{0, 0}, {0}}); err == nil {
		t.Fatal("expected action width mismatch error")
	}
}

func TestPointMassKeepsSilentCommZero(t *testing.T) {
	w := newWorld(t)
	w.Agents[1].State.Comm = []float64{1, 1}
	if err := NewPointMass().Step(w, [][]float64{{0, 0}, {0, 0}}); err != nil {
		t.Fatalf("step: %v", err)
	}
	for _, v := range w.Agents[1].State.Comm {
		if v != 0 {
			t.Fatalf("expected silent agent comm to be zero, got %v", w.Agents[1].State.Comm)
		}
	}
}
