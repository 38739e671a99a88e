package pursuit

import (
	"errors"
	"math"
	"testing"
)

func TestWorldBuilderEpisodeContract(t *testing.T) {
	b, err := NewWorldBuilder(DefaultConfig(), 11)
	if err != nil {
		t.Fatalf("new world builder: %v", err)
	}
	w, err := b.MakeWorld()
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	layout := b.Layout()
	for _, a := range w.Agents {
		obs, err := b.Observation(a, w)
		if err != nil {
			t.Fatalf("observation for %s: %v", a.Name, err)
		}
		if len(obs) != layout.Size(a.Role) {
			t.Fatalf("%s: expected observation length %d, got %d", a.Name, layout.Size(a.Role), len(obs))
		}
	}

	coop, adv := w.Agents[1], w.Agents[0]
	rc, err := b.Reward(coop, w)
	if err != nil {
		t.Fatalf("cooperator reward: %v", err)
	}
	ra, err := b.Reward(adv, w)
	if err != nil {
		t.Fatalf("adversary reward: %v", err)
	}
	if math.Abs(rc+ra) > 1e-12 || rc > 0 {
		t.Fatalf("unexpected rewards cooperator=%f adversary=%f", rc, ra)
	}

	bench, err := b.BenchmarkData(coop, w)
	if err != nil {
		t.Fatalf("benchmark data: %v", err)
	}
	if len(bench) != 1 || (bench[0] != 0 && bench[0] != 1) {
		t.Fatalf("unexpected benchmark data: %v", bench)
	}

	if err := b.ResetWorld(w); err != nil {
		t.Fatalf("reset world: %v", err)
	}
	goal, err := b.GoalLandmark(w)
	if err != nil {
		t.Fatalf("goal after reset: %v", err)
	}
	for _, c := range w.Cooperators() {
		if c.Goal != goal {
			t.Fatalf("%s does not share the reset goal", c.Name)
		}
	}
}

func TestWorldBuilderIsSeeded(t *testing.T) {
	first, err := NewWorldBuilder(DefaultConfig(), 5)
	if err != nil {
		t.Fatalf("new world builder: %v", err)
	}
	second, err := NewWorldBuilder(DefaultConfig(), 5)
	if err != nil {
		t.Fatalf("new world builder: %v", err)
	}
	a, err := first.MakeWorld()
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	b, err := second.MakeWorld()
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	for i := range a.Agents {
		for d := range a.Agents[i].State.Pos {
			if a.Agents[i].State.Pos[d] != b.Agents[i].State.Pos[d] {
				t.Fatalf("agent %d differs between builders with the same seed", i)
			}
		}
	}
}

func TestNewWorldBuilderRejectsInvalidConfig(t *testing.T) {
	_, err := NewWorldBuilder(Config{NumAgents: 2, NumAdversaries: 2, NumLandmarks: 2, DimP: 2}, 1)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
