package scape

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pursuit/internal/physics"
	"pursuit/internal/scenario"
)

type scriptedPolicy struct {
	id string
	fn func(obs []float64) []float64
}

func (p scriptedPolicy) ID() string { return p.id }

func (p scriptedPolicy) Act(_ context.Context, obs []float64) ([]float64, error) {
	return p.fn(obs), nil
}

func idle(id string) Policy {
	return scriptedPolicy{id: id, fn: func([]float64) []float64 { return []float64{0, 0} }}
}

// seeker steers toward the goal encoded at the tail of a cooperator
// observation, damping its own velocity.
func seeker(layout scenario.Layout, index int) Policy {
	return scriptedPolicy{id: "seeker", fn: func(obs []float64) []float64 {
		goal, ok := layout.GoalPos(obs)
		if !ok {
			return []float64{0, 0}
		}
		self := layout.AgentPos(obs, index)
		vel := layout.AgentVel(obs, index)
		out := make([]float64, len(self))
		for i := range out {
			out[i] = 2*(goal[i]-self[i]) - vel[i]
		}
		return out
	}}
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) WriteFrame(_ context.Context, frame Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return nil
}

func newPushScape(seed int64) *PushScape {
	return NewPushScape(scenario.MustNew(scenario.DefaultConfig()), physics.NewPointMass(), seed)
}

func TestPushScapeSeekerBeatsIdle(t *testing.T) {
	p := newPushScape(4)
	layout := p.Scenario.Layout()

	idleFitness, idleTrace, err := p.Evaluate(context.Background(), []Policy{idle("adversary"), idle("cooperator")})
	if err != nil {
		t.Fatalf("evaluate idle: %v", err)
	}
	seekFitness, seekTrace, err := p.Evaluate(context.Background(), []Policy{idle("adversary"), seeker(layout, 1)})
	if err != nil {
		t.Fatalf("evaluate seeker: %v", err)
	}
	if seekFitness <= idleFitness {
		t.Fatalf("expected seeker to beat idle, got seeker=%f idle=%f", seekFitness, idleFitness)
	}
	if seekTrace["final_distance"].(float64) >= idleTrace["final_distance"].(float64) {
		t.Fatalf("expected seeker to end closer to goal: seeker=%+v idle=%+v", seekTrace, idleTrace)
	}
}

func TestPushScapeReturnsAreZeroSum(t *testing.T) {
	p := newPushScape(10)
	result, err := p.RunEpisode(context.Background(), []Policy{idle("adversary"), seeker(p.Scenario.Layout(), 1)}, EpisodeRequest{Seed: 10, Mode: "test"})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if result.Steps != 50 || result.Mode != "test" {
		t.Fatalf("unexpected mode config: %+v", result)
	}
	if result.AdversaryReturn() != -result.CooperatorReturn() {
		t.Fatalf("expected zero-sum returns, got %v", result.Returns)
	}
	if result.Occupied != 0 && result.Occupied != 1 {
		t.Fatalf("unexpected occupancy flag %d", result.Occupied)
	}
}

func TestPushScapeEmitsFramesPerTick(t *testing.T) {
	p := newPushScape(2)
	recorder := &frameRecorder{}
	p.Sinks = []FrameSink{recorder}
	result, err := p.RunEpisode(context.Background(), []Policy{idle("a"), idle("b")}, EpisodeRequest{Episode: 3, Seed: 2, Steps: 7})
	if err != nil {
		t.Fatalf("run episode: %v", err)
	}
	if len(recorder.frames) != 7 {
		t.Fatalf("expected 7 frames, got %d", len(recorder.frames))
	}
	last := recorder.frames[6]
	if last.Episode != 3 || last.Tick != 6 || last.GoalIndex != result.GoalIndex {
		t.Fatalf("unexpected frame header: %+v", last)
	}
	if len(last.Agents) != 2 || len(last.Landmarks) != 2 || len(last.Rewards) != 2 {
		t.Fatalf("unexpected frame shape: %+v", last)
	}
	if last.Agents[0].Role != "adversary" || last.Landmarks[result.GoalIndex].Color != scenario.GoalColor {
		t.Fatalf("unexpected frame entities: %+v", last)
	}
}

func TestPushScapeModes(t *testing.T) {
	p := newPushScape(1)
	policies := []Policy{idle("a"), idle("b")}
	for _, mode := range []string{"gt", "validation", "test", "benchmark"} {
		_, trace, err := p.EvaluateMode(context.Background(), policies, mode)
		if err != nil {
			t.Fatalf("evaluate %s: %v", mode, err)
		}
		if got, _ := trace["mode"].(string); got != mode {
			t.Fatalf("expected mode %s in trace, got %+v", mode, trace)
		}
	}
	if _, _, err := p.EvaluateMode(context.Background(), policies, "bogus"); err == nil {
		t.Fatal("expected unsupported mode error")
	}
}

func TestPushScapeRejectsPolicyCountMismatch(t *testing.T) {
	p := newPushScape(1)
	if _, _, err := p.Evaluate(context.Background(), []Policy{idle("a")}); err == nil {
		t.Fatal("expected policy count error")
	}
}

func TestPushScapeHonorsCancellation(t *testing.T) {
	p := newPushScape(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := p.Evaluate(ctx, []Policy{idle("a"), idle("b")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunEpisodesIsDeterministicAcrossWorkerCounts(t *testing.T) {
	p := newPushScape(100)
	layout := p.Scenario.Layout()
	factory := func(int) ([]Policy, error) {
		return []Policy{idle("adversary"), seeker(layout, 1)}, nil
	}
	serial, err := RunEpisodes(context.Background(), p, factory, "gt", 12, 1)
	if err != nil {
		t.Fatalf("serial episodes: %v", err)
	}
	parallel, err := RunEpisodes(context.Background(), p, factory, "gt", 12, 4)
	if err != nil {
		t.Fatalf("parallel episodes: %v", err)
	}
	for i := range serial {
		if serial[i].Episode != i || parallel[i].Episode != i {
			t.Fatalf("results out of order at %d", i)
		}
		if serial[i].Fitness != parallel[i].Fitness || serial[i].GoalIndex != parallel[i].GoalIndex {
			t.Fatalf("episode %d differs between worker counts: %+v vs %+v", i, serial[i], parallel[i])
		}
	}
	summary := Summarize(serial)
	if summary.Episodes != 12 || summary.MeanAdversaryReturn != -summary.MeanCooperatorReturn {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.OccupancyRate < 0 || summary.OccupancyRate > 1 {
		t.Fatalf("occupancy rate out of range: %f", summary.OccupancyRate)
	}
}

func TestRunEpisodesPropagatesFactoryErrors(t *testing.T) {
	p := newPushScape(1)
	boom := errors.New("boom")
	_, err := RunEpisodes(context.Background(), p, func(int) ([]Policy, error) { return nil, boom }, "gt", 3, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if _, err := RunEpisodes(context.Background(), p, nil, "gt", 0, 1); err == nil {
		t.Fatal("expected episode count error")
	}
}
