package scape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"pursuit/internal/physics"
	"pursuit/internal/scenario"
	"pursuit/internal/world"
)

// PushScape runs the goal-push scenario on top of a physics engine.
type PushScape struct {
	Scenario *scenario.Scenario
	Engine   physics.Engine
	Seed     int64
	// Steps overrides every mode's episode length when > 0.
	Steps  int
	Sinks  []FrameSink
	Logger *slog.Logger
}

func NewPushScape(s *scenario.Scenario, engine physics.Engine, seed int64) *PushScape {
	return &PushScape{Scenario: s, Engine: engine, Seed: seed}
}

func (p *PushScape) Name() string {
	return p.Scenario.Name()
}

func (p *PushScape) Evaluate(ctx context.Context, policies []Policy) (Fitness, Trace, error) {
	return p.EvaluateMode(ctx, policies, "gt")
}

func (p *PushScape) EvaluateMode(ctx context.Context, policies []Policy, mode string) (Fitness, Trace, error) {
	result, err := p.RunEpisode(ctx, policies, EpisodeRequest{Seed: p.Seed, Mode: mode})
	if err != nil {
		return 0, nil, err
	}
	return result.Fitness, result.Trace(), nil
}

type pushModeConfig struct {
	mode       string
	steps      int
	seedOffset int64
}

func pushConfigForMode(mode string) (pushModeConfig, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return pushModeConfig{mode: "gt", steps: 25}, nil
	case "validation":
		return pushModeConfig{mode: "validation", steps: 25, seedOffset: 1_000_003}, nil
	case "test":
		return pushModeConfig{mode: "test", steps: 50, seedOffset: 2_000_003}, nil
	case "benchmark":
		return pushModeConfig{mode: "benchmark", steps: 50, seedOffset: 3_000_017}, nil
	default:
		return pushModeConfig{}, fmt.Errorf("unsupported simple-push mode: %s", mode)
	}
}

type EpisodeRequest struct {
	Episode int
	Seed    int64
	Mode    string
	// Steps overrides the mode's episode length when > 0.
	Steps int
}

type EpisodeResult struct {
	Episode       int
	Seed          int64
	Mode          string
	Steps         int
	GoalIndex     int
	Roles         []world.Role
	Returns       []float64
	Fitness       Fitness
	FinalDistance float64
	Occupied      int
}

// CooperatorReturn is the shared team return; every cooperator earns the same reward.
func (r EpisodeResult) CooperatorReturn() float64 {
	return r.roleReturn(world.RoleCooperator)
}

func (r EpisodeResult) AdversaryReturn() float64 {
	return r.roleReturn(world.RoleAdversary)
}

func (r EpisodeResult) roleReturn(role world.Role) float64 {
	for i, got := range r.Roles {
		if got == role {
			return r.Returns[i]
		}
	}
	return 0
}

func (r EpisodeResult) Trace() Trace {
	return Trace{
		"mode":              r.Mode,
		"episode":           r.Episode,
		"steps":             r.Steps,
		"goal_index":        r.GoalIndex,
		"returns":           append([]float64(nil), r.Returns...),
		"cooperator_return": r.CooperatorReturn(),
		"adversary_return":  r.AdversaryReturn(),
		"final_distance":    r.FinalDistance,
		"occupied":          r.Occupied,
	}
}

// RunEpisode builds a fresh world, resets it from the request seed and
// steps it for the mode's episode length. Every agent's reward is summed
// into Returns; Fitness is the cooperator team's mean per-tick reward.
func (p *PushScape) RunEpisode(ctx context.Context, policies []Policy, req EpisodeRequest) (EpisodeResult, error) {
	cfg, err := pushConfigForMode(req.Mode)
	if err != nil {
		return EpisodeResult{}, err
	}
	steps := cfg.steps
	if p.Steps > 0 {
		steps = p.Steps
	}
	if req.Steps > 0 {
		steps = req.Steps
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rng := rand.New(rand.NewSource(req.Seed + cfg.seedOffset))
	w, err := p.Scenario.MakeWorld(rng)
	if err != nil {
		return EpisodeResult{}, err
	}
	if len(policies) != len(w.Agents) {
		return EpisodeResult{}, fmt.Errorf("simple-push requires %d policies, got %d", len(w.Agents), len(policies))
	}
	goal, err := p.Scenario.GoalLandmark(w)
	if err != nil {
		return EpisodeResult{}, err
	}

	returns := make([]float64, len(w.Agents))
	rewards := make([]float64, len(w.Agents))
	actions := make([][]float64, len(w.Agents))
	for tick := 0; tick < steps; tick++ {
		if err := ctx.Err(); err != nil {
			return EpisodeResult{}, err
		}
		for i, a := range w.Agents {
			obs, err := p.Scenario.Observation(a, w)
			if err != nil {
				return EpisodeResult{}, err
			}
			action, err := policies[i].Act(ctx, obs)
			if err != nil {
				return EpisodeResult{}, fmt.Errorf("policy %s for %s: %w", policies[i].ID(), a.Name, err)
			}
			actions[i] = action
		}
		if err := p.Engine.Step(w, actions); err != nil {
			return EpisodeResult{}, err
		}
		for i, a := range w.Agents {
			r, err := p.Scenario.Reward(a, w)
			if err != nil {
				return EpisodeResult{}, err
			}
			rewards[i] = r
			returns[i] += r
		}
		for _, sink := range p.Sinks {
			if err := sink.WriteFrame(ctx, snapshotFrame(req.Episode, tick, goal.Index, w, rewards)); err != nil {
				logger.Warn("frame sink failed", "episode", req.Episode, "tick", tick, "error", err)
			}
		}
	}

	bench, err := p.Scenario.BenchmarkData(nil, w)
	if err != nil {
		return EpisodeResult{}, err
	}
	finalReward, err := p.Scenario.AdversaryReward(nil, w)
	if err != nil {
		return EpisodeResult{}, err
	}

	roles := make([]world.Role, len(w.Agents))
	for i, a := range w.Agents {
		roles[i] = a.Role
	}
	result := EpisodeResult{
		Episode:       req.Episode,
		Seed:          req.Seed,
		Mode:          cfg.mode,
		Steps:         steps,
		GoalIndex:     goal.Index,
		Roles:         roles,
		Returns:       returns,
		FinalDistance: finalReward,
		Occupied:      bench[0],
	}
	if steps > 0 {
		result.Fitness = Fitness(result.CooperatorReturn() / float64(steps))
	}
	logger.Debug("episode finished",
		"mode", cfg.mode,
		"episode", req.Episode,
		"goal", goal.Name,
		"final_distance", finalReward,
		"occupied", bench[0],
	)
	return result, nil
}
