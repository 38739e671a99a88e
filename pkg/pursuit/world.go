package pursuit

import (
	"math/rand"

	"pursuit/internal/scenario"
	"pursuit/internal/world"
)

type (
	Config   = scenario.Config
	Layout   = scenario.Layout
	World    = world.World
	Agent    = world.Agent
	Landmark = world.Landmark
	Role     = world.Role
)

const (
	RoleCooperator = world.RoleCooperator
	RoleAdversary  = world.RoleAdversary
)

var (
	ErrInvalidConfig = scenario.ErrInvalidConfig
	ErrNoCooperators = scenario.ErrNoCooperators
	ErrGoalUnset     = scenario.ErrGoalUnset
	ErrUnknownRole   = scenario.ErrUnknownRole
)

func DefaultConfig() Config {
	return scenario.DefaultConfig()
}

// WorldBuilder owns a scenario and the random stream its resets draw from.
// It is not safe for concurrent use; give each goroutine its own builder.
type WorldBuilder struct {
	scenario *scenario.Scenario
	rng      *rand.Rand
}

func NewWorldBuilder(cfg Config, seed int64) (*WorldBuilder, error) {
	s, err := scenario.New(cfg)
	if err != nil {
		return nil, err
	}
	return &WorldBuilder{scenario: s, rng: rand.New(rand.NewSource(seed))}, nil
}

func (b *WorldBuilder) MakeWorld() (*World, error) {
	return b.scenario.MakeWorld(b.rng)
}

func (b *WorldBuilder) ResetWorld(w *World) error {
	return b.scenario.ResetWorld(w, b.rng)
}

func (b *WorldBuilder) Reward(agent *Agent, w *World) (float64, error) {
	return b.scenario.Reward(agent, w)
}

func (b *WorldBuilder) AgentReward(agent *Agent, w *World) (float64, error) {
	return b.scenario.AgentReward(agent, w)
}

func (b *WorldBuilder) AdversaryReward(agent *Agent, w *World) (float64, error) {
	return b.scenario.AdversaryReward(agent, w)
}

func (b *WorldBuilder) Observation(agent *Agent, w *World) ([]float64, error) {
	return b.scenario.Observation(agent, w)
}

func (b *WorldBuilder) BenchmarkData(agent *Agent, w *World) ([]int, error) {
	return b.scenario.BenchmarkData(agent, w)
}

func (b *WorldBuilder) Layout() Layout {
	return b.scenario.Layout()
}

func (b *WorldBuilder) GoalLandmark(w *World) (*Landmark, error) {
	return b.scenario.GoalLandmark(w)
}
