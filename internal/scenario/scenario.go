package scenario

import (
	"fmt"
	"math/rand"

	"pursuit/internal/world"
)

const (
	DefaultEntitySize = 0.05
	// OccupancyThreshold is the goal distance under which a cooperator counts as occupying it.
	OccupancyThreshold = 0.1
)

var (
	LandmarkColor   = world.Color{0.1, 0.1, 0.1}
	GoalColor       = world.Color{1, 0.5, 0.25}
	AdversaryColor  = world.Color{0.75, 0.25, 0.25}
	CooperatorColor = world.Color{0.25, 0.75, 0.25}
)

type Config struct {
	NumAgents      int `yaml:"num_agents" json:"num_agents"`
	NumAdversaries int `yaml:"num_adversaries" json:"num_adversaries"`
	NumLandmarks   int `yaml:"num_landmarks" json:"num_landmarks"`
	DimC           int `yaml:"dim_c" json:"dim_c"`
	DimP           int `yaml:"dim_p" json:"dim_p"`
}

func DefaultConfig() Config {
	return Config{
		NumAgents:      2,
		NumAdversaries: 1,
		NumLandmarks:   2,
		DimC:           2,
		DimP:           2,
	}
}

func (c Config) Validate() error {
	switch {
	case c.NumAdversaries < 0:
		return fmt.Errorf("%w: num_adversaries must be >= 0, got %d", ErrInvalidConfig, c.NumAdversaries)
	case c.NumAdversaries >= c.NumAgents:
		return fmt.Errorf("%w: num_adversaries (%d) must be < num_agents (%d)", ErrInvalidConfig, c.NumAdversaries, c.NumAgents)
	case c.NumLandmarks < 1:
		return fmt.Errorf("%w: num_landmarks must be >= 1, got %d", ErrInvalidConfig, c.NumLandmarks)
	case c.DimP < 1:
		return fmt.Errorf("%w: dim_p must be >= 1, got %d", ErrInvalidConfig, c.DimP)
	case c.DimC < 0:
		return fmt.Errorf("%w: dim_c must be >= 0, got %d", ErrInvalidConfig, c.DimC)
	}
	return nil
}

// Scenario holds only static configuration; every query is a function of
// the world passed in.
type Scenario struct {
	cfg Config
}

func New(cfg Config) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scenario{cfg: cfg}, nil
}

func MustNew(cfg Config) *Scenario {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Scenario) Name() string {
	return "simple-push"
}

func (s *Scenario) Config() Config {
	return s.cfg
}

// Roles lists the role of every agent MakeWorld creates, in agent order.
func (s *Scenario) Roles() []world.Role {
	roles := make([]world.Role, s.cfg.NumAgents)
	for i := range roles {
		roles[i] = world.RoleCooperator
		if i < s.cfg.NumAdversaries {
			roles[i] = world.RoleAdversary
		}
	}
	return roles
}

func (s *Scenario) MakeWorld(rng *rand.Rand) (*world.World, error) {
	w := &world.World{
		Agents:    make([]*world.Agent, s.cfg.NumAgents),
		Landmarks: make([]*world.Landmark, s.cfg.NumLandmarks),
		DimC:      s.cfg.DimC,
		DimP:      s.cfg.DimP,
	}
	for i := range w.Agents {
		role := world.RoleCooperator
		if i < s.cfg.NumAdversaries {
			role = world.RoleAdversary
		}
		w.Agents[i] = &world.Agent{
			Name:    fmt.Sprintf("agent %d", i),
			Role:    role,
			Collide: true,
			Silent:  true,
			Movable: true,
			Size:    DefaultEntitySize,
		}
	}
	for i := range w.Landmarks {
		w.Landmarks[i] = &world.Landmark{
			Name:    fmt.Sprintf("landmark %d", i),
			Index:   i,
			Collide: false,
			Movable: false,
			Size:    DefaultEntitySize,
		}
	}
	if err := s.ResetWorld(w, rng); err != nil {
		return nil, err
	}
	return w, nil
}

// ResetWorld starts a new episode: it picks the goal, recolors entities and
// redraws every position from [-1, 1]^dim_p. The world is validated before
// the first draw, so a rejected reset leaves it untouched.
func (s *Scenario) ResetWorld(w *world.World, rng *rand.Rand) error {
	if rng == nil {
		return fmt.Errorf("%w: reset requires a random source", ErrInvalidConfig)
	}
	if err := s.checkShape(w); err != nil {
		return err
	}

	for i, l := range w.Landmarks {
		l.Color = LandmarkColor
		l.Index = i
	}
	goal := w.Landmarks[rng.Intn(len(w.Landmarks))]
	goal.Color = GoalColor

	for _, a := range w.Agents {
		switch a.Role {
		case world.RoleAdversary:
			a.Color = AdversaryColor
			a.Goal = nil
		case world.RoleCooperator:
			a.Color = CooperatorColor
			a.Goal = goal
		}
	}

	for _, a := range w.Agents {
		a.State.Pos = uniform(rng, w.DimP)
		a.State.Vel = world.Zeros(w.DimP)
		a.State.Comm = world.Zeros(w.DimC)
	}
	for _, l := range w.Landmarks {
		l.State.Pos = uniform(rng, w.DimP)
		l.State.Vel = world.Zeros(w.DimP)
	}
	return nil
}

// GoalLandmark returns the landmark the cooperators are currently targeting.
func (s *Scenario) GoalLandmark(w *world.World) (*world.Landmark, error) {
	cooperators := w.Cooperators()
	if len(cooperators) == 0 {
		return nil, ErrNoCooperators
	}
	if cooperators[0].Goal == nil {
		return nil, fmt.Errorf("%w: %s", ErrGoalUnset, cooperators[0].Name)
	}
	return cooperators[0].Goal, nil
}

func (s *Scenario) checkShape(w *world.World) error {
	if w == nil {
		return fmt.Errorf("%w: nil world", ErrInvalidConfig)
	}
	if len(w.Landmarks) == 0 {
		return fmt.Errorf("%w: world has no landmarks", ErrInvalidConfig)
	}
	if w.DimP != s.cfg.DimP || w.DimC != s.cfg.DimC {
		return fmt.Errorf("%w: world dims (p=%d c=%d) do not match scenario (p=%d c=%d)", ErrInvalidConfig, w.DimP, w.DimC, s.cfg.DimP, s.cfg.DimC)
	}
	for i, a := range w.Agents {
		if a == nil {
			return fmt.Errorf("%w: agent %d is nil", ErrInvalidConfig, i)
		}
		if a.Role != world.RoleCooperator && a.Role != world.RoleAdversary {
			return fmt.Errorf("%w: %s has role %d", ErrUnknownRole, a.Name, a.Role)
		}
	}
	for i, l := range w.Landmarks {
		if l == nil {
			return fmt.Errorf("%w: landmark %d is nil", ErrInvalidConfig, i)
		}
	}
	if len(w.Cooperators()) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoCooperators)
	}
	return nil
}

func uniform(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}
