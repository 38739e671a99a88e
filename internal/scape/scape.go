package scape

import (
	"context"

	"pursuit/internal/world"
)

type Fitness float64

type Trace map[string]any

// Policy chooses one action per tick from an agent's observation.
type Policy interface {
	ID() string
	Act(ctx context.Context, obs []float64) ([]float64, error)
}

// Scape evaluates one policy per agent over an episode.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, policies []Policy) (Fitness, Trace, error)
}

// ModeAwareScape optionally exposes evaluation mode routing for gt/validation/test flows.
type ModeAwareScape interface {
	Scape
	EvaluateMode(ctx context.Context, policies []Policy, mode string) (Fitness, Trace, error)
}

type EntityFrame struct {
	Name  string      `json:"name"`
	Role  string      `json:"role,omitempty"`
	Pos   []float64   `json:"pos"`
	Vel   []float64   `json:"vel"`
	Color world.Color `json:"color"`
}

// Frame is a post-tick snapshot of one episode.
type Frame struct {
	Episode   int           `json:"episode"`
	Tick      int           `json:"tick"`
	GoalIndex int           `json:"goal_index"`
	Agents    []EntityFrame `json:"agents"`
	Landmarks []EntityFrame `json:"landmarks"`
	Rewards   []float64     `json:"rewards"`
}

type FrameSink interface {
	WriteFrame(ctx context.Context, frame Frame) error
}

func snapshotFrame(episode, tick, goalIndex int, w *world.World, rewards []float64) Frame {
	frame := Frame{
		Episode:   episode,
		Tick:      tick,
		GoalIndex: goalIndex,
		Agents:    make([]EntityFrame, len(w.Agents)),
		Landmarks: make([]EntityFrame, len(w.Landmarks)),
		Rewards:   append([]float64(nil), rewards...),
	}
	for i, a := range w.Agents {
		frame.Agents[i] = EntityFrame{
			Name:  a.Name,
			Role:  a.Role.String(),
			Pos:   append([]float64(nil), a.State.Pos...),
			Vel:   append([]float64(nil), a.State.Vel...),
			Color: a.Color,
		}
	}
	for i, l := range w.Landmarks {
		frame.Landmarks[i] = EntityFrame{
			Name:  l.Name,
			Pos:   append([]float64(nil), l.State.Pos...),
			Vel:   append([]float64(nil), l.State.Vel...),
			Color: l.Color,
		}
	}
	return frame
}
