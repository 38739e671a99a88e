package policy

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"pursuit/internal/scenario"
	"pursuit/internal/world"
)

var defaultRoles = []world.Role{world.RoleAdversary, world.RoleCooperator}

func defaultLayout() scenario.Layout {
	return scenario.MustNew(scenario.DefaultConfig()).Layout()
}

func TestBuiltinPoliciesRegistered(t *testing.T) {
	names := Names()
	want := map[string]bool{RandomName: false, StillName: false, SeekName: false, ShadowName: false}
	for _, name := range names {
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("expected builtin policy %s in %v", name, names)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	err := Register(Spec{Name: "Still", Factory: newStill})
	if !errors.Is(err, ErrPolicyExists) {
		t.Fatalf("expected ErrPolicyExists, got %v", err)
	}
	if err := Register(Spec{Name: "", Factory: newStill}); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestNewEnforcesRoleCompatibility(t *testing.T) {
	params := Params{Layout: defaultLayout(), AgentIndex: 0, Roles: defaultRoles}
	if _, err := New(SeekName, params); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected seek to reject adversary, got %v", err)
	}
	params.AgentIndex = 1
	if _, err := New(ShadowName, params); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected shadow to reject cooperator, got %v", err)
	}
	if _, err := New("missing", params); !errors.Is(err, ErrPolicyNotFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
	params.AgentIndex = 5
	if _, err := New(StillName, params); err == nil {
		t.Fatal("expected out of range agent index error")
	}
}

func TestSeekHeadsForGoal(t *testing.T) {
	s := scenario.MustNew(scenario.DefaultConfig())
	w, err := s.MakeWorld(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	cooperator := w.Agents[1]
	cooperator.State.Pos = []float64{0, 0}
	cooperator.Goal.State.Pos = []float64{0, -0.5}
	obs, err := s.Observation(cooperator, w)
	if err != nil {
		t.Fatalf("observation: %v", err)
	}
	p, err := New(SeekName, Params{Layout: s.Layout(), AgentIndex: 1, Roles: defaultRoles})
	if err != nil {
		t.Fatalf("new seek: %v", err)
	}
	action, err := p.Act(context.Background(), obs)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if math.Abs(action[0]) > 1e-12 || math.Abs(action[1]+1) > 1e-12 {
		t.Fatalf("expected action (0, -1), got %v", action)
	}
	if _, err := p.Act(context.Background(), obs[:len(obs)-2]); err == nil {
		t.Fatal("expected error for observation without goal")
	}
}

func TestShadowGuardsThreatenedLandmark(t *testing.T) {
	s := scenario.MustNew(scenario.DefaultConfig())
	w, err := s.MakeWorld(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("make world: %v", err)
	}
	w.Landmarks[0].State.Pos = []float64{-0.8, 0}
	w.Landmarks[1].State.Pos = []float64{0.8, 0}
	w.Agents[1].State.Pos = []float64{0.7, 0}
	w.Agents[0].State.Pos = []float64{0, 0}
	obs, err := s.Observation(w.Agents[0], w)
	if err != nil {
		t.Fatalf("observation: %v", err)
	}
	p, err := New(ShadowName, Params{Layout: s.Layout(), AgentIndex: 0, Roles: defaultRoles})
	if err != nil {
		t.Fatalf("new shadow: %v", err)
	}
	action, err := p.Act(context.Background(), obs)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if action[0] != 1 || action[1] != 0 {
		t.Fatalf("expected heading toward landmark 1, got %v", action)
	}
}

func TestRandomPolicyStaysInActionRange(t *testing.T) {
	p, err := New(RandomName, Params{Layout: defaultLayout(), AgentIndex: 0, Roles: defaultRoles, Rng: rand.New(rand.NewSource(3))})
	if err != nil {
		t.Fatalf("new random: %v", err)
	}
	for i := 0; i < 1000; i++ {
		action, err := p.Act(context.Background(), nil)
		if err != nil {
			t.Fatalf("act: %v", err)
		}
		for _, v := range action {
			if v < -1 || v > 1 {
				t.Fatalf("action %v outside [-1, 1]", action)
			}
		}
	}
	if _, err := New(RandomName, Params{Layout: defaultLayout(), AgentIndex: 0, Roles: defaultRoles}); err == nil {
		t.Fatal("expected random policy to require rng")
	}
}

func TestTeamAssignsPoliciesByRole(t *testing.T) {
	policies, err := Team(defaultLayout(), defaultRoles, SeekName, ShadowName, 9)
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("expected 2 policies, got %d", len(policies))
	}
	if policies[0].ID() != "shadow/agent-0" || policies[1].ID() != "seek/agent-1" {
		t.Fatalf("unexpected policy ids: %s %s", policies[0].ID(), policies[1].ID())
	}
	if _, err := Team(defaultLayout(), defaultRoles, ShadowName, ShadowName, 9); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("expected incompatible cooperator policy, got %v", err)
	}
}
