package policy

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"pursuit/internal/scape"
	"pursuit/internal/scenario"
	"pursuit/internal/world"
)

var (
	ErrPolicyExists   = errors.New("policy already registered")
	ErrPolicyNotFound = errors.New("policy not found")
	ErrIncompatible   = errors.New("policy incompatible with agent role")
)

// Params describes the agent a policy will drive.
type Params struct {
	Layout     scenario.Layout
	AgentIndex int
	Roles      []world.Role
	Rng        *rand.Rand
}

func (p Params) Role() world.Role {
	return p.Roles[p.AgentIndex]
}

type Factory func(Params) (scape.Policy, error)

type CompatibilityFn func(role world.Role) error

type Spec struct {
	Name       string
	Factory    Factory
	Compatible CompatibilityFn
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]Spec
}{
	m: make(map[string]Spec),
}

func Register(spec Spec) error {
	name := strings.TrimSpace(strings.ToLower(spec.Name))
	if name == "" {
		return errors.New("policy name is required")
	}
	if spec.Factory == nil {
		return errors.New("policy factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrPolicyExists, name)
	}
	spec.Name = name
	registry.m[name] = spec
	return nil
}

func New(name string, params Params) (scape.Policy, error) {
	key := strings.TrimSpace(strings.ToLower(name))
	registry.mu.RLock()
	spec, ok := registry.m[key]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPolicyNotFound, name)
	}
	if params.AgentIndex < 0 || params.AgentIndex >= len(params.Roles) {
		return nil, fmt.Errorf("policy %s: agent index %d out of range", key, params.AgentIndex)
	}
	if spec.Compatible != nil {
		if err := spec.Compatible(params.Role()); err != nil {
			return nil, fmt.Errorf("policy %s for agent %d: %w", key, params.AgentIndex, err)
		}
	}
	return spec.Factory(params)
}

func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Team builds one policy per agent: adversaries get adversaryPolicy and
// cooperators get cooperatorPolicy. Each policy receives its own rng
// derived from seed.
func Team(layout scenario.Layout, roles []world.Role, cooperatorPolicy, adversaryPolicy string, seed int64) ([]scape.Policy, error) {
	policies := make([]scape.Policy, len(roles))
	for i, role := range roles {
		name := cooperatorPolicy
		if role == world.RoleAdversary {
			name = adversaryPolicy
		}
		p, err := New(name, Params{
			Layout:     layout,
			AgentIndex: i,
			Roles:      roles,
			Rng:        rand.New(rand.NewSource(seed*int64(len(roles)+1) + int64(i))),
		})
		if err != nil {
			return nil, err
		}
		policies[i] = p
	}
	return policies, nil
}

func requireRole(want world.Role) CompatibilityFn {
	return func(role world.Role) error {
		if role != want {
			return fmt.Errorf("%w: requires %s, got %s", ErrIncompatible, want, role)
		}
		return nil
	}
}
