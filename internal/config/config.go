package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"pursuit/internal/scenario"
)

const (
	EnvStore        = "PURSUIT_STORE"
	EnvDBPath       = "PURSUIT_DB_PATH"
	EnvObserverAddr = "PURSUIT_OBSERVER_ADDR"

	schemaURL = "https://pursuit.local/schemas/run_config.schema.json"
)

var ErrInvalid = errors.New("invalid run config")

//go:embed run_config.schema.json
var schemaDocument []byte

var compiledSchema = struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}{}

// RunConfig is the on-disk description of a batch of rollouts.
type RunConfig struct {
	Scenario scenario.Config `yaml:"scenario"`
	Rollout  RolloutConfig   `yaml:"rollout"`
	Policies PolicyConfig    `yaml:"policies"`
	Store    StoreConfig     `yaml:"store"`
	Observer ObserverConfig  `yaml:"observer"`
}

type RolloutConfig struct {
	Mode     string `yaml:"mode"`
	Episodes int    `yaml:"episodes"`
	Workers  int    `yaml:"workers"`
	Seed     int64  `yaml:"seed"`
	// Steps overrides the mode's episode length when > 0.
	Steps    int    `yaml:"steps"`
	TraceOut string `yaml:"trace_out"`
}

type PolicyConfig struct {
	Cooperator string `yaml:"cooperator"`
	Adversary  string `yaml:"adversary"`
}

type StoreConfig struct {
	Kind   string `yaml:"kind"`
	DBPath string `yaml:"db_path"`
}

type ObserverConfig struct {
	Addr string `yaml:"addr"`
}

func Default() RunConfig {
	return RunConfig{
		Scenario: scenario.DefaultConfig(),
		Rollout: RolloutConfig{
			Mode:     "gt",
			Episodes: 16,
			Workers:  4,
			Seed:     1,
		},
		Policies: PolicyConfig{
			Cooperator: "seek",
			Adversary:  "shadow",
		},
		Store: StoreConfig{
			Kind:   "memory",
			DBPath: "pursuit.db",
		},
		Observer: ObserverConfig{
			Addr: "127.0.0.1:8765",
		},
	}
}

// Load reads a YAML run config on top of Default. An empty path returns
// the defaults. The document is checked against the embedded schema before
// it is decoded, so unknown keys are rejected.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (RunConfig, error) {
	cfg := Default()
	if err := validateDocument(raw); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("run config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c RunConfig) Validate() error {
	if err := c.Scenario.Validate(); err != nil {
		return fmt.Errorf("run config scenario: %w", err)
	}
	switch {
	case c.Rollout.Episodes <= 0:
		return fmt.Errorf("%w: rollout.episodes must be > 0, got %d", ErrInvalid, c.Rollout.Episodes)
	case c.Rollout.Workers <= 0:
		return fmt.Errorf("%w: rollout.workers must be > 0, got %d", ErrInvalid, c.Rollout.Workers)
	case c.Rollout.Steps < 0:
		return fmt.Errorf("%w: rollout.steps must be >= 0, got %d", ErrInvalid, c.Rollout.Steps)
	case strings.TrimSpace(c.Policies.Cooperator) == "":
		return fmt.Errorf("%w: policies.cooperator is required", ErrInvalid)
	case c.Scenario.NumAdversaries > 0 && strings.TrimSpace(c.Policies.Adversary) == "":
		return fmt.Errorf("%w: policies.adversary is required", ErrInvalid)
	}
	switch c.Store.Kind {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(c.Store.DBPath) == "" {
			return fmt.Errorf("%w: store.db_path is required for sqlite", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported store.kind %q", ErrInvalid, c.Store.Kind)
	}
	return nil
}

// ApplyEnv overrides store and observer settings from the process
// environment. Unset or blank variables leave the config untouched.
func (c *RunConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvStore); ok && strings.TrimSpace(v) != "" {
		c.Store.Kind = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDBPath); ok && strings.TrimSpace(v) != "" {
		c.Store.DBPath = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvObserverAddr); ok && strings.TrimSpace(v) != "" {
		c.Observer.Addr = strings.TrimSpace(v)
	}
}

func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so numbers and maps have the shapes the
	// validator expects.
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return fmt.Errorf("run config: %w", err)
	}
	schema, err := runConfigSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func runConfigSchema() (*jsonschema.Schema, error) {
	compiledSchema.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
			compiledSchema.err = fmt.Errorf("load run config schema: %w", err)
			return
		}
		compiledSchema.schema, compiledSchema.err = compiler.Compile(schemaURL)
	})
	return compiledSchema.schema, compiledSchema.err
}
