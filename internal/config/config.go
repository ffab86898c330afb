// Package config reads and writes the yaml system description and
// materializes the computation graph it declares.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/r-dsouza/molgrad/internal/engine"
	"github.com/r-dsouza/molgrad/internal/vecmath"
)

const (
	DefaultDt       = 0.001
	DefaultSteps    = 1000
	DefaultMaxForce = 1e6
	DefaultTemp     = 0.3
)

// NodeGroup is one declared node: its name selects the factory by
// longest matching prefix, args name previously declared nodes, and
// attrs carry the factory's free-form parameters.
type NodeGroup struct {
	Name  string         `yaml:"name"`
	Args  []string       `yaml:"args"`
	Attrs map[string]any `yaml:"attrs"`
}

// Config is the full system description.
type Config struct {
	NAtom          int          `yaml:"n_atom"`
	Dt             float64      `yaml:"dt"`
	Steps          int          `yaml:"steps"`
	MaxForce       float64      `yaml:"max_force"`
	Integrator     string       `yaml:"integrator"`
	Temperature    float64      `yaml:"temperature"`
	Seed           int64        `yaml:"seed"`
	RecenterEvery  int          `yaml:"recenter_every"`
	XYRecenterOnly bool         `yaml:"xy_recenter_only"`
	Positions      [][]float64 `yaml:"positions"`
	Nodes          []NodeGroup `yaml:"nodes"`
}

// DefaultConfig returns the default run parameters for a system with no
// atoms and no nodes; Validate rejects it until NAtom is set.
func DefaultConfig() *Config {
	return &Config{
		Dt:          DefaultDt,
		Steps:       DefaultSteps,
		MaxForce:    DefaultMaxForce,
		Integrator:  "verlet",
		Temperature: DefaultTemp,
		Seed:        1,
	}
}

// Load reads a system file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a system file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the parts the builder relies on.
func (c *Config) Validate() error {
	if c.NAtom <= 0 {
		return fmt.Errorf("%w: n_atom must be positive, got %d", engine.ErrConfiguration, c.NAtom)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", engine.ErrConfiguration, c.Dt)
	}
	if len(c.Positions) != 0 && len(c.Positions) != c.NAtom {
		return fmt.Errorf("%w: %d positions declared for %d atoms",
			engine.ErrConfiguration, len(c.Positions), c.NAtom)
	}
	for i, p := range c.Positions {
		if len(p) != 3 {
			return fmt.Errorf("%w: position %d has %d components", engine.ErrConfiguration, i, len(p))
		}
	}
	return nil
}

// Build instantiates the engine: the position node seeded from the
// declared coordinates, then every node group in declaration order so
// each argument precedes its consumer.
func (c *Config) Build() (*engine.DerivEngine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	e := engine.New(c.NAtom)
	for a, p := range c.Positions {
		vecmath.StoreVec3(e.Pos.Output, a, vecmath.Vec3{float32(p[0]), float32(p[1]), float32(p[2])})
	}

	for _, g := range c.Nodes {
		create, err := engine.LookupCreation(g.Name)
		if err != nil {
			return nil, err
		}

		args := make(engine.ArgList, 0, len(g.Args))
		for _, argName := range g.Args {
			gn, err := e.Get(argName)
			if err != nil {
				return nil, fmt.Errorf("%w: node %q references unknown argument %q",
					engine.ErrConfiguration, g.Name, argName)
			}
			cp, ok := gn.Computation.(engine.CoordProvider)
			if !ok {
				return nil, fmt.Errorf("%w: node %q argument %q does not produce coordinates",
					engine.ErrConfiguration, g.Name, argName)
			}
			args = append(args, cp.Coord())
		}

		node, err := create(engine.Group{Name: g.Name, Attrs: g.Attrs}, args)
		if err != nil {
			return nil, err
		}
		if err := e.AddNode(g.Name, node, g.Args); err != nil {
			return nil, err
		}
	}

	return e, nil
}
