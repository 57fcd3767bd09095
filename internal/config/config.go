package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultParticles    = 10000
	DefaultPartitions   = 4
	DefaultSteps        = 10
	DefaultGroupSize    = 64
	DefaultHaloWidth    = 0.1
	DefaultTheta        = 0.5
	DefaultEps          = 0.005
	DefaultG            = 1.0
	DefaultKrho         = 0.06
	DefaultEtaAcc       = 0.2
	DefaultMaxDt        = 0.01
	DefaultFastFraction = 0.4
)

type Config struct {
	Particles  int     `yaml:"particles"`
	Partitions int     `yaml:"partitions"`
	Steps      int     `yaml:"steps"`
	GroupSize  int     `yaml:"group_size"`
	HaloWidth  float64 `yaml:"halo_width"`
	Theta      float64 `yaml:"theta"`
	Eps        float64 `yaml:"softening"`
	G          float64 `yaml:"gravitational_constant"`
	Krho       float64 `yaml:"krho"`
	EtaAcc     float64 `yaml:"eta_acc"`
	MaxDt      float64 `yaml:"max_dt"`
	Backend    string  `yaml:"backend"`
	Seed       int64   `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Particles:  DefaultParticles,
		Partitions: DefaultPartitions,
		Steps:      DefaultSteps,
		GroupSize:  DefaultGroupSize,
		HaloWidth:  DefaultHaloWidth,
		Theta:      DefaultTheta,
		Eps:        DefaultEps,
		G:          DefaultG,
		Krho:       DefaultKrho,
		EtaAcc:     DefaultEtaAcc,
		MaxDt:      DefaultMaxDt,
		Backend:    "auto",
		Seed:       1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Particles < 1 {
		return fmt.Errorf("particles must be positive, got %d", c.Particles)
	}
	if c.Partitions < 1 {
		return fmt.Errorf("partitions must be positive, got %d", c.Partitions)
	}
	if c.GroupSize < 1 {
		return fmt.Errorf("group_size must be positive, got %d", c.GroupSize)
	}
	if c.Theta < 0 {
		return fmt.Errorf("theta must be non-negative, got %f", c.Theta)
	}
	if c.Eps <= 0 {
		return fmt.Errorf("softening must be positive, got %f", c.Eps)
	}
	if c.MaxDt <= 0 {
		return fmt.Errorf("max_dt must be positive, got %f", c.MaxDt)
	}
	switch c.Backend {
	case "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
