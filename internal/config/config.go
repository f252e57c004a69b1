package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/integrators"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

const (
	DefaultMethod         = "rk45"
	DefaultRTol           = 1e-8
	DefaultATol           = 1e-10
	DefaultMaxSteps       = 1_000_000
	DefaultMinStep        = 1e-12
	DefaultAddr           = ":8080"
	DefaultRequestTimeout = 10 * time.Second
)

type Config struct {
	Solver SolverConfig `yaml:"solver"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

type SolverConfig struct {
	Method      string  `yaml:"method"`
	RTol        float64 `yaml:"rtol"`
	ATol        float64 `yaml:"atol"`
	MaxSteps    int     `yaml:"max_steps"`
	MinStep     float64 `yaml:"min_step"`
	InitialStep float64 `yaml:"initial_step"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Trace          bool          `yaml:"trace"`
}

func DefaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			Method:   DefaultMethod,
			RTol:     DefaultRTol,
			ATol:     DefaultATol,
			MaxSteps: DefaultMaxSteps,
			MinStep:  DefaultMinStep,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:           DefaultAddr,
			RequestTimeout: DefaultRequestTimeout,
		},
	}
}

// Load overlays the YAML file at path on top of DefaultConfig and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := integrators.New(c.Solver.Method); err != nil {
		return err
	}
	checks := []struct {
		name string
		v    float64
		fn   func(string, float64) error
	}{
		{"solver.rtol", c.Solver.RTol, dynamo.CheckPositive},
		{"solver.atol", c.Solver.ATol, dynamo.CheckPositive},
		{"solver.min_step", c.Solver.MinStep, dynamo.CheckNonNegative},
		{"solver.initial_step", c.Solver.InitialStep, dynamo.CheckNonNegative},
	}
	for _, ch := range checks {
		if err := ch.fn(ch.name, ch.v); err != nil {
			return err
		}
	}
	if c.Solver.MaxSteps <= 0 {
		return &dynamo.InputError{Param: "solver.max_steps", Value: float64(c.Solver.MaxSteps), Reason: "must be positive"}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q is not one of debug, info, warn, error", dynamo.ErrInvalidInput, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q is not one of text, json", dynamo.ErrInvalidInput, c.Log.Format)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("%w: server.request_timeout must be positive", dynamo.ErrInvalidInput)
	}
	return nil
}

// SimConfig converts the solver section into the engine's solver settings.
func (c *Config) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Method = c.Solver.Method
	cfg.Tolerance = dynamo.Tolerance{Rel: c.Solver.RTol, Abs: c.Solver.ATol}
	cfg.MaxSteps = c.Solver.MaxSteps
	cfg.MinStep = c.Solver.MinStep
	cfg.InitialStep = c.Solver.InitialStep
	return cfg
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}
