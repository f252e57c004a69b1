// Package automation runs scripted batches of model runs: YAML scenarios for
// lab sessions and Monte Carlo trials over perturbed parameters.
package automation

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jason9-Alex/Lab-Modelos/internal/config"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/export"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

// Scenario defines a scripted sequence of runs
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Params apply on top of Preset; Method
// overrides the solver for this step only. With Defaults set, parameters
// named by neither come from the model defaults.
type ScenarioStep struct {
	Model    string             `yaml:"model"`
	Preset   string             `yaml:"preset"`
	Method   string             `yaml:"method"`
	Params   map[string]float64 `yaml:"params"`
	Defaults bool               `yaml:"defaults"`
	SaveAs   string             `yaml:"save_as"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: scenario: %v", dynamo.ErrInvalidInput, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", dynamo.ErrInvalidInput, scenario.Name)
	}
	for i, step := range scenario.Steps {
		if step.Model == "" {
			return nil, fmt.Errorf("%w: scenario step %d has no model", dynamo.ErrInvalidInput, i+1)
		}
		if step.SaveAs != "" {
			if _, err := formatFor(step.SaveAs); err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return &scenario, nil
}

// resolve applies the step's params on top of its preset.
func (s ScenarioStep) resolve() (dynamo.Params, error) {
	params := dynamo.Params{}
	if s.Preset != "" {
		if params = config.GetPreset(s.Model, s.Preset); params == nil {
			return nil, fmt.Errorf("%w: unknown preset %q for %s", dynamo.ErrInvalidInput, s.Preset, s.Model)
		}
	}
	for k, v := range s.Params {
		params[k] = v
	}
	return params, nil
}

// StepResult is the outcome of one step. Err is set instead of Result when
// the step failed.
type StepResult struct {
	Step   ScenarioStep
	Result *experiment.Result
	Saved  string
	Err    error
}

// RunScenario executes every step in order. A failing step is recorded and
// the scenario continues. Relative save_as paths resolve against dir.
func RunScenario(ctx context.Context, scenario *Scenario, solver sim.Config, dir string, opts ...experiment.Option) ([]StepResult, error) {
	log := logging.FromContext(ctx).With(logging.String("scenario", scenario.Name))
	registries := make(map[string]*experiment.Registry)
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Info(ctx, "running step",
			logging.Int("step", i+1),
			logging.Int("of", len(scenario.Steps)),
			logging.String("model", step.Model))

		sr := StepResult{Step: step}
		sr.Result, sr.Err = runStep(ctx, step, solver, registries, opts)
		if sr.Err == nil && step.SaveAs != "" {
			sr.Saved, sr.Err = save(dir, step.SaveAs, sr.Result)
		}
		if sr.Err != nil {
			log.Warn(ctx, "step failed", logging.Int("step", i+1), logging.Err(sr.Err))
		}
		results = append(results, sr)
	}

	return results, nil
}

func runStep(ctx context.Context, step ScenarioStep, solver sim.Config, registries map[string]*experiment.Registry, opts []experiment.Option) (*experiment.Result, error) {
	params, err := step.resolve()
	if err != nil {
		return nil, err
	}

	method := step.Method
	if method == "" {
		method = solver.Method
	}
	r, ok := registries[method]
	if !ok {
		cfg := solver
		cfg.Method = method
		r = experiment.NewRegistry(cfg, opts...)
		registries[method] = r
	}
	if step.Defaults {
		return r.RunWithDefaults(ctx, step.Model, params)
	}
	return r.Run(ctx, step.Model, params)
}

func formatFor(path string) (func(io.Writer, *experiment.Result) error, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.WriteResultJSON, nil
	case ".csv":
		return export.WriteResultCSV, nil
	}
	return nil, fmt.Errorf("%w: save_as %q must end in .json or .csv", dynamo.ErrInvalidInput, path)
}

func save(dir, name string, res *experiment.Result) (string, error) {
	write, err := formatFor(name)
	if err != nil {
		return "", err
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	if err := export.ToFile(path, func(w io.Writer) error { return write(w, res) }); err != nil {
		return "", err
	}
	return path, nil
}

// MonteCarloConfig perturbs each parameter in Spread uniformly by up to
// ±Spread[name] around its value in Base. Base must name every parameter
// unless Defaults is set.
type MonteCarloConfig struct {
	Model     string
	Base      dynamo.Params
	Spread    map[string]float64
	NumTrials int
	Seed      int64
	Defaults  bool
}

// MonteCarloResult holds one trial
type MonteCarloResult struct {
	TrialID int           `json:"trial"`
	Params  dynamo.Params `json:"params"`
	Final   float64       `json:"final"`
	Peak    float64       `json:"peak"`
	Extinct bool          `json:"extinct"`
	Err     string        `json:"error,omitempty"`
}

// RunMonteCarlo executes NumTrials runs with random perturbations. Trials
// whose run fails record the error kind. A zero Seed seeds from the clock.
func RunMonteCarlo(ctx context.Context, cfg MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	if cfg.NumTrials < 1 {
		return nil, &dynamo.InputError{Param: "trials", Value: float64(cfg.NumTrials), Reason: "must be at least 1"}
	}
	if cfg.NumTrials > experiment.MaxPoints {
		return nil, &dynamo.InputError{Param: "trials", Value: float64(cfg.NumTrials), Reason: fmt.Sprintf("must be at most %d", experiment.MaxPoints)}
	}
	base, err := registry.Resolve(cfg.Model, cfg.Base, cfg.Defaults)
	if err != nil {
		return nil, err
	}
	for name, spread := range cfg.Spread {
		if _, ok := base[name]; !ok {
			return nil, &dynamo.InputError{Param: name, Value: spread, Reason: fmt.Sprintf("is not a parameter of %s", cfg.Model)}
		}
		if spread < 0 {
			return nil, &dynamo.InputError{Param: name, Value: spread, Reason: "spread must be non-negative"}
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	names := dynamo.Params(cfg.Spread).Names()
	log := logging.FromContext(ctx)

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	for trial := 0; trial < cfg.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		params := base.Merge(nil)
		for _, name := range names {
			params[name] += (rng.Float64() - 0.5) * 2 * cfg.Spread[name]
		}

		mc := MonteCarloResult{TrialID: trial, Params: params}
		res, err := registry.Run(ctx, cfg.Model, params)
		if err != nil {
			mc.Err = dynamo.KindOf(err)
		} else {
			mc.Final = res.Summary.FinalValue
			mc.Peak = res.Summary.PeakValue
			mc.Extinct = res.Summary.Extinct
		}
		results = append(results, mc)

		if (trial+1)%100 == 0 {
			log.Debug(ctx, "monte carlo progress", logging.Int("done", trial+1), logging.Int("of", cfg.NumTrials))
		}
	}

	return results, nil
}

// MonteCarloStats counts trial outcomes
func MonteCarloStats(results []MonteCarloResult) (extinct, survived, failed int) {
	for _, r := range results {
		switch {
		case r.Err != "":
			failed++
		case r.Extinct:
			extinct++
		default:
			survived++
		}
	}
	return
}
