package sim

import (
	"fmt"
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/integrators"
)

// Metric accumulates a scalar over the output samples of one run.
type Metric interface {
	Name() string
	Observe(x dynamo.State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(x dynamo.State, t float64)
}

type Config struct {
	Method      string
	Tolerance   dynamo.Tolerance
	InitialStep float64
	MinStep     float64
	MaxSteps    int
	// FixedStep bounds the substep of non-adaptive integrators. Zero means
	// ten substeps per output interval.
	FixedStep float64
}

func DefaultConfig() Config {
	return Config{
		Method:    "rk45",
		Tolerance: dynamo.Tolerance{Rel: 1e-8, Abs: 1e-10},
		MinStep:   1e-12,
		MaxSteps:  1_000_000,
	}
}

type Stats struct {
	Steps    int
	Rejected int
}

type Result struct {
	Trajectory *dynamo.Trajectory
	Metrics    map[string]float64
	Stats      Stats
}

type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	metrics    []Metric
	observers  []Observer
}

func New(sys dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Solve builds a fresh integrator from cfg.Method and runs sys over grid.
func Solve(sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, cfg Config, metrics ...Metric) (*Result, error) {
	integ, err := integrators.New(cfg.Method)
	if err != nil {
		return nil, err
	}
	s := New(sys, integ)
	for _, m := range metrics {
		s.AddMetric(m)
	}
	return s.Run(x0, grid, cfg)
}

// Run integrates from grid[0] and records one state per grid point. The grid
// only selects output times; adaptive integrators choose their own internal
// steps between them.
func (s *Simulator) Run(x0 dynamo.State, grid dynamo.Grid, cfg Config) (*Result, error) {
	if err := s.validate(x0, grid, cfg); err != nil {
		return nil, err
	}

	result := &Result{
		Trajectory: &dynamo.Trajectory{
			Times:  make([]float64, 0, len(grid)),
			States: make([]dynamo.State, 0, len(grid)),
			Labels: append([]string(nil), s.sys.Labels()...),
		},
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	s.record(result, x, grid[0])

	var err error
	if adaptive, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		err = s.runAdaptive(adaptive, x, grid, cfg, result)
	} else {
		err = s.runFixed(x, grid, cfg, result)
	}
	if err != nil {
		return nil, err
	}

	result.Trajectory.Steps = result.Stats.Steps
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) runAdaptive(integ dynamo.AdaptiveIntegrator, x dynamo.State, grid dynamo.Grid, cfg Config, result *Result) error {
	t := grid[0]
	h := cfg.InitialStep
	if h <= 0 {
		var ok bool
		h, ok = initialStep(s.sys, x, t, cfg.Tolerance, integ.Order(), grid.Horizon()-grid[0])
		if !ok {
			return &dynamo.IntegrationError{Step: 0, Time: t, State: x.Clone(), Cause: "non-finite derivative at initial state"}
		}
	}

	for k := 1; k < len(grid); k++ {
		tEnd := grid[k]
		for t < tEnd {
			if result.Stats.Steps >= cfg.MaxSteps {
				return &dynamo.IntegrationError{Step: result.Stats.Steps, Time: t, State: x.Clone(), Cause: "maximum step count exceeded"}
			}

			last := t+h >= tEnd
			hTry := h
			if last {
				hTry = tEnd - t
			}

			xNew, ratio, hNext := integ.StepAdaptive(s.sys, x, t, hTry, cfg.Tolerance)
			result.Stats.Steps++

			if ratio <= 1 && xNew.IsValid() {
				x = xNew
				if last {
					t = tEnd
					h = math.Max(h, hNext)
				} else {
					t += hTry
					h = hNext
				}
				continue
			}

			result.Stats.Rejected++
			h = hNext
			if minStep := math.Max(cfg.MinStep, 16*epsilon*math.Abs(t)); h < minStep {
				cause := "step size underflow"
				if !xNew.IsValid() {
					cause = "step size underflow (state became non-finite)"
				}
				return &dynamo.IntegrationError{Step: result.Stats.Steps, Time: t, State: x.Clone(), Cause: cause}
			}
		}
		s.record(result, x, tEnd)
	}
	return nil
}

func (s *Simulator) runFixed(x dynamo.State, grid dynamo.Grid, cfg Config, result *Result) error {
	for k := 1; k < len(grid); k++ {
		t, tEnd := grid[k-1], grid[k]
		n := 10
		if cfg.FixedStep > 0 {
			n = int(math.Ceil((tEnd - t) / cfg.FixedStep))
		}
		dt := (tEnd - t) / float64(n)

		for i := 0; i < n; i++ {
			if result.Stats.Steps >= cfg.MaxSteps {
				return &dynamo.IntegrationError{Step: result.Stats.Steps, Time: t, State: x.Clone(), Cause: "maximum step count exceeded"}
			}
			next := s.integrator.Step(s.sys, x, t, dt)
			result.Stats.Steps++
			if !next.IsValid() {
				return &dynamo.IntegrationError{Step: result.Stats.Steps, Time: t, State: x.Clone(), Cause: "non-finite state"}
			}
			x = next
			t += dt
		}
		s.record(result, x, tEnd)
	}
	return nil
}

func (s *Simulator) record(result *Result, x dynamo.State, t float64) {
	for _, m := range s.metrics {
		m.Observe(x, t)
	}
	for _, obs := range s.observers {
		obs.OnSample(x, t)
	}
	result.Trajectory.Times = append(result.Trajectory.Times, t)
	result.Trajectory.States = append(result.Trajectory.States, x.Clone())
}

func (s *Simulator) validate(x0 dynamo.State, grid dynamo.Grid, cfg Config) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if len(x0) != s.sys.StateDim() {
		return &dynamo.InputError{Param: "initial_state", Value: float64(len(x0)), Reason: fmt.Sprintf("dimension must be %d", s.sys.StateDim())}
	}
	if !x0.IsValid() {
		return &dynamo.InputError{Param: "initial_state", Value: math.NaN(), Reason: "contains NaN or Inf"}
	}
	if cfg.MaxSteps <= 0 {
		return fmt.Errorf("max steps must be positive, got %d", cfg.MaxSteps)
	}
	if _, ok := s.integrator.(dynamo.AdaptiveIntegrator); ok {
		if cfg.Tolerance.Rel <= 0 || cfg.Tolerance.Abs <= 0 {
			return fmt.Errorf("tolerances must be positive for adaptive stepping")
		}
	}
	if cfg.FixedStep < 0 {
		return fmt.Errorf("fixed step must not be negative, got %g", cfg.FixedStep)
	}
	return nil
}
