package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/integrators"
)

type decay struct{ rate float64 }

func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.rate * x[0]}
}
func (d *decay) StateDim() int    { return 1 }
func (d *decay) Labels() []string { return []string{"x"} }

// blowUp has the finite-time singularity x(t) = 1/(1-t) for x(0) = 1.
type blowUp struct{}

func (b *blowUp) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{x[0] * x[0]} }
func (b *blowUp) StateDim() int                                 { return 1 }
func (b *blowUp) Labels() []string                              { return []string{"x"} }

type poisoned struct{}

func (p *poisoned) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{math.NaN()} }
func (p *poisoned) StateDim() int                                 { return 1 }
func (p *poisoned) Labels() []string                              { return []string{"x"} }

func mustGrid(t *testing.T, horizon float64, points int) dynamo.Grid {
	t.Helper()
	g, err := dynamo.Linspace(horizon, points)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func TestSimulatorRun(t *testing.T) {
	grid := mustGrid(t, 5, 11)
	result, err := Solve(&decay{rate: 1}, dynamo.State{1.0}, grid, DefaultConfig())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	tr := result.Trajectory
	if tr.Len() != 11 {
		t.Fatalf("expected 11 samples, got %d", tr.Len())
	}
	for i, ti := range tr.Times {
		if ti != grid[i] {
			t.Errorf("sample %d at t=%v, want %v", i, ti, grid[i])
		}
		expected := math.Exp(-ti)
		if math.Abs(tr.States[i][0]-expected) > 1e-7*expected+1e-10 {
			t.Errorf("x(%.1f) = %.10f, want %.10f", ti, tr.States[i][0], expected)
		}
	}
	if result.Stats.Steps == 0 {
		t.Error("expected internal steps to be counted")
	}
}

func TestSimulatorAdaptiveIndependentOfGrid(t *testing.T) {
	coarse, err := Solve(&decay{rate: 3}, dynamo.State{1}, mustGrid(t, 4, 3), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	fine, err := Solve(&decay{rate: 3}, dynamo.State{1}, mustGrid(t, 4, 401), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a := coarse.Trajectory.Final()[0]
	b := fine.Trajectory.Final()[0]
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("final state depends on output grid: %g vs %g", a, b)
	}
}

func TestSimulatorFixedStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "rk4"
	cfg.FixedStep = 0.01

	result, err := Solve(&decay{rate: 1}, dynamo.State{1}, mustGrid(t, 1, 5), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	final := result.Trajectory.Final()[0]
	if math.Abs(final-math.Exp(-1)) > 1e-8 {
		t.Errorf("rk4 final = %v, want %v", final, math.Exp(-1))
	}
	if result.Stats.Steps < 100 || result.Stats.Steps > 104 {
		t.Errorf("expected about 100 fixed steps, got %d", result.Stats.Steps)
	}
}

func TestSimulatorInvalidInput(t *testing.T) {
	s := New(&decay{rate: 1}, integrators.NewRK45())

	tests := []struct {
		name string
		x0   dynamo.State
		grid dynamo.Grid
	}{
		{"wrong dimension", dynamo.State{1, 2}, dynamo.Grid{0, 1}},
		{"nan state", dynamo.State{math.NaN()}, dynamo.Grid{0, 1}},
		{"single point grid", dynamo.State{1}, dynamo.Grid{0}},
		{"decreasing grid", dynamo.State{1}, dynamo.Grid{0, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(tt.x0, tt.grid, DefaultConfig())
			if !errors.Is(err, dynamo.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(&decay{rate: 1}, integrators.NewRK45())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero max steps", Config{Tolerance: dynamo.Tolerance{Rel: 1e-6, Abs: 1e-9}}},
		{"zero tolerance", Config{MaxSteps: 10}},
		{"negative fixed step", Config{MaxSteps: 10, Tolerance: dynamo.Tolerance{Rel: 1e-6, Abs: 1e-9}, FixedStep: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(dynamo.State{1}, dynamo.Grid{0, 1}, tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSimulatorDivergenceFails(t *testing.T) {
	_, err := Solve(&blowUp{}, dynamo.State{1}, mustGrid(t, 2, 20), DefaultConfig())
	if !errors.Is(err, dynamo.ErrIntegration) {
		t.Fatalf("expected ErrIntegration, got %v", err)
	}
	var ie *dynamo.IntegrationError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IntegrationError, got %T", err)
	}
	if ie.Time > 1.0 {
		t.Errorf("failure reported past the singularity: t=%g", ie.Time)
	}
}

func TestSimulatorNaNDerivativeFails(t *testing.T) {
	_, err := Solve(&poisoned{}, dynamo.State{1}, mustGrid(t, 1, 5), DefaultConfig())
	if !errors.Is(err, dynamo.ErrIntegration) {
		t.Fatalf("expected ErrIntegration, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.Method = "euler"
	_, err = Solve(&poisoned{}, dynamo.State{1}, mustGrid(t, 1, 5), cfg)
	if !errors.Is(err, dynamo.ErrIntegration) {
		t.Fatalf("expected ErrIntegration from fixed-step path, got %v", err)
	}
}

func TestSimulatorStepBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSteps = 3
	_, err := Solve(&decay{rate: 50}, dynamo.State{1}, mustGrid(t, 10, 3), cfg)
	var ie *dynamo.IntegrationError
	if !errors.As(err, &ie) || ie.Cause != "maximum step count exceeded" {
		t.Fatalf("expected step budget failure, got %v", err)
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(x dynamo.State, time float64) {
	t.count++
	t.sum += x[0]
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	metric := &testMetric{}
	result, err := Solve(&decay{rate: 1}, dynamo.State{1}, mustGrid(t, 1, 11), DefaultConfig(), metric)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}
}

func TestSolveUnknownMethod(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Method = "leapfrog"
	if _, err := Solve(&decay{rate: 1}, dynamo.State{1}, dynamo.Grid{0, 1}, cfg); err == nil {
		t.Error("expected error for unknown method")
	}
}
