package experiment

import (
	"context"
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/metrics"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
)

// Points of zero in any input selects the model's usual output resolution.
const (
	ExponentialPoints = 100
	LogisticPoints    = 20
	HarvestPoints     = 200
	AlleePoints       = 200
)

type ExponentialInput struct {
	P0      float64
	R       float64
	Horizon float64
	Points  int
}

type LogisticInput struct {
	P0      float64
	R       float64
	K       float64
	Horizon float64
	Points  int
}

type HarvestInput struct {
	P0      float64
	R       float64
	K       float64
	H       float64
	Horizon float64
	Points  int
}

type AlleeInput struct {
	P0      float64
	R       float64
	K       float64
	A       float64
	Horizon float64
	Points  int
}

// RunExponential evaluates the closed form P0*e^(rt) and the linear
// comparison P0 + P0*r*t.
func (e *Engine) RunExponential(ctx context.Context, in ExponentialInput) (*Result, error) {
	return e.run(ctx, "exponential", func(ctx context.Context) (*Result, error) {
		m, err := models.NewExponential(in.R)
		if err != nil {
			return nil, err
		}
		if err := dynamo.CheckNonNegative("P0", in.P0); err != nil {
			return nil, err
		}
		grid, err := dynamo.Linspace(in.Horizon, points(in.Points, ExponentialPoints))
		if err != nil {
			return nil, err
		}

		series, linear := m.Solve(grid, in.P0), m.Linear(grid, in.P0)
		if err := finiteSeries(grid, series, linear); err != nil {
			return nil, err
		}
		res := closedForm("exponential", grid, series)
		res.Params = dynamo.Params{"P0": in.P0, "r": in.R, "horizon": in.Horizon, "points": float64(len(grid))}
		res.Extra = map[string][]float64{"linear": linear}
		if td, ok := analysis.DoublingTime(in.R); ok {
			res.Summary.DoublingTime = analysis.Ptr(td)
		}
		return res, nil
	})
}

// RunLogistic evaluates the closed-form logistic curve.
func (e *Engine) RunLogistic(ctx context.Context, in LogisticInput) (*Result, error) {
	return e.run(ctx, "logistic", func(ctx context.Context) (*Result, error) {
		m, err := models.NewLogistic(in.R, in.K)
		if err != nil {
			return nil, err
		}
		if err := dynamo.CheckNonNegative("P0", in.P0); err != nil {
			return nil, err
		}
		grid, err := dynamo.Linspace(in.Horizon, points(in.Points, LogisticPoints))
		if err != nil {
			return nil, err
		}

		series := m.Solve(grid, in.P0)
		if err := finiteSeries(grid, series); err != nil {
			return nil, err
		}
		res := closedForm("logistic", grid, series)
		res.Params = dynamo.Params{"P0": in.P0, "r": in.R, "K": in.K, "horizon": in.Horizon, "points": float64(len(grid))}
		res.Extra = map[string][]float64{"capacity": constant(len(grid), in.K)}
		return res, nil
	})
}

// RunLogisticHarvest integrates logistic growth under constant harvest and
// clips the negative tail. Any clipped or zero sample marks extinction.
func (e *Engine) RunLogisticHarvest(ctx context.Context, in HarvestInput) (*Result, error) {
	return e.run(ctx, "harvest", func(ctx context.Context) (*Result, error) {
		m, err := models.NewLogisticHarvest(in.R, in.K, in.H)
		if err != nil {
			return nil, err
		}
		res, err := e.clippedRun("harvest", m, in.P0, in.Horizon, points(in.Points, HarvestPoints))
		if err != nil {
			return nil, err
		}
		res.Params = dynamo.Params{"P0": in.P0, "r": in.R, "K": in.K, "h": in.H, "horizon": in.Horizon, "points": float64(res.Trajectory.Len())}
		res.Extra = map[string][]float64{"capacity": constant(res.Trajectory.Len(), in.K)}
		res.Summary.MaxSustainableYield = analysis.Ptr(m.MaxSustainableYield())
		return res, nil
	})
}

// RunAllee integrates the strong Allee model. The outcome is read from the
// final state: fewer than one individual is extinction.
func (e *Engine) RunAllee(ctx context.Context, in AlleeInput) (*Result, error) {
	return e.run(ctx, "allee", func(ctx context.Context) (*Result, error) {
		m, err := models.NewAllee(in.R, in.K, in.A)
		if err != nil {
			return nil, err
		}
		res, err := e.clippedRun("allee", m, in.P0, in.Horizon, points(in.Points, AlleePoints))
		if err != nil {
			return nil, err
		}
		res.Params = dynamo.Params{"P0": in.P0, "r": in.R, "K": in.K, "A": in.A, "horizon": in.Horizon, "points": float64(res.Trajectory.Len())}
		n := res.Trajectory.Len()
		res.Extra = map[string][]float64{
			"capacity":  constant(n, in.K),
			"threshold": constant(n, in.A),
		}
		res.Summary.Outcome = analysis.ClassifyAllee(res.Summary.FinalValue)
		res.Summary.Extinct = res.Summary.Extinct || res.Summary.Outcome == analysis.OutcomeExtinction
		return res, nil
	})
}

func (e *Engine) clippedRun(model string, sys dynamo.System, p0, horizon float64, n int) (*Result, error) {
	if err := dynamo.CheckNonNegative("P0", p0); err != nil {
		return nil, err
	}
	grid, err := dynamo.Linspace(horizon, n)
	if err != nil {
		return nil, err
	}

	lo := metrics.NewMinValue("P", 0)
	below := metrics.NewCrossing("P", 0, 1)
	out, err := e.solve(sys, dynamo.State{p0}, grid, lo, below)
	if err != nil {
		return nil, err
	}

	series, clipped := analysis.ClipNegative(out.Trajectory.Series(0))
	tr := dynamo.FromColumns(out.Trajectory.Times, out.Trajectory.Labels, series)
	tr.Steps = out.Stats.Steps

	res := &Result{
		Model:      model,
		Trajectory: tr,
		Metrics:    out.Metrics,
		Steps:      out.Stats.Steps,
	}
	res.Summary = populationSummary(tr)
	res.Summary.Extinct = clipped || analysis.Extinct(series, analysis.ExtinctionThreshold)
	return res, nil
}

// finiteSeries rejects a closed-form evaluation that left the float64 range.
func finiteSeries(grid dynamo.Grid, series ...[]float64) error {
	for _, s := range series {
		for i, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &dynamo.IntegrationError{Step: i, Time: grid[i], State: dynamo.State{v}, Cause: "closed form overflowed float64"}
			}
		}
	}
	return nil
}

func closedForm(model string, grid dynamo.Grid, series []float64) *Result {
	tr := dynamo.FromColumns(grid, []string{"P"}, series)
	return &Result{
		Model:      model,
		Trajectory: tr,
		Summary:    populationSummary(tr),
	}
}

func populationSummary(tr *dynamo.Trajectory) analysis.Summary {
	series := tr.Series(0)
	idx, at, peak := analysis.Peak(series, tr.Times)
	return analysis.Summary{
		PeakIndex:  idx,
		PeakTime:   at,
		PeakValue:  peak,
		FinalValue: analysis.Final(series),
	}
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
