package experiment

import (
	"context"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/metrics"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
)

const (
	SIRPoints       = 300
	SEIRPoints      = 300
	DiffusionPoints = 200
)

type SIRInput struct {
	N       float64
	Beta    float64
	Gamma   float64
	I0      float64
	Horizon float64
	Points  int
}

type SEIRInput struct {
	N       float64
	Beta    float64
	Sigma   float64
	Gamma   float64
	E0      float64
	I0      float64
	Horizon float64
	Points  int
}

// DiffusionInput drives the social diffusion case studies. R0 is the initial
// removed count, not a reproduction number.
type DiffusionInput struct {
	Variant models.Variant
	N       float64
	B       float64
	K       float64
	I0      float64
	R0      float64
	Horizon float64
	Points  int
}

func (e *Engine) RunSIR(ctx context.Context, in SIRInput) (*Result, error) {
	return e.run(ctx, "sir", func(ctx context.Context) (*Result, error) {
		m, err := models.NewSIR(in.N, in.Beta, in.Gamma)
		if err != nil {
			return nil, err
		}
		x0, err := m.InitialState(in.I0, 0)
		if err != nil {
			return nil, err
		}
		res, err := e.compartmentRun("sir", m, x0, in.N, 1, in.Horizon, points(in.Points, SIRPoints))
		if err != nil {
			return nil, err
		}
		res.Params = dynamo.Params{"N": in.N, "beta": in.Beta, "gamma": in.Gamma, "I0": in.I0, "horizon": in.Horizon, "points": float64(res.Trajectory.Len())}
		if r0, ok := analysis.ReproductionNumber(in.Beta, x0[0]/in.N, in.Gamma); ok {
			res.Summary.ReproductionNumber = analysis.Ptr(r0)
		}
		return res, nil
	})
}

func (e *Engine) RunSEIR(ctx context.Context, in SEIRInput) (*Result, error) {
	return e.run(ctx, "seir", func(ctx context.Context) (*Result, error) {
		m, err := models.NewSEIR(in.N, in.Beta, in.Sigma, in.Gamma)
		if err != nil {
			return nil, err
		}
		x0, err := m.InitialState(in.E0, in.I0)
		if err != nil {
			return nil, err
		}
		res, err := e.compartmentRun("seir", m, x0, in.N, 2, in.Horizon, points(in.Points, SEIRPoints))
		if err != nil {
			return nil, err
		}
		res.Params = dynamo.Params{"N": in.N, "beta": in.Beta, "sigma": in.Sigma, "gamma": in.Gamma, "E0": in.E0, "I0": in.I0, "horizon": in.Horizon, "points": float64(res.Trajectory.Len())}
		if r0, ok := analysis.ReproductionNumber(in.Beta, x0[0]/in.N, in.Gamma); ok {
			res.Summary.ReproductionNumber = analysis.Ptr(r0)
		}
		return res, nil
	})
}

// RunDiffusion runs one of the epidemic, rumor or policy case studies with
// mass-action contact rate b and removal rate k.
func (e *Engine) RunDiffusion(ctx context.Context, in DiffusionInput) (*Result, error) {
	name := string(in.Variant)
	if name == "" {
		name = "diffusion"
	}
	return e.run(ctx, name, func(ctx context.Context) (*Result, error) {
		m, err := models.NewDiffusion(in.Variant, in.B, in.K)
		if err != nil {
			return nil, err
		}
		x0, err := m.InitialState(in.N, in.I0, in.R0)
		if err != nil {
			return nil, err
		}
		res, err := e.compartmentRun(name, m, x0, in.N, 1, in.Horizon, points(in.Points, DiffusionPoints))
		if err != nil {
			return nil, err
		}
		res.Params = dynamo.Params{"N": in.N, "b": in.B, "k": in.K, "I0": in.I0, "R0": in.R0, "horizon": in.Horizon, "points": float64(res.Trajectory.Len())}
		if r0, ok := analysis.ReproductionNumber(in.B, x0[0], in.K); ok {
			res.Summary.ReproductionNumber = analysis.Ptr(r0)
		}
		return res, nil
	})
}

// compartmentRun integrates a closed population model and fills the summary
// from the infectious compartment at index infected. Compartment 0 is S and
// the last compartment is R.
func (e *Engine) compartmentRun(model string, sys dynamo.System, x0 dynamo.State, n float64, infected int, horizon float64, pts int) (*Result, error) {
	grid, err := dynamo.Linspace(horizon, pts)
	if err != nil {
		return nil, err
	}

	labels := sys.Labels()
	peak := metrics.NewMaxValue(labels[infected], infected)
	drift := metrics.NewSumDrift(n)
	out, err := e.solve(sys, x0, grid, peak, drift)
	if err != nil {
		return nil, err
	}

	tr := out.Trajectory
	inf := tr.Series(infected)
	idx, at, top := analysis.Peak(inf, tr.Times)
	final := tr.Final()

	s0 := x0[0]
	sf := final[0]
	ever := s0 - sf

	sum := analysis.Summary{
		PeakIndex:         idx,
		PeakTime:          at,
		PeakValue:         top,
		FinalValue:        final[infected],
		ConservationDrift: analysis.ConservationDrift(tr, n),
		FinalSusceptible:  analysis.Ptr(sf),
		FinalRemoved:      analysis.Ptr(final[len(final)-1]),
		EverInfected:      analysis.Ptr(ever),
	}
	if s0 > 0 {
		sum.EverInfectedPercent = analysis.Ptr(ever / s0 * 100)
	}

	return &Result{
		Model:      model,
		Trajectory: tr,
		Summary:    sum,
		Metrics:    out.Metrics,
		Steps:      out.Stats.Steps,
	}, nil
}
