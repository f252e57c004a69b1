package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
	"github.com/Jason9-Alex/Lab-Modelos/internal/observability"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

func newEngine() *Engine { return NewEngine(sim.DefaultConfig()) }

func TestExponentialClosedFormMatchesIntegration(t *testing.T) {
	res, err := newEngine().RunExponential(context.Background(), ExponentialInput{P0: 100, R: 0.03, Horizon: 100})
	require.NoError(t, err)
	require.Equal(t, ExponentialPoints, res.Trajectory.Len())

	m, _ := models.NewExponential(0.03)
	grid, _ := dynamo.Linspace(100, ExponentialPoints)
	num, err := sim.Solve(m, dynamo.State{100}, grid, sim.DefaultConfig())
	require.NoError(t, err)

	closed := res.Trajectory.Series(0)
	for i, v := range num.Trajectory.Series(0) {
		assert.InEpsilon(t, closed[i], v, 1e-6)
	}

	require.NotNil(t, res.Summary.DoublingTime)
	assert.InDelta(t, math.Ln2/0.03, *res.Summary.DoublingTime, 1e-12)
	assert.Len(t, res.Extra["linear"], ExponentialPoints)
	assert.InDelta(t, 100+100*0.03*100, res.Extra["linear"][ExponentialPoints-1], 1e-9)
}

func TestExponentialDecayHasNoDoublingTime(t *testing.T) {
	res, err := newEngine().RunExponential(context.Background(), ExponentialInput{P0: 100, R: -0.1, Horizon: 10})
	require.NoError(t, err)
	assert.Nil(t, res.Summary.DoublingTime)
	assert.Equal(t, 0, res.Summary.PeakIndex)
}

func TestLogisticApproachesCapacity(t *testing.T) {
	res, err := newEngine().RunLogistic(context.Background(), LogisticInput{P0: 200, R: 0.04, K: 750, Horizon: 800})
	require.NoError(t, err)
	assert.Equal(t, LogisticPoints, res.Trajectory.Len())
	assert.InDelta(t, 750, res.Summary.FinalValue, 1e-6)
	assert.Equal(t, 750.0, res.Extra["capacity"][0])
}

func TestLogisticZeroCapacityIsInvalid(t *testing.T) {
	_, err := newEngine().RunLogistic(context.Background(), LogisticInput{P0: 200, R: 0.04, K: 0, Horizon: 100})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dynamo.ErrInvalidInput))
	assert.Equal(t, dynamo.KindInvalidInput, dynamo.KindOf(err))
}

func TestHarvestAboveYieldGoesExtinct(t *testing.T) {
	res, err := newEngine().RunLogisticHarvest(context.Background(), HarvestInput{P0: 150, R: 0.5, K: 300, H: 40, Horizon: 100})
	require.NoError(t, err)
	require.NotNil(t, res.Summary.MaxSustainableYield)
	assert.InDelta(t, 37.5, *res.Summary.MaxSustainableYield, 1e-12)
	assert.True(t, res.Summary.Extinct)

	series := res.Trajectory.Series(0)
	hitZero := false
	for i, v := range series {
		assert.GreaterOrEqual(t, v, 0.0, "sample %d", i)
		if hitZero {
			assert.Zero(t, v, "sample %d after extinction", i)
		}
		if v == 0 {
			hitZero = true
		}
	}
	assert.True(t, hitZero)
	assert.Zero(t, res.Summary.FinalValue)
}

func TestHarvestBelowYieldSurvives(t *testing.T) {
	res, err := newEngine().RunLogisticHarvest(context.Background(), HarvestInput{P0: 150, R: 0.5, K: 300, H: 30, Horizon: 150})
	require.NoError(t, err)
	assert.False(t, res.Summary.Extinct)
	// upper equilibrium of rP(1-P/K) = h
	assert.InDelta(t, 150+math.Sqrt(150*150-30*300/0.5), res.Summary.FinalValue, 1e-3)
}

func TestAlleeOutcome(t *testing.T) {
	tests := []struct {
		p0      float64
		outcome string
	}{
		{30, analysis.OutcomeSurvival},
		{10, analysis.OutcomeExtinction},
	}

	for _, tt := range tests {
		res, err := newEngine().RunAllee(context.Background(), AlleeInput{P0: tt.p0, R: 0.5, K: 300, A: 20, Horizon: 50})
		require.NoError(t, err)
		assert.Equal(t, tt.outcome, res.Summary.Outcome, "P0=%v", tt.p0)
		assert.Equal(t, tt.outcome == analysis.OutcomeExtinction, res.Summary.Extinct, "P0=%v", tt.p0)
		assert.Equal(t, AlleePoints, res.Trajectory.Len())
	}
}

func TestSIRScenario(t *testing.T) {
	res, err := newEngine().RunSIR(context.Background(), SIRInput{N: 1000, Beta: 0.4, Gamma: 0.1, I0: 2, Horizon: 160})
	require.NoError(t, err)

	require.NotNil(t, res.Summary.ReproductionNumber)
	assert.InDelta(t, 3.992, *res.Summary.ReproductionNumber, 1e-9)
	assert.Less(t, res.Summary.ConservationDrift, 1e-3)
	assert.Greater(t, res.Summary.PeakValue, 2.0)
	assert.Equal(t, res.Summary.PeakValue, res.Metrics["max_I"])
	assert.Less(t, res.Metrics["conservation_drift"], 1e-3)

	s := res.Trajectory.Series(0)
	for i := 1; i < len(s); i++ {
		assert.LessOrEqual(t, s[i], s[i-1]+1e-6, "S increased at sample %d", i)
	}
}

func TestSIRWithoutRecoveryHasNoReproductionNumber(t *testing.T) {
	res, err := newEngine().RunSIR(context.Background(), SIRInput{N: 1000, Beta: 0.4, Gamma: 0, I0: 2, Horizon: 20})
	require.NoError(t, err)
	assert.Nil(t, res.Summary.ReproductionNumber)
}

func TestSEIRConservation(t *testing.T) {
	res, err := newEngine().RunSEIR(context.Background(), SEIRInput{N: 1000, Beta: 0.5, Sigma: 0.2, Gamma: 0.1, E0: 5, I0: 2, Horizon: 160})
	require.NoError(t, err)
	assert.Less(t, res.Summary.ConservationDrift, 1e-3)
	assert.Equal(t, []string{"S", "E", "I", "R"}, res.Trajectory.Labels)
	require.NotNil(t, res.Summary.FinalRemoved)
	assert.Greater(t, *res.Summary.FinalRemoved, 500.0)
}

func TestDiffusionCaseStudies(t *testing.T) {
	r := NewRegistry(sim.DefaultConfig())
	for _, name := range []string{"epidemic", "rumor", "policy"} {
		t.Run(name, func(t *testing.T) {
			res, err := r.RunWithDefaults(context.Background(), name, nil)
			require.NoError(t, err)
			assert.Equal(t, DiffusionPoints, res.Trajectory.Len())
			assert.Less(t, res.Summary.ConservationDrift, 1e-3)
			require.NotNil(t, res.Summary.EverInfectedPercent)
			assert.GreaterOrEqual(t, *res.Summary.EverInfectedPercent, 0.0)
			assert.LessOrEqual(t, *res.Summary.EverInfectedPercent, 100.0)
		})
	}

	res, err := r.RunWithDefaults(context.Background(), "epidemic", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Summary.ReproductionNumber)
	assert.InDelta(t, 0.0001401*7137/0.40, *res.Summary.ReproductionNumber, 1e-9)
}

func TestDiffusionUnknownVariant(t *testing.T) {
	_, err := newEngine().RunDiffusion(context.Background(), DiffusionInput{Variant: "zombie", N: 10, B: 0.1, K: 0.1, I0: 1, Horizon: 1})
	assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
}

func TestNegativeSusceptibleIsInvalid(t *testing.T) {
	_, err := newEngine().RunSIR(context.Background(), SIRInput{N: 10, Beta: 0.4, Gamma: 0.1, I0: 11, Horizon: 10})
	var ie *dynamo.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "S0", ie.Param)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(sim.DefaultConfig())
	assert.Equal(t, []string{"allee", "epidemic", "exponential", "harvest", "logistic", "policy", "rumor", "seir", "sir"}, r.Names())

	info, err := r.Describe("seir")
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "E", "I", "R"}, info.Labels)

	_, err = r.Describe("lorenz")
	assert.ErrorIs(t, err, ErrUnknownModel)

	res, err := r.RunWithDefaults(context.Background(), "sir", dynamo.Params{"beta": 0.3, "points": 50})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Trajectory.Len())
	assert.Equal(t, 0.3, res.Params["beta"])
	assert.Equal(t, 0.1, res.Params["gamma"])
}

func TestRunRequiresEveryParameter(t *testing.T) {
	r := NewRegistry(sim.DefaultConfig())
	ctx := context.Background()

	_, err := r.Run(ctx, "logistic", dynamo.Params{"r": 0.1})
	var ie *dynamo.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "missing", ie.Reason)
	assert.Contains(t, []string{"P0", "K", "horizon"}, ie.Param)

	res, err := r.Run(ctx, "logistic", dynamo.Params{"P0": 10, "r": 0.1, "K": 100, "horizon": 50})
	require.NoError(t, err)
	assert.Equal(t, LogisticPoints, res.Trajectory.Len())

	_, err = r.Resolve("logistic", dynamo.Params{"r": 0.1}, false)
	assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
	p, err := r.Resolve("logistic", dynamo.Params{"r": 0.1}, true)
	require.NoError(t, err)
	assert.Equal(t, 750.0, p["K"])
	assert.Equal(t, 0.1, p["r"])

	points, err := r.Sweep(ctx, SweepSpec{Model: "logistic", Base: dynamo.Params{"r": 0.1}, Param: "K", From: 100, To: 200, Steps: 2})
	require.NoError(t, err)
	for _, pt := range points {
		assert.Equal(t, dynamo.KindInvalidInput, pt.Err)
	}
}

func TestRegistryRejectsBadParams(t *testing.T) {
	r := NewRegistry(sim.DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name   string
		model  string
		params dynamo.Params
	}{
		{"unknown key", "sir", dynamo.Params{"sigma": 0.2}},
		{"fractional points", "logistic", dynamo.Params{"points": 10.5}},
		{"one point", "logistic", dynamo.Params{"points": 1}},
		{"nan rate", "exponential", dynamo.Params{"r": math.NaN()}},
		{"zero horizon", "allee", dynamo.Params{"horizon": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RunWithDefaults(ctx, tt.model, tt.params)
			assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
		})
	}
}

func TestSweepKeepsFailedSteps(t *testing.T) {
	r := NewRegistry(sim.DefaultConfig())
	points, err := r.Sweep(context.Background(), SweepSpec{Model: "logistic", Param: "K", From: -100, To: 700, Steps: 9, Defaults: true})
	require.NoError(t, err)
	require.Len(t, points, 9)

	assert.Equal(t, dynamo.KindInvalidInput, points[0].Err)
	assert.Equal(t, dynamo.KindInvalidInput, points[1].Err)
	for _, p := range points[2:] {
		assert.False(t, p.Failed(), "K=%v", p.Param)
		assert.Greater(t, p.Final, 0.0)
	}

	_, err = r.Sweep(context.Background(), SweepSpec{Model: "logistic", Param: "beta", From: 0, To: 1, Steps: 3})
	assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
	_, err = r.Sweep(context.Background(), SweepSpec{Model: "logistic", Param: "K", From: 0, To: 1, Steps: 1})
	assert.ErrorIs(t, err, dynamo.ErrInvalidInput)
}

func TestEngineRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := observability.NewCollector(reg)
	require.NoError(t, err)
	e := NewEngine(sim.DefaultConfig(), WithCollector(c))

	_, err = e.RunSIR(context.Background(), SIRInput{N: 1000, Beta: 0.4, Gamma: 0.1, I0: 2, Horizon: 10})
	require.NoError(t, err)
	_, err = e.RunLogistic(context.Background(), LogisticInput{K: -1, Horizon: 10})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Simulations.WithLabelValues("sir", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Simulations.WithLabelValues("logistic", dynamo.KindInvalidInput)))
}

func TestClosedFormOverflowFails(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	_, err := e.RunExponential(ctx, ExponentialInput{P0: 100, R: 1, Horizon: 1000, Points: 10})
	var ie *dynamo.IntegrationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, dynamo.KindIntegration, dynamo.KindOf(err))
	assert.Greater(t, ie.Time, 0.0)

	res, err := e.RunExponential(ctx, ExponentialInput{P0: 0, R: 1, Horizon: 1000, Points: 10})
	require.NoError(t, err)
	for _, v := range res.Trajectory.Series(0) {
		assert.Zero(t, v)
	}

	_, err = e.RunLogistic(ctx, LogisticInput{P0: 1e300, R: 0.01, K: 1e300, Horizon: 10, Points: 5})
	assert.ErrorIs(t, err, dynamo.ErrIntegration)

	res, err = e.RunLogistic(ctx, LogisticInput{P0: 1e100, R: 1, K: 1e150, Horizon: 400, Points: 5})
	require.NoError(t, err)
	assert.InEpsilon(t, 1e150, res.Summary.FinalValue, 1e-9)
}
