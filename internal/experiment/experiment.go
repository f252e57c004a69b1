package experiment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
	"github.com/Jason9-Alex/Lab-Modelos/internal/observability"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

// Result is the output of one model run. It is never modified after it is
// returned.
type Result struct {
	Model      string               `json:"model"`
	Params     dynamo.Params        `json:"params"`
	Trajectory *dynamo.Trajectory   `json:"-"`
	Extra      map[string][]float64 `json:"extra,omitempty"`
	Summary    analysis.Summary     `json:"summary"`
	Metrics    map[string]float64   `json:"metrics,omitempty"`
	Steps      int                  `json:"steps"`
}

// Engine runs the models with a fixed solver configuration.
type Engine struct {
	solver    sim.Config
	collector *observability.Collector
}

type Option func(*Engine)

// WithCollector records every run on c.
func WithCollector(c *observability.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

func NewEngine(solver sim.Config, opts ...Option) *Engine {
	e := &Engine{solver: solver}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Solver() sim.Config { return e.solver }

// run wraps op with a span, a debug log line and the run metrics.
func (e *Engine) run(ctx context.Context, model string, op func(ctx context.Context) (*Result, error)) (*Result, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "experiment."+model,
		trace.WithAttributes(attribute.String("model", model)))
	defer span.End()

	log := logging.FromContext(ctx).With(logging.String("model", model))
	start := time.Now()

	res, err := op(ctx)
	elapsed := time.Since(start)

	if err != nil {
		kind := dynamo.KindOf(err)
		if kind == "" {
			kind = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		e.collector.ObserveRun(model, kind, elapsed, 0)
		log.Debug(ctx, "run failed", logging.String("kind", kind), logging.Err(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("points", res.Trajectory.Len()),
		attribute.Int("steps", res.Steps),
	)
	e.collector.ObserveRun(model, "ok", elapsed, res.Steps)
	log.Debug(ctx, "run finished",
		logging.Int("points", res.Trajectory.Len()),
		logging.Int("steps", res.Steps),
		logging.Float("peak", res.Summary.PeakValue),
		logging.Duration("elapsed", elapsed))
	return res, nil
}

func (e *Engine) solve(sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, ms ...sim.Metric) (*sim.Result, error) {
	return sim.Solve(sys, x0, grid, e.solver, ms...)
}

func points(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
