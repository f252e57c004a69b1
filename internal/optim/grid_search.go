// Package optim searches a parameter grid for the run that best satisfies an
// objective on its summary or metrics.
package optim

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
)

// MaxGridPoints caps the size of the cartesian product.
const MaxGridPoints = 10_000

// Objective names the quantity to optimise. Metric is one of the summary
// names below or any key of Result.Metrics.
type Objective struct {
	Metric   string
	Maximize bool
}

// Value extracts the objective from a run. It reports false when the
// quantity is undefined or not finite for that run.
func (o Objective) Value(res *experiment.Result) (float64, bool) {
	var v float64
	switch o.Metric {
	case "final":
		v = res.Summary.FinalValue
	case "peak":
		v = res.Summary.PeakValue
	case "peak_time":
		v = res.Summary.PeakTime
	case "r0":
		if res.Summary.ReproductionNumber == nil {
			return 0, false
		}
		v = *res.Summary.ReproductionNumber
	case "ever_infected":
		if res.Summary.EverInfected == nil {
			return 0, false
		}
		v = *res.Summary.EverInfected
	default:
		m, ok := res.Metrics[o.Metric]
		if !ok {
			return 0, false
		}
		v = m
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func (o Objective) better(v, best float64) bool {
	if o.Maximize {
		return v > best
	}
	return v < best
}

// RunFunc runs a model with the given parameter overrides.
type RunFunc func(ctx context.Context, params dynamo.Params) (*experiment.Result, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 {
		return nil, &dynamo.InputError{Param: "grid", Reason: "needs at least one parameter"}
	}
	if len(params) != len(ranges) {
		return nil, &dynamo.InputError{Param: "grid", Reason: fmt.Sprintf("%d parameters but %d ranges", len(params), len(ranges))}
	}
	total := 1
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, &dynamo.InputError{Param: params[i], Reason: "has an empty range"}
		}
		total *= len(r)
		if total > MaxGridPoints {
			return nil, &dynamo.InputError{Param: "grid", Value: float64(total), Reason: fmt.Sprintf("exceeds %d points", MaxGridPoints)}
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Best is the outcome of a search. Failed counts grid points whose run
// errored or whose objective was undefined.
type Best struct {
	Params    dynamo.Params `json:"params"`
	Value     float64       `json:"value"`
	Evaluated int           `json:"evaluated"`
	Failed    int           `json:"failed"`
}

// Search evaluates every grid point in order. Ties keep the first point
// found. It fails only when ctx is cancelled or no point produced a value.
func (g *GridSearch) Search(ctx context.Context, base dynamo.Params, run RunFunc, obj Objective) (*Best, error) {
	best := &Best{Value: math.Inf(1)}
	if obj.Maximize {
		best.Value = math.Inf(-1)
	}

	if err := g.searchRecursive(ctx, 0, base.Merge(nil), run, obj, best); err != nil {
		return nil, err
	}
	if best.Params == nil {
		return nil, fmt.Errorf("%w: no grid point produced %q (%d failed)", dynamo.ErrInvalidInput, obj.Metric, best.Failed)
	}

	logging.FromContext(ctx).Debug(ctx, "grid search done",
		logging.String("metric", obj.Metric),
		logging.Float("best", best.Value),
		logging.Int("evaluated", best.Evaluated),
		logging.Int("failed", best.Failed))
	return best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current dynamo.Params,
	run RunFunc,
	obj Objective,
	best *Best,
) error {
	if depth == len(g.paramNames) {
		if err := ctx.Err(); err != nil {
			return err
		}
		best.Evaluated++

		res, err := run(ctx, current)
		if err != nil {
			best.Failed++
			return nil
		}
		v, ok := obj.Value(res)
		if !ok {
			best.Failed++
			return nil
		}
		if best.Params == nil || obj.better(v, best.Value) {
			best.Value = v
			best.Params = current.Merge(nil)
		}
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		if err := g.searchRecursive(ctx, depth+1, current.With(name, val), run, obj, best); err != nil {
			return err
		}
	}
	return nil
}

// ParseAxis reads "name=from:to:steps" or "name=v1,v2,...".
func ParseAxis(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || spec == "" {
		return "", nil, fmt.Errorf("grid axis %q: expected name=from:to:steps or name=v1,v2", s)
	}

	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		from, err1 := strconv.ParseFloat(parts[0], 64)
		to, err2 := strconv.ParseFloat(parts[1], 64)
		steps, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return "", nil, fmt.Errorf("grid axis %q: malformed range", s)
		}
		values, err := analysis.SweepValues(from, to, steps)
		if err != nil {
			return "", nil, fmt.Errorf("grid axis %q: %w", s, err)
		}
		return name, values, nil
	}

	var values []float64
	for _, f := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("grid axis %q: %q is not a number", s, f)
		}
		values = append(values, v)
	}
	return name, values, nil
}
