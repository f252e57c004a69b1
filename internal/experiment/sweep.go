package experiment

import (
	"context"
	"fmt"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
)

type SweepSpec struct {
	Model string
	Base  dynamo.Params
	Param string
	From  float64
	To    float64
	Steps int
	// Defaults fills parameters missing from Base with the model defaults.
	Defaults bool
}

// Sweep reruns a model with one parameter stepped across [From, To]. A run
// that fails is kept in place with its error kind so the sweep stays aligned
// with the parameter grid.
func (r *Registry) Sweep(ctx context.Context, spec SweepSpec) ([]analysis.SweepPoint, error) {
	defaults, err := r.Defaults(spec.Model)
	if err != nil {
		return nil, err
	}
	if _, ok := defaults[spec.Param]; !ok {
		return nil, &dynamo.InputError{Param: spec.Param, Reason: fmt.Sprintf("is not a parameter of %s", spec.Model)}
	}
	values, err := analysis.SweepValues(spec.From, spec.To, spec.Steps)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidInput, err)
	}

	log := logging.FromContext(ctx)
	points := make([]analysis.SweepPoint, 0, len(values))
	failed := 0

	for _, v := range values {
		res, err := r.run(ctx, spec.Model, spec.Base.With(spec.Param, v), spec.Defaults)
		if err != nil {
			kind := dynamo.KindOf(err)
			if kind == "" {
				kind = "error"
			}
			points = append(points, analysis.SweepPoint{Param: v, Err: kind, ErrDetail: err.Error()})
			failed++
			continue
		}
		points = append(points, analysis.SweepPoint{
			Param:    v,
			Final:    res.Summary.FinalValue,
			Peak:     res.Summary.PeakValue,
			PeakTime: res.Summary.PeakTime,
			Extinct:  res.Summary.Extinct,
		})
	}

	log.Debug(ctx, "sweep finished",
		logging.String("model", spec.Model),
		logging.String("param", spec.Param),
		logging.Int("steps", len(values)),
		logging.Int("failed", failed))
	return points, nil
}
