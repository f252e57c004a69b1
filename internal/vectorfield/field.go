// Package vectorfield evaluates user-supplied 2D vector fields over a
// rectangular mesh.
//
// Formulas are compiled once against a closed environment (X, Y, pi, e and
// the functions sin, cos, tan, sqrt, exp) and then evaluated point by point.
// Anything outside that environment fails at compile time with
// dynamo.ErrExpression.
package vectorfield

import (
	"context"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/logging"
	"github.com/Jason9-Alex/Lab-Modelos/internal/observability"
)

// MaxResolution bounds the mesh side so a single request stays cheap.
const MaxResolution = 500

type Request struct {
	FX   string  `json:"fx" yaml:"fx"`
	FY   string  `json:"fy" yaml:"fy"`
	XMax float64 `json:"xmax" yaml:"xmax"`
	YMax float64 `json:"ymax" yaml:"ymax"`
	N    int     `json:"n" yaml:"n"`
}

func DefaultRequest() Request {
	return Request{FX: "np.sin(X)", FY: "np.cos(Y)", XMax: 5, YMax: 5, N: 15}
}

// Field is the evaluated mesh. All four matrices are N x N with
// X[i][j] = x[j] and Y[i][j] = y[i].
type Field struct {
	X  [][]float64 `json:"x"`
	Y  [][]float64 `json:"y"`
	FX [][]float64 `json:"fx"`
	FY [][]float64 `json:"fy"`

	MinMagnitude float64 `json:"min_magnitude"`
	MaxMagnitude float64 `json:"max_magnitude"`
}

func (f *Field) Rows() int { return len(f.X) }

func (f *Field) Cols() int {
	if len(f.X) == 0 {
		return 0
	}
	return len(f.X[0])
}

// Evaluator holds a compiled pair of component formulas.
type Evaluator struct {
	fx *Formula
	fy *Formula
}

func NewEvaluator(fx, fy string) (*Evaluator, error) {
	cx, err := Compile("fx", fx)
	if err != nil {
		return nil, err
	}
	cy, err := Compile("fy", fy)
	if err != nil {
		return nil, err
	}
	return &Evaluator{fx: cx, fy: cy}, nil
}

// Evaluate samples both components on the n x n mesh over
// [-xmax, xmax] x [-ymax, ymax]. The first failing point aborts the whole
// evaluation.
func (e *Evaluator) Evaluate(xmax, ymax float64, n int) (*Field, error) {
	if err := validateExtent("xmax", xmax); err != nil {
		return nil, err
	}
	if err := validateExtent("ymax", ymax); err != nil {
		return nil, err
	}
	if n < 2 || n > MaxResolution {
		return nil, &dynamo.InputError{Param: "n", Value: float64(n), Reason: "must be between 2 and 500"}
	}

	xs := symmetric(xmax, n)
	ys := symmetric(ymax, n)

	f := &Field{
		X:            matrix(n),
		Y:            matrix(n),
		FX:           matrix(n),
		FY:           matrix(n),
		MinMagnitude: math.Inf(1),
		MaxMagnitude: 0,
	}

	env := newEnv(0, 0)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			env["X"], env["Y"] = xs[j], ys[i]

			u, err := e.fx.eval(env)
			if err != nil {
				return nil, err
			}
			v, err := e.fy.eval(env)
			if err != nil {
				return nil, err
			}

			f.X[i][j], f.Y[i][j] = xs[j], ys[i]
			f.FX[i][j], f.FY[i][j] = u, v

			mag := math.Hypot(u, v)
			f.MinMagnitude = math.Min(f.MinMagnitude, mag)
			f.MaxMagnitude = math.Max(f.MaxMagnitude, mag)
		}
	}
	return f, nil
}

// EvaluateField compiles and evaluates req in one call.
func EvaluateField(ctx context.Context, req Request) (*Field, error) {
	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "vectorfield.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("fx", req.FX),
		attribute.String("fy", req.FY),
		attribute.Int("n", req.N),
	)

	log := logging.FromContext(ctx)

	ev, err := NewEvaluator(req.FX, req.FY)
	if err == nil {
		var f *Field
		f, err = ev.Evaluate(req.XMax, req.YMax, req.N)
		if err == nil {
			log.Debug(ctx, "vector field evaluated",
				logging.Int("n", req.N),
				logging.Float("max_magnitude", f.MaxMagnitude))
			return f, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, dynamo.KindOf(err))
	log.Debug(ctx, "vector field failed", logging.String("kind", dynamo.KindOf(err)), logging.Err(err))
	return nil, err
}

func validateExtent(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &dynamo.InputError{Param: name, Value: v, Reason: "must be a finite number > 0"}
	}
	return nil
}

func symmetric(limit float64, n int) []float64 {
	out := make([]float64, n)
	step := 2 * limit / float64(n-1)
	for i := range out {
		out[i] = -limit + float64(i)*step
	}
	out[n-1] = limit
	return out
}

func matrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}
