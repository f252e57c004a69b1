package dynamo

import (
	"fmt"
	"math"
	"sort"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// System is an autonomous or time-dependent ODE right-hand side dX/dt = f(X, t).
type System interface {
	Derive(x State, t float64) State
	StateDim() int
	Labels() []string
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Integrator interface {
	Step(sys System, x State, t, dt float64) State
}

// AdaptiveIntegrator takes a trial step and reports the normalized error
// ratio (accept when <= 1) together with a proposed next step size.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, x State, t, dt float64, tol Tolerance) (State, float64, float64)
	Order() int
}

type Tolerance struct {
	Rel float64
	Abs float64
}

// Params is a read-only view over named model parameters.
type Params map[string]float64

func (p Params) Get(name string) (float64, bool) {
	v, ok := p[name]
	return v, ok
}

func (p Params) GetOr(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Require returns the named parameter or an InputError when it is missing or
// not a finite number.
func (p Params) Require(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, &InputError{Param: name, Reason: "missing"}
	}
	return v, CheckFinite(name, v)
}

func (p Params) Positive(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, &InputError{Param: name, Reason: "missing"}
	}
	return v, CheckPositive(name, v)
}

func (p Params) NonNegative(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, &InputError{Param: name, Reason: "missing"}
	}
	return v, CheckNonNegative(name, v)
}

func CheckFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InputError{Param: name, Value: v, Reason: "not a finite number"}
	}
	return nil
}

func CheckNonNegative(name string, v float64) error {
	if err := CheckFinite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return &InputError{Param: name, Value: v, Reason: "must be >= 0"}
	}
	return nil
}

func CheckPositive(name string, v float64) error {
	if err := CheckFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return &InputError{Param: name, Value: v, Reason: "must be > 0"}
	}
	return nil
}

// With returns a copy of p with name set to v.
func (p Params) With(name string, v float64) Params {
	out := make(Params, len(p)+1)
	for k, val := range p {
		out[k] = val
	}
	out[name] = v
	return out
}

func (p Params) Merge(over Params) Params {
	out := make(Params, len(p)+len(over))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Grid is a strictly increasing sequence of output times.
type Grid []float64

// Linspace builds points evenly spaced samples over [0, horizon].
func Linspace(horizon float64, points int) (Grid, error) {
	if math.IsNaN(horizon) || math.IsInf(horizon, 0) || horizon <= 0 {
		return nil, &InputError{Param: "horizon", Value: horizon, Reason: "must be a finite number > 0"}
	}
	if points < 2 {
		return nil, &InputError{Param: "points", Value: float64(points), Reason: "must be >= 2"}
	}
	g := make(Grid, points)
	step := horizon / float64(points-1)
	for i := range g {
		g[i] = float64(i) * step
	}
	g[points-1] = horizon
	return g, nil
}

func (g Grid) Validate() error {
	if len(g) < 2 {
		return &InputError{Param: "grid", Value: float64(len(g)), Reason: "needs at least 2 points"}
	}
	for i := 1; i < len(g); i++ {
		if !(g[i] > g[i-1]) {
			return &InputError{Param: "grid", Value: g[i], Reason: fmt.Sprintf("not strictly increasing at index %d", i)}
		}
	}
	return nil
}

func (g Grid) Horizon() float64 {
	if len(g) == 0 {
		return 0
	}
	return g[len(g)-1]
}

// Trajectory holds one state row per output time.
type Trajectory struct {
	Times  []float64
	States []State
	Labels []string
	Steps  int
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Series returns a copy of compartment i across all samples.
func (tr *Trajectory) Series(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, s := range tr.States {
		if i < len(s) {
			out[k] = s[i]
		}
	}
	return out
}

func (tr *Trajectory) SeriesByLabel(label string) ([]float64, bool) {
	for i, l := range tr.Labels {
		if l == label {
			return tr.Series(i), true
		}
	}
	return nil, false
}

func (tr *Trajectory) Final() State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1].Clone()
}

// Columns returns the trajectory as one slice per compartment.
func (tr *Trajectory) Columns() [][]float64 {
	dim := len(tr.Labels)
	if dim == 0 && len(tr.States) > 0 {
		dim = len(tr.States[0])
	}
	cols := make([][]float64, dim)
	for i := range cols {
		cols[i] = tr.Series(i)
	}
	return cols
}

// FromColumns builds a Trajectory from per-compartment series of equal length.
func FromColumns(times []float64, labels []string, cols ...[]float64) *Trajectory {
	tr := &Trajectory{
		Times:  append([]float64(nil), times...),
		States: make([]State, len(times)),
		Labels: append([]string(nil), labels...),
	}
	for k := range times {
		row := make(State, len(cols))
		for i, c := range cols {
			row[i] = c[k]
		}
		tr.States[k] = row
	}
	return tr
}
