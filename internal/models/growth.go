package models

import (
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

// Exponential is unbounded growth dP/dt = r*P. The rate may be negative
// (decay).
type Exponential struct {
	Rate float64
}

func NewExponential(r float64) (*Exponential, error) {
	if err := check("r", r, anyFinite); err != nil {
		return nil, err
	}
	return &Exponential{Rate: r}, nil
}

func (e *Exponential) StateDim() int    { return 1 }
func (e *Exponential) Labels() []string { return []string{"P"} }

func (e *Exponential) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{e.Rate * x[0]}
}

func (e *Exponential) GetParams() map[string]float64 {
	return map[string]float64{"r": e.Rate}
}

func (e *Exponential) SetParam(name string, value float64) error {
	switch name {
	case "r":
		return assign(&e.Rate, name, value, anyFinite)
	}
	return unknownParam(name)
}

// Solve evaluates P0*exp(r*t) on every grid point. P0 = 0 stays at 0 even
// where exp(r*t) overflows; other overflow is left as Inf for the caller to
// reject.
func (e *Exponential) Solve(grid dynamo.Grid, p0 float64) []float64 {
	out := make([]float64, len(grid))
	if p0 == 0 {
		return out
	}
	for i, t := range grid {
		out[i] = p0 * math.Exp(e.Rate*t)
	}
	return out
}

// Linear is the straight line with the same initial slope, P0 + P0*r*t.
func (e *Exponential) Linear(grid dynamo.Grid, p0 float64) []float64 {
	out := make([]float64, len(grid))
	for i, t := range grid {
		out[i] = p0 + p0*e.Rate*t
	}
	return out
}

// Logistic is density-limited growth dP/dt = r*P*(1 - P/K).
type Logistic struct {
	Rate     float64
	Capacity float64
}

func NewLogistic(r, k float64) (*Logistic, error) {
	if err := check("r", r, nonNegative); err != nil {
		return nil, err
	}
	if err := check("K", k, positive); err != nil {
		return nil, err
	}
	return &Logistic{Rate: r, Capacity: k}, nil
}

func (l *Logistic) StateDim() int    { return 1 }
func (l *Logistic) Labels() []string { return []string{"P"} }

func (l *Logistic) Derive(x dynamo.State, t float64) dynamo.State {
	p := x[0]
	return dynamo.State{l.Rate * p * (1 - p/l.Capacity)}
}

func (l *Logistic) GetParams() map[string]float64 {
	return map[string]float64{"r": l.Rate, "K": l.Capacity}
}

func (l *Logistic) SetParam(name string, value float64) error {
	switch name {
	case "r":
		return assign(&l.Rate, name, value, nonNegative)
	case "K":
		return assign(&l.Capacity, name, value, positive)
	}
	return unknownParam(name)
}

// Solve evaluates K*P0*e^(rt) / (K + P0*(e^(rt) - 1)). Once e^(rt) overflows
// the limit K is returned instead of Inf/Inf. When only the numerator
// overflows the equivalent K*P0 / (P0 + (K - P0)*e^(-rt)) is used; a value
// still out of range is left for the caller to reject.
func (l *Logistic) Solve(grid dynamo.Grid, p0 float64) []float64 {
	out := make([]float64, len(grid))
	k := l.Capacity
	for i, t := range grid {
		g := math.Exp(l.Rate * t)
		if math.IsInf(g, 1) {
			if p0 > 0 {
				out[i] = k
			}
			continue
		}
		v := k * p0 * g / (k + p0*(g-1))
		if math.IsInf(v, 0) || math.IsNaN(v) {
			v = k * p0 / (p0 + (k-p0)/g)
		}
		out[i] = v
	}
	return out
}

// LogisticHarvest is logistic growth with a constant removal rate,
// dP/dt = r*P*(1 - P/K) - h.
type LogisticHarvest struct {
	Rate     float64
	Capacity float64
	Harvest  float64
}

func NewLogisticHarvest(r, k, h float64) (*LogisticHarvest, error) {
	if err := check("r", r, nonNegative); err != nil {
		return nil, err
	}
	if err := check("K", k, positive); err != nil {
		return nil, err
	}
	if err := check("h", h, nonNegative); err != nil {
		return nil, err
	}
	return &LogisticHarvest{Rate: r, Capacity: k, Harvest: h}, nil
}

func (m *LogisticHarvest) StateDim() int    { return 1 }
func (m *LogisticHarvest) Labels() []string { return []string{"P"} }

// Derive evaluates the growth term on max(P, 0). Below zero only the
// harvest acts, so an overharvested run ramps down linearly instead of
// diverging to -Inf in finite time; callers clip the negative tail.
func (m *LogisticHarvest) Derive(x dynamo.State, t float64) dynamo.State {
	p := math.Max(x[0], 0)
	return dynamo.State{m.Rate*p*(1-p/m.Capacity) - m.Harvest}
}

// MaxSustainableYield is the largest harvest rK/4 that still admits a positive
// equilibrium. Any h above it drives every initial population to zero.
func (m *LogisticHarvest) MaxSustainableYield() float64 {
	return m.Rate * m.Capacity / 4
}

func (m *LogisticHarvest) GetParams() map[string]float64 {
	return map[string]float64{"r": m.Rate, "K": m.Capacity, "h": m.Harvest}
}

func (m *LogisticHarvest) SetParam(name string, value float64) error {
	switch name {
	case "r":
		return assign(&m.Rate, name, value, nonNegative)
	case "K":
		return assign(&m.Capacity, name, value, positive)
	case "h":
		return assign(&m.Harvest, name, value, nonNegative)
	}
	return unknownParam(name)
}

// Allee is logistic growth with a critical threshold A below which the
// population declines: dP/dt = r*P*(1 - P/K)*(P/A - 1).
type Allee struct {
	Rate      float64
	Capacity  float64
	Threshold float64
}

func NewAllee(r, k, a float64) (*Allee, error) {
	if err := check("r", r, nonNegative); err != nil {
		return nil, err
	}
	if err := check("K", k, positive); err != nil {
		return nil, err
	}
	if err := check("A", a, positive); err != nil {
		return nil, err
	}
	return &Allee{Rate: r, Capacity: k, Threshold: a}, nil
}

func (m *Allee) StateDim() int    { return 1 }
func (m *Allee) Labels() []string { return []string{"P"} }

func (m *Allee) Derive(x dynamo.State, t float64) dynamo.State {
	p := x[0]
	return dynamo.State{m.Rate * p * (1 - p/m.Capacity) * (p/m.Threshold - 1)}
}

func (m *Allee) GetParams() map[string]float64 {
	return map[string]float64{"r": m.Rate, "K": m.Capacity, "A": m.Threshold}
}

func (m *Allee) SetParam(name string, value float64) error {
	switch name {
	case "r":
		return assign(&m.Rate, name, value, nonNegative)
	case "K":
		return assign(&m.Capacity, name, value, positive)
	case "A":
		return assign(&m.Threshold, name, value, positive)
	}
	return unknownParam(name)
}
