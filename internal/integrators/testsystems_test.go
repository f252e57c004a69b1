package integrators

import "github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int    { return 2 }
func (h *harmonicOscillator) Labels() []string { return []string{"x", "v"} }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) Energy(x dynamo.State) float64 {
	return 0.5 * (x[0]*x[0] + x[1]*x[1])
}

type growth struct{ r float64 }

func (g *growth) StateDim() int    { return 1 }
func (g *growth) Labels() []string { return []string{"P"} }

func (g *growth) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{g.r * x[0]}
}
