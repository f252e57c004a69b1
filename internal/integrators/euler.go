package integrators

import "github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"

// Euler is the explicit first-order step x + dt*f(x, t). It holds no state.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (Euler) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	next := append(dynamo.State(nil), x...)
	for i, d := range sys.Derive(x, t) {
		next[i] += dt * d
	}
	return next
}
