package integrators

import "github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"

// RK4 is the classical fourth-order Runge-Kutta step.
type RK4 struct {
	stages [4]dynamo.State
	trial  dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

// rk4Nodes are the stage offsets as fractions of dt; stage i+1 is evaluated
// at x + rk4Nodes[i+1]*dt*k_i.
var rk4Nodes = [4]float64{0, 0.5, 0.5, 1}

func (r *RK4) grow(n int) {
	if len(r.trial) == n {
		return
	}
	for i := range r.stages {
		r.stages[i] = make(dynamo.State, n)
	}
	r.trial = make(dynamo.State, n)
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	r.grow(len(x))

	copy(r.stages[0], sys.Derive(x, t))
	for s := 1; s < 4; s++ {
		h := rk4Nodes[s] * dt
		prev := r.stages[s-1]
		for i, xi := range x {
			r.trial[i] = xi + h*prev[i]
		}
		copy(r.stages[s], sys.Derive(r.trial, t+h))
	}

	k1, k2, k3, k4 := r.stages[0], r.stages[1], r.stages[2], r.stages[3]
	next := make(dynamo.State, len(x))
	for i, xi := range x {
		next[i] = xi + dt*(k1[i]+2*(k2[i]+k3[i])+k4[i])/6
	}
	return next
}
