package sim

import (
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

const epsilon = 2.220446049250313e-16

// initialStep estimates a starting step from the size of the state, its
// derivative and a finite-difference second derivative (Hairer, Norsett &
// Wanner, Solving ODEs I, II.4).
func initialStep(sys dynamo.System, x dynamo.State, t float64, tol dynamo.Tolerance, order int, maxStep float64) (float64, bool) {
	n := len(x)
	f0 := sys.Derive(x, t)
	if !f0.IsValid() {
		return 0, false
	}

	dnf, dny := 0.0, 0.0
	for i := 0; i < n; i++ {
		rc := tol.Abs + tol.Rel*math.Abs(x[i])
		dnf += (f0[i] / rc) * (f0[i] / rc)
		dny += (x[i] / rc) * (x[i] / rc)
	}

	var h float64
	if math.Min(dnf, dny) < 1e-10 {
		h = 1e-6
	} else {
		h = 1e-2 * math.Sqrt(dny/dnf)
	}
	h = math.Min(h, maxStep)

	y2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		y2[i] = x[i] + h*f0[i]
	}
	f2 := sys.Derive(y2, t+h)

	der2 := 0.0
	for i := 0; i < n; i++ {
		rc := tol.Abs + tol.Rel*math.Abs(x[i])
		der2 += ((f2[i] - f0[i]) / rc) * ((f2[i] - f0[i]) / rc)
	}
	der2 = math.Sqrt(der2) / h
	der12 := math.Max(der2, math.Sqrt(dnf))

	var h1 float64
	if der12 <= 1e-15 || math.IsNaN(der12) {
		h1 = math.Max(1e-6, h*1e-3)
	} else {
		h1 = math.Pow(1e-2/der12, 1.0/float64(order))
	}
	return math.Min(100*h, math.Min(h1, maxStep)), true
}
