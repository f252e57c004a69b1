// Package dynamo provides the core primitives shared by the simulation engine.
//
// The package defines the vocabulary every other package speaks:
//
//   - [State]: one sample of all compartments
//   - [System]: ODE right-hand side (dX/dt = f(X, t))
//   - [Params]: named, read-only model parameters
//   - [Grid]: strictly increasing output times
//   - [Trajectory]: solved states aligned with a grid
//
// # Errors
//
// Failures are tagged so callers can branch instead of receiving a flat,
// zero-filled result:
//
//	res, err := experiment.RunLogistic(ctx, in)
//	switch {
//	case errors.Is(err, dynamo.ErrInvalidInput):
//	    // re-prompt the user
//	case errors.Is(err, dynamo.ErrIntegration):
//	    // report divergence
//	}
//
// # Thread Safety
//
// Nothing in this package holds shared mutable state. Trajectories are owned
// by the call that produced them.
package dynamo
