// Package analysis derives summary quantities from solved trajectories.
//
// All functions are pure and operate on plain series:
//
//   - [Peak]: first index of the maximum of a series
//   - [ReproductionNumber], [DoublingTime]: closed-form threshold quantities
//   - [ClipNegative], [Extinct], [ClassifyAllee]: population floor handling
//   - [ConservationDrift]: relative deviation of compartment totals
//   - [SweepValues], [SweepToASCII]: one-parameter sweep grid and rendering
//
// Undefined quantities are reported with an ok flag or a nil pointer in
// [Summary], never as NaN:
//
//	if td, ok := analysis.DoublingTime(r); ok {
//	    fmt.Printf("doubles every %.2f\n", td)
//	}
package analysis
