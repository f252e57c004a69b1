// Package viz renders model results in the terminal.
//
//   - [Plot]: asciigraph line chart of every compartment of a trajectory
//   - [Quiver]: Braille arrow plot of a vector field
//   - [SummaryTable]: the scalar summary of a run
//   - [RunDashboard]: interactive model browser built on Bubble Tea
//
// # Key Bindings
//
//	j/k    - Move selection
//	enter  - Select model / edit parameter
//	h/l    - Nudge parameter by 10%
//	p      - Cycle presets
//	r      - Run
//	esc    - Back
//	q      - Quit
package viz
