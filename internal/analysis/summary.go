package analysis

import (
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

const (
	// ExtinctionThreshold is the level at or below which a clipped population
	// counts as extinct.
	ExtinctionThreshold = 1e-9

	OutcomeSurvival   = "survival"
	OutcomeExtinction = "extinction"
)

// Summary holds the scalar results of one model run. Pointer fields are nil
// when the quantity is undefined for the parameters given.
type Summary struct {
	PeakIndex          int      `json:"peak_index"`
	PeakTime           float64  `json:"peak_time"`
	PeakValue          float64  `json:"peak_value"`
	FinalValue         float64  `json:"final_value"`
	ReproductionNumber *float64 `json:"reproduction_number,omitempty"`
	DoublingTime       *float64 `json:"doubling_time,omitempty"`
	Extinct            bool     `json:"extinct"`
	Outcome            string   `json:"outcome,omitempty"`
	ConservationDrift  float64  `json:"conservation_drift,omitempty"`

	MaxSustainableYield *float64 `json:"max_sustainable_yield,omitempty"`

	FinalSusceptible    *float64 `json:"final_susceptible,omitempty"`
	FinalRemoved        *float64 `json:"final_removed,omitempty"`
	EverInfected        *float64 `json:"ever_infected,omitempty"`
	EverInfectedPercent *float64 `json:"ever_infected_percent,omitempty"`
}

// Ptr returns a pointer to v for the optional Summary fields.
func Ptr(v float64) *float64 { return &v }

// Peak returns the index, time and value of the first maximum of series.
// It returns index -1 for an empty series.
func Peak(series, times []float64) (int, float64, float64) {
	if len(series) == 0 {
		return -1, 0, 0
	}
	idx := 0
	for i, v := range series {
		if v > series[idx] {
			idx = i
		}
	}
	t := 0.0
	if idx < len(times) {
		t = times[idx]
	}
	return idx, t, series[idx]
}

// ReproductionNumber is in*s0/out, undefined when out is zero.
func ReproductionNumber(in, s0, out float64) (float64, bool) {
	if out == 0 {
		return 0, false
	}
	return in * s0 / out, true
}

// DoublingTime is ln2/r for growth, undefined (infinite) otherwise.
func DoublingTime(r float64) (float64, bool) {
	if r <= 0 {
		return 0, false
	}
	return math.Ln2 / r, true
}

// ClipNegative returns a copy of series with negative values replaced by zero
// and whether any replacement happened.
func ClipNegative(series []float64) ([]float64, bool) {
	out := make([]float64, len(series))
	clipped := false
	for i, v := range series {
		if v < 0 {
			v = 0
			clipped = true
		}
		out[i] = v
	}
	return out, clipped
}

// Extinct reports whether any sample is at or below threshold.
func Extinct(series []float64, threshold float64) bool {
	for _, v := range series {
		if v <= threshold {
			return true
		}
	}
	return false
}

func Final(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// ClassifyAllee maps the final population of an Allee run to its outcome.
// Fewer than one individual left counts as extinction.
func ClassifyAllee(final float64) string {
	if final < 1 {
		return OutcomeExtinction
	}
	return OutcomeSurvival
}

// ConservationDrift is max_t |sum(x(t)) - total| / total over a trajectory.
func ConservationDrift(tr *dynamo.Trajectory, total float64) float64 {
	if total == 0 {
		return 0
	}
	drift := 0.0
	for _, x := range tr.States {
		drift = math.Max(drift, math.Abs(x.Sum()-total)/math.Abs(total))
	}
	return drift
}
