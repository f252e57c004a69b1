package metrics

import (
	"fmt"
	"math"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

var (
	_ sim.Metric = (*MinValue)(nil)
	_ sim.Metric = (*MaxValue)(nil)
	_ sim.Metric = (*SumDrift)(nil)
	_ sim.Metric = (*Crossing)(nil)
)

// MinValue tracks the smallest value one compartment takes over a run.
type MinValue struct {
	name    string
	index   int
	min     float64
	samples int
}

func NewMinValue(label string, index int) *MinValue {
	return &MinValue{name: "min_" + label, index: index}
}

func (m *MinValue) Name() string { return m.name }

func (m *MinValue) Observe(x dynamo.State, t float64) {
	if m.index >= len(x) {
		return
	}
	if m.samples == 0 || x[m.index] < m.min {
		m.min = x[m.index]
	}
	m.samples++
}

func (m *MinValue) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.min
}

func (m *MinValue) Reset() {
	m.min = 0
	m.samples = 0
}

type MaxValue struct {
	name    string
	index   int
	max     float64
	at      float64
	samples int
}

func NewMaxValue(label string, index int) *MaxValue {
	return &MaxValue{name: "max_" + label, index: index}
}

func (m *MaxValue) Name() string { return m.name }

func (m *MaxValue) Observe(x dynamo.State, t float64) {
	if m.index >= len(x) {
		return
	}
	// strict comparison keeps the first time of a tied maximum
	if m.samples == 0 || x[m.index] > m.max {
		m.max = x[m.index]
		m.at = t
	}
	m.samples++
}

func (m *MaxValue) Value() float64 {
	if m.samples == 0 {
		return math.NaN()
	}
	return m.max
}

// At returns the time of the maximum.
func (m *MaxValue) At() float64 { return m.at }

func (m *MaxValue) Reset() {
	m.max = 0
	m.at = 0
	m.samples = 0
}

// SumDrift is the largest relative deviation of the compartment total from
// a fixed population.
type SumDrift struct {
	name     string
	total    float64
	maxDrift float64
}

func NewSumDrift(total float64) *SumDrift {
	return &SumDrift{name: "conservation_drift", total: total}
}

func (d *SumDrift) Name() string { return d.name }

func (d *SumDrift) Observe(x dynamo.State, t float64) {
	if d.total == 0 {
		return
	}
	drift := math.Abs(x.Sum()-d.total) / math.Abs(d.total)
	d.maxDrift = math.Max(d.maxDrift, drift)
}

func (d *SumDrift) Value() float64 { return d.maxDrift }

func (d *SumDrift) Reset() { d.maxDrift = 0 }

// Crossing records the first output time at which a compartment falls to or
// below a threshold. Value is +Inf while no crossing has been seen.
type Crossing struct {
	name      string
	index     int
	threshold float64
	at        float64
	crossed   bool
}

func NewCrossing(label string, index int, threshold float64) *Crossing {
	return &Crossing{
		name:      fmt.Sprintf("crossing_%s", label),
		index:     index,
		threshold: threshold,
	}
}

func (c *Crossing) Name() string { return c.name }

func (c *Crossing) Observe(x dynamo.State, t float64) {
	if c.crossed || c.index >= len(x) {
		return
	}
	if x[c.index] <= c.threshold {
		c.crossed = true
		c.at = t
	}
}

func (c *Crossing) Value() float64 {
	if !c.crossed {
		return math.Inf(1)
	}
	return c.at
}

func (c *Crossing) Crossed() bool { return c.crossed }

func (c *Crossing) Reset() {
	c.crossed = false
	c.at = 0
}
