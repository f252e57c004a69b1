package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes simulation metrics. A nil *Collector is valid and records
// nothing, so hosts can run without a registry.
type Collector struct {
	gatherer prometheus.Gatherer

	Simulations *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	SolverSteps *prometheus.HistogramVec
}

// NewCollector registers simulation metrics against reg, reusing collectors
// that are already registered under the same name.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	sims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "labmodelos_simulations_total",
		Help: "Model runs by model and outcome (ok or error kind).",
	}, []string{"model", "outcome"})
	sims, err := registerCounterVec(reg, sims, "labmodelos_simulations_total")
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labmodelos_simulation_duration_seconds",
		Help:    "Wall time of a model run including post-processing.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"model"})
	duration, err = registerHistogramVec(reg, duration, "labmodelos_simulation_duration_seconds")
	if err != nil {
		return nil, err
	}

	steps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "labmodelos_solver_steps",
		Help:    "Internal integrator steps taken per run.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"model"})
	steps, err = registerHistogramVec(reg, steps, "labmodelos_solver_steps")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		Simulations: sims,
		Duration:    duration,
		SolverSteps: steps,
	}, nil
}

func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveRun records one finished run. outcome is "ok" or an error kind.
func (c *Collector) ObserveRun(model, outcome string, d time.Duration, steps int) {
	if c == nil {
		return
	}
	c.Simulations.WithLabelValues(model, outcome).Inc()
	c.Duration.WithLabelValues(model).Observe(d.Seconds())
	if steps > 0 {
		c.SolverSteps.WithLabelValues(model).Observe(float64(steps))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
