package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

// ErrUnknownModel is returned for names the registry does not know.
var ErrUnknownModel = errors.New("unknown model")

// MaxPoints bounds the output resolution accepted through the registry.
const MaxPoints = 100_000

type ParamSpec struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Doc     string  `json:"doc"`
}

type ModelInfo struct {
	Name   string      `json:"name"`
	Title  string      `json:"title"`
	Labels []string    `json:"labels"`
	Params []ParamSpec `json:"params"`
}

type entry struct {
	info ModelInfo
	run  func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error)
}

// Registry resolves models by name and runs them from a flat parameter map.
type Registry struct {
	engine  *Engine
	entries map[string]entry
}

func NewRegistry(solver sim.Config, opts ...Option) *Registry {
	r := &Registry{
		engine:  NewEngine(solver, opts...),
		entries: make(map[string]entry),
	}

	r.add(ModelInfo{
		Name: "exponential", Title: "Exponential growth", Labels: []string{"P"},
		Params: []ParamSpec{
			{"P0", 100, "initial population"},
			{"r", 0.03, "growth rate (negative for decay)"},
			{"horizon", 100, "simulated time"},
			{"points", ExponentialPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunExponential(ctx, ExponentialInput{P0: p["P0"], R: p["r"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.add(ModelInfo{
		Name: "logistic", Title: "Logistic growth", Labels: []string{"P"},
		Params: []ParamSpec{
			{"P0", 200, "initial population"},
			{"r", 0.04, "intrinsic growth rate"},
			{"K", 750, "carrying capacity"},
			{"horizon", 100, "simulated time"},
			{"points", LogisticPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunLogistic(ctx, LogisticInput{P0: p["P0"], R: p["r"], K: p["K"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.add(ModelInfo{
		Name: "harvest", Title: "Logistic growth with constant harvest", Labels: []string{"P"},
		Params: []ParamSpec{
			{"P0", 150, "initial population"},
			{"r", 0.5, "intrinsic growth rate"},
			{"K", 300, "carrying capacity"},
			{"h", 30, "harvest per unit time (extinction above rK/4)"},
			{"horizon", 50, "simulated time"},
			{"points", HarvestPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunLogisticHarvest(ctx, HarvestInput{P0: p["P0"], R: p["r"], K: p["K"], H: p["h"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.add(ModelInfo{
		Name: "allee", Title: "Allee effect", Labels: []string{"P"},
		Params: []ParamSpec{
			{"P0", 30, "initial population"},
			{"r", 0.5, "intrinsic growth rate"},
			{"K", 300, "carrying capacity"},
			{"A", 20, "critical threshold"},
			{"horizon", 50, "simulated time"},
			{"points", AlleePoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunAllee(ctx, AlleeInput{P0: p["P0"], R: p["r"], K: p["K"], A: p["A"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.add(ModelInfo{
		Name: "sir", Title: "SIR epidemic", Labels: []string{"S", "I", "R"},
		Params: []ParamSpec{
			{"N", 1000, "total population"},
			{"beta", 0.4, "transmission rate"},
			{"gamma", 0.1, "recovery rate"},
			{"I0", 2, "initially infected"},
			{"horizon", 160, "simulated days"},
			{"points", SIRPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunSIR(ctx, SIRInput{N: p["N"], Beta: p["beta"], Gamma: p["gamma"], I0: p["I0"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.add(ModelInfo{
		Name: "seir", Title: "SEIR epidemic", Labels: []string{"S", "E", "I", "R"},
		Params: []ParamSpec{
			{"N", 1000, "total population"},
			{"beta", 0.5, "transmission rate"},
			{"sigma", 0.2, "incubation rate (1/latent period)"},
			{"gamma", 0.1, "recovery rate"},
			{"E0", 5, "initially exposed"},
			{"I0", 2, "initially infected"},
			{"horizon", 160, "simulated days"},
			{"points", SEIRPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunSEIR(ctx, SEIRInput{N: p["N"], Beta: p["beta"], Sigma: p["sigma"], Gamma: p["gamma"], E0: p["E0"], I0: p["I0"], Horizon: p["horizon"], Points: int(p["points"])})
	})

	r.addDiffusion(models.VariantEpidemic, "Case study: campus epidemic", 7138, 0.0001401, 0.40, 1, 0, 40)
	r.addDiffusion(models.VariantRumor, "Case study: rumor spreading", 275, 0.004, 0.01, 1, 8, 15)
	r.addDiffusion(models.VariantPolicy, "Case study: public policy adoption", 10050, 0.00005, 0.00002, 50, 0, 100)

	return r
}

func (r *Registry) addDiffusion(v models.Variant, title string, n, b, k, i0, r0, horizon float64) {
	r.add(ModelInfo{
		Name: string(v), Title: title, Labels: []string{"S", "I", "R"},
		Params: []ParamSpec{
			{"N", n, "total population"},
			{"b", b, "contact rate (per pair per unit time)"},
			{"k", k, "removal rate"},
			{"I0", i0, "initial " + v.Compartments()[1]},
			{"R0", r0, "initial " + v.Compartments()[2]},
			{"horizon", horizon, "simulated days"},
			{"points", DiffusionPoints, "output samples"},
		},
	}, func(e *Engine, ctx context.Context, p dynamo.Params) (*Result, error) {
		return e.RunDiffusion(ctx, DiffusionInput{Variant: v, N: p["N"], B: p["b"], K: p["k"], I0: p["I0"], R0: p["R0"], Horizon: p["horizon"], Points: int(p["points"])})
	})
}

func (r *Registry) add(info ModelInfo, run func(*Engine, context.Context, dynamo.Params) (*Result, error)) {
	r.entries[info.Name] = entry{info: info, run: run}
}

func (r *Registry) Engine() *Engine { return r.engine }

// Names lists the registered models in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Describe(name string) (ModelInfo, error) {
	en, ok := r.entries[name]
	if !ok {
		return ModelInfo{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return en.info, nil
}

// Defaults returns the default parameters of a model.
func (r *Registry) Defaults(name string) (dynamo.Params, error) {
	info, err := r.Describe(name)
	if err != nil {
		return nil, err
	}
	p := make(dynamo.Params, len(info.Params))
	for _, spec := range info.Params {
		p[spec.Name] = spec.Default
	}
	return p, nil
}

// Resolve checks params against the model's parameter list and returns the
// full set to run with. Every parameter but points must be given unless
// fillDefaults is set, in which case missing ones take the model default.
// A missing points takes the model's output resolution.
func (r *Registry) Resolve(name string, params dynamo.Params, fillDefaults bool) (dynamo.Params, error) {
	info, err := r.Describe(name)
	if err != nil {
		return nil, err
	}
	defaults, _ := r.Defaults(name)
	for _, k := range params.Names() {
		if _, ok := defaults[k]; !ok {
			return nil, &dynamo.InputError{Param: k, Value: params[k], Reason: fmt.Sprintf("is not a parameter of %s", name)}
		}
	}

	p := params.Merge(nil)
	for _, spec := range info.Params {
		if _, ok := p[spec.Name]; ok {
			continue
		}
		if fillDefaults || spec.Name == "points" {
			p[spec.Name] = spec.Default
			continue
		}
		if _, err := p.Require(spec.Name); err != nil {
			return nil, err
		}
	}

	pts := p["points"]
	if err := dynamo.CheckFinite("points", pts); err != nil {
		return nil, err
	}
	if pts != math.Trunc(pts) || pts < 2 || pts > MaxPoints {
		return nil, &dynamo.InputError{Param: "points", Value: pts, Reason: "must be an integer in [2, 100000]"}
	}
	for _, k := range p.Names() {
		if err := dynamo.CheckFinite(k, p[k]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Run runs a model with exactly the parameters given. Unknown keys, missing
// parameters and a non-integral point count are rejected.
func (r *Registry) Run(ctx context.Context, name string, params dynamo.Params) (*Result, error) {
	return r.run(ctx, name, params, false)
}

// RunWithDefaults is Run with missing parameters taken from the model
// defaults listed by Describe.
func (r *Registry) RunWithDefaults(ctx context.Context, name string, params dynamo.Params) (*Result, error) {
	return r.run(ctx, name, params, true)
}

func (r *Registry) run(ctx context.Context, name string, params dynamo.Params, fillDefaults bool) (*Result, error) {
	en, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	p, err := r.Resolve(name, params, fillDefaults)
	if err != nil {
		return nil, err
	}
	return en.run(r.engine, ctx, p)
}
