package config

import (
	"sort"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

// Presets holds named parameter sets per model. Each preset lists every
// model parameter except points.
var Presets = map[string]map[string]dynamo.Params{
	"exponential": {
		"classroom": {"P0": 100, "r": 0.03, "horizon": 100},
		"decay":     {"P0": 100, "r": -0.05, "horizon": 100},
		"fast":      {"P0": 10, "r": 0.2, "horizon": 30},
	},
	"logistic": {
		"classroom": {"P0": 200, "r": 0.04, "K": 750, "horizon": 100},
		"overshoot": {"P0": 1200, "r": 0.04, "K": 750, "horizon": 150},
		"settle":    {"P0": 200, "r": 0.04, "K": 750, "horizon": 400},
	},
	"harvest": {
		"sustainable": {"P0": 150, "r": 0.5, "K": 300, "h": 30, "horizon": 50},
		"msy":         {"P0": 150, "r": 0.5, "K": 300, "h": 37.5, "horizon": 100},
		"collapse":    {"P0": 150, "r": 0.5, "K": 300, "h": 40, "horizon": 50},
	},
	"allee": {
		"survival":   {"P0": 30, "r": 0.5, "K": 300, "A": 20, "horizon": 50},
		"extinction": {"P0": 10, "r": 0.5, "K": 300, "A": 20, "horizon": 50},
	},
	"sir": {
		"classroom":   {"N": 1000, "beta": 0.4, "gamma": 0.1, "I0": 2, "horizon": 160},
		"flattened":   {"N": 1000, "beta": 0.2, "gamma": 0.1, "I0": 2, "horizon": 300},
		"subcritical": {"N": 1000, "beta": 0.08, "gamma": 0.1, "I0": 10, "horizon": 160},
	},
	"seir": {
		"classroom":    {"N": 1000, "beta": 0.5, "sigma": 0.2, "gamma": 0.1, "E0": 5, "I0": 2, "horizon": 160},
		"long-latency": {"N": 1000, "beta": 0.5, "sigma": 0.05, "gamma": 0.1, "E0": 5, "I0": 2, "horizon": 300},
	},
	"epidemic": {
		"campus": {"N": 7138, "b": 0.0001401, "k": 0.40, "I0": 1, "R0": 0, "horizon": 40},
	},
	"rumor": {
		"office": {"N": 275, "b": 0.004, "k": 0.01, "I0": 1, "R0": 8, "horizon": 15},
	},
	"policy": {
		"city": {"N": 10050, "b": 0.00005, "k": 0.00002, "I0": 50, "R0": 0, "horizon": 100},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) dynamo.Params {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return p.Merge(nil)
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
