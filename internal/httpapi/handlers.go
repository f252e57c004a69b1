package httpapi

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/config"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/export"
	"github.com/Jason9-Alex/Lab-Modelos/internal/vectorfield"
)

type modelDescriptor struct {
	experiment.ModelInfo
	Presets []string `json:"presets,omitempty"`
}

func (s *Server) describe(name string) (modelDescriptor, error) {
	info, err := s.registry.Describe(name)
	if err != nil {
		return modelDescriptor{}, err
	}
	return modelDescriptor{ModelInfo: info, Presets: config.ListPresets(name)}, nil
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	names := s.registry.Names()
	models := make([]modelDescriptor, 0, len(names))
	for _, name := range names {
		d, err := s.describe(name)
		if err != nil {
			continue
		}
		models = append(models, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	d, err := s.describe(r.PathValue("name"))
	if err != nil {
		s.writeFailure(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": d})
}

// runRequest names every parameter in Params or Preset. Defaults opts in to
// the model defaults for anything left out.
type runRequest struct {
	Preset   string         `json:"preset"`
	Params   map[string]any `json:"params"`
	Defaults bool           `json:"defaults"`
}

// resolveParams applies the named preset, then the explicit params on top.
func resolveParams(model, preset string, raw map[string]any) (dynamo.Params, error) {
	params := dynamo.Params{}
	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q for %s (available: %v)", preset, model, config.ListPresets(model))
		}
		params = p
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := raw[k].(float64)
		if !ok {
			return nil, fmt.Errorf("parameter %q must be a number", k)
		}
		params[k] = v
	}
	return params, nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	if _, err := s.registry.Describe(name); err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	var req runRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}
	params, err := resolveParams(name, req.Preset, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	run := s.registry.Run
	if req.Defaults {
		run = s.registry.RunWithDefaults
	}
	res, err := run(ctx, name, params)
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, export.NewResultData(res))
}

type sweepRequest struct {
	Preset   string         `json:"preset"`
	Params   map[string]any `json:"params"`
	Defaults bool           `json:"defaults"`
	Param    string         `json:"param"`
	From     float64        `json:"from"`
	To       float64        `json:"to"`
	Steps    int            `json:"steps"`
}

type sweepResponse struct {
	Model  string                `json:"model"`
	Param  string                `json:"param"`
	Points []analysis.SweepPoint `json:"points"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")
	if _, err := s.registry.Describe(name); err != nil {
		s.writeFailure(ctx, w, err)
		return
	}

	var req sweepRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}
	base, err := resolveParams(name, req.Preset, req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	points, err := s.registry.Sweep(ctx, experiment.SweepSpec{
		Model:    name,
		Base:     base,
		Param:    req.Param,
		From:     req.From,
		To:       req.To,
		Steps:    req.Steps,
		Defaults: req.Defaults,
	})
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Model: name, Param: req.Param, Points: points})
}

// handleVectorField fills omitted request fields from the default field.
func (s *Server) handleVectorField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := vectorfield.DefaultRequest()
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	f, err := vectorfield.EvaluateField(ctx, req)
	if err != nil {
		s.writeFailure(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
