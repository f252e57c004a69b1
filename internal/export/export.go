// Package export writes model results, sweeps and vector fields as JSON or
// CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/vectorfield"
)

// ResultData is the serialized form of an experiment.Result. Series are keyed
// by state label. Non-finite metrics are written as null.
type ResultData struct {
	Model   string               `json:"model"`
	Params  map[string]float64   `json:"params"`
	Steps   int                  `json:"steps"`
	Times   []float64            `json:"times"`
	Labels  []string             `json:"labels"`
	Series  map[string][]float64 `json:"series"`
	Extra   map[string][]float64 `json:"extra,omitempty"`
	Summary analysis.Summary     `json:"summary"`
	Metrics map[string]*float64  `json:"metrics,omitempty"`
}

func NewResultData(res *experiment.Result) ResultData {
	tr := res.Trajectory
	data := ResultData{
		Model:   res.Model,
		Params:  res.Params,
		Steps:   res.Steps,
		Times:   tr.Times,
		Labels:  tr.Labels,
		Series:  make(map[string][]float64, len(tr.Labels)),
		Extra:   res.Extra,
		Summary: res.Summary,
	}
	for i, label := range tr.Labels {
		data.Series[label] = tr.Series(i)
	}
	if len(res.Metrics) > 0 {
		data.Metrics = make(map[string]*float64, len(res.Metrics))
		for name, v := range res.Metrics {
			data.Metrics[name] = finite(v)
		}
	}
	return data
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WriteResultJSON(w io.Writer, res *experiment.Result) error {
	return WriteJSON(w, NewResultData(res))
}

// WriteResultCSV writes one row per output sample: time, every state label,
// then the extra series in name order.
func WriteResultCSV(w io.Writer, res *experiment.Result) error {
	tr := res.Trajectory
	extra := make([]string, 0, len(res.Extra))
	for name := range res.Extra {
		extra = append(extra, name)
	}
	sort.Strings(extra)

	cw := csv.NewWriter(w)
	header := append([]string{"time"}, tr.Labels...)
	header = append(header, extra...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, t := range tr.Times {
		row := make([]string, 0, len(header))
		row = append(row, formatFloat(t))
		for _, v := range tr.States[i] {
			row = append(row, formatFloat(v))
		}
		for _, name := range extra {
			col := res.Extra[name]
			if i < len(col) {
				row = append(row, formatFloat(col[i]))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteSweepCSV(w io.Writer, param string, points []analysis.SweepPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{param, "final", "peak", "peak_time", "extinct", "error"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{formatFloat(p.Param), "", "", "", "", p.Err}
		if !p.Failed() {
			row[1] = formatFloat(p.Final)
			row[2] = formatFloat(p.Peak)
			row[3] = formatFloat(p.PeakTime)
			row[4] = strconv.FormatBool(p.Extinct)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFieldCSV flattens the mesh row by row into x, y, fx, fy, magnitude.
func WriteFieldCSV(w io.Writer, f *vectorfield.Field) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "fx", "fy", "magnitude"}); err != nil {
		return err
	}
	for i := range f.X {
		for j := range f.X[i] {
			u, v := f.FX[i][j], f.FY[i][j]
			row := []string{
				formatFloat(f.X[i][j]),
				formatFloat(f.Y[i][j]),
				formatFloat(u),
				formatFloat(v),
				formatFloat(math.Hypot(u, v)),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile creates path and hands it to write.
func ToFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
