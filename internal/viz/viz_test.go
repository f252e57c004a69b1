package viz

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
	"github.com/Jason9-Alex/Lab-Modelos/internal/vectorfield"
)

func runModel(t *testing.T, name string, params dynamo.Params) *experiment.Result {
	t.Helper()
	r := experiment.NewRegistry(sim.DefaultConfig())
	res, err := r.RunWithDefaults(context.Background(), name, params)
	if err != nil {
		t.Fatalf("run %s: %v", name, err)
	}
	return res
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(4, 2)
	c.DrawLine(0, 0, 7, 7)

	if !c.Lit(0, 0) || !c.Lit(3, 1) {
		t.Error("expected diagonal cells to be lit")
	}
	if c.Lit(3, 0) {
		t.Error("expected top right cell to stay blank")
	}

	c.Set(-1, 100)
	lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 rows, got %d", len(lines))
	}
}

func TestPlotIncludesLegend(t *testing.T) {
	res := runModel(t, "sir", nil)
	out := Plot(res, ChartOptions{Width: 60, Height: 10})
	if out == "" {
		t.Fatal("expected chart output")
	}
	for _, label := range []string{"sir", "S", "I", "R"} {
		if !strings.Contains(out, label) {
			t.Errorf("chart should mention %q", label)
		}
	}
}

func TestPlotSeries(t *testing.T) {
	res := runModel(t, "logistic", nil)
	if out := PlotSeries(res.Trajectory, "P", DefaultChartOptions()); out == "" {
		t.Error("expected chart for P")
	}
	if out := PlotSeries(res.Trajectory, "Z", DefaultChartOptions()); out != "" {
		t.Error("expected empty chart for unknown label")
	}
}

func TestPlotSweepReportsFailures(t *testing.T) {
	points := []analysis.SweepPoint{
		{Param: 0, Err: dynamo.KindInvalidInput},
		{Param: 100, Final: 100},
		{Param: 200, Final: 200},
	}
	out := PlotSweep("K", points, ChartOptions{Width: 40, Height: 5})
	if !strings.Contains(out, "K=0 (invalid_input)") {
		t.Errorf("expected failure line, got:\n%s", out)
	}
}

func TestQuiver(t *testing.T) {
	f, err := vectorfield.EvaluateField(context.Background(), vectorfield.Request{FX: "X", FY: "Y", XMax: 1, YMax: 1, N: 5})
	if err != nil {
		t.Fatal(err)
	}
	out := Quiver(f, 20, 10)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(lines))
	}
	blank := strings.Repeat(string(rune(brailleBlank)), 20)
	lit := 0
	for _, l := range lines {
		if l != blank {
			lit++
		}
	}
	if lit == 0 {
		t.Error("expected some arrows to be drawn")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 5); got != "─────" {
		t.Errorf("unexpected empty sparkline %q", got)
	}
	if got := Sparkline([]float64{1, 2, 3}, 3); got == "" {
		t.Error("expected sparkline output")
	}
}

func TestSummaryRows(t *testing.T) {
	res := runModel(t, "sir", nil)
	rows := SummaryRows(res)

	labels := make(map[string]bool)
	for _, r := range rows {
		labels[r.Label] = true
	}
	for _, want := range []string{"peak", "R0", "final removed", "extinct"} {
		if !labels[want] {
			t.Errorf("missing row %q", want)
		}
	}
	if labels["doubling time"] {
		t.Error("SIR should not report a doubling time")
	}

	if table := SummaryTable(res); !strings.Contains(table, "SIR") {
		t.Error("expected model title in summary table")
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func TestDashboardFlow(t *testing.T) {
	r := experiment.NewRegistry(sim.DefaultConfig())
	var m tea.Model = NewDashboard(context.Background(), r)

	if !strings.Contains(m.View(), "allee") {
		t.Fatal("menu should list models")
	}

	// allee is first in sorted order
	m, _ = send(m, "enter")
	d := m.(Dashboard)
	if d.state != stateParams || d.info.Name != "allee" {
		t.Fatalf("expected allee params view, got state %d model %q", d.state, d.info.Name)
	}

	m, _ = send(m, "enter", "backspace", "backspace", "1", "0", "enter")
	d = m.(Dashboard)
	if d.params["P0"] != 10 {
		t.Fatalf("expected P0 10 after edit, got %v", d.params["P0"])
	}

	m, cmd := send(m, "r")
	if cmd == nil {
		t.Fatal("expected run command")
	}
	m, _ = m.Update(cmd())
	d = m.(Dashboard)
	if d.state != stateResult || d.err != nil {
		t.Fatalf("expected result view, err=%v", d.err)
	}
	if d.result.Summary.Outcome != analysis.OutcomeExtinction {
		t.Errorf("expected extinction, got %s", d.result.Summary.Outcome)
	}
	if !strings.Contains(m.View(), "extinction") {
		t.Error("result view should show the outcome")
	}
}

func TestDashboardShowsRunErrors(t *testing.T) {
	r := experiment.NewRegistry(sim.DefaultConfig())
	var m tea.Model = NewDashboard(context.Background(), r)

	// harvest is fourth in sorted order
	m, _ = send(m, "down", "down", "down", "enter")
	d := m.(Dashboard)
	if d.info.Name != "harvest" {
		t.Fatalf("expected harvest, got %q", d.info.Name)
	}

	// K is the third parameter
	m, _ = send(m, "down", "down", "enter")
	d = m.(Dashboard)
	d.editBuf = "0"
	m, _ = send(d, "enter")
	m, cmd := send(m, "r")
	m, _ = m.Update(cmd())
	d = m.(Dashboard)
	if dynamo.KindOf(d.err) != dynamo.KindInvalidInput {
		t.Errorf("expected invalid_input, got %v", d.err)
	}
	if !strings.Contains(m.View(), "invalid_input") {
		t.Error("result view should show the error kind")
	}
}

func TestDashboardPresets(t *testing.T) {
	r := experiment.NewRegistry(sim.DefaultConfig())
	var m tea.Model = NewDashboard(context.Background(), r)
	m, _ = send(m, "enter", "p")
	d := m.(Dashboard)
	if d.preset != "extinction" || d.params["P0"] != 10 {
		t.Errorf("expected extinction preset with P0 10, got %q %v", d.preset, d.params["P0"])
	}
}
