package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
)

type SummaryRow struct {
	Label string
	Value string
}

// SummaryRows lists the summary fields that apply to res, in display order.
func SummaryRows(res *experiment.Result) []SummaryRow {
	s := res.Summary
	rows := []SummaryRow{
		{"peak", fmt.Sprintf("%.4g at t=%.4g", s.PeakValue, s.PeakTime)},
		{"final", fmt.Sprintf("%.4g", s.FinalValue)},
	}
	opt := func(label string, v *float64, format string) {
		if v != nil {
			rows = append(rows, SummaryRow{label, fmt.Sprintf(format, *v)})
		}
	}
	opt("R0", s.ReproductionNumber, "%.4g")
	opt("doubling time", s.DoublingTime, "%.4g")
	opt("max sustainable yield", s.MaxSustainableYield, "%.4g")
	opt("final susceptible", s.FinalSusceptible, "%.2f")
	opt("final removed", s.FinalRemoved, "%.2f")
	opt("ever infected", s.EverInfected, "%.2f")
	opt("ever infected %", s.EverInfectedPercent, "%.2f%%")

	if s.ConservationDrift != 0 {
		rows = append(rows, SummaryRow{"conservation drift", fmt.Sprintf("%.2e", s.ConservationDrift)})
	}
	if s.Outcome != "" {
		rows = append(rows, SummaryRow{"outcome", s.Outcome})
	}
	rows = append(rows, SummaryRow{"extinct", fmt.Sprintf("%t", s.Extinct)})
	rows = append(rows, SummaryRow{"solver steps", fmt.Sprintf("%d", res.Steps)})
	return rows
}

// SummaryTable renders the run header, parameters and summary as aligned
// label/value lines.
func SummaryTable(res *experiment.Result) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(strings.ToUpper(res.Model)) + "\n")

	names := res.Params.Names()
	params := make([]string, 0, len(names))
	for _, k := range names {
		params = append(params, fmt.Sprintf("%s=%g", k, res.Params[k]))
	}
	b.WriteString(Subtle.Render(strings.Join(params, "  ")) + "\n\n")

	for _, r := range SummaryRows(res) {
		value := MetricValue.Render(r.Value)
		if r.Label == "outcome" || r.Label == "extinct" {
			value = outcomeStyle(res.Summary).Render(r.Value)
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", MetricLabel.Render(fmt.Sprintf("%-22s", r.Label)), value))
	}
	return b.String()
}

func outcomeStyle(s analysis.Summary) lipgloss.Style {
	if s.Extinct {
		return OutcomeBad
	}
	return OutcomeGood
}
