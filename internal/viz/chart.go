package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/Jason9-Alex/Lab-Modelos/internal/analysis"
	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/experiment"
	"github.com/Jason9-Alex/Lab-Modelos/internal/vectorfield"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Magenta,
	asciigraph.Yellow,
	asciigraph.Cyan,
}

type ChartOptions struct {
	Width  int
	Height int
	// Extra adds the named reference series (capacity, threshold, linear)
	// after the state columns.
	Extra bool
}

func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 80, Height: 15, Extra: true}
}

// Plot draws every state column of the result on one chart. The caption
// names the columns in color order.
func Plot(res *experiment.Result, opts ChartOptions) string {
	tr := res.Trajectory
	if tr == nil || tr.Len() == 0 {
		return ""
	}

	data := tr.Columns()
	names := append([]string(nil), tr.Labels...)
	if opts.Extra {
		keys := make([]string, 0, len(res.Extra))
		for k := range res.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			data = append(data, res.Extra[k])
			names = append(names, k)
		}
	}

	return plotMany(data, names, fmt.Sprintf("%s over t=[0, %g]", res.Model, tr.Times[tr.Len()-1]), opts)
}

// PlotSeries draws a single labelled column.
func PlotSeries(tr *dynamo.Trajectory, label string, opts ChartOptions) string {
	series, ok := tr.SeriesByLabel(label)
	if !ok || len(series) == 0 {
		return ""
	}
	return plotMany([][]float64{series}, []string{label}, label, opts)
}

func plotMany(data [][]float64, names []string, caption string, opts ChartOptions) string {
	colors := make([]asciigraph.AnsiColor, len(data))
	legend := make([]string, len(names))
	for i := range data {
		colors[i] = seriesColors[i%len(seriesColors)]
		legend[i] = fmt.Sprintf("%s%s%s", colors[i], names[i], asciigraph.Default)
	}

	return asciigraph.PlotMany(data,
		asciigraph.Height(opts.Height),
		asciigraph.Width(opts.Width),
		asciigraph.Precision(2),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption+"  "+strings.Join(legend, " ")),
	)
}

// PlotSweep charts the final value against the swept parameter. Failed
// points are left out of the line and reported below it.
func PlotSweep(param string, points []analysis.SweepPoint, opts ChartOptions) string {
	finals := make([]float64, 0, len(points))
	var failed []string
	for _, p := range points {
		if p.Failed() {
			failed = append(failed, fmt.Sprintf("%s=%g (%s)", param, p.Param, p.Err))
			continue
		}
		finals = append(finals, p.Final)
	}

	var b strings.Builder
	if len(finals) > 0 {
		b.WriteString(asciigraph.Plot(finals,
			asciigraph.Height(opts.Height),
			asciigraph.Width(opts.Width),
			asciigraph.Caption("final value vs "+param)))
		b.WriteString("\n")
	}
	if len(failed) > 0 {
		b.WriteString(ErrorStyle.Render("failed: ") + strings.Join(failed, ", ") + "\n")
	}
	return b.String()
}

// Quiver draws the field as Braille line segments, one per mesh point, with
// lengths scaled to the largest magnitude.
func Quiver(f *vectorfield.Field, width, height int) string {
	c := NewCanvas(width, height)
	rows, cols := f.Rows(), f.Cols()
	if rows == 0 || cols == 0 {
		return c.String()
	}

	pw, ph := float64(width*2-1), float64(height*4-1)
	xmin, xmax := f.X[0][0], f.X[0][cols-1]
	ymin, ymax := f.Y[0][0], f.Y[rows-1][0]
	sx := spanScale(pw, xmax-xmin)
	sy := spanScale(ph, ymax-ymin)

	cell := math.Min(pw/float64(max(cols, 2)-1), ph/float64(max(rows, 2)-1)) * 0.8
	mag := f.MaxMagnitude
	if mag == 0 {
		mag = 1
	}

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			x0 := (f.X[i][j] - xmin) * sx
			y0 := ph - (f.Y[i][j]-ymin)*sy
			dx := f.FX[i][j] / mag * cell
			dy := -f.FY[i][j] / mag * cell
			c.DrawLine(int(math.Round(x0)), int(math.Round(y0)), int(math.Round(x0+dx)), int(math.Round(y0+dy)))
		}
	}
	return c.String()
}

func spanScale(pixels, span float64) float64 {
	if span == 0 {
		return 0
	}
	return pixels / span
}
