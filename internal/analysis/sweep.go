package analysis

import (
	"fmt"
	"math"
	"strings"
)

// SweepPoint is the outcome of one run in a one-parameter sweep. Failed runs
// keep their place with Err set to the error kind.
type SweepPoint struct {
	Param     float64 `json:"param"`
	Final     float64 `json:"final"`
	Peak      float64 `json:"peak"`
	PeakTime  float64 `json:"peak_time"`
	Extinct   bool    `json:"extinct"`
	Err       string  `json:"error,omitempty"`
	ErrDetail string  `json:"error_detail,omitempty"`
}

func (p SweepPoint) Failed() bool { return p.Err != "" }

// SweepValues returns steps evenly spaced values over [from, to].
func SweepValues(from, to float64, steps int) ([]float64, error) {
	if steps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 steps, got %d", steps)
	}
	if math.IsNaN(from) || math.IsNaN(to) || math.IsInf(from, 0) || math.IsInf(to, 0) {
		return nil, fmt.Errorf("sweep bounds must be finite")
	}
	values := make([]float64, steps)
	step := (to - from) / float64(steps-1)
	for i := range values {
		values[i] = from + float64(i)*step
	}
	values[steps-1] = to
	return values, nil
}

// SweepToASCII plots the final value of each sweep point as a dot column,
// failed points as 'x' on the bottom row.
func SweepToASCII(data []SweepPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	found := false
	for _, p := range data {
		if p.Failed() {
			continue
		}
		if !found {
			minVal, maxVal = p.Final, p.Final
			found = true
			continue
		}
		minVal = math.Min(minVal, p.Final)
		maxVal = math.Max(maxVal, p.Final)
	}
	if !found {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for i, p := range data {
		col := i * width / len(data)
		if col >= width {
			col = width - 1
		}
		if p.Failed() {
			canvas[height-1][col] = 'x'
			continue
		}
		row := height - 1 - int((p.Final-minVal)/(maxVal-minVal)*float64(height-1))
		if row >= 0 && row < height {
			canvas[row][col] = '•'
		}
	}

	var b strings.Builder
	for _, row := range canvas {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}
