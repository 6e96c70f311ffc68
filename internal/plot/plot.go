// Package plot draws ASCII line charts of sample and spectrum series.
package plot

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Chart describes one ASCII chart
type Chart struct {
	Title  string
	XUnit  string // Appended to the axis labels, e.g. "s" or "Hz"
	YLabel string
	Width  int
	Height int
}

// Downsample picks at most n evenly spaced points from xs and ys.
func Downsample(xs, ys []float64, n int) ([]float64, []float64) {
	if n <= 0 || len(ys) <= n {
		return xs, ys
	}
	step := float64(len(ys)) / float64(n)
	outX := make([]float64, n)
	outY := make([]float64, n)
	for i := range outY {
		j := int(float64(i) * step)
		outX[i] = xs[j]
		outY[i] = ys[j]
	}
	return outX, outY
}

// Render writes the chart of ys against xs to w. The series must have equal
// length.
func (c Chart) Render(w io.Writer, xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("series length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	if c.Width < 2 || c.Height < 2 {
		return fmt.Errorf("chart too small: %dx%d", c.Width, c.Height)
	}
	if len(ys) == 0 {
		_, err := fmt.Fprintf(w, "%s: no samples to display\n\n", c.Title)
		return err
	}

	lo, hi := floats.Min(ys), floats.Max(ys)
	if hi == lo {
		hi = lo + 1e-6
	}

	grid := make([][]rune, c.Height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", c.Width))
	}

	for i, v := range ys {
		x := 0
		if len(ys) > 1 {
			x = i * (c.Width - 1) / (len(ys) - 1)
		}
		y := int(float64(c.Height-1) * (1 - (v-lo)/(hi-lo)))
		y = min(max(y, 0), c.Height-1)

		if grid[y][x] == ' ' {
			grid[y][x] = '*'
		} else {
			grid[y][x] = '#'
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Title)
	fmt.Fprintf(&b, "Points: %d | Range: %.3f to %.3f\n\n", len(ys), lo, hi)
	if c.YLabel != "" {
		fmt.Fprintf(&b, "%s\n", c.YLabel)
	}
	for i, row := range grid {
		label := lo + float64(c.Height-1-i)/float64(c.Height-1)*(hi-lo)
		fmt.Fprintf(&b, "%10s |%s|\n", formatTick(label), string(row))
	}
	fmt.Fprintf(&b, "%10s +%s+\n", "", strings.Repeat("-", c.Width))

	first := fmt.Sprintf("%s%s", formatTick(xs[0]), c.XUnit)
	mid := fmt.Sprintf("%s%s", formatTick(xs[len(xs)/2]), c.XUnit)
	last := fmt.Sprintf("%s%s", formatTick(xs[len(xs)-1]), c.XUnit)
	axis := []rune(strings.Repeat(" ", c.Width+2))
	place(axis, 1, first)
	place(axis, 1+c.Width/2-len(mid)/2, mid)
	place(axis, c.Width+2-len(last), last)
	fmt.Fprintf(&b, "%10s %s\n\n", "", strings.TrimRight(string(axis), " "))

	_, err := io.WriteString(w, b.String())
	return err
}

func place(line []rune, at int, label string) {
	at = max(at, 0)
	for i, r := range label {
		if at+i < len(line) {
			line[at+i] = r
		}
	}
}

func formatTick(v float64) string {
	switch a := math.Abs(v); {
	case a == 0:
		return "0"
	case a >= 10000 || a < 0.01:
		return fmt.Sprintf("%.2e", v)
	case a >= 100:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.3f", v)
	}
}
