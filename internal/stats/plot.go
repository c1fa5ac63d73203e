// Package stats renders progress analytics for the terminal.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Curve is one named line on a chart. Values are percentages in [0, 100].
type Curve struct {
	Name   string
	Values []float64
}

// Chart draws curves with braille dots on a fixed 0-100 axis.
type Chart struct {
	Title  string
	Width  int // plot columns; 0 fits the terminal
	Height int // plot rows; 0 uses a default
	Color  bool
}

const (
	defaultChartHeight = 8
	minChartWidth      = 10
	fallbackTermWidth  = 80
	axisSeparator      = " │ "
	axisLabelWidth     = 3
	ansiReset          = "\x1b[0m"
	dotsPerCellX       = 2
	dotsPerCellY       = 4
	brailleBase        = 0x2800
)

// brailleBits maps a dot inside a 2x4 cell to its bit in the braille block.
var brailleBits = [dotsPerCellX][dotsPerCellY]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// dash patterns keep overlapping curves apart without color.
var dashes = []struct {
	name     string
	on, span int
}{
	{"solid", 1, 1},
	{"dashed", 3, 6},
	{"dotted", 1, 4},
}

var curveColors = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m", "\x1b[32m"}

// ChartWidthFor returns the number of plot columns that fit in totalWidth
// once the axis is drawn.
func ChartWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minChartWidth
	}
	return max(totalWidth-axisLabelWidth-runewidth.StringWidth(axisSeparator), minChartWidth)
}

// Render writes the chart. Curves without values are skipped; nothing is
// written when no curve has data.
func (c Chart) Render(w io.Writer, curves []Curve) error {
	var drawn []Curve
	for _, cv := range curves {
		if len(cv.Values) > 0 {
			drawn = append(drawn, cv)
		}
	}
	if len(drawn) == 0 {
		return nil
	}

	width := c.Width
	if width <= 0 {
		width = ChartWidthFor(terminalWidth())
	}
	width = max(width, minChartWidth)
	height := c.Height
	if height <= 0 {
		height = defaultChartHeight
	}

	layers := make([]*canvas, len(drawn))
	for i, cv := range drawn {
		layers[i] = newCanvas(width, height)
		layers[i].trace(resample(cv.Values, width), dashes[i%len(dashes)].on, dashes[i%len(dashes)].span)
	}

	p := &printer{w: w}
	if c.Title != "" {
		p.line(c.Title)
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("%*s%s", axisLabelWidth, axisLabel(y, height), axisSeparator))
		for x := 0; x < width; x++ {
			var mask uint8
			owner := -1
			for i, layer := range layers {
				if m := layer.cells[y][x]; m != 0 {
					mask |= m
					if owner < 0 {
						owner = i
					}
				}
			}
			ch := string(rune(brailleBase + int(mask)))
			if c.Color && owner >= 0 {
				ch = curveColors[owner%len(curveColors)] + ch + ansiReset
			}
			row.WriteString(ch)
		}
		p.line(row.String())
	}
	p.line(legend(drawn, c.Color))
	p.line("")
	return p.err
}

func axisLabel(row, height int) string {
	switch {
	case row == 0:
		return "100"
	case row == height-1:
		return "0"
	case height > 2 && row == height/2:
		return "50"
	default:
		return ""
	}
}

func legend(curves []Curve, color bool) string {
	parts := make([]string, 0, len(curves))
	for i, cv := range curves {
		last := cv.Values[len(cv.Values)-1]
		label := fmt.Sprintf("%s (%s, now %.1f)", cv.Name, dashes[i%len(dashes)].name, last)
		if color {
			label = curveColors[i%len(curveColors)] + label + ansiReset
		}
		parts = append(parts, label)
	}
	return "Legend: " + strings.Join(parts, "  ")
}

type canvas struct {
	width, height int
	cells         [][]uint8
}

func newCanvas(width, height int) *canvas {
	cells := make([][]uint8, height)
	for i := range cells {
		cells[i] = make([]uint8, width)
	}
	return &canvas{width: width, height: height, cells: cells}
}

// dot sets one braille dot addressed in dot coordinates.
func (c *canvas) dot(x, y int) {
	cx, cy := x/dotsPerCellX, y/dotsPerCellY
	if x < 0 || y < 0 || cx >= c.width || cy >= c.height {
		return
	}
	c.cells[cy][cx] |= brailleBits[x%dotsPerCellX][y%dotsPerCellY]
}

// trace connects one point per column, skipping dots outside the dash.
func (c *canvas) trace(values []float64, on, span int) {
	rows := c.height * dotsPerCellY
	prevX, prevY := -1, -1
	for col, v := range values {
		x := col * dotsPerCellX
		y := percentToDot(v, rows)
		if prevX < 0 {
			c.dot(x, y)
		} else {
			segment(prevX, prevY, x, y, func(px, py int) {
				if px%span < on {
					c.dot(px, py)
				}
			})
		}
		prevX, prevY = x, y
	}
}

func percentToDot(v float64, rows int) int {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Min(math.Max(v, 0), 100)
	return int(math.Round((1 - v/100) * float64(rows-1)))
}

// segment walks the integer points between two dots (Bresenham).
func segment(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy && x0 != x1 {
			e += dy
			x0 += sx
		}
		if e2 <= dx && y0 != y1 {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// resample stretches or squeezes values to exactly n points. Squeezing
// averages buckets, stretching interpolates linearly.
func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	switch {
	case len(values) == n:
		copy(out, values)
	case len(values) == 1 || n == 1:
		for i := range out {
			out[i] = values[0]
		}
	case len(values) > n:
		for i := range out {
			lo := i * len(values) / n
			hi := max((i+1)*len(values)/n, lo+1)
			var sum float64
			for _, v := range values[lo:hi] {
				sum += v
			}
			out[i] = sum / float64(hi-lo)
		}
	default:
		step := float64(len(values)-1) / float64(n-1)
		for i := range out {
			pos := float64(i) * step
			lo := int(pos)
			if lo >= len(values)-1 {
				out[i] = values[len(values)-1]
				continue
			}
			frac := pos - float64(lo)
			out[i] = values[lo] + (values[lo+1]-values[lo])*frac
		}
	}
	return out
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}

// ColorEnabled reports whether w is a terminal that accepts ANSI colors.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printer remembers the first write error so callers check once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err == nil {
		_, p.err = fmt.Fprintln(p.w, s)
	}
}

func (p *printer) linef(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}
