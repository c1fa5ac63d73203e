package stats

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChartRender(t *testing.T) {
	var buf bytes.Buffer
	chart := Chart{Title: "Test Chart", Width: 10, Height: 4}
	err := chart.Render(&buf, []Curve{
		{Name: "Score", Values: []float64{10, 50, 90, 70, 100}},
		{Name: "Accuracy", Values: []float64{0, 20, 40}},
		{Name: "Empty"},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "Test Chart" {
		t.Fatalf("unexpected title line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "100"+axisSeparator) {
		t.Fatalf("expected top axis label, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[4], "  0"+axisSeparator) {
		t.Fatalf("expected bottom axis label, got %q", lines[4])
	}
	for _, row := range lines[1:5] {
		plot := strings.SplitN(row, axisSeparator, 2)[1]
		if n := utf8.RuneCountInString(plot); n != 10 {
			t.Fatalf("expected 10 plot columns, got %d in %q", n, row)
		}
	}
	if !strings.Contains(lines[5], "Score (solid, now 100.0)") || !strings.Contains(lines[5], "Accuracy (dashed, now 40.0)") {
		t.Fatalf("unexpected legend %q", lines[5])
	}
	if strings.Contains(out, "Empty") {
		t.Fatalf("empty curves should be skipped")
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color codes written without Color")
	}
}

func TestChartRenderNothing(t *testing.T) {
	var buf bytes.Buffer
	if err := (Chart{}).Render(&buf, []Curve{{Name: "Empty"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestChartColor(t *testing.T) {
	var buf bytes.Buffer
	if err := (Chart{Width: 10, Height: 2, Color: true}).Render(&buf, []Curve{{Name: "Score", Values: []float64{50}}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), curveColors[0]) {
		t.Fatalf("expected colored output")
	}
}

func TestChartWidthFor(t *testing.T) {
	axis := axisLabelWidth + utf8.RuneCountInString(axisSeparator)
	if got := ChartWidthFor(80); got != 80-axis {
		t.Fatalf("expected width %d, got %d", 80-axis, got)
	}
	if got := ChartWidthFor(0); got != minChartWidth {
		t.Fatalf("expected min width %d, got %d", minChartWidth, got)
	}
	if got := ChartWidthFor(5); got != minChartWidth {
		t.Fatalf("expected min width %d, got %d", minChartWidth, got)
	}
}

func TestResample(t *testing.T) {
	cases := []struct {
		in   []float64
		n    int
		want []float64
	}{
		{[]float64{0, 10, 20, 30}, 2, []float64{5, 25}},
		{[]float64{0, 10}, 3, []float64{0, 5, 10}},
		{[]float64{7}, 3, []float64{7, 7, 7}},
		{[]float64{1, 2, 3}, 3, []float64{1, 2, 3}},
	}
	for _, tc := range cases {
		got := resample(tc.in, tc.n)
		if len(got) != len(tc.want) {
			t.Fatalf("resample(%v, %d) = %v", tc.in, tc.n, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("resample(%v, %d) = %v, want %v", tc.in, tc.n, got, tc.want)
			}
		}
	}
}

func TestPercentToDot(t *testing.T) {
	if got := percentToDot(100, 16); got != 0 {
		t.Fatalf("100%% should be the top dot, got %d", got)
	}
	if got := percentToDot(0, 16); got != 15 {
		t.Fatalf("0%% should be the bottom dot, got %d", got)
	}
	if got := percentToDot(150, 16); got != 0 {
		t.Fatalf("values above 100 should clamp, got %d", got)
	}
	if got := percentToDot(-5, 16); got != 15 {
		t.Fatalf("negative values should clamp, got %d", got)
	}
}

func TestSegmentEndpoints(t *testing.T) {
	var pts [][2]int
	segment(0, 0, 4, 2, func(x, y int) { pts = append(pts, [2]int{x, y}) })
	if pts[0] != [2]int{0, 0} || pts[len(pts)-1] != [2]int{4, 2} {
		t.Fatalf("segment should include both endpoints, got %v", pts)
	}
	pts = nil
	segment(2, 5, 2, 1, func(x, y int) { pts = append(pts, [2]int{x, y}) })
	if len(pts) != 5 {
		t.Fatalf("vertical segment should visit 5 points, got %v", pts)
	}
}
