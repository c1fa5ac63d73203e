package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatTable lays rows out in columns sized to the widest cell. Columns in
// right are right aligned.
func FormatTable(headers []string, rows [][]string, right map[int]bool) []string {
	cols := len(headers)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return nil
	}
	widths := make([]int, cols)
	measure := func(r []string) {
		for i, cell := range r {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, joinCells(headers, widths, right))
	}
	for _, r := range rows {
		lines = append(lines, joinCells(r, widths, right))
	}
	return lines
}

func joinCells(row []string, widths []int, right map[int]bool) string {
	cells := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		pad := strings.Repeat(" ", max(w-runewidth.StringWidth(cell), 0))
		if right[i] {
			cells[i] = pad + cell
		} else {
			cells[i] = cell + pad
		}
	}
	return strings.TrimRight(strings.Join(cells, "  "), " ")
}
