package stats

import (
	"sort"

	"github.com/verte-zerg/orator/internal/analytics"
)

// WeakestLevels returns up to n attempted levels with the lowest average
// score, lowest level first on ties.
func WeakestLevels(view analytics.View, n int) []int {
	if n <= 0 || view.LevelBreakdown == nil {
		return nil
	}
	levels := view.LevelBreakdown.Values()
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].AverageScore == levels[j].AverageScore {
			return levels[i].LevelID < levels[j].LevelID
		}
		return levels[i].AverageScore < levels[j].AverageScore
	})
	out := make([]int, 0, n)
	for _, l := range levels {
		if len(out) == n {
			break
		}
		if l.Attempts > 0 {
			out = append(out, l.LevelID)
		}
	}
	return out
}
