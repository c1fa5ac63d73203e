package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/orator/internal/model"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// DayPoint summarises the attempts completed on one UTC date.
type DayPoint struct {
	Date        string
	Attempts    int
	Passed      int
	AvgScore    float64
	AvgAccuracy float64 // percent; 0 when no attempt carried accuracy
}

// Chronological returns a copy of records ordered oldest first.
func Chronological(records []model.ProgressRecord) []model.ProgressRecord {
	out := append([]model.ProgressRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out
}

// Daily groups chronological records by UTC date.
func Daily(asc []model.ProgressRecord) []DayPoint {
	var days []DayPoint
	var accSum float64
	var accN int
	flush := func() {
		if len(days) == 0 {
			return
		}
		d := &days[len(days)-1]
		d.AvgScore /= float64(d.Attempts)
		if accN > 0 {
			d.AvgAccuracy = accSum / float64(accN) * 100
		}
		accSum, accN = 0, 0
	}
	for _, r := range asc {
		date := r.CompletedAt.UTC().Format(time.DateOnly)
		if len(days) == 0 || days[len(days)-1].Date != date {
			flush()
			days = append(days, DayPoint{Date: date})
		}
		d := &days[len(days)-1]
		d.Attempts++
		d.AvgScore += float64(r.Score)
		if r.Success {
			d.Passed++
		}
		if r.Accuracy != nil {
			accSum += *r.Accuracy
			accN++
		}
	}
	flush()
	return days
}

// MovingAverage smooths values with a trailing window. The first points
// average whatever history exists.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		n := i + 1
		if i >= window {
			sum -= values[i-window]
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Sparkline draws percentages as one line of block characters.
func Sparkline(values []float64) string {
	var b strings.Builder
	top := len(sparkBlocks) - 1
	for _, v := range values {
		v = math.Min(math.Max(v, 0), 100)
		b.WriteRune(sparkBlocks[int(math.Round(v/100*float64(top)))])
	}
	return b.String()
}

// Curves builds smoothed score and accuracy curves over days.
func Curves(days []DayPoint, window int) []Curve {
	if len(days) == 0 {
		return nil
	}
	scores := make([]float64, len(days))
	accs := make([]float64, len(days))
	for i, d := range days {
		scores[i] = d.AvgScore
		accs[i] = d.AvgAccuracy
	}
	return []Curve{
		{Name: "Score", Values: MovingAverage(scores, window)},
		{Name: "Accuracy", Values: MovingAverage(accs, window)},
	}
}
