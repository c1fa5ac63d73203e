package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/model"
)

// Source loads a player's analytics and raw history.
type Source interface {
	Analytics(ctx context.Context, key string, opts analytics.Options) (analytics.View, error)
	AllProgress(ctx context.Context, key string) ([]model.ProgressRecord, error)
}

// ReportOptions narrows the history used for curves. The analytics view
// always covers everything.
type ReportOptions struct {
	Analytics analytics.Options
	Since     *time.Time
	Last      int
}

// Report contains precomputed data for stats rendering.
type Report struct {
	View     analytics.View
	Attempts []model.ProgressRecord // oldest first
	Days     []DayPoint
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, src Source, key string, opts ReportOptions) (Report, error) {
	view, err := src.Analytics(ctx, key, opts.Analytics)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load analytics: %w", err)
	}
	records, err := src.AllProgress(ctx, key)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load progress: %w", err)
	}

	asc := Chronological(records)
	if opts.Since != nil {
		cut := 0
		for cut < len(asc) && asc[cut].CompletedAt.Before(*opts.Since) {
			cut++
		}
		asc = asc[cut:]
	}
	if opts.Last > 0 && len(asc) > opts.Last {
		asc = asc[len(asc)-opts.Last:]
	}
	return Report{View: view, Attempts: asc, Days: Daily(asc)}, nil
}

// Scores returns the display score of every attempt in the report.
func (r Report) Scores() []float64 {
	out := make([]float64, len(r.Attempts))
	for i, a := range r.Attempts {
		out[i] = float64(a.Score)
	}
	return out
}
