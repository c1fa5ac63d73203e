// Package analytics derives progress views from a user's attempt history.
package analytics

import (
	"sort"
	"time"

	"github.com/verte-zerg/orator/internal/model"
)

const (
	DefaultRecentActivityLimit = 10
	DefaultSessionLimit        = 5
)

// Options bounds the display lists. Counters always cover the full history.
type Options struct {
	RecentActivityLimit int
	SessionLimit        int
	IncludeTrends       bool
}

// DefaultOptions returns the limits used when a caller gives none.
func DefaultOptions() Options {
	return Options{
		RecentActivityLimit: DefaultRecentActivityLimit,
		SessionLimit:        DefaultSessionLimit,
		IncludeTrends:       true,
	}
}

// normalized swaps negative limits for the defaults. A zero limit asks for an
// empty list.
func (o Options) normalized() Options {
	if o.RecentActivityLimit < 0 {
		o.RecentActivityLimit = DefaultRecentActivityLimit
	}
	if o.SessionLimit < 0 {
		o.SessionLimit = DefaultSessionLimit
	}
	return o
}

// Baseline holds values fetched outside the progress history.
type Baseline struct {
	CompletedLevels []int
	CurrentLevel    int
	TotalCoins      int
	TotalXP         int
	CurrentStreak   int
	Cached          *model.UserStats
}

// BaselineFromUserData builds a Baseline from a loaded profile.
func BaselineFromUserData(d model.UserData) Baseline {
	return Baseline{
		CompletedLevels: d.CompletedLevels,
		CurrentLevel:    d.CurrentLevel,
		TotalCoins:      d.TotalCoins,
		TotalXP:         d.TotalXP,
		CurrentStreak:   d.Streak,
		Cached:          d.Stats,
	}
}

// View is the derived analytics document.
type View struct {
	Overview       Overview     `json:"overview"`
	Performance    Performance  `json:"performance"`
	RecentActivity []Activity   `json:"recent_activity"`
	LevelBreakdown *LevelGroups `json:"level_breakdown"`
	Sessions       SessionsView `json:"sessions"`
	Trends         *Trends      `json:"trends,omitempty"`
}

// Overview holds headline counters.
type Overview struct {
	TotalLevelsCompleted  int     `json:"total_levels_completed"`
	CurrentLevel          int     `json:"current_level"`
	TotalCoins            int     `json:"total_coins"`
	TotalXP               int     `json:"total_xp"`
	CurrentStreak         int     `json:"current_streak"`
	TotalSessions         int     `json:"total_sessions"`
	TotalTimeSpentSeconds float64 `json:"total_time_spent_seconds"`
}

// Performance holds averages over the whole history.
type Performance struct {
	AverageScore          float64 `json:"average_score"`
	AverageAccuracy       float64 `json:"average_accuracy"`
	AverageFluency        float64 `json:"average_fluency"`
	AverageWordsPerMinute float64 `json:"average_words_per_minute"`
	BestStreak            int     `json:"best_streak"`
}

// Activity is a compact projection of one attempt.
type Activity struct {
	SessionKey      string    `json:"session_key,omitempty"`
	LevelID         int       `json:"level_id"`
	CompletedAt     time.Time `json:"completed_at"`
	Success         bool      `json:"success"`
	Score           int       `json:"score"`
	Accuracy        *float64  `json:"accuracy"`
	Fluency         *float64  `json:"fluency"`
	WordsPerMinute  *float64  `json:"words_per_minute"`
	DurationSeconds *float64  `json:"duration_seconds"`
	Transcription   *string   `json:"transcription"`
}

// LevelStats aggregates every attempt at one level.
type LevelStats struct {
	LevelID               int        `json:"level_id"`
	Attempts              int        `json:"attempts"`
	SuccessfulAttempts    int        `json:"successful_attempts"`
	BestScore             int        `json:"best_score"`
	AverageScore          float64    `json:"average_score"`
	AverageAccuracy       float64    `json:"average_accuracy"`
	AverageFluency        float64    `json:"average_fluency"`
	AverageWordsPerMinute float64    `json:"average_words_per_minute"`
	LastAttempt           *time.Time `json:"last_attempt"`
}

// SessionStats aggregates the attempts made under one session key.
type SessionStats struct {
	SessionKey            string     `json:"session_key"`
	StartTime             time.Time  `json:"start_time"`
	LevelsCompleted       int        `json:"levels_completed"`
	TotalScore            int        `json:"total_score"`
	AverageAccuracy       float64    `json:"average_accuracy"`
	AverageFluency        float64    `json:"average_fluency"`
	AverageWordsPerMinute float64    `json:"average_words_per_minute"`
	TotalCoinsEarned      int        `json:"total_coins_earned"`
	TotalXPEarned         int        `json:"total_xp_earned"`
	Activities            []Activity `json:"activities"`
}

// DayStats aggregates attempts completed on one UTC date. Accuracy and
// fluency are sums, not means.
type DayStats struct {
	Date            string  `json:"date"`
	LevelsCompleted int     `json:"levels_completed"`
	TotalScore      int     `json:"total_score"`
	AccuracySum     float64 `json:"average_accuracy"`
	FluencySum      float64 `json:"average_fluency"`
	UniqueSessions  int     `json:"unique_sessions"`

	sessions map[string]struct{}
}

// Improvement compares the later half of the history with the earlier half.
type Improvement struct {
	Score    float64 `json:"score_improvement"`
	Accuracy float64 `json:"accuracy_improvement"`
	Fluency  float64 `json:"fluency_improvement"`
}

// Trends holds the optional time-based views.
type Trends struct {
	DailyProgress *DayGroups   `json:"daily_progress"`
	Improvement   *Improvement `json:"improvement"`
}

// SessionsView wraps the truncated session breakdown.
type SessionsView struct {
	Breakdown *SessionGroups `json:"session_breakdown"`
}

type (
	LevelGroups   = OrderedMap[int, LevelStats]
	SessionGroups = OrderedMap[string, SessionStats]
	DayGroups     = OrderedMap[string, DayStats]
)

// Aggregate builds a View from the full attempt history. records is never
// modified or reordered.
func Aggregate(records []model.ProgressRecord, base Baseline, opts Options) View {
	opts = opts.normalized()
	asc := sortedByTime(records, false)

	var view View
	view.Overview = overview(records, base)
	view.Performance = performance(records, asc, base.Cached)
	view.RecentActivity = recentActivity(records, opts.RecentActivityLimit)
	view.LevelBreakdown = levelBreakdown(records)
	view.Sessions = SessionsView{Breakdown: sessionBreakdown(records).Head(opts.SessionLimit)}
	if opts.IncludeTrends {
		view.Trends = &Trends{
			DailyProgress: dailyProgress(records),
			Improvement:   improvement(asc),
		}
	}
	return view
}

func overview(records []model.ProgressRecord, base Baseline) Overview {
	sessions := make(map[string]struct{})
	totalTime := 0.0
	for _, r := range records {
		sessions[r.SessionKey] = struct{}{}
		if r.DurationSeconds != nil {
			totalTime += *r.DurationSeconds
		}
	}
	out := Overview{
		TotalLevelsCompleted:  len(base.CompletedLevels),
		CurrentLevel:          base.CurrentLevel,
		TotalCoins:            base.TotalCoins,
		TotalXP:               base.TotalXP,
		CurrentStreak:         base.CurrentStreak,
		TotalSessions:         len(sessions),
		TotalTimeSpentSeconds: totalTime,
	}
	if c := base.Cached; c != nil {
		if c.TotalSessions > 0 {
			out.TotalSessions = c.TotalSessions
		}
		if c.TotalTimeSeconds > 0 {
			out.TotalTimeSpentSeconds = float64(c.TotalTimeSeconds)
		}
	}
	return out
}

func performance(records, asc []model.ProgressRecord, cached *model.UserStats) Performance {
	var scoreSum float64
	var scoreN int
	var acc, flu, wpm mean
	for _, r := range records {
		if r.Score > 0 {
			scoreSum += float64(r.Score)
			scoreN++
		}
		acc.add(r.Accuracy)
		flu.add(r.Fluency)
		wpm.add(r.WordsPerMinute)
	}
	out := Performance{
		AverageAccuracy:       acc.value(),
		AverageFluency:        flu.value(),
		AverageWordsPerMinute: wpm.value(),
		BestStreak:            BestStreak(asc),
	}
	if scoreN > 0 {
		out.AverageScore = scoreSum / float64(scoreN)
	}
	if cached != nil {
		out.AverageScore = preferCached(cached.AverageScore, out.AverageScore)
		out.AverageAccuracy = preferCached(cached.AverageAccuracy, out.AverageAccuracy)
		out.AverageFluency = preferCached(cached.AverageFluency, out.AverageFluency)
		out.AverageWordsPerMinute = preferCached(cached.AverageWordsPerMinute, out.AverageWordsPerMinute)
		out.BestStreak = max(cached.BestStreak, out.BestStreak)
	}
	return out
}

// BestStreak returns the longest run of consecutive successes in records,
// which must already be in chronological order.
func BestStreak(records []model.ProgressRecord) int {
	best, run := 0, 0
	for _, r := range records {
		if !r.Success {
			run = 0
			continue
		}
		run++
		best = max(best, run)
	}
	return best
}

func recentActivity(records []model.ProgressRecord, limit int) []Activity {
	desc := sortedByTime(records, true)
	if len(desc) > limit {
		desc = desc[:limit]
	}
	out := make([]Activity, 0, len(desc))
	for _, r := range desc {
		out = append(out, activityOf(r, true))
	}
	return out
}

// levelBreakdown groups by level. The accuracy, fluency and WPM averages
// skip zero or missing values but still divide by the shared attempt count;
// stored numbers depend on this, so it is kept as is.
func levelBreakdown(records []model.ProgressRecord) *LevelGroups {
	groups := NewOrderedMap[int, LevelStats]()
	for _, r := range records {
		g := groups.Upsert(r.LevelID, func() LevelStats {
			return LevelStats{LevelID: r.LevelID}
		})
		g.Attempts++
		if r.Success {
			g.SuccessfulAttempts++
			g.BestScore = max(g.BestScore, r.Score)
		}
		n := g.Attempts
		g.AverageScore = runningMean(g.AverageScore, float64(r.Score), n)
		if truthy(r.Accuracy) {
			g.AverageAccuracy = runningMean(g.AverageAccuracy, *r.Accuracy, n)
		}
		if truthy(r.Fluency) {
			g.AverageFluency = runningMean(g.AverageFluency, *r.Fluency, n)
		}
		if truthy(r.WordsPerMinute) {
			g.AverageWordsPerMinute = runningMean(g.AverageWordsPerMinute, *r.WordsPerMinute, n)
		}
		if g.LastAttempt == nil || r.CompletedAt.After(*g.LastAttempt) {
			ts := r.CompletedAt
			g.LastAttempt = &ts
		}
	}
	return groups
}

// sessionBreakdown groups by session key in encounter order. Averages follow
// the same skip rule as levelBreakdown, keyed to LevelsCompleted.
func sessionBreakdown(records []model.ProgressRecord) *SessionGroups {
	groups := NewOrderedMap[string, SessionStats]()
	for _, r := range records {
		g := groups.Upsert(r.SessionKey, func() SessionStats {
			return SessionStats{SessionKey: r.SessionKey, StartTime: r.CompletedAt}
		})
		g.LevelsCompleted++
		g.TotalScore += r.Score
		g.TotalCoinsEarned += r.CoinsEarned
		g.TotalXPEarned += r.XPEarned
		n := g.LevelsCompleted
		if truthy(r.Accuracy) {
			g.AverageAccuracy = runningMean(g.AverageAccuracy, *r.Accuracy, n)
		}
		if truthy(r.Fluency) {
			g.AverageFluency = runningMean(g.AverageFluency, *r.Fluency, n)
		}
		if truthy(r.WordsPerMinute) {
			g.AverageWordsPerMinute = runningMean(g.AverageWordsPerMinute, *r.WordsPerMinute, n)
		}
		g.Activities = append(g.Activities, activityOf(r, false))
	}
	return groups
}

func dailyProgress(records []model.ProgressRecord) *DayGroups {
	days := NewOrderedMap[string, DayStats]()
	for _, r := range records {
		date := r.CompletedAt.UTC().Format(time.DateOnly)
		d := days.Upsert(date, func() DayStats {
			return DayStats{Date: date, sessions: make(map[string]struct{})}
		})
		d.LevelsCompleted++
		d.TotalScore += r.Score
		if truthy(r.Accuracy) {
			d.AccuracySum += *r.Accuracy
		}
		if truthy(r.Fluency) {
			d.FluencySum += *r.Fluency
		}
		d.sessions[r.SessionKey] = struct{}{}
		d.UniqueSessions = len(d.sessions)
	}
	return days
}

// improvement expects records in chronological order.
func improvement(asc []model.ProgressRecord) *Improvement {
	if len(asc) <= 1 {
		return nil
	}
	mid := len(asc) / 2
	first, second := asc[:mid], asc[mid:]
	return &Improvement{
		Score:    meanScore(second) - meanScore(first),
		Accuracy: meanOf(second, accuracyOf) - meanOf(first, accuracyOf),
		Fluency:  meanOf(second, fluencyOf) - meanOf(first, fluencyOf),
	}
}

func activityOf(r model.ProgressRecord, withSession bool) Activity {
	a := Activity{
		LevelID:         r.LevelID,
		CompletedAt:     r.CompletedAt,
		Success:         r.Success,
		Score:           r.Score,
		Accuracy:        r.Accuracy,
		Fluency:         r.Fluency,
		WordsPerMinute:  r.WordsPerMinute,
		DurationSeconds: r.DurationSeconds,
		Transcription:   r.Transcription,
	}
	if withSession {
		a.SessionKey = r.SessionKey
	}
	return a
}

func sortedByTime(records []model.ProgressRecord, desc bool) []model.ProgressRecord {
	out := make([]model.ProgressRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].CompletedAt.After(out[j].CompletedAt)
		}
		return out[i].CompletedAt.Before(out[j].CompletedAt)
	})
	return out
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func meanScore(records []model.ProgressRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0
	for _, r := range records {
		sum += r.Score
	}
	return float64(sum) / float64(len(records))
}

func meanOf(records []model.ProgressRecord, field func(model.ProgressRecord) *float64) float64 {
	var m mean
	for _, r := range records {
		m.add(field(r))
	}
	return m.value()
}

func accuracyOf(r model.ProgressRecord) *float64 { return r.Accuracy }
func fluencyOf(r model.ProgressRecord) *float64  { return r.Fluency }

func runningMean(avg, v float64, n int) float64 {
	return (avg*float64(n-1) + v) / float64(n)
}

// truthy reports a present, non-zero value. Running averages skip zero
// metrics while still counting the attempt in n; existing clients rely on
// those numbers, so a measured zero does not lower them.
func truthy(v *float64) bool {
	return v != nil && *v != 0
}

func preferCached(cached, computed float64) float64 {
	if cached > 0 {
		return cached
	}
	return computed
}
