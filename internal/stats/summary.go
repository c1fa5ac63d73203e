package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/levels"
)

const transcriptWidth = 40

// RenderSummary prints the headline counters and averages.
func RenderSummary(w io.Writer, view analytics.View) error {
	o, perf := view.Overview, view.Performance
	p := &printer{w: w}
	p.line("Summary")
	p.linef("Level: %d  Completed: %d/%d  Streak: %d (best %d)",
		o.CurrentLevel, o.TotalLevelsCompleted, levels.Count(), o.CurrentStreak, perf.BestStreak)
	p.linef("Coins: %d  XP: %d", o.TotalCoins, o.TotalXP)
	p.linef("Sessions: %d  Practice time: %s", o.TotalSessions, FormatSeconds(int(math.Round(o.TotalTimeSpentSeconds))))
	p.linef("Avg score: %.1f  Avg accuracy: %.1f%%  Avg fluency: %.1f%%  Avg WPM: %.1f",
		perf.AverageScore, perf.AverageAccuracy*100, perf.AverageFluency*100, perf.AverageWordsPerMinute)
	if view.Trends != nil && view.Trends.Improvement != nil {
		imp := view.Trends.Improvement
		p.linef("Improvement: score %+.1f  accuracy %+.1f%%  fluency %+.1f%%",
			imp.Score, imp.Accuracy*100, imp.Fluency*100)
	}
	if weak := WeakestLevels(view, 3); len(weak) > 0 {
		ids := make([]string, len(weak))
		for i, id := range weak {
			ids[i] = strconv.Itoa(id)
		}
		p.line("Revisit: " + strings.Join(ids, ", "))
	}
	p.line("")
	return p.err
}

// RenderLevels prints one row per attempted level.
func RenderLevels(w io.Writer, view analytics.View) error {
	p := &printer{w: w}
	if view.LevelBreakdown == nil || view.LevelBreakdown.Len() == 0 {
		p.line("No levels attempted yet.")
		return p.err
	}
	rows := view.LevelBreakdown.Values()
	sort.Slice(rows, func(i, j int) bool { return rows[i].LevelID < rows[j].LevelID })

	table := make([][]string, 0, len(rows))
	for _, l := range rows {
		name := ""
		if lvl, ok := levels.ByID(l.LevelID); ok {
			name = lvl.Name
		}
		last := "-"
		if l.LastAttempt != nil {
			last = l.LastAttempt.Local().Format("2006-01-02")
		}
		table = append(table, []string{
			strconv.Itoa(l.LevelID),
			name,
			strconv.Itoa(l.Attempts),
			strconv.Itoa(l.SuccessfulAttempts),
			strconv.Itoa(l.BestScore),
			fmt.Sprintf("%.1f", l.AverageScore),
			fmt.Sprintf("%.1f%%", l.AverageAccuracy*100),
			last,
		})
	}
	p.line("Levels")
	for _, line := range FormatTable(
		[]string{"#", "Name", "Tries", "Passed", "Best", "Avg", "Accuracy", "Last"},
		table,
		map[int]bool{0: true, 2: true, 3: true, 4: true, 5: true, 6: true},
	) {
		p.line(line)
	}
	p.line("")
	return p.err
}

// RenderRecent prints the most recent attempts.
func RenderRecent(w io.Writer, view analytics.View) error {
	p := &printer{w: w}
	if len(view.RecentActivity) == 0 {
		p.line("No attempts yet.")
		return p.err
	}
	table := make([][]string, 0, len(view.RecentActivity))
	for _, a := range view.RecentActivity {
		result := "fail"
		if a.Success {
			result = "pass"
		}
		said := ""
		if a.Transcription != nil {
			said = runewidth.Truncate(*a.Transcription, transcriptWidth, "…")
		}
		table = append(table, []string{
			a.CompletedAt.Local().Format("01-02 15:04"),
			strconv.Itoa(a.LevelID),
			result,
			strconv.Itoa(a.Score),
			said,
		})
	}
	p.line("Recent")
	for _, line := range FormatTable([]string{"When", "Level", "Result", "Score", "Said"}, table, map[int]bool{1: true, 3: true}) {
		p.line(line)
	}
	p.line("")
	return p.err
}

// RenderSessions prints the session breakdown, newest first.
func RenderSessions(w io.Writer, view analytics.View) error {
	p := &printer{w: w}
	if view.Sessions.Breakdown == nil || view.Sessions.Breakdown.Len() == 0 {
		p.line("No sessions yet.")
		return p.err
	}
	sessions := view.Sessions.Breakdown.Values()
	table := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		table = append(table, []string{
			s.StartTime.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(len(s.Activities)),
			strconv.Itoa(s.LevelsCompleted),
			strconv.Itoa(s.TotalScore),
			strconv.Itoa(s.TotalCoinsEarned),
			strconv.Itoa(s.TotalXPEarned),
		})
	}
	p.line("Sessions")
	for _, line := range FormatTable(
		[]string{"Started", "Attempts", "Passed", "Score", "Coins", "XP"},
		table,
		map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	) {
		p.line(line)
	}
	p.line("")
	return p.err
}

// RenderCurves plots smoothed daily score and accuracy.
func RenderCurves(w io.Writer, r Report, window int, chart Chart) error {
	if len(r.Days) == 0 {
		return nil
	}
	if chart.Title == "" {
		chart.Title = "Learning Curves (daily)"
	}
	if err := chart.Render(w, Curves(r.Days, window)); err != nil {
		return err
	}
	p := &printer{w: w}
	p.line("Scores: " + Sparkline(r.Scores()))
	p.line("")
	return p.err
}

// RenderReport prints every section in order.
func RenderReport(w io.Writer, r Report, window int, chart Chart) error {
	for _, render := range []func(io.Writer, analytics.View) error{RenderSummary, RenderLevels, RenderRecent} {
		if err := render(w, r.View); err != nil {
			return err
		}
	}
	return RenderCurves(w, r, window, chart)
}

// FormatSeconds renders a duration like 1h05m or 3m07s.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
