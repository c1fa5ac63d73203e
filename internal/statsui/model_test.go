package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/model"
	"github.com/verte-zerg/orator/internal/stats"
)

type fakeSource struct {
	records []model.ProgressRecord
	err     error
	calls   int
}

func (f *fakeSource) Analytics(_ context.Context, _ string, opts analytics.Options) (analytics.View, error) {
	f.calls++
	if f.err != nil {
		return analytics.View{}, f.err
	}
	return analytics.Aggregate(f.records, analytics.Baseline{CurrentLevel: 3, CompletedLevels: []int{1, 2}}, opts), nil
}

func (f *fakeSource) AllProgress(context.Context, string) ([]model.ProgressRecord, error) {
	return f.records, f.err
}

func sampleSource() *fakeSource {
	start := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var records []model.ProgressRecord
	for i, score := range []int{40, 75, 90} {
		acc := float64(score) / 100
		records = append(records, model.ProgressRecord{
			ID:          int64(i + 1),
			SessionKey:  "s1",
			LevelID:     i + 1,
			CompletedAt: start.Add(time.Duration(i) * 24 * time.Hour),
			Success:     score >= 70,
			Score:       score,
			Accuracy:    &acc,
		})
	}
	return &fakeSource{records: records}
}

func sized(t *testing.T, m *Model) *Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(*Model)
}

func press(m *Model, key string) *Model {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(*Model)
}

func TestOverviewRenders(t *testing.T) {
	m := sized(t, NewModel(sampleSource(), "key", stats.ReportOptions{}, 2))
	view := m.View()
	for _, want := range []string{"Overview", "Levels", "Sessions", "Trends", "Recent scores:", "window=2"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if got := len(strings.Split(view, "\n")); got != 30 {
		t.Fatalf("view should fill the window, got %d lines", got)
	}
}

func TestTabsCycle(t *testing.T) {
	m := sized(t, NewModel(sampleSource(), "key", stats.ReportOptions{}, 2))
	m = press(m, "right")
	if m.activeTab != tabLevels {
		t.Fatalf("expected levels tab, got %d", m.activeTab)
	}
	if len(m.levelTable.Rows()) != 3 {
		t.Fatalf("expected 3 level rows, got %d", len(m.levelTable.Rows()))
	}
	m = press(m, "right")
	m = press(m, "right")
	if !strings.Contains(m.View(), "Legend:") {
		t.Fatalf("trends tab should show the chart:\n%s", m.View())
	}
	m = press(m, "right")
	if m.activeTab != tabOverview {
		t.Fatalf("tabs should wrap around, got %d", m.activeTab)
	}
}

func TestWindowKeys(t *testing.T) {
	m := sized(t, NewModel(sampleSource(), "key", stats.ReportOptions{}, 1))
	m = press(m, "-")
	if m.window != 1 {
		t.Fatalf("window should not drop below 1, got %d", m.window)
	}
	m = press(m, "=")
	if m.window != 2 {
		t.Fatalf("expected window 2, got %d", m.window)
	}
}

func TestFilterApply(t *testing.T) {
	src := sampleSource()
	m := sized(t, NewModel(src, "key", stats.ReportOptions{}, 2))
	m = press(m, "/")
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}

	m.filterInputs[1].SetValue("abc")
	m = press(m, "enter")
	if m.filterError == "" || !m.filterMode {
		t.Fatalf("expected validation error, got %q", m.filterError)
	}

	m.filterInputs[0].SetValue("2025-05-02")
	m.filterInputs[1].SetValue("1")
	m.filterInputs[2].SetValue("4")
	calls := src.calls
	m = press(m, "enter")
	if m.filterMode {
		t.Fatalf("filter should close after apply: %s", m.filterError)
	}
	if src.calls != calls+1 {
		t.Fatalf("apply should reload the report")
	}
	if m.opts.Last != 1 || m.window != 4 || m.opts.Since == nil {
		t.Fatalf("unexpected settings %+v window=%d", m.opts, m.window)
	}
	if len(m.report.Attempts) != 1 || m.report.Attempts[0].Score != 90 {
		t.Fatalf("unexpected attempts %+v", m.report.Attempts)
	}

	m = press(m, "/")
	m = press(m, "esc")
	if m.filterMode {
		t.Fatalf("esc should close the filter")
	}
}

func TestLoadError(t *testing.T) {
	m := sized(t, NewModel(&fakeSource{err: errors.New("boom")}, "key", stats.ReportOptions{}, 2))
	view := m.View()
	if !strings.Contains(view, "boom") || !strings.Contains(view, "Failed to load progress.") {
		t.Fatalf("expected error in view:\n%s", view)
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(sampleSource(), "key", stats.ReportOptions{}, 2)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
