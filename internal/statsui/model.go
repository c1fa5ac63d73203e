// Package statsui provides the Bubble Tea progress dashboard.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/stats"
)

const (
	tabOverview = iota
	tabLevels
	tabSessions
	tabTrends
)

const (
	plotHeight    = 10
	fallbackWidth = 80
	sparkAttempts = 40
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A9AC8"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea progress dashboard.
type Model struct {
	src    stats.Source
	key    string
	opts   stats.ReportOptions
	window int

	report stats.Report
	errMsg string

	tabs       []string
	activeTab  int
	viewports  []viewport.Model
	levelTable table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a dashboard for the player holding key and loads the
// first report.
func NewModel(src stats.Source, key string, opts stats.ReportOptions, window int) *Model {
	if window < 1 {
		window = 1
	}
	m := &Model{
		src:    src,
		key:    key,
		opts:   opts,
		window: window,
		tabs:   []string{"Overview", "Levels", "Sessions", "Trends"},
	}
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.filterInputs = []textinput.Model{
		newInput("Since (YYYY-MM-DD): "),
		newInput("Last attempts: "),
		newInput("Curve window: "),
	}
	m.levelTable = table.New(table.WithColumns(levelColumns()), table.WithHeight(1))
	m.levelTable.SetStyles(levelTableStyles())
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=", "+":
			m.window++
			m.renderTabContents()
			return m, nil
		case "-":
			m.window = max(1, m.window-1)
			m.renderTabContents()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if m.activeTab == tabLevels {
				m.levelTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabLevels {
				m.levelTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabLevels {
			m.levelTable, cmd = m.levelTable.Update(msg)
			return m, cmd
		}
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	return strings.Join([]string{
		fitLines(m.renderHeader(), m.width, headerHeight),
		fitLines(m.renderBody(), m.width, bodyHeight),
		fitLines(m.renderFooter(), m.width, footerHeight),
	}, "\n")
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) layoutHeights() (header, body, footer int) {
	header = max(lipgloss.Height(activeNavStyle.Render("X")), 1) + 1
	footer = 1
	if !m.filterMode && m.errMsg != "" {
		footer++
	}
	body = max(m.height-header-footer, 1)
	return header, body, footer
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return fallbackWidth
	}
	return m.width
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, body, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = body
	}
	m.levelTable.SetWidth(m.width)
	m.levelTable.SetHeight(max(body-1, 1))
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	n := len(m.tabs)
	m.activeTab = ((m.activeTab+delta)%n + n) % n
	if m.activeTab == tabLevels {
		m.levelTable.Focus()
	} else {
		m.levelTable.Blur()
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.src, m.key, m.opts)
	if err != nil {
		m.errMsg = err.Error()
		m.report = stats.Report{}
		m.levelTable.SetRows(nil)
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load progress.")
		}
		return
	}
	m.errMsg = ""
	m.report = report
	m.levelTable.SetRows(levelRows(report.View))
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		return
	}
	width := m.contentWidth()
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
	m.viewports[tabSessions].SetContent(renderText(stats.RenderSessions, m.report.View))
	m.viewports[tabTrends].SetContent(renderTrends(m.report, m.window, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, len(m.tabs))
	for i, tab := range m.tabs {
		style := inactiveNavStyle
		if i == m.activeTab {
			style = activeNavStyle
		}
		parts[i] = style.Render(tab)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	since := "any"
	if m.opts.Since != nil {
		since = m.opts.Since.Format(time.DateOnly)
	}
	last := "all"
	if m.opts.Last > 0 {
		last = strconv.Itoa(m.opts.Last)
	}
	settings := fmt.Sprintf("Settings: since=%s  last=%s  window=%d", since, last, m.window)
	return m.renderTabs() + "\n" + mutedStyle.Render(runewidth.Truncate(settings, m.width, "..."))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return mutedStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := mutedStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Settings (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	}
	if m.activeTab == tabLevels {
		if len(m.levelTable.Rows()) == 0 {
			return "No levels attempted yet."
		}
		return tableStyle.Render(m.levelTable.View())
	}
	return m.viewports[m.activeTab].View()
}

func renderOverview(r stats.Report, width int) string {
	o, perf := r.View.Overview, r.View.Performance
	cards := []string{
		metricCard("Level", fmt.Sprintf("%d / %d", o.CurrentLevel, levels.Count())),
		metricCard("Completed", strconv.Itoa(o.TotalLevelsCompleted)),
		metricCard("Streak", fmt.Sprintf("%d (best %d)", o.CurrentStreak, perf.BestStreak)),
		metricCard("Coins", strconv.Itoa(o.TotalCoins)),
		metricCard("XP", strconv.Itoa(o.TotalXP)),
		metricCard("Avg Score", fmt.Sprintf("%.1f", perf.AverageScore)),
		metricCard("Avg Accuracy", fmt.Sprintf("%.1f%%", perf.AverageAccuracy*100)),
		metricCard("Practice", stats.FormatSeconds(int(math.Round(o.TotalTimeSpentSeconds)))),
	}
	var grid string
	if width < 80 {
		grid = strings.Join(cards, "\n")
	} else {
		grid = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, cards[:4]...),
			lipgloss.JoinHorizontal(lipgloss.Top, cards[4:]...),
		)
	}

	lines := []string{grid, ""}
	scores := r.Scores()
	if len(scores) > sparkAttempts {
		scores = scores[len(scores)-sparkAttempts:]
	}
	if len(scores) > 0 {
		lines = append(lines, "Recent scores: "+stats.Sparkline(scores))
	} else {
		lines = append(lines, "No attempts yet. Run `orator practice` to start.")
	}
	if weak := stats.WeakestLevels(r.View, 3); len(weak) > 0 {
		names := make([]string, len(weak))
		for i, id := range weak {
			names[i] = levelLabel(id)
		}
		lines = append(lines, mutedStyle.Render("Revisit: "+strings.Join(names, ", ")))
	}
	return strings.Join(lines, "\n")
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardTitleStyle.Render(label) + "\n" + cardValueStyle.Render(value))
}

func renderTrends(r stats.Report, window, width int) string {
	if len(r.Days) == 0 {
		return "No attempts in range."
	}
	var buf bytes.Buffer
	chart := stats.Chart{Width: stats.ChartWidthFor(width), Height: plotHeight, Color: true}
	if err := stats.RenderCurves(&buf, r, window, chart); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	if t := r.View.Trends; t != nil && t.Improvement != nil {
		fmt.Fprintf(&buf, "Improvement: score %+.1f  accuracy %+.1f%%  fluency %+.1f%%\n",
			t.Improvement.Score, t.Improvement.Accuracy*100, t.Improvement.Fluency*100)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderText(render func(io.Writer, analytics.View) error, view analytics.View) string {
	var buf bytes.Buffer
	if err := render(&buf, view); err != nil {
		return err.Error()
	}
	return strings.TrimRight(buf.String(), "\n")
}

func levelColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Name", Width: 24},
		{Title: "Difficulty", Width: 10},
		{Title: "Tries", Width: 5},
		{Title: "Passed", Width: 6},
		{Title: "Best", Width: 4},
		{Title: "Avg", Width: 5},
		{Title: "Accuracy", Width: 8},
	}
}

func levelRows(view analytics.View) []table.Row {
	if view.LevelBreakdown == nil {
		return nil
	}
	all := view.LevelBreakdown.Values()
	sort.Slice(all, func(i, j int) bool { return all[i].LevelID < all[j].LevelID })
	rows := make([]table.Row, 0, len(all))
	for _, l := range all {
		name, difficulty := "", ""
		if lvl, ok := levels.ByID(l.LevelID); ok {
			name, difficulty = lvl.Name, lvl.Difficulty
		}
		rows = append(rows, table.Row{
			strconv.Itoa(l.LevelID),
			name,
			difficulty,
			strconv.Itoa(l.Attempts),
			strconv.Itoa(l.SuccessfulAttempts),
			strconv.Itoa(l.BestScore),
			fmt.Sprintf("%.1f", l.AverageScore),
			fmt.Sprintf("%.1f%%", l.AverageAccuracy*100),
		})
	}
	return rows
}

func levelTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		PaddingLeft(0)
	styles.Cell = styles.Cell.PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func levelLabel(id int) string {
	if lvl, ok := levels.ByID(id); ok {
		return fmt.Sprintf("%d %s", id, lvl.Name)
	}
	return strconv.Itoa(id)
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	since := ""
	if m.opts.Since != nil {
		since = m.opts.Since.Format(time.DateOnly)
	}
	last := ""
	if m.opts.Last > 0 {
		last = strconv.Itoa(m.opts.Last)
	}
	m.filterInputs[0].SetValue(since)
	m.filterInputs[1].SetValue(last)
	m.filterInputs[2].SetValue(strconv.Itoa(m.window))
	return m, m.focusInput(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.focusInput(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.focusInput(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) focusInput(idx int) tea.Cmd {
	n := len(m.filterInputs)
	m.filterIndex = (idx%n + n) % n
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	var since *time.Time
	if raw := strings.TrimSpace(m.filterInputs[0].Value()); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}
	last := 0
	if raw := strings.TrimSpace(m.filterInputs[1].Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or a positive integer)")
		}
		last = parsed
	}
	window := m.window
	if raw := strings.TrimSpace(m.filterInputs[2].Value()); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid curve window (use an integer >= 1)")
		}
		window = parsed
	}
	m.opts.Since = since
	m.opts.Last = last
	m.window = window
	return nil
}

func fitLines(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if pad := width - lipgloss.Width(line); pad > 0 {
			lines[i] = line + strings.Repeat(" ", pad)
		}
	}
	return strings.Join(lines, "\n")
}
