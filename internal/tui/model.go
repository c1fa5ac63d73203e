// Package tui provides the Bubble Tea reading drill.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/model"
)

// Service is the part of the game service the drill drives.
type Service interface {
	Attempt(ctx context.Context, key string, in game.AttemptInput) (game.AttemptResult, error)
	AllProgress(ctx context.Context, key string) ([]model.ProgressRecord, error)
}

// Options configures a drill.
type Options struct {
	Key        string
	SessionKey string
	Level      int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Model implements the Bubble Tea reading drill. The reader types what they
// say while reading the prompt aloud, and Enter scores the attempt.
type Model struct {
	svc        Service
	key        string
	sessionKey string
	now        func() time.Time

	width  int
	height int

	level       levels.Level
	promptRunes []rune
	inputRunes  []rune

	started   bool
	startedAt time.Time
	openedAt  time.Time

	result *game.AttemptResult
	err    error

	lastScore  int
	lastPassed bool
	hasLast    bool

	allAttempts int
	allPassed   int
	allScoreSum int

	attempted int
	completed int
	coins     int
	xp        int
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	passStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	inputStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#D9D9D9"))
	cursorStyle      = pendingStyle.Underline(true)
	titleStyle       = lipgloss.NewStyle().Bold(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a drill starting at opts.Level.
func NewModel(svc Service, opts Options) (*Model, error) {
	lvl, ok := levels.ByID(opts.Level)
	if !ok {
		return nil, fmt.Errorf("%w: %d", game.ErrUnknownLevel, opts.Level)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Model{
		svc:        svc,
		key:        opts.Key,
		sessionKey: opts.SessionKey,
		now:        now,
		openedAt:   now(),
	}
	m.setLevel(lvl)
	m.loadFooterStats()
	return m, nil
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
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		}
		if m.result != nil {
			return m.updateResult(msg)
		}
		switch msg.Type {
		case tea.KeyEnter:
			m.submit()
		case tea.KeyBackspace, tea.KeyDelete:
			m.handleBackspace()
		case tea.KeySpace:
			m.handleRunes([]rune{' '})
		case tea.KeyRunes:
			m.handleRunes(msg.Runes)
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEnter:
		m.advance()
	case msg.Type == tea.KeyRunes && string(msg.Runes) == "r":
		m.setLevel(m.level)
	case msg.Type == tea.KeyRunes && string(msg.Runes) == "q":
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := m.width * 7 / 10
	if m.width == 0 {
		contentWidth = 0
	} else if contentWidth < 1 {
		contentWidth = 1
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Level %d · %s (%s)", m.level.ID, m.level.Name, m.level.Difficulty)))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(wrapStyled(promptRunes(m.promptRunes, m.inputRunes), contentWidth), "\n"))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(wrapStyled(inputRunes(m.inputRunes, m.result == nil), contentWidth), "\n"))
	if body := m.renderResult(); body != "" {
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	content := b.String()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter()
	}
	content = lipgloss.NewStyle().Width(contentWidth).Render(content)
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return incorrectStyle.Render("Error: " + m.err.Error())
	}
	if m.result == nil {
		return ""
	}
	res := m.result
	verdict := incorrectStyle.Render(fmt.Sprintf("Score %d · try again", res.Display))
	if res.Success {
		verdict = passStyle.Render(fmt.Sprintf("Score %d · passed +%d coins +%d XP",
			res.Display, res.Record.CoinsEarned, res.Record.XPEarned))
	}
	lines := []string{
		verdict,
		fmt.Sprintf("Accuracy %.0f%%  Fluency %.0f%%  %.0f WPM",
			res.Score.Accuracy*100, res.Score.Fluency*100, res.Score.WordsPerMinute),
		res.Feedback,
		footerStyle.Render(m.resultHint()),
	}
	return strings.Join(lines, "\n")
}

func (m *Model) resultHint() string {
	if m.result.Success {
		if _, ok := levels.ByID(m.level.ID + 1); ok {
			return "enter: next level  r: retry  q: quit"
		}
		return "enter: play again  q: quit"
	}
	return "enter: retry  q: quit"
}

func (m *Model) renderFooter() string {
	_, current := spokenWords(m.inputRunes)
	total := len(findWords(m.promptRunes))
	segments := []string{
		fmt.Sprintf("Level %d/%d", m.level.ID, levels.Count()),
		fmt.Sprintf("Words %d/%d", min(current, total), total),
	}
	if m.hasLast {
		verdict := "retry"
		if m.lastPassed {
			verdict = "pass"
		}
		segments = append(segments, fmt.Sprintf("Last %d · %s", m.lastScore, verdict))
	}
	avg, rate := 0.0, 0.0
	if m.allAttempts > 0 {
		avg = float64(m.allScoreSum) / float64(m.allAttempts)
		rate = float64(m.allPassed) / float64(m.allAttempts) * 100
	}
	segments = append(segments, fmt.Sprintf("All-time %d attempts · avg %.1f · %.0f%% passed", m.allAttempts, avg, rate))
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) handleBackspace() {
	if len(m.inputRunes) == 0 {
		return
	}
	m.inputRunes = m.inputRunes[:len(m.inputRunes)-1]
}

func (m *Model) handleRunes(runes []rune) {
	for _, r := range runes {
		if !m.started {
			m.started = true
			m.startedAt = m.now()
		}
		m.inputRunes = append(m.inputRunes, r)
	}
}

func (m *Model) submit() {
	transcript := strings.TrimSpace(string(m.inputRunes))
	if transcript == "" {
		return
	}
	duration := m.now().Sub(m.startedAt).Seconds()
	res, err := m.svc.Attempt(context.Background(), m.key, game.AttemptInput{
		SessionKey:      m.sessionKey,
		LevelID:         m.level.ID,
		Transcript:      transcript,
		DurationSeconds: duration,
	})
	if err != nil {
		m.err = err
		logErrf("failed to save attempt: %v\n", err)
		return
	}
	m.err = nil
	m.result = &res
	m.recordResult(res)
}

func (m *Model) recordResult(res game.AttemptResult) {
	m.lastScore = res.Display
	m.lastPassed = res.Success
	m.hasLast = true
	m.allAttempts++
	m.allScoreSum += res.Display
	m.attempted++
	if res.Success {
		m.allPassed++
		m.completed++
	}
	m.coins += res.Record.CoinsEarned
	m.xp += res.Record.XPEarned
}

// advance moves to the next level after a pass and retries otherwise.
func (m *Model) advance() {
	if m.result != nil && m.result.Success {
		if next, ok := levels.ByID(m.level.ID + 1); ok {
			m.setLevel(next)
			return
		}
	}
	m.setLevel(m.level)
}

func (m *Model) setLevel(lvl levels.Level) {
	m.level = lvl
	m.promptRunes = []rune(lvl.Prompt)
	m.inputRunes = nil
	m.started = false
	m.startedAt = time.Time{}
	m.result = nil
	m.err = nil
}

func (m *Model) loadFooterStats() {
	records, err := m.svc.AllProgress(context.Background(), m.key)
	if err != nil {
		logErrf("failed to load progress: %v\n", err)
		return
	}
	if len(records) == 0 {
		return
	}
	// Records arrive newest first.
	m.lastScore = records[0].Score
	m.lastPassed = records[0].Success
	m.hasLast = true
	for _, rec := range records {
		m.allAttempts++
		m.allScoreSum += rec.Score
		if rec.Success {
			m.allPassed++
		}
	}
}

// Summary returns the aggregates to close the drill's session with.
func (m *Model) Summary() model.SessionEnd {
	return model.SessionEnd{
		TotalTimeSeconds: int(m.now().Sub(m.openedAt).Seconds()),
		LevelsAttempted:  m.attempted,
		LevelsCompleted:  m.completed,
		TotalCoinsEarned: m.coins,
		TotalXPEarned:    m.xp,
		CurrentLevel:     m.level.ID,
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
