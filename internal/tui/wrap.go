package tui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type wordState int

const (
	statePending wordState = iota
	stateCurrent
	stateSpoken
	stateInput
	stateCursor
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
	state   wordState
}

type wordRange struct {
	start int
	end   int
}

func findWords(runes []rune) []wordRange {
	words := []wordRange{}
	start := -1
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if start != -1 {
				words = append(words, wordRange{start: start, end: i})
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		words = append(words, wordRange{start: start, end: len(runes)})
	}
	return words
}

// normalizeWord folds case and drops punctuation so "Hello!" matches "hello".
func normalizeWord(word []rune) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// spokenWords returns the finished words of the input and the index of the
// prompt word the reader is on.
func spokenWords(input []rune) (map[string]struct{}, int) {
	words := findWords(input)
	finished := words
	if len(words) > 0 && words[len(words)-1].end == len(input) {
		finished = words[:len(words)-1]
	}
	set := make(map[string]struct{}, len(finished))
	for _, w := range finished {
		if key := normalizeWord(input[w.start:w.end]); key != "" {
			set[key] = struct{}{}
		}
	}
	return set, len(finished)
}

func styleFor(state wordState) lipgloss.Style {
	switch state {
	case stateSpoken:
		return correctStyle
	case stateCurrent:
		return currentWordStyle
	case stateInput:
		return inputStyle
	case stateCursor:
		return cursorStyle
	default:
		return pendingStyle
	}
}

func newStyledRune(r rune, state wordState) styledRune {
	return styledRune{
		s:       styleFor(state).Render(string(r)),
		width:   runewidth.RuneWidth(r),
		isSpace: state != stateCursor && unicode.IsSpace(r),
		state:   state,
	}
}

// promptRunes styles the prompt by word: words already read are marked
// spoken, the word the reader is on is highlighted and the rest are pending.
func promptRunes(prompt, input []rune) []styledRune {
	spoken, current := spokenWords(input)
	states := make([]wordState, len(prompt))
	for i, w := range findWords(prompt) {
		state := statePending
		if _, ok := spoken[normalizeWord(prompt[w.start:w.end])]; ok {
			state = stateSpoken
		} else if i == current {
			state = stateCurrent
		}
		for j := w.start; j < w.end; j++ {
			states[j] = state
		}
	}
	out := make([]styledRune, 0, len(prompt))
	for i, r := range prompt {
		out = append(out, newStyledRune(r, states[i]))
	}
	return out
}

// inputRunes styles what the reader has typed, followed by a cursor cell.
func inputRunes(input []rune, withCursor bool) []styledRune {
	out := make([]styledRune, 0, len(input)+1)
	for _, r := range input {
		out = append(out, newStyledRune(r, stateInput))
	}
	if withCursor {
		out = append(out, newStyledRune(' ', stateCursor))
	}
	return out
}

func widthOf(runes []styledRune) int {
	total := 0
	for _, r := range runes {
		total += r.width
	}
	return total
}

func groupRunes(runes []styledRune) [][]styledRune {
	var groups [][]styledRune
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j].isSpace == runes[i].isSpace {
			j++
		}
		groups = append(groups, runes[i:j])
		i = j
	}
	return groups
}

// wrapStyled breaks styled runes into lines no wider than width. Spaces at a
// break are dropped and words longer than a line are split.
func wrapStyled(runes []styledRune, width int) []string {
	if width <= 0 {
		var b strings.Builder
		for _, r := range runes {
			b.WriteString(r.s)
		}
		return []string{b.String()}
	}

	var (
		lines     []string
		line      strings.Builder
		lineWidth int
		pending   []styledRune
	)
	flush := func() {
		lines = append(lines, line.String())
		line.Reset()
		lineWidth = 0
	}
	for _, group := range groupRunes(runes) {
		if group[0].isSpace {
			if lineWidth > 0 {
				pending = group
			}
			continue
		}
		if lineWidth > 0 && lineWidth+widthOf(pending)+widthOf(group) > width {
			flush()
		}
		if lineWidth > 0 {
			for _, r := range pending {
				line.WriteString(r.s)
			}
			lineWidth += widthOf(pending)
		}
		pending = nil
		for _, r := range group {
			if lineWidth > 0 && lineWidth+r.width > width {
				flush()
			}
			line.WriteString(r.s)
			lineWidth += r.width
		}
	}
	if lineWidth > 0 || len(lines) == 0 {
		lines = append(lines, line.String())
	}
	return lines
}
