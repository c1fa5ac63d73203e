// Package scoring turns a transcript into accuracy, fluency and speed scores.
package scoring

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	optimalMinWPM = 120.0
	optimalMaxWPM = 160.0
	fastRefWPM    = 200.0

	defaultAccuracy = 0.8
	sequenceBonus   = 0.1
)

var (
	fillerPattern = regexp.MustCompile(`(?i)\b(uh|um|er|ah|like|you know)\b`)
	dashPattern   = regexp.MustCompile(`-{2,}`)
	pausePattern  = regexp.MustCompile(`\.{3,}`)
	wordPattern   = regexp.MustCompile(`\w+`)
)

// Result is the outcome of scoring one spoken response.
type Result struct {
	Transcription  string  `json:"transcription"`
	Confidence     float64 `json:"confidence"`
	Accuracy       float64 `json:"accuracy"`
	Fluency        float64 `json:"fluency"`
	Speed          float64 `json:"speed"`
	Duration       float64 `json:"duration"`
	WordCount      int     `json:"wordCount"`
	WordsPerMinute float64 `json:"wordsPerMinute"`
	Disfluencies   int     `json:"disfluencies"`
	Completion     bool    `json:"completion"`
}

// Score rates a transcript spoken over durationSeconds. An empty expectedText
// means there is no reference and accuracy falls back to a fixed default.
func Score(transcript string, durationSeconds float64, expectedText string) Result {
	duration := durationSeconds
	if math.IsNaN(duration) || duration < 0 {
		duration = 0
	}

	words := strings.Fields(transcript)
	wordCount := len(words)
	wpm := WordsPerMinute(wordCount, duration)

	disfluencies := CountDisfluencies(transcript)
	fluency := 0.0
	if wordCount > 0 {
		fluency = clamp01(1 - (float64(disfluencies)/float64(wordCount))*2)
	}

	accuracy := defaultAccuracy
	if expectedText != "" {
		accuracy = Accuracy(transcript, expectedText)
	}

	completion := wordCount > 0 && duration > 1

	confidence := accuracy*0.4 + fluency*0.3 + SpeedScore(wpm)*0.2
	if completion {
		confidence += 0.1
	}

	return Result{
		Transcription:  strings.TrimSpace(transcript),
		Confidence:     clamp01(confidence),
		Accuracy:       accuracy,
		Fluency:        fluency,
		Speed:          wpm,
		Duration:       duration,
		WordCount:      wordCount,
		WordsPerMinute: wpm,
		Disfluencies:   disfluencies,
		Completion:     completion,
	}
}

// WordsPerMinute returns the speaking rate, or 0 when either input is empty.
func WordsPerMinute(wordCount int, durationSeconds float64) float64 {
	if wordCount == 0 || durationSeconds <= 0 || math.IsNaN(durationSeconds) {
		return 0
	}
	return float64(wordCount) / durationSeconds * 60
}

// SpeedScore maps a speaking rate onto [0.3, 1], peaking in the 120-160 band.
func SpeedScore(wpm float64) float64 {
	switch {
	case wpm < optimalMinWPM:
		return math.Max(0.3, (wpm/optimalMinWPM)*0.7)
	case wpm > optimalMaxWPM:
		return math.Max(0.5, 1-((wpm-optimalMaxWPM)/(fastRefWPM-optimalMaxWPM))*0.5)
	default:
		return 1.0
	}
}

// Accuracy compares transcript words with the expected words by membership,
// adding a bonus for every word spoken in its expected position.
func Accuracy(transcript, expected string) float64 {
	got := strings.Fields(strings.ToLower(transcript))
	want := strings.Fields(strings.ToLower(expected))
	if len(want) == 0 {
		return 0
	}

	vocab := make(map[string]struct{}, len(want))
	for _, w := range want {
		vocab[w] = struct{}{}
	}
	correct := 0
	for _, w := range got {
		if _, ok := vocab[w]; ok {
			correct++
		}
	}

	bonus := 0.0
	for i := 0; i < len(got) && i < len(want); i++ {
		if got[i] == want[i] {
			bonus += sequenceBonus
		}
	}

	return clamp01(float64(correct)/float64(len(want)) + bonus)
}

// CountDisfluencies sums filler words, immediate repetitions, dash runs and
// ellipses found in the raw transcript.
func CountDisfluencies(text string) int {
	total := len(fillerPattern.FindAllStringIndex(text, -1))
	total += countRepetitions(text)
	total += len(dashPattern.FindAllStringIndex(text, -1))
	total += len(pausePattern.FindAllStringIndex(text, -1))
	return total
}

// countRepetitions counts whole words immediately followed by themselves with only
// whitespace between them. Matches do not overlap, so "a a a" counts once.
func countRepetitions(text string) int {
	locs := wordPattern.FindAllStringIndex(text, -1)
	count := 0
	for i := 0; i+1 < len(locs); i++ {
		cur, next := locs[i], locs[i+1]
		gap := text[cur[1]:next[0]]
		if gap == "" || strings.TrimFunc(gap, unicode.IsSpace) != "" {
			continue
		}
		if strings.EqualFold(text[cur[0]:cur[1]], text[next[0]:next[1]]) {
			count++
			i++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
