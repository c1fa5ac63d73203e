package scoring

import (
	"math"
	"strings"
	"testing"
)

func TestScoreBounds(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"hello",
		"um um um um",
		"the the the the the",
		"-- -- ... ...... --",
		"Like, you know, I was like... uh",
		"ünïcödé wörds ünïcödé wörds",
		strings.Repeat("word ", 500),
	}
	durations := []float64{-3, 0, 0.5, 1, 2, 10, 600, math.NaN()}
	for _, in := range inputs {
		for _, d := range durations {
			r := Score(in, d, "")
			checkBounds(t, in, d, r)
			r = Score(in, d, "hello world this is expected")
			checkBounds(t, in, d, r)
		}
	}
}

func checkBounds(t *testing.T, in string, d float64, r Result) {
	t.Helper()
	for name, v := range map[string]float64{"confidence": r.Confidence, "accuracy": r.Accuracy, "fluency": r.Fluency} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Fatalf("%s out of range for %q/%v: %v", name, in, d, v)
		}
	}
	if r.WordCount < 0 || r.Disfluencies < 0 {
		t.Fatalf("negative counts for %q/%v: %+v", in, d, r)
	}
	if math.IsNaN(r.WordsPerMinute) || r.WordsPerMinute != r.Speed {
		t.Fatalf("unexpected rate for %q/%v: %+v", in, d, r)
	}
}

func TestScoreEmptyTranscript(t *testing.T) {
	r := Score("", 10, "")
	if r.WordCount != 0 || r.WordsPerMinute != 0 || r.Completion {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Fluency != 0 {
		t.Fatalf("expected fluency 0, got %v", r.Fluency)
	}
	if r.Accuracy != defaultAccuracy {
		t.Fatalf("expected default accuracy, got %v", r.Accuracy)
	}
	if !almostEqual(r.Confidence, 0.8*0.4+0.3*0.2) {
		t.Fatalf("unexpected confidence %v", r.Confidence)
	}
}

func TestScoreZeroDuration(t *testing.T) {
	r := Score("hello world", 0, "hello world")
	if r.WordsPerMinute != 0 {
		t.Fatalf("expected wpm 0, got %v", r.WordsPerMinute)
	}
	if r.Completion {
		t.Fatalf("expected completion false")
	}
	if r := Score("hello world", 1, ""); r.Completion {
		t.Fatalf("expected completion false at exactly one second")
	}
}

func TestScoreNegativeDuration(t *testing.T) {
	r := Score("hello world", -5, "")
	if r.Duration != 0 || r.WordsPerMinute != 0 {
		t.Fatalf("expected zero duration and rate, got %+v", r)
	}
}

func TestScoreExactMatchAccuracy(t *testing.T) {
	r := Score("the quick fox", 10, "the quick fox")
	if r.Accuracy != 1 {
		t.Fatalf("expected accuracy 1, got %v", r.Accuracy)
	}
	if !almostEqual(r.WordsPerMinute, 18) {
		t.Fatalf("expected 18 wpm, got %v", r.WordsPerMinute)
	}
	if !r.Completion {
		t.Fatalf("expected completion")
	}
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
		want     float64
	}{
		{"empty reference", "hello", "   ", 0},
		{"membership only", "fox the", "the quick fox jumps", 0.5},
		{"positional bonus", "The quick", "the quick fox jumps", 0.7},
		{"case insensitive", "HELLO", "hello", 1},
		{"no overlap", "cat", "dog", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accuracy(tt.got, tt.expected); !almostEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScoreEmptyReferenceIsZeroAccuracy(t *testing.T) {
	r := Score("hello there", 5, "  \t ")
	if r.Accuracy != 0 {
		t.Fatalf("expected accuracy 0 for whitespace reference, got %v", r.Accuracy)
	}
}

func TestFillerWordsReduceFluency(t *testing.T) {
	filler := Score("um I think um this is uh correct", 10, "")
	clean := Score("so I think that this is very correct", 10, "")
	if filler.WordCount != clean.WordCount {
		t.Fatalf("word counts differ: %d vs %d", filler.WordCount, clean.WordCount)
	}
	if filler.Disfluencies < 3 {
		t.Fatalf("expected at least 3 disfluencies, got %d", filler.Disfluencies)
	}
	if clean.Disfluencies != 0 {
		t.Fatalf("expected clean transcript, got %d disfluencies", clean.Disfluencies)
	}
	if filler.Fluency >= clean.Fluency {
		t.Fatalf("expected reduced fluency: %v >= %v", filler.Fluency, clean.Fluency)
	}
	if !almostEqual(filler.Fluency, 0.25) {
		t.Fatalf("expected fluency 0.25, got %v", filler.Fluency)
	}
}

func TestCountDisfluencies(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"I like it", 1},
		{"you know what", 1},
		{"You Know what", 1},
		{"the the cat", 1},
		{"The the cat", 1},
		{"the the the cat", 1},
		{"the the the the", 2},
		{"this is fine", 0},
		{"the theory", 0},
		{"is isolated", 0},
		{"cat catalog cat cat", 1},
		{"wait -- what", 1},
		{"wait - what", 0},
		{"so... then.. ok", 1},
		{"um... um", 3},
		{"very error", 0},
	}
	for _, tt := range tests {
		if got := CountDisfluencies(tt.text); got != tt.want {
			t.Fatalf("CountDisfluencies(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSpeedScore(t *testing.T) {
	tests := []struct {
		wpm  float64
		want float64
	}{
		{0, 0.3},
		{60, 0.35},
		{120, 1},
		{140, 1},
		{160, 1},
		{180, 0.75},
		{200, 0.5},
		{300, 0.5},
	}
	for _, tt := range tests {
		if got := SpeedScore(tt.wpm); !almostEqual(got, tt.want) {
			t.Fatalf("SpeedScore(%v) = %v, want %v", tt.wpm, got, tt.want)
		}
	}
}

func TestBlendConfidence(t *testing.T) {
	if got := BlendConfidence(0.5, 1); !almostEqual(got, 0.65) {
		t.Fatalf("expected 0.65, got %v", got)
	}
	r := Result{Confidence: 0.5}
	if got := r.WithExternalConfidence(nil); got.Confidence != 0.5 {
		t.Fatalf("expected unchanged confidence, got %v", got.Confidence)
	}
	ext := 0.0
	if got := r.WithExternalConfidence(&ext); !almostEqual(got.Confidence, 0.35) {
		t.Fatalf("expected 0.35, got %v", got.Confidence)
	}
}

func TestDisplayScoreAndPass(t *testing.T) {
	if got := DisplayScore(0.856); got != 86 {
		t.Fatalf("expected 86, got %d", got)
	}
	if got := DisplayScore(1.4); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	if !Passed(70) || Passed(69) {
		t.Fatalf("unexpected pass threshold")
	}
}

func TestFeedback(t *testing.T) {
	tests := []struct {
		r    Result
		want string
	}{
		{Result{Confidence: 0.95, Fluency: 0.9}, "excellent fluency"},
		{Result{Confidence: 0.85, Accuracy: 0.9}, "Clear pronunciation"},
		{Result{Confidence: 0.72, Fluency: 0.5}, "Focus on smoother delivery"},
		{Result{Confidence: 0.3, Accuracy: 0.2}, "Work on pronunciation clarity"},
	}
	for _, tt := range tests {
		if got := Feedback(tt.r); !strings.Contains(got, tt.want) {
			t.Fatalf("Feedback(%+v) = %q, want it to contain %q", tt.r, got, tt.want)
		}
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
