package scoring

import (
	"fmt"
	"math"
)

// PassScore is the minimum display score that counts as a successful attempt.
const PassScore = 70

// BlendConfidence mixes our composite confidence with the transcription
// provider's own confidence.
func BlendConfidence(own, external float64) float64 {
	return clamp01(own*0.7 + external*0.3)
}

// WithExternalConfidence returns r with its confidence blended against the
// provider value. A nil value leaves r unchanged.
func (r Result) WithExternalConfidence(external *float64) Result {
	if external == nil {
		return r
	}
	r.Confidence = BlendConfidence(r.Confidence, *external)
	return r
}

// DisplayScore converts a confidence into the 0-100 score shown to users.
func DisplayScore(confidence float64) int {
	return int(math.Round(clamp01(confidence) * 100))
}

// Passed reports whether a display score clears PassScore.
func Passed(score int) bool {
	return score >= PassScore
}

// Feedback builds the short message shown after an attempt.
func Feedback(r Result) string {
	score := DisplayScore(r.Confidence)
	switch {
	case score >= 90:
		detail := "good delivery"
		if r.Fluency > 0.8 {
			detail = "excellent fluency"
		}
		return fmt.Sprintf("Excellent! Perfect articulation with %s!", detail)
	case score >= 80:
		detail := "Good effort"
		if r.Accuracy > 0.8 {
			detail = "Clear pronunciation"
		}
		return fmt.Sprintf("Great job! %s with confident delivery!", detail)
	case score >= PassScore:
		detail := "Focus on smoother delivery"
		if r.Fluency > 0.6 {
			detail = "Keep building fluency"
		}
		return fmt.Sprintf("Good work! %s for even better results!", detail)
	default:
		detail := "Practice pacing and confidence"
		if r.Accuracy < 0.5 {
			detail = "Work on pronunciation clarity"
		}
		return fmt.Sprintf("Nice effort! %s for improvement.", detail)
	}
}
