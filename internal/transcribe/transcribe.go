// Package transcribe turns recorded speech into text.
//
// Backends implement Provider: AssemblyAI (upload, request, poll), the OpenAI
// audio transcription API, and Static for tests and offline play.
package transcribe

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrTimeout is returned when a transcript is not ready after the last poll.
	ErrTimeout = errors.New("transcription timed out")
	// ErrEmptyTranscript is returned when the backend produced no text.
	ErrEmptyTranscript = errors.New("no transcription text received")
	// ErrNoAudio is returned for empty uploads.
	ErrNoAudio = errors.New("no audio provided")
)

// DefaultLanguage is used when Audio.Language is empty.
const DefaultLanguage = "en"

// Audio is one recorded answer.
type Audio struct {
	Data        []byte
	ContentType string
	Language    string
}

func (a Audio) language() string {
	if a.Language == "" {
		return DefaultLanguage
	}
	return a.Language
}

// Transcript is the backend's reading of an Audio clip.
type Transcript struct {
	Text string
	// Confidence is the backend's own confidence in [0, 1], nil when it gives none.
	Confidence *float64
}

// Provider transcribes audio. Implementations must be safe for concurrent use.
type Provider interface {
	Transcribe(ctx context.Context, audio Audio) (Transcript, error)
}

// Static returns the same transcript for every clip.
type Static struct {
	Text       string
	Confidence *float64
}

// Transcribe implements Provider.
func (s Static) Transcribe(ctx context.Context, audio Audio) (Transcript, error) {
	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	if len(audio.Data) == 0 {
		return Transcript{}, ErrNoAudio
	}
	if strings.TrimSpace(s.Text) == "" {
		return Transcript{}, ErrEmptyTranscript
	}
	return Transcript{Text: s.Text, Confidence: s.Confidence}, nil
}

// IsAudio reports whether contentType names an audio payload.
func IsAudio(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "audio/")
}
