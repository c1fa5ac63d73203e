package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultWhisperModel is the OpenAI transcription model used when none is set.
const DefaultWhisperModel = oai.AudioModelWhisper1

// Compile-time assertion that Whisper implements Provider.
var _ Provider = (*Whisper)(nil)

type whisperConfig struct {
	baseURL string
	model   string
	timeout time.Duration
}

// WhisperOption configures a Whisper provider.
type WhisperOption func(*whisperConfig)

// WithWhisperBaseURL targets an OpenAI-compatible gateway instead of api.openai.com.
func WithWhisperBaseURL(url string) WhisperOption {
	return func(c *whisperConfig) {
		c.baseURL = url
	}
}

// WithWhisperModel overrides DefaultWhisperModel.
func WithWhisperModel(model string) WhisperOption {
	return func(c *whisperConfig) {
		c.model = model
	}
}

// WithWhisperTimeout sets a per-request HTTP timeout.
func WithWhisperTimeout(d time.Duration) WhisperOption {
	return func(c *whisperConfig) {
		c.timeout = d
	}
}

// Whisper transcribes through the OpenAI audio transcription endpoint.
type Whisper struct {
	client oai.Client
	model  string
}

// NewWhisper returns a provider authenticated with apiKey.
func NewWhisper(apiKey string, opts ...WhisperOption) (*Whisper, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("whisper: api key must not be empty")
	}
	cfg := &whisperConfig{model: DefaultWhisperModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Whisper{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Transcribe implements Provider. The API reports no overall confidence.
func (w *Whisper) Transcribe(ctx context.Context, audio Audio) (Transcript, error) {
	if len(audio.Data) == 0 {
		return Transcript{}, ErrNoAudio
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/webm"
	}
	res, err := w.client.Audio.Transcriptions.New(ctx, oai.AudioTranscriptionNewParams{
		File:     oai.File(bytes.NewReader(audio.Data), "recording"+extension(contentType), contentType),
		Model:    oai.AudioModel(w.model),
		Language: oai.String(audio.language()),
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("whisper: transcribe: %w", err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return Transcript{}, ErrEmptyTranscript
	}
	return Transcript{Text: res.Text}, nil
}

func extension(contentType string) string {
	sub := strings.TrimPrefix(strings.ToLower(contentType), "audio/")
	if i := strings.IndexAny(sub, ";+"); i >= 0 {
		sub = sub[:i]
	}
	switch sub {
	case "mpeg", "mp3":
		return ".mp3"
	case "wav", "x-wav", "wave":
		return ".wav"
	case "ogg":
		return ".ogg"
	case "mp4", "m4a", "x-m4a":
		return ".m4a"
	default:
		return ".webm"
	}
}
