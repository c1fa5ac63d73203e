package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// AssemblyAIBaseURL is the public v2 API endpoint.
	AssemblyAIBaseURL = "https://api.assemblyai.com/v2"

	defaultPollInterval = time.Second
	defaultMaxAttempts  = 30
)

// Compile-time assertion that AssemblyAI implements Provider.
var _ Provider = (*AssemblyAI)(nil)

// AssemblyAIOption configures an AssemblyAI provider.
type AssemblyAIOption func(*AssemblyAI)

// WithBaseURL points the client at another API root, mostly for tests.
func WithBaseURL(url string) AssemblyAIOption {
	return func(a *AssemblyAI) {
		a.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) AssemblyAIOption {
	return func(a *AssemblyAI) {
		a.http = c
	}
}

// WithPollInterval sets the wait between status polls.
func WithPollInterval(d time.Duration) AssemblyAIOption {
	return func(a *AssemblyAI) {
		a.pollInterval = d
	}
}

// WithMaxAttempts caps the number of status polls.
func WithMaxAttempts(n int) AssemblyAIOption {
	return func(a *AssemblyAI) {
		a.maxAttempts = n
	}
}

// AssemblyAI transcribes through the AssemblyAI REST API.
type AssemblyAI struct {
	apiKey       string
	baseURL      string
	http         *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// NewAssemblyAI returns a provider authenticated with apiKey.
func NewAssemblyAI(apiKey string, opts ...AssemblyAIOption) (*AssemblyAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("assemblyai: api key must not be empty")
	}
	a := &AssemblyAI{
		apiKey:       apiKey,
		baseURL:      AssemblyAIBaseURL,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
	}
	for _, o := range opts {
		o(a)
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = defaultMaxAttempts
	}
	return a, nil
}

type transcriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code,omitempty"`
	Punctuate    bool   `json:"punctuate"`
	FormatText   bool   `json:"format_text"`
}

type transcriptStatus struct {
	ID         string   `json:"id"`
	Status     string   `json:"status"`
	Text       string   `json:"text"`
	Error      string   `json:"error"`
	Confidence *float64 `json:"confidence"`
}

// Transcribe uploads the clip, requests a transcript and polls until it is ready.
func (a *AssemblyAI) Transcribe(ctx context.Context, audio Audio) (Transcript, error) {
	if len(audio.Data) == 0 {
		return Transcript{}, ErrNoAudio
	}
	uploadURL, err := a.upload(ctx, audio.Data)
	if err != nil {
		return Transcript{}, err
	}
	id, err := a.request(ctx, uploadURL, audio.language())
	if err != nil {
		return Transcript{}, err
	}
	status, err := a.poll(ctx, id)
	if err != nil {
		return Transcript{}, err
	}
	if strings.TrimSpace(status.Text) == "" {
		return Transcript{}, ErrEmptyTranscript
	}
	return Transcript{Text: status.Text, Confidence: status.Confidence}, nil
}

func (a *AssemblyAI) upload(ctx context.Context, data []byte) (string, error) {
	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := a.do(ctx, http.MethodPost, "/upload", "application/octet-stream", bytes.NewReader(data), &out); err != nil {
		return "", fmt.Errorf("assemblyai: upload: %w", err)
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai: upload: empty upload url")
	}
	return out.UploadURL, nil
}

func (a *AssemblyAI) request(ctx context.Context, audioURL, language string) (string, error) {
	body, err := json.Marshal(transcriptRequest{
		AudioURL:     audioURL,
		LanguageCode: language,
		Punctuate:    true,
		FormatText:   true,
	})
	if err != nil {
		return "", err
	}
	var out transcriptStatus
	if err := a.do(ctx, http.MethodPost, "/transcript", "application/json", bytes.NewReader(body), &out); err != nil {
		return "", fmt.Errorf("assemblyai: request transcript: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("assemblyai: request transcript: empty id")
	}
	return out.ID, nil
}

func (a *AssemblyAI) poll(ctx context.Context, id string) (transcriptStatus, error) {
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		var status transcriptStatus
		if err := a.do(ctx, http.MethodGet, "/transcript/"+id, "", nil, &status); err != nil {
			return transcriptStatus{}, fmt.Errorf("assemblyai: poll: %w", err)
		}
		switch status.Status {
		case "completed":
			return status, nil
		case "error":
			return transcriptStatus{}, fmt.Errorf("assemblyai: transcription error: %s", status.Error)
		}

		timer := time.NewTimer(a.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return transcriptStatus{}, ctx.Err()
		case <-timer.C:
		}
	}
	return transcriptStatus{}, ErrTimeout
}

func (a *AssemblyAI) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
