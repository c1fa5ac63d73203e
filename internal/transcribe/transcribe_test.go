package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAssembly struct {
	pendingPolls int32
	polls        atomic.Int32
	finalStatus  string
	text         string
	confidence   *float64

	gotLanguage string
	gotAuth     string
	gotUpload   string
}

func (f *fakeAssembly) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			body, _ := io.ReadAll(r.Body)
			f.gotUpload = string(body)
			_ = json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.example/audio-1"})
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			var req transcriptRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AudioURL != "https://cdn.example/audio-1" || !req.Punctuate || !req.FormatText {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			f.gotLanguage = req.LanguageCode
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "tr-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/transcript/tr-1":
			n := f.polls.Add(1)
			status := transcriptStatus{ID: "tr-1", Status: "processing"}
			if n > f.pendingPolls {
				status.Status = f.finalStatus
				status.Text = f.text
				status.Confidence = f.confidence
				status.Error = "audio too short"
			}
			_ = json.NewEncoder(w).Encode(status)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAssembly(t *testing.T, url string, attempts int) *AssemblyAI {
	t.Helper()
	a, err := NewAssemblyAI("test-key", WithBaseURL(url+"/"), WithPollInterval(time.Millisecond), WithMaxAttempts(attempts))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return a
}

func TestAssemblyAITranscribes(t *testing.T) {
	conf := 0.91
	f := &fakeAssembly{pendingPolls: 2, finalStatus: "completed", text: "Hello there", confidence: &conf}
	srv := f.server(t)
	a := newTestAssembly(t, srv.URL, 5)

	got, err := a.Transcribe(context.Background(), Audio{Data: []byte("RIFF"), ContentType: "audio/wav"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got.Text != "Hello there" || got.Confidence == nil || *got.Confidence != 0.91 {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if f.polls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", f.polls.Load())
	}
	if f.gotLanguage != DefaultLanguage || f.gotAuth != "test-key" || f.gotUpload != "RIFF" {
		t.Fatalf("unexpected request data lang=%q auth=%q upload=%q", f.gotLanguage, f.gotAuth, f.gotUpload)
	}
}

func TestAssemblyAITimeout(t *testing.T) {
	f := &fakeAssembly{pendingPolls: 100, finalStatus: "completed", text: "late"}
	srv := f.server(t)
	a := newTestAssembly(t, srv.URL, 3)

	_, err := a.Transcribe(context.Background(), Audio{Data: []byte("x"), Language: "de"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if f.polls.Load() != 3 || f.gotLanguage != "de" {
		t.Fatalf("unexpected polls=%d lang=%q", f.polls.Load(), f.gotLanguage)
	}
}

func TestAssemblyAIStatusError(t *testing.T) {
	f := &fakeAssembly{finalStatus: "error"}
	srv := f.server(t)
	a := newTestAssembly(t, srv.URL, 3)

	_, err := a.Transcribe(context.Background(), Audio{Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "audio too short") {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestAssemblyAIEmptyText(t *testing.T) {
	f := &fakeAssembly{finalStatus: "completed", text: "  "}
	srv := f.server(t)
	a := newTestAssembly(t, srv.URL, 3)

	if _, err := a.Transcribe(context.Background(), Audio{Data: []byte("x")}); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestAssemblyAICancelled(t *testing.T) {
	f := &fakeAssembly{pendingPolls: 100, finalStatus: "completed", text: "late"}
	srv := f.server(t)
	a, err := NewAssemblyAI("k", WithBaseURL(srv.URL), WithPollInterval(time.Hour))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := a.Transcribe(ctx, Audio{Data: []byte("x")}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAssemblyAIHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()
	a, _ := NewAssemblyAI("bad", WithBaseURL(srv.URL))
	_, err := a.Transcribe(context.Background(), Audio{Data: []byte("x")})
	if err == nil || !strings.Contains(err.Error(), "HTTP 401") {
		t.Fatalf("expected HTTP 401 error, got %v", err)
	}
}

func TestNewAssemblyAIRequiresKey(t *testing.T) {
	if _, err := NewAssemblyAI(" "); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestWhisperTranscribes(t *testing.T) {
	var gotModel, gotLang, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLang = r.FormValue("language")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text":"good morning everyone"}`)
	}))
	defer srv.Close()

	w, err := NewWhisper("sk-test", WithWhisperBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := w.Transcribe(context.Background(), Audio{Data: []byte("ogg"), ContentType: "audio/ogg;codecs=opus", Language: "en"})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if got.Text != "good morning everyone" || got.Confidence != nil {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if gotModel != DefaultWhisperModel || gotLang != "en" || gotFile != "recording.ogg" {
		t.Fatalf("unexpected request model=%q lang=%q file=%q", gotModel, gotLang, gotFile)
	}
}

func TestStatic(t *testing.T) {
	s := Static{Text: "hi"}
	got, err := s.Transcribe(context.Background(), Audio{Data: []byte("x")})
	if err != nil || got.Text != "hi" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if _, err := s.Transcribe(context.Background(), Audio{}); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if _, err := (Static{}).Transcribe(context.Background(), Audio{Data: []byte("x")}); !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestIsAudioAndExtension(t *testing.T) {
	if !IsAudio("audio/webm") || !IsAudio(" Audio/WAV") || IsAudio("video/mp4") || IsAudio("") {
		t.Fatalf("unexpected IsAudio results")
	}
	cases := map[string]string{
		"audio/mpeg":             ".mp3",
		"audio/wav":              ".wav",
		"audio/ogg;codecs=opus":  ".ogg",
		"audio/x-m4a":            ".m4a",
		"audio/webm;codecs=opus": ".webm",
		"":                       ".webm",
	}
	for in, want := range cases {
		if got := extension(in); got != want {
			t.Fatalf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
