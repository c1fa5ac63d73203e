package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied by Resolve.
const (
	DefaultAddr          = ":8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultMaxAudioMB    = 25
	DefaultMaxAttempts   = 30
	DefaultSpeechTimeout = 60 * time.Second
	DefaultPollInterval  = time.Second
)

// Transcription providers.
const (
	ProviderAssemblyAI = "assemblyai"
	ProviderWhisper    = "whisper"
	ProviderNone       = "none"
)

// Settings is the fully resolved runtime configuration.
type Settings struct {
	Addr          string
	Env           string
	Origins       []string
	SecureCookie  bool
	SpeechTimeout time.Duration
	MaxAudioBytes int64

	DBDriver string
	DBDSN    string

	Provider      string
	AssemblyAIKey string
	OpenAIKey     string
	BaseURL       string
	Model         string
	PollInterval  time.Duration
	MaxAttempts   int

	LogLevel string
	LogSalt  string

	PracticeKey   string
	PracticeLevel int
}

// Production reports whether the server runs in production mode.
func (s Settings) Production() bool {
	return s.Env == "production"
}

// Resolve fills defaults for every unset value and validates the result.
func Resolve(fc FileConfig) (Settings, error) {
	s := Settings{
		Addr:          deref(fc.Server.Addr, DefaultAddr),
		Env:           strings.ToLower(deref(fc.Server.Env, DefaultEnv)),
		Origins:       fc.Server.Origins,
		DBDriver:      strings.ToLower(deref(fc.DB.Driver, "sqlite")),
		DBDSN:         deref(fc.DB.DSN, ""),
		Provider:      strings.ToLower(deref(fc.Transcribe.Provider, "")),
		AssemblyAIKey: deref(fc.Transcribe.AssemblyAIKey, ""),
		OpenAIKey:     deref(fc.Transcribe.OpenAIKey, ""),
		BaseURL:       deref(fc.Transcribe.BaseURL, ""),
		Model:         deref(fc.Transcribe.Model, ""),
		MaxAttempts:   deref(fc.Transcribe.MaxAttempts, DefaultMaxAttempts),
		LogLevel:      deref(fc.Log.Level, DefaultLogLevel),
		LogSalt:       deref(fc.Log.Salt, ""),
		PracticeKey:   deref(fc.Practice.Key, ""),
		PracticeLevel: deref(fc.Practice.Level, 1),
	}
	if s.Env != "development" && s.Env != "production" {
		return Settings{}, fmt.Errorf("env must be development or production, got %q", s.Env)
	}
	s.SecureCookie = deref(fc.Server.SecureCookie, s.Production())

	mb := deref(fc.Server.MaxAudioMB, DefaultMaxAudioMB)
	if mb <= 0 {
		return Settings{}, fmt.Errorf("max-audio-mb must be > 0")
	}
	s.MaxAudioBytes = int64(mb) << 20

	var err error
	if s.SpeechTimeout, err = parseDuration("speech-timeout", fc.Server.SpeechTimeout, DefaultSpeechTimeout); err != nil {
		return Settings{}, err
	}
	if s.PollInterval, err = parseDuration("poll-interval", fc.Transcribe.PollInterval, DefaultPollInterval); err != nil {
		return Settings{}, err
	}
	if s.MaxAttempts <= 0 {
		return Settings{}, fmt.Errorf("max-attempts must be > 0")
	}
	if s.PracticeLevel <= 0 {
		return Settings{}, fmt.Errorf("practice level must be > 0")
	}

	switch s.DBDriver {
	case "sqlite":
		if s.DBDSN == "" {
			s.DBDSN = DefaultDBPath()
		}
	case "postgres":
		if s.DBDSN == "" {
			return Settings{}, fmt.Errorf("db dsn is required for postgres")
		}
	default:
		return Settings{}, fmt.Errorf("unsupported db driver %q", s.DBDriver)
	}

	switch s.Provider {
	case "":
		switch {
		case s.AssemblyAIKey != "":
			s.Provider = ProviderAssemblyAI
		case s.OpenAIKey != "":
			s.Provider = ProviderWhisper
		default:
			s.Provider = ProviderNone
		}
	case ProviderAssemblyAI:
		if s.AssemblyAIKey == "" {
			return Settings{}, fmt.Errorf("assemblyai provider needs %s", EnvAssemblyAIKey)
		}
	case ProviderWhisper:
		if s.OpenAIKey == "" {
			return Settings{}, fmt.Errorf("whisper provider needs %s", EnvOpenAIKey)
		}
	case ProviderNone:
	default:
		return Settings{}, fmt.Errorf("unknown transcription provider %q", s.Provider)
	}
	return s, nil
}

func deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func parseDuration(name string, raw *string, def time.Duration) (time.Duration, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return d, nil
}
