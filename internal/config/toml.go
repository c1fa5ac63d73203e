// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields are nil
// when the key is absent so that defaults and flags can tell "unset" apart
// from a zero value.
type FileConfig struct {
	Server     ServerConfig     `toml:"server"`
	DB         DBConfig         `toml:"db"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Log        LogConfig        `toml:"log"`
	Practice   PracticeConfig   `toml:"practice"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr          *string  `toml:"addr"`
	Env           *string  `toml:"env"`
	Origins       []string `toml:"origins"`
	SecureCookie  *bool    `toml:"secure-cookie"`
	SpeechTimeout *string  `toml:"speech-timeout"`
	MaxAudioMB    *int     `toml:"max-audio-mb"`
}

// DBConfig maps database settings.
type DBConfig struct {
	Driver *string `toml:"driver"`
	DSN    *string `toml:"dsn"`
}

// TranscribeConfig maps speech-to-text settings.
type TranscribeConfig struct {
	Provider      *string `toml:"provider"`
	AssemblyAIKey *string `toml:"assemblyai-key"`
	OpenAIKey     *string `toml:"openai-key"`
	BaseURL       *string `toml:"base-url"`
	Model         *string `toml:"model"`
	PollInterval  *string `toml:"poll-interval"`
	MaxAttempts   *int    `toml:"max-attempts"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	Salt  *string `toml:"salt"`
}

// PracticeConfig maps terminal practice settings.
type PracticeConfig struct {
	Key   *string `toml:"key"`
	Level *int    `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// DefaultTemplate is written by `orator config` when no file exists yet.
func DefaultTemplate() string {
	return fmt.Sprintf(`# orator configuration
# Uncomment a value to enable it. Environment variables override the file,
# CLI flags override both.

[server]
# addr = %q              # Listen address (ORATOR_ADDR)
# env = "development"          # development or production (ORATOR_ENV)
# origins = ["*"]              # Allowed CORS origins
# secure-cookie = true         # Mark the access key cookie Secure
# speech-timeout = %q         # Upper bound for one transcription
# max-audio-mb = %d            # Largest accepted upload

[db]
# driver = "sqlite"            # sqlite or postgres (ORATOR_DB_DRIVER)
# dsn = ""                     # Path or connection string (ORATOR_DB_DSN)

[transcribe]
# provider = ""                # assemblyai, whisper or none; empty picks by key
# assemblyai-key = ""          # ASSEMBLYAI_API_KEY
# openai-key = ""              # OPENAI_API_KEY
# base-url = ""                # Override the provider endpoint
# model = "whisper-1"          # Whisper model
# poll-interval = "1s"         # AssemblyAI poll interval
# max-attempts = %d            # AssemblyAI polls before giving up

[log]
# level = "info"               # debug, info, warn or error (ORATOR_LOG_LEVEL)
# salt = ""                    # Salt for hashed user ids in logs

[practice]
# key = ""                     # Access key used by the terminal commands
# level = 1                    # Level to practice when --level is not given
`,
		DefaultAddr,
		DefaultSpeechTimeout.String(),
		DefaultMaxAudioMB,
		DefaultMaxAttempts,
	)
}
