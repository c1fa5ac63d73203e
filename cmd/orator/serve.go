package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/orator/internal/config"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/logger"
	"github.com/verte-zerg/orator/internal/server"
	"github.com/verte-zerg/orator/internal/transcribe"
)

var (
	serveAddr     string
	serveEnv      string
	serveLogLevel string
	serveProvider string
	serveSecure   bool
	serveMaxMB    int
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServeCmd,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", config.DefaultAddr, "listen address")
	cmd.Flags().StringVar(&serveEnv, "env", config.DefaultEnv, "development or production")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", config.DefaultLogLevel, "log level")
	cmd.Flags().StringVar(&serveProvider, "provider", "", "transcription provider (assemblyai, whisper or none)")
	cmd.Flags().BoolVar(&serveSecure, "secure-cookie", false, "mark the access key cookie Secure")
	cmd.Flags().IntVar(&serveMaxMB, "max-audio-mb", config.DefaultMaxAudioMB, "largest accepted audio upload in MB")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings(cmd, func(fc *config.FileConfig) {
		overrideString(cmd, "addr", serveAddr, &fc.Server.Addr)
		overrideString(cmd, "env", serveEnv, &fc.Server.Env)
		overrideString(cmd, "log-level", serveLogLevel, &fc.Log.Level)
		overrideString(cmd, "provider", serveProvider, &fc.Transcribe.Provider)
		overrideBool(cmd, "secure-cookie", serveSecure, &fc.Server.SecureCookie)
		overrideInt(cmd, "max-audio-mb", serveMaxMB, &fc.Server.MaxAudioMB)
	})
	if err != nil {
		return err
	}

	mode := "development"
	if settings.Production() {
		mode = "prod"
	}
	log, err := logger.New(mode, settings.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	log = log.WithSalt(settings.LogSalt)
	defer log.Sync()

	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer closeStore(st)

	stt, err := newProvider(settings)
	if err != nil {
		return err
	}
	if stt == nil {
		log.Warn("speech analysis disabled: no transcription provider configured")
	}

	srv := server.New(game.New(st, log), stt, log, server.Config{
		Release:       settings.Production(),
		AllowOrigins:  settings.Origins,
		SecureCookie:  settings.SecureCookie,
		SpeechTimeout: settings.SpeechTimeout,
		MaxAudioBytes: settings.MaxAudioBytes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("starting server", "addr", settings.Addr, "env", settings.Env, "db", settings.DBDriver, "provider", settings.Provider)
	if err := srv.Run(ctx, settings.Addr); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newProvider builds the configured transcription backend. It returns nil
// when transcription is disabled.
func newProvider(settings config.Settings) (transcribe.Provider, error) {
	switch settings.Provider {
	case config.ProviderAssemblyAI:
		opts := []transcribe.AssemblyAIOption{
			transcribe.WithPollInterval(settings.PollInterval),
			transcribe.WithMaxAttempts(settings.MaxAttempts),
		}
		if settings.BaseURL != "" {
			opts = append(opts, transcribe.WithBaseURL(settings.BaseURL))
		}
		p, err := transcribe.NewAssemblyAI(settings.AssemblyAIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to configure assemblyai: %w", err)
		}
		return p, nil
	case config.ProviderWhisper:
		opts := []transcribe.WhisperOption{transcribe.WithWhisperTimeout(settings.SpeechTimeout)}
		if settings.BaseURL != "" {
			opts = append(opts, transcribe.WithWhisperBaseURL(settings.BaseURL))
		}
		if settings.Model != "" {
			opts = append(opts, transcribe.WithWhisperModel(settings.Model))
		}
		p, err := transcribe.NewWhisper(settings.OpenAIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to configure whisper: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}
