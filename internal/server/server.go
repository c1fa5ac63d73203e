// Package server exposes the game over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/logger"
	"github.com/verte-zerg/orator/internal/transcribe"
)

const (
	defaultSpeechTimeout = 60 * time.Second
	defaultMaxAudioBytes = 25 << 20
	shutdownTimeout      = 10 * time.Second
)

// Config tunes the HTTP layer.
type Config struct {
	// Release switches gin into release mode.
	Release bool
	// AllowOrigins lists CORS origins. Empty or "*" allows every origin.
	AllowOrigins []string
	// SecureCookie marks the access key cookie Secure.
	SecureCookie bool
	// SpeechTimeout bounds one transcription request.
	SpeechTimeout time.Duration
	// MaxAudioBytes caps multipart uploads.
	MaxAudioBytes int64
}

// Server wires handlers to the game service.
type Server struct {
	engine  *gin.Engine
	svc     *game.Service
	stt     transcribe.Provider
	log     *logger.Logger
	metrics *Metrics
	cfg     Config
}

// New builds the router. stt may be nil, in which case speech analysis
// answers 503.
func New(svc *game.Service, stt transcribe.Provider, log *logger.Logger, cfg Config) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = defaultSpeechTimeout
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaultMaxAudioBytes
	}
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:  gin.New(),
		svc:     svc,
		stt:     stt,
		log:     log.With("component", "http"),
		metrics: NewMetrics(),
		cfg:     cfg,
	}
	s.engine.MaxMultipartMemory = cfg.MaxAudioBytes
	s.engine.Use(s.recovery(), s.requestLogger(), s.metrics.middleware(), corsMiddleware(cfg.AllowOrigins))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	api.POST("/auth/validate", s.validateAccessKey)

	authed := api.Group("", s.requireAuth(false))
	authed.GET("/user/data", s.userData)
	authed.POST("/progress", s.saveProgress)
	authed.GET("/progress", s.progress)
	authed.POST("/session", s.session)
	authed.POST("/speech/analyze", s.analyzeSpeech)

	api.GET("/analytics", s.requireAuth(true), s.userAnalytics)

	public := api.Group("/public")
	public.GET("", s.publicInfo)
	public.GET("/stats", s.publicStats)
	public.GET("/levels", s.publicLevels)
	public.GET("/leaderboard", s.leaderboard)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	if err := s.svc.Ping(c.Request.Context()); err != nil {
		s.log.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
