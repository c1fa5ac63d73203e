// Package game ties the store, level catalog and scoring together for the
// HTTP API and the terminal client.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/levels"
	"github.com/verte-zerg/orator/internal/logger"
	"github.com/verte-zerg/orator/internal/model"
	"github.com/verte-zerg/orator/internal/scoring"
	"github.com/verte-zerg/orator/internal/store"
)

var (
	// ErrEmptyKey is returned when an access key is blank.
	ErrEmptyKey = errors.New("access key is required")
	// ErrUnknownUser is returned when no active user holds the key.
	ErrUnknownUser = errors.New("unknown access key")
	// ErrNoActiveSession is returned when ending a session that was never started.
	ErrNoActiveSession = errors.New("no active session")
	// ErrUnknownLevel is returned for level ids outside the catalog.
	ErrUnknownLevel = errors.New("unknown level")
	// ErrInvalidProgress is returned for progress payloads missing required fields.
	ErrInvalidProgress = errors.New("invalid progress")
)

// Timeframes accepted by Leaderboard.
const (
	TimeframeAll   = "all"
	TimeframeMonth = "month"
	TimeframeWeek  = "week"
)

// Service implements the game operations for one store.
type Service struct {
	store *store.Store
	log   *logger.Logger
	now   func() time.Time
}

// New returns a Service backed by st. A nil log discards output.
func New(st *store.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, log: log, now: time.Now}
}

// Ping checks the backing database.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Authenticate returns the user for key, creating it on first use.
func (s *Service) Authenticate(ctx context.Context, key string) (model.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.User{}, ErrEmptyKey
	}
	u, err := s.store.GetOrCreateUser(ctx, key)
	if err != nil {
		return model.User{}, err
	}
	s.log.Debug("user authenticated", "user_id", u.ID)
	return u, nil
}

// User returns the active user holding key without creating one.
func (s *Service) User(ctx context.Context, key string) (model.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return model.User{}, ErrEmptyKey
	}
	u, err := s.store.UserByAccessKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUnknownUser
	}
	return u, err
}

// UserData loads the profile for key.
func (s *Service) UserData(ctx context.Context, key string) (model.UserData, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return model.UserData{}, err
	}
	return s.userData(ctx, u)
}

func (s *Service) userData(ctx context.Context, u model.User) (model.UserData, error) {
	var (
		cached    *model.UserStats
		completed []int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cached, err = s.store.UserStats(gctx, u.ID)
		return err
	})
	g.Go(func() error {
		var err error
		completed, err = s.store.CompletedLevels(gctx, u.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.UserData{}, fmt.Errorf("failed to load user data: %w", err)
	}

	data := model.UserData{
		User:            u,
		Stats:           cached,
		CompletedLevels: completed,
		CurrentLevel:    levels.Next(completed),
	}
	if cached != nil {
		data.TotalCoins = cached.TotalCoins
		data.TotalXP = cached.TotalXP
		data.Streak = cached.CurrentStreak
	}
	// The cache lags behind progress until the first refresh.
	if cached == nil || data.TotalCoins == 0 {
		records, err := s.store.ListProgress(ctx, u.ID)
		if err != nil {
			return model.UserData{}, err
		}
		data.TotalCoins, data.TotalXP = 0, 0
		for _, r := range records {
			data.TotalCoins += r.CoinsEarned
			data.TotalXP += r.XPEarned
		}
	}
	return data, nil
}

// SaveProgress stores one attempt and updates the streak and cached stats.
func (s *Service) SaveProgress(ctx context.Context, key string, p model.NewProgress) (model.ProgressRecord, error) {
	if strings.TrimSpace(p.SessionKey) == "" || p.LevelID <= 0 {
		return model.ProgressRecord{}, fmt.Errorf("%w: session key and level id are required", ErrInvalidProgress)
	}
	u, err := s.User(ctx, key)
	if err != nil {
		return model.ProgressRecord{}, err
	}
	rec, err := s.store.SaveProgress(ctx, u.ID, p)
	if err != nil {
		return model.ProgressRecord{}, err
	}

	cached, err := s.store.UserStats(ctx, u.ID)
	if err != nil {
		return rec, err
	}
	if rec.Success {
		streak := 1
		if cached != nil {
			streak = cached.CurrentStreak + 1
		}
		err = s.store.UpdateStreak(ctx, u.ID, streak)
	} else {
		err = s.store.ResetStreak(ctx, u.ID)
	}
	if err != nil {
		return rec, err
	}
	if _, err := s.store.RefreshUserStats(ctx, u.ID); err != nil {
		return rec, err
	}
	s.log.Info("progress saved", "user_id", u.ID, "level_id", rec.LevelID, "success", rec.Success, "score", rec.Score)
	return rec, nil
}

// HasCompletedLevel reports whether the user behind key has passed levelID.
func (s *Service) HasCompletedLevel(ctx context.Context, key string, levelID int) (bool, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return false, err
	}
	return s.store.HasCompletedLevel(ctx, u.ID, levelID)
}

// LevelProgress returns the attempts at one level, newest first.
func (s *Service) LevelProgress(ctx context.Context, key string, levelID int) ([]model.ProgressRecord, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.store.LevelProgress(ctx, u.ID, levelID)
}

// AllProgress returns every attempt, newest first.
func (s *Service) AllProgress(ctx context.Context, key string) ([]model.ProgressRecord, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.store.ListProgress(ctx, u.ID)
}

// StartSession opens a play session.
func (s *Service) StartSession(ctx context.Context, key string) (model.SessionSummary, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return model.SessionSummary{}, err
	}
	return s.store.StartSession(ctx, u.ID)
}

// EndSession closes the user's most recent open session.
func (s *Service) EndSession(ctx context.Context, key string, end model.SessionEnd) (model.SessionSummary, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return model.SessionSummary{}, err
	}
	active, err := s.store.ActiveSession(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.SessionSummary{}, ErrNoActiveSession
	}
	if err != nil {
		return model.SessionSummary{}, err
	}
	return s.store.EndSession(ctx, active.ID, end)
}

// LeaderboardRequest selects a leaderboard view.
type LeaderboardRequest struct {
	SortBy    string
	Timeframe string
	Limit     int
}

// Leaderboard returns anonymised rankings.
func (s *Service) Leaderboard(ctx context.Context, req LeaderboardRequest) ([]model.LeaderboardEntry, error) {
	q := store.LeaderboardQuery{SortBy: req.SortBy, Limit: req.Limit}
	switch req.Timeframe {
	case TimeframeWeek:
		since := s.now().Add(-7 * 24 * time.Hour)
		q.Since = &since
	case TimeframeMonth:
		since := s.now().Add(-30 * 24 * time.Hour)
		q.Since = &since
	}
	return s.store.Leaderboard(ctx, q)
}

// PublicStats summarises the platform.
func (s *Service) PublicStats(ctx context.Context) (model.PublicStats, error) {
	return s.store.PublicStats(ctx, s.now())
}

// Analytics derives the analytics view for key.
func (s *Service) Analytics(ctx context.Context, key string, opts analytics.Options) (analytics.View, error) {
	u, err := s.User(ctx, key)
	if err != nil {
		return analytics.View{}, err
	}
	data, err := s.userData(ctx, u)
	if err != nil {
		return analytics.View{}, err
	}
	records, err := s.store.ListProgress(ctx, u.ID)
	if err != nil {
		return analytics.View{}, err
	}
	return analytics.Aggregate(records, analytics.BaselineFromUserData(data), opts), nil
}

// AttemptInput is one spoken or typed attempt at a level.
type AttemptInput struct {
	SessionKey      string
	LevelID         int
	Transcript      string
	DurationSeconds float64
	// Confidence is the transcription provider's own confidence, if any.
	Confidence *float64
	Interview  *levels.Interview
}

// AttemptResult is the scored and stored outcome of an attempt.
type AttemptResult struct {
	Level    levels.Level         `json:"level"`
	Score    scoring.Result       `json:"analysis"`
	Display  int                  `json:"score"`
	Success  bool                 `json:"success"`
	Feedback string               `json:"feedback"`
	Record   model.ProgressRecord `json:"record"`
}

// Attempt scores a transcript against its level and saves the outcome.
func (s *Service) Attempt(ctx context.Context, key string, in AttemptInput) (AttemptResult, error) {
	lvl, ok := levels.ByID(in.LevelID)
	if !ok {
		return AttemptResult{}, fmt.Errorf("%w: %d", ErrUnknownLevel, in.LevelID)
	}
	res := scoring.Score(in.Transcript, in.DurationSeconds, lvl.ExpectedText(in.Interview)).
		WithExternalConfidence(in.Confidence)
	display := scoring.DisplayScore(res.Confidence)
	success := scoring.Passed(display)
	coins, xp := lvl.Rewards(success)

	transcript := res.Transcription
	accuracy, fluency, wpm, duration := res.Accuracy, res.Fluency, res.WordsPerMinute, res.Duration
	rec, err := s.SaveProgress(ctx, key, model.NewProgress{
		SessionKey:      in.SessionKey,
		LevelID:         lvl.ID,
		Success:         success,
		Score:           display,
		Transcription:   &transcript,
		Accuracy:        &accuracy,
		Fluency:         &fluency,
		WordsPerMinute:  &wpm,
		DurationSeconds: &duration,
		CoinsEarned:     coins,
		XPEarned:        xp,
	})
	if err != nil {
		return AttemptResult{}, err
	}
	return AttemptResult{
		Level:    lvl,
		Score:    res,
		Display:  display,
		Success:  success,
		Feedback: scoring.Feedback(res),
		Record:   rec,
	}, nil
}
