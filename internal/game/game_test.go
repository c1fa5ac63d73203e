package game

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/orator/internal/analytics"
	"github.com/verte-zerg/orator/internal/model"
	"github.com/verte-zerg/orator/internal/store"
)

const greeting = "Hello! Good morning everyone. How are you today? Nice to meet you!"

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "orator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return New(st, nil)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "   "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("expected ErrEmptyKey, got %v", err)
	}
	u, err := svc.Authenticate(ctx, "  key-1 ")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.AccessKey != "key-1" {
		t.Fatalf("expected trimmed key, got %q", u.AccessKey)
	}
	if _, err := svc.User(ctx, "missing"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestSaveProgressTracksStreak(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Authenticate(ctx, "k"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	save := func(level int, success bool) {
		t.Helper()
		coins := 0
		if success {
			coins = 10
		}
		if _, err := svc.SaveProgress(ctx, "k", model.NewProgress{
			SessionKey:  "s1",
			LevelID:     level,
			Success:     success,
			Score:       75,
			CoinsEarned: coins,
			XPEarned:    coins * 2,
		}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	save(1, true)
	save(2, true)

	data, err := svc.UserData(ctx, "k")
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	if data.Streak != 2 || data.TotalCoins != 20 || data.TotalXP != 40 || data.CurrentLevel != 3 {
		t.Fatalf("unexpected user data %+v", data)
	}

	save(3, false)
	data, err = svc.UserData(ctx, "k")
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	if data.Streak != 0 || data.Stats == nil || data.Stats.BestStreak != 2 {
		t.Fatalf("expected streak reset with best 2, got %+v", data.Stats)
	}
}

func TestSaveProgressValidates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "k")

	if _, err := svc.SaveProgress(ctx, "k", model.NewProgress{LevelID: 1}); !errors.Is(err, ErrInvalidProgress) {
		t.Fatalf("expected ErrInvalidProgress, got %v", err)
	}
	if _, err := svc.SaveProgress(ctx, "nobody", model.NewProgress{SessionKey: "s", LevelID: 1}); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestUserDataWithoutProgress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "fresh")

	data, err := svc.UserData(ctx, "fresh")
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	if data.Stats != nil || data.CurrentLevel != 1 || len(data.CompletedLevels) != 0 || data.TotalCoins != 0 {
		t.Fatalf("unexpected data %+v", data)
	}
	if data.CompletedLevels == nil {
		t.Fatalf("expected empty, non-nil completed levels")
	}
}

func TestSessions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "k")

	if _, err := svc.EndSession(ctx, "k", model.SessionEnd{}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	started, err := svc.StartSession(ctx, "k")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	ended, err := svc.EndSession(ctx, "k", model.SessionEnd{TotalTimeSeconds: 42, LevelsCompleted: 1})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.ID != started.ID || ended.Active() || ended.TotalTimeSeconds != 42 {
		t.Fatalf("unexpected ended session %+v", ended)
	}
}

func TestAttempt(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "k")

	pass, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 1, Transcript: greeting, DurationSeconds: 6})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if !pass.Success || pass.Display != 100 || pass.Record.CoinsEarned != 25 || pass.Record.XPEarned != 50 {
		t.Fatalf("unexpected passing attempt %+v", pass)
	}
	if pass.Record.Accuracy == nil || *pass.Record.Accuracy != 1 {
		t.Fatalf("expected stored accuracy 1, got %v", pass.Record.Accuracy)
	}
	if pass.Feedback == "" {
		t.Fatalf("expected feedback")
	}

	fail, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 1, Transcript: "banana", DurationSeconds: 6})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if fail.Success || fail.Display != 46 || fail.Record.CoinsEarned != 0 {
		t.Fatalf("unexpected failing attempt %+v", fail)
	}

	low := 0.0
	blended, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 1, Transcript: greeting, DurationSeconds: 6, Confidence: &low})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if blended.Display != 70 || !blended.Success {
		t.Fatalf("expected blended score 70, got %d", blended.Display)
	}

	if _, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 999, Transcript: "x"}); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}

	done, err := svc.HasCompletedLevel(ctx, "k", 1)
	if err != nil || !done {
		t.Fatalf("expected level 1 completed, got %v %v", done, err)
	}
}

func TestAnalytics(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "k")
	for i := 0; i < 3; i++ {
		if _, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 1, Transcript: greeting, DurationSeconds: 6}); err != nil {
			t.Fatalf("attempt: %v", err)
		}
	}
	view, err := svc.Analytics(ctx, "k", analytics.DefaultOptions())
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if view.Overview.TotalSessions != 1 || view.Overview.CurrentStreak != 3 || view.Overview.TotalCoins != 75 ||
		view.Overview.CurrentLevel != 2 || view.Overview.TotalTimeSpentSeconds != 18 {
		t.Fatalf("unexpected overview %+v", view.Overview)
	}
	if view.Trends == nil {
		t.Fatalf("expected trends")
	}
}

func TestLeaderboardTimeframe(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, _ = svc.Authenticate(ctx, "k")
	if _, err := svc.Attempt(ctx, "k", AttemptInput{SessionKey: "s", LevelID: 1, Transcript: greeting, DurationSeconds: 6}); err != nil {
		t.Fatalf("attempt: %v", err)
	}

	all, err := svc.Leaderboard(ctx, LeaderboardRequest{Timeframe: TimeframeAll})
	if err != nil || len(all) != 1 {
		t.Fatalf("unexpected leaderboard %+v %v", all, err)
	}
	svc.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }
	month, err := svc.Leaderboard(ctx, LeaderboardRequest{Timeframe: TimeframeMonth})
	if err != nil || len(month) != 0 {
		t.Fatalf("expected empty monthly board, got %+v %v", month, err)
	}

	ps, err := svc.PublicStats(ctx)
	if err != nil || ps.Overview.TotalAttempts != 1 {
		t.Fatalf("unexpected public stats %+v %v", ps.Overview, err)
	}
}
