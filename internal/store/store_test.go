package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/orator/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "orator.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func fixedClock(st *Store, start time.Time) *time.Time {
	now := start
	st.now = func() time.Time { return now }
	return &now
}

func ptr[T any](v T) *T { return &v }

func TestGetOrCreateUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	u, err := st.GetOrCreateUser(ctx, "alpha")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 || u.AccessKey != "alpha" || !u.IsActive {
		t.Fatalf("unexpected user: %+v", u)
	}
	again, err := st.GetOrCreateUser(ctx, "alpha")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected same user, got %d and %d", u.ID, again.ID)
	}

	if err := st.SetUserActive(ctx, "alpha", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := st.UserByAccessKey(ctx, "alpha"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for disabled key, got %v", err)
	}
	if _, err := st.GetOrCreateUser(ctx, "alpha"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if err := st.SetUserActive(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddAccessKey(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.AddAccessKey(ctx, "beta"); err != nil {
		t.Fatalf("add key: %v", err)
	}
	if _, err := st.AddAccessKey(ctx, "beta"); !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
	users, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].AccessKey != "beta" {
		t.Fatalf("unexpected users %+v", users)
	}
}

func TestSaveProgressKeepsNilAndZero(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u, err := st.GetOrCreateUser(ctx, "gamma")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	saved, err := st.SaveProgress(ctx, u.ID, model.NewProgress{
		SessionKey:     "s1",
		LevelID:        3,
		Success:        true,
		Score:          82,
		Transcription:  ptr("hello there"),
		Accuracy:       ptr(0.0),
		WordsPerMinute: ptr(131.5),
		CoinsEarned:    10,
		XPEarned:       20,
		CompletedAt:    at,
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if saved.ID == 0 || !saved.CompletedAt.Equal(at) {
		t.Fatalf("unexpected saved record %+v", saved)
	}
	if saved.Accuracy == nil || *saved.Accuracy != 0 {
		t.Fatalf("expected measured zero accuracy, got %v", saved.Accuracy)
	}
	if saved.Fluency != nil || saved.DurationSeconds != nil {
		t.Fatalf("expected nil metrics, got %v %v", saved.Fluency, saved.DurationSeconds)
	}
	if saved.Transcription == nil || *saved.Transcription != "hello there" {
		t.Fatalf("unexpected transcription %v", saved.Transcription)
	}

	records, err := st.ListProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if len(records) != 1 || !reflect.DeepEqual(records[0], saved) {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestProgressQueries(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u, _ := st.GetOrCreateUser(ctx, "delta")
	other, _ := st.GetOrCreateUser(ctx, "other")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	attempts := []struct {
		level   int
		success bool
		offset  time.Duration
	}{
		{2, false, 0},
		{2, true, time.Minute},
		{1, true, 2 * time.Minute},
		{5, false, 3 * time.Minute},
		{1, true, 4 * time.Minute},
	}
	for _, a := range attempts {
		if _, err := st.SaveProgress(ctx, u.ID, model.NewProgress{
			SessionKey:  "s",
			LevelID:     a.level,
			Success:     a.success,
			Score:       50,
			CompletedAt: base.Add(a.offset),
		}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if _, err := st.SaveProgress(ctx, other.ID, model.NewProgress{SessionKey: "x", LevelID: 9, Success: true, Score: 90}); err != nil {
		t.Fatalf("save other: %v", err)
	}

	records, err := st.ListProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CompletedAt.After(records[i-1].CompletedAt) {
			t.Fatalf("records not newest first")
		}
	}

	levels, err := st.CompletedLevels(ctx, u.ID)
	if err != nil {
		t.Fatalf("completed levels: %v", err)
	}
	if !reflect.DeepEqual(levels, []int{1, 2}) {
		t.Fatalf("unexpected completed levels %v", levels)
	}

	lvl, err := st.LevelProgress(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("level progress: %v", err)
	}
	if len(lvl) != 2 || !lvl[0].Success {
		t.Fatalf("unexpected level progress %+v", lvl)
	}

	done, err := st.HasCompletedLevel(ctx, u.ID, 5)
	if err != nil || done {
		t.Fatalf("expected level 5 incomplete, got %v %v", done, err)
	}
	done, err = st.HasCompletedLevel(ctx, u.ID, 1)
	if err != nil || !done {
		t.Fatalf("expected level 1 complete, got %v %v", done, err)
	}
}

func TestSessions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := fixedClock(st, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	u, _ := st.GetOrCreateUser(ctx, "eps")

	if _, err := st.ActiveSession(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active session, got %v", err)
	}
	sess, err := st.StartSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(sess.SessionKey, "session_") || !sess.Active() {
		t.Fatalf("unexpected session %+v", sess)
	}
	active, err := st.ActiveSession(ctx, u.ID)
	if err != nil || active.ID != sess.ID {
		t.Fatalf("expected active session %d, got %+v %v", sess.ID, active, err)
	}

	*now = now.Add(10 * time.Minute)
	ended, err := st.EndSession(ctx, sess.ID, model.SessionEnd{
		TotalTimeSeconds: 600,
		LevelsAttempted:  3,
		LevelsCompleted:  2,
		TotalCoinsEarned: 55,
		TotalXPEarned:    105,
		CurrentLevel:     3,
		Data:             json.RawMessage(`{"device":"cli"}`),
	})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Active() || !ended.End.Equal(*now) || ended.LevelsCompleted != 2 {
		t.Fatalf("unexpected ended session %+v", ended)
	}
	if string(ended.Data) != `{"device":"cli"}` {
		t.Fatalf("unexpected session data %s", ended.Data)
	}
	if _, err := st.ActiveSession(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no active session after end, got %v", err)
	}
	if _, err := st.EndSession(ctx, 9999, model.SessionEnd{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	history, err := st.SessionHistory(ctx, u.ID, 0)
	if err != nil || len(history) != 1 {
		t.Fatalf("unexpected history %+v %v", history, err)
	}
}

func TestRefreshUserStatsAndStreaks(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	u, _ := st.GetOrCreateUser(ctx, "zeta")

	if cached, err := st.UserStats(ctx, u.ID); err != nil || cached != nil {
		t.Fatalf("expected no stats yet, got %+v %v", cached, err)
	}
	if err := st.UpdateStreak(ctx, u.ID, 3); err != nil {
		t.Fatalf("update streak: %v", err)
	}
	if err := st.UpdateStreak(ctx, u.ID, 1); err != nil {
		t.Fatalf("update streak: %v", err)
	}

	for _, p := range []model.NewProgress{
		{SessionKey: "a", LevelID: 1, Success: true, Score: 80, Accuracy: ptr(0.8), DurationSeconds: ptr(10.5), CoinsEarned: 25, XPEarned: 50},
		{SessionKey: "a", LevelID: 2, Success: false, Score: 0, Accuracy: ptr(0.4)},
		{SessionKey: "b", LevelID: 2, Success: true, Score: 90, DurationSeconds: ptr(20.0), CoinsEarned: 30, XPEarned: 55},
	} {
		if _, err := st.SaveProgress(ctx, u.ID, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	stats, err := st.RefreshUserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	want := model.UserStats{
		UserID:           u.ID,
		TotalCoins:       55,
		TotalXP:          105,
		CurrentLevel:     3,
		CurrentStreak:    1,
		BestStreak:       3,
		TotalSessions:    2,
		TotalTimeSeconds: 30,
		LevelsCompleted:  2,
		AverageScore:     85,
	}
	stats.LastUpdated = time.Time{}
	if stats.AverageAccuracy < 0.6-1e-9 || stats.AverageAccuracy > 0.6+1e-9 {
		t.Fatalf("unexpected accuracy %v", stats.AverageAccuracy)
	}
	want.AverageAccuracy = stats.AverageAccuracy
	if stats != want {
		t.Fatalf("unexpected stats:\n got %+v\nwant %+v", stats, want)
	}

	if err := st.ResetStreak(ctx, u.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	cached, err := st.UserStats(ctx, u.ID)
	if err != nil || cached == nil {
		t.Fatalf("load stats: %v", err)
	}
	if cached.CurrentStreak != 0 || cached.BestStreak != 3 || cached.TotalXP != 105 {
		t.Fatalf("unexpected stats after reset %+v", cached)
	}
}

func TestLeaderboard(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := fixedClock(st, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	seed := []struct {
		key    string
		coins  int
		xp     int
		streak int
	}{
		{"p1", 100, 10, 1},
		{"p2", 10, 300, 0},
		{"p3", 50, 200, 9},
	}
	for i, p := range seed {
		*now = now.Add(time.Duration(i) * 24 * time.Hour * 10)
		u, err := st.GetOrCreateUser(ctx, p.key)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := st.SaveProgress(ctx, u.ID, model.NewProgress{SessionKey: p.key, LevelID: 1, Success: true, Score: 80, CoinsEarned: p.coins, XPEarned: p.xp}); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := st.RefreshUserStats(ctx, u.ID); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if err := st.UpdateStreak(ctx, u.ID, p.streak); err != nil {
			t.Fatalf("streak: %v", err)
		}
	}
	if _, err := st.GetOrCreateUser(ctx, "idle"); err != nil {
		t.Fatalf("create idle: %v", err)
	}

	order := func(entries []model.LeaderboardEntry) []int {
		var out []int
		for _, e := range entries {
			out = append(out, e.Stats.TotalCoins)
		}
		return out
	}

	byXP, err := st.Leaderboard(ctx, LeaderboardQuery{SortBy: SortXP, Limit: 3})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if got := order(byXP); !reflect.DeepEqual(got, []int{10, 50, 100}) {
		t.Fatalf("unexpected xp order %v", got)
	}
	if byXP[0].Rank != 1 || byXP[2].Rank != 3 || !strings.HasPrefix(byXP[0].UserID, "user_") {
		t.Fatalf("unexpected entry %+v", byXP[0])
	}

	byCoins, _ := st.Leaderboard(ctx, LeaderboardQuery{SortBy: SortCoins, Limit: 2})
	if got := order(byCoins); !reflect.DeepEqual(got, []int{100, 50}) {
		t.Fatalf("unexpected coin order %v", got)
	}
	byStreak, _ := st.Leaderboard(ctx, LeaderboardQuery{SortBy: SortStreak, Limit: 1})
	if len(byStreak) != 1 || byStreak[0].Stats.BestStreak != 9 {
		t.Fatalf("unexpected streak leader %+v", byStreak)
	}

	all, _ := st.Leaderboard(ctx, LeaderboardQuery{Limit: 500})
	if len(all) != 4 {
		t.Fatalf("expected idle user included, got %d", len(all))
	}

	since := now.Add(-5 * 24 * time.Hour)
	recent, _ := st.Leaderboard(ctx, LeaderboardQuery{Since: &since})
	if len(recent) != 1 || recent[0].Stats.TotalCoins != 50 {
		t.Fatalf("unexpected recent leaderboard %+v", recent)
	}
}

func TestAnonymousID(t *testing.T) {
	if got := AnonymousID(7); got != "user_7" {
		t.Fatalf("unexpected id %q", got)
	}
	if got := AnonymousID(1234567); got != "user_4567" {
		t.Fatalf("unexpected id %q", got)
	}
}

func TestPublicStats(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)
	fixedClock(st, now)

	u, _ := st.GetOrCreateUser(ctx, "pub")
	_, _ = st.GetOrCreateUser(ctx, "quiet")
	for i, p := range []model.NewProgress{
		{SessionKey: "a", LevelID: 1, Success: true, Score: 80, Accuracy: ptr(0.9), CoinsEarned: 25, XPEarned: 50},
		{SessionKey: "a", LevelID: 2, Success: false, Score: 40},
		{SessionKey: "b", LevelID: 2, Success: true, Score: 90, CoinsEarned: 30, XPEarned: 55},
	} {
		p.CompletedAt = now.Add(-time.Duration(i) * 24 * time.Hour)
		if _, err := st.SaveProgress(ctx, u.ID, p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	old := model.NewProgress{SessionKey: "z", LevelID: 3, Success: false, Score: 10, CompletedAt: now.Add(-30 * 24 * time.Hour)}
	if _, err := st.SaveProgress(ctx, u.ID, old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	sess, _ := st.StartSession(ctx, u.ID)
	if _, err := st.EndSession(ctx, sess.ID, model.SessionEnd{TotalTimeSeconds: 120, LevelsCompleted: 2}); err != nil {
		t.Fatalf("end session: %v", err)
	}

	ps, err := st.PublicStats(ctx, now)
	if err != nil {
		t.Fatalf("public stats: %v", err)
	}
	if ps.Overview.TotalUsers != 2 || ps.Overview.ActiveUsers != 2 || ps.Overview.NewUsers24h != 2 {
		t.Fatalf("unexpected overview %+v", ps.Overview)
	}
	if ps.Overview.TotalAttempts != 4 || ps.Overview.UsersWithProgress != 1 {
		t.Fatalf("unexpected attempts %+v", ps.Overview)
	}
	if ps.Performance.SuccessfulAttempts != 2 || ps.Performance.TotalCoinsEarned != 55 || ps.Performance.AverageScore != 55 {
		t.Fatalf("unexpected performance %+v", ps.Performance)
	}
	if ps.Levels.LevelsCompleted != 2 || ps.Levels.LevelsAttempted != 2 || ps.Levels.HighestLevelReached != 2 {
		t.Fatalf("unexpected levels %+v", ps.Levels)
	}
	if ps.Sessions.TotalGameSessions != 1 || ps.Sessions.LongestSessionSeconds != 120 {
		t.Fatalf("unexpected sessions %+v", ps.Sessions)
	}
	if len(ps.LevelBreakdown) != 3 || ps.LevelBreakdown[1].LevelID != 2 || ps.LevelBreakdown[1].Attempts != 2 {
		t.Fatalf("unexpected level breakdown %+v", ps.LevelBreakdown)
	}
	if len(ps.RecentActivity) != 3 || ps.RecentActivity[0].Date != "2024-02-10" {
		t.Fatalf("unexpected recent activity %+v", ps.RecentActivity)
	}
}

func TestRebind(t *testing.T) {
	st := &Store{postgres: true}
	if got := st.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	st.postgres = false
	if got := st.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("unexpected sqlite query %q", got)
	}
}

func TestOpenDSNRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenDSN("mysql", "x"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
