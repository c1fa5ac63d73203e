package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/verte-zerg/orator/internal/model"
)

const statsColumns = `user_id, total_coins, total_xp, current_level, current_streak, best_streak,
	total_sessions, total_time_seconds, levels_completed, average_score, average_accuracy,
	average_fluency, average_words_per_minute, last_updated`

// Leaderboard sort keys.
const (
	SortXP     = "xp"
	SortCoins  = "coins"
	SortLevels = "levels"
	SortStreak = "streak"
)

// MaxLeaderboardLimit caps leaderboard queries.
const MaxLeaderboardLimit = 50

func scanStats(row scanner) (model.UserStats, error) {
	var st model.UserStats
	var updated string
	if err := row.Scan(&st.UserID, &st.TotalCoins, &st.TotalXP, &st.CurrentLevel, &st.CurrentStreak, &st.BestStreak,
		&st.TotalSessions, &st.TotalTimeSeconds, &st.LevelsCompleted, &st.AverageScore, &st.AverageAccuracy,
		&st.AverageFluency, &st.AverageWordsPerMinute, &updated); err != nil {
		return model.UserStats{}, err
	}
	t, err := parseTime(updated)
	if err != nil {
		return model.UserStats{}, err
	}
	st.LastUpdated = t
	return st, nil
}

// UserStats returns the cached stats row for a user, or nil when none exists.
func (s *Store) UserStats(ctx context.Context, userID int64) (*model.UserStats, error) {
	st, err := scanStats(s.queryRow(ctx, `SELECT `+statsColumns+` FROM user_stats WHERE user_id = ?`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return &st, nil
}

// RefreshUserStats recomputes the cached stats row from progress history.
// Streak columns are left untouched.
func (s *Store) RefreshUserStats(ctx context.Context, userID int64) (model.UserStats, error) {
	var st model.UserStats
	var totalTime float64
	var highest int
	err := s.queryRow(ctx,
		`SELECT
			COALESCE(SUM(coins_earned), 0),
			COALESCE(SUM(xp_earned), 0),
			COUNT(DISTINCT session_key),
			COALESCE(SUM(duration_seconds), 0),
			COUNT(DISTINCT CASE WHEN success THEN level_id END),
			COALESCE(MAX(CASE WHEN success THEN level_id END), 0),
			COALESCE(AVG(CASE WHEN score > 0 THEN score END), 0),
			COALESCE(AVG(accuracy), 0),
			COALESCE(AVG(fluency), 0),
			COALESCE(AVG(words_per_minute), 0)
		 FROM user_progress
		 WHERE user_id = ?`, userID,
	).Scan(&st.TotalCoins, &st.TotalXP, &st.TotalSessions, &totalTime, &st.LevelsCompleted, &highest,
		&st.AverageScore, &st.AverageAccuracy, &st.AverageFluency, &st.AverageWordsPerMinute)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("failed to aggregate progress: %w", err)
	}
	st.TotalTimeSeconds = int(math.Round(totalTime))
	st.CurrentLevel = highest + 1

	_, err = s.exec(ctx,
		`INSERT INTO user_stats (user_id, total_coins, total_xp, current_level, total_sessions, total_time_seconds,
			levels_completed, average_score, average_accuracy, average_fluency, average_words_per_minute, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			total_coins = excluded.total_coins,
			total_xp = excluded.total_xp,
			current_level = excluded.current_level,
			total_sessions = excluded.total_sessions,
			total_time_seconds = excluded.total_time_seconds,
			levels_completed = excluded.levels_completed,
			average_score = excluded.average_score,
			average_accuracy = excluded.average_accuracy,
			average_fluency = excluded.average_fluency,
			average_words_per_minute = excluded.average_words_per_minute,
			last_updated = excluded.last_updated`,
		userID, st.TotalCoins, st.TotalXP, st.CurrentLevel, st.TotalSessions, st.TotalTimeSeconds,
		st.LevelsCompleted, st.AverageScore, st.AverageAccuracy, st.AverageFluency, st.AverageWordsPerMinute, s.stamp(),
	)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("failed to store stats: %w", err)
	}
	cached, err := s.UserStats(ctx, userID)
	if err != nil {
		return model.UserStats{}, err
	}
	if cached == nil {
		return model.UserStats{}, ErrNotFound
	}
	return *cached, nil
}

// UpdateStreak sets the current streak and raises the best streak if needed.
func (s *Store) UpdateStreak(ctx context.Context, userID int64, streak int) error {
	_, err := s.exec(ctx,
		`INSERT INTO user_stats (user_id, current_streak, best_streak, last_updated)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			best_streak = CASE WHEN user_stats.best_streak > excluded.best_streak
				THEN user_stats.best_streak ELSE excluded.best_streak END,
			last_updated = excluded.last_updated`,
		userID, streak, streak, s.stamp())
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	return nil
}

// ResetStreak sets the current streak to zero.
func (s *Store) ResetStreak(ctx context.Context, userID int64) error {
	return s.UpdateStreak(ctx, userID, 0)
}

// LeaderboardQuery selects and orders leaderboard rows.
type LeaderboardQuery struct {
	SortBy string
	Since  *time.Time
	Limit  int
}

// Leaderboard returns active players ranked by the requested metric.
func (s *Store) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]model.LeaderboardEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, MaxLeaderboardLimit)

	var order string
	switch q.SortBy {
	case SortCoins:
		order = `COALESCE(us.total_coins, 0) DESC, COALESCE(us.total_xp, 0) DESC`
	case SortLevels:
		order = `COALESCE(us.levels_completed, 0) DESC, COALESCE(us.total_xp, 0) DESC`
	case SortStreak:
		order = `CASE WHEN COALESCE(us.current_streak, 0) > COALESCE(us.best_streak, 0)
			THEN COALESCE(us.current_streak, 0) ELSE COALESCE(us.best_streak, 0) END DESC,
			COALESCE(us.total_xp, 0) DESC`
	default:
		order = `COALESCE(us.total_xp, 0) DESC, COALESCE(us.levels_completed, 0) DESC`
	}

	args := []any{true}
	where := `u.is_active = ?`
	if q.Since != nil {
		where += ` AND us.last_updated >= ?`
		args = append(args, formatTime(*q.Since))
	}
	args = append(args, limit)

	rows, err := s.query(ctx, fmt.Sprintf(`SELECT u.id, u.created_at, u.last_active,
			COALESCE(us.total_coins, 0), COALESCE(us.total_xp, 0), COALESCE(us.current_level, 1),
			COALESCE(us.current_streak, 0), COALESCE(us.best_streak, 0), COALESCE(us.total_sessions, 0),
			COALESCE(us.total_time_seconds, 0), COALESCE(us.levels_completed, 0), COALESCE(us.average_score, 0),
			COALESCE(us.average_accuracy, 0), COALESCE(us.average_fluency, 0), COALESCE(us.average_words_per_minute, 0)
		 FROM users u
		 LEFT JOIN user_stats us ON us.user_id = u.id
		 WHERE %s
		 ORDER BY %s, u.id ASC
		 LIMIT ?`, where, order), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer closeRows(rows)

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var id int64
		var created, lastActive string
		var st model.PlayerStats
		if err := rows.Scan(&id, &created, &lastActive,
			&st.TotalCoins, &st.TotalXP, &st.CurrentLevel, &st.CurrentStreak, &st.BestStreak,
			&st.TotalSessions, &st.TotalTimeSeconds, &st.LevelsCompleted, &st.AverageScore,
			&st.AverageAccuracy, &st.AverageFluency, &st.AverageWordsPerMinute); err != nil {
			return nil, err
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:       len(entries) + 1,
			UserID:     AnonymousID(id),
			JoinedDate: datePart(created),
			LastActive: datePart(lastActive),
			Stats:      st,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// AnonymousID hides a user id behind its last four digits.
func AnonymousID(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "user_" + s
}

func datePart(stamp string) string {
	if len(stamp) < 10 {
		return stamp
	}
	return stamp[:10]
}

// PublicStats summarises the whole platform relative to now.
func (s *Store) PublicStats(ctx context.Context, now time.Time) (model.PublicStats, error) {
	var out model.PublicStats
	dayAgo := formatTime(now.Add(-24 * time.Hour))
	weekAgo := formatTime(now.Add(-7 * 24 * time.Hour))

	o := &out.Overview
	err := s.queryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN last_active >= ? THEN 1 ELSE 0 END), 0)
		 FROM users`, dayAgo, dayAgo,
	).Scan(&o.TotalUsers, &o.ActiveUsers, &o.NewUsers24h, &o.ActiveUsers24h)
	if err != nil {
		return out, fmt.Errorf("failed to count users: %w", err)
	}

	p := &out.Performance
	err = s.queryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT user_id),
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(score), 0), COALESCE(AVG(accuracy), 0), COALESCE(AVG(fluency), 0),
			COALESCE(AVG(words_per_minute), 0),
			COALESCE(SUM(coins_earned), 0), COALESCE(SUM(xp_earned), 0)
		 FROM user_progress`,
	).Scan(&o.TotalAttempts, &o.UsersWithProgress, &p.SuccessfulAttempts,
		&p.AverageScore, &p.AverageAccuracy, &p.AverageFluency, &p.AverageWordsPerMinute,
		&p.TotalCoinsEarned, &p.TotalXPEarned)
	if err != nil {
		return out, fmt.Errorf("failed to aggregate progress: %w", err)
	}

	l := &out.Levels
	err = s.queryRow(ctx,
		`SELECT COUNT(DISTINCT level_id), COUNT(*), COALESCE(MAX(level_id), 0)
		 FROM user_progress WHERE success = ?`, true,
	).Scan(&l.LevelsAttempted, &l.LevelsCompleted, &l.HighestLevelReached)
	if err != nil {
		return out, fmt.Errorf("failed to aggregate levels: %w", err)
	}

	ss := &out.Sessions
	err = s.queryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(total_time_seconds), 0), COALESCE(MAX(total_time_seconds), 0),
			COALESCE(AVG(levels_completed), 0)
		 FROM user_sessions`,
	).Scan(&ss.TotalGameSessions, &ss.AverageSessionSeconds, &ss.LongestSessionSeconds, &ss.AverageLevelsPerSession)
	if err != nil {
		return out, fmt.Errorf("failed to aggregate sessions: %w", err)
	}

	out.LevelBreakdown, err = s.activityBuckets(ctx,
		`SELECT level_id, COUNT(*), COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0), COALESCE(AVG(score), 0)
		 FROM user_progress
		 GROUP BY level_id
		 ORDER BY level_id ASC`, false)
	if err != nil {
		return out, fmt.Errorf("failed to aggregate level completion: %w", err)
	}

	out.RecentActivity, err = s.activityBuckets(ctx,
		`SELECT SUBSTR(completed_at, 1, 10) AS day, COUNT(*),
			COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0), COALESCE(AVG(score), 0)
		 FROM user_progress
		 WHERE completed_at >= ?
		 GROUP BY SUBSTR(completed_at, 1, 10)
		 ORDER BY day DESC`, true, weekAgo)
	if err != nil {
		return out, fmt.Errorf("failed to aggregate recent activity: %w", err)
	}
	return out, nil
}

func (s *Store) activityBuckets(ctx context.Context, query string, byDate bool, args ...any) ([]model.ActivityBucket, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	buckets := []model.ActivityBucket{}
	for rows.Next() {
		var b model.ActivityBucket
		var dest any = &b.LevelID
		if byDate {
			dest = &b.Date
		}
		if err := rows.Scan(dest, &b.Attempts, &b.Completions, &b.AverageScore); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}
