// Package model defines shared data structures.
package model

import (
	"encoding/json"
	"time"
)

// User is an access-key holder.
type User struct {
	ID         int64     `json:"id"`
	AccessKey  string    `json:"access_key"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
	IsActive   bool      `json:"is_active"`
}

// ProgressRecord is one attempt at one level within one session.
// Nil metrics were not measured, which is different from a measured zero.
type ProgressRecord struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	SessionKey      string    `json:"session_key"`
	LevelID         int       `json:"level_id"`
	CompletedAt     time.Time `json:"completed_at"`
	Success         bool      `json:"success"`
	Score           int       `json:"score"`
	Transcription   *string   `json:"transcription"`
	Accuracy        *float64  `json:"accuracy"`
	Fluency         *float64  `json:"fluency"`
	WordsPerMinute  *float64  `json:"words_per_minute"`
	DurationSeconds *float64  `json:"duration_seconds"`
	CoinsEarned     int       `json:"coins_earned"`
	XPEarned        int       `json:"xp_earned"`
}

// NewProgress is the payload for storing a progress record.
type NewProgress struct {
	SessionKey      string
	LevelID         int
	Success         bool
	Score           int
	Transcription   *string
	Accuracy        *float64
	Fluency         *float64
	WordsPerMinute  *float64
	DurationSeconds *float64
	CoinsEarned     int
	XPEarned        int
	CompletedAt     time.Time
}

// SessionSummary bounds one continuous play session.
type SessionSummary struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	SessionKey       string          `json:"session_key"`
	Start            time.Time       `json:"session_start"`
	End              *time.Time      `json:"session_end"`
	TotalTimeSeconds int             `json:"total_time_seconds"`
	LevelsAttempted  int             `json:"levels_attempted"`
	LevelsCompleted  int             `json:"levels_completed"`
	TotalCoinsEarned int             `json:"total_coins_earned"`
	TotalXPEarned    int             `json:"total_xp_earned"`
	CurrentLevel     int             `json:"current_level"`
	Data             json.RawMessage `json:"session_data,omitempty"`
}

// Active reports whether the session has not been closed yet.
func (s SessionSummary) Active() bool {
	return s.End == nil
}

// SessionEnd carries the aggregates written when a session closes.
type SessionEnd struct {
	TotalTimeSeconds int             `json:"totalTimeSeconds"`
	LevelsAttempted  int             `json:"levelsAttempted"`
	LevelsCompleted  int             `json:"levelsCompleted"`
	TotalCoinsEarned int             `json:"totalCoinsEarned"`
	TotalXPEarned    int             `json:"totalXpEarned"`
	CurrentLevel     int             `json:"currentLevel"`
	Data             json.RawMessage `json:"sessionData,omitempty"`
}

// UserStats is the cached per-user summary row.
type UserStats struct {
	UserID                int64     `json:"user_id"`
	TotalCoins            int       `json:"total_coins"`
	TotalXP               int       `json:"total_xp"`
	CurrentLevel          int       `json:"current_level"`
	CurrentStreak         int       `json:"current_streak"`
	BestStreak            int       `json:"best_streak"`
	TotalSessions         int       `json:"total_sessions"`
	TotalTimeSeconds      int       `json:"total_time_seconds"`
	LevelsCompleted       int       `json:"levels_completed"`
	AverageScore          float64   `json:"average_score"`
	AverageAccuracy       float64   `json:"average_accuracy"`
	AverageFluency        float64   `json:"average_fluency"`
	AverageWordsPerMinute float64   `json:"average_words_per_minute"`
	LastUpdated           time.Time `json:"last_updated"`
}

// UserData is the profile returned to a signed-in client.
type UserData struct {
	User            User       `json:"user"`
	Stats           *UserStats `json:"stats"`
	CompletedLevels []int      `json:"completedLevels"`
	CurrentLevel    int        `json:"currentLevel"`
	TotalCoins      int        `json:"totalCoins"`
	TotalXP         int        `json:"totalXp"`
	Streak          int        `json:"streak"`
}

// LeaderboardEntry is one anonymised leaderboard row.
type LeaderboardEntry struct {
	Rank       int         `json:"rank"`
	UserID     string      `json:"user_id"`
	JoinedDate string      `json:"joined_date"`
	LastActive string      `json:"last_active"`
	Stats      PlayerStats `json:"stats"`
}

// PlayerStats is the public part of a UserStats row.
type PlayerStats struct {
	TotalCoins            int     `json:"total_coins"`
	TotalXP               int     `json:"total_xp"`
	CurrentLevel          int     `json:"current_level"`
	CurrentStreak         int     `json:"current_streak"`
	BestStreak            int     `json:"best_streak"`
	TotalSessions         int     `json:"total_sessions"`
	TotalTimeSeconds      int     `json:"total_time_seconds"`
	LevelsCompleted       int     `json:"levels_completed"`
	AverageScore          float64 `json:"average_score"`
	AverageAccuracy       float64 `json:"average_accuracy"`
	AverageFluency        float64 `json:"average_fluency"`
	AverageWordsPerMinute float64 `json:"average_words_per_minute"`
}

// PublicStats is the anonymous platform summary.
type PublicStats struct {
	Overview       PlatformOverview `json:"overview"`
	Performance    PlatformScores   `json:"performance"`
	Levels         PlatformLevels   `json:"levels"`
	Sessions       PlatformSessions `json:"sessions"`
	LevelBreakdown []ActivityBucket `json:"level_completion_breakdown"`
	RecentActivity []ActivityBucket `json:"recent_activity"`
}

// PlatformOverview counts users and attempts.
type PlatformOverview struct {
	TotalUsers        int `json:"total_users"`
	ActiveUsers       int `json:"active_users"`
	NewUsers24h       int `json:"new_users_24h"`
	ActiveUsers24h    int `json:"active_users_24h"`
	TotalAttempts     int `json:"total_sessions"`
	UsersWithProgress int `json:"users_with_progress"`
}

// PlatformScores averages every stored attempt.
type PlatformScores struct {
	SuccessfulAttempts    int     `json:"successful_attempts"`
	AverageScore          float64 `json:"average_score"`
	AverageAccuracy       float64 `json:"average_accuracy"`
	AverageFluency        float64 `json:"average_fluency"`
	AverageWordsPerMinute float64 `json:"average_wpm"`
	TotalCoinsEarned      int     `json:"total_coins_earned"`
	TotalXPEarned         int     `json:"total_xp_earned"`
}

// PlatformLevels summarises successful attempts.
type PlatformLevels struct {
	LevelsAttempted     int `json:"levels_attempted"`
	LevelsCompleted     int `json:"levels_completed"`
	HighestLevelReached int `json:"highest_level_reached"`
}

// PlatformSessions summarises closed and open sessions.
type PlatformSessions struct {
	TotalGameSessions       int     `json:"total_game_sessions"`
	AverageSessionSeconds   float64 `json:"average_session_time_seconds"`
	LongestSessionSeconds   int     `json:"longest_session_seconds"`
	AverageLevelsPerSession float64 `json:"average_levels_per_session"`
}

// ActivityBucket counts attempts grouped by level or by day. Exactly one of
// LevelID and Date is set.
type ActivityBucket struct {
	LevelID      int     `json:"level_id,omitempty"`
	Date         string  `json:"date,omitempty"`
	Attempts     int     `json:"attempts"`
	Completions  int     `json:"completions"`
	AverageScore float64 `json:"average_score"`
}
