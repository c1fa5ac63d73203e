package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/verte-zerg/orator/internal/model"
)

const sessionColumns = `id, user_id, session_key, session_start, session_end, total_time_seconds,
	levels_attempted, levels_completed, total_coins_earned, total_xp_earned, current_level, session_data`

// NewSessionKey returns a fresh session key.
func NewSessionKey() string {
	return "session_" + uuid.NewString()
}

func scanSession(row scanner) (model.SessionSummary, error) {
	var s model.SessionSummary
	var start string
	var end, data sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.SessionKey, &start, &end, &s.TotalTimeSeconds,
		&s.LevelsAttempted, &s.LevelsCompleted, &s.TotalCoinsEarned, &s.TotalXPEarned, &s.CurrentLevel, &data); err != nil {
		return model.SessionSummary{}, err
	}
	t, err := parseTime(start)
	if err != nil {
		return model.SessionSummary{}, err
	}
	s.Start = t
	if end.Valid {
		e, err := parseTime(end.String)
		if err != nil {
			return model.SessionSummary{}, err
		}
		s.End = &e
	}
	if data.Valid && data.String != "" {
		s.Data = json.RawMessage(data.String)
	}
	return s, nil
}

// StartSession opens a new session for a user.
func (s *Store) StartSession(ctx context.Context, userID int64) (model.SessionSummary, error) {
	sess, err := scanSession(s.queryRow(ctx,
		`INSERT INTO user_sessions (user_id, session_key, session_start)
		 VALUES (?, ?, ?)
		 RETURNING `+sessionColumns,
		userID, NewSessionKey(), s.stamp()))
	if err != nil {
		return model.SessionSummary{}, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

// EndSession closes a session and records its aggregates.
func (s *Store) EndSession(ctx context.Context, sessionID int64, end model.SessionEnd) (model.SessionSummary, error) {
	var data sql.NullString
	if len(end.Data) > 0 {
		data = sql.NullString{String: string(end.Data), Valid: true}
	}
	sess, err := scanSession(s.queryRow(ctx,
		`UPDATE user_sessions
		 SET session_end = ?,
			total_time_seconds = ?,
			levels_attempted = ?,
			levels_completed = ?,
			total_coins_earned = ?,
			total_xp_earned = ?,
			current_level = ?,
			session_data = ?
		 WHERE id = ?
		 RETURNING `+sessionColumns,
		s.stamp(),
		end.TotalTimeSeconds,
		end.LevelsAttempted,
		end.LevelsCompleted,
		end.TotalCoinsEarned,
		end.TotalXPEarned,
		end.CurrentLevel,
		data,
		sessionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionSummary{}, ErrNotFound
	}
	if err != nil {
		return model.SessionSummary{}, fmt.Errorf("failed to end session: %w", err)
	}
	return sess, nil
}

// ActiveSession returns the latest open session for a user.
func (s *Store) ActiveSession(ctx context.Context, userID int64) (model.SessionSummary, error) {
	sess, err := scanSession(s.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions
		 WHERE user_id = ? AND session_end IS NULL
		 ORDER BY session_start DESC, id DESC
		 LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SessionSummary{}, ErrNotFound
	}
	if err != nil {
		return model.SessionSummary{}, fmt.Errorf("failed to load active session: %w", err)
	}
	return sess, nil
}

// SessionHistory returns a user's most recent sessions.
func (s *Store) SessionHistory(ctx context.Context, userID int64, limit int) ([]model.SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.query(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions
		 WHERE user_id = ?
		 ORDER BY session_start DESC, id DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var sessions []model.SessionSummary
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
