package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/verte-zerg/orator/internal/model"
)

const progressColumns = `id, user_id, session_key, level_id, completed_at, success, score,
	transcription, accuracy, fluency, words_per_minute, duration_seconds, coins_earned, xp_earned`

func scanProgress(row scanner) (model.ProgressRecord, error) {
	var p model.ProgressRecord
	var completed string
	var transcription sql.NullString
	var accuracy, fluency, wpm, duration sql.NullFloat64
	if err := row.Scan(&p.ID, &p.UserID, &p.SessionKey, &p.LevelID, &completed, &p.Success, &p.Score,
		&transcription, &accuracy, &fluency, &wpm, &duration, &p.CoinsEarned, &p.XPEarned); err != nil {
		return model.ProgressRecord{}, err
	}
	t, err := parseTime(completed)
	if err != nil {
		return model.ProgressRecord{}, err
	}
	p.CompletedAt = t
	p.Transcription = stringPtr(transcription)
	p.Accuracy = floatPtr(accuracy)
	p.Fluency = floatPtr(fluency)
	p.WordsPerMinute = floatPtr(wpm)
	p.DurationSeconds = floatPtr(duration)
	return p, nil
}

// SaveProgress stores one attempt. A zero CompletedAt means now.
func (s *Store) SaveProgress(ctx context.Context, userID int64, p model.NewProgress) (model.ProgressRecord, error) {
	completed := s.now()
	if !p.CompletedAt.IsZero() {
		completed = p.CompletedAt
	}
	row := s.queryRow(ctx,
		`INSERT INTO user_progress (user_id, session_key, level_id, completed_at, success, score,
			transcription, accuracy, fluency, words_per_minute, duration_seconds, coins_earned, xp_earned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+progressColumns,
		userID,
		p.SessionKey,
		p.LevelID,
		formatTime(completed),
		p.Success,
		p.Score,
		nullString(p.Transcription),
		nullFloat(p.Accuracy),
		nullFloat(p.Fluency),
		nullFloat(p.WordsPerMinute),
		nullFloat(p.DurationSeconds),
		p.CoinsEarned,
		p.XPEarned,
	)
	rec, err := scanProgress(row)
	if err != nil {
		return model.ProgressRecord{}, fmt.Errorf("failed to save progress: %w", err)
	}
	return rec, nil
}

// ListProgress returns every attempt by a user, newest first.
func (s *Store) ListProgress(ctx context.Context, userID int64) ([]model.ProgressRecord, error) {
	return s.listProgress(ctx,
		`SELECT `+progressColumns+` FROM user_progress
		 WHERE user_id = ?
		 ORDER BY completed_at DESC, id DESC`, userID)
}

// LevelProgress returns a user's attempts at one level, newest first.
func (s *Store) LevelProgress(ctx context.Context, userID int64, levelID int) ([]model.ProgressRecord, error) {
	return s.listProgress(ctx,
		`SELECT `+progressColumns+` FROM user_progress
		 WHERE user_id = ? AND level_id = ?
		 ORDER BY completed_at DESC, id DESC`, userID, levelID)
}

func (s *Store) listProgress(ctx context.Context, query string, args ...any) ([]model.ProgressRecord, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var records []model.ProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// CompletedLevels returns the distinct levels a user has passed, ascending.
func (s *Store) CompletedLevels(ctx context.Context, userID int64) ([]int, error) {
	rows, err := s.query(ctx,
		`SELECT DISTINCT level_id FROM user_progress
		 WHERE user_id = ? AND success = ?
		 ORDER BY level_id ASC`, userID, true)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	levels := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		levels = append(levels, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}

// HasCompletedLevel reports whether a user has passed a level.
func (s *Store) HasCompletedLevel(ctx context.Context, userID int64, levelID int) (bool, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM user_progress WHERE user_id = ? AND level_id = ? AND success = ?`,
		userID, levelID, true,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
