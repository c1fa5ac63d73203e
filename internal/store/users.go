package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verte-zerg/orator/internal/model"
)

const userColumns = `id, access_key, created_at, last_active, is_active`

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var created, lastActive string
	if err := row.Scan(&u.ID, &u.AccessKey, &created, &lastActive, &u.IsActive); err != nil {
		return model.User{}, err
	}
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return model.User{}, err
	}
	if u.LastActive, err = parseTime(lastActive); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) userByKey(ctx context.Context, key string) (model.User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE access_key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

// UserByAccessKey returns the active user holding key.
func (s *Store) UserByAccessKey(ctx context.Context, key string) (model.User, error) {
	u, err := s.userByKey(ctx, key)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// GetOrCreateUser returns the user for key, creating it on first use and
// refreshing last_active otherwise.
func (s *Store) GetOrCreateUser(ctx context.Context, key string) (model.User, error) {
	u, err := s.userByKey(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.insertUser(ctx, key)
	case err != nil:
		return model.User{}, err
	case !u.IsActive:
		return model.User{}, ErrInactive
	}
	if err := s.TouchUser(ctx, u.ID); err != nil {
		return model.User{}, err
	}
	return s.userByKey(ctx, key)
}

// AddAccessKey registers a new active access key.
func (s *Store) AddAccessKey(ctx context.Context, key string) (model.User, error) {
	if _, err := s.userByKey(ctx, key); err == nil {
		return model.User{}, ErrKeyExists
	} else if !errors.Is(err, ErrNotFound) {
		return model.User{}, err
	}
	return s.insertUser(ctx, key)
}

func (s *Store) insertUser(ctx context.Context, key string) (model.User, error) {
	now := s.stamp()
	var id int64
	err := s.queryRow(ctx,
		`INSERT INTO users (access_key, created_at, last_active, is_active)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		key, now, now, true,
	).Scan(&id)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return s.userByKey(ctx, key)
}

// SetUserActive enables or disables an access key.
func (s *Store) SetUserActive(ctx context.Context, key string, active bool) error {
	res, err := s.exec(ctx, `UPDATE users SET is_active = ? WHERE access_key = ?`, active, key)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchUser records activity for a user.
func (s *Store) TouchUser(ctx context.Context, userID int64) error {
	if _, err := s.exec(ctx, `UPDATE users SET last_active = ? WHERE id = ?`, s.stamp(), userID); err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return nil
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
