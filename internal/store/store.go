// Package store handles SQL persistence for users, progress and sessions.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	_ "modernc.org/sqlite"             // SQLite driver.
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrKeyExists is returned when adding an access key that is already stored.
	ErrKeyExists = errors.New("access key already exists")
	// ErrInactive is returned when an access key has been disabled.
	ErrInactive = errors.New("access key is disabled")
)

// Store wraps database access for the game data.
type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// Open opens or creates the SQLite database at path and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return OpenDSN(DriverSQLite, path)
}

// OpenDSN opens a database for the given driver and applies migrations.
func OpenDSN(driver, dsn string) (*Store, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite, "":
		sqlDriver = "sqlite"
	case DriverPostgres, "pgx":
		sqlDriver = "pgx"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	if sqlDriver == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY under concurrent requests.
		db.SetMaxOpenConns(1)
	}
	store := &Store{db: db, postgres: sqlDriver == "pgx", now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	idCol := "INTEGER PRIMARY KEY"
	boolType := "INTEGER"
	realType := "REAL"
	if s.postgres {
		idCol = "BIGSERIAL PRIMARY KEY"
		boolType = "BOOLEAN"
		realType = "DOUBLE PRECISION"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			access_key TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			last_active TEXT NOT NULL,
			is_active %s NOT NULL
		);`, idCol, boolType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_progress (
			id %[1]s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			session_key TEXT NOT NULL,
			level_id INTEGER NOT NULL,
			completed_at TEXT NOT NULL,
			success %[2]s NOT NULL,
			score INTEGER NOT NULL,
			transcription TEXT,
			accuracy %[3]s,
			fluency %[3]s,
			words_per_minute %[3]s,
			duration_seconds %[3]s,
			coins_earned INTEGER NOT NULL DEFAULT 0,
			xp_earned INTEGER NOT NULL DEFAULT 0
		);`, idCol, boolType, realType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_sessions (
			id %s,
			user_id BIGINT NOT NULL REFERENCES users(id),
			session_key TEXT NOT NULL UNIQUE,
			session_start TEXT NOT NULL,
			session_end TEXT,
			total_time_seconds INTEGER NOT NULL DEFAULT 0,
			levels_attempted INTEGER NOT NULL DEFAULT 0,
			levels_completed INTEGER NOT NULL DEFAULT 0,
			total_coins_earned INTEGER NOT NULL DEFAULT 0,
			total_xp_earned INTEGER NOT NULL DEFAULT 0,
			current_level INTEGER NOT NULL DEFAULT 1,
			session_data TEXT
		);`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_stats (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			total_coins INTEGER NOT NULL DEFAULT 0,
			total_xp INTEGER NOT NULL DEFAULT 0,
			current_level INTEGER NOT NULL DEFAULT 1,
			current_streak INTEGER NOT NULL DEFAULT 0,
			best_streak INTEGER NOT NULL DEFAULT 0,
			total_sessions INTEGER NOT NULL DEFAULT 0,
			total_time_seconds INTEGER NOT NULL DEFAULT 0,
			levels_completed INTEGER NOT NULL DEFAULT 0,
			average_score %[1]s NOT NULL DEFAULT 0,
			average_accuracy %[1]s NOT NULL DEFAULT 0,
			average_fluency %[1]s NOT NULL DEFAULT 0,
			average_words_per_minute %[1]s NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL
		);`, realType),
		`CREATE INDEX IF NOT EXISTS idx_user_progress_user ON user_progress(user_id, completed_at);`,
		`CREATE INDEX IF NOT EXISTS idx_user_progress_level ON user_progress(level_id);`,
		`CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions(user_id, session_start);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) stamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return t, nil
}

func closeRows(rows *sql.Rows) {
	if cerr := rows.Close(); cerr != nil {
		// Best-effort rows close.
		_ = cerr
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
