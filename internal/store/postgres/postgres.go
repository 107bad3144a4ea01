// Package postgres implements store.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

const schema = `
CREATE TABLE IF NOT EXISTS learning_entries (
	id            UUID PRIMARY KEY,
	date          DATE NOT NULL UNIQUE,
	learning_type TEXT NOT NULL DEFAULT 'Other',
	description   TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`

const entryColumns = `id, to_char(date, 'YYYY-MM-DD'), learning_type, description, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool tuned like the API's production pool and applies the schema.
func Connect(ctx context.Context, dbURL string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller owns migrations.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Pool exposes the underlying pool for health checks and test fixtures.
func (s *Store) Pool() *pgxpool.Pool { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.Ping(ctx) }

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func scanEntry(row pgx.Row) (*entry.Entry, error) {
	var e entry.Entry
	err := row.Scan(&e.ID, &e.Date, &e.LearningType, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetEntryByDate(ctx context.Context, date string) (*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM learning_entries WHERE date = $1::date`

	e, err := scanEntry(s.db.QueryRow(ctx, query, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry for %s: %w", date, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM learning_entries WHERE id = $1`

	e, err := scanEntry(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return e, nil
}

func (s *Store) UpsertEntry(ctx context.Context, e *entry.Entry) (*entry.Entry, bool, error) {
	query := `
		INSERT INTO learning_entries (id, date, learning_type, description, created_at, updated_at)
		VALUES ($1, $2::date, COALESCE(NULLIF($3::text, ''), 'Other'), $4, $5, $6)
		ON CONFLICT (date) DO UPDATE
		SET learning_type = COALESCE(NULLIF($3::text, ''), learning_entries.learning_type),
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + entryColumns + `, (xmax = 0) AS inserted
	`

	var stored entry.Entry
	var created bool
	err := s.db.QueryRow(ctx, query,
		e.ID, e.Date, e.LearningType, e.Description, e.CreatedAt, e.UpdatedAt,
	).Scan(
		&stored.ID,
		&stored.Date,
		&stored.LearningType,
		&stored.Description,
		&stored.CreatedAt,
		&stored.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert entry: %w", err)
	}
	return &stored, created, nil
}

func (s *Store) ListEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Date != "" {
		add("date = $%d::date", f.Date)
	}
	if f.StartDate != "" {
		add("date >= $%d::date", f.StartDate)
	}
	if f.EndDate != "" {
		add("date <= $%d::date", f.EndDate)
	}
	if f.LearningType != "" {
		add("position(lower($%d) in lower(learning_type)) > 0", f.LearningType)
	}
	if f.Description != "" {
		add("position(lower($%d) in lower(description)) > 0", f.Description)
	}

	query := `SELECT ` + entryColumns + ` FROM learning_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*entry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) CountEntries(ctx context.Context, startDate, endDate string) (int, error) {
	query := `SELECT COUNT(*) FROM learning_entries WHERE date BETWEEN $1::date AND $2::date`

	var n int
	if err := s.db.QueryRow(ctx, query, startDate, endDate).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, is_superuser, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query, u.ID, u.Username, u.Email, u.PasswordHash, u.IsSuperuser, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user %q: %w", u.Username, store.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	query := `SELECT id, username, email, password_hash, is_superuser, created_at FROM users WHERE ` + where

	var u user.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsSuperuser, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getUser(ctx, "username = $1", username)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	query := `INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`

	_, err := s.db.Exec(ctx, query, sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("session: %w", store.ErrConflict)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*session.Session, error) {
	query := `SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = $1`

	var sess session.Session
	err := s.db.QueryRow(ctx, query, token).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
