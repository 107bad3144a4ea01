// Package libsql implements store.Store on an embedded SQLite database via libSQL.
package libsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

const entryColumns = `id, date, learning_type, description, created_at, updated_at`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) learningtracker.db inside dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "learningtracker.db")
	db, err := sql.Open("libsql", "file:"+dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer, and pragmas are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// applyPragmas reads each pragma's result row; the driver refuses Exec for
// statements that return rows.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		var result any
		if err := db.QueryRow(pragma).Scan(&result); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	return nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS learning_entries (
			id            TEXT PRIMARY KEY,
			date          TEXT NOT NULL UNIQUE,
			learning_type TEXT NOT NULL DEFAULT 'Other',
			description   TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			is_superuser  INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// textTime scans a timestamp column. The driver hands back time-shaped TEXT
// as time.Time, other rows as text.
type textTime struct{ time.Time }

func (t *textTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp value %T", src)
	}
}

func (t *textTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// textDate scans the date column into YYYY-MM-DD.
type textDate string

func (d *textDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = textDate(v.UTC().Format("2006-01-02"))
	case string:
		*d = textDate(truncateDate(v))
	case []byte:
		*d = textDate(truncateDate(string(v)))
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
	return nil
}

func truncateDate(s string) string {
	if len(s) > len("2006-01-02") {
		return s[:len("2006-01-02")]
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*entry.Entry, error) {
	var (
		e                entry.Entry
		id               string
		date             textDate
		created, updated textTime
	)
	if err := row.Scan(&id, &date, &e.LearningType, &e.Description, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing id: %w", err)
	}
	e.Date = string(date)
	e.CreatedAt = created.Time
	e.UpdatedAt = updated.Time
	return &e, nil
}

func (s *Store) GetEntryByDate(ctx context.Context, date string) (*entry.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM learning_entries WHERE date = ?", date)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry for %s: %w", date, store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return e, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM learning_entries WHERE id = ?", id.String())
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return e, nil
}

// UpsertEntry is a single statement so concurrent saves for one date
// serialize in SQLite and the last one wins. An empty learning type keeps
// the stored one, or is Other on insert.
func (s *Store) UpsertEntry(ctx context.Context, e *entry.Entry) (*entry.Entry, bool, error) {
	query := `
		INSERT INTO learning_entries (` + entryColumns + `)
		VALUES (?, ?, COALESCE(NULLIF(?, ''), 'Other'), ?, ?, ?)
		ON CONFLICT (date) DO UPDATE
		SET learning_type = COALESCE(NULLIF(?, ''), learning_entries.learning_type),
			description = excluded.description,
			updated_at = excluded.updated_at
		RETURNING ` + entryColumns

	stored, err := scanEntry(s.db.QueryRowContext(ctx, query,
		e.ID.String(), e.Date, e.LearningType, e.Description,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		e.LearningType,
	))
	if err != nil {
		return nil, false, fmt.Errorf("upserting entry: %w", err)
	}
	return stored, stored.ID == e.ID, nil
}

func (s *Store) ListEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	if f.StartDate != "" {
		where = append(where, "date >= ?")
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		where = append(where, "date <= ?")
		args = append(args, f.EndDate)
	}
	if f.LearningType != "" {
		where = append(where, "instr(lower(learning_type), lower(?)) > 0")
		args = append(args, f.LearningType)
	}
	if f.Description != "" {
		where = append(where, "instr(lower(description), lower(?)) > 0")
		args = append(args, f.Description)
	}

	query := "SELECT " + entryColumns + " FROM learning_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*entry.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) CountEntries(ctx context.Context, startDate, endDate string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM learning_entries WHERE date >= ? AND date <= ?", startDate, endDate,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ?", u.Username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking user: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("user %q: %w", u.Username, store.ErrConflict)
	}

	superuser := 0
	if u.IsSuperuser {
		superuser = 1
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, email, password_hash, is_superuser, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID.String(), u.Username, u.Email, u.PasswordHash, superuser, formatTime(u.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	var (
		u         user.User
		id        string
		superuser int
		created   textTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, is_superuser, created_at FROM users WHERE "+where, arg,
	).Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &superuser, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	u.CreatedAt = created.Time
	u.IsSuperuser = superuser != 0
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.getUser(ctx, "id = ?", id.String())
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)",
		sess.Token, sess.UserID.String(), formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return fmt.Errorf("session: %w", store.ErrConflict)
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*session.Session, error) {
	var (
		sess             session.Session
		userID           string
		created, expires textTime
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?", token,
	).Scan(&sess.Token, &userID, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if sess.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("parsing user id: %w", err)
	}
	sess.CreatedAt = created.Time
	sess.ExpiresAt = expires.Time
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
