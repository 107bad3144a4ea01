package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

// Sentinel errors returned (possibly wrapped) by every backend.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// EntryStore persists learning entries keyed by date.
type EntryStore interface {
	GetEntryByDate(ctx context.Context, date string) (*entry.Entry, error)
	GetEntryByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error)
	// UpsertEntry inserts e or overwrites the entry already stored for e.Date.
	// An empty LearningType keeps the stored one, or is Other on insert.
	// The stored record is returned; created reports whether it was new.
	// On update, the ID and CreatedAt of the existing record are kept.
	UpsertEntry(ctx context.Context, e *entry.Entry) (stored *entry.Entry, created bool, err error)
	// ListEntries returns matching entries, newest date first.
	ListEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error)
	CountEntries(ctx context.Context, startDate, endDate string) (int, error)
}

type UserStore interface {
	// CreateUser returns ErrConflict when the username is taken.
	CreateUser(ctx context.Context, u *user.User) error
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, token string) (*session.Session, error)
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes sessions whose expiry is at or before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	EntryStore
	UserStore
	SessionStore
	Ping(ctx context.Context) error
	Close() error
}
