// Package memory is an in-process store.Store, used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry.Entry // by date
	users    map[uuid.UUID]*user.User
	sessions map[string]*session.Session
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:  make(map[string]*entry.Entry),
		users:    make(map[uuid.UUID]*user.User),
		sessions: make(map[string]*session.Session),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) GetEntryByDate(ctx context.Context, date string) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[date]
	if !ok {
		return nil, fmt.Errorf("entry for %s: %w", date, store.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (s *Store) GetEntryByID(ctx context.Context, id uuid.UUID) (*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
}

func (s *Store) UpsertEntry(ctx context.Context, e *entry.Entry) (*entry.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *e
	existing, ok := s.entries[e.Date]
	if ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
		if stored.LearningType == "" {
			stored.LearningType = existing.LearningType
		}
	} else if stored.LearningType == "" {
		stored.LearningType = entry.TopicOther
	}
	s.entries[e.Date] = &stored

	cp := stored
	return &cp, !ok, nil
}

func (s *Store) ListEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entry.Entry, 0)
	for _, e := range s.entries {
		if f.Match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *Store) CountEntries(ctx context.Context, startDate, endDate string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for date := range s.entries {
		if date >= startDate && date <= endDate {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == u.Username {
			return fmt.Errorf("user %q: %w", u.Username, store.ErrConflict)
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, store.ErrNotFound)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.Token]; ok {
		return fmt.Errorf("session: %w", store.ErrConflict)
	}
	cp := *sess
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session: %w", store.ErrNotFound)
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}
