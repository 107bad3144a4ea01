package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/crypto/bcrypt"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("authentication required")
)

const sessionTokenLength = 32

type AuthService struct {
	users    store.UserStore
	sessions store.SessionStore
	ttl      time.Duration
	cost     int
	log      logger.Logger
	now      func() time.Time
}

func NewAuthService(users store.UserStore, sessions store.SessionStore, ttl time.Duration, log logger.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		log:      log.Named("auth"),
		now:      time.Now,
	}
}

func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) SessionTTL() time.Duration { return s.ttl }

// Login checks the password and opens a new session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*session.Session, *user.User, error) {
	if username == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Infow("login rejected", "username", username)
		return nil, nil, ErrInvalidCredentials
	}

	token, err := gonanoid.New(sessionTokenLength)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now().UTC()
	sess := &session.Session{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, nil, err
	}

	s.log.Infow("user logged in", "username", u.Username)
	return sess, u, nil
}

// Logout ends the session. Unknown or empty tokens are not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user. Missing and expired
// sessions yield ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*user.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if sess.Expired(s.now()) {
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			s.log.Warnw("failed to delete expired session", "err", err)
		}
		return nil, ErrUnauthenticated
	}

	u, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// CreateSuperuser creates an admin account. An existing username is reported
// with created=false and no error.
func (s *AuthService) CreateSuperuser(ctx context.Context, username, email, password string) (*user.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, invalid("username is required")
	}
	if password == "" {
		return nil, false, invalid("password is required")
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &user.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
		IsSuperuser:  true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			existing, getErr := s.users.GetUserByUsername(ctx, username)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	s.log.Infow("superuser created", "username", username)
	return u, true, nil
}

// CleanupExpiredSessions deletes every session that has expired by now.
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
}
