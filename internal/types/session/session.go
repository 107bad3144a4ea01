package session

import (
	"time"

	"github.com/google/uuid"
)

// Cookie names shared by the server and the client.
const (
	CookieName     = "sessionid"
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
)

type Session struct {
	Token     string    `json:"-" db:"token"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
