package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

type contextKey string

const UserKey contextKey = "user"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.User, error)
}

// SessionMiddleware attaches the user behind the sessionid cookie to the
// request context. Requests without a valid session pass through anonymous.
func SessionMiddleware(auth Authenticator, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Debugw("session not accepted", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			authRejections.WithLabelValues("no_session").Inc()
			respondWithError(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser extracts the authenticated user from context
func GetUser(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(UserKey).(*user.User)
	return u, ok && u != nil
}

// SessionToken returns the sessionid cookie value, or "".
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
