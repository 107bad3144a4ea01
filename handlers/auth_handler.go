package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
	"learningTrackerAPI/middleware"
	"learningTrackerAPI/services"
)

type AuthHandler struct {
	authService   *services.AuthService
	secureCookies bool
	log           logger.Logger
}

func NewAuthHandler(authService *services.AuthService, secureCookies bool, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
		log:           log.Named("auth_handler"),
	}
}

// CSRFToken primes the client with the csrftoken cookie.
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	middleware.SetCSRFCookie(w, r, h.secureCookies)
	respondWithJSON(w, http.StatusOK, user.MessageResponse{Message: "CSRF token set"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, u, err := h.authService.Login(ctx, req.Username, req.Password)
	if err != nil {
		middleware.RecordLogin(false)
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.Errorw("login failed", "err", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	middleware.RecordLogin(true)
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	h.log.Debugw("session opened", "username", u.Username)
	respondWithJSON(w, http.StatusOK, user.MessageResponse{Message: "Logged in successfully"})
}

// Logout always succeeds; the session, if any, is deleted and the cookies expired.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.authService.Logout(ctx, middleware.SessionToken(r)); err != nil {
		h.log.Warnw("failed to delete session", "err", err)
	}

	for _, name := range []string{session.CookieName, session.CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}

	respondWithJSON(w, http.StatusOK, user.MessageResponse{Message: "Logged out successfully"})
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
