package middleware

import (
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/types/session"
)

// CSRFSecretCookie holds the unmasked token; clients never read it.
const CSRFSecretCookie = "csrf_secret"

type CSRFOptions struct {
	Key []byte
	// Secure marks cookies Secure and treats every request as HTTPS.
	Secure bool
	// AllowedOrigins are full origins (scheme://host[:port]) allowed to post
	// cross-origin, the same list CORS uses.
	AllowedOrigins []string
	Log            logger.Logger
}

// CSRF protects every unsafe method. Tokens are read from the X-CSRFToken
// header.
func CSRF(opts CSRFOptions) func(http.Handler) http.Handler {
	log := opts.Log

	protect := csrf.Protect(opts.Key,
		csrf.RequestHeader(session.CSRFHeaderName),
		csrf.CookieName(CSRFSecretCookie),
		csrf.Path("/"),
		csrf.Secure(opts.Secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(originHosts(opts.AllowedOrigins)),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Warnw("csrf rejected", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			authRejections.WithLabelValues("csrf").Inc()
			respondWithError(w, http.StatusForbidden, "CSRF verification failed")
		})),
	)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.TLS == nil && !opts.Secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// SetCSRFCookie publishes the request's masked token in the script-readable
// csrftoken cookie so clients can echo it back in X-CSRFToken.
func SetCSRFCookie(w http.ResponseWriter, r *http.Request, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CSRFCookieName,
		Value:    csrf.Token(r),
		Path:     "/",
		MaxAge:   12 * 3600,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
