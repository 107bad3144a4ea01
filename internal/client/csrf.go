package client

import (
	"net/http"

	"learningTrackerAPI/internal/types/session"
)

// csrfTransport echoes the csrftoken cookie in X-CSRFToken on unsafe
// requests. A missing cookie just omits the header.
type csrfTransport struct {
	base    http.RoundTripper
	jar     http.CookieJar
	referer string
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isSafeMethod(req.Method) {
		return t.base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	for _, c := range t.jar.Cookies(req.URL) {
		if c.Name == session.CSRFCookieName {
			req.Header.Set(session.CSRFHeaderName, c.Value)
			break
		}
	}
	if req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", t.referer)
	}
	return t.base.RoundTrip(req)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
