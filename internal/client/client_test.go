package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learningTrackerAPI/internal/localstore"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/testutil"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
)

func newClient(t *testing.T, baseURL string, store *localstore.Store) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL, Timeout: 5 * time.Second, Store: store, Log: logger.Test(t)})
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost:8000"})
	assert.Error(t, err)
}

func TestFetchEntryNotFound(t *testing.T) {
	ts := testutil.StartServer(t, nil)
	c := newClient(t, ts.URL, nil)

	_, err := c.FetchEntry(context.Background(), "2024-01-01")
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "No entry found for this date.", apiErr.Message)
}

func TestLoginWriteReadLogout(t *testing.T) {
	ctx := context.Background()
	ts := testutil.StartServer(t, nil)
	c := newClient(t, ts.URL, nil)

	c.FetchCsrfToken(ctx)
	assert.NotEmpty(t, c.Cookie(session.CSRFCookieName))

	resp, err := c.Login(ctx, testutil.Username, testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, "Logged in successfully", resp.Message)
	assert.NotEmpty(t, c.Cookie(session.CookieName))

	e, err := c.CreateEntry(ctx, "2024-01-01", "first")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", e.Date)

	_, err = c.CreateEntry(ctx, "2024-01-01", "second")
	require.NoError(t, err)

	got, err := c.FetchEntry(ctx, "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Description)

	list, err := c.ListEntries(ctx, entry.Filter{Description: "SEC"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	month, err := c.Month(ctx, 2024, time.January)
	require.NoError(t, err)
	assert.True(t, month.Days[0].HasEntry)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Now().YearDay(), stats.TotalDays)

	topics, err := c.Topics(ctx)
	require.NoError(t, err)
	assert.Contains(t, topics, entry.TopicOther)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Cookie(session.CookieName))
	assert.Empty(t, c.Cookie(session.CSRFCookieName))

	c.FetchCsrfToken(ctx)
	_, err = c.CreateEntry(ctx, "2024-01-02", "anonymous")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Authentication required.", apiErr.Message)
}

func TestLoginFailure(t *testing.T) {
	ctx := context.Background()
	ts := testutil.StartServer(t, nil)
	c := newClient(t, ts.URL, nil)

	c.FetchCsrfToken(ctx)
	_, err := c.Login(ctx, "admin", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestMutationWithoutPrimeIsRejected(t *testing.T) {
	ts := testutil.StartServer(t, nil)
	c := newClient(t, ts.URL, nil)

	_, err := c.Login(context.Background(), testutil.Username, testutil.Password)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestCookiesPersistAcrossClients(t *testing.T) {
	ctx := context.Background()
	ts := testutil.StartServer(t, nil)
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	first := newClient(t, ts.URL, store)
	first.FetchCsrfToken(ctx)
	_, err = first.Login(ctx, testutil.Username, testutil.Password)
	require.NoError(t, err)

	raw, ok, err := store.Get(CookiesKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, session.CookieName)

	second := newClient(t, ts.URL, store)
	_, err = second.CreateEntry(ctx, "2024-02-02", "from a new process")
	require.NoError(t, err)

	require.NoError(t, second.Logout(ctx))
	third := newClient(t, ts.URL, store)
	assert.Empty(t, third.Cookie(session.CookieName))
}

func TestFetchCsrfTokenSwallowsErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, nil)
	c.FetchCsrfToken(context.Background())
	assert.Empty(t, c.Cookie(session.CSRFCookieName))
}

func TestCSRFHeaderOnlyOnUnsafeMethods(t *testing.T) {
	var withHeader, without atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/get-csrf-token/" {
			http.SetCookie(w, &http.Cookie{Name: session.CSRFCookieName, Value: "tok", Path: "/"})
		}
		if r.Header.Get(session.CSRFHeaderName) == "tok" {
			withHeader.Add(1)
		} else {
			without.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"description":"ok","message":"ok"}`))
	}))
	defer ts.Close()

	ctx := context.Background()
	c := newClient(t, ts.URL, nil)
	c.FetchCsrfToken(ctx)
	_, err := c.FetchEntry(ctx, "2024-01-01")
	require.NoError(t, err)
	_, err = c.Login(ctx, "a", "b")
	require.NoError(t, err)

	assert.Equal(t, int32(1), withHeader.Load())
	assert.Equal(t, int32(2), without.Load())
}

func TestErrorMessageFallbacks(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "bad", errorMessage(resp, []byte(`{"error":"bad"}`)))
	assert.Equal(t, "gone", errorMessage(resp, []byte(`{"detail":"gone"}`)))
	assert.Equal(t, "upstream down", errorMessage(resp, []byte("upstream down\n")))
	assert.Equal(t, "Bad Gateway", errorMessage(resp, nil))
}
