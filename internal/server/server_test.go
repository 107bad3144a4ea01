package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learningTrackerAPI/internal/config"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store/memory"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                   "0",
		Storage:                config.StorageMemory,
		SessionTTL:             time.Hour,
		SessionCleanupInterval: time.Hour,
		AllowedOrigins:         []string{"http://localhost:3000"},
		MetricsUser:            "prom",
		MetricsPass:            "scrape",
		PprofSecret:            "pprof",
		RateLimitRPS:           1000,
		RateLimitBurst:         1000,
		SuperuserUsername:      "admin",
		SuperuserPassword:      "s3cret",
	}
}

type testClient struct {
	t    *testing.T
	base *url.URL
	http *http.Client
}

func newTestServer(t *testing.T) (*Server, *testClient) {
	t.Helper()

	srv := New(testConfig(), memory.New(), bytes.Repeat([]byte("k"), 32), logger.Test(t))
	require.NoError(t, srv.BootstrapSuperuser(context.Background()))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(ts.URL)
	require.NoError(t, err)

	return srv, &testClient{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *testClient) csrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.base) {
		if ck.Name == session.CSRFCookieName {
			return ck.Value
		}
	}
	return ""
}

func (c *testClient) do(method, path string, body any) (int, []byte) {
	c.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.base.String()+path, rdr)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		if tok := c.csrfToken(); tok != "" {
			req.Header.Set(session.CSRFHeaderName, tok)
		}
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp.StatusCode, out
}

func (c *testClient) login() {
	c.t.Helper()
	code, _ := c.do(http.MethodGet, "/api/get-csrf-token/", nil)
	require.Equal(c.t, http.StatusOK, code)
	code, body := c.do(http.MethodPost, "/api/login/", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(c.t, http.StatusOK, code, string(body))
}

func TestWelcomeAndTopics(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodGet, "/api/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Welcome to the Learning Tracker API!"}`, string(body))

	code, body = c.do(http.MethodGet, "/api/topics/", nil)
	assert.Equal(t, http.StatusOK, code)
	var topics []string
	require.NoError(t, json.Unmarshal(body, &topics))
	assert.Equal(t, entry.Topics, topics)
}

func TestCSRFPrimeSetsCookies(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodGet, "/api/csrf/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"CSRF token set"}`, string(body))
	assert.NotEmpty(t, c.csrfToken())
}

func TestPostWithoutCSRFIsForbidden(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodPost, "/api/login/", map[string]string{"username": "admin", "password": "s3cret"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.JSONEq(t, `{"error":"CSRF verification failed"}`, string(body))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	_, c := newTestServer(t)

	c.do(http.MethodGet, "/api/get-csrf-token/", nil)
	code, body := c.do(http.MethodPost, "/api/login/", map[string]string{"username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, string(body))
}

func TestUpsertRequiresSession(t *testing.T) {
	_, c := newTestServer(t)

	c.do(http.MethodGet, "/api/get-csrf-token/", nil)
	code, body := c.do(http.MethodPost, "/api/entry/", map[string]string{"date": "2024-01-01", "description": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.JSONEq(t, `{"error":"Authentication required."}`, string(body))
}

func TestEntryLifecycle(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodGet, "/api/entry/?date=2024-01-01", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"description":"No entry found for this date."}`, string(body))

	code, body = c.do(http.MethodGet, "/api/entry/", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"Date parameter is required."}`, string(body))

	code, body = c.do(http.MethodGet, "/get-entry/?date=2024-01-01", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"description":"No Entries Yet, Go out and Learn something New!"}`, string(body))

	c.login()

	code, body = c.do(http.MethodPost, "/api/entry/", map[string]string{"date": "2024-01-01", "description": "first"})
	require.Equal(t, http.StatusCreated, code, string(body))
	var created entry.Entry
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "2024-01-01", created.Date)
	assert.Equal(t, entry.TopicOther, created.LearningType)

	code, body = c.do(http.MethodPost, "/api/entry/", map[string]string{"date": "2024-01-01", "description": "second", "learning_type": "Docker"})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = c.do(http.MethodGet, "/api/entry/?date=2024-01-01", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"description":"second"}`, string(body))

	code, body = c.do(http.MethodGet, "/api/learned-entries/"+created.ID.String()+"/", nil)
	assert.Equal(t, http.StatusOK, code)
	var byID entry.Entry
	require.NoError(t, json.Unmarshal(body, &byID))
	assert.Equal(t, "second", byID.Description)
	assert.Equal(t, entry.TopicDocker, byID.LearningType)

	code, body = c.do(http.MethodGet, "/api/learned-entries/?learning_type=dock", nil)
	assert.Equal(t, http.StatusOK, code)
	var listed []entry.Entry
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed, 1)

	future := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	code, body = c.do(http.MethodPost, "/api/entry/", map[string]string{"date": future, "description": "later"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"error":"The date cannot be in the future."}`, string(body))

	code, _ = c.do(http.MethodPost, "/api/logout/", nil)
	assert.Equal(t, http.StatusOK, code)

	c.do(http.MethodGet, "/api/get-csrf-token/", nil)
	code, _ = c.do(http.MethodPost, "/api/entry/", map[string]string{"date": "2024-01-02", "description": "after logout"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCalendarAndStats(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodGet, "/api/calendar/?year=2024&month=2", nil)
	require.Equal(t, http.StatusOK, code)
	var month calendar.CalendarResponse
	require.NoError(t, json.Unmarshal(body, &month))
	assert.Len(t, month.Days, 29)
	assert.Equal(t, 4, month.LeadingBlanks)

	code, _ = c.do(http.MethodGet, "/api/calendar/?month=feb", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = c.do(http.MethodGet, "/api/stats/", nil)
	require.Equal(t, http.StatusOK, code)
	var stats entry.StatsResponse
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, time.Now().YearDay(), stats.TotalDays)
}

func TestCalendarPage(t *testing.T) {
	srv, c := newTestServer(t)

	_, _, err := srv.Entries.Upsert(context.Background(), &entry.UpsertEntryRequest{
		Date:        "2024-02-14",
		Description: "**Bold** move <script>alert(1)</script>",
	})
	require.NoError(t, err)

	code, body := c.do(http.MethodGet, "/?year=2024&month=2&date=2024-02-14", nil)
	require.Equal(t, http.StatusOK, code)
	page := string(body)
	assert.Contains(t, page, "February 2024")
	assert.Contains(t, page, "<strong>Bold</strong>")
	assert.NotContains(t, page, "<script>alert(1)</script>")

	code, body = c.do(http.MethodGet, "/?year=2024&month=2&date=2024-02-15", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "No Entries Yet, Go out and Learn something New!")
}

func TestOpsEndpoints(t *testing.T) {
	_, c := newTestServer(t)

	code, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "healthy")

	code, _ = c.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	req, err := http.NewRequest(http.MethodGet, c.base.String()+"/metrics", nil)
	require.NoError(t, err)
	req.SetBasicAuth("prom", "scrape")
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	metrics, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(metrics), "http_requests_total"))

	code, _ = c.do(http.MethodGet, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestBootstrapSuperuserIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NoError(t, srv.BootstrapSuperuser(context.Background()))
}
