// Package client is the typed REST client for the learning tracker API.
// It keeps session and CSRF cookies in a jar that is persisted to local
// storage between runs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"learningTrackerAPI/internal/localstore"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/session"
	"learningTrackerAPI/internal/types/user"
)

// CookiesKey is the local storage key holding the persisted jar.
const CookiesKey = "cookies"

// ErrNotFound matches an *APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Options struct {
	BaseURL string
	Timeout time.Duration
	// Store persists cookies across runs. Optional.
	Store     *localstore.Store
	Log       logger.Logger
	Transport http.RoundTripper
}

type Client struct {
	base  *url.URL
	http  *http.Client
	jar   *cookiejar.Jar
	store *localstore.Store
	log   logger.Logger
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		base:  base,
		jar:   jar,
		store: opts.Store,
		log:   log.Named("client"),
		http: &http.Client{
			Jar:       jar,
			Timeout:   opts.Timeout,
			Transport: &csrfTransport{base: transport, jar: jar, referer: base.String() + "/"},
		},
	}
	c.restoreCookies()
	return c, nil
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (c *Client) restoreCookies() {
	if c.store == nil {
		return
	}
	raw, ok, err := c.store.Get(CookiesKey)
	if err != nil || !ok || raw == "" {
		if err != nil {
			c.log.Warnw("failed to read stored cookies", "err", err)
		}
		return
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		c.log.Warnw("ignoring unreadable stored cookies", "err", err)
		return
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, sc := range stored {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"})
	}
	c.jar.SetCookies(c.base, cookies)
}

func (c *Client) persistCookies() {
	if c.store == nil {
		return
	}
	cookies := c.jar.Cookies(c.base)
	stored := make([]storedCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, storedCookie{Name: ck.Name, Value: ck.Value})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := c.store.Set(CookiesKey, string(data)); err != nil {
		c.log.Warnw("failed to persist cookies", "err", err)
	}
}

// Cookie returns the jar's value for name, or "".
func (c *Client) Cookie(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	defer c.persistCookies()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp, data)}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func errorMessage(resp *http.Response, data []byte) string {
	var body map[string]any
	if json.Unmarshal(data, &body) == nil {
		for _, key := range []string{"error", "description", "message", "detail"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(data)); s != "" && len(s) < 200 {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

// FetchCsrfToken primes the csrftoken cookie. Failures are logged and
// otherwise ignored.
func (c *Client) FetchCsrfToken(ctx context.Context) {
	if err := c.do(ctx, http.MethodGet, "/api/get-csrf-token/", nil, nil, nil); err != nil {
		c.log.Warnw("Error fetching CSRF token", "err", err)
	}
}

func (c *Client) Login(ctx context.Context, username, password string) (*user.MessageResponse, error) {
	var resp user.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/login/", nil, user.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout tells the server to end the session, then drops the session and
// CSRF cookies locally whatever the outcome.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/logout/", nil, nil, nil)
	if err != nil {
		c.log.Warnw("Logout failed", "err", err)
	}

	c.jar.SetCookies(c.base, []*http.Cookie{
		{Name: session.CookieName, Path: "/", MaxAge: -1},
		{Name: session.CSRFCookieName, Path: "/", MaxAge: -1},
	})
	c.persistCookies()
	return err
}

// FetchEntry returns the entry for date. A date without an entry yields an
// error matching ErrNotFound.
func (c *Client) FetchEntry(ctx context.Context, date string) (*entry.Entry, error) {
	var resp entry.DescriptionResponse
	err := c.do(ctx, http.MethodGet, "/api/entry/", url.Values{"date": {date}}, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &entry.Entry{Date: date, Description: resp.Description}, nil
}

// CreateEntry writes description for date, replacing any existing entry.
func (c *Client) CreateEntry(ctx context.Context, date, description string) (*entry.Entry, error) {
	return c.UpsertEntry(ctx, &entry.UpsertEntryRequest{Date: date, Description: description})
}

func (c *Client) UpsertEntry(ctx context.Context, req *entry.UpsertEntryRequest) (*entry.Entry, error) {
	var e entry.Entry
	if err := c.do(ctx, http.MethodPost, "/api/entry/", nil, req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) ListEntries(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"date":          f.Date,
		"start_date":    f.StartDate,
		"end_date":      f.EndDate,
		"learning_type": f.LearningType,
		"description":   f.Description,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}

	entries := []*entry.Entry{}
	if err := c.do(ctx, http.MethodGet, "/api/learned-entries/", q, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) Month(ctx context.Context, year int, month time.Month) (*calendar.CalendarResponse, error) {
	q := url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(int(month))},
	}
	var resp calendar.CalendarResponse
	if err := c.do(ctx, http.MethodGet, "/api/calendar/", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Stats(ctx context.Context) (*entry.StatsResponse, error) {
	var resp entry.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats/", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Topics(ctx context.Context) ([]string, error) {
	var topics []string
	if err := c.do(ctx, http.MethodGet, "/api/topics/", nil, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}
