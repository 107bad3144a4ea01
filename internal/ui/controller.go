package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"learningTrackerAPI/internal/client"
	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/user"
	"learningTrackerAPI/utils"
)

// User-facing messages.
const (
	Placeholder           = "No Entries Yet, Go out and Learn something New!"
	MsgMissingCredentials = "Please enter both username and password."
	MsgInvalidCredentials = "Invalid credentials"
	MsgLoginRequired      = "Log in to write entries."
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// API is the part of the REST client the views depend on.
type API interface {
	FetchCsrfToken(ctx context.Context)
	Login(ctx context.Context, username, password string) (*user.MessageResponse, error)
	Logout(ctx context.Context) error
	FetchEntry(ctx context.Context, date string) (*entry.Entry, error)
	CreateEntry(ctx context.Context, date, description string) (*entry.Entry, error)
	UpsertEntry(ctx context.Context, req *entry.UpsertEntryRequest) (*entry.Entry, error)
	Month(ctx context.Context, year int, month time.Month) (*calendar.CalendarResponse, error)
}

// AuthState is the persisted logged-in hint.
type AuthState interface {
	IsAuthenticated() bool
	Set(authenticated bool) error
}

// Controller holds the calendar, editor and login view state shared by the
// TUI and the plain commands. Methods that only fetch are safe to call from
// other goroutines; methods that change fields are not.
type Controller struct {
	api  API
	auth AuthState
	log  logger.Logger
	now  func() time.Time

	Selected    string
	Description string
	Draft       string
	LoginError  string
}

func NewController(api API, auth AuthState, log logger.Logger) *Controller {
	c := &Controller{api: api, auth: auth, log: log.Named("ui"), now: time.Now}
	c.Reset()
	return c
}

func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	c.Reset()
	return c
}

func (c *Controller) Today() string {
	return utils.FormatDate(c.now())
}

// Reset discards all view state, as a fresh start would.
func (c *Controller) Reset() {
	c.Selected = c.Today()
	c.Description = ""
	c.Draft = ""
	c.LoginError = ""
}

// EditorVisible reports whether the entry editor should be shown.
func (c *Controller) EditorVisible() bool {
	return c.auth.IsAuthenticated()
}

// Select makes date current and clears the description shown for the
// previous one.
func (c *Controller) Select(date string) error {
	d, err := utils.NormalizeDate(strings.TrimSpace(date))
	if err != nil {
		return err
	}
	c.Selected = d
	c.Description = ""
	return nil
}

// FetchDescription returns the text to show for date. Missing entries and
// failures both yield the placeholder.
func (c *Controller) FetchDescription(ctx context.Context, date string) string {
	e, err := c.api.FetchEntry(ctx, date)
	if err != nil {
		if !errors.Is(err, client.ErrNotFound) {
			c.log.Warnw("Error fetching entry", "date", date, "err", err)
		}
		return Placeholder
	}
	return e.Description
}

// ApplyDescription stores a fetched description if date is still selected.
// A result for any other date is stale and dropped.
func (c *Controller) ApplyDescription(date, description string) bool {
	if date != c.Selected {
		return false
	}
	c.Description = description
	return true
}

// SelectDate selects date and loads its description.
func (c *Controller) SelectDate(ctx context.Context, date string) (string, error) {
	if err := c.Select(date); err != nil {
		return "", err
	}
	c.ApplyDescription(c.Selected, c.FetchDescription(ctx, c.Selected))
	return c.Description, nil
}

// Save writes draft for date and returns the refreshed description.
func (c *Controller) Save(ctx context.Context, date, draft string) (string, error) {
	return c.SaveEntry(ctx, date, draft, "")
}

// SaveEntry is Save with a learning type. An empty type keeps the one
// already stored for date.
func (c *Controller) SaveEntry(ctx context.Context, date, draft, learningType string) (string, error) {
	if !c.EditorVisible() {
		return "", ErrNotLoggedIn
	}

	var err error
	if learningType == "" {
		_, err = c.api.CreateEntry(ctx, date, draft)
	} else {
		_, err = c.api.UpsertEntry(ctx, &entry.UpsertEntryRequest{Date: date, Description: draft, LearningType: learningType})
	}
	if err != nil {
		return "", err
	}
	return c.FetchDescription(ctx, date), nil
}

// SubmitEntry saves the draft for the selected date, clears the draft and
// shows the stored text.
func (c *Controller) SubmitEntry(ctx context.Context) error {
	date := c.Selected
	description, err := c.Save(ctx, date, c.Draft)
	if err != nil {
		return err
	}
	c.Draft = ""
	c.ApplyDescription(date, description)
	return nil
}

// Authenticate runs the login flow without touching view fields. Empty
// credentials fail before any request is made.
func (c *Controller) Authenticate(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}

	c.api.FetchCsrfToken(ctx)
	if _, err := c.api.Login(ctx, username, password); err != nil {
		c.log.Debugw("Login failed", "err", err)
		return ErrInvalidCredentials
	}

	if err := c.auth.Set(true); err != nil {
		c.log.Warnw("failed to persist auth flag", "err", err)
	}
	return nil
}

// LoginMessage maps an Authenticate error to the text shown to the user.
func LoginMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingCredentials):
		return MsgMissingCredentials
	default:
		return MsgInvalidCredentials
	}
}

// Login authenticates and records the outcome in LoginError.
func (c *Controller) Login(ctx context.Context, username, password string) error {
	err := c.Authenticate(ctx, username, password)
	c.LoginError = LoginMessage(err)
	return err
}

// EndSession logs out on the server and clears the auth flag. The flag is
// cleared even when the request fails.
func (c *Controller) EndSession(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		c.log.Warnw("Logout request failed", "err", err)
	}
	if err := c.auth.Set(false); err != nil {
		c.log.Warnw("failed to persist auth flag", "err", err)
	}
}

// Logout ends the session and resets the view.
func (c *Controller) Logout(ctx context.Context) {
	c.EndSession(ctx)
	c.Reset()
}

// Month builds the grid for year/month with the local today and selected
// marked. It reads no view fields, so callers pass the selection in. Entry
// markers come from the server; if it cannot be reached the grid is
// returned without them.
func (c *Controller) Month(ctx context.Context, year int, month time.Month, selected string) (*calendar.CalendarResponse, error) {
	hasEntry := map[string]bool{}

	remote, err := c.api.Month(ctx, year, month)
	if err != nil {
		c.log.Warnw("Error fetching month", "year", year, "month", int(month), "err", err)
	} else {
		for _, d := range remote.Days {
			if d.HasEntry {
				hasEntry[d.Date] = true
			}
		}
	}

	return utils.BuildMonth(year, month, c.now(), selected, hasEntry)
}
