package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"learningTrackerAPI/internal/client"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/utils"
)

type screen int

const (
	screenCalendar screen = iota
	screenEditor
	screenLogin
)

const (
	focusUsername = 0
	focusPassword = 1
)

const maxDraftLength = 5000

type monthLoadedMsg struct {
	year  int
	month time.Month
	cal   *calendar.CalendarResponse
	err   error
}

type entryLoadedMsg struct {
	date        string
	description string
}

type entrySavedMsg struct {
	date        string
	description string
	err         error
}

type loginDoneMsg struct{ err error }

type logoutDoneMsg struct{}

type authChangedMsg struct{ authenticated bool }

// Model is the interactive calendar.
type Model struct {
	ctx   context.Context
	ctrl  *Controller
	theme Theme

	screen screen
	year   int
	month  time.Month
	cal    *calendar.CalendarResponse

	loading    bool
	editor     textarea.Model
	username   textinput.Model
	password   textinput.Model
	loginFocus int
	status     string

	width  int
	height int
}

func NewModel(ctx context.Context, ctrl *Controller, theme Theme) Model {
	sel, _ := utils.ParseDate(ctrl.Selected, time.UTC)
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		theme:   theme,
		screen:  screenCalendar,
		year:    sel.Year(),
		month:   sel.Month(),
		loading: true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadMonthCmd(m.year, m.month), m.loadEntryCmd(m.ctrl.Selected))
}

func (m Model) loadMonthCmd(year int, month time.Month) tea.Cmd {
	ctrl, ctx, selected := m.ctrl, m.ctx, m.ctrl.Selected
	return func() tea.Msg {
		cal, err := ctrl.Month(ctx, year, month, selected)
		return monthLoadedMsg{year: year, month: month, cal: cal, err: err}
	}
}

func (m Model) loadEntryCmd(date string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return entryLoadedMsg{date: date, description: ctrl.FetchDescription(ctx, date)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.screen == screenEditor {
			m.editor.SetWidth(m.contentWidth())
		}
		return m, nil

	case monthLoadedMsg:
		if msg.year != m.year || msg.month != m.month {
			return m, nil
		}
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.cal = msg.cal
		m.markSelected()
		return m, nil

	case entryLoadedMsg:
		if m.ctrl.ApplyDescription(msg.date, msg.description) {
			m.loading = false
		}
		return m, nil

	case entrySavedMsg:
		if msg.err != nil {
			m.status = errorText(msg.err)
			return m, nil
		}
		m.ctrl.Draft = ""
		m.screen = screenCalendar
		m.status = "Saved."
		m.ctrl.ApplyDescription(msg.date, msg.description)
		return m, m.loadMonthCmd(m.year, m.month)

	case loginDoneMsg:
		m.ctrl.LoginError = LoginMessage(msg.err)
		if msg.err != nil {
			return m, nil
		}
		m.screen = screenCalendar
		m.status = "Logged in."
		m.password.Reset()
		return m, nil

	case logoutDoneMsg:
		m.ctrl.Reset()
		m.screen = screenCalendar
		m.status = "Logged out."
		return m.jumpTo(m.ctrl.Selected)

	case authChangedMsg:
		if !msg.authenticated && m.screen == screenEditor {
			m.screen = screenCalendar
		}
		return m, nil

	case tea.KeyMsg:
		switch m.screen {
		case screenEditor:
			return m.updateEditor(msg)
		case screenLogin:
			return m.updateLogin(msg)
		default:
			return m.updateCalendar(msg)
		}
	}

	return m, nil
}

func (m Model) updateCalendar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		return m.moveBy(-1)
	case "right", "l":
		return m.moveBy(1)
	case "up", "k":
		return m.moveBy(-7)
	case "down", "j":
		return m.moveBy(7)
	case "p", "[":
		m.year, m.month = utils.ShiftMonth(m.year, m.month, -1)
		m.cal = nil
		return m, m.loadMonthCmd(m.year, m.month)
	case "n", "]":
		m.year, m.month = utils.ShiftMonth(m.year, m.month, 1)
		m.cal = nil
		return m, m.loadMonthCmd(m.year, m.month)
	case "t":
		return m.jumpTo(m.ctrl.Today())
	case "e", "enter":
		if !m.ctrl.EditorVisible() {
			m.status = MsgLoginRequired
			return m, nil
		}
		return m.startEditor()
	case "L":
		return m.startLogin()
	case "O":
		if !m.ctrl.EditorVisible() {
			return m, nil
		}
		ctrl, ctx := m.ctrl, m.ctx
		return m, func() tea.Msg {
			ctrl.EndSession(ctx)
			return logoutDoneMsg{}
		}
	}
	return m, nil
}

func (m Model) moveBy(days int) (tea.Model, tea.Cmd) {
	sel, err := utils.ParseDate(m.ctrl.Selected, time.UTC)
	if err != nil {
		return m, nil
	}
	return m.jumpTo(utils.FormatDate(sel.AddDate(0, 0, days)))
}

// jumpTo selects date, following it into another month if needed, and
// starts loading its entry.
func (m Model) jumpTo(date string) (tea.Model, tea.Cmd) {
	if err := m.ctrl.Select(date); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.loading = true

	cmds := []tea.Cmd{m.loadEntryCmd(m.ctrl.Selected)}
	sel, _ := utils.ParseDate(m.ctrl.Selected, time.UTC)
	if sel.Year() != m.year || sel.Month() != m.month {
		m.year, m.month = sel.Year(), sel.Month()
		m.cal = nil
		cmds = append(cmds, m.loadMonthCmd(m.year, m.month))
	} else {
		m.markSelected()
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) markSelected() {
	if m.cal == nil {
		return
	}
	for _, d := range m.cal.Days {
		d.IsSelected = d.Date == m.ctrl.Selected
	}
}

func (m Model) startEditor() (tea.Model, tea.Cmd) {
	ta := textarea.New()
	ta.Placeholder = "What did you learn? (ctrl+s save, esc cancel)"
	ta.CharLimit = maxDraftLength
	ta.ShowLineNumbers = false
	ta.SetWidth(m.contentWidth())
	ta.SetHeight(6)
	ta.SetValue(m.ctrl.Draft)
	ta.Focus()

	m.editor = ta
	m.screen = screenEditor
	return m, textarea.Blink
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.Draft = m.editor.Value()
		m.screen = screenCalendar
		return m, nil
	case "ctrl+s":
		m.ctrl.Draft = m.editor.Value()
		date, draft := m.ctrl.Selected, m.ctrl.Draft
		ctrl, ctx := m.ctrl, m.ctx
		m.status = "Saving..."
		return m, func() tea.Msg {
			description, err := ctrl.Save(ctx, date, draft)
			return entrySavedMsg{date: date, description: description, err: err}
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) startLogin() (tea.Model, tea.Cmd) {
	u := textinput.New()
	u.Placeholder = "username"
	u.Focus()

	p := textinput.New()
	p.Placeholder = "password"
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'

	m.username = u
	m.password = p
	m.loginFocus = focusUsername
	m.ctrl.LoginError = ""
	m.screen = screenLogin
	return m, textinput.Blink
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenCalendar
		return m, nil
	case "tab", "shift+tab", "up", "down":
		if m.loginFocus == focusUsername {
			m.loginFocus = focusPassword
			m.username.Blur()
			return m, m.password.Focus()
		}
		m.loginFocus = focusUsername
		m.password.Blur()
		return m, m.username.Focus()
	case "enter":
		username := strings.TrimSpace(m.username.Value())
		password := m.password.Value()
		if username == "" || password == "" {
			m.ctrl.LoginError = MsgMissingCredentials
			return m, nil
		}
		ctrl, ctx := m.ctrl, m.ctx
		return m, func() tea.Msg {
			return loginDoneMsg{err: ctrl.Authenticate(ctx, username, password)}
		}
	}

	var cmd tea.Cmd
	if m.loginFocus == focusUsername {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 76
	}
	return max(m.width-4, 20)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.theme.HeaderStyle().Render("Learning Tracker"))
	b.WriteString("\n\n")

	if m.cal != nil {
		b.WriteString(m.theme.BorderStyle().Render(RenderMonth(m.cal, m.theme)))
	} else {
		b.WriteString(m.theme.HelpStyle().Render(fmt.Sprintf("Loading %s %d...", m.month, m.year)))
	}
	b.WriteString("\n\n")

	b.WriteString(m.theme.HeaderStyle().Render(m.ctrl.Selected))
	b.WriteString("\n")
	if m.loading {
		b.WriteString(m.theme.HelpStyle().Render("Loading..."))
	} else {
		b.WriteString(RenderMarkdown(m.ctrl.Description, m.contentWidth(), m.theme.MarkdownStyle))
	}
	b.WriteString("\n\n")

	switch m.screen {
	case screenEditor:
		b.WriteString(m.editor.View())
		b.WriteString("\n")
	case screenLogin:
		b.WriteString(m.username.View())
		b.WriteString("\n")
		b.WriteString(m.password.View())
		b.WriteString("\n")
		if m.ctrl.LoginError != "" {
			b.WriteString(m.theme.DangerStyle().Render(m.ctrl.LoginError))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.theme.HelpStyle().Render(m.helpLine()))

	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func (m Model) helpLine() string {
	switch m.screen {
	case screenEditor:
		return "ctrl+s save • esc back"
	case screenLogin:
		return "tab switch field • enter log in • esc back"
	}
	if m.ctrl.EditorVisible() {
		return "←/→/↑/↓ move • p/n month • t today • e write • O log out • q quit"
	}
	return "←/→/↑/↓ move • p/n month • t today • L log in • q quit"
}

func errorText(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, ErrNotLoggedIn) {
		return MsgLoginRequired
	}
	return err.Error()
}

// Watcher reports auth flag changes made by other processes.
type Watcher interface {
	Watch(ctx context.Context, fn func(bool)) error
}

// Run starts the interactive calendar and blocks until it exits.
func Run(ctx context.Context, ctrl *Controller, theme Theme, w Watcher) error {
	p := tea.NewProgram(NewModel(ctx, ctrl, theme), tea.WithAltScreen(), tea.WithContext(ctx))

	if w != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			err := w.Watch(watchCtx, func(authenticated bool) {
				p.Send(authChangedMsg{authenticated: authenticated})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				ctrl.log.Warnw("auth flag watch stopped", "err", err)
			}
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
