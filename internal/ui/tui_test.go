package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T, api *fakeAPI, auth *fakeAuth) Model {
	t.Helper()
	m := NewModel(context.Background(), newTestController(t, api, auth), PlainTheme())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return next.(Model)
}

// drain runs cmd and any batched commands, returning the produced messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// settle feeds every message produced by cmd back into the model.
func settle(m Model, cmd tea.Cmd) Model {
	for _, msg := range drain(cmd) {
		switch msg.(type) {
		case monthLoadedMsg, entryLoadedMsg, entrySavedMsg, loginDoneMsg, logoutDoneMsg:
			next, follow := m.Update(msg)
			m = settle(next.(Model), follow)
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, s string) (Model, tea.Cmd) {
	next, cmd := m.Update(key(s))
	return next.(Model), cmd
}

func TestModelInitLoadsMonthAndEntry(t *testing.T) {
	api := newFakeAPI()
	api.entries["2024-03-10"] = "Learned **select**"
	m := newTestModel(t, api, &fakeAuth{})

	m = settle(m, m.Init())
	require.NotNil(t, m.cal)
	assert.False(t, m.loading)
	assert.Equal(t, "Learned **select**", m.ctrl.Description)

	view := stripANSI(m.View())
	assert.Contains(t, view, "March 2024")
	assert.Contains(t, view, "2024-03-10")
	assert.Contains(t, view, "select")
	assert.Contains(t, view, "L log in")
}

func TestModelShowsPlaceholderForEmptyDay(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{})
	m = settle(m, m.Init())
	assert.Equal(t, Placeholder, m.ctrl.Description)
}

func TestModelDropsStaleEntry(t *testing.T) {
	api := newFakeAPI()
	api.entries["2024-03-10"] = "today"
	api.entries["2024-03-11"] = "tomorrow"
	m := newTestModel(t, api, &fakeAuth{})

	initial := m.Init()
	m, cmd := press(m, "right")
	assert.Equal(t, "2024-03-11", m.ctrl.Selected)

	m = settle(m, cmd)
	assert.Equal(t, "tomorrow", m.ctrl.Description)

	// The load for the previously selected day finishes late.
	m = settle(m, initial)
	assert.Equal(t, "tomorrow", m.ctrl.Description)
}

func TestModelFollowsSelectionAcrossMonths(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{})
	m = settle(m, m.Init())

	for i := 0; i < 3; i++ {
		var cmd tea.Cmd
		m, cmd = press(m, "down")
		m = settle(m, cmd)
	}
	assert.Equal(t, "2024-03-31", m.ctrl.Selected)

	m, cmd := press(m, "right")
	assert.Equal(t, "2024-04-01", m.ctrl.Selected)
	assert.Nil(t, m.cal)

	m = settle(m, cmd)
	require.NotNil(t, m.cal)
	assert.Equal(t, 4, m.cal.Month)
	assert.True(t, m.cal.Days[0].IsSelected)
}

func TestModelDropsStaleMonth(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{})
	m = settle(m, m.Init())

	m, prev := press(m, "p")
	m, _ = press(m, "n")
	m = settle(m, prev)

	require.Nil(t, m.cal)
	assert.Equal(t, 2024, m.year)
	assert.EqualValues(t, 3, m.month)
}

func TestModelEditorNeedsLogin(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{})
	m, _ = press(m, "e")
	assert.Equal(t, screenCalendar, m.screen)
	assert.Equal(t, MsgLoginRequired, m.status)
}

func TestModelLoginFlow(t *testing.T) {
	api := newFakeAPI()
	auth := &fakeAuth{}
	m := newTestModel(t, api, auth)

	m, _ = press(m, "L")
	require.Equal(t, screenLogin, m.screen)

	m, cmd := press(m, "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, MsgMissingCredentials, m.ctrl.LoginError)
	assert.Empty(t, api.Calls())

	m, _ = press(m, "admin")
	m, _ = press(m, "tab")
	m, _ = press(m, "s3cret")
	m, cmd = press(m, "enter")
	require.NotNil(t, cmd)

	m = settle(m, cmd)
	assert.Equal(t, screenCalendar, m.screen)
	assert.Empty(t, m.ctrl.LoginError)
	assert.True(t, auth.IsAuthenticated())
	assert.Equal(t, []string{"csrf", "login"}, api.Calls())
	assert.Contains(t, stripANSI(m.View()), "e write")
}

func TestModelLoginFailureStaysOnForm(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = assert.AnError
	m := newTestModel(t, api, &fakeAuth{})

	m, _ = press(m, "L")
	m, _ = press(m, "admin")
	m, _ = press(m, "tab")
	m, _ = press(m, "bad")
	m, cmd := press(m, "enter")
	m = settle(m, cmd)

	assert.Equal(t, screenLogin, m.screen)
	assert.Equal(t, MsgInvalidCredentials, m.ctrl.LoginError)
	assert.Contains(t, stripANSI(m.View()), MsgInvalidCredentials)
}

func TestModelWriteEntry(t *testing.T) {
	api := newFakeAPI()
	m := newTestModel(t, api, &fakeAuth{value: true})
	m = settle(m, m.Init())

	m, _ = press(m, "e")
	require.Equal(t, screenEditor, m.screen)
	m, _ = press(m, "Closures capture variables")
	m, cmd := press(m, "ctrl+s")
	m = settle(m, cmd)

	assert.Equal(t, screenCalendar, m.screen)
	assert.Empty(t, m.ctrl.Draft)
	assert.Equal(t, "Closures capture variables", m.ctrl.Description)
	assert.Equal(t, "Closures capture variables", api.entries["2024-03-10"])
	assert.True(t, m.cal.Days[9].HasEntry)
}

func TestModelEditorKeepsDraftOnCancel(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{value: true})

	m, _ = press(m, "e")
	m, _ = press(m, "half a thought")
	m, _ = press(m, "esc")
	assert.Equal(t, screenCalendar, m.screen)
	assert.Equal(t, "half a thought", m.ctrl.Draft)

	m, _ = press(m, "e")
	assert.Equal(t, "half a thought", m.editor.Value())
}

func TestModelLogout(t *testing.T) {
	api := newFakeAPI()
	auth := &fakeAuth{value: true}
	m := newTestModel(t, api, auth)
	m = settle(m, m.Init())

	m, _ = press(m, "left")
	m, cmd := press(m, "O")
	m = settle(m, cmd)

	assert.False(t, auth.IsAuthenticated())
	assert.Equal(t, "2024-03-10", m.ctrl.Selected)
	assert.Equal(t, "Logged out.", m.status)
	assert.Contains(t, api.Calls(), "logout")
}

func TestModelAuthChangedClosesEditor(t *testing.T) {
	m := newTestModel(t, newFakeAPI(), &fakeAuth{value: true})
	m, _ = press(m, "e")
	require.Equal(t, screenEditor, m.screen)

	next, _ := m.Update(authChangedMsg{authenticated: false})
	assert.Equal(t, screenCalendar, next.(Model).screen)
}
