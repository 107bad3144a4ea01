package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/internal/types/entry"
)

// Theme holds the lipgloss colors used by the calendar views.
type Theme struct {
	Primary       lipgloss.Color
	Accent        lipgloss.Color
	Muted         lipgloss.Color
	Marker        lipgloss.Color
	Danger        lipgloss.Color
	MarkdownStyle string
}

func DefaultTheme() Theme {
	return Theme{
		Primary:       lipgloss.Color("15"),
		Accent:        lipgloss.Color("33"),
		Muted:         lipgloss.Color("241"),
		Marker:        lipgloss.Color("42"),
		Danger:        lipgloss.Color("9"),
		MarkdownStyle: "dark",
	}
}

// PlainTheme renders without colors, for pipes and tests.
func PlainTheme() Theme {
	return Theme{MarkdownStyle: "notty"}
}

func (t Theme) HeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
}

func (t Theme) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}

func (t Theme) DangerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Danger)
}

func (t Theme) BorderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(0, 1)
}

func (t Theme) dayStyle(d *calendar.CalendarDay) lipgloss.Style {
	s := lipgloss.NewStyle()
	if d.HasEntry {
		s = s.Foreground(t.Marker)
	}
	if d.IsToday {
		s = s.Bold(true).Underline(true)
	}
	if d.IsSelected {
		s = s.Reverse(true)
	}
	return s
}

// RenderMonth draws the grid as text, one week per row starting Sunday.
// Days with an entry carry a "*" marker.
func RenderMonth(cal *calendar.CalendarResponse, theme Theme) string {
	var b strings.Builder

	title := fmt.Sprintf("%s %d", time.Month(cal.Month), cal.Year)
	b.WriteString(theme.HeaderStyle().Render(fmt.Sprintf("%-28s", centre(title, 28))))
	b.WriteString("\n")
	b.WriteString(theme.HelpStyle().Render(" Su  Mo  Tu  We  Th  Fr  Sa "))
	b.WriteString("\n")

	for _, week := range cal.Weeks() {
		for _, d := range week {
			if d == nil {
				b.WriteString("    ")
				continue
			}
			marker := " "
			if d.HasEntry {
				marker = "*"
			}
			cell := fmt.Sprintf("%3d", d.Day)
			b.WriteString(theme.dayStyle(d).Render(cell))
			b.WriteString(marker)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func centre(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad/2) + s
}

// FormatEntry prints a date heading and the rendered description.
func FormatEntry(w io.Writer, date, description string, theme Theme) {
	fmt.Fprintln(w, theme.HeaderStyle().Render(date))
	fmt.Fprintln(w, RenderMarkdown(description, 80, theme.MarkdownStyle))
}

// FormatEntryList prints one line per entry, newest first.
func FormatEntryList(w io.Writer, entries []*entry.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-16s  %s\n", e.Date, e.LearningType, preview(e.Description, 60))
	}
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
