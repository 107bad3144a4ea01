package handlers

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/services"
	"learningTrackerAPI/utils"
)

// mdRenderer leaves raw HTML in descriptions escaped.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var calendarPage = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"renderMarkdown": renderMarkdown,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Learning Tracker</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 720px; margin: 0 auto; padding: 20px; line-height: 1.6; }
        table { border-collapse: collapse; width: 100%; }
        th, td { text-align: center; padding: 8px; }
        td a { text-decoration: none; color: inherit; display: block; }
        .today { font-weight: bold; outline: 2px solid #4f46e5; }
        .has-entry { background: #e0e7ff; }
        .selected { background: #4f46e5; color: #fff; }
        nav { display: flex; justify-content: space-between; margin-bottom: 12px; }
        .entry { margin-top: 24px; padding: 16px; border-left: 4px solid #4f46e5; background: #f9fafb; }
    </style>
</head>
<body>
    <nav>
        <a href="/?year={{.PrevYear}}&month={{.PrevMonth}}">&larr; Prev</a>
        <h1>{{.Title}}</h1>
        <a href="/?year={{.NextYear}}&month={{.NextMonth}}">Next &rarr;</a>
    </nav>
    <table>
        <thead><tr><th>Sun</th><th>Mon</th><th>Tue</th><th>Wed</th><th>Thu</th><th>Fri</th><th>Sat</th></tr></thead>
        <tbody>
        {{range .Weeks}}<tr>{{range .}}{{if .}}<td class="{{if .IsToday}}today {{end}}{{if .HasEntry}}has-entry {{end}}{{if .IsSelected}}selected{{end}}"><a href="/?year={{$.Year}}&month={{$.Month}}&date={{.Date}}">{{.Day}}</a></td>{{else}}<td></td>{{end}}{{end}}</tr>
        {{end}}
        </tbody>
    </table>
    {{if .Selected}}
    <div class="entry">
        <h2>{{.Selected}}</h2>
        {{renderMarkdown .Description}}
    </div>
    {{end}}
</body>
</html>
`))

type calendarPageData struct {
	Title               string
	Year, Month         int
	PrevYear, PrevMonth int
	NextYear, NextMonth int
	Weeks               [][]*calendar.CalendarDay
	Selected            string
	Description         string
}

// CalendarPageHandler serves the read-only HTML month view.
type CalendarPageHandler struct {
	entryService *services.EntryService
	log          logger.Logger
}

func NewCalendarPageHandler(entryService *services.EntryService, log logger.Logger) *CalendarPageHandler {
	return &CalendarPageHandler{
		entryService: entryService,
		log:          log.Named("calendar_page"),
	}
}

func (h *CalendarPageHandler) ServeCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}
	selected := r.URL.Query().Get("date")

	grid, err := h.entryService.Month(ctx, year, month, selected)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Message, http.StatusBadRequest)
			return
		}
		h.log.Errorw("failed to build month", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := calendarPageData{
		Title: time.Month(grid.Month).String() + " " + strconv.Itoa(grid.Year),
		Year:  grid.Year,
		Month: grid.Month,
		Weeks: grid.Weeks(),
	}
	py, pm := utils.ShiftMonth(grid.Year, time.Month(grid.Month), -1)
	ny, nm := utils.ShiftMonth(grid.Year, time.Month(grid.Month), 1)
	data.PrevYear, data.PrevMonth = py, int(pm)
	data.NextYear, data.NextMonth = ny, int(nm)

	if selected != "" {
		e, err := h.entryService.GetByDate(ctx, selected)
		switch {
		case err == nil:
			data.Selected, data.Description = e.Date, e.Description
		case errors.Is(err, store.ErrNotFound):
			data.Selected, data.Description = selected, NoEntryPlaceholder
		default:
			h.log.Warnw("failed to load entry", "date", selected, "err", err)
			data.Selected, data.Description = selected, NoEntryPlaceholder
		}
	}

	var buf bytes.Buffer
	if err := calendarPage.Execute(&buf, data); err != nil {
		h.log.Errorw("failed to render calendar", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
