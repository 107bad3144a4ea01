package utils

import (
	"fmt"
	"time"

	"learningTrackerAPI/internal/types/calendar"
)

// BuildMonth lays out the given month. today is compared by calendar date in
// its own location, so exactly one cell is flagged when today falls in the
// month. hasEntry and selected may be nil/empty.
func BuildMonth(year int, month time.Month, today time.Time, selected string, hasEntry map[string]bool) (*calendar.CalendarResponse, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("invalid year %d", year)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	todayStr := FormatDate(today)

	resp := &calendar.CalendarResponse{
		Year:          year,
		Month:         int(month),
		LeadingBlanks: int(first.Weekday()),
		Days:          make([]*calendar.CalendarDay, 0, daysInMonth),
	}

	for day := 1; day <= daysInMonth; day++ {
		date := fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
		resp.Days = append(resp.Days, &calendar.CalendarDay{
			Date:       date,
			Day:        day,
			HasEntry:   hasEntry[date],
			IsToday:    date == todayStr,
			IsSelected: date == selected,
		})
	}

	return resp, nil
}

// MonthBounds returns the first and last date of the month as YYYY-MM-DD.
func MonthBounds(year int, month time.Month) (string, string) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return FormatDate(first), FormatDate(last)
}

// ShiftMonth moves (year, month) by delta months.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), t.Month()
}
