package utils

import (
	"fmt"
	"time"
)

// DateLayout is the only date format accepted on the wire.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into midnight of that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatDate formats t's calendar date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeDate validates s and returns its canonical YYYY-MM-DD form.
func NormalizeDate(s string) (string, error) {
	t, err := ParseDate(s, time.UTC)
	if err != nil {
		return "", err
	}
	return FormatDate(t), nil
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsFutureDate reports whether the YYYY-MM-DD date is after now's calendar date.
func IsFutureDate(date string, now time.Time) bool {
	return date > FormatDate(now)
}

// DaysElapsedInYear counts the days from January 1st through now, inclusive.
func DaysElapsedInYear(now time.Time) int {
	return now.YearDay()
}

// YearBounds returns the first and last day of now's year as YYYY-MM-DD.
func YearBounds(now time.Time) (string, string) {
	y := now.Year()
	return fmt.Sprintf("%04d-01-01", y), fmt.Sprintf("%04d-12-31", y)
}
