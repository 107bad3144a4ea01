package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/calendar"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/utils"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError carries a message that is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type EntryService struct {
	store store.EntryStore
	log   logger.Logger
	now   func() time.Time
}

func NewEntryService(s store.EntryStore, log logger.Logger) *EntryService {
	return &EntryService{store: s, log: log.Named("entries"), now: time.Now}
}

// WithClock replaces the time source used for "today" and timestamps.
func (s *EntryService) WithClock(now func() time.Time) *EntryService {
	s.now = now
	return s
}

// Today is the server's local calendar date.
func (s *EntryService) Today() string {
	return utils.FormatDate(s.now())
}

func (s *EntryService) Topics() []string {
	return entry.Topics
}

func normalizeDate(field, date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return "", invalid("Date parameter is required.")
	}
	d, err := utils.NormalizeDate(date)
	if err != nil {
		return "", invalid("invalid %s %q: use YYYY-MM-DD", field, date)
	}
	return d, nil
}

func (s *EntryService) GetByDate(ctx context.Context, date string) (*entry.Entry, error) {
	d, err := normalizeDate("date", date)
	if err != nil {
		return nil, err
	}
	return s.store.GetEntryByDate(ctx, d)
}

func (s *EntryService) GetByID(ctx context.Context, id string) (*entry.Entry, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("invalid entry id %q", id)
	}
	return s.store.GetEntryByID(ctx, parsed)
}

// Upsert validates req and writes it, replacing any entry already stored for
// the date. created reports whether a new entry was made.
func (s *EntryService) Upsert(ctx context.Context, req *entry.UpsertEntryRequest) (*entry.Entry, bool, error) {
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Description) == "" {
		return nil, false, invalid("Date and description are required.")
	}

	date, err := normalizeDate("date", req.Date)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	if utils.IsFutureDate(date, now) {
		return nil, false, invalid("The date cannot be in the future.")
	}

	// Empty leaves the stored topic alone; the store defaults new entries to Other.
	learningType := strings.TrimSpace(req.LearningType)
	if learningType != "" && !entry.IsTopic(learningType) {
		return nil, false, invalid("invalid learning_type %q", learningType)
	}

	ts := now.UTC()
	stored, created, err := s.store.UpsertEntry(ctx, &entry.Entry{
		ID:           uuid.New(),
		Date:         date,
		LearningType: learningType,
		Description:  req.Description,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Debugw("entry saved", "date", date, "created", created)
	return stored, created, nil
}

// List returns entries matching f, newest date first.
func (s *EntryService) List(ctx context.Context, f entry.Filter) ([]*entry.Entry, error) {
	var err error
	if f.Date != "" {
		if f.Date, err = normalizeDate("date", f.Date); err != nil {
			return nil, err
		}
	}
	if f.StartDate != "" {
		if f.StartDate, err = normalizeDate("start_date", f.StartDate); err != nil {
			return nil, err
		}
	}
	if f.EndDate != "" {
		if f.EndDate, err = normalizeDate("end_date", f.EndDate); err != nil {
			return nil, err
		}
	}
	return s.store.ListEntries(ctx, f)
}

// Stats compares the entries written this year with the days elapsed so far.
func (s *EntryService) Stats(ctx context.Context) (*entry.StatsResponse, error) {
	now := s.now()
	start, end := utils.YearBounds(now)

	n, err := s.store.CountEntries(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &entry.StatsResponse{Entries: n, TotalDays: utils.DaysElapsedInYear(now)}, nil
}

// Month builds the calendar grid for year/month with entry markers. A zero
// year or month falls back to the current one; selected may be empty.
func (s *EntryService) Month(ctx context.Context, year, month int, selected string) (*calendar.CalendarResponse, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, invalid("invalid month %d", month)
	}
	if year < 1 || year > 9999 {
		return nil, invalid("invalid year %d", year)
	}
	if selected != "" {
		var err error
		if selected, err = normalizeDate("date", selected); err != nil {
			return nil, err
		}
	}

	start, end := utils.MonthBounds(year, time.Month(month))
	entries, err := s.store.ListEntries(ctx, entry.Filter{StartDate: start, EndDate: end})
	if err != nil {
		return nil, err
	}

	hasEntry := make(map[string]bool, len(entries))
	for _, e := range entries {
		hasEntry[e.Date] = true
	}
	return utils.BuildMonth(year, time.Month(month), now, selected, hasEntry)
}
