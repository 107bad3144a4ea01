package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/internal/store"
	"learningTrackerAPI/internal/types/entry"
	"learningTrackerAPI/internal/types/user"
	"learningTrackerAPI/middleware"
	"learningTrackerAPI/services"
)

const (
	NoEntryPlaceholder = "No Entries Yet, Go out and Learn something New!"
	noEntryForDate     = "No entry found for this date."
)

type EntryHandler struct {
	entryService *services.EntryService
	log          logger.Logger
}

func NewEntryHandler(entryService *services.EntryService, log logger.Logger) *EntryHandler {
	return &EntryHandler{
		entryService: entryService,
		log:          log.Named("entry_handler"),
	}
}

func (h *EntryHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, user.MessageResponse{Message: "Welcome to the Learning Tracker API!"})
}

// GetEntry answers 404 with a description body when the date has no entry.
func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := h.entryService.GetByDate(ctx, r.URL.Query().Get("date"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithJSON(w, http.StatusNotFound, entry.DescriptionResponse{Description: noEntryForDate})
			return
		}
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entry.DescriptionResponse{Description: e.Description})
}

// LegacyGetEntry defaults to today and always answers 200, using the
// placeholder when there is no entry.
func (h *EntryHandler) LegacyGetEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.entryService.Today()
	}

	e, err := h.entryService.GetByDate(ctx, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithJSON(w, http.StatusOK, entry.DescriptionResponse{Description: NoEntryPlaceholder})
			return
		}
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entry.DescriptionResponse{Description: e.Description})
}

func (h *EntryHandler) UpsertEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req entry.UpsertEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e, created, err := h.entryService.Upsert(ctx, &req)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	middleware.RecordEntrySaved(created)
	if u, ok := middleware.GetUser(ctx); ok {
		h.log.Infow("entry saved", "date", e.Date, "created", created, "username", u.Username)
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	respondWithJSON(w, code, e)
}

func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	entries, err := h.entryService.List(ctx, entry.Filter{
		Date:         q.Get("date"),
		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		LearningType: q.Get("learning_type"),
		Description:  q.Get("description"),
	})
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *EntryHandler) GetEntryByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := h.entryService.GetByID(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Entry not found")
			return
		}
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, e)
}

func (h *EntryHandler) Topics(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.entryService.Topics())
}

func (h *EntryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.entryService.Stats(ctx)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *EntryHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	year, month, ok := parseYearMonth(w, r)
	if !ok {
		return
	}

	resp, err := h.entryService.Month(ctx, year, month, r.URL.Query().Get("date"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

// parseYearMonth reads optional year and month query parameters. Zero means
// "current".
func parseYearMonth(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	var year, month int
	var err error

	if s := q.Get("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'year' must be a number")
			return 0, 0, false
		}
	}
	if s := q.Get("month"); s != "" {
		if month, err = strconv.Atoi(s); err != nil {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'month' must be a number")
			return 0, 0, false
		}
	}
	return year, month, true
}

func (h *EntryHandler) respondWithServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, store.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	default:
		h.log.Errorw("request failed", "err", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
