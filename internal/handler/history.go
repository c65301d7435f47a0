package handler

import (
	"net/http"
	"strconv"
	"time"

	"faceemotion/internal/dto"
	"faceemotion/internal/emotion"
	"faceemotion/internal/logger"
	"faceemotion/internal/response"
	"faceemotion/internal/service"
)

var (
	ErrJournalDisabled = response.NewError(http.StatusNotFound, "inference journal is disabled")
	ErrUnknownLabel    = response.NewError(http.StatusBadRequest, "unknown emotion label")
)

// HistoryHandler returns a page of journaled inferences, newest first.
// Query: page, limit, command, label, after, before (RFC 3339 or 2006-01-02).
func HistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journal := manager.GetJournal()
		if !journal.Enabled() {
			writeError(w, r, ErrJournalDisabled, logger)
			return
		}

		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)

		filter := &dto.HistoryFilter{
			Command: q.Get("command"),
			Label:   q.Get("label"),
			After:   parseTime(q.Get("after")),
			Before:  parseTime(q.Get("before")),
			Limit:   atoiDefault(q.Get("limit"), 0),
		}
		if filter.Label != "" && !emotion.IsLabel(filter.Label) {
			writeError(w, r, ErrUnknownLabel, logger)
			return
		}

		data, err := journal.History(filter, page)
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, data, logger)
	}
}

// HistoryStatsHandler returns the number of journaled inferences and faces per label.
func HistoryStatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		journal := manager.GetJournal()
		if !journal.Enabled() {
			writeError(w, r, ErrJournalDisabled, logger)
			return
		}

		stats, err := journal.Stats()
		if err != nil {
			writeError(w, r, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseTime accepts RFC 3339 or a plain date. Invalid input yields the zero time.
func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}
