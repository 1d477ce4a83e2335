package api

import (
	"net/http"

	"github.com/nixstrav/mng-core/internal/events"
)

// handleListEvents returns pages of the bridge's read log. Filters come
// from query parameters: from, to, reader_id, reason, tag, page, page_size.
// An absent event log yields an empty page, not an error.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := events.Filter{
		From:     q.Get("from"),
		To:       q.Get("to"),
		ReaderID: q.Get("reader_id"),
		Reason:   q.Get("reason"),
		Tag:      q.Get("tag"),
		Page:     intParam(q.Get("page")),
		PageSize: intParam(q.Get("page_size")),
	}

	evs, total, err := s.eventsRepo().List(r.Context(), filter)
	if err != nil {
		s.logger.Error("events list failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": evs,
		"total":  total,
	})
}

// handleRecentErrors returns the latest relay and unknown-tag failures.
func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	evs, err := s.eventsRepo().RecentErrors(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.logger.Error("recent errors query failed", "error", err)
		writeInternalError(w, "failed to query errors")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"errors": evs,
		"count":  len(evs),
	})
}

// handleUnknownTags returns EPCs the bridge saw but the registry does not
// know, grouped with counts. The usual flow: scan an unknown card at a
// door, then register it from this list.
func (s *Server) handleUnknownTags(w http.ResponseWriter, r *http.Request) {
	unknown, err := s.eventsRepo().UnknownTags(r.Context(), intParam(r.URL.Query().Get("limit")))
	if err != nil {
		s.logger.Error("unknown tags query failed", "error", err)
		writeInternalError(w, "failed to query unknown tags")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"unknown": unknown,
		"count":   len(unknown),
	})
}

// eventsRepo never returns nil; a missing event DB is represented by a
// repository over a nil handle, which answers everything with empty sets.
func (s *Server) eventsRepo() *events.Repository {
	if s.events == nil {
		return events.NewRepository(nil)
	}
	return s.events
}
