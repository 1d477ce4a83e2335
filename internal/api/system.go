package api

import (
	"net/http"
	"time"

	"github.com/nixstrav/mng-core/internal/sysmon"
)

// thresholds builds the presence cutoffs from config.
func (s *Server) thresholds() sysmon.Thresholds {
	return sysmon.Thresholds{
		WarnAfter:    time.Duration(s.readers.WarnAfterSec) * time.Second,
		OfflineAfter: time.Duration(s.readers.OfflineAfterSec) * time.Second,
	}
}

// handleSystemNodes returns every known bridge node with presence state.
func (s *Server) handleSystemNodes(w http.ResponseWriter, r *http.Request) {
	if s.sysmon == nil {
		writeJSON(w, http.StatusOK, map[string]any{"nodes": []any{}, "count": 0})
		return
	}

	nodes, err := s.sysmon.Nodes(r.Context(), s.thresholds(), time.Now())
	if err != nil {
		s.logger.Error("nodes query failed", "error", err)
		writeInternalError(w, "failed to query nodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

// handleSystemReaders returns every known reader with presence state and,
// when the event log is available, its read totals.
func (s *Server) handleSystemReaders(w http.ResponseWriter, r *http.Request) {
	if s.sysmon == nil {
		writeJSON(w, http.StatusOK, map[string]any{"readers": []any{}, "count": 0})
		return
	}

	readers, err := s.sysmon.Readers(r.Context(), s.thresholds(), time.Now())
	if err != nil {
		s.logger.Error("readers query failed", "error", err)
		writeInternalError(w, "failed to query readers")
		return
	}

	summaries := map[string]any{}
	if s.events != nil {
		sums, err := s.events.ReaderSummaries(r.Context())
		if err != nil {
			s.logger.Warn("reader summaries failed", "error", err)
		} else {
			for _, sum := range sums {
				summaries[sum.ReaderID] = sum
			}
		}
	}

	type readerEntry struct {
		sysmon.Reader
		Summary any `json:"summary,omitempty"`
	}
	entries := make([]readerEntry, 0, len(readers))
	for _, rd := range readers {
		entries = append(entries, readerEntry{Reader: rd, Summary: summaries[rd.ReaderID]})
	}

	writeJSON(w, http.StatusOK, map[string]any{"readers": entries, "count": len(entries)})
}

// handleSystemProblems aggregates everything that needs attention: readers
// not in the ok state, recent relay or unknown-tag errors, and unknown
// EPCs awaiting registration.
func (s *Server) handleSystemProblems(w http.ResponseWriter, r *http.Request) {
	var degraded []sysmon.Reader
	if s.sysmon != nil {
		readers, err := s.sysmon.Readers(r.Context(), s.thresholds(), time.Now())
		if err != nil {
			s.logger.Error("readers query failed", "error", err)
			writeInternalError(w, "failed to query readers")
			return
		}
		for _, rd := range readers {
			if rd.Presence != sysmon.PresenceOK {
				degraded = append(degraded, rd)
			}
		}
	}
	if degraded == nil {
		degraded = []sysmon.Reader{}
	}

	repo := s.eventsRepo()
	recentErrors, err := repo.RecentErrors(r.Context(), 20)
	if err != nil {
		s.logger.Error("recent errors query failed", "error", err)
		writeInternalError(w, "failed to query errors")
		return
	}

	unknown, err := repo.UnknownTags(r.Context(), 20)
	if err != nil {
		s.logger.Error("unknown tags query failed", "error", err)
		writeInternalError(w, "failed to query unknown tags")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"degraded_readers": degraded,
		"recent_errors":    recentErrors,
		"unknown_tags":     unknown,
	})
}
