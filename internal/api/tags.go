package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nixstrav/mng-core/internal/tag"
)

// tagResponse wraps a registry record together with the mirror outcome.
// MirrorSynced false means the row committed but the JSON mirror rewrite
// failed; the store is authoritative and the mirror heals on resync.
type tagResponse struct {
	Tag          *tag.Tag `json:"tag"`
	LastSeen     string   `json:"last_seen,omitempty"`
	MirrorSynced bool     `json:"mirror_synced"`
}

// handleListTags returns registry records, newest first. Pass
// include_inactive=true to see deactivated tags. When the event log is
// available each record carries its last-seen timestamp.
func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"

	tags, err := s.registry.List(r.Context(), includeInactive)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	lastSeen := s.lastSeenFor(r, tags)

	type listEntry struct {
		tag.Tag
		LastSeen string `json:"last_seen,omitempty"`
	}
	entries := make([]listEntry, 0, len(tags))
	for _, t := range tags {
		entries = append(entries, listEntry{Tag: t, LastSeen: lastSeen[t.EPC]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tags":  entries,
		"count": len(entries),
	})
}

// handleGetTag returns a single registry record by EPC. The EPC in the URL
// is normalized first, so the raw scan form works too.
func (s *Server) handleGetTag(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Get(r.Context(), chi.URLParam(r, "epc"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var lastSeen string
	if s.events != nil {
		seen, err := s.events.LastSeenForTags(r.Context(), []string{t.EPC})
		if err != nil {
			s.logger.Warn("last-seen lookup failed", "epc", t.EPC, "error", err)
		} else {
			lastSeen = seen[t.EPC]
		}
	}

	writeJSON(w, http.StatusOK, tagResponse{Tag: t, LastSeen: lastSeen, MirrorSynced: true})
}

// handleCreateTag registers a new tag.
func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tag.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	t, err := s.registry.Create(r.Context(), req, s.actorFrom(r))
	if err != nil && !errors.Is(err, tag.ErrMirrorSync) {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tagResponse{Tag: t, MirrorSynced: err == nil})
}

// handleUpdateTag applies a partial update to a tag. Absent fields stay
// untouched; explicit empty strings clear room number and notes.
func (s *Server) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tag.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	t, err := s.registry.Update(r.Context(), chi.URLParam(r, "epc"), req, s.actorFrom(r))
	if err != nil && !errors.Is(err, tag.ErrMirrorSync) {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tagResponse{Tag: t, MirrorSynced: err == nil})
}

// handleDeactivateTag retires a tag. The row and its alias stay reserved;
// nothing is physically deleted.
func (s *Server) handleDeactivateTag(w http.ResponseWriter, r *http.Request) {
	err := s.registry.Deactivate(r.Context(), chi.URLParam(r, "epc"), s.actorFrom(r))
	if err != nil && !errors.Is(err, tag.ErrMirrorSync) {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deactivated":   true,
		"mirror_synced": err == nil,
	})
}

// handleSuggestAlias proposes a free alias from the requested pool.
func (s *Server) handleSuggestAlias(w http.ResponseWriter, r *http.Request) {
	alias, err := s.registry.SuggestAlias(r.Context(), r.URL.Query().Get("group"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"alias": alias})
}

// handleResyncMirror rewrites the JSON mirror from the store. Admin-only
// repair action for a mirror that drifted after write failures.
func (s *Server) handleResyncMirror(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Resync(r.Context()); err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"resynced": true})
}

// handleTagEvents returns recent bridge reads for one tag.
func (s *Server) handleTagEvents(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Get(r.Context(), chi.URLParam(r, "epc"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if s.events == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{}, "count": 0})
		return
	}

	evs, err := s.events.ForTag(r.Context(), t.EPC, 50)
	if err != nil {
		s.logger.Error("tag events query failed", "epc", t.EPC, "error", err)
		writeInternalError(w, "failed to query events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": evs, "count": len(evs)})
}

// actorFrom builds the audit actor for the calling session.
func (s *Server) actorFrom(r *http.Request) tag.Actor {
	actor := tag.Actor{Origin: remoteIP(r)}
	if sess := sessionFromContext(r.Context()); sess != nil {
		actor.Username = sess.Username
	}
	return actor
}

// lastSeenFor resolves last-seen timestamps for a tag listing.
// Returns an empty map when the event log is unavailable.
func (s *Server) lastSeenFor(r *http.Request, tags []tag.Tag) map[string]string {
	if s.events == nil || len(tags) == 0 {
		return map[string]string{}
	}

	epcs := make([]string, 0, len(tags))
	for _, t := range tags {
		epcs = append(epcs, t.EPC)
	}

	seen, err := s.events.LastSeenForTags(r.Context(), epcs)
	if err != nil {
		s.logger.Warn("last-seen lookup failed", "error", err)
		return map[string]string{}
	}
	return seen
}
