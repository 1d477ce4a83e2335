package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nixstrav/mng-core/internal/audit"
	"github.com/nixstrav/mng-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResponse describes the logged-in caller. Returned by login and /auth/me.
type sessionResponse struct {
	Username  string    `json:"username"`
	Role      auth.Role `json:"role"`
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt string    `json:"expires_at"`
}

// handleLogin authenticates a user and issues a session cookie.
//
// The cookie carries an opaque session ID wrapped in a signed token; the
// response body carries the per-session CSRF token the console must echo
// on every mutating request.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	origin := remoteIP(r)

	user, err := s.authn.Authenticate(r.Context(), req.Username, req.Password, origin)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordAudit(r, "", audit.ActionLoginFailed, "session", auth.NormalizeUsername(req.Username), nil, nil)
		}
		s.writeDomainError(w, err)
		return
	}

	// A session the client presented at login time dies here. A cookie
	// planted before authentication must not stay usable afterwards.
	if prior, resolveErr := s.resolveSession(r); resolveErr == nil {
		s.sessions.Invalidate(prior.ID)
	}

	sess, err := s.sessions.Create(user)
	if err != nil {
		s.logger.Error("session create failed", "error", err)
		writeInternalError(w, "failed to create session")
		return
	}

	encoded, err := s.cookies.Encode(sess.ID)
	if err != nil {
		s.sessions.Invalidate(sess.ID)
		s.logger.Error("cookie encode failed", "error", err)
		writeInternalError(w, "failed to create session")
		return
	}

	s.recordAudit(r, user.Username, audit.ActionLogin, "session", sess.ID, nil, nil)

	http.SetCookie(w, s.cookies.NewCookie(encoded))
	writeJSON(w, http.StatusOK, sessionResponse{
		Username:  sess.Username,
		Role:      sess.Role,
		CSRFToken: sess.CSRFToken,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handleLogout invalidates the session and clears the cookie.
// Always succeeds, even without a live session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.resolveSession(r); err == nil {
		s.sessions.Invalidate(sess.ID)
		s.recordAudit(r, sess.Username, audit.ActionLogout, "session", sess.ID, nil, nil)
	}

	http.SetCookie(w, s.cookies.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

// handleMe returns the calling session's identity and a fresh copy of its
// CSRF token, letting a reloaded console page recover the token without
// re-authenticating.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())

	writeJSON(w, http.StatusOK, sessionResponse{
		Username:  sess.Username,
		Role:      sess.Role,
		CSRFToken: sess.CSRFToken,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// recordAudit appends an audit entry for a request, best-effort. The
// mutation it describes already happened; a failed append is logged, not
// propagated.
func (s *Server) recordAudit(r *http.Request, username, action, entityType, entityID string, before, after map[string]any) {
	entry := &audit.Entry{
		Username:   username,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Origin:     remoteIP(r),
	}
	if err := s.audit.Record(r.Context(), entry); err != nil {
		s.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
