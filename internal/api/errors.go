package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nixstrav/mng-core/internal/auth"
	"github.com/nixstrav/mng-core/internal/tag"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeLocked       = "locked_out"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps a sentinel error from the service layers to a
// status code. Unknown errors become opaque 500s; their detail stays in
// the server log.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeUnauthorized(w, "authentication required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
	case errors.Is(err, auth.ErrForbidden):
		writeForbidden(w, "insufficient role")
	case errors.Is(err, auth.ErrForgeryRejected):
		writeForbidden(w, "request token rejected")
	case errors.Is(err, auth.ErrLockedOut):
		writeError(w, http.StatusTooManyRequests, ErrCodeLocked, "too many failed attempts, try again later")
	case errors.Is(err, tag.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, tag.ErrDuplicateEPC),
		errors.Is(err, tag.ErrAliasConflict),
		errors.Is(err, auth.ErrUsernameExists):
		writeConflict(w, err.Error())
	case errors.Is(err, tag.ErrInvalidEPC),
		errors.Is(err, tag.ErrInvalidAliasGroup),
		errors.Is(err, tag.ErrInvalidStatus),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrUsernameFormat),
		errors.Is(err, auth.ErrWeakPassword):
		writeBadRequest(w, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
