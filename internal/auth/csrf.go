package auth

import (
	"crypto/subtle"
	"net/http"
)

const csrfTokenBytes = 32

// CSRFToken returns the token bound to a session. The token is minted once
// at session creation and stays stable for the session's lifetime, so a
// page rendered early and submitted late still validates.
func (s *SessionStore) CSRFToken(sessionID string) (string, error) {
	sess, err := s.Resolve(sessionID)
	if err != nil {
		return "", err
	}
	return sess.CSRFToken, nil
}

// safeMethod reports whether an HTTP method is read-only and therefore
// exempt from CSRF checks.
func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// VerifyCSRF checks a supplied token against the session's token for a
// mutating request. Safe methods pass without a token. A missing or
// mismatched token yields ErrForgeryRejected; comparison is constant-time.
func (s *SessionStore) VerifyCSRF(sessionID, supplied, method string) error {
	if safeMethod(method) {
		return nil
	}

	sess, err := s.Resolve(sessionID)
	if err != nil {
		return err
	}
	if supplied == "" {
		return ErrForgeryRejected
	}
	if subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(supplied)) != 1 {
		return ErrForgeryRejected
	}
	return nil
}
