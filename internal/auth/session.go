package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

const sessionIDBytes = 32

// Session is a server-held login record. Role is a snapshot taken at login:
// demoting an account does not reach into sessions already open, which keeps
// authorisation checks lock-free against the user table.
type Session struct {
	ID        string
	UserID    string
	Username  string
	Role      Role
	CSRFToken string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its deadline.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore holds active sessions in memory. Sessions do not survive a
// process restart; users simply log in again. Expiry is lazy: expired
// entries are dropped when they are next looked up.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	now func() time.Time // injectable for tests
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create opens a fresh session for the user with a new random ID and a new
// CSRF token. The caller invalidates any session the client presented
// before logging in, so a login never re-uses pre-auth state.
func (s *SessionStore) Create(user *User) (*Session, error) {
	id, err := randomToken(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}
	csrf, err := randomToken(csrfTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating csrf token: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return sess, nil
}

// Resolve returns the session for an ID, or ErrUnauthenticated when the ID
// is unknown or the session has expired.
func (s *SessionStore) Resolve(id string) (*Session, error) {
	if id == "" {
		return nil, ErrUnauthenticated
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrUnauthenticated
	}
	if sess.Expired(s.now()) {
		s.Invalidate(id)
		return nil, ErrUnauthenticated
	}

	copy := *sess
	return &copy, nil
}

// RequireRole resolves the session and checks its role snapshot against the
// minimum. It distinguishes missing identity (ErrUnauthenticated) from
// insufficient rank (ErrForbidden) so the API layer can map them to 401
// and 403 respectively.
func (s *SessionStore) RequireRole(id string, min Role) (*Session, error) {
	sess, err := s.Resolve(id)
	if err != nil {
		return nil, err
	}
	if !sess.Role.AtLeast(min) {
		return nil, ErrForbidden
	}
	return sess, nil
}

// Invalidate removes a session. Unknown IDs are a no-op, so logout is
// idempotent.
func (s *SessionStore) Invalidate(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// InvalidateUser removes every session belonging to a user. Used when an
// account is deactivated or its password reset by an admin.
func (s *SessionStore) InvalidateUser(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len reports the number of live entries, counting expired ones not yet
// swept. Exposed for the health endpoint.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// randomToken returns n bytes of CSPRNG output, URL-safe base64 encoded.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
