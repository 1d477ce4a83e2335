package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Role is a user's authorisation tier. Roles form a strict hierarchy and
// access checks compare ranks, so an admin passes every operator check.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Rank returns the role's position in the hierarchy. Unknown roles rank 0
// and therefore fail every access check.
func (r Role) Rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether r grants at least the capabilities of min.
func (r Role) AtLeast(min Role) bool {
	return r.Rank() > 0 && r.Rank() >= min.Rank()
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// ParseRole converts a string to a Role, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// User is an operator account. PasswordHash is the encoded hash, never the
// plaintext. Inactive users keep their row (audit trails reference them)
// but cannot authenticate.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

var (
	// ErrInvalidCredentials covers unknown username, wrong password and
	// inactive account alike, so a caller cannot probe which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrLockedOut is returned when the login throttle has locked the
	// (username, origin) pair.
	ErrLockedOut = errors.New("too many failed attempts")

	// ErrUnauthenticated is returned when no valid session accompanies a
	// request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden is returned when the session's role ranks below the
	// required role.
	ErrForbidden = errors.New("insufficient role")

	// ErrForgeryRejected is returned when a mutating request carries a
	// missing or mismatched CSRF token.
	ErrForgeryRejected = errors.New("csrf token rejected")

	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameExists = errors.New("username already exists")
	ErrInvalidRole    = errors.New("invalid role")
	ErrUsernameFormat = errors.New("invalid username format")
	ErrWeakPassword   = errors.New("password too short")
)

// usernamePattern allows lowercase handles in the style of unix logins.
var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_.-]{2,31}$`)

// NormalizeUsername lowercases and trims a username so lookups and
// throttle keys are case-insensitive.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername checks the normalized form against the allowed pattern.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(NormalizeUsername(username)) {
		return ErrUsernameFormat
	}
	return nil
}

// MinPasswordLength is enforced on creation and password change, never on
// login, so legacy accounts can still sign in and be migrated.
const MinPasswordLength = 8

// ValidatePassword checks plaintext password policy for new passwords.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
