package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
)

// Authenticator runs the login flow: throttle check, credential
// verification, throttle bookkeeping and last-login update. Session
// creation is the caller's job so the flow stays transport-agnostic.
type Authenticator struct {
	users    UserRepository
	throttle *Throttle
	logger   *logging.Logger
}

// NewAuthenticator wires the login flow together.
func NewAuthenticator(users UserRepository, throttle *Throttle, logger *logging.Logger) *Authenticator {
	return &Authenticator{
		users:    users,
		throttle: throttle,
		logger:   logger,
	}
}

// dummyHash is verified against when the username is unknown so the
// request still pays the Argon2id cost. Without it, response timing would
// reveal which usernames exist.
var dummyHash = sync.OnceValue(func() string {
	h, err := HashPassword("nixstrav-dummy-credential")
	if err != nil {
		// rand.Read failing means the process has no entropy source;
		// nothing sensible runs in that state.
		panic(fmt.Sprintf("auth: generating dummy hash: %v", err))
	}
	return h
})

// Authenticate verifies a username/password pair from the given origin
// (client address). On success the throttle window is cleared and the
// user's last_login_at is stamped. Unknown users, wrong passwords and
// inactive accounts all return ErrInvalidCredentials and all count as
// throttle failures.
func (a *Authenticator) Authenticate(ctx context.Context, username, password, origin string) (*User, error) {
	username = NormalizeUsername(username)

	if locked, remaining := a.throttle.IsLocked(username, origin); locked {
		a.logger.Warn("login blocked by throttle",
			"username", username, "origin", origin, "retry_in", remaining.Round(time.Second).String())
		return nil, ErrLockedOut
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if err == ErrUserNotFound {
			// Burn the same hash cost as a real verification.
			_, _ = VerifyPassword(password, dummyHash()) //nolint:errcheck // result deliberately ignored
			a.registerFailure(username, origin, "unknown user")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		a.registerFailure(username, origin, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		a.registerFailure(username, origin, "inactive account")
		return nil, ErrInvalidCredentials
	}

	a.throttle.RegisterSuccess(username, origin)

	if NeedsRehash(user.PasswordHash) {
		if newHash, hashErr := HashPassword(password); hashErr == nil {
			if upErr := a.users.UpdatePassword(ctx, user.ID, newHash); upErr != nil {
				a.logger.Warn("rehashing legacy password failed", "user_id", user.ID, "error", upErr)
			} else {
				user.PasswordHash = newHash
			}
		}
	}

	now := time.Now().UTC()
	if err := a.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds; the stamp is advisory.
		a.logger.Warn("updating last login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	a.logger.Info("login succeeded", "username", user.Username, "role", string(user.Role), "origin", origin)
	return user, nil
}

func (a *Authenticator) registerFailure(username, origin, reason string) {
	locked := a.throttle.RegisterFailure(username, origin)
	a.logger.Warn("login failed",
		"username", username, "origin", origin, "reason", reason, "locked_out", locked)
}
