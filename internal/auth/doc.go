// Package auth provides authentication and authorisation for nixstrav-mng.
//
// It implements a 3-tier role model (viewer < operator < admin) with:
//   - Argon2id password hashing with a bcrypt verification fallback
//   - Server-held sessions referenced by an opaque ID in a signed cookie
//   - Per-session CSRF tokens verified on every mutating request
//   - A sliding-window login throttle keyed by (username, origin)
//
// Role checks are rank comparisons (>=), never equality, so higher roles
// inherit every lower-role capability. The session captures the role at
// login time; a later role change does not demote an open session.
package auth
