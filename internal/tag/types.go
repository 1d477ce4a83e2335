package tag

import (
	"errors"
	"time"
)

// Status is a tag's lifecycle state. Deactivated tags keep their row and
// their alias; nothing is ever physically deleted.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a defined status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Tag is the canonical registry record, keyed by normalized EPC.
type Tag struct {
	EPC        string     `json:"epc"`
	Alias      string     `json:"alias"`
	AliasGroup AliasGroup `json:"alias_group,omitempty"`
	RoomNumber string     `json:"room_number,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

var (
	// ErrInvalidEPC means normalization found no usable hex identifier
	// in the raw input.
	ErrInvalidEPC = errors.New("no valid EPC in input")

	// ErrDuplicateEPC means a tag with the normalized identifier already
	// exists.
	ErrDuplicateEPC = errors.New("tag already registered")

	// ErrAliasConflict means the requested alias is already held by
	// another tag, active or inactive.
	ErrAliasConflict = errors.New("alias already in use")

	ErrNotFound          = errors.New("tag not found")
	ErrInvalidAliasGroup = errors.New("unknown alias group")
	ErrInvalidStatus     = errors.New("invalid tag status")

	// ErrMirrorSync means the store committed but the mirror rewrite
	// failed. The store is authoritative; the mirror heals on the next
	// successful mutation or an explicit resync.
	ErrMirrorSync = errors.New("mirror rewrite failed")
)
