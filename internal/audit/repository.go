// Package audit records who did what to which entity, with before/after
// snapshots for mutations. Entries are append-only; nothing in the system
// updates or deletes a row once written.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known actions. Handlers may record others; these are the ones the
// console filters on.
const (
	ActionLogin         = "login"
	ActionLoginFailed   = "login_failed"
	ActionLogout        = "logout"
	ActionTagCreate     = "tag_create"
	ActionTagUpdate     = "tag_update"
	ActionTagDeactivate = "tag_deactivate"
	ActionUserCreate    = "user_create"
	ActionUserUpdate    = "user_update"
	ActionMirrorSeed    = "mirror_seed"
)

// Entry is a single audit trail record. Username is empty for anonymous
// actions (a failed login for an unknown account still gets recorded).
// Before and After hold entity snapshots for mutations; either may be nil.
type Entry struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"ts"`
	Username   string         `json:"username,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	Origin     string         `json:"origin,omitempty"`
}

// Filter controls which audit entries to return.
type Filter struct {
	Action     string // optional: filter by action
	Username   string // optional: filter by acting username
	EntityType string // optional: filter by entity type (tag, user, session)
	EntityID   string // optional: filter by specific entity ID
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ListResult contains the paginated audit entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Recorder is the write-side interface handed to packages that only append.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
}

// Repository defines the full audit log interface.
type Repository interface {
	Recorder
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores audit entries in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an audit entry. The ID and Timestamp are generated if
// empty. An audit failure is returned to the caller, but callers treat the
// domain mutation as already committed; they report, not roll back.
func (r *SQLiteRepository) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = "aud-" + uuid.NewString()[:8]
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	beforeJSON, err := marshalSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("marshalling before snapshot: %w", err)
	}
	afterJSON, err := marshalSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("marshalling after snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, ts, username, action, entity_type, entity_id, before_json, after_json, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.Format(time.RFC3339),
		nullableString(entry.Username), entry.Action,
		nullableString(entry.EntityType), nullableString(entry.EntityID),
		beforeJSON, afterJSON, nullableString(entry.Origin),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

func marshalSnapshot(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns audit entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for audit queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, filter.Username)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, ts, username, action, entity_type, entity_id, before_json, after_json, origin FROM audit_log %s ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var entry Entry
	var ts string
	var username, entityType, entityID, beforeJSON, afterJSON, origin sql.NullString

	if err := rows.Scan(&entry.ID, &ts, &username, &entry.Action,
		&entityType, &entityID, &beforeJSON, &afterJSON, &origin); err != nil {
		return nil, fmt.Errorf("scanning audit entry: %w", err)
	}

	entry.Username = username.String
	entry.EntityType = entityType.String
	entry.EntityID = entityID.String
	entry.Origin = origin.String

	if beforeJSON.Valid && beforeJSON.String != "" {
		var m map[string]any
		if json.Unmarshal([]byte(beforeJSON.String), &m) == nil {
			entry.Before = m
		}
	}
	if afterJSON.Valid && afterJSON.String != "" {
		var m map[string]any
		if json.Unmarshal([]byte(afterJSON.String), &m) == nil {
			entry.After = m
		}
	}

	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return nil, fmt.Errorf("parsing audit timestamp %q: %w", ts, err)
	}
	entry.Timestamp = t

	return &entry, nil
}
