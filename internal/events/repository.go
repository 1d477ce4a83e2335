package events

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Event is one read reported by the bridge. TSClient is the reader's own
// clock, ReceivedAt the bridge's; ReceivedAt orders everything.
type Event struct {
	ID         int64  `json:"id"`
	ReaderID   string `json:"reader_id"`
	Tag        string `json:"tag"`
	TSClient   string `json:"ts_client,omitempty"`
	ReceivedAt string `json:"received_at"`
	SourceIP   string `json:"source_ip,omitempty"`
	Fired      bool   `json:"fired"`
	Reason     string `json:"reason,omitempty"`
}

// Filter narrows event listings. Zero values mean no constraint.
type Filter struct {
	From     string // inclusive lower bound on received_at
	To       string // inclusive upper bound on received_at
	ReaderID string
	Reason   string
	Tag      string
	Page     int // 1-based
	PageSize int // default 50, max 200
}

// ReaderSummary aggregates a reader's event history.
type ReaderSummary struct {
	ReaderID   string `json:"reader_id"`
	LastEvent  string `json:"last_event"`
	FiredCount int    `json:"fired_count"`
	Total      int    `json:"total"`
}

// UnknownTag is an EPC the bridge saw but the registry does not know.
type UnknownTag struct {
	Tag      string `json:"tag"`
	Count    int    `json:"count"`
	LastSeen string `json:"last_seen"`
}

// errorReasons are the event reasons surfaced on the problems panel.
var errorReasons = []string{"relay_error", "unknown_tag"}

// Repository serves read-only queries against the bridge's event store.
// A nil inner handle (events DB absent at startup) makes every query
// return empty results.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an already-opened read-only handle. db may be nil.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Available reports whether an events database is attached.
func (r *Repository) Available() bool {
	return r.db != nil
}

// List returns events matching the filter, newest first, with the total
// match count for pagination.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Event, int, error) {
	if r.db == nil {
		return []Event{}, 0, nil
	}

	var conditions []string
	var args []any
	if filter.From != "" {
		conditions = append(conditions, "received_at >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "received_at <= ?")
		args = append(args, filter.To)
	}
	if filter.ReaderID != "" {
		conditions = append(conditions, "reader_id = ?")
		args = append(args, filter.ReaderID)
	}
	if filter.Reason != "" {
		conditions = append(conditions, "reason = ?")
		args = append(args, filter.Reason)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "tag = ?")
		args = append(args, filter.Tag)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 { //nolint:mnd // max page size for event queries
		pageSize = 200
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, reader_id, tag, ts_client, received_at, source_ip, fired, reason
		 FROM events %s ORDER BY received_at DESC LIMIT ? OFFSET ?`, where)
	args = append(args, pageSize, offset)

	evs, err := r.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return evs, total, nil
}

// ForTag returns the latest events for one normalized EPC.
func (r *Repository) ForTag(ctx context.Context, tag string, limit int) ([]Event, error) {
	if r.db == nil {
		return []Event{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return r.queryEvents(ctx,
		`SELECT id, reader_id, tag, ts_client, received_at, source_ip, fired, reason
		 FROM events WHERE tag = ? ORDER BY received_at DESC LIMIT ?`, tag, limit)
}

// LastSeenForTags maps each given EPC to its most recent received_at.
// Tags never seen are absent from the result.
func (r *Repository) LastSeenForTags(ctx context.Context, tags []string) (map[string]string, error) {
	if r.db == nil || len(tags) == 0 {
		return map[string]string{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	query := fmt.Sprintf( //nolint:gosec // placeholder list only, values bound separately
		"SELECT tag, MAX(received_at) FROM events WHERE tag IN (%s) GROUP BY tag", placeholders)

	args := make([]any, len(tags))
	for i, t := range tags {
		args[i] = t
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying last seen: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]string)
	for rows.Next() {
		var tag string
		var last sql.NullString
		if err := rows.Scan(&tag, &last); err != nil {
			return nil, fmt.Errorf("scanning last seen: %w", err)
		}
		if last.Valid {
			seen[tag] = last.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating last seen: %w", err)
	}
	return seen, nil
}

// ReaderSummaries aggregates per-reader totals and last activity.
func (r *Repository) ReaderSummaries(ctx context.Context) ([]ReaderSummary, error) {
	if r.db == nil {
		return []ReaderSummary{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT reader_id,
		        MAX(received_at),
		        SUM(CASE WHEN fired = 1 THEN 1 ELSE 0 END),
		        COUNT(*)
		 FROM events GROUP BY reader_id`)
	if err != nil {
		return nil, fmt.Errorf("querying reader summaries: %w", err)
	}
	defer rows.Close()

	var summaries []ReaderSummary
	for rows.Next() {
		var s ReaderSummary
		var readerID, lastEvent sql.NullString
		if err := rows.Scan(&readerID, &lastEvent, &s.FiredCount, &s.Total); err != nil {
			return nil, fmt.Errorf("scanning reader summary: %w", err)
		}
		s.ReaderID = readerID.String
		s.LastEvent = lastEvent.String
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reader summaries: %w", err)
	}

	if summaries == nil {
		summaries = []ReaderSummary{}
	}
	return summaries, nil
}

// RecentErrors returns the latest relay_error and unknown_tag events.
func (r *Repository) RecentErrors(ctx context.Context, limit int) ([]Event, error) {
	if r.db == nil {
		return []Event{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(errorReasons)), ",")
	query := fmt.Sprintf( //nolint:gosec // placeholder list only, values bound separately
		`SELECT id, reader_id, tag, ts_client, received_at, source_ip, fired, reason
		 FROM events WHERE reason IN (%s) ORDER BY received_at DESC LIMIT ?`, placeholders)

	args := make([]any, 0, len(errorReasons)+1)
	for _, reason := range errorReasons {
		args = append(args, reason)
	}
	args = append(args, limit)

	return r.queryEvents(ctx, query, args...)
}

// UnknownTags groups unknown_tag events by EPC, most recently seen first.
// This is the feed for the "register this tag?" workflow.
func (r *Repository) UnknownTags(ctx context.Context, limit int) ([]UnknownTag, error) {
	if r.db == nil {
		return []UnknownTag{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT tag, COUNT(*), MAX(received_at)
		 FROM events WHERE reason = 'unknown_tag'
		 GROUP BY tag ORDER BY MAX(received_at) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unknown tags: %w", err)
	}
	defer rows.Close()

	var unknown []UnknownTag
	for rows.Next() {
		var u UnknownTag
		var tag, lastSeen sql.NullString
		if err := rows.Scan(&tag, &u.Count, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning unknown tag: %w", err)
		}
		u.Tag = tag.String
		u.LastSeen = lastSeen.String
		unknown = append(unknown, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unknown tags: %w", err)
	}

	if unknown == nil {
		unknown = []UnknownTag{}
	}
	return unknown, nil
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var evs []Event
	for rows.Next() {
		var e Event
		var readerID, tag, tsClient, receivedAt, sourceIP, reason sql.NullString
		var fired sql.NullInt64
		if err := rows.Scan(&e.ID, &readerID, &tag, &tsClient, &receivedAt, &sourceIP, &fired, &reason); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.ReaderID = readerID.String
		e.Tag = tag.String
		e.TSClient = tsClient.String
		e.ReceivedAt = receivedAt.String
		e.SourceIP = sourceIP.String
		e.Fired = fired.Int64 == 1
		e.Reason = reason.String
		evs = append(evs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if evs == nil {
		evs = []Event{}
	}
	return evs, nil
}
