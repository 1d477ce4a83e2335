package sysmon

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists nodes and readers. Heartbeats upsert; nothing is
// deleted, a vanished node just ages into offline.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a sysmon repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ApplyHeartbeat upserts the node and every reader it reported, stamping
// last_seen with now. The whole heartbeat commits in one transaction.
// It returns the node's last_seen from before this heartbeat (nil for a
// node never seen), so callers can spot a node coming back to life.
func (r *Repository) ApplyHeartbeat(ctx context.Context, hb Heartbeat, now time.Time) (*time.Time, error) {
	if hb.NodeID == "" {
		return nil, fmt.Errorf("heartbeat missing node_id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning heartbeat apply: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var prev *time.Time
	var prevSeen sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT last_seen FROM system_nodes WHERE node_id = ?", hb.NodeID,
	).Scan(&prevSeen)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reading prior last_seen for %s: %w", hb.NodeID, err)
	}
	if prevSeen.Valid {
		prev = parseTime(prevSeen)
	}

	ts := now.UTC().Format(time.RFC3339)

	nodeMeta, err := marshalMeta(hb.Meta)
	if err != nil {
		return nil, fmt.Errorf("encoding node meta: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO system_nodes (node_id, hostname, ip, last_seen, meta_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET
		   hostname = excluded.hostname,
		   ip = excluded.ip,
		   last_seen = excluded.last_seen,
		   meta_json = COALESCE(excluded.meta_json, system_nodes.meta_json)`,
		hb.NodeID, nullString(hb.Hostname), nullString(hb.IP), ts, nodeMeta,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting node %s: %w", hb.NodeID, err)
	}

	for _, reader := range hb.Readers {
		if reader.ReaderID == "" {
			continue
		}
		readerMeta, err := marshalMeta(reader.Meta)
		if err != nil {
			return nil, fmt.Errorf("encoding reader meta: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO system_readers (reader_id, node_id, type, conn, last_seen, last_read_at, meta_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(reader_id) DO UPDATE SET
			   node_id = excluded.node_id,
			   type = COALESCE(excluded.type, system_readers.type),
			   conn = COALESCE(excluded.conn, system_readers.conn),
			   last_seen = excluded.last_seen,
			   last_read_at = COALESCE(excluded.last_read_at, system_readers.last_read_at),
			   meta_json = COALESCE(excluded.meta_json, system_readers.meta_json)`,
			reader.ReaderID, hb.NodeID, nullString(reader.Type), nullString(reader.Conn),
			ts, nullString(reader.LastReadAt), readerMeta,
		)
		if err != nil {
			return nil, fmt.Errorf("upserting reader %s: %w", reader.ReaderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing heartbeat: %w", err)
	}
	return prev, nil
}

// MarkReaderRead stamps a reader's last_read_at (and last_seen) when a tag
// read arrives, so a reader that only reads and never heartbeats still
// shows as alive.
func (r *Repository) MarkReaderRead(ctx context.Context, readerID, nodeID string, at time.Time) error {
	if readerID == "" {
		return fmt.Errorf("read missing reader_id")
	}

	ts := at.UTC().Format(time.RFC3339)

	if nodeID != "" {
		// A read can arrive before the node's first heartbeat.
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO system_nodes (node_id, last_seen) VALUES (?, ?)
			 ON CONFLICT(node_id) DO NOTHING`,
			nodeID, ts,
		)
		if err != nil {
			return fmt.Errorf("ensuring node %s: %w", nodeID, err)
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_readers (reader_id, node_id, last_seen, last_read_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(reader_id) DO UPDATE SET
		   node_id = COALESCE(excluded.node_id, system_readers.node_id),
		   last_seen = excluded.last_seen,
		   last_read_at = excluded.last_read_at`,
		readerID, nullString(nodeID), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("marking reader read: %w", err)
	}
	return nil
}

// Nodes lists every known node with presence computed against thresholds.
func (r *Repository) Nodes(ctx context.Context, th Thresholds, now time.Time) ([]Node, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT node_id, hostname, ip, last_seen, meta_json FROM system_nodes ORDER BY node_id")
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		var n Node
		var hostname, ip, lastSeen, metaJSON sql.NullString
		if err := rows.Scan(&n.NodeID, &hostname, &ip, &lastSeen, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		n.Hostname = hostname.String
		n.IP = ip.String
		n.LastSeen = parseTime(lastSeen)
		n.Meta = unmarshalMeta(metaJSON)
		n.Presence = th.Classify(n.LastSeen, now)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}

	if nodes == nil {
		nodes = []Node{}
	}
	return nodes, nil
}

// Readers lists every known reader with presence computed.
func (r *Repository) Readers(ctx context.Context, th Thresholds, now time.Time) ([]Reader, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT reader_id, node_id, type, conn, last_seen, last_read_at, meta_json
		 FROM system_readers ORDER BY reader_id`)
	if err != nil {
		return nil, fmt.Errorf("listing readers: %w", err)
	}
	defer rows.Close()

	var readers []Reader
	for rows.Next() {
		var rd Reader
		var nodeID, typ, conn, lastSeen, lastReadAt, metaJSON sql.NullString
		if err := rows.Scan(&rd.ReaderID, &nodeID, &typ, &conn, &lastSeen, &lastReadAt, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning reader: %w", err)
		}
		rd.NodeID = nodeID.String
		rd.Type = typ.String
		rd.Conn = conn.String
		rd.LastSeen = parseTime(lastSeen)
		rd.LastReadAt = parseTime(lastReadAt)
		rd.Meta = unmarshalMeta(metaJSON)
		rd.Presence = th.Classify(rd.LastSeen, now)
		readers = append(readers, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readers: %w", err)
	}

	if readers == nil {
		readers = []Reader{}
	}
	return readers, nil
}

func marshalMeta(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalMeta(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var m map[string]any
	if json.Unmarshal([]byte(s.String), &m) != nil {
		return nil
	}
	return m
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
