package sysmon

import "time"

// Presence is the heuristic health state derived from last-seen age.
type Presence string

const (
	PresenceOK      Presence = "ok"
	PresenceWarn    Presence = "warn"
	PresenceOffline Presence = "offline"
	PresenceUnknown Presence = "unknown"
)

// Node is one bridge host.
type Node struct {
	NodeID   string         `json:"node_id"`
	Hostname string         `json:"hostname,omitempty"`
	IP       string         `json:"ip,omitempty"`
	LastSeen *time.Time     `json:"last_seen,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	Presence Presence       `json:"presence"`
}

// Reader is one RFID reader attached to a node.
type Reader struct {
	ReaderID   string         `json:"reader_id"`
	NodeID     string         `json:"node_id,omitempty"`
	Type       string         `json:"type,omitempty"`
	Conn       string         `json:"conn,omitempty"`
	LastSeen   *time.Time     `json:"last_seen,omitempty"`
	LastReadAt *time.Time     `json:"last_read_at,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
	Presence   Presence       `json:"presence"`
}

// Heartbeat is the payload a bridge node publishes periodically.
type Heartbeat struct {
	NodeID   string            `json:"node_id"`
	Hostname string            `json:"hostname,omitempty"`
	IP       string            `json:"ip,omitempty"`
	Meta     map[string]any    `json:"meta,omitempty"`
	Readers  []HeartbeatReader `json:"readers,omitempty"`
}

// HeartbeatReader is one reader's entry inside a heartbeat.
type HeartbeatReader struct {
	ReaderID   string         `json:"reader_id"`
	Type       string         `json:"type,omitempty"`
	Conn       string         `json:"conn,omitempty"`
	LastReadAt string         `json:"last_read_at,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Thresholds hold the presence heuristic cutoffs.
type Thresholds struct {
	WarnAfter    time.Duration
	OfflineAfter time.Duration
}

// Classify maps a last-seen timestamp to a presence state. A nil
// timestamp means the entity never reported and is unknown, not offline.
func (t Thresholds) Classify(lastSeen *time.Time, now time.Time) Presence {
	if lastSeen == nil {
		return PresenceUnknown
	}
	age := now.Sub(*lastSeen)
	switch {
	case age < t.WarnAfter:
		return PresenceOK
	case age < t.OfflineAfter:
		return PresenceWarn
	default:
		return PresenceOffline
	}
}
