package sysmon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nixstrav/mng-core/internal/infrastructure/logging"
	"github.com/nixstrav/mng-core/internal/infrastructure/mqtt"
)

// ReadEvent is the payload a bridge node publishes on its read topic.
type ReadEvent struct {
	NodeID   string `json:"node_id,omitempty"`
	ReaderID string `json:"reader_id"`
	EPC      string `json:"epc"`
	Alias    string `json:"alias,omitempty"`
	Fired    bool   `json:"fired"`
	Reason   string `json:"reason,omitempty"`
	ReadAt   string `json:"read_at,omitempty"`
}

// Consumer subscribes to bridge heartbeat and read topics and keeps the
// node/reader tables current. Reads are additionally fanned out to OnRead
// when set, for live streaming.
type Consumer struct {
	repo   *Repository
	client *mqtt.Client
	logger *logging.Logger
	qos    byte
	topics mqtt.Topics

	// Thresholds classifies a node's presence before each heartbeat, so
	// OnPresence only fires on a transition back into ok.
	Thresholds Thresholds

	// OnRead and OnHeartbeat, when non-nil, receive every parsed event.
	// OnPresence receives one call per reported reader when a heartbeat
	// brings its node out of warn/offline/unknown. Set before Start; not
	// safe to change afterwards.
	OnRead      func(ReadEvent)
	OnHeartbeat func(Heartbeat)
	OnPresence  func(readerID, nodeID string, status Presence)
}

// NewConsumer creates a consumer bound to the given broker client.
func NewConsumer(repo *Repository, client *mqtt.Client, qos byte, logger *logging.Logger) *Consumer {
	return &Consumer{
		repo:   repo,
		client: client,
		logger: logger,
		qos:    qos,
	}
}

// Start subscribes to the heartbeat and read wildcards. The subscriptions
// survive reconnects; they are dropped when the client closes.
func (c *Consumer) Start() error {
	if err := c.client.Subscribe(c.topics.AllHeartbeats(), c.qos, c.handleHeartbeat); err != nil {
		return fmt.Errorf("subscribing to heartbeats: %w", err)
	}
	if err := c.client.Subscribe(c.topics.AllReads(), c.qos, c.handleRead); err != nil {
		return fmt.Errorf("subscribing to reads: %w", err)
	}
	return nil
}

func (c *Consumer) handleHeartbeat(topic string, payload []byte) error {
	var hb Heartbeat
	if err := json.Unmarshal(payload, &hb); err != nil {
		return fmt.Errorf("decoding heartbeat on %s: %w", topic, err)
	}
	if hb.NodeID == "" {
		hb.NodeID = mqtt.NodeID(topic)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now()
	prev, err := c.repo.ApplyHeartbeat(ctx, hb, now)
	if err != nil {
		return fmt.Errorf("applying heartbeat from %s: %w", hb.NodeID, err)
	}

	c.logger.Debug("heartbeat applied", "node_id", hb.NodeID, "readers", len(hb.Readers))

	if c.OnPresence != nil && c.Thresholds.Classify(prev, now) != PresenceOK {
		for _, reader := range hb.Readers {
			if reader.ReaderID != "" {
				c.OnPresence(reader.ReaderID, hb.NodeID, PresenceOK)
			}
		}
	}

	if c.OnHeartbeat != nil {
		c.OnHeartbeat(hb)
	}
	return nil
}

func (c *Consumer) handleRead(topic string, payload []byte) error {
	var ev ReadEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decoding read on %s: %w", topic, err)
	}
	if ev.NodeID == "" {
		ev.NodeID = mqtt.NodeID(topic)
	}

	if ev.ReaderID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.repo.MarkReaderRead(ctx, ev.ReaderID, ev.NodeID, time.Now()); err != nil {
			c.logger.Warn("failed to stamp reader read", "reader_id", ev.ReaderID, "error", err)
		}
	}

	if c.OnRead != nil {
		c.OnRead(ev)
	}
	return nil
}
