package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout for the nixstrav bus:
//
//	nixstrav/bridge/<node_id>/heartbeat   node + reader heartbeat (JSON)
//	nixstrav/bridge/<node_id>/read        one tag read (JSON)
//	nixstrav/system/status                console online/offline (retained)
//
// The node_id segment is the bridge host's identifier; wildcards subscribe
// across every node.
const topicPrefix = "nixstrav"

// Topics builds bus topic strings. The zero value is ready to use.
type Topics struct{}

// Heartbeat returns the heartbeat topic for one node.
func (Topics) Heartbeat(nodeID string) string {
	return fmt.Sprintf("%s/bridge/%s/heartbeat", topicPrefix, nodeID)
}

// AllHeartbeats matches heartbeats from every node.
func (Topics) AllHeartbeats() string {
	return topicPrefix + "/bridge/+/heartbeat"
}

// Read returns the tag-read topic for one node.
func (Topics) Read(nodeID string) string {
	return fmt.Sprintf("%s/bridge/%s/read", topicPrefix, nodeID)
}

// AllReads matches tag reads from every node.
func (Topics) AllReads() string {
	return topicPrefix + "/bridge/+/read"
}

// SystemStatus is the console's own online/offline announcement topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// NodeID extracts the node segment from a bridge topic, or "" when the
// topic does not follow the bridge layout.
func NodeID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != topicPrefix || parts[1] != "bridge" {
		return ""
	}
	if parts[3] != "heartbeat" && parts[3] != "read" {
		return ""
	}
	return parts[2]
}
