// Package sysmon tracks the bridge fleet: which nodes are alive, which
// readers hang off them, and how fresh their heartbeats are. Heartbeats
// arrive over MQTT; presence is a pure function of last-seen age against
// configured warn/offline thresholds, computed at read time rather than
// stored.
package sysmon
