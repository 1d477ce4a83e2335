// Package mqtt wraps paho.mqtt.golang for the reader-bridge bus.
//
// The bridge publishes heartbeats and tag reads under nixstrav/bridge/...;
// the console subscribes to feed the reader presence registry and the live
// event stream. The wrapper adds connection management, automatic
// re-subscription on reconnect, panic-safe handler dispatch and a Last
// Will announcement so the bridge can tell when the console drops off.
//
// All methods are safe for concurrent use from multiple goroutines.
package mqtt
