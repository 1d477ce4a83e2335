// Package influxdb provides InfluxDB connectivity for the nixstrav console.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// Time-series storage for:
//   - Tag read telemetry (which reader saw which tag, and whether it fired)
//   - Reader presence transitions
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteTagRead("rdr-entry", "gate-01", "E2000017221101441890F1AB", true)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched and sent
// asynchronously; failures surface through the SetOnError callback.
package influxdb
