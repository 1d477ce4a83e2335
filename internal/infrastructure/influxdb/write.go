package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTagRead records one tag read event.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Fired indicates whether the bridge actuated its relay for this read.
func (c *Client) WriteTagRead(readerID, nodeID, epc string, fired bool) {
	if !c.IsConnected() {
		return
	}

	firedVal := 0
	if fired {
		firedVal = 1
	}

	point := write.NewPoint(
		"tag_reads",
		map[string]string{
			"reader_id": readerID,
			"node_id":   nodeID,
		},
		map[string]interface{}{
			"epc":   epc,
			"fired": firedVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteReaderPresence records a reader presence transition
// (ok / warn / offline / unknown).
func (c *Client) WriteReaderPresence(readerID, nodeID, presence string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reader_presence",
		map[string]string{
			"reader_id": readerID,
			"node_id":   nodeID,
		},
		map[string]interface{}{
			"presence": presence,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
