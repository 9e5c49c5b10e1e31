package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint queues a point. The write is non-blocking; data is batched
// and sent asynchronously. Dropped silently when not connected.
//
// Example:
//
//	client.WritePoint("vacuum",
//	    map[string]string{"device_id": "JH1-EU-ABC1234A", "lifecycle": "FULL_CLEAN_RUNNING"},
//	    map[string]any{"battery_level": 73, "cleaning": true},
//	    time.Now())
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
