// Package influxdb writes the bridge's robot telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library: token auth, a ping
// on connect, and the non-blocking batched write API. Write errors arrive
// asynchronously through the SetOnError callback.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WritePoint("vacuum", tags, fields, time.Now())
package influxdb
