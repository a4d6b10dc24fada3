// Package telemetry records device activity as time-series data.
//
// A Recorder subscribes to hub events and translates them into
// InfluxDB writes:
//
//   - pong envelopes become liveness points (uptime, rssi)
//   - state envelopes become device_state points
//   - online/offline transitions become availability points
//
// Writes go through the batching influxdb.Client, so recording an
// event is an in-memory append; the recorder never blocks the hub's
// receiver goroutine.
package telemetry
