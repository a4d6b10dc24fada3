// Package influxdb provides InfluxDB connectivity for the ET-Bus hub.
//
// It wraps the official influxdb-client-go v2 library with hub-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Device liveness readings (uptime, WiFi signal strength from pongs)
//   - Online/offline availability transitions
//   - Numeric device state samples (brightness, channel levels)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "etbus",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a pong's readings
//	client.WriteLiveness("lamp1", 3600, -61)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
