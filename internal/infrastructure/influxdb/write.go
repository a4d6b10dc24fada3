package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteLiveness records the readings from one pong.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The responding device's id
//   - uptimeSeconds: Seconds since the device booted
//   - rssi: WiFi signal strength in dBm (negative; closer to 0 is better)
func (c *Client) WriteLiveness(deviceID string, uptimeSeconds, rssi int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"liveness",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"uptime": uptimeSeconds,
			"rssi":   rssi,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAvailability records an online/offline transition.
//
// Graphing this series shows flapping devices at a glance.
//
// Parameters:
//   - deviceID: The device that transitioned
//   - online: The new availability
func (c *Client) WriteAvailability(deviceID string, online bool) {
	if !c.IsConnected() {
		return
	}

	value := 0
	if online {
		value = 1
	}

	point := write.NewPoint(
		"availability",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteState records the numeric and boolean fields of one state
// payload. String fields are skipped; tagging on free-form strings
// would explode series cardinality.
//
// Parameters:
//   - deviceID: The device that published the state
//   - state: The state payload as decoded from the wire
func (c *Client) WriteState(deviceID string, state map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]interface{})
	for key, value := range state {
		switch v := value.(type) {
		case float64:
			fields[key] = v
		case int:
			fields[key] = float64(v)
		case bool:
			n := 0.0
			if v {
				n = 1.0
			}
			fields[key] = n
		}
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
