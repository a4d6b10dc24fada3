package coordinator

import (
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
)

// Device is the hub's view of one endpoint, built entirely from
// observed traffic. Any valid envelope refreshes LastSeen; discover
// fills in name and firmware; pong carries uptime and signal quality;
// state replaces the last known state payload.
type Device struct {
	ID       string `json:"id"`
	Class    string `json:"class"`
	Name     string `json:"name"`
	Firmware string `json:"fw,omitempty"`

	// LastAddr is the source address of the most recent envelope.
	LastAddr string    `json:"last_addr,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	Online   bool      `json:"online"`

	// Liveness readings from the most recent pong.
	UptimeSeconds int `json:"uptime,omitempty"`
	RSSI          int `json:"rssi,omitempty"`

	// State is the last state payload broadcast by the device.
	State          map[string]any `json:"state,omitempty"`
	StateUpdatedAt time.Time      `json:"state_updated_at,omitzero"`
}

// clone returns an independent copy so registry internals never leak.
func (d *Device) clone() Device {
	cpy := *d
	if d.State != nil {
		cpy.State = make(map[string]any, len(d.State))
		for k, v := range d.State {
			cpy.State[k] = v
		}
	}
	return cpy
}

// EventKind classifies a hub event.
type EventKind string

// Event kinds delivered to listeners.
const (
	// EventMessage is any valid envelope observed on the bus.
	EventMessage EventKind = "message"

	// EventDeviceOnline fires when a device is first seen or returns
	// after an offline period.
	EventDeviceOnline EventKind = "device_online"

	// EventDeviceOffline fires when a device has not been seen within
	// the offline timeout.
	EventDeviceOffline EventKind = "device_offline"
)

// Event is one observation fanned out to hub listeners.
type Event struct {
	Kind EventKind

	// Envelope is set for EventMessage.
	Envelope protocol.Envelope

	// Device is a snapshot of the registry entry after applying the
	// observation. Nil for envelopes that do not map to a device
	// (e.g. another coordinator's ping).
	Device *Device
}

// Listener receives hub events. Listeners are invoked synchronously on
// the receiver goroutine and must not block.
type Listener func(Event)
