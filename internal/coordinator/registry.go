package coordinator

import (
	"sync"
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
)

// Registry is the hub's in-memory device table, keyed by device id.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device

	// selfID is the hub's own envelope id; the hub never registers
	// itself as a device.
	selfID string
}

// NewRegistry creates an empty registry. Envelopes whose id equals
// selfID are ignored.
func NewRegistry(selfID string) *Registry {
	return &Registry{
		devices: make(map[string]*Device),
		selfID:  selfID,
	}
}

// observation describes how one envelope changed the registry.
type observation struct {
	device       *Device // snapshot after the update, nil if not registrable
	isNew        bool
	cameOnline   bool
	stateChanged bool
}

// Observe applies one valid envelope to the registry.
//
// Rules, matching the wire contract:
//   - envelopes without an id, or with the hub's own id, register nothing
//   - any registrable envelope refreshes last-seen and marks online
//   - discover payload fills in name and firmware
//   - pong payload updates uptime and rssi
//   - state payload replaces the device's last known state
func (r *Registry) Observe(env protocol.Envelope, addr string, now time.Time) observation {
	if env.ID == "" || env.ID == r.selfID {
		return observation{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[env.ID]
	obs := observation{}
	if !ok {
		dev = &Device{ID: env.ID, Name: env.ID}
		r.devices[env.ID] = dev
		obs.isNew = true
	}

	obs.cameOnline = obs.isNew || !dev.Online

	if env.Class != "" {
		dev.Class = env.Class
	}
	dev.LastAddr = addr
	dev.LastSeen = now
	dev.Online = true

	switch env.Type {
	case protocol.TypeDiscover:
		if name, ok := env.Payload["name"].(string); ok && name != "" {
			dev.Name = name
		}
		if fw, ok := env.Payload["fw"].(string); ok {
			dev.Firmware = fw
		}

	case protocol.TypePong:
		if uptime, ok := asInt(env.Payload["uptime"]); ok {
			dev.UptimeSeconds = uptime
		}
		if rssi, ok := asInt(env.Payload["rssi"]); ok {
			dev.RSSI = rssi
		}

	case protocol.TypeState:
		if env.Payload != nil {
			dev.State = env.Payload
			dev.StateUpdatedAt = now
			obs.stateChanged = true
		}
	}

	snapshot := dev.clone()
	obs.device = &snapshot
	return obs
}

// Sweep marks devices unseen within the timeout as offline and returns
// snapshots of the ones that transitioned.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) []Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transitions []Device
	for _, dev := range r.devices {
		stale := now.Sub(dev.LastSeen) >= timeout
		if stale && dev.Online {
			dev.Online = false
			transitions = append(transitions, dev.clone())
		}
	}
	return transitions
}

// Get returns a snapshot of one device.
func (r *Registry) Get(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return dev.clone(), nil
}

// List returns snapshots of all known devices.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, dev := range r.devices {
		devices = append(devices, dev.clone())
	}
	return devices
}

// StateUpdatedAt returns when the device last echoed state, for
// command confirmation checks. The zero time means never.
func (r *Registry) StateUpdatedAt(id string) time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if dev, ok := r.devices[id]; ok {
		return dev.StateUpdatedAt
	}
	return time.Time{}
}

// Restore seeds the registry from persisted devices, marking them all
// offline until observed again on the bus.
func (r *Registry) Restore(devices []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range devices {
		dev := devices[i].clone()
		dev.Online = false
		r.devices[dev.ID] = &dev
	}
}

// asInt converts JSON numbers (decoded as float64) and native ints.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
