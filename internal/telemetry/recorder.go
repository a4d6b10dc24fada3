package telemetry

import (
	"github.com/electronicstech/etbus-core/internal/coordinator"
	"github.com/electronicstech/etbus-core/internal/protocol"
)

// Writer is the time-series surface the recorder needs. Satisfied by
// *influxdb.Client; narrowed for tests.
type Writer interface {
	WriteLiveness(deviceID string, uptimeSeconds, rssi int)
	WriteAvailability(deviceID string, online bool)
	WriteState(deviceID string, state map[string]any)
}

// Recorder translates hub events into time-series writes. The
// underlying writes are batched appends, cheap enough to run directly
// on the hub's receiver goroutine.
type Recorder struct {
	writer Writer
}

// NewRecorder creates a Recorder backed by the given writer.
func NewRecorder(writer Writer) *Recorder {
	return &Recorder{writer: writer}
}

// Record is a coordinator.Listener. Register it with Hub.Subscribe.
func (r *Recorder) Record(ev coordinator.Event) {
	if ev.Device == nil {
		return
	}

	switch ev.Kind {
	case coordinator.EventMessage:
		switch ev.Envelope.Type {
		case protocol.TypePong:
			r.writer.WriteLiveness(ev.Device.ID, ev.Device.UptimeSeconds, ev.Device.RSSI)
		case protocol.TypeState:
			r.writer.WriteState(ev.Device.ID, ev.Device.State)
		}

	case coordinator.EventDeviceOnline:
		r.writer.WriteAvailability(ev.Device.ID, true)

	case coordinator.EventDeviceOffline:
		r.writer.WriteAvailability(ev.Device.ID, false)
	}
}
