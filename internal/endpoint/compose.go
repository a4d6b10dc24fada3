package endpoint

import (
	"github.com/electronicstech/etbus-core/internal/protocol"
)

// Announce builds and sends a discover envelope carrying the
// endpoint's name and firmware version. It runs once inside Begin and
// may be called again at any time for an explicit re-announce.
func (e *Endpoint) Announce() error {
	return e.send(protocol.TypeDiscover, map[string]any{
		"name": e.identity.Name,
		"fw":   e.identity.Firmware,
	})
}

// ReplyLiveness builds and sends a pong envelope with the seconds
// elapsed since Begin and a point-in-time signal-quality reading.
// It runs once inside Begin and once per received ping.
func (e *Endpoint) ReplyLiveness() error {
	uptime := int(e.now().Sub(e.started).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	return e.send(protocol.TypePong, map[string]any{
		"uptime": uptime,
		"rssi":   e.signal(),
	})
}

// PublishState broadcasts an arbitrary caller-supplied state mapping.
// This is the general-purpose primitive: the application calls it
// whenever its observable state changes, and the typed publishers
// below are payload-shape presets layered on top of it.
func (e *Endpoint) PublishState(payload map[string]any) error {
	return e.send(protocol.TypeState, payload)
}

// PublishSwitchState publishes the binary on/off state preset.
func (e *Endpoint) PublishSwitchState(on bool) error {
	return e.PublishState(map[string]any{"on": on})
}

// PublishRGBState publishes the colour light state preset.
func (e *Endpoint) PublishRGBState(on bool, r, g, b, brightness uint8) error {
	return e.PublishState(map[string]any{
		"on":         on,
		"r":          r,
		"g":          g,
		"b":          b,
		"brightness": brightness,
	})
}

// send encodes and transmits one envelope. Sends are fire-and-forget:
// the caller may inspect the error, but nothing in the core retries or
// escalates; a lost message is superseded by the next probe or change.
func (e *Endpoint) send(msgType string, payload map[string]any) error {
	data, err := protocol.Encode(protocol.Envelope{
		V:       protocol.Version,
		Type:    msgType,
		ID:      e.identity.ID,
		Class:   e.identity.Class,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return e.bus.Send(data)
}
