package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version carried in every envelope.
// Envelopes with any other version are discarded by receivers.
const Version = 1

// MaxEnvelopeSize is the wire-level ceiling for a single envelope in
// bytes. It matches the fixed receive buffer used by the firmware-class
// endpoints on the bus, so anything larger would be unreadable by at
// least some participants.
const MaxEnvelopeSize = 512

// Message type constants.
const (
	// TypeDiscover announces an endpoint's identity. Sent once at
	// startup and on explicit re-announce. Payload: {name, fw}.
	TypeDiscover = "discover"

	// TypePing is a broadcast liveness probe from the coordinator.
	// It carries no target; every endpoint on the channel answers.
	TypePing = "ping"

	// TypePong answers a ping (and is also sent once at startup).
	// Payload: {uptime, rssi}.
	TypePong = "pong"

	// TypeCommand is a coordinator-issued instruction targeted at a
	// single endpoint via the envelope id. Payload is handler-defined.
	TypeCommand = "command"

	// TypeState broadcasts an endpoint's observable state. Payload is
	// an arbitrary entity-defined field mapping.
	TypeState = "state"
)

// Envelope is one ET-Bus message unit.
//
// Envelopes are transient: they are built, encoded, and sent (or
// decoded, dispatched, and dropped) within a single cycle and never
// retained.
type Envelope struct {
	V       int            `json:"v"`
	Type    string         `json:"type"`
	ID      string         `json:"id"`
	Class   string         `json:"class,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// WellFormed reports whether the envelope carries the mandatory fields:
// the current protocol version and a non-empty type. An envelope that
// is not well formed must be discarded without side effects.
func (e Envelope) WellFormed() bool {
	return e.V == Version && e.Type != ""
}

// Encode serialises an envelope to its JSON wire form.
//
// The payload supports arbitrary caller-provided scalar fields; the
// codec copies them generically without foreknowledge of the entity
// type sending them.
//
// Returns:
//   - []byte: Wire bytes, at most MaxEnvelopeSize long
//   - error: ErrTooLarge if the encoded form exceeds the limit
func Encode(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		// Only unmarshalable payload values (channels, funcs) get here.
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(data) > MaxEnvelopeSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), MaxEnvelopeSize)
	}
	return data, nil
}

// Decode parses wire bytes into an Envelope.
//
// Decode is syntax-only: it does not check the protocol version or the
// message type, which is the dispatch layer's job. Unknown top-level
// fields are ignored for forward compatibility.
//
// Returns:
//   - Envelope: Parsed envelope
//   - error: ErrTooLarge for oversized input, ErrMalformed otherwise
func Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty buffer", ErrMalformed)
	}
	if len(data) > MaxEnvelopeSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), MaxEnvelopeSize)
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return e, nil
}
