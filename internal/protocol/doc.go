// Package protocol implements the ET-Bus wire format.
//
// ET-Bus is a broker-less discovery and control protocol for small
// network-attached endpoints sharing a single multicast channel. Every
// message is a bounded UTF-8 JSON envelope:
//
//	{"v":1,"type":"state","id":"lamp1","class":"switch","payload":{"on":true}}
//
// The envelope carries:
//   - v: protocol version (currently 1)
//   - type: one of discover, ping, pong, command, state
//   - id: sender identity, or target identity for command envelopes
//   - class: sender's category tag, present on all endpoint traffic
//   - payload: optional type-specific object, opaque to dispatch
//
// Envelopes are capped at MaxEnvelopeSize bytes on both encode and
// decode. Oversized or syntactically invalid input is rejected with an
// error rather than truncated; callers on the receive path are expected
// to discard silently.
//
// There is no reliability, ordering, or deduplication: the protocol is
// fire-and-forget, and a lost message is superseded by the next
// liveness probe or state change.
package protocol
