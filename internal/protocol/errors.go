package protocol

import "errors"

// Domain errors for the protocol package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, protocol.ErrMalformed) {
//	    // discard the message
//	}
var (
	// ErrMalformed is returned when a buffer cannot be decoded as an
	// ET-Bus envelope (invalid JSON, wrong top-level shape, or empty).
	ErrMalformed = errors.New("protocol: malformed envelope")

	// ErrTooLarge is returned when an envelope exceeds MaxEnvelopeSize
	// on encode or decode. Envelopes are never truncated.
	ErrTooLarge = errors.New("protocol: envelope exceeds size limit")
)
