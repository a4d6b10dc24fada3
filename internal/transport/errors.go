package transport

import "errors"

// Domain errors for the transport package.
// Use errors.Is() to check for these in calling code.
var (
	// ErrNoMessage is returned by Receive when no datagram is pending.
	// This is the normal idle outcome, not a failure.
	ErrNoMessage = errors.New("transport: no message pending")

	// ErrClosed is returned when operating on a closed bus.
	ErrClosed = errors.New("transport: bus closed")

	// ErrJoinFailed is returned when the multicast group cannot be joined.
	ErrJoinFailed = errors.New("transport: joining multicast group failed")
)
