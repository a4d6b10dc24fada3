package transport

import "net"

// Bus is the shared-channel collaborator the protocol core talks to.
//
// Send is synchronous and fire-and-forget: a failed send is acceptable
// loss, superseded by the next liveness probe or state change. Receive
// never blocks; it returns ErrNoMessage when the channel is idle so a
// cooperative scheduling loop can poll it every tick.
type Bus interface {
	// Send writes one buffer to the shared group address.
	Send(data []byte) error

	// Receive returns the next pending buffer and its source address,
	// or ErrNoMessage if nothing is queued.
	Receive() ([]byte, net.Addr, error)

	// Close leaves the channel and releases the socket.
	Close() error
}

// SignalFunc reports a point-in-time signal-quality reading for the
// host's link, in the units the endpoint publishes in pong envelopes
// (dBm on radio hardware). Hosts without a radio use NoSignal.
type SignalFunc func() int

// NoSignal is the SignalFunc for wired or virtual hosts.
func NoSignal() int { return 0 }
