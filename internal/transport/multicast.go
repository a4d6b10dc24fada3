package transport

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Well-known ET-Bus group address. Every participant joins the same
// group on the same port; there is no discovery of the channel itself.
const (
	// DefaultGroup is the ET-Bus multicast group address.
	DefaultGroup = "239.10.0.1"

	// DefaultPort is the ET-Bus multicast port.
	DefaultPort = 5555
)

// readBufferSize is the receive buffer for a single datagram. It is
// larger than the protocol's 512-byte envelope ceiling so oversized
// envelopes arrive intact and are rejected by the codec rather than
// silently truncated mid-field.
const readBufferSize = 4096

// pollTimeout bounds a single Receive poll. It is short enough that
// Receive is effectively non-blocking for a scheduling loop.
const pollTimeout = time.Millisecond

// MulticastConfig configures a MulticastBus.
type MulticastConfig struct {
	// Group is the multicast group address. Defaults to DefaultGroup.
	Group string

	// Port is the UDP port. Defaults to DefaultPort.
	Port int

	// Interface optionally names the network interface to join on.
	// Empty selects the system default.
	Interface string
}

// MulticastBus is the production Bus: one shared UDP multicast group,
// connectionless and unordered, with no per-peer state.
type MulticastBus struct {
	conn  *net.UDPConn
	group *net.UDPAddr
}

// JoinMulticast joins the ET-Bus multicast group and returns a bus
// ready for Send/Receive.
//
// Parameters:
//   - cfg: Group, port, and optional interface name
//
// Returns:
//   - *MulticastBus: Joined bus
//   - error: ErrJoinFailed wrapping the underlying cause
func JoinMulticast(cfg MulticastConfig) (*MulticastBus, error) {
	group := cfg.Group
	if group == "" {
		group = DefaultGroup
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	ip := net.ParseIP(group)
	if ip == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("%w: %q is not a multicast address", ErrJoinFailed, group)
	}
	gaddr := &net.UDPAddr{IP: ip, Port: port}

	var iface *net.Interface
	if cfg.Interface != "" {
		found, err := net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("%w: interface %q: %w", ErrJoinFailed, cfg.Interface, err)
		}
		iface = found
	}

	conn, err := net.ListenMulticastUDP("udp4", iface, gaddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}

	return &MulticastBus{conn: conn, group: gaddr}, nil
}

// Send writes one datagram to the group address.
func (b *MulticastBus) Send(data []byte) error {
	if b.conn == nil {
		return ErrClosed
	}
	if _, err := b.conn.WriteToUDP(data, b.group); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Receive polls for one pending datagram without blocking.
//
// Returns:
//   - []byte: The datagram contents (copied; safe to retain)
//   - net.Addr: The sender's address
//   - error: ErrNoMessage when idle, ErrClosed after Close
func (b *MulticastBus) Receive() ([]byte, net.Addr, error) {
	if b.conn == nil {
		return nil, nil, ErrClosed
	}

	if err := b.conn.SetReadDeadline(time.Now().Add(pollTimeout)); err != nil {
		return nil, nil, fmt.Errorf("transport: receive: %w", err)
	}

	buf := make([]byte, readBufferSize)
	n, addr, err := b.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, nil, ErrNoMessage
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, nil, ErrClosed
		}
		return nil, nil, fmt.Errorf("transport: receive: %w", err)
	}

	return buf[:n], addr, nil
}

// Close leaves the group and releases the socket.
func (b *MulticastBus) Close() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("transport: close: %w", err)
	}
	return nil
}
