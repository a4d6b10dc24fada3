package transport

import (
	"net"
	"sync"
)

// Network is an in-memory stand-in for the multicast segment. Every
// PipeBus joined to the same Network receives every buffer sent by any
// other participant. Delivery is synchronous and loss-free, which makes
// protocol tests deterministic without real sockets.
//
// Like the real group (which joins with multicast loopback disabled),
// a sender does not receive its own datagrams.
type Network struct {
	mu    sync.Mutex
	buses []*PipeBus
}

// NewNetwork creates an empty virtual segment.
func NewNetwork() *Network {
	return &Network{}
}

// Join attaches a new participant to the segment. The name is used as
// its source address in received packets.
func (n *Network) Join(name string) *PipeBus {
	b := &PipeBus{
		net:  n,
		addr: pipeAddr(name),
	}
	n.mu.Lock()
	n.buses = append(n.buses, b)
	n.mu.Unlock()
	return b
}

// deliver fans one datagram out to every participant except the sender.
func (n *Network) deliver(from *PipeBus, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, b := range n.buses {
		if b == from {
			continue
		}
		b.enqueue(from.addr, data)
	}
}

// PipeBus is one participant on a Network. It implements Bus.
type PipeBus struct {
	net  *Network
	addr pipeAddr

	mu     sync.Mutex
	queue  []packet
	closed bool
}

type packet struct {
	from net.Addr
	data []byte
}

// pipeAddr is the virtual source address of a Network participant.
type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

// Send delivers one buffer to all other participants on the segment.
func (b *PipeBus) Send(data []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	b.net.deliver(b, data)
	return nil
}

// Receive pops one queued datagram, or ErrNoMessage when idle.
func (b *PipeBus) Receive() ([]byte, net.Addr, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrClosed
	}
	if len(b.queue) == 0 {
		return nil, nil, ErrNoMessage
	}

	p := b.queue[0]
	b.queue = b.queue[1:]
	return p.data, p.from, nil
}

// Close detaches the participant. Queued messages are dropped.
func (b *PipeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.queue = nil
	return nil
}

func (b *PipeBus) enqueue(from net.Addr, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	// Copy so the sender's buffer can be reused.
	cp := make([]byte, len(data))
	copy(cp, data)
	b.queue = append(b.queue, packet{from: from, data: cp})
}
