// Package transport provides the shared-channel primitives the ET-Bus
// core builds on: send a buffer to the group address, and receive
// available buffers from it.
//
// Two implementations are provided:
//
//   - MulticastBus joins the well-known UDP multicast group all ET-Bus
//     participants share. Messages are connectionless and unordered;
//     there is no per-peer state.
//   - Network/PipeBus is an in-memory loopback used by tests and the
//     device simulator, delivering each sent buffer to every other
//     participant on the same virtual segment.
//
// Both expose a non-blocking Receive: absence of a pending message is
// a normal, immediately-returning outcome (ErrNoMessage), which lets a
// cooperative poll loop drive the endpoint without threads.
package transport
