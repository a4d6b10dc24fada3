// Package coordinator implements the hub side of ET-Bus.
//
// The coordinator joins the same shared multicast channel as the
// endpoints and honours the wire contract from the other direction: it
// broadcasts periodic ping probes, collects discover/pong/state
// envelopes into a device registry, tracks online/offline transitions,
// and sends addressed command envelopes.
//
// A Hub owns two goroutines after Start: a receiver that drains the
// bus and a pinger that probes and sweeps for stale devices. Observed
// traffic and presence transitions fan out to subscribed listeners
// (MQTT bridge, HTTP API, telemetry). An optional Store persists the
// device table and a bounded state history across restarts.
//
// The protocol stays fire-and-forget end to end; SendCommandRetry adds
// only a bounded hub-side resend schedule, confirmed by the state echo
// endpoints publish after acting on a command.
package coordinator
