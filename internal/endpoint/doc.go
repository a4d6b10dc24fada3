// Package endpoint implements the device side of ET-Bus: an
// addressable endpoint that announces itself, answers liveness probes,
// publishes state changes, and accepts addressed commands.
//
// An Endpoint is single-threaded and poll-driven. It owns no goroutine
// and never blocks: the host application calls ProcessPending once per
// scheduling tick to drain at most one inbound message, and calls the
// publish methods whenever its observable state changes.
//
//	ep, _ := endpoint.New(endpoint.Identity{
//	    ID:       "lamp1",
//	    Class:    "switch",
//	    Name:     "Hall Lamp",
//	    Firmware: "1.0",
//	}, endpoint.Options{Bus: bus})
//
//	ep.OnCommand(func(class string, payload map[string]any) {
//	    if on, ok := payload["on"].(bool); ok {
//	        relay.Set(on)
//	        ep.PublishSwitchState(on)
//	    }
//	})
//
//	ep.Begin()
//	for {
//	    ep.ProcessPending()
//	    time.Sleep(pollInterval)
//	}
//
// Inbound handling is deliberately forgiving: malformed envelopes,
// foreign commands, unknown message kinds, and commands with no
// registered handler are all silently discarded. Nothing an ET-Bus
// peer can send is fatal.
package endpoint
