// Package api provides the HTTP REST API for the ET-Bus hub.
//
// It exposes the device registry, state history, and command dispatch
// to user interfaces and integrations.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Commands sent through the API use the confirmed retry path: the
// handler blocks until the target echoes its new state or the retry
// schedule is exhausted, and the response reports which happened.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
