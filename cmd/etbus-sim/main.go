// ET-Bus device simulator.
//
// etbus-sim runs one simulated switch device on the multicast bus.
// It announces itself, answers liveness probes, applies commands to an
// in-memory on/off state, and echoes every state change back to the
// bus so the coordinator can confirm commands.
//
// Usage:
//
//	etbus-sim -id lamp1 -name "Desk Lamp"
//	etbus-sim -id fan2 -class fan -group 239.10.0.1 -port 5555
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/electronicstech/etbus-core/internal/endpoint"
	"github.com/electronicstech/etbus-core/internal/infrastructure/config"
	"github.com/electronicstech/etbus-core/internal/infrastructure/logging"
	"github.com/electronicstech/etbus-core/internal/transport"
)

var version = "dev" // set at build time via ldflags

// pollInterval is the cooperative loop period. The endpoint core is
// poll-driven; 5ms keeps command latency well under the first resend.
const pollInterval = 5 * time.Millisecond

// stateRefreshInterval re-broadcasts the current state so a restarted
// coordinator converges without waiting for a change.
const stateRefreshInterval = 5 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		id    = flag.String("id", "", "device id (required)")
		class = flag.String("class", "switch", "device class")
		name  = flag.String("name", "", "human-readable name (defaults to id)")
		fw    = flag.String("fw", version, "firmware version to announce")
		group = flag.String("group", transport.DefaultGroup, "multicast group")
		port  = flag.Int("port", transport.DefaultPort, "UDP port")
		iface = flag.String("interface", "", "network interface (default: system choice)")
		level = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	if *name == "" {
		*name = *id
	}

	log := logging.New(config.LoggingConfig{Level: *level, Format: "text", Output: "stdout"}, version)

	bus, err := transport.JoinMulticast(transport.MulticastConfig{
		Group:     *group,
		Port:      *port,
		Interface: *iface,
	})
	if err != nil {
		return fmt.Errorf("joining multicast group: %w", err)
	}
	defer func() {
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing bus", "error", closeErr)
		}
	}()

	dev, err := endpoint.New(endpoint.Identity{
		ID:       *id,
		Class:    *class,
		Name:     *name,
		Firmware: *fw,
	}, endpoint.Options{
		Bus:    bus,
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating endpoint: %w", err)
	}

	// Simulated device state, mutated only inside the poll loop. RGB
	// fields are ignored unless the class is light.rgb.
	sim := &simState{brightness: 255}
	rgb := *class == "light.rgb"

	publish := func() error {
		if rgb {
			return dev.PublishRGBState(sim.on, sim.r, sim.g, sim.b, sim.brightness)
		}
		return dev.PublishSwitchState(sim.on)
	}

	dev.OnCommand(func(_ string, payload map[string]any) {
		if !sim.apply(payload, rgb) {
			log.Warn("ignoring command with no applicable fields", "payload", payload)
			return
		}
		log.Info("command applied", "on", sim.on)
		if err := publish(); err != nil {
			log.Error("state echo failed", "error", err)
		}
	})

	if err := dev.Begin(); err != nil {
		return fmt.Errorf("announcing device: %w", err)
	}
	if err := publish(); err != nil {
		return fmt.Errorf("publishing initial state: %w", err)
	}
	log.Info("device running",
		"id", *id,
		"class", *class,
		"group", *group,
		"port", *port,
	)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	refresh := time.NewTicker(stateRefreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("device stopping", "id", *id)
			return nil

		case <-refresh.C:
			if err := publish(); err != nil {
				log.Error("state refresh failed", "error", err)
			}

		case <-ticker.C:
			// Drain the backlog before sleeping again.
			for dev.ProcessPending() {
			}
		}
	}
}

// simState is the simulated device's observable state.
type simState struct {
	on         bool
	r, g, b    uint8
	brightness uint8
}

// apply merges a command payload into the state. Returns false when no
// recognised field was present.
func (s *simState) apply(payload map[string]any, rgb bool) bool {
	applied := false

	if on, ok := payload["on"].(bool); ok {
		s.on = on
		applied = true
	}

	if rgb {
		if v, ok := channelValue(payload["r"]); ok {
			s.r = v
			applied = true
		}
		if v, ok := channelValue(payload["g"]); ok {
			s.g = v
			applied = true
		}
		if v, ok := channelValue(payload["b"]); ok {
			s.b = v
			applied = true
		}
		if v, ok := channelValue(payload["brightness"]); ok {
			s.brightness = v
			applied = true
		}
	}

	return applied
}

// channelValue reads one 0-255 colour channel from a decoded JSON
// number, clamping out-of-range values.
func channelValue(v any) (uint8, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	switch {
	case f < 0:
		return 0, true
	case f > 255:
		return 255, true
	default:
		return uint8(f), true
	}
}
