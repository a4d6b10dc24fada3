package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
	"github.com/electronicstech/etbus-core/internal/transport"
)

// respondingDevice echoes a state envelope after receiving a command
// addressed to it, mimicking firmware that applies a command and
// broadcasts its new state. Commands before skip are swallowed to
// exercise the resend schedule.
func respondingDevice(t *testing.T, bus transport.Bus, id string, skip int, done <-chan struct{}) {
	t.Helper()

	go func() {
		seen := 0
		for {
			select {
			case <-done:
				return
			default:
			}

			data, _, err := bus.Receive()
			if errors.Is(err, transport.ErrNoMessage) {
				time.Sleep(time.Millisecond)
				continue
			}
			if err != nil {
				return
			}

			env, err := protocol.Decode(data)
			if err != nil || env.Type != protocol.TypeCommand || env.ID != id {
				continue
			}

			seen++
			if seen <= skip {
				continue
			}

			echo, _ := protocol.Encode(protocol.Envelope{
				V: protocol.Version, Type: protocol.TypeState, ID: id,
				Payload: map[string]any{"on": true},
			})
			_ = bus.Send(echo)
		}
	}()
}

func TestHub_SendCommandRetry_ConfirmedFirstAttempt(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("lamp1")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	done := make(chan struct{})
	defer close(done)
	respondingDevice(t, deviceBus, "lamp1", 0, done)

	err := hub.SendCommandRetry(context.Background(), "lamp1", "switch", map[string]any{"on": true})
	if err != nil {
		t.Fatalf("SendCommandRetry() error = %v", err)
	}

	dev, err := hub.Device("lamp1")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if on, _ := dev.State["on"].(bool); !on {
		t.Errorf("State = %v, want on=true after echo", dev.State)
	}
}

func TestHub_SendCommandRetry_ConfirmedAfterResends(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("lamp1")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	done := make(chan struct{})
	defer close(done)

	// The device drops the first two commands, as a busy radio would.
	respondingDevice(t, deviceBus, "lamp1", 2, done)

	err := hub.SendCommandRetry(context.Background(), "lamp1", "switch", map[string]any{"on": true})
	if err != nil {
		t.Fatalf("SendCommandRetry() error = %v", err)
	}
}

func TestHub_SendCommandRetry_Unconfirmed(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	network.Join("lamp1") // present but never answers

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	start := time.Now()
	err := hub.SendCommandRetry(context.Background(), "lamp1", "switch", map[string]any{"on": true})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("SendCommandRetry() error = %v, want ErrNotConfirmed", err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("attempt took %v, want bounded near the 2s cap", elapsed)
	}
}

func TestHub_SendCommandRetry_ContextCancelled(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := hub.SendCommandRetry(ctx, "lamp1", "switch", map[string]any{"on": true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SendCommandRetry() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestHub_SendCommandRetry_StaleEchoNotConfirmation(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("lamp1")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	// A state broadcast before the command must not count as the echo.
	pre, _ := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypeState, ID: "lamp1",
		Payload: map[string]any{"on": false},
	})
	if err := deviceBus.Send(pre); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	waitFor(t, func() bool {
		return !hub.registry.StateUpdatedAt("lamp1").IsZero()
	}, "pre-command state never observed")

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := hub.SendCommandRetry(ctx, "lamp1", "switch", map[string]any{"on": true})
	if err == nil {
		t.Error("SendCommandRetry() confirmed on a state observed before the command")
	}
}
