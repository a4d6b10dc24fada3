package mqttbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/electronicstech/etbus-core/internal/coordinator"
	"github.com/electronicstech/etbus-core/internal/infrastructure/mqtt"
	"github.com/electronicstech/etbus-core/internal/protocol"
)

// eventQueueSize bounds the publish backlog. When the broker is slower
// than the bus for this long, oldest-first drops are the right call:
// state topics are retained, so a dropped update is superseded by the
// next one.
const eventQueueSize = 256

// Broker is the MQTT surface the bridge needs. Satisfied by
// *mqtt.Client; narrowed for tests.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Hub is the coordinator surface the bridge needs. Satisfied by
// *coordinator.Hub.
type Hub interface {
	Subscribe(coordinator.Listener)
	Device(id string) (coordinator.Device, error)
	SendCommand(id, class string, payload map[string]any) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("mqttbridge: already started")

// Bridge mirrors hub events to MQTT and MQTT commands to the bus.
//
// Thread Safety: all public methods are safe for concurrent use.
type Bridge struct {
	hub    Hub
	broker Broker
	qos    byte

	events chan coordinator.Event

	done     chan struct{}
	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Bridge between a hub and a connected broker.
func New(hub Hub, broker Broker, qos byte) *Bridge {
	return &Bridge{
		hub:    hub,
		broker: broker,
		qos:    qos,
		events: make(chan coordinator.Event, eventQueueSize),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the bridge's logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// Start subscribes to the command topics and begins mirroring hub
// events. Use Stop for shutdown.
func (b *Bridge) Start() error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	topic := mqtt.Topics{}.AllDeviceCommands()
	if err := b.broker.Subscribe(topic, b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	b.hub.Subscribe(b.enqueue)

	b.started = true
	b.wg.Add(1)
	go b.publisher()
	return nil
}

// Stop terminates the publisher goroutine and waits for it to exit.
// The hub and broker are left running; their owners close them.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
}

// enqueue hands one hub event to the publisher goroutine. Called on
// the hub's receiver goroutine, so it must never block.
func (b *Bridge) enqueue(ev coordinator.Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	default:
		b.log().Warn("event queue full, dropping event", "kind", ev.Kind)
	}
}

// publisher drains the event queue until Stop.
func (b *Bridge) publisher() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case ev := <-b.events:
			b.publish(ev)
		}
	}
}

// publish mirrors one hub event to the broker.
func (b *Bridge) publish(ev coordinator.Event) {
	topics := mqtt.Topics{}

	switch ev.Kind {
	case coordinator.EventMessage:
		if ev.Device == nil {
			return
		}
		switch ev.Envelope.Type {
		case protocol.TypeState:
			payload, err := json.Marshal(ev.Envelope.Payload)
			if err != nil {
				b.log().Error("marshalling state failed", "id", ev.Device.ID, "error", err)
				return
			}
			if err := b.broker.PublishRetained(topics.DeviceState(ev.Device.ID), payload); err != nil {
				b.log().Warn("state publish failed", "id", ev.Device.ID, "error", err)
			}

		case protocol.TypeDiscover:
			payload, err := json.Marshal(map[string]any{
				"id":    ev.Device.ID,
				"class": ev.Device.Class,
				"name":  ev.Device.Name,
				"fw":    ev.Device.Firmware,
			})
			if err != nil {
				return
			}
			if err := b.broker.Publish(topics.Discovery(), payload, b.qos, false); err != nil {
				b.log().Warn("discovery publish failed", "id", ev.Device.ID, "error", err)
			}
		}

	case coordinator.EventDeviceOnline, coordinator.EventDeviceOffline:
		if ev.Device == nil {
			return
		}
		online := ev.Kind == coordinator.EventDeviceOnline
		payload, err := json.Marshal(map[string]bool{"online": online})
		if err != nil {
			return
		}
		if err := b.broker.PublishRetained(topics.DeviceOnline(ev.Device.ID), payload); err != nil {
			b.log().Warn("availability publish failed", "id", ev.Device.ID, "error", err)
		}
	}
}

// handleCommand converts one MQTT command message into a bus command.
// The command is fire-and-forget, matching the bus semantics; callers
// wanting confirmation use the HTTP API instead.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	id := mqtt.CommandDeviceID(topic)
	if id == "" {
		return fmt.Errorf("mqttbridge: not a command topic: %s", topic)
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fmt.Errorf("mqttbridge: command payload for %s: %w", id, err)
	}

	// The class tag rides along for the device's handler; unknown
	// devices get an empty class, which endpoints tolerate.
	class := ""
	if dev, err := b.hub.Device(id); err == nil {
		class = dev.Class
	}

	if err := b.hub.SendCommand(id, class, fields); err != nil {
		return fmt.Errorf("mqttbridge: forwarding command to %s: %w", id, err)
	}

	b.log().Debug("command forwarded", "id", id)
	return nil
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}
