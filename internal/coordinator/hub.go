package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
	"github.com/electronicstech/etbus-core/internal/transport"
)

// Default hub timings. Ping and offline values match the original
// deployment; a device missing two consecutive probes goes offline.
const (
	DefaultPingInterval   = 30 * time.Second
	DefaultOfflineTimeout = 60 * time.Second

	// defaultPollInterval is the receiver's idle sleep between bus polls.
	defaultPollInterval = 10 * time.Millisecond
)

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store persists the hub's device table across restarts. Optional; a
// nil store leaves the hub purely in-memory.
type Store interface {
	// UpsertDevice inserts or updates one device row.
	UpsertDevice(ctx context.Context, dev Device) error

	// SetOnline updates only the online flag.
	SetOnline(ctx context.Context, id string, online bool) error

	// RecordState appends one state snapshot to the device's history.
	RecordState(ctx context.Context, id string, state map[string]any) error

	// LoadDevices returns all persisted devices.
	LoadDevices(ctx context.Context) ([]Device, error)
}

// Config configures a Hub.
type Config struct {
	// HubID is the id/class the hub stamps on its own envelopes.
	// Defaults to "hub". Envelopes carrying this id are never
	// registered as devices.
	HubID string

	// PingInterval is the broadcast probe period.
	PingInterval time.Duration

	// OfflineTimeout is how long a device may stay silent before it is
	// marked offline.
	OfflineTimeout time.Duration

	// PollInterval is the receiver's sleep when the bus is idle.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.HubID == "" {
		c.HubID = "hub"
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.OfflineTimeout <= 0 {
		c.OfflineTimeout = DefaultOfflineTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}

// Hub is the ET-Bus coordinator: probe, observe, command.
//
// Thread Safety: all public methods are safe for concurrent use.
type Hub struct {
	cfg      Config
	bus      transport.Bus
	registry *Registry

	store   Store
	storeMu sync.RWMutex

	listeners  []Listener
	listenerMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	// Shutdown coordination.
	done     chan struct{}
	wg       sync.WaitGroup
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once

	now func() time.Time // test seam
}

// New creates a Hub on an already-joined bus.
func New(bus transport.Bus, cfg Config) *Hub {
	cfg.applyDefaults()
	return &Hub{
		cfg:      cfg,
		bus:      bus,
		registry: NewRegistry(cfg.HubID),
		logger:   noopLogger{},
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// SetLogger sets the hub's logger.
func (h *Hub) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// SetStore attaches a persistence store. Must be called before Start.
func (h *Hub) SetStore(store Store) {
	h.storeMu.Lock()
	h.store = store
	h.storeMu.Unlock()
}

// Subscribe registers a listener for hub events. Listeners run
// synchronously on the hub's goroutines and must not block.
func (h *Hub) Subscribe(l Listener) {
	h.listenerMu.Lock()
	h.listeners = append(h.listeners, l)
	h.listenerMu.Unlock()
}

// Start restores persisted devices and launches the receiver and
// pinger goroutines. The context bounds the restore only; use Stop for
// shutdown.
func (h *Hub) Start(ctx context.Context) error {
	h.startMu.Lock()
	defer h.startMu.Unlock()
	if h.started {
		return ErrAlreadyStarted
	}
	h.started = true

	if store := h.getStore(); store != nil {
		devices, err := store.LoadDevices(ctx)
		if err != nil {
			return fmt.Errorf("restoring devices: %w", err)
		}
		h.registry.Restore(devices)
		h.log().Info("device table restored", "count", len(devices))
	}

	h.wg.Add(2)
	go h.receiver()
	go h.pinger()

	h.log().Info("hub started",
		"ping_interval", h.cfg.PingInterval,
		"offline_timeout", h.cfg.OfflineTimeout,
	)
	return nil
}

// Stop terminates the hub's goroutines and waits for them to exit.
// The bus is left open; its owner closes it.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Devices returns snapshots of all known devices.
func (h *Hub) Devices() []Device {
	return h.registry.List()
}

// Device returns a snapshot of one device.
// Returns ErrDeviceNotFound for ids never observed.
func (h *Hub) Device(id string) (Device, error) {
	return h.registry.Get(id)
}

// SendPing broadcasts a liveness probe. Every endpoint on the channel
// answers; the probe carries no target.
func (h *Hub) SendPing() error {
	data, err := protocol.Encode(protocol.Envelope{
		V:       protocol.Version,
		Type:    protocol.TypePing,
		ID:      h.cfg.HubID,
		Class:   h.cfg.HubID,
		Payload: map[string]any{"ts": h.now().Unix()},
	})
	if err != nil {
		return err
	}
	return h.bus.Send(data)
}

// SendCommand sends one addressed command envelope, fire-and-forget.
//
// Parameters:
//   - id: Target device id (exact match on the endpoint side)
//   - class: The target's class tag, carried for the endpoint handler
//   - payload: Handler-defined command fields
func (h *Hub) SendCommand(id, class string, payload map[string]any) error {
	data, err := protocol.Encode(protocol.Envelope{
		V:       protocol.Version,
		Type:    protocol.TypeCommand,
		ID:      id,
		Class:   class,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return h.bus.Send(data)
}

// receiver drains the bus until Stop.
func (h *Hub) receiver() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		default:
		}

		data, addr, err := h.bus.Receive()
		switch {
		case err == nil:
			h.handleDatagram(data, addr)
		case errors.Is(err, transport.ErrNoMessage):
			select {
			case <-h.done:
				return
			case <-time.After(h.cfg.PollInterval):
			}
		case errors.Is(err, transport.ErrClosed):
			return
		default:
			h.log().Error("bus receive failed", "error", err)
			select {
			case <-h.done:
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// handleDatagram applies one raw datagram to the registry and fans the
// resulting events out. Undecodable or foreign-version traffic is
// silently dropped, same as on the endpoint side.
func (h *Hub) handleDatagram(data []byte, addr net.Addr) {
	env, err := protocol.Decode(data)
	if err != nil {
		h.log().Debug("discarding undecodable datagram", "error", err)
		return
	}
	if !env.WellFormed() {
		h.log().Debug("discarding envelope", "v", env.V, "type", env.Type)
		return
	}

	addrStr := ""
	if addr != nil {
		addrStr = addr.String()
	}

	obs := h.registry.Observe(env, addrStr, h.now())

	if obs.device != nil {
		h.persist(env, obs)
		if obs.isNew {
			h.log().Info("new device", "id", obs.device.ID, "class", obs.device.Class)
		} else if obs.cameOnline {
			h.log().Info("device back online", "id", obs.device.ID)
		}
	}

	h.emit(Event{Kind: EventMessage, Envelope: env, Device: obs.device})
	if obs.cameOnline {
		h.emit(Event{Kind: EventDeviceOnline, Device: obs.device})
	}
}

// persist writes one observation through the optional store.
func (h *Hub) persist(env protocol.Envelope, obs observation) {
	store := h.getStore()
	if store == nil {
		return
	}

	ctx := context.Background()
	if err := store.UpsertDevice(ctx, *obs.device); err != nil {
		h.log().Error("persisting device failed", "id", obs.device.ID, "error", err)
	}
	if obs.stateChanged {
		if err := store.RecordState(ctx, env.ID, env.Payload); err != nil {
			h.log().Error("recording state failed", "id", env.ID, "error", err)
		}
	}
}

// pinger probes the channel and sweeps for stale devices until Stop.
func (h *Hub) pinger() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		if err := h.SendPing(); err != nil {
			// Transient channel unavailability; the next tick retries.
			h.log().Warn("ping send failed", "error", err)
		}

		for _, dev := range h.registry.Sweep(h.now(), h.cfg.OfflineTimeout) {
			h.log().Warn("device offline", "id", dev.ID, "last_seen", dev.LastSeen)
			if store := h.getStore(); store != nil {
				if err := store.SetOnline(context.Background(), dev.ID, false); err != nil {
					h.log().Error("persisting offline failed", "id", dev.ID, "error", err)
				}
			}
			h.emit(Event{Kind: EventDeviceOffline, Device: &dev})
		}
	}
}

func (h *Hub) emit(ev Event) {
	h.listenerMu.RLock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.listenerMu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}

func (h *Hub) getStore() Store {
	h.storeMu.RLock()
	defer h.storeMu.RUnlock()
	return h.store
}

func (h *Hub) log() Logger {
	h.loggerMu.RLock()
	defer h.loggerMu.RUnlock()
	return h.logger
}
