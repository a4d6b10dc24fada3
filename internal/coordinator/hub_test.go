package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
	"github.com/electronicstech/etbus-core/internal/transport"
)

// testTimings keeps hub tests fast. Real deployments use the 30s/60s
// defaults.
func testConfig() Config {
	return Config{
		HubID:          "hub",
		PingInterval:   20 * time.Millisecond,
		OfflineTimeout: 60 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

// receiveEnvelope pops the next decodable envelope from a device-side
// bus, or fails after the deadline.
func receiveEnvelope(t *testing.T, bus transport.Bus) protocol.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, _, err := bus.Receive()
		if errors.Is(err, transport.ErrNoMessage) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		env, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		return env
	}
	t.Fatal("no envelope received before deadline")
	return protocol.Envelope{}
}

// fakeStore records persistence calls for assertions.
type fakeStore struct {
	mu       sync.Mutex
	devices  map[string]Device
	states   []map[string]any
	onlines  map[string]bool
	seed     []Device
	loadErr  error
	upserted int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: make(map[string]Device),
		onlines: make(map[string]bool),
	}
}

func (s *fakeStore) UpsertDevice(_ context.Context, dev Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[dev.ID] = dev
	s.upserted++
	return nil
}

func (s *fakeStore) SetOnline(_ context.Context, id string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onlines[id] = online
	return nil
}

func (s *fakeStore) RecordState(_ context.Context, _ string, state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *fakeStore) LoadDevices(_ context.Context) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed, s.loadErr
}

func (s *fakeStore) device(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev, ok := s.devices[id]
	return dev, ok
}

func TestHub_SendPing(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	if err := hub.SendPing(); err != nil {
		t.Fatalf("SendPing() error = %v", err)
	}

	env := receiveEnvelope(t, deviceBus)
	if env.Type != protocol.TypePing {
		t.Errorf("Type = %q, want %q", env.Type, protocol.TypePing)
	}
	if env.ID != "hub" {
		t.Errorf("ID = %q, want %q", env.ID, "hub")
	}
	if _, ok := env.Payload["ts"]; !ok {
		t.Error("ping payload missing ts field")
	}
}

func TestHub_SendCommand(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	err := hub.SendCommand("lamp1", "switch", map[string]any{"on": true})
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	env := receiveEnvelope(t, deviceBus)
	if env.Type != protocol.TypeCommand {
		t.Errorf("Type = %q, want %q", env.Type, protocol.TypeCommand)
	}
	if env.ID != "lamp1" {
		t.Errorf("ID = %q, want %q", env.ID, "lamp1")
	}
	if env.Class != "switch" {
		t.Errorf("Class = %q, want %q", env.Class, "switch")
	}
	if on, _ := env.Payload["on"].(bool); !on {
		t.Errorf("Payload = %v, want on=true", env.Payload)
	}
}

func TestHub_StartTwice(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	if err := hub.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestHub_ObservesDeviceTraffic(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	data, err := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypeDiscover,
		ID: "lamp1", Class: "switch",
		Payload: map[string]any{"name": "Desk Lamp", "fw": "1.2.0"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := deviceBus.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool {
		_, err := hub.Device("lamp1")
		return err == nil
	}, "hub never registered the device")

	dev, err := hub.Device("lamp1")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev.Name != "Desk Lamp" {
		t.Errorf("Name = %q, want %q", dev.Name, "Desk Lamp")
	}
	if !dev.Online {
		t.Error("expected device online")
	}
}

func TestHub_IgnoresJunkTraffic(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	junk := [][]byte{
		[]byte("not json"),
		[]byte(`{"v":2,"type":"state","id":"lamp1"}`),
		[]byte(`{"v":1,"id":"lamp1"}`),
	}
	for _, data := range junk {
		if err := deviceBus.Send(data); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	// Use a valid trailing envelope to know the junk has been drained.
	data, _ := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypePong, ID: "marker",
	})
	if err := deviceBus.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool {
		_, err := hub.Device("marker")
		return err == nil
	}, "marker envelope never processed")

	if got := len(hub.Devices()); got != 1 {
		t.Errorf("hub registered %d devices, want only the marker", got)
	}
}

func TestHub_OnlineOfflineEvents(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	var mu sync.Mutex
	var kinds []EventKind
	hub.Subscribe(func(ev Event) {
		if ev.Kind == EventMessage {
			return
		}
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
	})

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	data, _ := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypePong, ID: "lamp1", Class: "switch",
	})
	if err := deviceBus.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// The device stays silent afterwards, so the sweep marks it offline.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) >= 2
	}, "expected online then offline events")

	mu.Lock()
	defer mu.Unlock()
	if kinds[0] != EventDeviceOnline {
		t.Errorf("first event = %q, want %q", kinds[0], EventDeviceOnline)
	}
	if kinds[1] != EventDeviceOffline {
		t.Errorf("second event = %q, want %q", kinds[1], EventDeviceOffline)
	}
}

func TestHub_MessageEventsCarryEnvelope(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	var mu sync.Mutex
	var got []Event
	hub.Subscribe(func(ev Event) {
		if ev.Kind != EventMessage {
			return
		}
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	data, _ := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypeState, ID: "lamp1",
		Payload: map[string]any{"on": true},
	})
	if err := deviceBus.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, "message event never delivered")

	mu.Lock()
	defer mu.Unlock()
	ev := got[0]
	if ev.Envelope.Type != protocol.TypeState {
		t.Errorf("Envelope.Type = %q, want %q", ev.Envelope.Type, protocol.TypeState)
	}
	if ev.Device == nil {
		t.Fatal("message event missing device snapshot")
	}
	if ev.Device.ID != "lamp1" {
		t.Errorf("Device.ID = %q, want %q", ev.Device.ID, "lamp1")
	}
}

func TestHub_PersistsObservations(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	store := newFakeStore()
	hub.SetStore(store)

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	data, _ := protocol.Encode(protocol.Envelope{
		V: protocol.Version, Type: protocol.TypeState, ID: "lamp1", Class: "switch",
		Payload: map[string]any{"on": true},
	})
	if err := deviceBus.Send(data); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, func() bool {
		_, ok := store.device("lamp1")
		return ok
	}, "observation never persisted")

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.states) != 1 {
		t.Errorf("RecordState called %d times, want 1", len(store.states))
	}
}

func TestHub_RestoresDevicesOnStart(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())

	store := newFakeStore()
	store.seed = []Device{
		{ID: "lamp1", Class: "switch", Name: "Desk Lamp", Online: true},
	}
	hub.SetStore(store)

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	dev, err := hub.Device("lamp1")
	if err != nil {
		t.Fatalf("Device() error = %v", err)
	}
	if dev.Online {
		t.Error("restored device should start offline until observed")
	}
}

func TestHub_StartFailsOnRestoreError(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())

	store := newFakeStore()
	store.loadErr = errors.New("disk gone")
	hub.SetStore(store)

	if err := hub.Start(context.Background()); err == nil {
		t.Error("Start() expected error when restore fails")
	}
}

func TestHub_StopIsIdempotent(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	hub.Stop()
	hub.Stop()
}

func TestHub_PingerProbesPeriodically(t *testing.T) {
	network := transport.NewNetwork()
	hub := New(network.Join("hub"), testConfig())
	deviceBus := network.Join("device")

	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer hub.Stop()

	// Two probe rounds prove the ticker keeps firing.
	for i := 0; i < 2; i++ {
		env := receiveEnvelope(t, deviceBus)
		if env.Type != protocol.TypePing {
			t.Fatalf("probe %d: Type = %q, want %q", i, env.Type, protocol.TypePing)
		}
	}
}
