package endpoint

import (
	"fmt"
	"time"

	"github.com/electronicstech/etbus-core/internal/protocol"
	"github.com/electronicstech/etbus-core/internal/transport"
)

// Logger is the optional logging interface used by the Endpoint.
// The protocol itself has no log obligation; everything logged here is
// diagnostics only.
type Logger interface {
	Debug(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Identity is the immutable per-endpoint identity tuple, set once at
// construction and held for the endpoint's entire lifetime. The
// endpoint owns these strings; they never alias caller buffers.
type Identity struct {
	// ID is the unique addressing key on the shared channel.
	ID string

	// Class is the category tag (not unique), e.g. "switch",
	// "light.rgb", "fan.speed". Included in every outbound envelope.
	Class string

	// Name is the human-readable device name, sent only in discover.
	Name string

	// Firmware is the firmware version string, sent only in discover.
	Firmware string
}

// CommandHandler reacts to a command addressed to this endpoint. It is
// invoked synchronously within the dispatch step with the endpoint's
// own class and the command payload. It has no return value; command
// outcomes are reported back to the bus as state envelopes.
type CommandHandler func(class string, payload map[string]any)

// Options configures an Endpoint beyond its identity.
type Options struct {
	// Bus is the shared-channel collaborator. Required.
	Bus transport.Bus

	// Signal reads point-in-time signal quality for pong envelopes.
	// Defaults to transport.NoSignal.
	Signal transport.SignalFunc

	// Logger receives discard diagnostics. Defaults to silent.
	Logger Logger
}

// Endpoint is one addressable ET-Bus device.
//
// Endpoints are not safe for concurrent use: the core is cooperative
// and poll-driven, and a multi-threaded host must serialise all calls
// into it.
type Endpoint struct {
	identity Identity
	bus      transport.Bus
	signal   transport.SignalFunc
	logger   Logger

	// handler is the single command callback. Replace-on-set, owned by
	// this instance; there is no process-wide registration.
	handler CommandHandler

	started time.Time
	now     func() time.Time // test seam
}

// New creates an Endpoint with the given identity.
//
// Returns:
//   - *Endpoint: Ready for Begin
//   - error: ErrInvalidIdentity or ErrNoBus
func New(identity Identity, opts Options) (*Endpoint, error) {
	if identity.ID == "" || identity.Class == "" {
		return nil, fmt.Errorf("%w: id and class are required", ErrInvalidIdentity)
	}
	if opts.Bus == nil {
		return nil, ErrNoBus
	}

	signal := opts.Signal
	if signal == nil {
		signal = transport.NoSignal
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	e := &Endpoint{
		identity: identity,
		bus:      opts.Bus,
		signal:   signal,
		logger:   logger,
		now:      time.Now,
	}
	e.started = e.now()
	return e, nil
}

// Identity returns the endpoint's identity tuple.
func (e *Endpoint) Identity() Identity {
	return e.identity
}

// Begin starts the endpoint's protocol life: it stamps the uptime
// origin and emits the initial discover + pong pair so the coordinator
// learns about the device immediately rather than at the next probe.
//
// The bus is expected to be joined already; Begin only emits.
func (e *Endpoint) Begin() error {
	e.started = e.now()

	if err := e.Announce(); err != nil {
		return err
	}
	return e.ReplyLiveness()
}

// OnCommand registers the command handler. At most one handler is
// registered at a time; a later call replaces the earlier one, and a
// nil handler unregisters.
func (e *Endpoint) OnCommand(h CommandHandler) {
	e.handler = h
}

// ProcessPending drains at most one pending inbound message and reacts
// to it. It never blocks: when the channel is idle it returns
// immediately, and calling it again is a repeatable no-op.
//
// Reactions by message type:
//   - ping: always answered with a pong, regardless of addressing
//   - command: handler invoked iff the envelope id equals this
//     endpoint's id and a handler is registered
//   - everything else (discover, pong, state, unknown kinds): ignored
//
// The return value reports whether a message was consumed, so a host
// loop can drain a backlog with `for ep.ProcessPending() {}`.
func (e *Endpoint) ProcessPending() bool {
	data, _, err := e.bus.Receive()
	if err != nil {
		// Idle channel or transport hiccup; either way this cycle is a
		// no-op and the next probe or state change self-heals.
		return false
	}

	env, err := protocol.Decode(data)
	if err != nil {
		e.logger.Debug("discarding undecodable message", "error", err)
		return true
	}

	if !env.WellFormed() {
		e.logger.Debug("discarding envelope", "v", env.V, "type", env.Type)
		return true
	}

	switch env.Type {
	case protocol.TypePing:
		// Broadcast liveness probe: every endpoint answers every ping.
		if err := e.ReplyLiveness(); err != nil {
			e.logger.Debug("pong send failed", "error", err)
		}

	case protocol.TypeCommand:
		if !protocol.MatchesTarget(env, e.identity.ID) {
			// Another device's command: the expected common case on a
			// shared channel.
			return true
		}
		if e.handler == nil {
			e.logger.Debug("addressed command with no handler registered", "id", env.ID)
			return true
		}
		e.handler(e.identity.Class, env.Payload)

	default:
		// discover/pong/state are emitted by this endpoint, never
		// reacted to. Unknown non-empty kinds are a forward-compatible
		// no-op.
	}

	return true
}
