package coordinator

import (
	"context"
	"time"
)

// Command resend schedule: fast but bounded. The protocol itself stays
// fire-and-forget; these are hub-side best-effort resends of an
// identical envelope, harmless to replay because commands carry
// absolute state rather than deltas.
var retryDelays = []time.Duration{
	0,
	40 * time.Millisecond,
	80 * time.Millisecond,
	150 * time.Millisecond,
	300 * time.Millisecond,
	600 * time.Millisecond,
	1000 * time.Millisecond,
}

// retryTotalCap bounds the whole retry attempt regardless of schedule.
const retryTotalCap = 2 * time.Second

// SendCommandRetry sends an addressed command and resends it on a
// bounded schedule until the target echoes a state envelope, which
// endpoints publish after acting on a command.
//
// Parameters:
//   - ctx: Cancels the attempt early
//   - id, class, payload: As for SendCommand
//
// Returns:
//   - error: nil once confirmed; ErrNotConfirmed when the schedule is
//     exhausted; the context error if cancelled
func (h *Hub) SendCommandRetry(ctx context.Context, id, class string, payload map[string]any) error {
	start := h.now()
	before := h.registry.StateUpdatedAt(id)

	deadline := time.NewTimer(retryTotalCap)
	defer deadline.Stop()

	for i, delay := range retryDelays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline.C:
				return ErrNotConfirmed
			case <-time.After(delay):
			}
		}

		if h.confirmed(id, before) {
			return nil
		}

		if err := h.SendCommand(id, class, payload); err != nil {
			h.log().Debug("command resend failed", "id", id, "attempt", i, "error", err)
		}

		// Give the device one poll cycle to act and echo before the
		// next resend decision.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.cfg.PollInterval):
		}

		if h.confirmed(id, before) {
			return nil
		}
	}

	// Schedule exhausted; wait out the remaining cap for a late echo.
	remaining := retryTotalCap - h.now().Sub(start)
	if remaining > 0 {
		ticker := time.NewTicker(h.cfg.PollInterval)
		defer ticker.Stop()
		waitEnd := time.After(remaining)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-waitEnd:
				return ErrNotConfirmed
			case <-ticker.C:
				if h.confirmed(id, before) {
					return nil
				}
			}
		}
	}
	return ErrNotConfirmed
}

// confirmed reports whether the target has echoed state since the
// attempt began.
func (h *Hub) confirmed(id string, before time.Time) bool {
	return h.registry.StateUpdatedAt(id).After(before)
}
