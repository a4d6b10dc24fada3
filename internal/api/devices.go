package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/electronicstech/etbus-core/internal/coordinator"
)

const (
	// commandTimeout caps how long a command handler waits for the
	// device's state echo. The bus retry schedule finishes inside 2s;
	// the extra second absorbs scheduling jitter.
	commandTimeout = 3 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleListDevices returns all known devices.
//
// Query parameters:
//   - online: "true" or "false" to filter by liveness
//   - class: filter by device class (switch, dimmer, etc.)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.hub.Devices()

	if onlineStr := r.URL.Query().Get("online"); onlineStr != "" {
		online, err := strconv.ParseBool(onlineStr)
		if err != nil {
			writeBadRequest(w, "invalid online filter")
			return
		}
		devices = filterDevices(devices, func(d coordinator.Device) bool {
			return d.Online == online
		})
	}

	if class := r.URL.Query().Get("class"); class != "" {
		devices = filterDevices(devices, func(d coordinator.Device) bool {
			return d.Class == class
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.hub.Device(id)
	if err != nil {
		if errors.Is(err, coordinator.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// commandRequest is the body of a command call. Fields are the raw
// command payload forwarded to the device.
type commandRequest map[string]any

// handleCommand sends a confirmed command to a device.
//
// The handler blocks until the device echoes its new state or the
// retry schedule is exhausted. A confirmed command returns 200 with
// the device's refreshed snapshot; an unconfirmed one returns 504.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.hub.Device(id)
	if err != nil {
		if errors.Is(err, coordinator.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var payload commandRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(payload) == 0 {
		writeBadRequest(w, "empty command payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.hub.SendCommandRetry(ctx, id, dev.Class, payload); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrNotConfirmed):
			writeError(w, http.StatusGatewayTimeout, ErrCodeUnconfirmed,
				"device did not confirm the command")
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout,
				"command timed out")
		default:
			s.logger.Error("command dispatch failed", "id", id, "error", err)
			writeInternalError(w, "failed to send command")
		}
		return
	}

	// Re-read so the response carries the post-command state.
	dev, err = s.hub.Device(id)
	if err != nil {
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed", "device": dev})
}

// handleStateHistory returns recorded state snapshots for a device,
// newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 50, max 200)
func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "state history not available")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.hub.Device(id); err != nil {
		if errors.Is(err, coordinator.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "invalid limit")
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	entries, err := s.history.StateHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("state history query failed", "id", id, "error", err)
		writeInternalError(w, "failed to read state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}

// filterDevices returns the devices matching the predicate.
func filterDevices(devices []coordinator.Device, keep func(coordinator.Device) bool) []coordinator.Device {
	filtered := make([]coordinator.Device, 0, len(devices))
	for _, d := range devices {
		if keep(d) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
