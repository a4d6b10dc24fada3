package coordinator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// stateHistoryKeep is how many history rows are retained per device.
const stateHistoryKeep = 200

// SQLiteStore implements Store on a SQLite database. It persists the
// device table and a bounded per-device state history so a restarted
// hub knows its fleet before the first probe round completes.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// UpsertDevice inserts or updates one device row.
func (s *SQLiteStore) UpsertDevice(ctx context.Context, dev Device) error {
	if dev.ID == "" {
		return fmt.Errorf("coordinator: device id is required")
	}

	stateJSON, err := marshalState(dev.State)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO devices (id, class, name, fw, last_addr, last_seen, online, uptime, rssi, state, state_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   class = excluded.class,
		   name = excluded.name,
		   fw = excluded.fw,
		   last_addr = excluded.last_addr,
		   last_seen = excluded.last_seen,
		   online = excluded.online,
		   uptime = excluded.uptime,
		   rssi = excluded.rssi,
		   state = excluded.state,
		   state_updated_at = excluded.state_updated_at`,
		dev.ID, dev.Class, dev.Name, dev.Firmware, dev.LastAddr,
		dev.LastSeen.UTC().Format(time.RFC3339Nano), dev.Online,
		dev.UptimeSeconds, dev.RSSI, stateJSON,
		dev.StateUpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// SetOnline updates only the online flag.
func (s *SQLiteStore) SetOnline(ctx context.Context, id string, online bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET online = ? WHERE id = ?", online, id)
	if err != nil {
		return fmt.Errorf("updating online flag: %w", err)
	}
	return nil
}

// RecordState appends one state snapshot to the device's history and
// prunes it back to the retention bound.
func (s *SQLiteStore) RecordState(ctx context.Context, id string, state map[string]any) error {
	if id == "" {
		return fmt.Errorf("coordinator: device id is required")
	}

	stateJSON, err := marshalState(state)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO state_history (device_id, state) VALUES (?, ?)",
		id, stateJSON,
	); err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	// Keep the newest rows only.
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM state_history
		 WHERE device_id = ? AND id NOT IN (
		   SELECT id FROM state_history
		   WHERE device_id = ?
		   ORDER BY id DESC
		   LIMIT ?
		 )`,
		id, id, stateHistoryKeep,
	); err != nil {
		return fmt.Errorf("pruning state history: %w", err)
	}
	return nil
}

// LoadDevices returns all persisted devices.
func (s *SQLiteStore) LoadDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, class, name, fw, last_addr, last_seen, online, uptime, rssi, state, state_updated_at
		 FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var dev Device
		var lastSeen, stateUpdatedAt, stateJSON string
		if err := rows.Scan(&dev.ID, &dev.Class, &dev.Name, &dev.Firmware,
			&dev.LastAddr, &lastSeen, &dev.Online,
			&dev.UptimeSeconds, &dev.RSSI, &stateJSON, &stateUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}

		if dev.LastSeen, err = parseStoredTime(lastSeen); err != nil {
			return nil, err
		}
		if dev.StateUpdatedAt, err = parseStoredTime(stateUpdatedAt); err != nil {
			return nil, err
		}
		if stateJSON != "" {
			if err := json.Unmarshal([]byte(stateJSON), &dev.State); err != nil {
				return nil, fmt.Errorf("unmarshalling state for %s: %w", dev.ID, err)
			}
		}

		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// StateHistory returns recent state snapshots for one device, newest
// first, up to limit entries.
func (s *SQLiteStore) StateHistory(ctx context.Context, id string, limit int) ([]StateEntry, error) {
	if limit <= 0 || limit > stateHistoryKeep {
		limit = stateHistoryKeep
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT state, recorded_at FROM state_history
		 WHERE device_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	var entries []StateEntry
	for rows.Next() {
		var entry StateEntry
		var stateJSON, recordedAt string
		if err := rows.Scan(&stateJSON, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		if err := json.Unmarshal([]byte(stateJSON), &entry.State); err != nil {
			return nil, fmt.Errorf("unmarshalling state history: %w", err)
		}
		if entry.RecordedAt, err = parseStoredTime(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// StateEntry is one persisted state snapshot.
type StateEntry struct {
	State      map[string]any `json:"state"`
	RecordedAt time.Time      `json:"recorded_at"`
}

func marshalState(state map[string]any) (string, error) {
	if state == nil {
		return "{}", nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshalling state: %w", err)
	}
	return string(data), nil
}

// parseStoredTime accepts the formats SQLite hands back for our
// timestamp columns.
func parseStoredTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("coordinator: unparseable timestamp %q", value)
}
