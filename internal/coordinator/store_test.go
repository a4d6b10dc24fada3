package coordinator

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the hub schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			class TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			fw TEXT NOT NULL DEFAULT '',
			last_addr TEXT NOT NULL DEFAULT '',
			last_seen TEXT NOT NULL DEFAULT '',
			online INTEGER NOT NULL DEFAULT 0,
			uptime INTEGER NOT NULL DEFAULT 0,
			rssi INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT '{}',
			state_updated_at TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE state_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT '{}',
			recorded_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);
		CREATE INDEX idx_state_history_device ON state_history(device_id, id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testStoredDevice() Device {
	return Device{
		ID:            "lamp1",
		Class:         "switch",
		Name:          "Desk Lamp",
		Firmware:      "1.2.0",
		LastAddr:      "192.168.1.20:5555",
		LastSeen:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Online:        true,
		UptimeSeconds: 3600,
		RSSI:          -61,
		State:         map[string]any{"on": true},
	}
}

func TestSQLiteStore_UpsertAndLoad(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	dev := testStoredDevice()
	if err := store.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("LoadDevices() returned %d devices, want 1", len(devices))
	}

	got := devices[0]
	if got.ID != dev.ID {
		t.Errorf("ID = %q, want %q", got.ID, dev.ID)
	}
	if got.Name != dev.Name {
		t.Errorf("Name = %q, want %q", got.Name, dev.Name)
	}
	if got.Firmware != dev.Firmware {
		t.Errorf("Firmware = %q, want %q", got.Firmware, dev.Firmware)
	}
	if !got.LastSeen.Equal(dev.LastSeen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, dev.LastSeen)
	}
	if !got.Online {
		t.Error("expected persisted device online")
	}
	if got.UptimeSeconds != 3600 {
		t.Errorf("UptimeSeconds = %d, want 3600", got.UptimeSeconds)
	}
	if got.RSSI != -61 {
		t.Errorf("RSSI = %d, want -61", got.RSSI)
	}
	if on, _ := got.State["on"].(bool); !on {
		t.Errorf("State = %v, want on=true", got.State)
	}
}

func TestSQLiteStore_UpsertUpdatesExisting(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	dev := testStoredDevice()
	if err := store.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	dev.Name = "Floor Lamp"
	dev.Online = false
	dev.State = map[string]any{"on": false}
	if err := store.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("second UpsertDevice() error = %v", err)
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("LoadDevices() returned %d devices, want 1 after upsert", len(devices))
	}
	if devices[0].Name != "Floor Lamp" {
		t.Errorf("Name = %q, want updated value", devices[0].Name)
	}
	if devices[0].Online {
		t.Error("expected device offline after update")
	}
}

func TestSQLiteStore_UpsertRequiresID(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.UpsertDevice(context.Background(), Device{}); err == nil {
		t.Error("UpsertDevice() expected error for empty id")
	}
}

func TestSQLiteStore_SetOnline(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.UpsertDevice(ctx, testStoredDevice()); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	if err := store.SetOnline(ctx, "lamp1", false); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}

	devices, err := store.LoadDevices(ctx)
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if devices[0].Online {
		t.Error("expected device offline after SetOnline(false)")
	}
}

func TestSQLiteStore_StateHistory(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.RecordState(ctx, "lamp1", map[string]any{"seq": i})
		if err != nil {
			t.Fatalf("RecordState(%d) error = %v", i, err)
		}
	}

	entries, err := store.StateHistory(ctx, "lamp1", 10)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("StateHistory() returned %d entries, want 3", len(entries))
	}

	// Newest first.
	if seq, _ := entries[0].State["seq"].(float64); seq != 2 {
		t.Errorf("first entry seq = %v, want 2", entries[0].State["seq"])
	}
	if entries[0].RecordedAt.IsZero() {
		t.Error("expected non-zero recorded_at")
	}
}

func TestSQLiteStore_StateHistoryLimit(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.RecordState(ctx, "lamp1", map[string]any{"seq": i}); err != nil {
			t.Fatalf("RecordState(%d) error = %v", i, err)
		}
	}

	entries, err := store.StateHistory(ctx, "lamp1", 2)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("StateHistory() returned %d entries, want 2", len(entries))
	}
}

func TestSQLiteStore_StateHistoryPruned(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	for i := 0; i < stateHistoryKeep+5; i++ {
		if err := store.RecordState(ctx, "lamp1", map[string]any{"seq": i}); err != nil {
			t.Fatalf("RecordState(%d) error = %v", i, err)
		}
	}

	entries, err := store.StateHistory(ctx, "lamp1", 0)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(entries) != stateHistoryKeep {
		t.Errorf("history holds %d entries, want pruned to %d", len(entries), stateHistoryKeep)
	}

	// The oldest entries are the ones pruned.
	if seq, _ := entries[0].State["seq"].(float64); int(seq) != stateHistoryKeep+4 {
		t.Errorf("newest entry seq = %v, want %d", entries[0].State["seq"], stateHistoryKeep+4)
	}
}

func TestSQLiteStore_StateHistoryIsolatedPerDevice(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.RecordState(ctx, "lamp1", map[string]any{"on": true}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}
	if err := store.RecordState(ctx, "lamp2", map[string]any{"on": false}); err != nil {
		t.Fatalf("RecordState() error = %v", err)
	}

	entries, err := store.StateHistory(ctx, "lamp1", 10)
	if err != nil {
		t.Fatalf("StateHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("StateHistory(lamp1) returned %d entries, want 1", len(entries))
	}
}

func TestSQLiteStore_RecordStateRequiresID(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.RecordState(context.Background(), "", nil); err == nil {
		t.Error("RecordState() expected error for empty id")
	}
}

func TestSQLiteStore_LoadDevicesEmpty(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))

	devices, err := store.LoadDevices(context.Background())
	if err != nil {
		t.Fatalf("LoadDevices() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("LoadDevices() returned %d devices, want 0", len(devices))
	}
}

func TestParseStoredTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "RFC3339Nano", input: "2026-08-30T12:00:00.123456789Z"},
		{name: "RFC3339", input: "2026-08-30T12:00:00Z"},
		{name: "sqlite datetime", input: "2026-08-30 12:00:00"},
		{name: "empty means zero", input: ""},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStoredTime(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStoredTime(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.input == "" && !got.IsZero() {
				t.Error("empty input should produce the zero time")
			}
		})
	}
}
