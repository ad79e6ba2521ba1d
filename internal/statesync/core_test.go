package statesync

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			unit TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'Unknown',
			is_online INTEGER NOT NULL DEFAULT 0,
			is_enabled INTEGER NOT NULL DEFAULT 1,
			last_updated TEXT,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE UNIQUE INDEX idx_devices_topic ON devices(topic) WHERE topic != '';
		CREATE TABLE sensor_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			value REAL NOT NULL,
			timestamp TEXT NOT NULL
		) STRICT;
		CREATE TABLE sensor_thresholds (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL UNIQUE REFERENCES devices(id) ON DELETE CASCADE,
			min_value REAL,
			max_value REAL,
			alert_enabled INTEGER NOT NULL DEFAULT 0
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(
		"INSERT INTO users (id, username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"user-1", "test", "hash", now, now,
	); err != nil {
		db.Close()
		t.Fatalf("failed to insert test user: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// eventRecorder collects events emitted by the core.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) byKind(kind EventKind) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestCore(t *testing.T) (*Core, *registry.SQLiteRepository, *eventRecorder) {
	t.Helper()

	repo := registry.NewSQLiteRepository(setupTestDB(t), 100)
	core := NewCore(repo, noopLogger{}, nil, 1)

	rec := &eventRecorder{}
	core.Subscribe(rec.record)

	return core, repo, rec
}

func createDevice(t *testing.T, repo *registry.SQLiteRepository, id, topic string, deviceType registry.DeviceType) *registry.Device {
	t.Helper()

	dev := &registry.Device{
		ID:        id,
		Name:      id,
		Type:      deviceType,
		Topic:     topic,
		Location:  "kitchen",
		IsEnabled: true,
		UserID:    "user-1",
	}
	if err := repo.Create(context.Background(), dev); err != nil {
		t.Fatalf("creating device: %v", err)
	}
	return dev
}

func floatPtr(v float64) *float64 { return &v }

func TestKitchenHumidityScenario(t *testing.T) {
	core, repo, rec := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "kitchen-humidity", "home/kitchen/humidity", registry.TypeHumidity)

	core.process(ctx, inboundMessage{
		topic:   "home/kitchen/humidity",
		payload: []byte(`{"value":"48","status":"Online"}`),
	})

	dev, err := repo.GetByID(ctx, "kitchen-humidity")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if v, ok := dev.State.Numeric(); !ok || v != 48 {
		t.Errorf("State = %v, want numeric 48", dev.State)
	}
	if dev.Status != "Online" {
		t.Errorf("Status = %q, want Online", dev.Status)
	}
	if !dev.IsOnline {
		t.Error("expected IsOnline true")
	}

	count, err := repo.ReadingCount(ctx, "kitchen-humidity")
	if err != nil {
		t.Fatalf("ReadingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("reading count = %d, want 1", count)
	}
	latest, err := repo.LatestReading(ctx, "kitchen-humidity")
	if err != nil {
		t.Fatalf("LatestReading failed: %v", err)
	}
	if latest.Value != 48.0 {
		t.Errorf("reading value = %v, want 48.0", latest.Value)
	}

	if alerts := rec.byKind(EventAlert); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d", len(alerts))
	}
	changes := rec.byKind(EventStateChanged)
	if len(changes) != 1 {
		t.Fatalf("expected 1 state_changed event, got %d", len(changes))
	}
	if changes[0].Device.ID != "kitchen-humidity" {
		t.Errorf("event device = %q", changes[0].Device.ID)
	}
}

func TestUnknownTopicDropped(t *testing.T) {
	core, repo, rec := newTestCore(t)
	ctx := context.Background()

	existing := createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)

	core.process(ctx, inboundMessage{
		topic:   "home/garage/temperature",
		payload: []byte(`{"value":12.5,"status":"Online"}`),
	})

	// No events, and the existing device is untouched.
	if events := rec.all(); len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
	after, err := repo.GetByID(ctx, existing.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !after.State.IsZero() || after.LastUpdated != nil {
		t.Errorf("unrelated device mutated: %+v", after)
	}
}

func TestMalformedPayloadLeavesStateUntouched(t *testing.T) {
	core, repo, rec := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)

	prior := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.SetState(ctx, "dev-1", registry.NumericState(20), "Online", true, prior); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	payloads := [][]byte{
		[]byte(`this is not json`),
		[]byte(`{"status":"Online"}`),        // missing value for a numeric sensor
		[]byte(`{"value":"warm","status"`),   // truncated
		[]byte(`{"value":"warm","status":"Online"}`), // non-numeric value
	}
	for _, payload := range payloads {
		core.process(ctx, inboundMessage{topic: "home/livingroom/temperature", payload: payload})
	}

	dev, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if v, ok := dev.State.Numeric(); !ok || v != 20 {
		t.Errorf("State = %v, want prior numeric 20", dev.State)
	}
	if !dev.LastUpdated.Equal(prior) {
		t.Errorf("LastUpdated = %v, want prior %v", dev.LastUpdated, prior)
	}

	if events := rec.all(); len(events) != 0 {
		t.Errorf("expected no events for malformed payloads, got %d", len(events))
	}

	count, err := repo.ReadingCount(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ReadingCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("reading count = %d, want 0", count)
	}
}

func TestAlertEmittedAfterPersistence(t *testing.T) {
	core, repo, rec := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)
	if _, err := repo.CreateDefaultThreshold(ctx, "dev-1"); err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}
	th := &registry.SensorThreshold{
		DeviceID:     "dev-1",
		MinValue:     floatPtr(18),
		MaxValue:     floatPtr(26),
		AlertEnabled: true,
	}
	if err := repo.UpdateThreshold(ctx, th); err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}

	core.process(ctx, inboundMessage{
		topic:   "home/livingroom/temperature",
		payload: []byte(`{"value":30.5,"status":"Online"}`),
	})

	alerts := rec.byKind(EventAlert)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert event, got %d", len(alerts))
	}
	if alerts[0].Alert == nil || alerts[0].Alert.Outcome != "above_max" {
		t.Errorf("alert = %+v, want above_max", alerts[0].Alert)
	}

	// Persistence happened regardless of the alert.
	count, err := repo.ReadingCount(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ReadingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("reading count = %d, want 1", count)
	}

	if changes := rec.byKind(EventStateChanged); len(changes) != 1 {
		t.Errorf("expected 1 state_changed event, got %d", len(changes))
	}
}

func TestInvalidThresholdNeverFiresFalseAlert(t *testing.T) {
	db := setupTestDB(t)
	repo := registry.NewSQLiteRepository(db, 100)
	core := NewCore(repo, noopLogger{}, nil, 1)
	rec := &eventRecorder{}
	core.Subscribe(rec.record)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)
	if _, err := repo.CreateDefaultThreshold(ctx, "dev-1"); err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}
	// Write an inconsistent band directly; UpdateThreshold rejects it.
	if _, err := db.Exec(
		"UPDATE sensor_thresholds SET min_value = 30, max_value = 20, alert_enabled = 1 WHERE device_id = 'dev-1'",
	); err != nil {
		t.Fatalf("forcing inconsistent band: %v", err)
	}

	core.process(ctx, inboundMessage{
		topic:   "home/livingroom/temperature",
		payload: []byte(`{"value":25,"status":"Online"}`),
	})

	if alerts := rec.byKind(EventAlert); len(alerts) != 0 {
		t.Errorf("inconsistent band fired %d alerts", len(alerts))
	}
	// The reading is still persisted.
	count, err := repo.ReadingCount(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ReadingCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("reading count = %d, want 1", count)
	}
}

func TestThresholdCreatedLazilyOnFirstReading(t *testing.T) {
	core, repo, _ := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/kitchen/humidity", registry.TypeHumidity)

	core.process(ctx, inboundMessage{
		topic:   "home/kitchen/humidity",
		payload: []byte(`{"value":48,"status":"Online"}`),
	})

	th, err := repo.GetThreshold(ctx, "dev-1")
	if err != nil {
		t.Fatalf("expected default threshold to exist: %v", err)
	}
	if th.AlertEnabled {
		t.Error("lazily created threshold should be disabled")
	}
}

func TestActuatorStatesAndNoReadings(t *testing.T) {
	core, repo, _ := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "light-1", "home/livingroom/light", registry.TypeLight)
	createDevice(t, repo, "door-1", "home/hall/door", registry.TypeDoor)

	core.process(ctx, inboundMessage{
		topic:   "home/livingroom/light",
		payload: []byte(`{"value":true,"status":"Active"}`),
	})
	core.process(ctx, inboundMessage{
		topic:   "home/hall/door",
		payload: []byte(`{"value":"LOCKED","status":"Secure"}`),
	})

	light, err := repo.GetByID(ctx, "light-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if v, ok := light.State.Bool(); !ok || !v {
		t.Errorf("light state = %v, want bool true", light.State)
	}

	door, err := repo.GetByID(ctx, "door-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if v, ok := door.State.Text(); !ok || v != "LOCKED" {
		t.Errorf("door state = %v, want text LOCKED", door.State)
	}

	// Actuators never grow reading history.
	for _, id := range []string{"light-1", "door-1"} {
		count, err := repo.ReadingCount(ctx, id)
		if err != nil {
			t.Fatalf("ReadingCount failed: %v", err)
		}
		if count != 0 {
			t.Errorf("%s reading count = %d, want 0", id, count)
		}
	}
}

func TestIdempotentReplay(t *testing.T) {
	core, repo, _ := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)

	payload := []byte(`{"value":21.5,"status":"Online","timestamp":"2026-03-01T12:00:00Z"}`)
	core.process(ctx, inboundMessage{topic: "home/livingroom/temperature", payload: payload})
	first, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	core.process(ctx, inboundMessage{topic: "home/livingroom/temperature", payload: payload})
	second, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if first.State != second.State ||
		first.Status != second.Status ||
		!first.LastUpdated.Equal(*second.LastUpdated) {
		t.Errorf("replay diverged: first=%+v second=%+v", first, second)
	}
}

func TestControlAndSystemTopicsIgnored(t *testing.T) {
	core, repo, rec := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "light-1", "home/livingroom/light", registry.TypeLight)

	core.process(ctx, inboundMessage{
		topic:   "home/livingroom/light/control",
		payload: []byte(`{"command":"ON"}`),
	})
	core.process(ctx, inboundMessage{
		topic:   "home/system/status",
		payload: []byte(`{"status":"online","client_id":"luma-core"}`),
	})

	if events := rec.all(); len(events) != 0 {
		t.Errorf("expected no events for control/system topics, got %d", len(events))
	}
	dev, err := repo.GetByID(ctx, "light-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !dev.State.IsZero() {
		t.Errorf("control message mutated device state: %v", dev.State)
	}
}

func TestEnvelopeTimestampPreferred(t *testing.T) {
	core, repo, _ := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/livingroom/temperature", registry.TypeTemperature)

	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	core.process(ctx, inboundMessage{
		topic:   "home/livingroom/temperature",
		payload: []byte(`{"value":19.5,"status":"Online","timestamp":"2026-03-01T09:30:00Z"}`),
	})

	dev, err := repo.GetByID(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !dev.LastUpdated.Equal(want) {
		t.Errorf("LastUpdated = %v, want envelope timestamp %v", dev.LastUpdated, want)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	core, repo, _ := newTestCore(t)
	ctx := context.Background()

	createDevice(t, repo, "dev-1", "home/kitchen/humidity", registry.TypeHumidity)

	rec := &eventRecorder{}
	unsubscribe := core.Subscribe(rec.record)

	core.process(ctx, inboundMessage{
		topic:   "home/kitchen/humidity",
		payload: []byte(`{"value":40,"status":"Online"}`),
	})
	if len(rec.all()) == 0 {
		t.Fatal("expected events before unsubscribe")
	}

	before := len(rec.all())
	unsubscribe()

	core.process(ctx, inboundMessage{
		topic:   "home/kitchen/humidity",
		payload: []byte(`{"value":41,"status":"Online"}`),
	})
	if len(rec.all()) != before {
		t.Error("events delivered after unsubscribe")
	}
}

// fakeSubscriber captures the handler registered by Start.
type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.qos = qos
	f.handler = handler
	return nil
}

func TestStartDispatchesSequentially(t *testing.T) {
	core, repo, _ := newTestCore(t)

	createDevice(t, repo, "dev-1", "home/kitchen/humidity", registry.TypeHumidity)

	delivered := make(chan Event, 16)
	core.Subscribe(func(e Event) { delivered <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := &fakeSubscriber{}
	if err := core.Start(ctx, sub); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if sub.topic != "home/#" {
		t.Errorf("subscribed to %q, want home/#", sub.topic)
	}

	for _, v := range []string{"40", "41", "42"} {
		if err := sub.handler("home/kitchen/humidity", []byte(`{"value":`+v+`,"status":"Online"}`)); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
	}

	var values []float64
	timeout := time.After(2 * time.Second)
	for len(values) < 3 {
		select {
		case e := <-delivered:
			if e.Kind == EventStateChanged {
				v, _ := e.Device.State.Numeric()
				values = append(values, v)
			}
		case <-timeout:
			t.Fatalf("timed out, got %v", values)
		}
	}

	// Same-topic ordering is preserved through the queue.
	for i, want := range []float64{40, 41, 42} {
		if values[i] != want {
			t.Errorf("values[%d] = %v, want %v", i, values[i], want)
		}
	}

	cancel()
	select {
	case <-core.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("core did not stop after cancel")
	}
}
