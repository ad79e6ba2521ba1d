package seed

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumahome/luma-core/internal/auth"
	"github.com/lumahome/luma-core/internal/registry"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

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

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestSeeder(t *testing.T) (*Seeder, *registry.SQLiteRepository, *auth.SQLiteUserRepository) {
	t.Helper()

	db := setupTestDB(t)
	devices := registry.NewSQLiteRepository(db, 100)
	users := auth.NewSQLiteUserRepository(db)
	return New(users, devices, noopLogger{}), devices, users
}

func TestRunCreatesAccountAndRoster(t *testing.T) {
	seeder, devices, users := newTestSeeder(t)
	ctx := context.Background()

	if err := seeder.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	user, err := users.GetByUsername(ctx, DefaultUsername)
	if err != nil {
		t.Fatalf("demo account missing: %v", err)
	}
	ok, err := auth.VerifyPassword(DefaultPassword, user.PasswordHash)
	if err != nil || !ok {
		t.Errorf("demo password does not verify: ok=%v err=%v", ok, err)
	}

	all, err := devices.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 16 {
		t.Errorf("seeded %d devices, want 16", len(all))
	}

	temp, err := devices.GetByTopic(ctx, "home/living_room/temperature")
	if err != nil {
		t.Fatalf("living room temperature sensor missing: %v", err)
	}
	if temp.Unit != "°C" {
		t.Errorf("Unit = %q, want °C", temp.Unit)
	}
	if v, ok := temp.State.Numeric(); !ok || v != 22.0 {
		t.Errorf("initial state = %v, want numeric 22", temp.State)
	}

	threshold, err := devices.GetThreshold(ctx, temp.ID)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if !threshold.AlertEnabled {
		t.Error("seeded sensor threshold should be enabled")
	}
	if threshold.MinValue == nil || *threshold.MinValue != 18 {
		t.Errorf("MinValue = %v, want 18", threshold.MinValue)
	}
	if threshold.MaxValue == nil || *threshold.MaxValue != 26 {
		t.Errorf("MaxValue = %v, want 26", threshold.MaxValue)
	}

	if _, err := devices.GetByTopic(ctx, "home/outside/camera"); err != nil {
		t.Errorf("outside camera missing: %v", err)
	}
	if _, err := devices.GetByTopic(ctx, "home/outside/door"); err != nil {
		t.Errorf("front door lock missing: %v", err)
	}

	// Actuators have no alert bands.
	curtain, err := devices.GetByTopic(ctx, "home/master_bedroom/curtain")
	if err != nil {
		t.Fatalf("master bedroom curtain missing: %v", err)
	}
	if v, ok := curtain.State.Numeric(); !ok || v != 100 {
		t.Errorf("curtain state = %v, want numeric 100 (open)", curtain.State)
	}
	if _, err := devices.GetThreshold(ctx, curtain.ID); err == nil {
		t.Error("actuators should not get a seeded threshold")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	seeder, devices, _ := newTestSeeder(t)
	ctx := context.Background()

	if err := seeder.Run(ctx); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Simulate a user tightening a band between runs.
	temp, err := devices.GetByTopic(ctx, "home/living_room/temperature")
	if err != nil {
		t.Fatalf("GetByTopic failed: %v", err)
	}
	min, max := 20.0, 24.0
	err = devices.UpdateThreshold(ctx, &registry.SensorThreshold{
		DeviceID:     temp.ID,
		MinValue:     &min,
		MaxValue:     &max,
		AlertEnabled: true,
	})
	if err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}

	if err := seeder.Run(ctx); err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	all, err := devices.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 16 {
		t.Errorf("device count after re-run = %d, want 16", len(all))
	}

	threshold, err := devices.GetThreshold(ctx, temp.ID)
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if threshold.MinValue == nil || *threshold.MinValue != 20 {
		t.Errorf("re-run overwrote threshold: MinValue = %v, want 20", threshold.MinValue)
	}
}
