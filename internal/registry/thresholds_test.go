package registry

import (
	"context"
	"errors"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestGetThresholdNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/temperature", TypeTemperature)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := repo.GetThreshold(ctx, "dev-1")
	if !errors.Is(err, ErrThresholdNotFound) {
		t.Errorf("expected ErrThresholdNotFound, got %v", err)
	}
}

func TestCreateDefaultThreshold(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/temperature", TypeTemperature)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	th, err := repo.CreateDefaultThreshold(ctx, "dev-1")
	if err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}
	if th.AlertEnabled {
		t.Error("default threshold should be disabled")
	}
	if th.MinValue != nil || th.MaxValue != nil {
		t.Errorf("default bounds should be unset, got min=%v max=%v", th.MinValue, th.MaxValue)
	}

	// A second create returns the existing row, not a duplicate.
	again, err := repo.CreateDefaultThreshold(ctx, "dev-1")
	if err != nil {
		t.Fatalf("second CreateDefaultThreshold failed: %v", err)
	}
	if again.ID != th.ID {
		t.Errorf("second create returned row %d, want existing %d", again.ID, th.ID)
	}
}

func TestCreateDefaultThresholdUnknownDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)

	_, err := repo.CreateDefaultThreshold(context.Background(), "missing")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestUpdateThreshold(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/temperature", TypeTemperature)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.CreateDefaultThreshold(ctx, "dev-1"); err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}

	th := &SensorThreshold{
		DeviceID:     "dev-1",
		MinValue:     floatPtr(18),
		MaxValue:     floatPtr(26),
		AlertEnabled: true,
	}
	if err := repo.UpdateThreshold(ctx, th); err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}

	got, err := repo.GetThreshold(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if got.MinValue == nil || *got.MinValue != 18 {
		t.Errorf("MinValue = %v, want 18", got.MinValue)
	}
	if got.MaxValue == nil || *got.MaxValue != 26 {
		t.Errorf("MaxValue = %v, want 26", got.MaxValue)
	}
	if !got.AlertEnabled {
		t.Error("expected AlertEnabled true")
	}
}

func TestUpdateThresholdInvalidRange(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/temperature", TypeTemperature)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.CreateDefaultThreshold(ctx, "dev-1"); err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}

	th := &SensorThreshold{
		DeviceID:     "dev-1",
		MinValue:     floatPtr(30),
		MaxValue:     floatPtr(20),
		AlertEnabled: true,
	}
	err := repo.UpdateThreshold(ctx, th)
	if !errors.Is(err, ErrInvalidThresholdRange) {
		t.Errorf("expected ErrInvalidThresholdRange, got %v", err)
	}

	// State unchanged after the rejected edit.
	got, getErr := repo.GetThreshold(ctx, "dev-1")
	if getErr != nil {
		t.Fatalf("GetThreshold failed: %v", getErr)
	}
	if got.MinValue != nil || got.MaxValue != nil || got.AlertEnabled {
		t.Errorf("rejected edit mutated threshold: %+v", got)
	}
}

func TestUpdateThresholdNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/temperature", TypeTemperature)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	th := &SensorThreshold{DeviceID: "dev-1", AlertEnabled: true}
	if err := repo.UpdateThreshold(ctx, th); !errors.Is(err, ErrThresholdNotFound) {
		t.Errorf("expected ErrThresholdNotFound, got %v", err)
	}
}

func TestUpdateThresholdSingleBound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t), 0)
	ctx := context.Background()

	dev := testDevice("dev-1", "home/livingroom/humidity", TypeHumidity)
	if err := repo.Create(ctx, dev); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := repo.CreateDefaultThreshold(ctx, "dev-1"); err != nil {
		t.Fatalf("CreateDefaultThreshold failed: %v", err)
	}

	// Only a max bound; min stays unset and validation passes.
	th := &SensorThreshold{DeviceID: "dev-1", MaxValue: floatPtr(60), AlertEnabled: true}
	if err := repo.UpdateThreshold(ctx, th); err != nil {
		t.Fatalf("UpdateThreshold failed: %v", err)
	}

	got, err := repo.GetThreshold(ctx, "dev-1")
	if err != nil {
		t.Fatalf("GetThreshold failed: %v", err)
	}
	if got.MinValue != nil {
		t.Errorf("MinValue = %v, want nil", got.MinValue)
	}
	if got.MaxValue == nil || *got.MaxValue != 60 {
		t.Errorf("MaxValue = %v, want 60", got.MaxValue)
	}
}
