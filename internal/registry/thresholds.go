package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetThreshold retrieves the threshold for a device.
//
// Returns ErrThresholdNotFound if none exists. Get-or-create is a
// deliberate two-step contract: callers that need a threshold to exist
// follow up with CreateDefaultThreshold rather than relying on a
// hidden side effect here.
func (r *SQLiteRepository) GetThreshold(ctx context.Context, deviceID string) (*SensorThreshold, error) {
	query := `
		SELECT id, device_id, min_value, max_value, alert_enabled
		FROM sensor_thresholds
		WHERE device_id = ?`

	threshold, err := scanThreshold(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThresholdNotFound
		}
		return nil, fmt.Errorf("querying threshold: %w", err)
	}
	return threshold, nil
}

// CreateDefaultThreshold inserts a disabled threshold with unset bounds.
//
// Losing a create race is fine: the unique constraint on device_id
// makes the insert a no-op and the existing row is returned.
func (r *SQLiteRepository) CreateDefaultThreshold(ctx context.Context, deviceID string) (*SensorThreshold, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE id = ?", deviceID).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("checking device exists: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: device %q does not exist", ErrValidation, deviceID)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sensor_thresholds (device_id, alert_enabled) VALUES (?, 0)",
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting default threshold: %w", err)
	}

	return r.GetThreshold(ctx, deviceID)
}

// UpdateThreshold replaces a device's threshold band.
func (r *SQLiteRepository) UpdateThreshold(ctx context.Context, threshold *SensorThreshold) error {
	if err := threshold.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE sensor_thresholds
		SET min_value = ?, max_value = ?, alert_enabled = ?
		WHERE device_id = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullableFloat(threshold.MinValue),
		nullableFloat(threshold.MaxValue),
		boolToInt(threshold.AlertEnabled),
		threshold.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("updating threshold: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrThresholdNotFound
	}

	return nil
}

// scanThreshold scans a row or rows result into a SensorThreshold.
func scanThreshold(scanner rowScanner) (*SensorThreshold, error) {
	var t SensorThreshold
	var minValue, maxValue sql.NullFloat64
	var alertEnabled int

	if err := scanner.Scan(&t.ID, &t.DeviceID, &minValue, &maxValue, &alertEnabled); err != nil {
		return nil, err
	}

	if minValue.Valid {
		t.MinValue = &minValue.Float64
	}
	if maxValue.Valid {
		t.MaxValue = &maxValue.Float64
	}
	t.AlertEnabled = alertEnabled != 0

	return &t, nil
}
