package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendReading records a numeric measurement for a device.
//
// The existence check, insert, and retention prune run in a single
// transaction so a concurrent device delete cannot orphan the row and
// the cap is never transiently exceeded.
func (r *SQLiteRepository) AppendReading(ctx context.Context, deviceID string, value float64, ts time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var count int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices WHERE id = ?", deviceID).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking device exists: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: device %q does not exist", ErrValidation, deviceID)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO sensor_readings (device_id, value, timestamp) VALUES (?, ?, ?)",
		deviceID,
		value,
		ts.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	if r.maxReadings > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM sensor_readings
			WHERE device_id = ?
			AND id NOT IN (
				SELECT id FROM sensor_readings
				WHERE device_id = ?
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)`,
			deviceID, deviceID, r.maxReadings,
		)
		if err != nil {
			return fmt.Errorf("pruning readings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reading: %w", err)
	}

	return nil
}

// LatestReading returns the most recent reading for a device.
// Returns (nil, nil) when the device has no readings.
func (r *SQLiteRepository) LatestReading(ctx context.Context, deviceID string) (*SensorReading, error) {
	query := `
		SELECT id, device_id, value, timestamp
		FROM sensor_readings
		WHERE device_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	return reading, nil
}

// ReadingsSince returns readings at or after the cutoff, oldest first.
func (r *SQLiteRepository) ReadingsSince(ctx context.Context, deviceID string, since time.Time) ([]SensorReading, error) {
	query := `
		SELECT id, device_id, value, timestamp
		FROM sensor_readings
		WHERE device_id = ? AND timestamp >= ?
		ORDER BY timestamp, id`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []SensorReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// ReadingCount returns the number of stored readings for a device.
func (r *SQLiteRepository) ReadingCount(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sensor_readings WHERE device_id = ?",
		deviceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting readings: %w", err)
	}
	return count, nil
}

// scanReading scans a row or rows result into a SensorReading.
func scanReading(scanner rowScanner) (*SensorReading, error) {
	var reading SensorReading
	var timestamp string

	if err := scanner.Scan(&reading.ID, &reading.DeviceID, &reading.Value, &timestamp); err != nil {
		return nil, err
	}

	var err error
	reading.Timestamp, err = time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", err)
	}

	return &reading, nil
}
