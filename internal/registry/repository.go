package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the persistence contract for devices, readings,
// and thresholds. Every operation is a transactional unit: it either
// fully applies or not at all, and concurrent readers never observe a
// partially-updated row.
type Repository interface {
	// GetByTopic retrieves the device claiming an inbound topic.
	// Returns ErrDeviceNotFound if no device claims it.
	GetByTopic(ctx context.Context, topic string) (*Device, error)

	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices ordered by location then name.
	List(ctx context.Context) ([]Device, error)

	// ListByUser retrieves all devices owned by a user.
	ListByUser(ctx context.Context, userID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the ID is taken, ErrTopicInUse if
	// another device claims the same non-empty topic.
	Create(ctx context.Context, device *Device) error

	// Update modifies a device's descriptive fields.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device and, via cascade, its readings and threshold.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// SetState updates only the synchronised fields of a device:
	// state, status, online flag, and last-updated timestamp.
	// Idempotent: applying the same arguments twice leaves identical
	// persisted state. Returns ErrDeviceNotFound if the device does
	// not exist.
	SetState(ctx context.Context, id string, state State, status string, online bool, ts time.Time) error

	// AppendReading records a numeric measurement for a device and
	// prunes history beyond the retention cap in the same transaction.
	// Returns ErrValidation if the device does not exist.
	AppendReading(ctx context.Context, deviceID string, value float64, ts time.Time) error

	// LatestReading returns the most recent reading for a device, or
	// nil if the device has no readings.
	LatestReading(ctx context.Context, deviceID string) (*SensorReading, error)

	// ReadingsSince returns readings at or after the cutoff, oldest first.
	ReadingsSince(ctx context.Context, deviceID string, since time.Time) ([]SensorReading, error)

	// GetThreshold retrieves the threshold for a device.
	// Returns ErrThresholdNotFound if none exists; callers that need
	// get-or-create follow up with CreateDefaultThreshold.
	GetThreshold(ctx context.Context, deviceID string) (*SensorThreshold, error)

	// CreateDefaultThreshold inserts a disabled threshold with unset
	// bounds for a device. If a threshold already exists (including a
	// concurrent create) the existing row is returned.
	CreateDefaultThreshold(ctx context.Context, deviceID string) (*SensorThreshold, error)

	// UpdateThreshold replaces a device's threshold band.
	// Returns ErrInvalidThresholdRange if min exceeds max, and
	// ErrThresholdNotFound if no threshold exists for the device.
	UpdateThreshold(ctx context.Context, threshold *SensorThreshold) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB

	// maxReadings caps the stored readings per device.
	// 0 disables pruning.
	maxReadings int
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// maxReadings caps per-device reading history; 0 disables pruning.
func NewSQLiteRepository(db *sql.DB, maxReadings int) *SQLiteRepository {
	return &SQLiteRepository{db: db, maxReadings: maxReadings}
}

const deviceColumns = `id, name, type, topic, location, description, unit,
	state, status, is_online, is_enabled, last_updated, user_id, created_at, updated_at`

// GetByTopic retrieves the device claiming an inbound topic.
func (r *SQLiteRepository) GetByTopic(ctx context.Context, topic string) (*Device, error) {
	if topic == "" {
		return nil, ErrDeviceNotFound
	}

	query := `SELECT ` + deviceColumns + ` FROM devices WHERE topic = ?`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, topic))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by topic: %w", err)
	}
	return device, nil
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	device, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by location then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY location, name`
	return r.queryDevices(ctx, query)
}

// ListByUser retrieves all devices owned by a user.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = ? ORDER BY location, name`
	return r.queryDevices(ctx, query, userID)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(device.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	if device.Status == "" {
		device.Status = DefaultStatus
	}

	query := `
		INSERT INTO devices (
			id, name, type, topic, location, description, unit,
			state, status, is_online, is_enabled, last_updated, user_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		string(device.Type),
		device.Topic,
		device.Location,
		device.Description,
		device.Unit,
		string(stateJSON),
		device.Status,
		boolToInt(device.IsOnline),
		boolToInt(device.IsEnabled),
		nullableTime(device.LastUpdated),
		device.UserID,
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "devices.id") {
				return ErrDeviceExists
			}
			return ErrTopicInUse
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies a device's descriptive fields. State fields are
// written through SetState, not here.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, type = ?, topic = ?, location = ?, description = ?,
			unit = ?, is_enabled = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.Name,
		string(device.Type),
		device.Topic,
		device.Location,
		device.Description,
		device.Unit,
		boolToInt(device.IsEnabled),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTopicInUse
		}
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device. Readings and thresholds cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// SetState updates only the synchronised fields of a device.
func (r *SQLiteRepository) SetState(ctx context.Context, id string, state State, status string, online bool, ts time.Time) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}
	if status == "" {
		status = DefaultStatus
	}

	query := `
		UPDATE devices
		SET state = ?, status = ?, is_online = ?, last_updated = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		status,
		boolToInt(online),
		ts.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// queryDevices executes a query and returns a slice of devices.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var stateJSON string
	var isOnline, isEnabled int
	var lastUpdated sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&deviceType,
		&d.Topic,
		&d.Location,
		&d.Description,
		&d.Unit,
		&stateJSON,
		&d.Status,
		&isOnline,
		&isEnabled,
		&lastUpdated,
		&d.UserID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.IsOnline = isOnline != 0
	d.IsEnabled = isEnabled != 0

	if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	if lastUpdated.Valid {
		t, parseErr := time.Parse(time.RFC3339, lastUpdated.String)
		if parseErr == nil {
			d.LastUpdated = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableFloat returns a sql.NullFloat64 for optional float pointers.
func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
