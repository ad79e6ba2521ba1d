package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lumahome/luma-core/internal/auth"
	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
)

// Default credentials for the seeded demo account.
const (
	DefaultUsername = "test"
	DefaultPassword = "test123"
)

// DeviceStore is the interface the seeder needs from the registry.
type DeviceStore interface {
	GetByTopic(ctx context.Context, topic string) (*registry.Device, error)
	Create(ctx context.Context, device *registry.Device) error
	CreateDefaultThreshold(ctx context.Context, deviceID string) (*registry.SensorThreshold, error)
	UpdateThreshold(ctx context.Context, threshold *registry.SensorThreshold) error
}

// UserStore is the interface the seeder needs from the user repository.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
	Create(ctx context.Context, user *auth.User) error
}

// Logger defines the logging interface used by the seeder.
type Logger interface {
	Info(msg string, args ...any)
}

// band is an alerting range applied to a seeded sensor.
type band struct {
	min, max float64
}

// deviceSpec describes one device in the demo home.
type deviceSpec struct {
	name        string
	deviceType  registry.DeviceType
	location    string
	description string
	unit        string
	state       registry.State
	alerts      *band
}

// Seeder populates a fresh database with a demo account and a
// plausible household of devices. Running it again is a no-op for
// anything that already exists, so it is safe on a live database.
type Seeder struct {
	users   UserStore
	devices DeviceStore
	logger  Logger
}

// New creates a seeder.
func New(users UserStore, devices DeviceStore, logger Logger) *Seeder {
	return &Seeder{users: users, devices: devices, logger: logger}
}

// Run seeds the demo account and device roster. Existing users and
// devices (matched by topic) are left untouched, including any
// threshold edits made since they were created.
func (s *Seeder) Run(ctx context.Context) error {
	user, err := s.ensureUser(ctx)
	if err != nil {
		return err
	}

	var created, skipped int
	for _, spec := range roster() {
		topic := mqtt.Topics{}.DeviceState(locationSlug(spec.location), string(spec.deviceType))

		_, err := s.devices.GetByTopic(ctx, topic)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, registry.ErrDeviceNotFound) {
			return fmt.Errorf("checking topic %s: %w", topic, err)
		}

		device := &registry.Device{
			ID:          uuid.NewString(),
			Name:        spec.name,
			Type:        spec.deviceType,
			Topic:       topic,
			Location:    spec.location,
			Description: spec.description,
			Unit:        spec.unit,
			State:       spec.state,
			IsEnabled:   true,
			UserID:      user.ID,
		}
		if err := s.devices.Create(ctx, device); err != nil {
			return fmt.Errorf("creating device %s: %w", spec.name, err)
		}

		if spec.alerts != nil {
			if err := s.applyAlerts(ctx, device.ID, *spec.alerts); err != nil {
				return err
			}
		}
		created++
	}

	s.logger.Info("seeding complete",
		"username", user.Username,
		"devices_created", created,
		"devices_existing", skipped,
	)
	return nil
}

// ensureUser returns the demo account, creating it on first run.
func (s *Seeder) ensureUser(ctx context.Context) (*auth.User, error) {
	user, err := s.users.GetByUsername(ctx, DefaultUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return nil, fmt.Errorf("looking up seed account: %w", err)
	}

	hash, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing seed password: %w", err)
	}

	user = &auth.User{Username: DefaultUsername, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating seed account: %w", err)
	}

	s.logger.Info("created demo account", "username", user.Username)
	return user, nil
}

// applyAlerts enables alerting on a freshly seeded sensor.
func (s *Seeder) applyAlerts(ctx context.Context, deviceID string, b band) error {
	if _, err := s.devices.CreateDefaultThreshold(ctx, deviceID); err != nil {
		return fmt.Errorf("creating threshold for %s: %w", deviceID, err)
	}

	threshold := &registry.SensorThreshold{
		DeviceID:     deviceID,
		MinValue:     &b.min,
		MaxValue:     &b.max,
		AlertEnabled: true,
	}
	if err := s.devices.UpdateThreshold(ctx, threshold); err != nil {
		return fmt.Errorf("setting threshold for %s: %w", deviceID, err)
	}
	return nil
}

// locationSlug converts a display location to its topic segment.
func locationSlug(location string) string {
	return strings.ToLower(strings.ReplaceAll(location, " ", "_"))
}

// roster is the demo household: sensors with alert bands plus the
// actuators the dashboard controls. Temperature bands are 18-26 C,
// humidity 30-60%.
func roster() []deviceSpec {
	tempBand := &band{min: 18, max: 26}
	humidityBand := &band{min: 30, max: 60}

	var specs []deviceSpec

	type room struct {
		name        string
		temperature float64
		humidity    float64
		curtainOpen bool
	}
	rooms := []room{
		{name: "Living Room", temperature: 22.0, humidity: 45.0, curtainOpen: false},
		{name: "Master Bedroom", temperature: 21.0, humidity: 40.0, curtainOpen: true},
		{name: "Kid1 Bedroom", temperature: 21.5, humidity: 42.0, curtainOpen: false},
		{name: "Kid2 Bedroom", temperature: 21.5, humidity: 42.0, curtainOpen: false},
	}

	for _, r := range rooms {
		curtainState := registry.NumericState(0)
		if r.curtainOpen {
			curtainState = registry.NumericState(100)
		}
		specs = append(specs,
			deviceSpec{
				name:        r.name + " Temperature Sensor",
				deviceType:  registry.TypeTemperature,
				location:    r.name,
				description: "Temperature sensor for " + r.name,
				unit:        "°C",
				state:       registry.NumericState(r.temperature),
				alerts:      tempBand,
			},
			deviceSpec{
				name:        r.name + " Humidity Sensor",
				deviceType:  registry.TypeHumidity,
				location:    r.name,
				description: "Humidity sensor for " + r.name,
				unit:        "%",
				state:       registry.NumericState(r.humidity),
				alerts:      humidityBand,
			},
			deviceSpec{
				name:        r.name + " Curtain Control",
				deviceType:  registry.TypeCurtain,
				location:    r.name,
				description: "Curtain control for " + r.name,
				state:       curtainState,
			},
		)
	}

	specs = append(specs,
		deviceSpec{
			name:        "Living Room Camera",
			deviceType:  registry.TypeCamera,
			location:    "Living Room",
			description: "Security camera for Living Room",
			state:       registry.TextState("Idle"),
		},
		deviceSpec{
			name:        "Living Room Light",
			deviceType:  registry.TypeLight,
			location:    "Living Room",
			description: "Main light for Living Room",
			state:       registry.BoolState(false),
		},
		deviceSpec{
			name:        "Outside Camera",
			deviceType:  registry.TypeCamera,
			location:    "Outside",
			description: "Security camera for Outside",
			state:       registry.TextState("Idle"),
		},
		deviceSpec{
			name:        "Front Door Lock",
			deviceType:  registry.TypeDoor,
			location:    "Outside",
			description: "Smart lock on the front door",
			state:       registry.TextState("LOCKED"),
		},
	)

	return specs
}
