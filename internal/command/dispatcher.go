package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
)

// Publisher is the outbound transport interface.
// Compatible with mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// DeviceStore is the interface the dispatcher needs from the registry.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*registry.Device, error)
	SetState(ctx context.Context, id string, state registry.State, status string, online bool, ts time.Time) error
}

// Logger defines the logging interface used by the dispatcher.
// Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// commandPayload is the JSON body published on the control topic.
type commandPayload struct {
	Command string `json:"command"`
}

// Dispatcher translates desired device states into control-topic
// commands.
//
// Writes are optimistic: the registry is updated with the expected
// resulting state before the command is published, so the UI reflects
// the intent immediately. The device's next periodic report confirms
// or corrects it. Publish failures are logged and dropped; there is no
// rollback, last write wins.
type Dispatcher struct {
	store  DeviceStore
	pub    Publisher
	logger Logger
	qos    byte

	// now is swappable for tests.
	now func() time.Time
}

// NewDispatcher creates a command dispatcher publishing at the given QoS.
func NewDispatcher(store DeviceStore, pub Publisher, logger Logger, qos byte) *Dispatcher {
	return &Dispatcher{
		store:  store,
		pub:    pub,
		logger: logger,
		qos:    qos,
		now:    time.Now,
	}
}

// Issue commands a device towards the desired binary state: on/off for
// lights and cameras, open/close for curtains, unlock/lock for doors.
//
// Sensor and unrecognised device types have no command vocabulary and
// are ignored without error. The registry write happens first; a
// publish failure after it is logged and dropped.
func (d *Dispatcher) Issue(ctx context.Context, deviceID string, desired bool) error {
	device, err := d.store.GetByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", deviceID, err)
	}

	token, state, ok := tokenFor(device.Type, desired)
	if !ok {
		d.logger.Warn("no command vocabulary for device type",
			"device_id", device.ID,
			"device_type", string(device.Type),
		)
		return nil
	}

	return d.send(ctx, device, token, state)
}

// IssuePosition commands a curtain to a position between 0 (closed)
// and 100 (open) using the SET:<n> token.
func (d *Dispatcher) IssuePosition(ctx context.Context, deviceID string, position int) error {
	if position < 0 || position > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}

	device, err := d.store.GetByID(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("resolving device %s: %w", deviceID, err)
	}

	if device.Type != registry.TypeCurtain && device.Type != registry.TypeWindow {
		return fmt.Errorf("%w: %s", ErrNotPositionable, device.Type)
	}

	token := fmt.Sprintf("SET:%d", position)
	return d.send(ctx, device, token, registry.NumericState(float64(position)))
}

// send applies the optimistic state and publishes the command token on
// the device's control topic.
func (d *Dispatcher) send(ctx context.Context, device *registry.Device, token string, state registry.State) error {
	ts := d.now().UTC()

	if err := d.store.SetState(ctx, device.ID, state, device.Status, device.IsOnline, ts); err != nil {
		return fmt.Errorf("recording desired state for %s: %w", device.ID, err)
	}

	payload, err := json.Marshal(commandPayload{Command: token})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := mqtt.Topics{}.Control(device.Topic)
	if err := d.pub.Publish(topic, payload, d.qos, false); err != nil {
		// The optimistic write stands; the device's next report
		// corrects it if the command never arrived.
		d.logger.Error("publishing command failed",
			"device_id", device.ID,
			"topic", topic,
			"command", token,
			"error", err,
		)
		return nil
	}

	d.logger.Info("command dispatched",
		"device_id", device.ID,
		"topic", topic,
		"command", token,
	)
	return nil
}

// tokenFor maps a device type and desired binary state to the command
// token and the state the device is expected to report back.
func tokenFor(deviceType registry.DeviceType, desired bool) (string, registry.State, bool) {
	switch deviceType {
	case registry.TypeLight:
		if desired {
			return "ON", registry.BoolState(true), true
		}
		return "OFF", registry.BoolState(false), true
	case registry.TypeCurtain, registry.TypeWindow:
		if desired {
			return "OPEN", registry.NumericState(100), true
		}
		return "CLOSE", registry.NumericState(0), true
	case registry.TypeDoor:
		if desired {
			return "UNLOCK", registry.TextState("UNLOCKED"), true
		}
		return "LOCK", registry.TextState("LOCKED"), true
	case registry.TypeCamera:
		if desired {
			return "START", registry.TextState("Active"), true
		}
		return "STOP", registry.TextState("Idle"), true
	}
	return "", registry.State{}, false
}
