package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeviceType identifies what kind of device this is.
// Sensor types (temperature, humidity) report numeric values;
// actuator types (light, curtain, door, camera) accept commands.
type DeviceType string

// Device type constants.
const (
	TypeTemperature DeviceType = "temperature"
	TypeHumidity    DeviceType = "humidity"
	TypeCamera      DeviceType = "camera"
	TypeLight       DeviceType = "light"
	TypeCurtain     DeviceType = "curtain"
	TypeDoor        DeviceType = "door"
	TypeWindow      DeviceType = "window"
)

// ValidDeviceTypes lists all recognised device types.
var ValidDeviceTypes = []DeviceType{
	TypeTemperature,
	TypeHumidity,
	TypeCamera,
	TypeLight,
	TypeCurtain,
	TypeDoor,
	TypeWindow,
}

// IsValid reports whether the device type is recognised.
func (t DeviceType) IsValid() bool {
	for _, valid := range ValidDeviceTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// IsNumericSensor reports whether the type reports numeric measurements.
// Only these types accumulate reading history.
func (t DeviceType) IsNumericSensor() bool {
	return t == TypeTemperature || t == TypeHumidity
}

// StateKind discriminates the representation held in a State.
type StateKind string

// State kinds.
const (
	StateKindBool    StateKind = "bool"
	StateKindText    StateKind = "text"
	StateKindNumeric StateKind = "numeric"
)

// State is a tagged variant holding a device's current state.
// The interpretation depends on the device type: lights and cameras
// carry bool, doors carry text, curtain positions and sensor values
// carry numeric. Read sites match on Kind explicitly rather than
// guessing from the device type.
//
// The zero value is "no state": Kind is empty and IsZero returns true.
type State struct {
	Kind    StateKind
	boolVal bool
	textVal string
	numVal  float64
}

// BoolState returns a State holding a boolean value.
func BoolState(v bool) State {
	return State{Kind: StateKindBool, boolVal: v}
}

// TextState returns a State holding a text value.
func TextState(v string) State {
	return State{Kind: StateKindText, textVal: v}
}

// NumericState returns a State holding a numeric value.
func NumericState(v float64) State {
	return State{Kind: StateKindNumeric, numVal: v}
}

// IsZero reports whether the state has never been set.
func (s State) IsZero() bool {
	return s.Kind == ""
}

// Bool returns the boolean value. The second return is false when the
// state does not hold a bool.
func (s State) Bool() (bool, bool) {
	return s.boolVal, s.Kind == StateKindBool
}

// Text returns the text value. The second return is false when the
// state does not hold text.
func (s State) Text() (string, bool) {
	return s.textVal, s.Kind == StateKindText
}

// Numeric returns the numeric value. The second return is false when
// the state does not hold a number.
func (s State) Numeric() (float64, bool) {
	return s.numVal, s.Kind == StateKindNumeric
}

// String renders the state for display and logging.
func (s State) String() string {
	switch s.Kind {
	case StateKindBool:
		if s.boolVal {
			return "true"
		}
		return "false"
	case StateKindText:
		return s.textVal
	case StateKindNumeric:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", s.numVal), "0"), ".")
	default:
		return ""
	}
}

// stateJSON is the persisted representation of a State.
type stateJSON struct {
	Kind  StateKind       `json:"kind,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON encodes the state as {"kind":..., "value":...}.
// The zero state encodes as {}.
func (s State) MarshalJSON() ([]byte, error) {
	if s.IsZero() {
		return []byte("{}"), nil
	}

	var value any
	switch s.Kind {
	case StateKindBool:
		value = s.boolVal
	case StateKindText:
		value = s.textVal
	case StateKindNumeric:
		value = s.numVal
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshalling state value: %w", err)
	}

	return json.Marshal(stateJSON{Kind: s.Kind, Value: raw})
}

// UnmarshalJSON decodes a persisted state.
func (s *State) UnmarshalJSON(data []byte) error {
	var enc stateJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("unmarshalling state: %w", err)
	}

	if enc.Kind == "" {
		*s = State{}
		return nil
	}

	switch enc.Kind {
	case StateKindBool:
		var v bool
		if err := json.Unmarshal(enc.Value, &v); err != nil {
			return fmt.Errorf("unmarshalling bool state: %w", err)
		}
		*s = BoolState(v)
	case StateKindText:
		var v string
		if err := json.Unmarshal(enc.Value, &v); err != nil {
			return fmt.Errorf("unmarshalling text state: %w", err)
		}
		*s = TextState(v)
	case StateKindNumeric:
		var v float64
		if err := json.Unmarshal(enc.Value, &v); err != nil {
			return fmt.Errorf("unmarshalling numeric state: %w", err)
		}
		*s = NumericState(v)
	default:
		return fmt.Errorf("%w: unknown state kind %q", ErrValidation, enc.Kind)
	}

	return nil
}

// Device represents one physical or simulated sensor/actuator.
//
// Topic correlates inbound messages to the device: at most one device
// may claim a given non-empty topic (enforced by a partial unique
// index). The Synchronization Core mutates State, Status, IsOnline,
// and LastUpdated; users mutate the descriptive fields and issue
// desired-state commands.
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        DeviceType `json:"type"`
	Topic       string     `json:"topic"`
	Location    string     `json:"location"`
	Description string     `json:"description,omitempty"`
	Unit        string     `json:"unit,omitempty"`

	State       State      `json:"state"`
	Status      string     `json:"status"`
	IsOnline    bool       `json:"is_online"`
	IsEnabled   bool       `json:"is_enabled"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`

	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultStatus is assigned to devices before any message arrives.
const DefaultStatus = "Unknown"

// Validate checks device fields for creation and update.
func (d *Device) Validate() error {
	var errs []string

	if d.ID == "" {
		errs = append(errs, "id is required")
	}
	if d.Name == "" {
		errs = append(errs, "name is required")
	}
	if !d.Type.IsValid() {
		errs = append(errs, fmt.Sprintf("type %q is not recognised", d.Type))
	}
	if d.UserID == "" {
		errs = append(errs, "user_id is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(errs, "; "))
	}
	return nil
}

// SensorReading is an immutable timestamped measurement tied to one device.
// Readings are append-only and ordered by timestamp.
type SensorReading struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorThreshold is a per-device optional (min,max) alerting band.
// At most one exists per device. Nil bounds are unset; a freshly
// created default threshold is disabled with both bounds unset.
type SensorThreshold struct {
	ID           int64    `json:"id"`
	DeviceID     string   `json:"device_id"`
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	AlertEnabled bool     `json:"alert_enabled"`
}

// Validate checks the threshold band for consistency.
func (t *SensorThreshold) Validate() error {
	if t.MinValue != nil && t.MaxValue != nil && *t.MinValue > *t.MaxValue {
		return fmt.Errorf("%w: min %v exceeds max %v", ErrInvalidThresholdRange, *t.MinValue, *t.MaxValue)
	}
	return nil
}
