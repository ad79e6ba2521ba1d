package statesync

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/lumahome/luma-core/internal/registry"
)

// Envelope is the structured payload devices publish on their state
// topics: {"value": string|number|bool, "status": string, "timestamp"?: RFC3339}.
//
// Decoding is tolerant: a missing value is treated as empty, a missing
// status defaults to "Unknown", and an absent or unparseable timestamp
// falls back to the receive time.
type Envelope struct {
	Value     json.RawMessage `json:"value"`
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
}

// DecodeEnvelope parses an inbound payload into an Envelope.
func DecodeEnvelope(topic string, payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, newDecodeError(topic, payload, "payload is not a JSON envelope", err)
	}

	if env.Status == "" {
		env.Status = registry.DefaultStatus
	}

	return &env, nil
}

// ReceivedAt resolves the envelope's timestamp, falling back to now
// when the field is absent or malformed.
func (e *Envelope) ReceivedAt(now time.Time) time.Time {
	if e.Timestamp == "" {
		return now
	}
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return now
	}
	return ts
}

// ParseValue converts the envelope value into the device's expected
// state representation.
//
// Numeric sensor types (temperature, humidity) require a number or a
// numeric string; anything else is a decode failure. Other types take
// whatever JSON shape arrives: bool, string token, or number (curtain
// positions).
func (e *Envelope) ParseValue(topic string, deviceType registry.DeviceType) (registry.State, error) {
	if deviceType.IsNumericSensor() {
		v, ok := e.numericValue()
		if !ok {
			return registry.State{}, newDecodeError(topic, e.Value, "value is not numeric", nil)
		}
		return registry.NumericState(v), nil
	}

	if len(e.Value) == 0 {
		return registry.TextState(""), nil
	}

	var b bool
	if err := json.Unmarshal(e.Value, &b); err == nil {
		return registry.BoolState(b), nil
	}

	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		return registry.TextState(s), nil
	}

	var n float64
	if err := json.Unmarshal(e.Value, &n); err == nil {
		return registry.NumericState(n), nil
	}

	return registry.State{}, newDecodeError(topic, e.Value, "value has unsupported JSON shape", nil)
}

// numericValue extracts a float from the value, accepting both JSON
// numbers and numeric strings ("48" as published by some sensors).
func (e *Envelope) numericValue() (float64, bool) {
	if len(e.Value) == 0 {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(e.Value, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(e.Value, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}

	return 0, false
}
