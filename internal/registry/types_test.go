package registry

import (
	"encoding/json"
	"testing"
)

func TestStateJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"bool true", BoolState(true), `{"kind":"bool","value":true}`},
		{"bool false", BoolState(false), `{"kind":"bool","value":false}`},
		{"text", TextState("UNLOCKED"), `{"kind":"text","value":"UNLOCKED"}`},
		{"numeric", NumericState(21.5), `{"kind":"numeric","value":21.5}`},
		{"zero", State{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.state)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}

			var got State
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != tt.state {
				t.Errorf("round trip = %+v, want %+v", got, tt.state)
			}
		})
	}
}

func TestStateUnmarshalUnknownKind(t *testing.T) {
	var s State
	err := json.Unmarshal([]byte(`{"kind":"blob","value":1}`), &s)
	if err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestStateAccessors(t *testing.T) {
	s := NumericState(48)
	if v, ok := s.Numeric(); !ok || v != 48 {
		t.Errorf("Numeric() = %v, %v", v, ok)
	}
	if _, ok := s.Bool(); ok {
		t.Error("Bool() should not match a numeric state")
	}
	if _, ok := s.Text(); ok {
		t.Error("Text() should not match a numeric state")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{BoolState(true), "true"},
		{BoolState(false), "false"},
		{TextState("LOCKED"), "LOCKED"},
		{NumericState(48), "48"},
		{NumericState(21.5), "21.5"},
		{State{}, ""},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String(%+v) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDeviceTypeIsNumericSensor(t *testing.T) {
	numeric := []DeviceType{TypeTemperature, TypeHumidity}
	for _, dt := range numeric {
		if !dt.IsNumericSensor() {
			t.Errorf("%s should be a numeric sensor", dt)
		}
	}

	inert := []DeviceType{TypeCamera, TypeLight, TypeCurtain, TypeDoor, TypeWindow}
	for _, dt := range inert {
		if dt.IsNumericSensor() {
			t.Errorf("%s should not be a numeric sensor", dt)
		}
	}
}
