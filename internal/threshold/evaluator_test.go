package threshold

import (
	"errors"
	"testing"

	"github.com/lumahome/luma-core/internal/registry"
)

func floatPtr(v float64) *float64 { return &v }

func band(min, max *float64, enabled bool) *registry.SensorThreshold {
	return &registry.SensorThreshold{
		DeviceID:     "dev-1",
		MinValue:     min,
		MaxValue:     max,
		AlertEnabled: enabled,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold *registry.SensorThreshold
		want      Outcome
	}{
		{"below min", 17.9, band(floatPtr(18), floatPtr(26), true), BelowMin},
		{"above max", 26.1, band(floatPtr(18), floatPtr(26), true), AboveMax},
		{"within band", 22.0, band(floatPtr(18), floatPtr(26), true), NoAlert},
		{"exactly min", 18.0, band(floatPtr(18), floatPtr(26), true), NoAlert},
		{"exactly max", 26.0, band(floatPtr(18), floatPtr(26), true), NoAlert},
		{"disabled below", 17.9, band(floatPtr(18), floatPtr(26), false), NoAlert},
		{"disabled above", 99.0, band(floatPtr(18), floatPtr(26), false), NoAlert},
		{"no bounds", 99.0, band(nil, nil, true), NoAlert},
		{"only min violated", 10.0, band(floatPtr(18), nil, true), BelowMin},
		{"only min satisfied", 99.0, band(floatPtr(18), nil, true), NoAlert},
		{"only max violated", 70.0, band(nil, floatPtr(60), true), AboveMax},
		{"only max satisfied", 30.0, band(nil, floatPtr(60), true), NoAlert},
		{"nil threshold", 22.0, nil, NoAlert},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.value, tt.threshold)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", got.Outcome, tt.want)
			}
			if got.Value != tt.value {
				t.Errorf("Value = %v, want %v", got.Value, tt.value)
			}
		})
	}
}

func TestEvaluateInvalidBand(t *testing.T) {
	_, err := Evaluate(22.0, band(floatPtr(30), floatPtr(20), true))
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestEvaluateInvalidBandDisabled(t *testing.T) {
	// A disabled threshold never fires, even with inconsistent bounds.
	got, err := Evaluate(22.0, band(floatPtr(30), floatPtr(20), false))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got.Outcome != NoAlert {
		t.Errorf("Outcome = %v, want NoAlert", got.Outcome)
	}
}

func TestDecisionIsAlert(t *testing.T) {
	d, err := Evaluate(17.9, band(floatPtr(18), floatPtr(26), true))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.IsAlert() {
		t.Error("BelowMin should be an alert")
	}

	d, err = Evaluate(22.0, band(floatPtr(18), floatPtr(26), true))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.IsAlert() {
		t.Error("NoAlert should not be an alert")
	}
}
