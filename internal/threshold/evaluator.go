package threshold

import (
	"errors"
	"fmt"

	"github.com/lumahome/luma-core/internal/registry"
)

// ErrInvalidThreshold is returned when a threshold's bounds are
// inconsistent (min > max). The evaluator refuses to guess rather
// than risk a false alert.
var ErrInvalidThreshold = errors.New("threshold: min exceeds max")

// Outcome classifies the result of evaluating a reading.
type Outcome string

// Evaluation outcomes.
const (
	NoAlert  Outcome = "no_alert"
	BelowMin Outcome = "below_min"
	AboveMax Outcome = "above_max"
)

// Decision is the result of evaluating a value against a threshold.
// Min and Max carry the violated bound for alert messages; only the
// bound relevant to the outcome is set.
type Decision struct {
	Outcome Outcome
	Value   float64
	Min     *float64
	Max     *float64
}

// IsAlert reports whether the decision should raise an alert.
func (d Decision) IsAlert() bool {
	return d.Outcome != NoAlert
}

// String renders the decision for alert messages and logs.
func (d Decision) String() string {
	switch d.Outcome {
	case BelowMin:
		return fmt.Sprintf("value %v below minimum %v", d.Value, *d.Min)
	case AboveMax:
		return fmt.Sprintf("value %v above maximum %v", d.Value, *d.Max)
	default:
		return "within bounds"
	}
}

// Evaluate decides whether a numeric value violates a threshold band.
//
// Returns NoAlert when alerting is disabled, when the relevant bound
// is unset, or when min <= value <= max. A threshold with min > max
// fails with ErrInvalidThreshold instead of firing either way.
func Evaluate(value float64, t *registry.SensorThreshold) (Decision, error) {
	none := Decision{Outcome: NoAlert, Value: value}

	if t == nil || !t.AlertEnabled {
		return none, nil
	}

	if t.MinValue != nil && t.MaxValue != nil && *t.MinValue > *t.MaxValue {
		return none, fmt.Errorf("%w: min %v, max %v", ErrInvalidThreshold, *t.MinValue, *t.MaxValue)
	}

	if t.MinValue != nil && value < *t.MinValue {
		return Decision{Outcome: BelowMin, Value: value, Min: t.MinValue}, nil
	}
	if t.MaxValue != nil && value > *t.MaxValue {
		return Decision{Outcome: AboveMax, Value: value, Max: t.MaxValue}, nil
	}

	return none, nil
}
