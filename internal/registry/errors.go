package registry

import "errors"

// Sentinel errors for registry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device does not exist.
	ErrDeviceNotFound = errors.New("registry: device not found")

	// ErrDeviceExists is returned when creating a device with an ID
	// that is already taken.
	ErrDeviceExists = errors.New("registry: device already exists")

	// ErrTopicInUse is returned when another device already claims the
	// requested inbound topic.
	ErrTopicInUse = errors.New("registry: topic already in use")

	// ErrThresholdNotFound is returned when no threshold exists for a device.
	ErrThresholdNotFound = errors.New("registry: threshold not found")

	// ErrValidation is returned for writes that fail field validation,
	// including appends against a nonexistent device.
	ErrValidation = errors.New("registry: validation failed")

	// ErrInvalidThresholdRange is returned when a threshold edit would
	// set min greater than max.
	ErrInvalidThresholdRange = errors.New("registry: threshold min exceeds max")
)
