package sim

import (
	"strconv"
	"strings"

	"github.com/lumahome/luma-core/internal/infrastructure/mqtt"
	"github.com/lumahome/luma-core/internal/registry"
)

// device is one simulated sensor or actuator.
type device struct {
	deviceType registry.DeviceType

	// value holds numeric state: sensor readings and curtain position.
	value float64
	// on holds light state.
	on bool
	// locked holds door state.
	locked bool
	// running and motion hold camera state.
	running bool
	motion  bool
}

// reportedValue is the value field of the published envelope, in the
// shape the device type reports: numbers for sensors and curtains,
// booleans for lights, tokens for doors and cameras.
func (d *device) reportedValue() any {
	switch d.deviceType {
	case registry.TypeTemperature, registry.TypeHumidity, registry.TypeCurtain:
		return d.value
	case registry.TypeLight:
		return d.on
	case registry.TypeDoor:
		if d.locked {
			return "LOCKED"
		}
		return "UNLOCKED"
	case registry.TypeCamera:
		if !d.running {
			return "Idle"
		}
		if d.motion {
			return "Motion Detected"
		}
		return "Active"
	}
	return nil
}

// apply executes a command token against the device. It reports
// whether the command was accepted; rejected commands leave state
// unchanged.
func (d *device) apply(command string) bool {
	switch d.deviceType {
	case registry.TypeLight:
		switch command {
		case "ON":
			d.on = true
		case "OFF":
			d.on = false
		default:
			return false
		}
		return true

	case registry.TypeCurtain:
		switch {
		case command == "OPEN":
			d.value = 100
		case command == "CLOSE":
			d.value = 0
		case strings.HasPrefix(command, "SET:"):
			position, err := strconv.Atoi(strings.TrimPrefix(command, "SET:"))
			if err != nil || position < 0 || position > 100 {
				return false
			}
			d.value = float64(position)
		default:
			return false
		}
		return true

	case registry.TypeDoor:
		switch command {
		case "LOCK":
			d.locked = true
		case "UNLOCK":
			d.locked = false
		default:
			return false
		}
		return true

	case registry.TypeCamera:
		switch command {
		case "START":
			d.running = true
		case "STOP":
			d.running = false
			d.motion = false
		default:
			return false
		}
		return true
	}

	return false
}

// defaultRoster mirrors the seeded household: sensors and actuators
// keyed by their state topic.
func defaultRoster() map[string]*device {
	topics := mqtt.Topics{}
	devices := make(map[string]*device)

	type room struct {
		slug        string
		temperature float64
		humidity    float64
		curtain     float64
	}
	rooms := []room{
		{slug: "living_room", temperature: 22.0, humidity: 45.0, curtain: 0},
		{slug: "master_bedroom", temperature: 21.0, humidity: 40.0, curtain: 100},
		{slug: "kid1_bedroom", temperature: 21.5, humidity: 42.0, curtain: 0},
		{slug: "kid2_bedroom", temperature: 21.5, humidity: 42.0, curtain: 0},
	}

	for _, r := range rooms {
		devices[topics.DeviceState(r.slug, "temperature")] = &device{
			deviceType: registry.TypeTemperature,
			value:      r.temperature,
		}
		devices[topics.DeviceState(r.slug, "humidity")] = &device{
			deviceType: registry.TypeHumidity,
			value:      r.humidity,
		}
		devices[topics.DeviceState(r.slug, "curtain")] = &device{
			deviceType: registry.TypeCurtain,
			value:      r.curtain,
		}
	}

	devices[topics.DeviceState("living_room", "light")] = &device{deviceType: registry.TypeLight}
	devices[topics.DeviceState("living_room", "camera")] = &device{deviceType: registry.TypeCamera, running: true}
	devices[topics.DeviceState("outside", "camera")] = &device{deviceType: registry.TypeCamera, running: true}
	devices[topics.DeviceState("outside", "door")] = &device{deviceType: registry.TypeDoor, locked: true}

	return devices
}
