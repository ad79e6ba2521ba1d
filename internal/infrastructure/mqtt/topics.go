package mqtt

import (
	"fmt"
	"strings"
)

// Topic scheme: home/{location}/{device_type}
// Each device row stores its full state topic; commands go to the same
// topic with a /control suffix.
const (
	// TopicPrefixHome is the base for all device topics.
	TopicPrefixHome = "home"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "home/system"

	// controlSuffix is appended to a device's state topic to form its
	// command topic.
	controlSuffix = "/control"
)

// Topics provides builders for Luma MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("livingroom", "temperature")
//	// Returns: "home/livingroom/temperature"
type Topics struct{}

// DeviceState returns the state topic for a device.
//
// Example: home/livingroom/temperature
func (Topics) DeviceState(location, deviceType string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixHome, location, deviceType)
}

// Control returns the command topic for a device's state topic.
//
// Example: home/livingroom/light -> home/livingroom/light/control
func (Topics) Control(stateTopic string) string {
	return stateTopic + controlSuffix
}

// IsControl reports whether a topic is a command topic.
func (Topics) IsControl(topic string) bool {
	return strings.HasSuffix(topic, controlSuffix)
}

// StateTopic returns the state topic for a command topic.
// If the topic has no control suffix it is returned unchanged.
func (Topics) StateTopic(controlTopic string) string {
	return strings.TrimSuffix(controlTopic, controlSuffix)
}

// SystemStatus returns the system status topic.
// The sync service publishes its online/offline state here, including
// the broker-delivered LWT on unexpected disconnect.
//
// Example: home/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching every device topic.
// Control and system topics also match; subscribers filter those out.
//
// Pattern: home/#
func (Topics) AllDeviceStates() string {
	return TopicPrefixHome + "/#"
}

// AllControls returns a pattern matching all command topics in a location.
//
// Pattern: home/{location}/+/control
func (Topics) AllControls(location string) string {
	return fmt.Sprintf("%s/%s/+%s", TopicPrefixHome, location, controlSuffix)
}
