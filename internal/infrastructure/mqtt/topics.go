package mqtt

import "fmt"

// TopicPrefix is the base for all hub topics.
// The scheme is flat: etbus/{category}/{device_id}
const TopicPrefix = "etbus"

// Topics provides builders for the hub's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("lamp1")
//	// Returns: "etbus/state/lamp1"
type Topics struct{}

// DeviceState returns the topic for one device's state, published
// retained so new subscribers see the last known state immediately.
//
// Example: etbus/state/lamp1
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// DeviceCommand returns the topic external systems publish commands to.
// The hub subscribes here and forwards payloads onto the bus.
//
// Example: etbus/command/lamp1
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceOnline returns the topic for one device's online flag,
// published retained on every online/offline transition.
//
// Example: etbus/online/lamp1
func (Topics) DeviceOnline(deviceID string) string {
	return fmt.Sprintf("%s/online/%s", TopicPrefix, deviceID)
}

// Discovery returns the topic for device announcements.
//
// Example: etbus/discovery
func (Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery", TopicPrefix)
}

// SystemStatus returns the hub's own status topic, used for the online
// announcement and the LWT.
//
// Example: etbus/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: etbus/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching every command topic.
//
// Pattern: etbus/command/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllTopics returns a pattern matching all hub topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: etbus/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// CommandDeviceID extracts the device id from a command topic, or ""
// when the topic is not a command topic.
func CommandDeviceID(topic string) string {
	prefix := TopicPrefix + "/command/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	id := topic[len(prefix):]
	for i := 0; i < len(id); i++ {
		if id[i] == '/' {
			return ""
		}
	}
	return id
}
