package mqtt

import "fmt"

// Topic prefixes for the pawlink MQTT surface.
//
// All device topics use the flat scheme: pawlink/{category}/{class}/{device_id}
// where class is the appliance protocol family (litterbox-gen3, litterbox-gen4,
// feeder).
const (
	// TopicPrefix is the base for all pawlink topics.
	TopicPrefix = "pawlink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "pawlink/system"
)

// Topics provides builders for pawlink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("litterbox-gen4", "G4-001")
//	// Returns: "pawlink/state/litterbox-gen4/G4-001"
type Topics struct{}

// DeviceState returns the retained state topic for one appliance.
//
// Example: pawlink/state/litterbox-gen4/G4-001
func (Topics) DeviceState(class, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, class, deviceID)
}

// DeviceEvent returns the event topic for one appliance. Events are not
// retained; they mark moments (clean cycle finished, feeding dispensed).
//
// Example: pawlink/event/feeder/f-1
func (Topics) DeviceEvent(class, deviceID string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefix, class, deviceID)
}

// DeviceCommand returns the inbound command topic for one appliance.
// External systems publish here to drive the appliance through the bridge.
//
// Example: pawlink/command/litterbox-gen3/lb-1
func (Topics) DeviceCommand(class, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, class, deviceID)
}

// DeviceAck returns the topic for command acknowledgements.
//
// Example: pawlink/ack/litterbox-gen3/lb-1
func (Topics) DeviceAck(class, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, class, deviceID)
}

// DeviceAvailability returns the per-device availability topic.
//
// Example: pawlink/availability/feeder/f-1
func (Topics) DeviceAvailability(class, deviceID string) string {
	return fmt.Sprintf("%s/availability/%s/%s", TopicPrefix, class, deviceID)
}

// SystemStatus returns the daemon status topic (online/offline, LWT).
//
// Example: pawlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Wildcard patterns for subscriptions.

// AllDeviceStates returns a pattern matching every appliance state topic.
//
// Pattern: pawlink/state/+/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching every inbound command topic.
//
// Pattern: pawlink/command/+/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllDeviceEvents returns a pattern matching every appliance event topic.
//
// Pattern: pawlink/event/+/+
func (Topics) AllDeviceEvents() string {
	return fmt.Sprintf("%s/event/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all pawlink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: pawlink/#
func (Topics) AllTopics() string {
	return "pawlink/#"
}
