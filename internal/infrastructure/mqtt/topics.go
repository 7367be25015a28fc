package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the watchgrid MQTT namespace.
//
// Device events use the flat scheme: watchgrid/event/{kind}
// where kind is the event kind slug (e.g. "connection-detected").
// The payload is the raw device address, exactly as an HTTP-ingested
// event body would carry it.
const (
	// TopicPrefixEvent is the base for device event topics.
	TopicPrefixEvent = "watchgrid/event"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "watchgrid/system"
)

// Topics provides builders for watchgrid MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	eventTopic := topics.DeviceEvent("motion-detected")
//	// Returns: "watchgrid/event/motion-detected"
type Topics struct{}

// DeviceEvent returns the topic a sensor node publishes one event kind to.
//
// Example: watchgrid/event/connection-detected
func (Topics) DeviceEvent(kind string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, kind)
}

// AllDeviceEvents returns the wildcard subscription covering every device
// event kind.
//
// Example: watchgrid/event/+
func (Topics) AllDeviceEvents() string {
	return TopicPrefixEvent + "/+"
}

// SystemStatus returns the topic for server online/offline status.
//
// Example: watchgrid/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// EventKind extracts the event kind slug from a device event topic.
// Returns false if the topic is not under the event prefix.
func (Topics) EventKind(topic string) (string, bool) {
	kind, ok := strings.CutPrefix(topic, TopicPrefixEvent+"/")
	if !ok || kind == "" || strings.Contains(kind, "/") {
		return "", false
	}
	return kind, true
}
