package mqtt

import "fmt"

// Topic layout per the Gray Logic MQTT specification.
//
// Bridge topics use the flat scheme: graylogic/{category}/{protocol}/{address}.
// This bridge publishes under protocol "biocat" with the entity id as the
// address segment.
const (
	// TopicPrefix is the base for all Gray Logic topics.
	TopicPrefix = "graylogic"

	// Protocol is this bridge's protocol segment.
	Protocol = "biocat"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.State("water_temperature")
//	// Returns: "graylogic/state/biocat/water_temperature"
type Topics struct{}

// State returns the retained state topic for an entity.
//
// Example: graylogic/state/biocat/water_temperature
func (Topics) State(entity string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, Protocol, entity)
}

// Command returns the command topic for an entity.
//
// Example: graylogic/command/biocat/absence_mode
func (Topics) Command(entity string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, Protocol, entity)
}

// Ack returns the command acknowledgement topic for an entity.
//
// Example: graylogic/ack/biocat/absence_mode
func (Topics) Ack(entity string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, Protocol, entity)
}

// Health returns the bridge health topic. Also used for the LWT so
// subscribers see an offline status if the bridge crashes.
//
// Example: graylogic/health/biocat
func (Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, Protocol)
}

// SystemStatus returns the shared system status topic.
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllCommands returns a pattern matching every command to this bridge.
//
// Pattern: graylogic/command/biocat/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, Protocol)
}

// AllStates returns a pattern matching every state topic of this bridge.
//
// Pattern: graylogic/state/biocat/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/+", TopicPrefix, Protocol)
}

// EntityFromCommandTopic extracts the entity id from a command topic.
// Returns an empty string when the topic does not match the scheme.
func EntityFromCommandTopic(topic string) string {
	prefix := fmt.Sprintf("%s/command/%s/", TopicPrefix, Protocol)
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	entity := topic[len(prefix):]
	for i := 0; i < len(entity); i++ {
		if entity[i] == '/' {
			return ""
		}
	}
	return entity
}
