package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/mqtt"
)

// MQTT message types for communication between Gray Logic Core and the
// BIOCAT bridge, following the bridge interface specification.

// CommandMessage is sent from Core to the bridge to execute a command.
// Topic: graylogic/command/biocat/{entity}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// acknowledgments. Assigned by the bridge if the sender omits it.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the command name.
	// Switches accept "on" and "off"; buttons accept "press".
	Command string `json:"command"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source,omitempty"`
}

// UnmarshalJSON unmarshals a CommandMessage, tolerating a missing or
// empty timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was accepted by the upstream API.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the upstream API did not respond in time.
	AckTimeout AckStatus = "timeout"
)

// Error codes for command failures.
const (
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeUpstreamError  = "UPSTREAM_ERROR"
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeUnknownEntity  = "UNKNOWN_ENTITY"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeTimeout        = "TIMEOUT"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/biocat/{entity}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("biocat").
	Protocol string `json:"protocol"`

	// Entity is the entity the command targeted.
	Entity string `json:"entity"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "UNAUTHORIZED", "UPSTREAM_ERROR").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgment for a successful command.
func NewAckMessage(cmd CommandMessage, deviceID, entity string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    AckAccepted,
		Protocol:  mqtt.Protocol,
		Entity:    entity,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, deviceID, entity, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    status,
		Protocol:  mqtt.Protocol,
		Entity:    entity,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// StateMessage is sent from the bridge when an entity's state changes.
// Topic: graylogic/state/biocat/{entity}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the Gray Logic device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Entity is the entity id.
	Entity string `json:"entity"`

	// Kind is the entity kind (sensor, binary_sensor, switch, button).
	Kind Kind `json:"kind"`

	// State contains the current entity state:
	//   {"value": 21.5, "available": true, "unit": "°C"}
	// value is null and available false when the upstream did not
	// report the field.
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("biocat").
	Protocol string `json:"protocol"`
}

// NewStateMessage creates a state message for an entity.
func NewStateMessage(deviceID string, entity Entity, value any, available bool) StateMessage {
	state := map[string]any{
		"value":     value,
		"available": available,
	}
	if entity.Unit != "" {
		state["unit"] = entity.Unit
	}

	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Entity:    entity.ID,
		Kind:      entity.Kind,
		State:     state,
		Protocol:  mqtt.Protocol,
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running but the appliance
	// or the broker connection has a problem.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published periodically to report operational status.
// Topic: graylogic/health/biocat
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier ("biocat").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Upstream describes the cloud API polling state.
	Upstream *UpstreamStatus `json:"upstream,omitempty"`

	// Device carries appliance metadata, when known.
	Device *DeviceSummary `json:"device,omitempty"`

	// EntitiesManaged is the number of exposed entities.
	EntitiesManaged int `json:"entities_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// UpstreamStatus describes the state of the cloud API polling.
type UpstreamStatus struct {
	// Online reports whether the appliance is considered reachable.
	Online bool `json:"online"`

	// CycleSeq is the sequence number of the last committed fetch cycle.
	CycleSeq uint64 `json:"cycle_seq"`

	// ConsecutiveFailures counts failed cycles since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastSuccess is when the last cycle committed.
	LastSuccess *time.Time `json:"last_success,omitempty"`

	// LastError is the most recent cycle error, if any.
	LastError string `json:"last_error,omitempty"`
}

// DeviceSummary is the appliance metadata included in health messages.
type DeviceSummary struct {
	Name            string `json:"name,omitempty"`
	Model           string `json:"model,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
}
