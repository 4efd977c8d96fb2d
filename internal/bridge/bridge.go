package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/mqtt"
)

// MessagingClient is the broker surface the bridge needs.
// Implemented by *mqtt.Client; tests substitute a fake.
type MessagingClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// SnapshotSource provides committed snapshots and polling state.
// Implemented by *coordinator.Coordinator.
type SnapshotSource interface {
	Subscribe(fn coordinator.Subscriber) int
	Unsubscribe(id int)
	Snapshot() (biocat.Snapshot, error)
	RequestRefresh(ctx context.Context) (biocat.Snapshot, error)
	Stats() coordinator.Stats
}

// Commander issues write operations against the appliance.
// Implemented by *coordinator.Dispatcher.
type Commander interface {
	SetAbsenceMode(ctx context.Context, active bool) error
	SetLeakProtection(ctx context.Context, enabled bool) error
	OpenValve(ctx context.Context) error
	CloseValve(ctx context.Context) error
	RunSelfTest(ctx context.Context) error
	AcknowledgeWarning(ctx context.Context) error
}

// Config holds the bridge settings.
type Config struct {
	// DeviceID is the Gray Logic identifier for the appliance.
	DeviceID string

	// QoS is the MQTT QoS level for state and ack publishes.
	QoS byte
}

// Bridge connects the polling coordinator to the Gray Logic MQTT bus.
//
// Snapshot fan-out: every committed snapshot is projected through the
// entity catalog and each entity whose state changed is published
// retained on its state topic. Unchanged entities are skipped so a
// steady appliance produces no bus traffic.
//
// Command intake: commands arriving on graylogic/command/biocat/+ are
// routed to the dispatcher and acknowledged on the entity's ack topic.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Bridge struct {
	cfg       Config
	client    MessagingClient
	source    SnapshotSource
	commander Commander
	logger    *logging.Logger
	topics    mqtt.Topics
	entities  []Entity

	// lastState caches the serialized State field per entity for change
	// detection. Timestamps are excluded so identical values do not churn.
	lastState map[string]string
	stateMu   sync.Mutex

	subID    int
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// New creates a Bridge. Call Start to begin processing.
func New(cfg Config, client MessagingClient, source SnapshotSource, commander Commander, logger *logging.Logger) (*Bridge, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if client == nil {
		return nil, fmt.Errorf("messaging client is required")
	}
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if commander == nil {
		return nil, fmt.Errorf("commander is required")
	}

	return &Bridge{
		cfg:       cfg,
		client:    client,
		source:    source,
		commander: commander,
		logger:    logger.With("component", "bridge"),
		entities:  Catalog(),
		lastState: make(map[string]string),
	}, nil
}

// Start subscribes to the command topic and begins snapshot fan-out.
//
// If the coordinator already holds a snapshot it is published
// immediately so retained state topics are populated before the first
// scheduled cycle.
func (b *Bridge) Start(ctx context.Context) error {
	b.startMu.Lock()
	defer b.startMu.Unlock()
	if b.started {
		return nil
	}

	if err := b.client.Subscribe(b.topics.AllCommands(), b.cfg.QoS, func(topic string, payload []byte) error {
		b.handleCommand(ctx, topic, payload)
		return nil
	}); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.subID = b.source.Subscribe(func(snap biocat.Snapshot) {
		b.publishSnapshot(snap)
	})

	if snap, err := b.source.Snapshot(); err == nil {
		b.publishSnapshot(snap)
	}

	b.started = true
	b.logger.Info("bridge started", "entities", len(b.entities), "device_id", b.cfg.DeviceID)
	return nil
}

// Stop detaches from the coordinator. The MQTT client is closed by the
// caller, which also publishes the graceful offline status.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.source.Unsubscribe(b.subID)
		b.logger.Info("bridge stopped")
	})
}

// publishSnapshot fans a snapshot out to the per-entity state topics.
func (b *Bridge) publishSnapshot(snap biocat.Snapshot) {
	for _, entity := range b.entities {
		if entity.Value == nil {
			continue // buttons are stateless
		}

		value, available := entity.Value(snap)
		msg := NewStateMessage(b.cfg.DeviceID, entity, value, available)

		stateKey, err := json.Marshal(msg.State)
		if err != nil {
			b.logger.Error("marshalling entity state", "entity", entity.ID, "error", err)
			continue
		}

		b.stateMu.Lock()
		unchanged := b.lastState[entity.ID] == string(stateKey)
		if !unchanged {
			b.lastState[entity.ID] = string(stateKey)
		}
		b.stateMu.Unlock()
		if unchanged {
			continue
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			b.logger.Error("marshalling state message", "entity", entity.ID, "error", err)
			continue
		}

		if err := b.client.Publish(b.topics.State(entity.ID), payload, b.cfg.QoS, true); err != nil {
			b.logger.Warn("publishing entity state", "entity", entity.ID, "error", err)
			// Drop the cache entry so the next snapshot retries.
			b.stateMu.Lock()
			delete(b.lastState, entity.ID)
			b.stateMu.Unlock()
		}
	}
}

// handleCommand routes one inbound command message.
func (b *Bridge) handleCommand(ctx context.Context, topic string, payload []byte) {
	entity := mqtt.EntityFromCommandTopic(topic)
	if entity == "" {
		b.logger.Warn("command on unrecognised topic", "topic", topic)
		return
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("undecodable command payload", "entity", entity, "error", err)
		b.publishAck(NewAckError(CommandMessage{ID: uuid.NewString()}, b.cfg.DeviceID, entity,
			ErrCodeInvalidPayload, "command payload is not valid JSON"))
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logger.Info("command received",
		"entity", entity,
		"command", cmd.Command,
		"command_id", cmd.ID,
		"source", cmd.Source,
	)

	if err := b.route(ctx, entity, cmd.Command); err != nil {
		b.publishAck(b.ackForError(cmd, entity, err))
		return
	}

	b.publishAck(NewAckMessage(cmd, b.cfg.DeviceID, entity))
}

// route maps an entity and command name to a dispatcher call.
func (b *Bridge) route(ctx context.Context, entity, command string) error {
	switch entity {
	case "absence_mode":
		return b.routeSwitch(ctx, command, b.commander.SetAbsenceMode)
	case "leakage_protection":
		return b.routeSwitch(ctx, command, b.commander.SetLeakProtection)
	case "open_valve":
		return b.routeButton(ctx, command, b.commander.OpenValve)
	case "close_valve":
		return b.routeButton(ctx, command, b.commander.CloseValve)
	case "start_selftest":
		return b.routeButton(ctx, command, b.commander.RunSelfTest)
	case "acknowledge_warning":
		return b.routeButton(ctx, command, b.commander.AcknowledgeWarning)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
}

// routeSwitch handles on/off commands for switch entities.
func (b *Bridge) routeSwitch(ctx context.Context, command string, set func(context.Context, bool) error) error {
	switch command {
	case "on":
		return set(ctx, true)
	case "off":
		return set(ctx, false)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
}

// routeButton handles press commands for button entities.
func (b *Bridge) routeButton(ctx context.Context, command string, press func(context.Context) error) error {
	if command != "press" {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return press(ctx)
}

// ackForError maps a routing or dispatch failure to an ack message.
func (b *Bridge) ackForError(cmd CommandMessage, entity string, err error) AckMessage {
	code := ErrCodeUpstreamError
	switch {
	case errors.Is(err, ErrUnknownEntity):
		code = ErrCodeUnknownEntity
	case errors.Is(err, ErrUnknownCommand):
		code = ErrCodeInvalidCommand
	case errors.Is(err, coordinator.ErrCommandUnauthorized):
		code = ErrCodeUnauthorized
	case errors.Is(err, biocat.ErrTimeout):
		code = ErrCodeTimeout
	}
	return NewAckError(cmd, b.cfg.DeviceID, entity, code, err.Error())
}

// publishAck publishes an acknowledgement, non-retained.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("marshalling ack", "entity", ack.Entity, "error", err)
		return
	}
	if err := b.client.Publish(b.topics.Ack(ack.Entity), payload, b.cfg.QoS, false); err != nil {
		b.logger.Warn("publishing ack", "entity", ack.Entity, "error", err)
	}
}
