package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/mqtt"
)

// fakeClient records publishes and captures the command handler.
type fakeClient struct {
	mu        sync.Mutex
	published []publishedMsg
	handler   mqtt.MessageHandler
	connected bool
}

type publishedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true}
}

func (f *fakeClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeClient) Subscribe(_ string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return nil
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) messages() []publishedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedMsg(nil), f.published...)
}

func (f *fakeClient) onTopic(topic string) []publishedMsg {
	var out []publishedMsg
	for _, m := range f.messages() {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeClient) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = nil
}

// fakeSource holds a fixed snapshot and records subscriptions.
type fakeSource struct {
	mu   sync.Mutex
	snap *biocat.Snapshot
	subs map[int]coordinator.Subscriber
	next int
}

func newFakeSource(snap *biocat.Snapshot) *fakeSource {
	return &fakeSource{snap: snap, subs: make(map[int]coordinator.Subscriber)}
}

func (f *fakeSource) Subscribe(fn coordinator.Subscriber) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.subs[f.next] = fn
	return f.next
}

func (f *fakeSource) Unsubscribe(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

func (f *fakeSource) Snapshot() (biocat.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return biocat.Snapshot{}, coordinator.ErrNoSnapshot
	}
	return *f.snap, nil
}

func (f *fakeSource) RequestRefresh(context.Context) (biocat.Snapshot, error) {
	return f.Snapshot()
}

func (f *fakeSource) Stats() coordinator.Stats { return coordinator.Stats{CycleSeq: 1} }

func (f *fakeSource) emit(snap biocat.Snapshot) {
	f.mu.Lock()
	subs := make([]coordinator.Subscriber, 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// fakeCommander records dispatcher calls and returns a configurable error.
type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCommander) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeCommander) SetAbsenceMode(_ context.Context, active bool) error {
	if active {
		return f.record("absence:on")
	}
	return f.record("absence:off")
}

func (f *fakeCommander) SetLeakProtection(_ context.Context, enabled bool) error {
	if enabled {
		return f.record("leak:on")
	}
	return f.record("leak:off")
}

func (f *fakeCommander) OpenValve(context.Context) error          { return f.record("open_valve") }
func (f *fakeCommander) CloseValve(context.Context) error         { return f.record("close_valve") }
func (f *fakeCommander) RunSelfTest(context.Context) error        { return f.record("selftest") }
func (f *fakeCommander) AcknowledgeWarning(context.Context) error { return f.record("ack_warning") }

func (f *fakeCommander) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func ptr[T any](v T) *T { return &v }

func testSnapshot() biocat.Snapshot {
	return biocat.Snapshot{
		Temperature:    ptr(15.5),
		Online:         true,
		OperatingMode:  "idle",
		AbsenceMode:    ptr(false),
		LeakProtection: ptr(true),
	}
}

func newTestBridge(t *testing.T, client *fakeClient, source *fakeSource, cmdr *fakeCommander) *Bridge {
	t.Helper()

	b, err := New(Config{DeviceID: "biocat", QoS: 1}, client, source, cmdr, logging.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Stop)
	return b
}

func TestStartPublishesExistingSnapshot(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	newTestBridge(t, client, newFakeSource(&snap), &fakeCommander{})

	msgs := client.onTopic("graylogic/state/biocat/water_temperature")
	if len(msgs) != 1 {
		t.Fatalf("got %d publishes on temperature topic, want 1", len(msgs))
	}
	if !msgs[0].retained {
		t.Error("state publishes must be retained")
	}

	var state StateMessage
	if err := json.Unmarshal(msgs[0].payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State["value"] != 15.5 || state.State["available"] != true {
		t.Errorf("unexpected state: %v", state.State)
	}
	if state.State["unit"] != "°C" {
		t.Errorf("unit = %v, want °C", state.State["unit"])
	}
	if state.Protocol != "biocat" || state.DeviceID != "biocat" {
		t.Errorf("unexpected identifiers: %+v", state)
	}
}

func TestUnavailableEntityPublishedAsUnavailable(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot() // no pressure field
	newTestBridge(t, client, newFakeSource(&snap), &fakeCommander{})

	msgs := client.onTopic("graylogic/state/biocat/water_pressure")
	if len(msgs) != 1 {
		t.Fatalf("got %d publishes on pressure topic, want 1", len(msgs))
	}
	var state StateMessage
	if err := json.Unmarshal(msgs[0].payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if state.State["available"] != false {
		t.Errorf("available = %v, want false", state.State["available"])
	}
	if state.State["value"] != nil {
		t.Errorf("value = %v, want nil", state.State["value"])
	}
}

func TestUnchangedSnapshotPublishesNothing(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	source := newFakeSource(&snap)
	newTestBridge(t, client, source, &fakeCommander{})

	client.reset()
	source.emit(testSnapshot())

	if msgs := client.messages(); len(msgs) != 0 {
		t.Errorf("identical snapshot produced %d publishes, want 0", len(msgs))
	}

	changed := testSnapshot()
	changed.Temperature = ptr(16.0)
	source.emit(changed)

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("changed snapshot produced %d publishes, want 1", len(msgs))
	}
	if msgs[0].topic != "graylogic/state/biocat/water_temperature" {
		t.Errorf("published to %s, want temperature topic", msgs[0].topic)
	}
}

func TestButtonsHaveNoStateTopic(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	newTestBridge(t, client, newFakeSource(&snap), &fakeCommander{})

	for _, m := range client.messages() {
		if strings.Contains(m.topic, "open_valve") || strings.Contains(m.topic, "start_selftest") {
			t.Errorf("button entity published state on %s", m.topic)
		}
	}
}

func deliverCommand(t *testing.T, client *fakeClient, entity, payload string) {
	t.Helper()
	if client.handler == nil {
		t.Fatal("command handler not subscribed")
	}
	if err := client.handler(mqtt.Topics{}.Command(entity), []byte(payload)); err != nil {
		t.Fatalf("handler: %v", err)
	}
}

func lastAck(t *testing.T, client *fakeClient, entity string) AckMessage {
	t.Helper()
	msgs := client.onTopic(mqtt.Topics{}.Ack(entity))
	if len(msgs) == 0 {
		t.Fatalf("no ack published for %s", entity)
	}
	var ack AckMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if msgs[len(msgs)-1].retained {
		t.Error("acks must not be retained")
	}
	return ack
}

func TestSwitchCommandRouting(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	cmdr := &fakeCommander{}
	newTestBridge(t, client, newFakeSource(&snap), cmdr)

	deliverCommand(t, client, "absence_mode", `{"id": "cmd-1", "command": "on", "source": "api"}`)

	calls := cmdr.recorded()
	if len(calls) != 1 || calls[0] != "absence:on" {
		t.Errorf("calls = %v, want [absence:on]", calls)
	}

	ack := lastAck(t, client, "absence_mode")
	if ack.Status != AckAccepted {
		t.Errorf("ack status = %s, want accepted", ack.Status)
	}
	if ack.CommandID != "cmd-1" {
		t.Errorf("ack command_id = %s, want cmd-1", ack.CommandID)
	}

	deliverCommand(t, client, "leakage_protection", `{"id": "cmd-2", "command": "off"}`)
	calls = cmdr.recorded()
	if calls[len(calls)-1] != "leak:off" {
		t.Errorf("calls = %v, want leak:off last", calls)
	}
}

func TestButtonCommandRouting(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	cmdr := &fakeCommander{}
	newTestBridge(t, client, newFakeSource(&snap), cmdr)

	for entity, want := range map[string]string{
		"open_valve":          "open_valve",
		"close_valve":         "close_valve",
		"start_selftest":      "selftest",
		"acknowledge_warning": "ack_warning",
	} {
		deliverCommand(t, client, entity, `{"command": "press"}`)

		found := false
		for _, call := range cmdr.recorded() {
			if call == want {
				found = true
			}
		}
		if !found {
			t.Errorf("%s press did not reach commander", entity)
		}

		ack := lastAck(t, client, entity)
		if ack.Status != AckAccepted {
			t.Errorf("%s ack status = %s, want accepted", entity, ack.Status)
		}
		if ack.CommandID == "" {
			t.Errorf("%s ack missing generated command id", entity)
		}
	}
}

func TestCommandErrorAcks(t *testing.T) {
	tests := []struct {
		name     string
		entity   string
		payload  string
		cmdErr   error
		wantCode string
		wantAck  AckStatus
	}{
		{"unknown entity", "water_temperature", `{"command": "on"}`, nil, ErrCodeUnknownEntity, AckFailed},
		{"unknown command", "absence_mode", `{"command": "toggle"}`, nil, ErrCodeInvalidCommand, AckFailed},
		{"unauthorized", "open_valve", `{"command": "press"}`, coordinator.ErrCommandUnauthorized, ErrCodeUnauthorized, AckFailed},
		{"timeout", "close_valve", `{"command": "press"}`,
			wrapErr(coordinator.ErrCommandFailed, biocat.ErrTimeout), ErrCodeTimeout, AckTimeout},
		{"upstream error", "start_selftest", `{"command": "press"}`,
			wrapErr(coordinator.ErrCommandFailed, biocat.ErrUnreachable), ErrCodeUpstreamError, AckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			snap := testSnapshot()
			cmdr := &fakeCommander{err: tt.cmdErr}
			newTestBridge(t, client, newFakeSource(&snap), cmdr)

			deliverCommand(t, client, tt.entity, tt.payload)

			ack := lastAck(t, client, tt.entity)
			if ack.Status != tt.wantAck {
				t.Errorf("ack status = %s, want %s", ack.Status, tt.wantAck)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("ack error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}
}

// wrapErr builds a dispatcher-style wrapped error for tests.
func wrapErr(outer, inner error) error {
	return fmt.Errorf("%w: %w", outer, inner)
}

func TestInvalidPayloadAck(t *testing.T) {
	client := newFakeClient()
	snap := testSnapshot()
	newTestBridge(t, client, newFakeSource(&snap), &fakeCommander{})

	deliverCommand(t, client, "absence_mode", `not json`)

	ack := lastAck(t, client, "absence_mode")
	if ack.Status != AckFailed {
		t.Errorf("ack status = %s, want failed", ack.Status)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeInvalidPayload {
		t.Errorf("ack error = %+v, want INVALID_PAYLOAD", ack.Error)
	}
}
