package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
)

// fakeHealthPublisher records published health messages.
type fakeHealthPublisher struct {
	mu        sync.Mutex
	messages  []HealthMessage
	topics    []string
	retained  []bool
	connected bool
}

func (f *fakeHealthPublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	f.topics = append(f.topics, topic)
	f.retained = append(f.retained, retained)
	return nil
}

func (f *fakeHealthPublisher) IsConnected() bool { return f.connected }

func (f *fakeHealthPublisher) last(t *testing.T) HealthMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no health message published")
	}
	return f.messages[len(f.messages)-1]
}

// fakeStats returns fixed coordinator stats.
type fakeStats struct {
	stats coordinator.Stats
}

func (f *fakeStats) Stats() coordinator.Stats { return f.stats }

func newTestReporter(pub *fakeHealthPublisher, stats StatsProvider) *HealthReporter {
	return NewHealthReporter(HealthReporterConfig{
		Version:   "1.0.0",
		Interval:  time.Hour,
		Publisher: pub,
		Stats:     stats,
		Logger:    logging.Default(),
	})
}

func TestPublishNowHealthy(t *testing.T) {
	now := time.Now()
	pub := &fakeHealthPublisher{connected: true}
	h := newTestReporter(pub, &fakeStats{stats: coordinator.Stats{
		CycleSeq:    7,
		LastSuccess: &now,
	}})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != HealthHealthy {
		t.Errorf("status = %s, want healthy", msg.Status)
	}
	if msg.Bridge != "biocat" {
		t.Errorf("bridge = %s, want biocat", msg.Bridge)
	}
	if msg.Upstream == nil || !msg.Upstream.Online || msg.Upstream.CycleSeq != 7 {
		t.Errorf("unexpected upstream status: %+v", msg.Upstream)
	}
	if msg.EntitiesManaged != len(Catalog()) {
		t.Errorf("entities_managed = %d, want %d", msg.EntitiesManaged, len(Catalog()))
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topics[0] != "graylogic/health/biocat" {
		t.Errorf("topic = %s, want graylogic/health/biocat", pub.topics[0])
	}
	if !pub.retained[0] {
		t.Error("health messages must be retained")
	}
}

func TestPublishNowDegradedWhenDisconnected(t *testing.T) {
	pub := &fakeHealthPublisher{connected: false}
	h := newTestReporter(pub, &fakeStats{})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != HealthDegraded {
		t.Errorf("status = %s, want degraded", msg.Status)
	}
	if msg.Reason != "MQTT disconnected" {
		t.Errorf("reason = %q, want MQTT disconnected", msg.Reason)
	}
}

func TestPublishNowDegradedWhenApplianceOffline(t *testing.T) {
	pub := &fakeHealthPublisher{connected: true}
	h := newTestReporter(pub, &fakeStats{stats: coordinator.Stats{
		CycleSeq:            4,
		ConsecutiveFailures: 5,
		Offline:             true,
	}})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != HealthDegraded {
		t.Errorf("status = %s, want degraded", msg.Status)
	}
	if msg.Reason != "appliance offline" {
		t.Errorf("reason = %q, want appliance offline", msg.Reason)
	}
	if msg.Upstream == nil || msg.Upstream.Online {
		t.Errorf("upstream should report offline: %+v", msg.Upstream)
	}
}

func TestDeviceInfoIncludedWhenSet(t *testing.T) {
	pub := &fakeHealthPublisher{connected: true}
	h := newTestReporter(pub, &fakeStats{stats: coordinator.Stats{CycleSeq: 1}})

	h.SetDeviceInfo(biocat.DeviceInfo{
		Name:            "BIOCAT KLS",
		Model:           "KLS",
		SerialNumber:    "WC-42",
		FirmwareVersion: "2.4.1",
	})

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Device == nil || msg.Device.SerialNumber != "WC-42" {
		t.Errorf("device summary missing or wrong: %+v", msg.Device)
	}
}

func TestStopPublishesStoppingStatus(t *testing.T) {
	pub := &fakeHealthPublisher{connected: true}
	h := newTestReporter(pub, &fakeStats{stats: coordinator.Stats{CycleSeq: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.Start(ctx)
	h.Stop()
	h.Stop() // must be safe to call twice

	msg := pub.last(t)
	if msg.Status != HealthStopping {
		t.Errorf("final status = %s, want stopping", msg.Status)
	}
}

func TestPublishStarting(t *testing.T) {
	pub := &fakeHealthPublisher{connected: true}
	h := newTestReporter(pub, &fakeStats{})

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting: %v", err)
	}
	if msg := pub.last(t); msg.Status != HealthStarting {
		t.Errorf("status = %s, want starting", msg.Status)
	}
}
