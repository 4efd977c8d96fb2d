package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
	"github.com/nerrad567/gray-logic-biocat/internal/coordinator"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biocat/internal/infrastructure/mqtt"
)

// defaultHealthInterval is how often health status is published.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsProvider exposes the coordinator's polling counters.
type StatsProvider interface {
	Stats() coordinator.Stats
}

// HealthReporter publishes periodic health status for the bridge.
// It reports the broker connection, the upstream polling state and the
// appliance metadata on the retained health topic.
type HealthReporter struct {
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     StatsProvider
	logger    *logging.Logger

	// Device metadata (set once after the startup fetch)
	device   *biocat.DeviceInfo
	deviceMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher

	// Stats provides the coordinator's polling counters.
	Stats StatsProvider

	// Logger for publish failures.
	Logger *logging.Logger
}

// NewHealthReporter creates a health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		logger:    cfg.Logger.With("component", "health"),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
//
// Parameters:
//   - ctx: Context for cancellation (will stop reporting when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Publishes a final "stopping" status before returning.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publishStatus(HealthStopping, "bridge shutting down")
	})
}

// SetDeviceInfo records the appliance metadata for health messages.
// Called once after the startup device-info fetch.
func (h *HealthReporter) SetDeviceInfo(info biocat.DeviceInfo) {
	h.deviceMu.Lock()
	h.device = &info
	h.deviceMu.Unlock()
}

// PublishStarting publishes a "starting" status.
// Called during bridge initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Warn("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.stats != nil {
		stats := h.stats.Stats()
		if stats.Offline {
			return HealthDegraded, "appliance offline"
		}
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	msg := HealthMessage{
		Bridge:          mqtt.Protocol,
		Timestamp:       time.Now().UTC(),
		Status:          status,
		Version:         h.version,
		UptimeSeconds:   int64(time.Since(h.startTime).Seconds()),
		EntitiesManaged: len(Catalog()),
		Reason:          reason,
	}

	if h.stats != nil {
		stats := h.stats.Stats()
		msg.Upstream = &UpstreamStatus{
			Online:              !stats.Offline && stats.CycleSeq > 0,
			CycleSeq:            stats.CycleSeq,
			ConsecutiveFailures: stats.ConsecutiveFailures,
			LastSuccess:         stats.LastSuccess,
			LastError:           stats.LastError,
		}
	}

	h.deviceMu.RLock()
	if h.device != nil {
		msg.Device = &DeviceSummary{
			Name:            h.device.Name,
			Model:           h.device.Model,
			SerialNumber:    h.device.SerialNumber,
			FirmwareVersion: h.device.FirmwareVersion,
		}
	}
	h.deviceMu.RUnlock()

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// QoS 1, retained so new subscribers see the last status
	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, 1, true)
}
