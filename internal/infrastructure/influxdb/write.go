package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
)

// WriteSnapshot records the numeric and boolean fields of a snapshot.
//
// One point per committed fetch cycle, measurement "biocat", tagged with
// the device id. Absent optional fields are simply omitted from the
// point. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: The Gray Logic identifier for the appliance
//   - snap: The committed snapshot
func (c *Client) WriteSnapshot(deviceID string, snap biocat.Snapshot) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"online": snap.Online,
	}
	addFloat := func(name string, v *float64) {
		if v != nil {
			fields[name] = *v
		}
	}
	addBool := func(name string, v *bool) {
		if v != nil {
			fields[name] = *v
		}
	}

	addFloat("temperature_c", snap.Temperature)
	addFloat("pressure_bar", snap.Pressure)
	addFloat("last_draw_volume_l", snap.LastDrawVolume)
	addFloat("last_draw_duration_s", snap.LastDrawDuration)
	addFloat("daily_consumption_l", snap.DailyConsumption)
	addFloat("total_consumption_l", snap.TotalConsumption)
	addBool("absence_mode", snap.AbsenceMode)
	addBool("leak_protection", snap.LeakProtection)
	addBool("leak_detected", snap.LeakDetected)
	addBool("has_error", snap.HasError)
	addBool("has_warning", snap.HasWarning)

	tags := map[string]string{
		"device_id": deviceID,
	}
	if snap.OperatingMode != "" {
		tags["mode"] = snap.OperatingMode
	}

	point := write.NewPoint("biocat", tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WriteDeviceMetric writes a single named measurement for a device.
//
// Used for bridge-level counters that are not part of a snapshot
// (cycle durations, failure counts).
//
// Example:
//
//	client.WriteDeviceMetric("biocat", "cycle_duration_ms", 420)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
