package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-biocat/internal/biocat"
)

// Kind classifies an entity for the consuming platform.
type Kind string

const (
	KindSensor       Kind = "sensor"
	KindBinarySensor Kind = "binary_sensor"
	KindSwitch       Kind = "switch"
	KindButton       Kind = "button"
)

// Entity describes one exposed entity: its id (the MQTT address segment),
// its kind, and how to derive its value from a snapshot.
//
// Value returns the current value and whether it is available. Button
// entities carry no state and have a nil Value.
type Entity struct {
	ID    string
	Kind  Kind
	Unit  string
	Value func(biocat.Snapshot) (any, bool)
}

// floatValue adapts an optional float field.
func floatValue(get func(biocat.Snapshot) *float64) func(biocat.Snapshot) (any, bool) {
	return func(s biocat.Snapshot) (any, bool) {
		v := get(s)
		if v == nil {
			return nil, false
		}
		return *v, true
	}
}

// boolValue adapts an optional bool field.
func boolValue(get func(biocat.Snapshot) *bool) func(biocat.Snapshot) (any, bool) {
	return func(s biocat.Snapshot) (any, bool) {
		v := get(s)
		if v == nil {
			return nil, false
		}
		return *v, true
	}
}

// timeValue adapts an optional timestamp field, rendered as RFC3339.
func timeValue(get func(biocat.Snapshot) *time.Time) func(biocat.Snapshot) (any, bool) {
	return func(s biocat.Snapshot) (any, bool) {
		v := get(s)
		if v == nil {
			return nil, false
		}
		return v.UTC().Format(time.RFC3339), true
	}
}

// Catalog returns the full entity set in publish order.
//
// The catalog is static: the appliance is a fixed product and its
// capabilities do not vary at runtime. Entities whose upstream field is
// absent simply report unavailable.
func Catalog() []Entity {
	return []Entity{
		// Sensors
		{
			ID: "water_temperature", Kind: KindSensor, Unit: "°C",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.Temperature }),
		},
		{
			ID: "water_pressure", Kind: KindSensor, Unit: "bar",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.Pressure }),
		},
		{
			ID: "last_draw_volume", Kind: KindSensor, Unit: "L",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.LastDrawVolume }),
		},
		{
			ID: "last_draw_duration", Kind: KindSensor, Unit: "s",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.LastDrawDuration }),
		},
		{
			ID: "daily_consumption", Kind: KindSensor, Unit: "L",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.DailyConsumption }),
		},
		{
			ID: "total_consumption", Kind: KindSensor, Unit: "L",
			Value: floatValue(func(s biocat.Snapshot) *float64 { return s.TotalConsumption }),
		},
		{
			ID: "operating_mode", Kind: KindSensor,
			Value: func(s biocat.Snapshot) (any, bool) {
				if s.OperatingMode == "" {
					return nil, false
				}
				return s.OperatingMode, true
			},
		},
		{
			ID: "error_message", Kind: KindSensor,
			Value: func(s biocat.Snapshot) (any, bool) {
				if s.ErrorMessage == nil {
					return nil, false
				}
				return *s.ErrorMessage, true
			},
		},
		{
			ID: "last_leak_check", Kind: KindSensor,
			Value: timeValue(func(s biocat.Snapshot) *time.Time { return s.LastLeakCheck }),
		},
		{
			ID: "last_self_test", Kind: KindSensor,
			Value: timeValue(func(s biocat.Snapshot) *time.Time { return s.LastSelfTest }),
		},

		// Binary sensors
		{
			ID: "connectivity", Kind: KindBinarySensor,
			Value: func(s biocat.Snapshot) (any, bool) { return s.Online, true },
		},
		{
			ID: "leakage_detected", Kind: KindBinarySensor,
			Value: boolValue(func(s biocat.Snapshot) *bool { return s.LeakDetected }),
		},
		{
			ID: "error_state", Kind: KindBinarySensor,
			Value: boolValue(func(s biocat.Snapshot) *bool { return s.HasError }),
		},
		{
			ID: "warning_state", Kind: KindBinarySensor,
			Value: boolValue(func(s biocat.Snapshot) *bool { return s.HasWarning }),
		},

		// Switches (state reflects the appliance, commands go upstream)
		{
			ID: "absence_mode", Kind: KindSwitch,
			Value: boolValue(func(s biocat.Snapshot) *bool { return s.AbsenceMode }),
		},
		{
			ID: "leakage_protection", Kind: KindSwitch,
			Value: boolValue(func(s biocat.Snapshot) *bool { return s.LeakProtection }),
		},

		// Buttons (stateless triggers)
		{ID: "open_valve", Kind: KindButton},
		{ID: "close_valve", Kind: KindButton},
		{ID: "start_selftest", Kind: KindButton},
		{ID: "acknowledge_warning", Kind: KindButton},
	}
}
