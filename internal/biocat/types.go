package biocat

import "time"

// Snapshot is everything known about the appliance as of the last
// successful fetch cycle. It is an immutable value object: a cycle either
// produces a complete replacement or leaves the previous one untouched.
//
// All fields except Online are optional; nil means the upstream did not
// report the value (older firmware omits the timestamp fields entirely).
type Snapshot struct {
	// Measurements (read-measurements)
	Temperature      *float64 `json:"temperature,omitempty"`        // °C
	Pressure         *float64 `json:"pressure,omitempty"`           // bar
	LastDrawVolume   *float64 `json:"last_draw_volume,omitempty"`   // litres
	LastDrawDuration *float64 `json:"last_draw_duration,omitempty"` // seconds

	// Consumption totals (read-daily-total, read-grand-total)
	DailyConsumption *float64 `json:"daily_consumption,omitempty"` // litres, resets daily
	TotalConsumption *float64 `json:"total_consumption,omitempty"` // litres, lifetime, never decreasing

	// Device state (read-state)
	OperatingMode  string     `json:"operating_mode,omitempty"`
	Online         bool       `json:"online"`
	AbsenceMode    *bool      `json:"absence_mode,omitempty"`
	LeakProtection *bool      `json:"leak_protection,omitempty"`
	LeakDetected   *bool      `json:"leak_detected,omitempty"`
	HasError       *bool      `json:"has_error,omitempty"`
	HasWarning     *bool      `json:"has_warning,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	LastLeakCheck  *time.Time `json:"last_leak_check,omitempty"`
	LastSelfTest   *time.Time `json:"last_self_test,omitempty"`
}

// DeviceInfo is the device metadata from read-device-info.
// Fetched once at startup for health reporting and entity attribution.
type DeviceInfo struct {
	Name            string `json:"name"`
	Model           string `json:"model"`
	SerialNumber    string `json:"serialNumber"`
	FirmwareVersion string `json:"firmwareVersion"`
}

// Wire body shapes for the read operations. Every field is a pointer so
// an absent key normalizes to an unset Snapshot field instead of a zero.

// measurementsBody is the read-measurements response.
type measurementsBody struct {
	Temperature      *float64 `json:"temperature"`
	Pressure         *float64 `json:"pressure"`
	LastWaterTapVol  *float64 `json:"lastWaterTapVolume"`
	LastWaterTapTime *float64 `json:"lastWaterTapDuration"`
}

// stateBody is the read-state response. The timestamp fields are only
// present on recent firmware versions.
type stateBody struct {
	Mode           string  `json:"mode"`
	Online         *bool   `json:"online"`
	AbsenceMode    *bool   `json:"absenceModeEnabled"`
	LeakProtection *bool   `json:"leakProtectionEnabled"`
	LeakDetected   *bool   `json:"leakDetected"`
	HasError       *bool   `json:"hasError"`
	HasWarning     *bool   `json:"hasWarning"`
	ErrorMessage   *string `json:"errorMessage"`
	LastLeakCheck  *string `json:"lastLeakCheck"`
	LastSelfTest   *string `json:"lastSelfTest"`
}

// totalBody is the shape of both cumulative statistics responses when
// the upstream returns an object. Older firmware returns a bare number;
// the normalizer accepts either.
type totalBody struct {
	Volume *float64 `json:"volume"`
}
