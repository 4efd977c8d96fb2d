package biocat

import (
	"encoding/json"
	"time"
)

// Merge normalizes the per-operation response bodies of one fetch cycle
// into a single Snapshot.
//
// It is a pure function: no I/O, no retained state. Missing bodies and
// missing keys yield unset Snapshot fields rather than failing the
// merge; a partial upstream response must never block normalization of
// fields sourced from other calls. Unrecognised operating modes pass
// through as opaque strings so newer firmware cannot break the bridge.
//
// Online defaults to false and is taken from the state body when
// present. The caller decides what a failed cycle means; Merge only
// describes what this cycle's bodies said.
func Merge(bodies map[Operation]json.RawMessage) Snapshot {
	var snap Snapshot

	if raw, ok := bodies[OpReadMeasurements]; ok {
		mergeMeasurements(&snap, raw)
	}
	if raw, ok := bodies[OpReadState]; ok {
		mergeState(&snap, raw)
	}
	if raw, ok := bodies[OpReadDailyTotal]; ok {
		snap.DailyConsumption = decodeVolume(raw)
	}
	if raw, ok := bodies[OpReadGrandTotal]; ok {
		snap.TotalConsumption = decodeVolume(raw)
	}

	return snap
}

// mergeMeasurements extracts the measurement fields.
// A body that fails to decode contributes nothing; the rest of the merge
// proceeds.
func mergeMeasurements(snap *Snapshot, raw json.RawMessage) {
	var body measurementsBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return
	}

	snap.Temperature = body.Temperature
	snap.Pressure = body.Pressure
	snap.LastDrawVolume = body.LastWaterTapVol
	snap.LastDrawDuration = body.LastWaterTapTime
}

// mergeState extracts mode, flags and the optional timestamps.
func mergeState(snap *Snapshot, raw json.RawMessage) {
	var body stateBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return
	}

	snap.OperatingMode = body.Mode
	if body.Online != nil {
		snap.Online = *body.Online
	}
	snap.AbsenceMode = body.AbsenceMode
	snap.LeakProtection = body.LeakProtection
	snap.LeakDetected = body.LeakDetected
	snap.HasError = body.HasError
	snap.HasWarning = body.HasWarning
	snap.ErrorMessage = body.ErrorMessage

	// Timestamp fields only exist on recent firmware; absence or an
	// unparseable value both normalize to unset.
	snap.LastLeakCheck = parseInstant(body.LastLeakCheck)
	snap.LastSelfTest = parseInstant(body.LastSelfTest)
}

// decodeVolume accepts both statistics response shapes: a bare JSON
// number (older firmware) or an object with a "volume" key.
func decodeVolume(raw json.RawMessage) *float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}

	var body totalBody
	if err := json.Unmarshal(raw, &body); err == nil {
		return body.Volume
	}

	return nil
}

// parseInstant parses an RFC3339 timestamp, returning nil when the field
// is absent or malformed.
func parseInstant(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &ts
}

// DecodeDeviceInfo decodes a read-device-info body.
func DecodeDeviceInfo(raw json.RawMessage) (DeviceInfo, error) {
	var info DeviceInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return DeviceInfo{}, ErrMalformedResponse
	}
	return info, nil
}
