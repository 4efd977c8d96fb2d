package biocat

import "net/http"

// Operation is a logical API operation name.
// The endpoint catalog maps each operation to its HTTP binding; no code
// outside the Transport resolves paths.
type Operation string

// Read operations polled every fetch cycle.
const (
	OpReadMeasurements Operation = "read-measurements"
	OpReadState        Operation = "read-state"
	OpReadDailyTotal   Operation = "read-daily-total"
	OpReadGrandTotal   Operation = "read-grand-total"
)

// Write operations issued on demand by the command dispatcher.
const (
	OpSetAbsenceMode     Operation = "set-absence-mode"
	OpSetLeakProtection  Operation = "set-leak-protection"
	OpOpenValve          Operation = "open-valve"
	OpCloseValve         Operation = "close-valve"
	OpRunSelfTest        Operation = "run-self-test"
	OpAcknowledgeWarning Operation = "acknowledge-warning"
)

// OpReadDeviceInfo fetches device metadata (name, model, firmware).
// Called once at startup for health reporting, never per cycle.
const OpReadDeviceInfo Operation = "read-device-info"

// binding is an operation's HTTP verb and path relative to the base URL.
// The credential is per-device, so paths carry no device segment.
type binding struct {
	method string
	path   string
}

// endpoints is the static operation catalog.
var endpoints = map[Operation]binding{
	OpReadMeasurements:   {http.MethodGet, "/v1/measurements/direct"},
	OpReadState:          {http.MethodGet, "/v1/state"},
	OpReadDailyTotal:     {http.MethodGet, "/v1/statistics/cumulative/daily"},
	OpReadGrandTotal:     {http.MethodGet, "/v1/statistics/cumulative/total"},
	OpSetAbsenceMode:     {http.MethodPut, "/v1/absence"},
	OpSetLeakProtection:  {http.MethodPut, "/v1/leakageprotection"},
	OpOpenValve:          {http.MethodPost, "/v1/watersupply/open"},
	OpCloseValve:         {http.MethodPost, "/v1/watersupply/close"},
	OpRunSelfTest:        {http.MethodPost, "/v1/selftest/start"},
	OpAcknowledgeWarning: {http.MethodPost, "/v1/ackevent"},
	OpReadDeviceInfo:     {http.MethodGet, "/v1/device"},
}

// CycleOperations returns the read operations issued on every fetch
// cycle, in a stable order. Order is not significant for the merge but a
// stable slice keeps logs and tests deterministic.
func CycleOperations() []Operation {
	return []Operation{
		OpReadMeasurements,
		OpReadState,
		OpReadDailyTotal,
		OpReadGrandTotal,
	}
}
