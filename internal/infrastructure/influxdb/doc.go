// Package influxdb provides InfluxDB connectivity for the BIOCAT bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, snapshot telemetry writes, and health monitoring.
//
// # Purpose
//
// Every committed fetch cycle is written as one point (measurement
// "biocat") so water temperature, pressure and consumption can be
// graphed over long periods without burdening the SQLite history store.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via
// the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
