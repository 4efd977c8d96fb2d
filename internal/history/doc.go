// Package history persists committed snapshots to SQLite.
//
// The store keeps one row per fetch cycle inside a configurable
// retention window and backs the local status API's history endpoint.
// It is deliberately small: time-series analysis lives in InfluxDB, the
// SQLite store only answers recent-history queries locally.
package history
