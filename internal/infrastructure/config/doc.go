// Package config loads and validates the BIOCAT bridge configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides (BIOCAT_* pattern). Secrets (the upstream API key, MQTT
// password, InfluxDB token) should be supplied via environment rather
// than committed to the config file.
//
// Validation enforces the upstream API's polling constraints: a hard
// floor of 10 seconds and an advisory minimum of 15 seconds. Intervals
// in between load successfully but BelowAdvisoryInterval reports true
// so the caller can log a warning.
package config
