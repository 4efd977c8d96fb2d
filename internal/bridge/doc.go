// Package bridge exposes the BIOCAT appliance on the Gray Logic MQTT bus.
//
// The bridge projects each committed snapshot through a static entity
// catalog (sensors, binary sensors, switches, buttons) and publishes
// changed entity states retained on graylogic/state/biocat/{entity}.
// Inbound commands on graylogic/command/biocat/{entity} are routed to
// the coordinator's dispatcher and acknowledged on the matching ack
// topic; commands never mutate published state directly, the
// post-command refresh does.
//
// The HealthReporter publishes periodic status on the retained health
// topic, combining broker connectivity, the coordinator's polling
// counters and the appliance metadata fetched at startup.
package bridge
