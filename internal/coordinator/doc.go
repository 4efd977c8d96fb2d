// Package coordinator owns the polling cadence and command dispatch for
// the appliance.
//
// The Coordinator runs one fetch cycle per interval and coalesces forced
// refreshes onto any in-flight cycle, so at most one cycle talks to the
// upstream API at a time regardless of how many callers ask. Committed
// snapshots are immutable and fan out to subscribers; a failed cycle
// leaves the previous snapshot untouched and only after three
// consecutive failures is the appliance marked offline.
//
// The Dispatcher issues write operations (valve, absence mode, leakage
// protection, self test, event acknowledgement). Writes never mutate
// local state: a successful command forces a refresh and the resulting
// snapshot carries the appliance's real state.
package coordinator
