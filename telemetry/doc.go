// Package telemetry provides the storage layer for sensor state. Sensor
// devices write their latest reading into the data bucket and read their
// actuator settings from the control bucket; this package exposes both
// as watchable, strongly-typed stores for the monitoring pipelines and
// the realtime gateway.
//
// Control documents are mutated only through compare-and-swap so that an
// actuator correction computed from a stale reading is recomputed against
// the latest document instead of overwriting a concurrent user command.
package telemetry
