// Package monitor implements the threshold-monitoring loop: one
// pipeline per watched sensor merges the telemetry and control change
// streams into a live snapshot, evaluates each merged reading against
// the sensor's configured bounds, rate-limits repeated breaches, and
// routes surviving conditions to the actuator controller and the alert
// publisher.
//
// The Supervisor owns pipeline lifecycles and supports two discovery
// policies, eager (registry-driven) and demand (session-driven via
// Acquire/Release). Sensors are fully independent: each pipeline runs
// on its own goroutine and a failure in one never touches another.
package monitor
