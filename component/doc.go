// Package component defines the lifecycle contract and shared logging
// helpers for the long-running pieces of the platform: the sensor watch
// supervisor, the realtime gateway, and the metrics server all implement
// LifecycleComponent and are driven by cmd/smarthome in a uniform way.
package component
