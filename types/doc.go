// Package types defines the core data model shared across the server:
// sensor readings, threshold bounds, triggered conditions, notifications,
// actuator control state, and client sessions. Types here carry their wire
// representation (JSON field names match the realtime store schema and the
// websocket protocol) but contain no I/O.
package types
