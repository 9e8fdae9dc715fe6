// Package realtime is the websocket gateway for dashboard sessions.
//
// A client connects with a bearer token in the query string. The token
// resolves to a user, the user to their sensor, and the resulting
// session is registered for the connection's lifetime. The gateway then
// pushes two kinds of frames: merged telemetry/control view snapshots
// whenever the sensor's state changes, and alert frames fanned out by
// the alert publisher. Inbound frames carry device commands, validated
// per field before they reach the control store.
//
// Each connection owns a bounded outbound queue drained by a dedicated
// writer goroutine, so a slow or stalled client drops its own oldest
// frames instead of blocking the pipelines feeding it.
package realtime
