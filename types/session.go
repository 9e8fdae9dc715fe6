package types

import "time"

// Session is one live client connection. A session is bound to exactly
// one sensor for its whole lifetime; rebinding requires reconnecting.
// The id is stable and generated at connect time so components never
// key state by the transport connection itself.
type Session struct {
	ID          string
	UserID      string
	SensorID    string
	ConnectedAt time.Time
}
