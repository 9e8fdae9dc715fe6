package types

import "time"

// Detail is one (metric, severity) entry of a notification.
type Detail struct {
	Type Metric   `json:"type"`
	Mode Severity `json:"mode"`
}

// Notification is one persisted alert for a sensor. A single
// notification carries every condition admitted for the reading that
// produced it; the store assigns the id. Immutable once persisted.
type Notification struct {
	ID        string   `json:"id"`
	SensorID  string   `json:"sensorId"`
	Details   []Detail `json:"details"`
	CreatedAt int64    `json:"timestamp"` // unix milliseconds
}

// NewNotification builds an unpersisted notification from admitted
// conditions, preserving their order.
func NewNotification(sensorID string, conditions []Condition) *Notification {
	details := make([]Detail, 0, len(conditions))
	for _, c := range conditions {
		details = append(details, Detail{Type: c.Metric, Mode: c.Severity})
	}
	return &Notification{
		SensorID:  sensorID,
		Details:   details,
		CreatedAt: time.Now().UnixMilli(),
	}
}
