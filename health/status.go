// Package health aggregates per-component health into one process-wide
// status served next to the Prometheus endpoint. Components report
// through component.HealthReporter; ad hoc checks (the NATS connection,
// for example) register as plain functions.
package health

import (
	"regexp"
	"time"

	"github.com/AnhTuIT04/SmartHomeServer/component"
)

// Health levels, ordered worst-first for aggregation.
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

// Status is one component's health at a point in time.
type Status struct {
	Component   string            `json:"component"`
	Healthy     bool              `json:"healthy"`
	Status      string            `json:"status"`
	Message     string            `json:"message,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	SubStatuses []Status          `json:"sub_statuses,omitempty"`
}

// Healthy creates a healthy status.
func Healthy(name, message string) Status {
	return Status{
		Component: name,
		Healthy:   true,
		Status:    LevelHealthy,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Degraded creates a degraded status. Degraded components keep serving
// but with reduced guarantees, a reconnecting NATS client for example.
func Degraded(name, message string) Status {
	return Status{
		Component: name,
		Status:    LevelDegraded,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Unhealthy creates an unhealthy status.
func Unhealthy(name, message string) Status {
	return Status{
		Component: name,
		Status:    LevelUnhealthy,
		Message:   sanitize(message),
		Timestamp: time.Now(),
	}
}

// FromComponent converts a lifecycle component's self-report. The
// lifecycle state becomes the message; detail values pass through
// sanitization since they end up on an HTTP endpoint.
func FromComponent(name string, ch component.HealthStatus) Status {
	s := Status{
		Component: name,
		Healthy:   ch.Healthy,
		Status:    LevelUnhealthy,
		Message:   "state: " + ch.State,
		Timestamp: ch.Checked,
	}
	if ch.Healthy {
		s.Status = LevelHealthy
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if len(ch.Details) > 0 {
		s.Details = make(map[string]string, len(ch.Details))
		for k, v := range ch.Details {
			s.Details[k] = sanitize(v)
		}
	}
	return s
}

// Aggregate rolls sub-statuses up into one status: any unhealthy child
// makes the whole unhealthy, otherwise any degraded child makes it
// degraded.
func Aggregate(name string, subs []Status) Status {
	agg := Healthy(name, "all components healthy")
	for _, sub := range subs {
		switch sub.Status {
		case LevelUnhealthy:
			agg = Unhealthy(name, "component "+sub.Component+" is unhealthy")
		case LevelDegraded:
			if agg.Status == LevelHealthy {
				agg = Degraded(name, "component "+sub.Component+" is degraded")
			}
		}
	}
	agg.SubStatuses = append([]Status(nil), subs...)
	return agg
}

// Redaction patterns for messages that may embed connection strings or
// credentials from wrapped errors.
var (
	urlPattern        = regexp.MustCompile(`\b(?:https?|wss?|nats)://\S+`)
	ipPattern         = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	credentialPattern = regexp.MustCompile(`(?i)(password|token|secret|credential)\s*[:=]\s*\S+`)
)

func sanitize(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlPattern.ReplaceAllString(msg, "[URL]")
	msg = ipPattern.ReplaceAllString(msg, "[IP]")
	msg = credentialPattern.ReplaceAllString(msg, "$1=[REDACTED]")
	return msg
}
