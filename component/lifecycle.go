package component

import (
	"context"
	"time"
)

// State represents the lifecycle state of a component.
type State int

const (
	// StateCreated is the initial state before Initialize.
	StateCreated State = iota
	// StateInitialized means resources are acquired but no work is running.
	StateInitialized
	// StateRunning means the component's goroutines are active.
	StateRunning
	// StateStopped means the component shut down cleanly.
	StateStopped
	// StateFailed means the component hit an unrecoverable error.
	StateFailed
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LifecycleComponent is the contract every long-running component
// implements. Initialize acquires resources and must be cheap to call
// before Start. Start launches the component's goroutines and returns;
// the goroutines stop when the context is cancelled. Stop requests
// shutdown and waits up to timeout for in-flight work to drain.
type LifecycleComponent interface {
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Name() string
	State() State
}

// HealthStatus reports a component's view of its own health. Collected
// periodically by the health monitor and exposed for operators.
type HealthStatus struct {
	Healthy bool              `json:"healthy"`
	State   string            `json:"state"`
	Details map[string]string `json:"details,omitempty"`
	Checked time.Time         `json:"checked"`
}

// HealthReporter is implemented by components that can describe their
// own health beyond the lifecycle state.
type HealthReporter interface {
	Health() HealthStatus
}
