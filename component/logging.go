package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	// LogLevelDebug represents debug-level logs
	LogLevelDebug LogLevel = "DEBUG"
	// LogLevelInfo represents informational logs
	LogLevelInfo LogLevel = "INFO"
	// LogLevelWarn represents warning logs
	LogLevelWarn LogLevel = "WARN"
	// LogLevelError represents error logs
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is a structured log entry published to NATS so operators can
// tail the log stream for a single sensor without grepping process logs.
type LogEntry struct {
	Timestamp string   `json:"timestamp"` // RFC3339 format
	Level     LogLevel `json:"level"`
	Component string   `json:"component"`
	SensorID  string   `json:"sensor_id"`
	Message   string   `json:"message"`
	Stack     string   `json:"stack,omitempty"` // Error details for errors
}

// Logger provides structured logging for components. It wraps a standard
// slog.Logger for local logging while also publishing entries to NATS for
// remote consumption, scoped by sensor when the component handles a
// single sensor's pipeline.
type Logger struct {
	componentName string
	sensorID      string
	nc            *nats.Conn
	logger        *slog.Logger
	enabled       bool // whether NATS publishing is enabled
}

// NewLogger creates a component logger. nc may be nil, in which case
// entries are only written to the local slog.Logger.
func NewLogger(componentName, sensorID string, nc *nats.Conn, logger *slog.Logger) *Logger {
	return &Logger{
		componentName: componentName,
		sensorID:      sensorID,
		nc:            nc,
		logger:        logger,
		enabled:       nc != nil,
	}
}

// Debug logs a debug-level message
func (cl *Logger) Debug(msg string) {
	cl.DebugContext(context.Background(), msg)
}

// Info logs an info-level message
func (cl *Logger) Info(msg string) {
	cl.InfoContext(context.Background(), msg)
}

// Warn logs a warning-level message
func (cl *Logger) Warn(msg string) {
	cl.WarnContext(context.Background(), msg)
}

// Error logs an error-level message with optional error details
func (cl *Logger) Error(msg string, err error) {
	cl.ErrorContext(context.Background(), msg, err)
}

// DebugContext logs a debug-level message with context
func (cl *Logger) DebugContext(ctx context.Context, msg string) {
	cl.logWithContext(ctx, LogLevelDebug, msg, "")
	if cl.logger != nil {
		cl.logger.Debug(msg, "component", cl.componentName, "sensor_id", cl.sensorID)
	}
}

// InfoContext logs an info-level message with context
func (cl *Logger) InfoContext(ctx context.Context, msg string) {
	cl.logWithContext(ctx, LogLevelInfo, msg, "")
	if cl.logger != nil {
		cl.logger.Info(msg, "component", cl.componentName, "sensor_id", cl.sensorID)
	}
}

// WarnContext logs a warning-level message with context
func (cl *Logger) WarnContext(ctx context.Context, msg string) {
	cl.logWithContext(ctx, LogLevelWarn, msg, "")
	if cl.logger != nil {
		cl.logger.Warn(msg, "component", cl.componentName, "sensor_id", cl.sensorID)
	}
}

// ErrorContext logs an error-level message with optional error details and context
func (cl *Logger) ErrorContext(ctx context.Context, msg string, err error) {
	stack := ""
	if err != nil {
		stack = fmt.Sprintf("%+v", err)
	}
	cl.logWithContext(ctx, LogLevelError, msg, stack)
	if cl.logger != nil {
		cl.logger.Error(msg, "component", cl.componentName, "sensor_id", cl.sensorID, "error", err)
	}
}

// logWithContext publishes a log entry to NATS with context cancellation support
func (cl *Logger) logWithContext(ctx context.Context, level LogLevel, message, stack string) {
	if !cl.enabled {
		return
	}

	// Check context before performing I/O
	select {
	case <-ctx.Done():
		return
	default:
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Component: cl.componentName,
		SensorID:  cl.sensorID,
		Message:   message,
		Stack:     stack,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		if cl.logger != nil {
			cl.logger.Error("Failed to marshal log entry", "error", err)
		}
		return
	}

	// nc can be cleared concurrently during shutdown
	nc := cl.nc
	if nc == nil {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	// Publish to NATS subject: logs.{component}.{sensor_id}
	subject := fmt.Sprintf("logs.%s.%s", cl.componentName, cl.sensorID)
	if err := nc.Publish(subject, data); err != nil {
		if cl.logger != nil {
			cl.logger.Error("Failed to publish log to NATS", "error", err, "subject", subject)
		}
	}
}
