package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedErrorWrapping(t *testing.T) {
	base := errors.New("bucket gone")
	err := WrapTransient(base, "KVStream", "WatchData", "open watcher")

	if !IsTransient(err) {
		t.Error("expected wrapped error to be transient")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to unwrap to the base error")
	}

	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatal("expected a ClassifiedError")
	}
	if ce.Component != "KVStream" || ce.Operation != "WatchData" {
		t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if Wrap(nil, "c", "m", "a") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if WrapTransient(nil, "c", "m", "a") != nil {
		t.Error("WrapTransient(nil) should be nil")
	}
	if WrapInvalid(nil, "c", "m", "a") != nil {
		t.Error("WrapInvalid(nil) should be nil")
	}
	if WrapFatal(nil, "c", "m", "a") != nil {
		t.Error("WrapFatal(nil) should be nil")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"context deadline", context.DeadlineExceeded, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"storage unavailable", ErrStorageUnavailable, ErrorTransient},
		{"unauthorized", ErrUnauthorized, ErrorInvalid},
		{"sensor not found", ErrSensorNotFound, ErrorInvalid},
		{"user not found", ErrUserNotFound, ErrorInvalid},
		{"invalid config", ErrInvalidConfig, ErrorFatal},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"unknown defaults transient", errors.New("weird"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifySurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handshake: %w", ErrUnauthorized)
	if !IsInvalid(err) {
		t.Error("fmt-wrapped ErrUnauthorized must still classify as invalid")
	}
}

func TestMessagePatternFallback(t *testing.T) {
	if !IsTransient(errors.New("dial tcp: i/o timeout")) {
		t.Error("timeout message should classify as transient")
	}
}
