package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection closed", ErrConnectionClosed, true},
		{"connection lost", ErrConnectionLost, true},
		{"connection timeout", ErrConnectionTimeout, true},
		{"publish failed", ErrPublishFailed, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"frame parse", ErrFrameParse, false},
		{"record decode", ErrRecordDecode, false},
		{"invalid config", ErrInvalidConfig, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"refused in message", fmt.Errorf("dial tcp: connection refused"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"frame parse", ErrFrameParse, true},
		{"record decode", ErrRecordDecode, true},
		{"wrapped frame parse", fmt.Errorf("framer: %w", ErrFrameParse), true},
		{"connection closed", ErrConnectionClosed, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"connection closed", ErrConnectionClosed, false},
		{"record decode", ErrRecordDecode, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"record decode", ErrRecordDecode, ErrorInvalid},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"unknown defaults transient", fmt.Errorf("some error"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("expected %v, got %v", test.expected, got)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	wrapped := Wrap(base, "Framer", "Next", "read header")
	if wrapped == nil {
		t.Fatal("expected non-nil error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base via errors.Is")
	}
	expected := "Framer.Next: read header failed: boom"
	if wrapped.Error() != expected {
		t.Errorf("expected %q, got %q", expected, wrapped.Error())
	}

	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("boom")

	transient := WrapTransient(base, "Input", "Start", "dial")
	if !IsTransient(transient) {
		t.Error("WrapTransient result should classify as transient")
	}

	invalid := WrapInvalid(base, "Decoder", "Decode", "payload length")
	if !IsInvalid(invalid) {
		t.Error("WrapInvalid result should classify as invalid")
	}

	fatal := WrapFatal(base, "Config", "Load", "parse")
	if !IsFatal(fatal) {
		t.Error("WrapFatal result should classify as fatal")
	}

	// Classification survives further wrapping
	rewrapped := fmt.Errorf("outer: %w", invalid)
	if !IsInvalid(rewrapped) {
		t.Error("classification should survive fmt.Errorf wrapping")
	}

	var ce *ClassifiedError
	if !errors.As(invalid, &ce) {
		t.Fatal("expected ClassifiedError in chain")
	}
	if ce.Component != "Decoder" || ce.Operation != "Decode" {
		t.Errorf("unexpected context: %+v", ce)
	}
	if !strings.Contains(ce.Error(), "payload length failed") {
		t.Errorf("unexpected message: %s", ce.Error())
	}
}
