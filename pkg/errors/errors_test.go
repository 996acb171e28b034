package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEthoflowError_Error(t *testing.T) {
	err := New(CodeInvalidParameters, "invalid sampling parameters").
		WithContext("reason", "empty subjects").
		WithContext("call", "run")

	got := err.Error()
	want := "[E101] invalid sampling parameters (call=run, reason=empty subjects)"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeExportFailure, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeExportFailure, "write failed")
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to cause")
	}
	if !strings.HasSuffix(err.Error(), ": disk full") {
		t.Errorf("Error() = %q", err.Error())
	}
	if len(err.StackTrace) == 0 {
		t.Error("expected captured stack")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", MissingMediaLength("obs1"))

	if !IsCode(err, CodeMissingMediaLength) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(err, CodeExportFailure) {
		t.Error("IsCode matched the wrong code")
	}
	if GetCode(fmt.Errorf("plain")) != CodeUnknown {
		t.Error("plain errors should map to CodeUnknown")
	}
	if !errors.Is(err, New(CodeMissingMediaLength, "")) {
		t.Error("errors.Is should match by code")
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{UnpairedStateEvents("o", "d"), true},
		{New(CodeOutputExists, "exists"), true},
		{InvalidParameters("bad"), false},
		{ContextCanceled("run", context.Canceled), false},
	}
	for _, tt := range tests {
		if got := IsRecoverable(tt.err); got != tt.expected {
			t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}

func TestContextCanceled_Unwraps(t *testing.T) {
	err := ContextCanceled("sampling", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("expected context.Canceled in chain")
	}
}

func TestMultiError(t *testing.T) {
	var m MultiError
	if m.Combined() != nil {
		t.Error("empty MultiError should combine to nil")
	}

	first := New(CodeExportFailure, "a")
	m.Add(first)
	m.Add(nil)
	if m.Combined() != first {
		t.Error("single error should be returned as-is")
	}

	m.Add(New(CodeExportFailure, "b"))
	if !m.HasErrors() || !strings.HasPrefix(m.Combined().Error(), "2 errors occurred") {
		t.Errorf("unexpected combined error: %v", m.Combined())
	}
}
