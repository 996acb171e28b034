// Package errors provides structured, coded errors for ethoflow.
// Errors carry a code, context and a captured stack trace.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Input errors (1xx)
	CodeInvalidParameters Code = "E101"
	CodeFileNotFound      Code = "E102"
	CodeFilePermission    Code = "E103"
	CodeInvalidPath       Code = "E104"

	// Sampling errors (2xx)
	CodeUnpairedStateEvents Code = "E201"
	CodeMissingMediaLength  Code = "E202"

	// Output errors (3xx)
	CodeExportFailure     Code = "E301"
	CodeUnsupportedFormat Code = "E302"
	CodeOutputExists      Code = "E303"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"

	// Project errors (5xx)
	CodeProjectLoad Code = "E501"

	CodeUnknown Code = "E999"
)

// EthoflowError is the base error type for all ethoflow errors.
type EthoflowError struct {
	Code       Code
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace []Frame
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface. Context keys are rendered sorted.
func (e *EthoflowError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *EthoflowError) Unwrap() error {
	return e.Cause
}

// Is matches another EthoflowError by code.
func (e *EthoflowError) Is(target error) bool {
	if t, ok := target.(*EthoflowError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *EthoflowError) WithContext(key string, value interface{}) *EthoflowError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new EthoflowError.
func New(code Code, message string) *EthoflowError {
	return &EthoflowError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error. Returns nil if err is nil.
func Wrap(err error, code Code, message string) *EthoflowError {
	if err == nil {
		return nil
	}

	return &EthoflowError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *EthoflowError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *EthoflowError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// InvalidParameters creates a parameter rejection error.
func InvalidParameters(reason string) *EthoflowError {
	return New(CodeInvalidParameters, "invalid sampling parameters").
		WithContext("reason", reason)
}

// UnpairedStateEvents creates the per-observation pairing failure.
func UnpairedStateEvents(observationID, diagnostic string) *EthoflowError {
	return New(CodeUnpairedStateEvents, "unpaired state events").
		WithContext("observation", observationID).
		WithContext("detail", diagnostic)
}

// MissingMediaLength reports an observation whose bounds are unknown.
func MissingMediaLength(observationID string) *EthoflowError {
	return New(CodeMissingMediaLength, "media length not available").
		WithContext("observation", observationID)
}

// UnsupportedFormat reports an export format that is not implemented.
func UnsupportedFormat(format string) *EthoflowError {
	return New(CodeUnsupportedFormat, "unsupported export format").
		WithContext("format", format)
}

// OutputExists reports an existing output file under the fail policy.
func OutputExists(path string) *EthoflowError {
	return New(CodeOutputExists, "output file already exists").WithContext("path", path)
}

// ProjectLoad wraps a failure to read or decode a project file.
func ProjectLoad(path string, cause error) *EthoflowError {
	if cause == nil {
		return New(CodeProjectLoad, "failed to load project").WithContext("path", path)
	}
	return Wrap(cause, CodeProjectLoad, "failed to load project").WithContext("path", path)
}

// FileNotFound creates a file not found error.
func FileNotFound(path string) *EthoflowError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// ContextCanceled creates a cancellation error.
func ContextCanceled(operation string, cause error) *EthoflowError {
	return &EthoflowError{
		Code:       CodeContextCanceled,
		Message:    "operation canceled",
		Cause:      cause,
		Context:    map[string]interface{}{"operation": operation},
		StackTrace: captureStack(2),
	}
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var efErr *EthoflowError
	if errors.As(err, &efErr) {
		return efErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var efErr *EthoflowError
	if errors.As(err, &efErr) {
		return efErr.Code
	}
	return CodeUnknown
}

// IsRecoverable reports whether a batch can continue past err.
func IsRecoverable(err error) bool {
	switch GetCode(err) {
	case CodeUnpairedStateEvents, CodeOutputExists:
		return true
	default:
		return false
	}
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
