// Package errors provides structured error types for testapps.
//
// This package defines the error categories the event loop and the test
// programs can produce, so that callers can tell a bad scheduling call
// apart from a missing platform capability or a callback that blew up.
package errors

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypePlatform   ErrorType = "platform"
	ErrorTypeState      ErrorType = "state"
	ErrorTypeCallback   ErrorType = "callback"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes
const (
	CodeInvalidDelay      = "INVALID_DELAY"
	CodeInvalidSchedule   = "INVALID_SCHEDULE"
	CodeSignalUnsupported = "SIGNAL_UNSUPPORTED"
	CodeUnknownSignal     = "UNKNOWN_SIGNAL"
	CodeAlreadyRunning    = "ALREADY_RUNNING"
	CodeClosed            = "LOOP_CLOSED"
	CodeCallbackPanic     = "CALLBACK_PANIC"
	CodeInvalidConfig     = "INVALID_CONFIG"
)

// LoopError is the base error type for all testapps errors
type LoopError struct {
	Type       ErrorType
	Code       string
	Message    string
	Underlying error
	Details    map[string]interface{}
	Context    context.Context
	StackTrace []string
	Timestamp  time.Time
}

// Error implements the error interface
func (e *LoopError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Type, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *LoopError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target has the same type and code.
func (e *LoopError) Is(target error) bool {
	if t, ok := target.(*LoopError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// WithDetails adds details to the error
func (e *LoopError) WithDetails(key string, value interface{}) *LoopError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithOperation adds operation context to an error
func (e *LoopError) WithOperation(operation string) *LoopError {
	return e.WithDetails("operation", operation)
}

// Common error constructors

// ValidationError creates a validation error
func ValidationError(code, message string, underlying error) *LoopError {
	return &LoopError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// PlatformError creates an error for a capability the platform lacks
func PlatformError(code, message string, underlying error) *LoopError {
	return &LoopError{
		Type:       ErrorTypePlatform,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// StateError creates an error for an operation invalid in the loop's current state
func StateError(code, message string, underlying error) *LoopError {
	return &LoopError{
		Type:       ErrorTypeState,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// CallbackError creates an error raised by a scheduled callback
func CallbackError(code, message string, underlying error) *LoopError {
	return &LoopError{
		Type:       ErrorTypeCallback,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// ConfigError creates a configuration error
func ConfigError(code, message string, underlying error) *LoopError {
	return &LoopError{
		Type:       ErrorTypeConfig,
		Code:       code,
		Message:    message,
		Underlying: underlying,
	}
}

// Predefined error instances

var (
	ErrInvalidDelay      = ValidationError(CodeInvalidDelay, "Delay must be non-negative", nil)
	ErrInvalidSchedule   = ValidationError(CodeInvalidSchedule, "Invalid recurring schedule", nil)
	ErrUnknownSignal     = ValidationError(CodeUnknownSignal, "Unknown signal kind", nil)
	ErrSignalUnsupported = PlatformError(CodeSignalUnsupported, "Signal delivery not supported on this platform", nil)
	ErrAlreadyRunning    = StateError(CodeAlreadyRunning, "Loop is already running", nil)
	ErrClosed            = StateError(CodeClosed, "Loop is closed", nil)
	ErrCallbackPanic     = CallbackError(CodeCallbackPanic, "Callback panicked", nil)
	ErrInvalidConfig     = ConfigError(CodeInvalidConfig, "Invalid configuration", nil)
)

// InvalidDelay returns an ErrInvalidDelay carrying the rejected value.
func InvalidDelay(delay time.Duration) *LoopError {
	return ValidationError(CodeInvalidDelay,
		fmt.Sprintf("Delay must be non-negative, got %v", delay), nil).
		WithDetails("delay", delay.String())
}

// IsCode checks if an error has a specific code
func IsCode(err error, code string) bool {
	if loopErr, ok := err.(*LoopError); ok {
		return loopErr.Code == code
	}
	return false
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) []string {
	var stack []string
	pc := make([]uintptr, 16)
	n := runtime.Callers(skip+1, pc)

	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}

	return stack
}

// LogAttrs returns slog attributes for the error
func (e *LoopError) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error_type", string(e.Type)),
		slog.String("error_code", e.Code),
		slog.String("error_message", e.Message),
	}
	if !e.Timestamp.IsZero() {
		attrs = append(attrs, slog.Time("error_timestamp", e.Timestamp))
	}

	if e.Underlying != nil {
		attrs = append(attrs, slog.String("underlying_error", e.Underlying.Error()))
	}

	for key, value := range e.Details {
		attrs = append(attrs, slog.Any(fmt.Sprintf("error_detail_%s", key), value))
	}

	if len(e.StackTrace) > 0 {
		maxFrames := 3
		if len(e.StackTrace) < maxFrames {
			maxFrames = len(e.StackTrace)
		}
		attrs = append(attrs, slog.Any("error_stack", e.StackTrace[:maxFrames]))
	}

	return attrs
}

// Recovery helpers

// FromPanic converts a recovered panic value into a CALLBACK_PANIC error.
// It returns nil when r is nil. recover() itself must be called by the
// deferred function, so callers pass its result here.
func FromPanic(ctx context.Context, r any) *LoopError {
	if r == nil {
		return nil
	}

	var err error
	if e, ok := r.(error); ok {
		err = e
	} else {
		err = fmt.Errorf("panic: %v", r)
	}

	return &LoopError{
		Type:       ErrorTypeCallback,
		Code:       CodeCallbackPanic,
		Message:    "Callback panicked",
		Underlying: err,
		Context:    ctx,
		Timestamp:  time.Now(),
		StackTrace: captureStackTrace(3),
	}
}
