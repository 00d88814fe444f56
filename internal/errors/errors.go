// Package errors defines stable error codes for the extraction engine's
// failure modes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is a stable identifier for a failure mode.
type ErrorCode string

const (
	// ServerUnavailable indicates no language server is configured or the
	// configured command does not exist on PATH.
	ServerUnavailable ErrorCode = "SERVER_UNAVAILABLE"
	// ChannelNotReady indicates I/O was attempted on a channel that is not
	// in the ready state.
	ChannelNotReady ErrorCode = "CHANNEL_NOT_READY"
	// TransportFailure indicates the subprocess died, a write failed, or a
	// request was rejected by the peer.
	TransportFailure ErrorCode = "TRANSPORT_FAILURE"
	// ParseFailure indicates a single file's grammar could not be parsed.
	ParseFailure ErrorCode = "PARSE_FAILURE"
	// Timeout indicates a request did not complete in time.
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates an unexpected failure.
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// EngineError is an error with a stable code and optional remediation hint.
type EngineError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Hint    string
}

// New creates an EngineError.
func New(code ErrorCode, message string, cause error) *EngineError {
	return &EngineError{Code: code, Message: message, Cause: cause}
}

// WithHint attaches a remediation hint.
func (e *EngineError) WithHint(hint string) *EngineError {
	e.Hint = hint
	return e
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// CodeOf extracts the error code from err, or InternalError if err carries
// no EngineError in its chain.
func CodeOf(err error) ErrorCode {
	var ee *EngineError
	if stderrors.As(err, &ee) {
		return ee.Code
	}
	return InternalError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
