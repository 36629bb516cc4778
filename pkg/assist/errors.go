package assist

import (
	"errors"
	"fmt"

	"github.com/voxmill/go-assist/pkg/wire"
)

// Sentinel errors for the assist package.
var (
	// ErrTurnInProgress indicates a turn was started while the previous
	// turn's inbound stream was still open.
	ErrTurnInProgress = errors.New("assist: turn already in progress")

	// ErrMissingChannel indicates the session was built without a channel.
	ErrMissingChannel = errors.New("assist: session channel is required")

	// ErrMissingAudio indicates a voice session was built without an audio
	// transport.
	ErrMissingAudio = errors.New("assist: audio transport is required")
)

// TransportError represents a failure of the session channel: the stream
// could not be established, was aborted by the service, or carried a terminal
// status. Code wire.StatusUnavailable marks the transient, retryable class.
type TransportError struct {
	// Code is the failure status code, e.g. wire.StatusUnavailable.
	Code string

	// Reason describes what the channel was doing when it failed.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("assist: transport error [%s]: %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("assist: transport error [%s]: %s", e.Code, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a TransportError.
func NewTransportError(code, reason string, cause error) *TransportError {
	return &TransportError{Code: code, Reason: reason, Cause: cause}
}

// AudioError represents a failure of the audio transport. It is never
// retried; the device state is unknown after one.
type AudioError struct {
	// Op is the transport operation that failed, e.g. "start recording".
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *AudioError) Error() string {
	return fmt.Sprintf("assist: audio %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *AudioError) Unwrap() error {
	return e.Cause
}

// Error checking helpers.

// IsUnavailable reports whether err is the transient transport-unavailable
// condition. Only this class is eligible for bounded retry.
func IsUnavailable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Code == wire.StatusUnavailable
}

// IsAudioError reports whether err originated in the audio transport.
func IsAudioError(err error) bool {
	var ae *AudioError
	return errors.As(err, &ae)
}
