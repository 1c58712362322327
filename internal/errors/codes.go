// Package errors provides structured error handling for the timer engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound indicates an unknown or TTL-expired session id. It is
	// terminal: callers must not retry it.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidTransition indicates the operation is not legal for the
	// session's current status.
	CodeInvalidTransition Code = "SESSION_INVALID_TRANSITION"

	// CodeBackendUnavailable indicates the store was transiently
	// unreachable. Synchronous control calls surface it immediately; the
	// poller chain retries instead.
	CodeBackendUnavailable Code = "BACKEND_UNAVAILABLE"

	// CodeMalformedRecord indicates a stored record failed to decode.
	// Callers treat it like CodeNotFound.
	CodeMalformedRecord Code = "MALFORMED_RECORD"

	// Timer definition errors
	CodeTimerNotFound        Code = "TIMER_NOT_FOUND"
	CodeTimerInactive        Code = "TIMER_INACTIVE"
	CodeTimerDurationInvalid Code = "TIMER_DURATION_INVALID"
)
