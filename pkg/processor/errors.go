package processor

import "errors"

var (
	// ErrCancelled is delivered to every queued or running item when the processor is cleared.
	// It is distinct from handler failures so callers can tell abandoned work from failed work.
	ErrCancelled = errors.New("processor: item cancelled")

	// ErrClosed is returned for items submitted after Close
	ErrClosed = errors.New("processor: closed")

	// ErrHandlerNil is returned when no handler is provided
	ErrHandlerNil = errors.New("processor: handler cannot be nil")

	// ErrPolicyNil is returned when no admission policy is provided
	ErrPolicyNil = errors.New("processor: admission policy cannot be nil")

	// ErrHandlerPanic wraps a panic recovered from a handler
	ErrHandlerPanic = errors.New("processor: panic in handler")

	// ErrPolicyPanic wraps a panic recovered from an admission policy
	ErrPolicyPanic = errors.New("processor: panic in admission policy")
)
