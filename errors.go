package sdk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common SDK error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates the provided configuration is invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSessionClosed indicates an operation was attempted on a session that
	// has already been closed.
	ErrSessionClosed = errors.New("session closed")
)

// Error kinds categorize errors by their type.
const (
	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindTransport represents errors reaching the queue, the registry, or
	// another remote dependency.
	KindTransport = "transport"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindInternal represents internal SDK errors.
	KindInternal = "internal"
)

// SDKError is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of error.
//
// SDKError implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &SDKError{
//		Op:   "Session.Evaluate",
//		Kind: KindValidation,
//		Err:  ErrSessionClosed,
//	}
type SDKError struct {
	// Op is the operation that failed (e.g., "NewSession", "worker.Run").
	Op string

	// Kind categorizes the error (e.g., KindValidation, KindTransport).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include run IDs, evaluator names, or other debugging information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *SDKError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sdk: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("sdk: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("sdk: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *SDKError) Unwrap() error {
	return e.Err
}

// Is implements error matching for SDKError, allowing comparison based on
// the underlying error or the SDKError itself.
func (e *SDKError) Is(target error) bool {
	if target == nil {
		return false
	}

	// Check if target is an SDKError with matching Kind
	if t, ok := target.(*SDKError); ok {
		// Match if both Op and Kind are the same, or if Kind matches and Op is empty in target
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	// Delegate to underlying error
	return errors.Is(e.Err, target)
}

// WithContext returns a new SDKError with the provided context added.
// This is useful for adding debugging information to errors.
//
// Example:
//
//	err := &SDKError{
//		Op:   "Session.Evaluate",
//		Kind: KindValidation,
//		Err:  ErrSessionClosed,
//	}
//	err = err.WithContext(map[string]any{
//		"run_id": report.RunID,
//	})
func (e *SDKError) WithContext(ctx map[string]any) *SDKError {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewValidationError creates a new SDKError with KindValidation.
func NewValidationError(op string, err error) *SDKError {
	return &SDKError{
		Op:   op,
		Kind: KindValidation,
		Err:  err,
	}
}

// NewTransportError creates a new SDKError with KindTransport.
func NewTransportError(op string, err error) *SDKError {
	return &SDKError{
		Op:   op,
		Kind: KindTransport,
		Err:  err,
	}
}

// NewTimeoutError creates a new SDKError with KindTimeout.
func NewTimeoutError(op string, err error) *SDKError {
	return &SDKError{
		Op:   op,
		Kind: KindTimeout,
		Err:  err,
	}
}

// NewInternalError creates a new SDKError with KindInternal.
func NewInternalError(op string, err error) *SDKError {
	return &SDKError{
		Op:   op,
		Kind: KindInternal,
		Err:  err,
	}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g., "sink",
// "queue client", "registry client"). If logger is nil, slog.Default() is used.
//
// Example usage:
//
//	defer sdk.CloseWithLog(sink, logger, "JSONL sink")
//	defer sdk.CloseWithLog(client, logger, "queue client")
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
