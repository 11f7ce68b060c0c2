package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatUnsupported ErrorCategory = "unsupported" // Capability missing on this host
	ErrCatCapture     ErrorCategory = "capture"     // Provider could not produce an artifact
	ErrCatTransfer    ErrorCategory = "transfer"    // Move or upload failed
	ErrCatValidation  ErrorCategory = "validation"  // Invalid input
	ErrCatInternal    ErrorCategory = "internal"    // Unexpected internal error
)

// Error codes
const (
	CodeUnsupportedPlatform = "UNSUPPORTED_PLATFORM"
	CodeCaptureFailed       = "CAPTURE_FAILED"
	CodeTransferFailed      = "TRANSFER_FAILED"
	CodeUnknownKind         = "UNKNOWN_KIND"
	CodeNotConnected        = "NOT_CONNECTED"
	CodeTransient           = "TRANSIENT"
)

// Sentinels for errors.Is. They match any DomainError with the same
// category and code, regardless of message or cause.
var (
	ErrUnsupportedPlatform = &DomainError{Category: ErrCatUnsupported, Code: CodeUnsupportedPlatform}
	ErrCaptureFailed       = &DomainError{Category: ErrCatCapture, Code: CodeCaptureFailed}
	ErrTransferFailed      = &DomainError{Category: ErrCatTransfer, Code: CodeTransferFailed}
)

// DomainError represents a structured error from the diagnostics layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
	// Retryable marks transient failures worth another attempt.
	Retryable bool
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrUnsupported creates an unsupported-platform error for a capability.
func ErrUnsupported(capability, goos string) *DomainError {
	return &DomainError{
		Category: ErrCatUnsupported,
		Code:     CodeUnsupportedPlatform,
		Message:  fmt.Sprintf("%s not supported on %s", capability, goos),
		Details: map[string]interface{}{
			"capability": capability,
			"platform":   goos,
		},
	}
}

// ErrCapture creates a capture error for an artifact kind.
func ErrCapture(kind ArtifactKind, cause error) *DomainError {
	return &DomainError{
		Category: ErrCatCapture,
		Code:     CodeCaptureFailed,
		Message:  fmt.Sprintf("producing %s", kind),
		Cause:    cause,
	}
}

// ErrTransfer creates a transfer error for a destination.
func ErrTransfer(destination string, cause error) *DomainError {
	return &DomainError{
		Category: ErrCatTransfer,
		Code:     CodeTransferFailed,
		Message:  fmt.Sprintf("persisting to %s", destination),
		Cause:    cause,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// ErrTransient wraps a failure that may succeed when repeated, such as a
// timeout or a 5xx from Object Storage.
func ErrTransient(cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatTransfer,
		Code:      CodeTransient,
		Message:   "transient failure",
		Cause:     cause,
		Retryable: true,
	}
}

// IsRetryable reports whether the outermost DomainError in err is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}
