package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/flwor/internal/expr"
)

// RuntimeError is an engine-level failure that is not an XQuery error:
// broken invariants, exceeded quotas and misconfiguration. Query errors
// surface as *expr.Error and keep their XQuery codes.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ExecutionID identifies the affected evaluation, empty for compile
	// failures.
	ExecutionID string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInternal indicates a broken optimizer or runtime invariant.
	ErrCodeInternal RuntimeErrorCode = "INTERNAL"

	// ErrCodeQuotaExceeded indicates the result exceeded the item limit.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeInvalidOption indicates an engine option with an unusable value.
	ErrCodeInvalidOption RuntimeErrorCode = "INVALID_OPTION"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("%s: %s (execution=%s)", e.Code, e.Message, e.ExecutionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInternalError returns true if the error is a recovered invariant
// violation. Uses errors.As to handle wrapped errors.
func IsInternalError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInternal
	}
	return false
}

// IsQuotaError returns true if the error is a result quota error.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	return false
}

// NewQuotaError creates a RuntimeError for an exceeded result quota.
func NewQuotaError(executionID string, limit int) *RuntimeError {
	return &RuntimeError{
		Code:        ErrCodeQuotaExceeded,
		Message:     fmt.Sprintf("result exceeded %d items", limit),
		ExecutionID: executionID,
		Details: map[string]string{
			"max_items": fmt.Sprintf("%d", limit),
		},
	}
}

// recoverInternal converts a panic carrying *expr.InternalError into a
// RuntimeError stored in *err. Other panics propagate.
func recoverInternal(executionID string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*expr.InternalError)
	if !ok {
		panic(r)
	}
	*err = &RuntimeError{
		Code:        ErrCodeInternal,
		Message:     ie.Message,
		ExecutionID: executionID,
	}
}

// ErrorCode returns the code of a query or runtime error, or "" for other
// errors. The CLI and the scenario harness report errors by code.
func ErrorCode(err error) string {
	if code, ok := expr.CodeOf(err); ok {
		return string(code)
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ""
}
