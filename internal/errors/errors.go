package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a market error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrNoActiveRun    ErrorCode = "NO_ACTIVE_RUN"   // 409
	ErrRunCompleted   ErrorCode = "RUN_COMPLETED"   // 409
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// MarketError represents a structured error with code, status, and details.
type MarketError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *MarketError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MarketError {
	return &MarketError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing run or item.
func NewNotFound(kind, identifier string) *MarketError {
	return &MarketError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNoActiveRun creates a 409 error for operations that need an active run.
func NewNoActiveRun() *MarketError {
	return &MarketError{
		Code:    ErrNoActiveRun,
		Status:  409,
		Message: "No active shopping list found",
	}
}

// NewRunCompleted creates a 409 error when mutating a completed run.
func NewRunCompleted(runID string) *MarketError {
	return &MarketError{
		Code:    ErrRunCompleted,
		Status:  409,
		Message: fmt.Sprintf("shopping run %s is already completed", runID),
		Details: map[string]any{"run_id": runID},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *MarketError {
	return &MarketError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(op string) *MarketError {
	return &MarketError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MarketError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MarketError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is a MarketError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MarketError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// Message returns the human-readable message of err. MarketErrors yield their
// Message without the code prefix; other errors yield Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var mErr *MarketError
	if stderrors.As(err, &mErr) {
		return mErr.Message
	}
	return err.Error()
}

// As finds the first MarketError in err's chain.
func As(err error, target **MarketError) bool {
	return stderrors.As(err, target)
}
