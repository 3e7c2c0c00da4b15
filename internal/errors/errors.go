// Package errors provides the structured application error type shared by the
// queue and decision components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeStoreUnavailable indicates the coordination store failed or timed out.
	// Callers must fall back to a direct delivery path or fail the outer
	// request; the queue never silently drops data.
	ErrCodeStoreUnavailable ErrorCode = "store_unavailable"
	// ErrCodeDeliveryFailure indicates the delivery backend returned failure or timed out.
	ErrCodeDeliveryFailure ErrorCode = "delivery_failure"
	// ErrCodePermanentFailure indicates a job exhausted its retry budget.
	ErrCodePermanentFailure ErrorCode = "permanent_failure"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports error wrapping and unwrapping for use with
// errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StoreUnavailable creates a new StoreUnavailable error.
func StoreUnavailable(message string) *AppError {
	return &AppError{
		Code:    ErrCodeStoreUnavailable,
		Message: message,
	}
}

// StoreUnavailablef creates a new StoreUnavailable error with formatted message.
func StoreUnavailablef(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeStoreUnavailable,
		Message: fmt.Sprintf(format, args...),
	}
}

// DeliveryFailure creates a new DeliveryFailure error.
func DeliveryFailure(message string) *AppError {
	return &AppError{
		Code:    ErrCodeDeliveryFailure,
		Message: message,
	}
}

// PermanentFailure creates a new PermanentFailure error.
func PermanentFailure(message string) *AppError {
	return &AppError{
		Code:    ErrCodePermanentFailure,
		Message: message,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsStoreUnavailable checks if an error is a StoreUnavailable error.
func IsStoreUnavailable(err error) bool {
	return isCode(err, ErrCodeStoreUnavailable)
}

// IsDeliveryFailure checks if an error is a DeliveryFailure error.
func IsDeliveryFailure(err error) bool {
	return isCode(err, ErrCodeDeliveryFailure)
}

// IsPermanentFailure checks if an error is a PermanentFailure error.
func IsPermanentFailure(err error) bool {
	return isCode(err, ErrCodePermanentFailure)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
