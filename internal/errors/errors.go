// Package errors defines the coded errors shared by the repositories, services, and HTTP layer.
// The HTTP layer maps each ErrorCode to a status; anything uncoded is a 500.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"
	ErrCodeConflict   ErrorCode = "conflict"
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUpstreamUnavailable marks a SAM lookup that failed for any reason other than "no record".
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeInternal            ErrorCode = "internal"
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeCanceled            ErrorCode = "canceled"
)

// AppError carries a code and message, plus an optional cause reachable through errors.Is/As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending request field; validation and conflict errors only.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

func coded(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

func NotFound(message string) *AppError { return coded(ErrCodeNotFound, message) }

func NotFoundf(format string, args ...any) *AppError {
	return coded(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(message string) *AppError { return coded(ErrCodeConflict, message) }

func Validation(message string) *AppError { return coded(ErrCodeValidation, message) }

func Validationf(format string, args ...any) *AppError {
	return coded(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// ValidationField is a validation error attributed to one request field.
func ValidationField(field, message string) *AppError {
	e := coded(ErrCodeValidation, message)
	e.Field = field
	return e
}

// UpstreamUnavailable wraps a failed lookup against source. Callers treat it as retryable.
func UpstreamUnavailable(source string, cause error) *AppError {
	e := coded(ErrCodeUpstreamUnavailable, source+" unavailable")
	e.Cause = cause
	return e
}

func Internal(message string) *AppError { return coded(ErrCodeInternal, message) }

// Wrap attaches code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	e := coded(code, message)
	e.Cause = err
	return e
}

func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Has reports whether any AppError in err's chain carries code.
func Has(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

func IsNotFound(err error) bool            { return Has(err, ErrCodeNotFound) }
func IsConflict(err error) bool            { return Has(err, ErrCodeConflict) }
func IsValidation(err error) bool          { return Has(err, ErrCodeValidation) }
func IsUpstreamUnavailable(err error) bool { return Has(err, ErrCodeUpstreamUnavailable) }
func IsTimeout(err error) bool             { return Has(err, ErrCodeTimeout) }
func IsCanceled(err error) bool            { return Has(err, ErrCodeCanceled) }

// GetCode returns the code of the outermost AppError in err's chain, or "".
func GetCode(err error) ErrorCode {
	if appErr, ok := asAppError(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field of the outermost AppError in err's chain, or "".
func GetField(err error) string {
	if appErr, ok := asAppError(err); ok {
		return appErr.Field
	}
	return ""
}

func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
