package models

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable error classification returned to API
// clients and recorded on failed jobs.
type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeVideoNotFound       ErrorCode = "VIDEO_NOT_FOUND"
	ErrCodeJobNotFound         ErrorCode = "JOB_NOT_FOUND"
	ErrCodeTranscriptNotFound  ErrorCode = "TRANSCRIPT_NOT_FOUND"
	ErrCodeSummaryNotFound     ErrorCode = "SUMMARY_NOT_FOUND"
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
	ErrCodeJobNotCancellable   ErrorCode = "JOB_NOT_CANCELLABLE"
	ErrCodeJobNotRetriable     ErrorCode = "JOB_NOT_RETRIABLE"
	ErrCodeConfirmRequired     ErrorCode = "CONFIRM_REQUIRED"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeValidation          ErrorCode = "VALIDATION"
	ErrCodeParse               ErrorCode = "PARSE"
	ErrCodeCancelled           ErrorCode = "CANCELLED"
	ErrCodeInternal            ErrorCode = "INTERNAL"
)

// AppError carries a stable code plus a human-readable message. All errors
// that cross the core boundary (API responses, job failure records) are
// AppErrors; collaborator errors are converted before they surface.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError with a formatted message.
func NewAppError(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an underlying error with a code and message.
func WrapError(code ErrorCode, err error, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the ErrorCode from err, walking the wrap chain.
// Unclassified errors report ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Retryable reports whether a failed job with this error code is worth
// retrying. Transient collaborator failures are; validation and state
// errors are not.
func (c ErrorCode) Retryable() bool {
	switch c {
	case ErrCodeUpstreamUnavailable, ErrCodeTimeout, ErrCodeInternal:
		return true
	default:
		return false
	}
}
