// Package errors provides standardized error handling for the HTTP functions.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Client errors
	ErrCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeBodyTooLarge     ErrorCode = "BODY_TOO_LARGE"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Ledger errors
	ErrCodePartitionNotFound ErrorCode = "PARTITION_NOT_FOUND"
	ErrCodeLedgerWriteFailed ErrorCode = "LEDGER_WRITE_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Field     string                 `json:"field,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches on error code so callers can test against the sentinels below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrPartitionNotFound = &StandardError{Code: ErrCodePartitionNotFound}
	ErrLedgerWriteFailed = &StandardError{Code: ErrCodeLedgerWriteFailed}
	ErrInvalidJSON       = &StandardError{Code: ErrCodeInvalidJSON}
)

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidJSONError is returned when the request body is not a JSON object.
func NewInvalidJSONError(err error) *StandardError {
	stdErr := &StandardError{
		Code:      ErrCodeInvalidJSON,
		Message:   "Invalid JSON in request body.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

// NewBodyTooLargeError rejects bodies over the configured size cap.
func NewBodyTooLargeError(limit int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeBodyTooLarge,
		Message:   "Request body too large.",
		Retryable: false,
		Metadata:  map[string]interface{}{"limitBytes": limit},
		Timestamp: time.Now().UTC(),
	}
}

// NewFieldValidationError names the first required field that failed.
func NewFieldValidationError(field, label string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("%s is a required field and must be a valid string.", label),
		Field:     field,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMethodNotAllowedError rejects anything other than POST and OPTIONS.
func NewMethodNotAllowedError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMethodNotAllowed,
		Message:   fmt.Sprintf("HTTP Method '%s' not allowed.", method),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError is returned when a client exceeds the submission window.
func NewRateLimitedError(retryAfter time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Too many submissions. Please try again later.",
		Retryable: true,
		Metadata:  map[string]interface{}{"retryAfterSeconds": int(retryAfter.Seconds())},
		Timestamp: time.Now().UTC(),
	}
}

// NewPartitionNotFoundError marks an append that targeted a missing year sheet.
// It is handled inside the ledger writer and never reaches a client.
func NewPartitionNotFoundError(partition string, err error) *StandardError {
	stdErr := &StandardError{
		Code:      ErrCodePartitionNotFound,
		Message:   fmt.Sprintf("Ledger partition %q does not exist", partition),
		Retryable: true,
		Metadata:  map[string]interface{}{"partition": partition},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

// NewLedgerWriteFailedError wraps any store failure that leaves the inquiry
// unrecorded. details is the store's own message and is shown to the client.
func NewLedgerWriteFailedError(operation, details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerWriteFailed,
		Message:   "Failed to submit form",
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError is logged only; notifications never fail a request.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   fmt.Sprintf("Failed to send %s notification", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError normalizes an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Classification
// ==========================

// HTTPStatus maps an error code to the response status it produces.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidJSON, ErrCodeValidationFailed, ErrCodeBodyTooLarge:
		return http.StatusBadRequest
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorCategory groups codes for logging and metrics.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidJSON, ErrCodeValidationFailed, ErrCodeBodyTooLarge, ErrCodeMethodNotAllowed, ErrCodeRateLimited:
		return "client"
	case ErrCodePartitionNotFound, ErrCodeLedgerWriteFailed:
		return "ledger"
	case ErrCodeNotificationSendFailed:
		return "notification"
	default:
		return "internal"
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}
