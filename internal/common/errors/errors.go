// Package errors provides standardized error handling for the triage pipeline.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeEmptyInput          ErrorCode = "EMPTY_INPUT"
	ErrCodeDimensionMismatch   ErrorCode = "DIMENSION_MISMATCH"
	ErrCodeBackendUnavailable  ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeDuplicateSuggestion ErrorCode = "DUPLICATE_SUGGESTION"
	ErrCodeArticleNotFound     ErrorCode = "ARTICLE_NOT_FOUND"
	ErrCodeTicketNotFound      ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeSuggestionNotFound  ErrorCode = "SUGGESTION_NOT_FOUND"
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeDatabaseFailed      ErrorCode = "DATABASE_FAILED"
	ErrCodeSearchQueryFailed   ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeNotificationFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrEmptyInput          = errors.New("EMPTY_INPUT")
	ErrDimensionMismatch   = errors.New("DIMENSION_MISMATCH")
	ErrBackendUnavailable  = errors.New("BACKEND_UNAVAILABLE")
	ErrDuplicateSuggestion = errors.New("DUPLICATE_SUGGESTION")
	ErrArticleNotFound     = errors.New("ARTICLE_NOT_FOUND")
	ErrTicketNotFound      = errors.New("TICKET_NOT_FOUND")
	ErrSuggestionNotFound  = errors.New("SUGGESTION_NOT_FOUND")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap maps the structured error back to its sentinel so callers can use
// errors.Is without importing the code constants.
func (e *StandardError) Unwrap() error {
	switch e.Code {
	case ErrCodeEmptyInput:
		return ErrEmptyInput
	case ErrCodeDimensionMismatch:
		return ErrDimensionMismatch
	case ErrCodeBackendUnavailable:
		return ErrBackendUnavailable
	case ErrCodeDuplicateSuggestion:
		return ErrDuplicateSuggestion
	case ErrCodeArticleNotFound:
		return ErrArticleNotFound
	case ErrCodeTicketNotFound:
		return ErrTicketNotFound
	case ErrCodeSuggestionNotFound:
		return ErrSuggestionNotFound
	}
	return nil
}

func NewEmptyInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyInput,
		Message:   "Cannot embed empty or whitespace-only text",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDimensionMismatchError(want, got int) *StandardError {
	return &StandardError{
		Code:      ErrCodeDimensionMismatch,
		Message:   "Vector dimensions do not match",
		Details:   fmt.Sprintf("want: %d, got: %d", want, got),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewBackendUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeBackendUnavailable,
		Message:   "Managed search backend is unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewDuplicateSuggestionError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateSuggestion,
		Message:   "A suggestion already exists for this ticket",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewArticleNotFoundError(articleID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeArticleNotFound,
		Message:   "Article not found or not published",
		Details:   fmt.Sprintf("articleId: %s", articleID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewTicketNotFoundError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTicketNotFound,
		Message:   "Ticket not found",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSuggestionNotFoundError(ticketID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSuggestionNotFound,
		Message:   "No suggestion exists for this ticket",
		Details:   fmt.Sprintf("ticketId: %s", ticketID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Payload validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSearchQueryFailedError(tier string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query failed",
		Details:   fmt.Sprintf("tier: %s, error: %s", tier, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationFailedError(event string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("event: %s, error: %s", event, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error code to the status the route layer should return.
// Duplicate and not-found conditions are caller errors; everything else is a
// server-side failure.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeDuplicateSuggestion:
		return http.StatusConflict
	case ErrCodeArticleNotFound, ErrCodeTicketNotFound, ErrCodeSuggestionNotFound:
		return http.StatusNotFound
	case ErrCodeEmptyInput, ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the error carries a retryable code.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// CodeOf extracts the error code, or empty string for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}
