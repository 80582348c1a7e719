package core

import (
	"context"
	"errors"
	"fmt"
)

// Provider defines the interface for the delivery client.
// Implementations perform one synchronous delivery attempt per call.
type Provider interface {
	// Send performs a single delivery attempt for the given message.
	Send(ctx context.Context, msg *Message) (*SendResult, error)

	// Name returns the provider's name for identification and logging.
	Name() string
}

// Message is one rendered email ready for delivery.
type Message struct {
	// From is the sender address.
	From string

	// To is the recipient address.
	To string

	// Subject is the email subject line.
	Subject string

	// HTML is the rendered HTML body.
	HTML string
}

// SendResult contains the outcome of a successful delivery attempt.
type SendResult struct {
	// MessageID is the identifier assigned by the provider.
	MessageID string

	// Provider is the name of the provider that accepted the message.
	Provider string
}

// Record is one row of recipient input, keyed by column name.
// It always carries the recipient's email address under a configurable key.
type Record map[string]string

// Get retrieves a field value by column name.
func (r Record) Get(column string) string {
	return r[column]
}

// Has reports whether the record contains a non-empty value for the column.
func (r Record) Has(column string) bool {
	return r[column] != ""
}

// Vars is the set of template variables assembled for one recipient.
type Vars map[string]string

// FieldMap maps template variable names to input column names.
type FieldMap map[string]string

// Summary holds the aggregate counters for one pipeline run.
// Succeeded + Failed == Total holds throughout a run.
type Summary struct {
	// Total is the number of recipients processed.
	Total int

	// Succeeded is the number of recipients whose terminal outcome was success.
	Succeeded int

	// Failed is the number of recipients whose terminal outcome was failure.
	Failed int
}

// Record adds one terminal recipient outcome to the summary.
func (s *Summary) Record(ok bool) {
	s.Total++
	if ok {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// String returns a human-readable summary line.
func (s Summary) String() string {
	return fmt.Sprintf("total=%d succeeded=%d failed=%d", s.Total, s.Succeeded, s.Failed)
}

// ValidationError represents a configuration or input-record validation
// failure. It is never retried.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string

	// Message is the validation error message.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// Is implements error matching for errors.Is.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ProviderError represents a failed delivery attempt.
type ProviderError struct {
	// Provider is the name of the provider that generated the error.
	Provider string

	// Code classifies the failure (e.g. "network_error", "http_error").
	Code string

	// Message is the error message, including the provider response body
	// for HTTP failures.
	Message string

	// StatusCode is the HTTP status code, or zero for transport-level failures.
	StatusCode int

	// IsRetryable indicates whether the attempt may be retried.
	IsRetryable bool

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s error [%s] (status: %d): %s",
			e.Provider, e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s error [%s]: %s", e.Provider, e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Retryable implements RetryableError for ProviderError.
func (e *ProviderError) Retryable() bool {
	return e.IsRetryable
}

// RetryableError interface indicates whether an error can be retried.
type RetryableError interface {
	Retryable() bool
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewNetworkError creates a retryable provider error for a transport-level
// failure (connection error, timeout).
func NewNetworkError(provider string, cause error) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        "network_error",
		Message:     cause.Error(),
		IsRetryable: true,
		Cause:       cause,
	}
}

// NewHTTPError creates a retryable provider error for a non-success HTTP
// response from the provider.
func NewHTTPError(provider string, statusCode int, body string) *ProviderError {
	return &ProviderError{
		Provider:    provider,
		Code:        "http_error",
		Message:     body,
		StatusCode:  statusCode,
		IsRetryable: true,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if re, ok := err.(RetryableError); ok {
		return re.Retryable()
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable
	}

	return false
}
