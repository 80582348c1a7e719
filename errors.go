package dispatch

import (
	"errors"
	"fmt"
)

// Predefined sentinel errors for common cases.
var (
	// ErrInvalidConfiguration indicates invalid or incomplete configuration.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMissingEmailColumn indicates a record without the configured
	// email column.
	ErrMissingEmailColumn = errors.New("email column missing from record")
)

// TemplateError represents a failed template render. Template errors are
// deterministic and are never retried.
type TemplateError struct {
	// Placeholder is the name of the unresolved placeholder.
	Placeholder string

	// Message is the error message.
	Message string
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	if e.Placeholder != "" {
		return fmt.Sprintf("template error: %s (placeholder %q)", e.Message, e.Placeholder)
	}
	return fmt.Sprintf("template error: %s", e.Message)
}

// Is implements error matching for errors.Is.
func (e *TemplateError) Is(target error) bool {
	_, ok := target.(*TemplateError)
	return ok
}

// NewTemplateError creates a new template error for an unresolved placeholder.
func NewTemplateError(placeholder, message string) *TemplateError {
	return &TemplateError{
		Placeholder: placeholder,
		Message:     message,
	}
}

// ConfigError represents a fatal configuration-loading failure. It aborts
// the run before any recipient is processed.
type ConfigError struct {
	// Path is the configuration file involved, if any.
	Path string

	// Message is the error message.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config error in %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
