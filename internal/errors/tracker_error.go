package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// ErrorCategoryProtocol represents malformed or unexpected host messages
	ErrorCategoryProtocol ErrorCategory = "PROTOCOL"
	// ErrorCategoryConfiguration represents configuration errors
	ErrorCategoryConfiguration ErrorCategory = "CONFIGURATION"
	// ErrorCategoryHistory represents execution history input errors
	ErrorCategoryHistory ErrorCategory = "HISTORY"
	// ErrorCategoryPublish represents snapshot publishing errors
	ErrorCategoryPublish ErrorCategory = "PUBLISH"
	// ErrorCategoryValidation represents validation errors
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
)

// TrackerError represents a structured error with context and troubleshooting information
type TrackerError struct {
	Category        ErrorCategory
	Code            string
	Message         string
	Operation       string
	Context         map[string]interface{}
	Troubleshooting []string
	OriginalError   error
}

// Error implements the error interface
func (e *TrackerError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s-%s: %s", e.Category, e.Code, e.Message))

	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nOperation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		sb.WriteString("\nContext:")
		for _, key := range e.contextKeys() {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", key, e.Context[key]))
		}
	}

	if len(e.Troubleshooting) > 0 {
		sb.WriteString("\nTroubleshooting:")
		for i, step := range e.Troubleshooting {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	if e.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nUnderlying error: %v", e.OriginalError))
	}

	return sb.String()
}

// Unwrap returns the original error for error chain compatibility
func (e *TrackerError) Unwrap() error {
	return e.OriginalError
}

func (e *TrackerError) contextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewTrackerError creates a new error with the specified parameters
func NewTrackerError(category ErrorCategory, code, message, operation string) *TrackerError {
	return &TrackerError{
		Category:        category,
		Code:            code,
		Message:         message,
		Operation:       operation,
		Context:         make(map[string]interface{}),
		Troubleshooting: []string{},
	}
}

// WithContext adds context information to the error
func (e *TrackerError) WithContext(key string, value interface{}) *TrackerError {
	e.Context[key] = value
	return e
}

// WithTroubleshooting adds troubleshooting steps to the error
func (e *TrackerError) WithTroubleshooting(steps ...string) *TrackerError {
	e.Troubleshooting = append(e.Troubleshooting, steps...)
	return e
}

// WithOriginalError adds the original error
func (e *TrackerError) WithOriginalError(err error) *TrackerError {
	e.OriginalError = err
	return e
}

// AsTrackerError finds the first TrackerError in err's chain.
func AsTrackerError(err error) (*TrackerError, bool) {
	var te *TrackerError
	if stderrors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// NewProtocolError creates a new protocol error
func NewProtocolError(code, message, operation string) *TrackerError {
	return NewTrackerError(ErrorCategoryProtocol, code, message, operation)
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(code, message, operation string) *TrackerError {
	return NewTrackerError(ErrorCategoryConfiguration, code, message, operation)
}

// NewHistoryError creates a new execution history error
func NewHistoryError(code, message, operation string) *TrackerError {
	return NewTrackerError(ErrorCategoryHistory, code, message, operation)
}

// NewPublishError creates a new publish error
func NewPublishError(code, message, operation string) *TrackerError {
	return NewTrackerError(ErrorCategoryPublish, code, message, operation)
}

// NewValidationError creates a new validation error
func NewValidationError(code, message, operation string) *TrackerError {
	return NewTrackerError(ErrorCategoryValidation, code, message, operation)
}
