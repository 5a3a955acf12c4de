package errors

import (
	"fmt"
	"strings"
)

// Common error codes
const (
	// Protocol error codes
	CodeProtocolMalformed   = "001"
	CodeProtocolMissingType = "002"
	CodeProtocolEncode      = "003"
	CodeProtocolMissingKey  = "004"

	// Configuration error codes
	CodeConfigRead    = "001"
	CodeConfigParse   = "002"
	CodeConfigInvalid = "003"

	// History error codes
	CodeHistoryRead  = "001"
	CodeHistoryParse = "002"

	// Publish error codes
	CodePublishConnect = "001"
	CodePublishWrite   = "002"

	// Validation error codes
	CodeValidationInput = "001"
	CodeValidationCycle = "002"
)

// NewMalformedMessageError creates an error for a host line that is not valid JSON
func NewMalformedMessageError(line []byte, originalErr error) *TrackerError {
	return NewProtocolError(CodeProtocolMalformed,
		"Malformed host message",
		"Message decode").
		WithContext("line", truncate(string(line), 120)).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Each host message must be a single JSON object on its own line",
			"Check that the host is not writing log output to the event stream",
		)
}

// NewMissingTypeError creates an error for a message without a type field
func NewMissingTypeError(line []byte) *TrackerError {
	return NewProtocolError(CodeProtocolMissingType,
		"Host message has no type",
		"Message decode").
		WithContext("line", truncate(string(line), 120))
}

// NewMissingKeyError creates an error for an event that names no task
func NewMissingKeyError(msgType string) *TrackerError {
	return NewProtocolError(CodeProtocolMissingKey,
		fmt.Sprintf("Message '%s' does not identify a task", msgType),
		"Key normalization").
		WithContext("type", msgType).
		WithTroubleshooting("Send either taskId or taskLabel with every task event")
}

// NewEncodeError creates an error for a command that could not be written
func NewEncodeError(command string, originalErr error) *TrackerError {
	return NewProtocolError(CodeProtocolEncode,
		fmt.Sprintf("Failed to send command '%s'", command),
		"Command encode").
		WithContext("command", command).
		WithOriginalError(originalErr)
}

// NewConfigReadError creates an error for an unreadable configuration file
func NewConfigReadError(path string, originalErr error) *TrackerError {
	return NewConfigurationError(CodeConfigRead,
		fmt.Sprintf("Cannot read configuration file '%s'", path),
		"Configuration load").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting(
			"Verify the path passed with --config exists",
			"Check the file permissions",
		)
}

// NewConfigParseError creates an error for an invalid YAML configuration file
func NewConfigParseError(path string, originalErr error) *TrackerError {
	return NewConfigurationError(CodeConfigParse,
		fmt.Sprintf("Cannot parse configuration file '%s'", path),
		"Configuration load").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting("Validate the YAML syntax of the configuration file")
}

// NewInvalidConfigError creates an error for an out of range setting
func NewInvalidConfigError(field string, value interface{}, reason string) *TrackerError {
	return NewConfigurationError(CodeConfigInvalid,
		fmt.Sprintf("Invalid value for %s: %s", field, reason),
		"Configuration validation").
		WithContext("field", field).
		WithContext("value", value)
}

// NewHistoryReadError creates an error for an unreadable execution history file
func NewHistoryReadError(path string, originalErr error) *TrackerError {
	code := CodeHistoryRead
	if originalErr != nil && strings.Contains(strings.ToLower(originalErr.Error()), "syntax") {
		code = CodeHistoryParse
	}
	return NewHistoryError(code,
		fmt.Sprintf("Cannot load execution history from '%s'", path),
		"History load").
		WithContext("path", path).
		WithOriginalError(originalErr).
		WithTroubleshooting("The file must contain a JSON array of execution records")
}

// NewPublishFailedError creates an error for a snapshot that could not be mirrored
func NewPublishFailedError(addr string, originalErr error) *TrackerError {
	err := NewPublishError(CodePublishWrite, "Failed to publish store snapshot", "Snapshot publish").
		WithContext("addr", addr).
		WithOriginalError(originalErr)

	if originalErr != nil {
		errStr := strings.ToLower(originalErr.Error())
		if strings.Contains(errStr, "refused") || strings.Contains(errStr, "timeout") {
			err.Code = CodePublishConnect
			err = err.WithTroubleshooting(
				"Check that Redis is reachable at the configured address",
				"Disable publishing by leaving redis.addr empty",
			)
		}
	}
	return err
}

// NewValidationFailedError creates an error for input validation failures
func NewValidationFailedError(field, value, operation string) *TrackerError {
	return NewValidationError(CodeValidationInput,
		fmt.Sprintf("Invalid value for %s: '%s'", field, value),
		operation).
		WithContext("field", field).
		WithContext("value", value).
		WithTroubleshooting("Use --help to see available options and examples")
}

// NewDependencyCycleError creates an error for a task catalog with a dependency loop
func NewDependencyCycleError(from, to string) *TrackerError {
	return NewValidationError(CodeValidationCycle,
		fmt.Sprintf("Task '%s' depends on '%s', which closes a cycle", from, to),
		"Dependency validation").
		WithContext("from", from).
		WithContext("to", to).
		WithTroubleshooting("Remove one of the dependsOn links between the two tasks")
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	te, ok := AsTrackerError(err)
	if !ok {
		return false
	}
	return te.Category == ErrorCategoryPublish && te.Code == CodePublishConnect
}

// GetErrorSeverity returns the severity level of an error
func GetErrorSeverity(err error) string {
	if te, ok := AsTrackerError(err); ok {
		switch te.Category {
		case ErrorCategoryProtocol, ErrorCategoryPublish:
			return "WARNING"
		case ErrorCategoryValidation, ErrorCategoryConfiguration, ErrorCategoryHistory:
			return "ERROR"
		}
	}
	return "ERROR"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
