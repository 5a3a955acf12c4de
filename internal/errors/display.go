package errors

import (
	"fmt"
	"strings"
)

// DisplayError formats an error for user-friendly display
func DisplayError(err error) string {
	if te, ok := AsTrackerError(err); ok {
		return te.Error()
	}
	return fmt.Sprintf("Error: %v", err)
}

// DisplayErrorSummary provides a brief summary of the error for logs
func DisplayErrorSummary(err error) string {
	if te, ok := AsTrackerError(err); ok {
		return fmt.Sprintf("%s-%s: %s", te.Category, te.Code, te.Message)
	}

	errStr := err.Error()
	if len(errStr) > 100 {
		return errStr[:97] + "..."
	}
	return errStr
}

// ShouldDisplayTroubleshooting determines if troubleshooting info should be shown
func ShouldDisplayTroubleshooting(err error) bool {
	if te, ok := AsTrackerError(err); ok {
		return len(te.Troubleshooting) > 0
	}
	return false
}

// FormatForCLI formats an error for command-line display with proper spacing
func FormatForCLI(err error) string {
	te, ok := AsTrackerError(err)
	if !ok {
		return fmt.Sprintf("\nError: %v\n", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n%s Error [%s-%s]\n", categoryTitle(te.Category), te.Category, te.Code))
	sb.WriteString(fmt.Sprintf("  %s\n", te.Message))

	if te.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nFailed Operation: %s\n", te.Operation))
	}

	if len(te.Context) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, key := range te.contextKeys() {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", key, te.Context[key]))
		}
	}

	if len(te.Troubleshooting) > 0 {
		sb.WriteString("\nHow to resolve:\n")
		for i, step := range te.Troubleshooting {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	if te.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", te.OriginalError))
	}

	return sb.String()
}

// IsUserError determines if an error is due to user input/configuration
func IsUserError(err error) bool {
	if te, ok := AsTrackerError(err); ok {
		return te.Category == ErrorCategoryValidation ||
			te.Category == ErrorCategoryConfiguration ||
			te.Category == ErrorCategoryHistory
	}
	return false
}

// GetErrorCode extracts the error code for reporting
func GetErrorCode(err error) string {
	if te, ok := AsTrackerError(err); ok {
		return fmt.Sprintf("%s-%s", te.Category, te.Code)
	}
	return "UNKNOWN"
}

func categoryTitle(c ErrorCategory) string {
	s := strings.ToLower(string(c))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
