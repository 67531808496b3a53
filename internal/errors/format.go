package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for terminal display: message, optional
// hint, and the code for reference.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	re, ok := err.(*RigError)
	if !ok {
		re = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", re.Message))
	if re.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", re.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", re.Code))

	return sb.String()
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	re, ok := err.(*RigError)
	if !ok {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": re.Code,
		"message":    re.Message,
		"category":   string(re.Category),
		"severity":   string(re.Severity),
		"retryable":  re.Retryable,
	}

	if re.Cause != nil {
		result["cause"] = re.Cause.Error()
	}
	if re.Suggestion != "" {
		result["suggestion"] = re.Suggestion
	}
	for k, v := range re.Details {
		result["detail_"+k] = v
	}

	return result
}
