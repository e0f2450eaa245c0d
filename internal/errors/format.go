package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message. Non-*Error values
// fall back to err.Error().
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(e.Message)
	sb.WriteString("\n")

	if e.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(e.Suggestion)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", e.Kind))
	return sb.String()
}

// FormatForCLI formats an error for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	e, ok := err.(*Error)
	if !ok {
		e = Wrap(KindIO, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))
	if e.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", e.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Kind: %s\n", e.Kind))
	return sb.String()
}

// jsonError is the JSON representation of an Error.
type jsonError struct {
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, suitable for
// machine consumption.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	e, ok := err.(*Error)
	if !ok {
		e = Wrap(KindIO, err)
	}

	je := jsonError{
		Kind:       string(e.Kind),
		Message:    e.Message,
		Details:    e.Details,
		Suggestion: e.Suggestion,
		Retryable:  retryableKinds[e.Kind],
	}
	if e.Cause != nil {
		je.Cause = e.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error as key-value pairs suitable for slog
// attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_kind": string(e.Kind),
		"message":    e.Message,
		"retryable":  retryableKinds[e.Kind],
	}
	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}
	if e.Suggestion != "" {
		result["suggestion"] = e.Suggestion
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}

	return result
}
