package tool

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the tool system.
var (
	// ErrEmptyName indicates a tool was created with an empty name.
	ErrEmptyName = errors.New("tool name cannot be empty")

	// ErrNoHandler indicates a tool was created without a handler.
	ErrNoHandler = errors.New("tool has no handler")

	// ErrToolNotFound indicates the requested tool was not found.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExists indicates a tool with the same name already exists.
	ErrToolExists = errors.New("tool already exists")

	// ErrInvalidInput indicates the arguments failed validation.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrExecutionTimeout indicates the tool execution timed out.
	ErrExecutionTimeout = errors.New("tool execution timed out")
)

// ErrorKind classifies tool failures.
type ErrorKind string

const (
	// KindValidation marks bad arguments. Never retryable.
	KindValidation ErrorKind = "validation"

	// KindExecution marks tool or transport failure. Retryable by default.
	KindExecution ErrorKind = "execution"
)

// Error is a structured tool failure.
type Error struct {
	Tool         string    `json:"tool_name"`
	Kind         ErrorKind `json:"error_type"`
	Message      string    `json:"error_message"`
	Retryable    bool      `json:"retryable"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
	cause        error
}

// NewValidationError creates a non-retryable argument error.
func NewValidationError(toolName, msg string) *Error {
	return &Error{
		Tool:    toolName,
		Kind:    KindValidation,
		Message: msg,
		cause:   ErrInvalidInput,
	}
}

// NewExecutionError wraps a failure raised while running a tool.
func NewExecutionError(toolName string, err error) *Error {
	return &Error{
		Tool:         toolName,
		Kind:         KindExecution,
		Message:      err.Error(),
		Retryable:    true,
		SuggestedFix: SuggestFix(err),
		cause:        err,
	}
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s error: %s", e.Tool, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// SuggestFix maps common failure messages to an actionable hint.
func SuggestFix(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "access denied"):
		return "Check file permissions or run with elevated privileges"
	case strings.Contains(msg, "no such file") || strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
		return "Ensure the required resource exists"
	case strings.Contains(msg, "is a directory"):
		return "Use the 'list' operation for directories"
	case strings.Contains(msg, "directory not empty"):
		return "Pass recursive=true to delete non-empty directories"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "timeout"):
		return "Check network connectivity and retry"
	default:
		return ""
	}
}
