package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies a generation failure.
type ErrorType string

const (
	// ErrorTypeTimeout covers deadline exceeded and cancellation.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeService covers every other generation failure (auth,
	// connectivity, server error, malformed response).
	ErrorTypeService ErrorType = "service"
)

// Error is a classified generation failure.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("llm %s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified generation error.
func NewError(errType ErrorType, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

// ClassifyError categorizes an error from the generation client into a
// structured *Error. Timeouts and cancellations are distinguished from
// service failures so the orchestration layer can map them to the right
// failure kind.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeTimeout, "request timed out", err)
	}

	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "context canceled") {
		return NewError(ErrorTypeTimeout, "request timed out", err)
	}

	return NewError(ErrorTypeService, "generation failed", err)
}

// IsTimeout reports whether the error is a classified generation timeout.
func IsTimeout(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Type == ErrorTypeTimeout
}
