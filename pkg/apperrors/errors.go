// Package apperrors defines the error taxonomy for the orchestration engine.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure. Kinds are stable identifiers that cross
// the service boundary; user-facing text is derived from them so internal
// error detail never leaks verbatim.
type Kind string

const (
	KindSchemaUnavailable  Kind = "schema_unavailable"
	KindGenerationTimeout  Kind = "generation_timeout"
	KindGenerationError    Kind = "generation_error"
	KindValidationRejected Kind = "validation_rejected"
	KindExecutionError     Kind = "execution_error"
	KindExecutionTimeout   Kind = "execution_timeout"
	KindConnectivityError  Kind = "connectivity_error"
	KindRateLimited        Kind = "rate_limited"
	KindNoDatasourceBound  Kind = "no_datasource_bound"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrSessionArchived = errors.New("session is archived")
	ErrDatasourceBound = errors.New("session already has a datasource bound")
)

// AgentError is a classified pipeline failure. Cause carries the underlying
// error for logging; UserMessage is safe to surface to the user.
type AgentError struct {
	Kind        Kind
	UserMessage string
	Cause       error
}

func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *AgentError) Unwrap() error {
	return e.Cause
}

// New creates an AgentError with the canonical user message for the kind.
func New(kind Kind, cause error) *AgentError {
	return &AgentError{Kind: kind, UserMessage: userMessageFor(kind), Cause: cause}
}

// KindOf extracts the Kind from an error chain. Returns false if the error
// is not an AgentError.
func KindOf(err error) (Kind, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// UserMessage returns text safe to show the user for any error. Unclassified
// errors get a generic message.
func UserMessage(err error) string {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.UserMessage
	}
	return "Something went wrong while processing your request. Please try again."
}

func userMessageFor(kind Kind) string {
	switch kind {
	case KindSchemaUnavailable:
		return "I couldn't load the schema for your data source, so I can't answer data questions right now."
	case KindGenerationTimeout:
		return "The language model took too long to respond. Please try again."
	case KindGenerationError:
		return "The language model couldn't process your request. Please try rephrasing."
	case KindValidationRejected:
		return "The generated query was rejected because it isn't a safe read-only statement."
	case KindExecutionError:
		return "The query failed to execute against your database, even after a correction attempt."
	case KindExecutionTimeout:
		return "The query took too long to run. Try narrowing it down to less data."
	case KindConnectivityError:
		return "I couldn't reach your database. Please check the connection and try again."
	case KindRateLimited:
		return "You're sending requests too quickly. Please wait a moment and try again."
	case KindNoDatasourceBound:
		return "I'd love to help with that, but you need to connect a database first. " +
			"Once connected, I can run queries and build dashboards from your data."
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}
