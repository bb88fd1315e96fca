// Package llm provides the generation-service capability: given a prompt
// and context, produce text. Clients carry per-call timeouts and perform no
// retries; retry policy belongs to the query stage.
package llm

import "context"

// GenerationClient is the boundary interface to the external language-model
// service. Use this interface for dependency injection to enable mocking.
type GenerationClient interface {
	// Generate produces a completion for the prompt under the system message.
	// Fails with a classified *Error (ErrorTypeTimeout or ErrorTypeService).
	Generate(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Ensure Client implements GenerationClient at compile time.
var _ GenerationClient = (*Client)(nil)
