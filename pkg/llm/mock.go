package llm

import "context"

// MockGenerationClient is a configurable mock for testing. Set the function
// field to control behavior; calls are counted for verification.
type MockGenerationClient struct {
	// GenerateFunc is called when Generate is invoked. If nil, returns
	// empty string and nil error.
	GenerateFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// GenerateCalls counts invocations of Generate.
	GenerateCalls int

	// Prompts records every prompt passed to Generate.
	Prompts []string
}

// NewMockGenerationClient creates a mock with sensible defaults.
func NewMockGenerationClient() *MockGenerationClient {
	return &MockGenerationClient{Model: "mock-model"}
}

// Generate implements GenerationClient.
func (m *MockGenerationClient) Generate(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error) {
	m.GenerateCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, systemMessage, temperature)
	}
	return "", nil
}

// GetModel implements GenerationClient.
func (m *MockGenerationClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

var _ GenerationClient = (*MockGenerationClient)(nil)
