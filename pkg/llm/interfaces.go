// Package llm provides OpenAI-compatible LLM client functionality.
package llm

import (
	"context"
)

// LLMClient defines the single call abstraction the audit pipeline uses.
// Both the interpretation and synthesis stages call it with different
// prompts. Use this interface for dependency injection to enable mocking in
// tests.
type LLMClient interface {
	// Complete generates a completion for the given prompts.
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// Ensure Client implements LLMClient at compile time.
var _ LLMClient = (*Client)(nil)
