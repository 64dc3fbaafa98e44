package llm

import (
	"context"
	"fmt"
)

// Message is one turn of a completion conversation
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request contains the parameters for a completion call
type Request struct {
	Model        string
	Messages     []Message
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response contains the completion result
type Response struct {
	Content string
	Usage   *TokenUsage
}

// Provider is an interface for LLM completion providers
type Provider interface {
	// Complete makes a completion API call
	Complete(ctx context.Context, request Request) (*Response, error)

	// Provider returns the provider name
	Provider() string
}

// Config identifies a provider and its model parameters. The agent core
// treats this as opaque data.
type Config struct {
	Provider    string  `json:"provider"` // "anthropic", "openai"
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Factory creates completion providers
type Factory struct{}

// NewProvider creates a provider from its configuration
func (f *Factory) NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.APIKey), nil
	case "openai":
		return NewOpenAIProvider(cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
