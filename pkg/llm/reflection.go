package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const reflectionPrompt = `You maintain the working memory of an autonomous agent.
Below is the agent's current context as a JSON object. Review it, consolidate
what the agent has learned, discard stale entries, and return the updated
context as a single JSON object. Return only JSON, no prose.

Current context:
%s`

// Reflector updates an agent's working context through an LLM
// completion call. It satisfies the agent runner's reflection service
// contract: any failure returns an error and mutates nothing.
type Reflector struct {
	provider Provider
	cfg      Config
	logger   zerolog.Logger
}

// NewReflector creates an LLM-backed reflector
func NewReflector(provider Provider, cfg Config, logger zerolog.Logger) (*Reflector, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &Reflector{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Reflect produces an updated agent context from the current one
func (r *Reflector) Reflect(ctx context.Context, agentCtx map[string]any) (map[string]any, error) {
	serialized, err := json.MarshalIndent(agentCtx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize agent context: %w", err)
	}

	response, err := r.provider.Complete(ctx, Request{
		Model:       r.cfg.Model,
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
		Messages: []Message{
			{Role: "user", Content: fmt.Sprintf(reflectionPrompt, serialized)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reflection completion failed: %w", err)
	}

	updated, err := parseContextJSON(response.Content)
	if err != nil {
		return nil, fmt.Errorf("reflection returned unusable context: %w", err)
	}

	r.logger.Debug().
		Str("provider", r.provider.Provider()).
		Int("keys", len(updated)).
		Msg("Reflection produced updated context")

	return updated, nil
}

// parseContextJSON extracts a JSON object from a completion, tolerating
// markdown code fences around it
func parseContextJSON(content string) (map[string]any, error) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	var updated map[string]any
	if err := json.Unmarshal([]byte(trimmed), &updated); err != nil {
		return nil, err
	}

	return updated, nil
}
