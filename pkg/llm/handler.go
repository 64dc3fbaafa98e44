package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sojinmm/lux-sub007/pkg/capability"
)

const capabilityPrompt = `You are an autonomous worker executing one capability of a larger task.
Capability: %s
Apply the capability to the task below and reply with the work product only, no preamble.`

// CapabilityHandler executes capabilities by prompting a completion
// provider. It implements capability.Handler.
type CapabilityHandler struct {
	provider Provider
	cfg      Config
	logger   zerolog.Logger
}

// NewCapabilityHandler wraps a provider as a capability handler.
func NewCapabilityHandler(provider Provider, cfg Config, logger zerolog.Logger) *CapabilityHandler {
	return &CapabilityHandler{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("component", "capability_handler").Logger(),
	}
}

// Execute prompts the provider with the capability and task input. A
// provider error yields a failed result rather than an execution error
// so callers can apply their normal retry policy.
func (h *CapabilityHandler) Execute(ctx context.Context, cap string, input map[string]any, execCtx capability.Context) (capability.Result, error) {
	prompt, err := buildTaskPrompt(input, execCtx)
	if err != nil {
		return capability.Result{}, err
	}

	resp, err := h.provider.Complete(ctx, Request{
		Model:        h.cfg.Model,
		SystemPrompt: fmt.Sprintf(capabilityPrompt, cap),
		Messages:     []Message{{Role: "user", Content: prompt}},
		Temperature:  h.cfg.Temperature,
		MaxTokens:    h.cfg.MaxTokens,
	})
	if err != nil {
		h.logger.Warn().Err(err).
			Str("capability", cap).
			Str("task_id", execCtx.TaskID).
			Msg("Completion call failed")
		return capability.Result{Success: false, Error: err.Error()}, nil
	}

	return capability.Result{Success: true, Output: resp.Content}, nil
}

func buildTaskPrompt(input map[string]any, execCtx capability.Context) (string, error) {
	var sb strings.Builder

	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal task input: %w", err)
	}
	sb.WriteString("Task:\n")
	sb.Write(payload)

	if len(execCtx.Constraints) > 0 {
		sb.WriteString("\n\nConstraints:\n- ")
		sb.WriteString(strings.Join(execCtx.Constraints, "\n- "))
	}
	if len(execCtx.References) > 0 {
		sb.WriteString("\n\nReferences:\n- ")
		sb.WriteString(strings.Join(execCtx.References, "\n- "))
	}
	return sb.String(), nil
}
