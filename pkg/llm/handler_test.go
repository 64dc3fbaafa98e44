package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojinmm/lux-sub007/pkg/capability"
)

func TestCapabilityHandlerExecute(t *testing.T) {
	input := map[string]any{
		"task_id":     "t-1",
		"title":       "research the market",
		"description": "competitive research",
	}

	t.Run("prompts the provider and returns its output", func(t *testing.T) {
		p := &fakeProvider{content: "three competitors identified"}
		h := NewCapabilityHandler(p, testLLMConfig(), zerolog.Nop())

		res, err := h.Execute(context.Background(), "research", input, capability.Context{
			AgentID:     "agent-1",
			TaskID:      "t-1",
			Constraints: []string{"stay factual"},
			References:  []string{"https://example.com/market"},
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "three competitors identified", res.Output)

		require.Len(t, p.requests, 1)
		req := p.requests[0]
		assert.Equal(t, "base-1", req.Model)
		assert.Contains(t, req.SystemPrompt, "research")
		assert.Contains(t, req.Messages[0].Content, "competitive research")
		assert.Contains(t, req.Messages[0].Content, "stay factual")
		assert.Contains(t, req.Messages[0].Content, "https://example.com/market")
	})

	t.Run("provider failure becomes a failed result", func(t *testing.T) {
		p := &fakeProvider{err: fmt.Errorf("rate limited")}
		h := NewCapabilityHandler(p, testLLMConfig(), zerolog.Nop())

		res, err := h.Execute(context.Background(), "research", input, capability.Context{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "rate limited")
	})
}
