package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts completion responses for tests.
type fakeProvider struct {
	content  string
	err      error
	requests []Request
}

func (p *fakeProvider) Complete(_ context.Context, req Request) (*Response, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &Response{Content: p.content}, nil
}

func (p *fakeProvider) Provider() string { return "fake" }

func testLLMConfig() Config {
	return Config{Provider: "fake", Model: "base-1", Temperature: 0.2, MaxTokens: 1024}
}

func TestNewReflector(t *testing.T) {
	t.Run("requires a provider", func(t *testing.T) {
		_, err := NewReflector(nil, testLLMConfig(), zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("requires a model", func(t *testing.T) {
		_, err := NewReflector(&fakeProvider{}, Config{}, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestReflect(t *testing.T) {
	agentCtx := map[string]any{"notes": "raw observations", "stale": true}

	t.Run("returns the updated context", func(t *testing.T) {
		p := &fakeProvider{content: `{"summary": "condensed"}`}
		r, err := NewReflector(p, testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)

		updated, err := r.Reflect(context.Background(), agentCtx)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"summary": "condensed"}, updated)

		// The prompt carries the serialized context and model settings.
		require.Len(t, p.requests, 1)
		assert.Equal(t, "base-1", p.requests[0].Model)
		assert.Contains(t, p.requests[0].Messages[0].Content, "raw observations")
	})

	t.Run("tolerates json code fences", func(t *testing.T) {
		p := &fakeProvider{content: "```json\n{\"summary\": \"condensed\"}\n```"}
		r, err := NewReflector(p, testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)

		updated, err := r.Reflect(context.Background(), agentCtx)
		require.NoError(t, err)
		assert.Equal(t, "condensed", updated["summary"])
	})

	t.Run("tolerates bare code fences", func(t *testing.T) {
		p := &fakeProvider{content: "```\n{\"k\": 1}\n```"}
		r, err := NewReflector(p, testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)

		updated, err := r.Reflect(context.Background(), agentCtx)
		require.NoError(t, err)
		assert.Equal(t, float64(1), updated["k"])
	})

	t.Run("rejects non-json completions", func(t *testing.T) {
		p := &fakeProvider{content: "I cleaned up the context for you!"}
		r, err := NewReflector(p, testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)

		_, err = r.Reflect(context.Background(), agentCtx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unusable context")
	})

	t.Run("propagates provider failures", func(t *testing.T) {
		p := &fakeProvider{err: fmt.Errorf("rate limited")}
		r, err := NewReflector(p, testLLMConfig(), zerolog.Nop())
		require.NoError(t, err)

		_, err = r.Reflect(context.Background(), agentCtx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})
}

func TestFactory(t *testing.T) {
	f := &Factory{}

	p, err := f.NewProvider(Config{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Provider())

	p, err = f.NewProvider(Config{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Provider())

	_, err = f.NewProvider(Config{Provider: "cohere"})
	assert.Error(t, err)
}
