package signal

import (
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Signal is a typed message envelope exchanged between agents.
// A signal is immutable once created; mutate nothing after New returns.
type Signal struct {
	ID        string         `json:"id"`
	SchemaID  string         `json:"schema_id"`
	Payload   map[string]any `json:"payload"`
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient,omitempty"`
	SentAtMs  int64          `json:"sent_at_ms"`
}

// Option customizes a signal at creation time
type Option func(*Signal)

// WithRecipient addresses the signal to a specific agent
func WithRecipient(recipient string) Option {
	return func(s *Signal) {
		s.Recipient = recipient
	}
}

// WithID overrides the generated signal ID
func WithID(id string) Option {
	return func(s *Signal) {
		s.ID = id
	}
}

// New creates a signal with a generated unique ID
func New(schemaID string, payload map[string]any, sender string, opts ...Option) (Signal, error) {
	if schemaID == "" {
		return Signal{}, fmt.Errorf("schema id is required")
	}

	id, err := gonanoid.New()
	if err != nil {
		return Signal{}, fmt.Errorf("failed to generate signal ID: %w", err)
	}

	sig := Signal{
		ID:       id,
		SchemaID: schemaID,
		Payload:  payload,
		Sender:   sender,
		SentAtMs: time.Now().UnixMilli(),
	}

	for _, opt := range opts {
		opt(&sig)
	}

	return sig, nil
}

// ClonePayload returns a deep copy of the signal payload. Handlers that
// want to derive new data from a payload copy first so the original
// envelope stays untouched.
func (s Signal) ClonePayload() map[string]any {
	return cloneMap(s.Payload)
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
