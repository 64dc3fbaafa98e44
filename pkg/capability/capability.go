package capability

import (
	"context"
	"sort"
)

// Set is a collection of capability labels
type Set map[string]struct{}

// NewSet builds a set from capability labels
func NewSet(capabilities ...string) Set {
	s := make(Set, len(capabilities))
	for _, c := range capabilities {
		s[c] = struct{}{}
	}
	return s
}

// Add inserts a capability label
func (s Set) Add(capability string) {
	s[capability] = struct{}{}
}

// Contains reports whether the set holds a capability
func (s Set) Contains(capability string) bool {
	_, ok := s[capability]
	return ok
}

// ContainsAll reports whether the set is a superset of required
func (s Set) ContainsAll(required []string) bool {
	for _, c := range required {
		if !s.Contains(c) {
			return false
		}
	}
	return true
}

// List returns the capability labels in sorted order
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Result is the outcome of a single capability execution
type Result struct {
	Success   bool     `json:"success"`
	Output    any      `json:"output,omitempty"`
	Error     string   `json:"error,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// Context carries execution context into a capability handler
type Context struct {
	AgentID     string   `json:"agent_id"`
	TaskID      string   `json:"task_id,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	References  []string `json:"references,omitempty"`
}

// Handler executes a single capability invocation
type Handler interface {
	Execute(ctx context.Context, capability string, input map[string]any, execCtx Context) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, capability string, input map[string]any, execCtx Context) (Result, error)

// Execute implements Handler
func (f HandlerFunc) Execute(ctx context.Context, capability string, input map[string]any, execCtx Context) (Result, error) {
	return f(ctx, capability, input, execCtx)
}

// Inferencer derives the capabilities implied by an objective step
type Inferencer interface {
	InferCapabilities(stepDescription string) []string
}

// InferencerFunc adapts a function to the Inferencer interface
type InferencerFunc func(stepDescription string) []string

// InferCapabilities implements Inferencer
func (f InferencerFunc) InferCapabilities(stepDescription string) []string {
	return f(stepDescription)
}
