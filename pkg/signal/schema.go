package signal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// RefineFunc is a cross-field refinement hook executed after structural
// validation passes. It returns an error describing the semantic
// violation, or nil when the payload is acceptable.
type RefineFunc func(payload map[string]any) error

// Schema is a named, versioned payload definition. Definition holds a
// JSON-Schema shaped document (type/properties/required/enum/
// additionalProperties). Schemas are registered once at startup and
// never mutated afterwards.
type Schema struct {
	Name       string
	Version    string
	Definition map[string]any
	Refine     RefineFunc
}

type compiledSchema struct {
	schema   Schema
	compiled *gojsonschema.Schema
}

// Registry maps schema names to compiled, immutable schema definitions.
// Safe for concurrent use.
type Registry struct {
	schemas map[string]*compiledSchema
	mu      sync.RWMutex
}

// NewRegistry creates an empty schema registry
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[string]*compiledSchema),
	}
}

// Register compiles and stores a schema definition
func (r *Registry) Register(s Schema) error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Definition == nil {
		return fmt.Errorf("schema definition is required")
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.Definition))
	if err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", s.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[s.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSchema, s.Name)
	}

	r.schemas[s.Name] = &compiledSchema{
		schema:   s,
		compiled: compiled,
	}

	return nil
}

// Get returns a registered schema by name
func (r *Registry) Get(name string) (Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cs, exists := r.schemas[name]
	if !exists {
		return Schema{}, false
	}
	return cs.schema, true
}

// Has reports whether a schema name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.schemas[name]
	return exists
}

// Names returns all registered schema names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
