package signal

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validate checks a payload against the named schema. Structural checks
// (required fields, property types, enumerations, additionalProperties)
// run first; on success the schema's refinement hook runs for
// cross-field rules. Pure function: no side effects, deterministic for
// identical inputs.
func (r *Registry) Validate(schemaName string, payload map[string]any) error {
	r.mu.RLock()
	cs, exists := r.schemas[schemaName]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, schemaName)
	}

	if payload == nil {
		payload = map[string]any{}
	}

	result, err := cs.compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", schemaName, err)
	}

	if !result.Valid() {
		return buildValidationError(schemaName, result)
	}

	if cs.schema.Refine != nil {
		if err := cs.schema.Refine(payload); err != nil {
			return &ValidationError{
				Schema: schemaName,
				TypeMismatches: []FieldError{
					{Field: "(refinement)", Detail: err.Error()},
				},
			}
		}
	}

	return nil
}

// ValidateSignal checks a signal's payload against the schema named by
// its SchemaID.
func (r *Registry) ValidateSignal(sig Signal) error {
	return r.Validate(sig.SchemaID, sig.Payload)
}

func buildValidationError(schemaName string, result *gojsonschema.Result) *ValidationError {
	ve := &ValidationError{Schema: schemaName}

	for _, resErr := range result.Errors() {
		switch resErr.Type() {
		case "required":
			// Details carries the missing property name; Field is the parent context
			if prop, ok := resErr.Details()["property"].(string); ok {
				ve.MissingFields = append(ve.MissingFields, prop)
			} else {
				ve.MissingFields = append(ve.MissingFields, resErr.Field())
			}
		default:
			ve.TypeMismatches = append(ve.TypeMismatches, FieldError{
				Field:  resErr.Field(),
				Detail: resErr.Description(),
			})
		}
	}

	return ve
}
