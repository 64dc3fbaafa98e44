package signal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaNotFound is returned when a schema name has no registration
var ErrSchemaNotFound = errors.New("schema not found")

// ErrDuplicateSchema is returned when a schema name is registered twice
var ErrDuplicateSchema = errors.New("schema already registered")

// FieldError describes a single structural violation in a payload
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// ValidationError reports why a payload failed schema validation.
// MissingFields lists required fields that were absent; TypeMismatches
// lists every other structural violation (wrong type, enum miss,
// rejected unknown property, failed refinement).
type ValidationError struct {
	Schema         string       `json:"schema"`
	MissingFields  []string     `json:"missing_fields,omitempty"`
	TypeMismatches []FieldError `json:"type_mismatches,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := []string{}
	if len(e.MissingFields) > 0 {
		parts = append(parts, fmt.Sprintf("missing fields: %s", strings.Join(e.MissingFields, ", ")))
	}
	for _, fe := range e.TypeMismatches {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Detail))
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid payload")
	}
	return fmt.Sprintf("payload invalid for schema %s (%s)", e.Schema, strings.Join(parts, "; "))
}

// AsValidationError unwraps err into a ValidationError if possible
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
