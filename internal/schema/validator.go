package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Validator checks a value against a structural contract. A normal mismatch
// is reported in the GuardrailResult; a non-nil error means the validator
// itself malfunctioned, which is fatal to the attempt rather than a
// recoverable validation failure.
type Validator interface {
	Validate(ctx context.Context, value any) (models.GuardrailResult, error)
}

// JSONSchemaValidator validates values against a resolved JSON Schema.
type JSONSchemaValidator struct {
	resolved *jsonschema.Resolved
}

// Parse decodes a JSON Schema document.
func Parse(data []byte) (*jsonschema.Schema, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return &s, nil
}

func NewJSONSchemaValidator(s *jsonschema.Schema) (*JSONSchemaValidator, error) {
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema: %w", err)
	}

	return &JSONSchemaValidator{
		resolved: resolved,
	}, nil
}

// Validate normalizes value into a plain JSON instance and validates it.
// Values that are not valid JSON fail validation; they do not error.
func (v *JSONSchemaValidator) Validate(ctx context.Context, value any) (res models.GuardrailResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("validator panic: %v", p)
		}
	}()

	instance, jsonErr := normalize(value)
	if jsonErr != nil {
		result := models.FailResult("output is not valid JSON")
		result.Metadata["error"] = jsonErr.Error()
		return result, nil
	}

	if verr := v.resolved.Validate(instance); verr != nil {
		violations := flatten(verr)
		result := models.FailResult(violations[0])
		result.Metadata["violations"] = violations
		return result, nil
	}

	return models.PassResult(), nil
}

// flatten expands a joined validation error into its individual violation
// messages, depth-first, so the first violated constraint becomes the reason
// and the full set lands in metadata.
func flatten(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{err.Error()}
}

// normalize round-trips value through JSON so structs, maps, and raw JSON
// strings all validate the same way.
func normalize(value any) (any, error) {
	var data []byte
	var err error

	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		data, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, err
	}
	return instance, nil
}
