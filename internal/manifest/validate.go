package manifest

import (
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/actis-dev/actis/pkg/schema"
)

// manifestSchemaJSON is the JSON Schema for manifest documents. Embedded as
// a constant to avoid filesystem dependencies. The parameter shape grammar
// mirrors the wire format: a primitive or type-name string, a literal, a
// literal union array, an array marker object, or a nested object of shapes.
const manifestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://actis.dev/schemas/manifest.json",
  "type": "object",
  "required": ["actions"],
  "properties": {
    "actions": {
      "type": "array",
      "items": { "$ref": "#/$defs/action" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "action": {
      "type": "object",
      "required": ["name", "description", "parameters"],
      "properties": {
        "name": {
          "type": "string",
          "minLength": 1
        },
        "description": { "type": "string" },
        "parameters": {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/shape" }
        },
        "module": { "type": "string" }
      },
      "additionalProperties": false
    },
    "shape": {
      "oneOf": [
        { "type": "string" },
        { "type": "number" },
        { "type": "boolean" },
        { "type": "null" },
        {
          "type": "array",
          "minItems": 1,
          "items": {
            "oneOf": [
              { "type": "string" },
              { "type": "number" },
              { "type": "boolean" }
            ]
          }
        },
        {
          "type": "object",
          "required": ["type", "items"],
          "properties": {
            "type": { "const": "array" },
            "items": { "$ref": "#/$defs/shape" }
          },
          "additionalProperties": false
        },
        {
          "type": "object",
          "additionalProperties": { "$ref": "#/$defs/shape" }
        }
      ]
    }
  }
}`

// Validator checks manifest documents against the embedded JSON Schema.
// Safe for concurrent use.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles the embedded manifest schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(manifestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal manifest schema: %w", err)
	}
	if err := c.AddResource("https://actis.dev/schemas/manifest.json", doc); err != nil {
		return nil, fmt.Errorf("add manifest schema resource: %w", err)
	}
	compiled, err := c.Compile("https://actis.dev/schemas/manifest.json")
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks raw manifest bytes against the schema. Structural checks
// the schema cannot express (name uniqueness) run afterwards through Decode.
func (v *Validator) Validate(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "manifest is not valid JSON").WithCause(err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return toActisError(err)
	}
	_, err = schema.Decode(data)
	return err
}

// toActisError converts a jsonschema.ValidationError into an ActisError
// with one message per leaf violation.
func toActisError(err error) *schema.ActisError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}
	msg := fmt.Sprintf("manifest validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
