package rules

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// schemaJSON is the JSON schema every operator-supplied rules file must
// satisfy before it is compiled. Structural errors are reported with JSON
// pointer locations, which is friendlier than a panic from a half-decoded
// table at classification time.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["intents"],
  "additionalProperties": false,
  "properties": {
    "intents": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["intent", "patterns", "confidence"],
        "additionalProperties": false,
        "properties": {
          "intent": {"type": "string", "minLength": 1},
          "patterns": {
            "type": "array",
            "minItems": 1,
            "items": {"type": "string", "minLength": 1}
          },
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "follow_ups": {
            "type": "array",
            "items": {"type": "string"}
          }
        }
      }
    },
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["pattern", "symbol", "confidence"],
        "additionalProperties": false,
        "properties": {
          "pattern": {"type": "string", "minLength": 1},
          "symbol": {"type": "string", "minLength": 1},
          "token_id": {"type": "integer", "minimum": 0},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

// compiledSchema is compiled once at package init; the schema is a constant,
// so a compile failure is a programming error.
var compiledSchema = jsonschema.MustCompileString("rules.schema.json", schemaJSON)

// validateSchema checks a raw YAML rules document against the schema.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("rules: parse: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("rules: schema validation: %w", err)
	}
	return nil
}
