package feedback

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// responseSchemaJSON is sent as the strict response format.
const responseSchemaJSON = `{
  "type": "object",
  "properties": {
    "score": {"type": "number", "description": "A score out of 100"},
    "clarity": {"type": "string", "description": "Feedback on clarity and articulation"},
    "logic": {"type": "string", "description": "Feedback on the logical flow"},
    "suggestions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "A list of concrete improvement suggestions"
    },
    "improvedVersion": {"type": "string", "description": "A professional rewrite of the user's speech"}
  },
  "required": ["score", "clarity", "logic", "suggestions", "improvedVersion"],
  "additionalProperties": false
}`

// resultSchemaJSON is the local acceptance check, stricter than what providers enforce.
const resultSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "clarity": {"type": "string"},
    "logic": {"type": "string"},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "improvedVersion": {"type": "string"}
  },
  "required": ["score", "clarity", "logic", "suggestions", "improvedVersion"]
}`

var resultSchema = mustCompileSchema(resultSchemaJSON, "feedback-result.schema.json")

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// decodeResult parses text strictly: valid JSON, schema-conformant, no trailing data.
func decodeResult(text string) (Result, error) {
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return Result{}, fmt.Errorf("decode feedback json: %w", err)
	}
	if err := resultSchema.Validate(instance); err != nil {
		return Result{}, fmt.Errorf("feedback schema: %w", err)
	}

	var out Result
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return Result{}, fmt.Errorf("decode feedback result: %w", err)
	}
	return out, nil
}
