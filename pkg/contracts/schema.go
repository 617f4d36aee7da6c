package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// violationSchema constrains externally submitted violation payloads before
// they enter a session. Context is intentionally left open.
const violationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["rule_id", "violator", "severity", "description", "detected_at"],
  "properties": {
    "rule_id":     {"type": "string", "minLength": 1},
    "violator":    {"type": "string", "minLength": 1},
    "severity":    {"type": "string", "enum": ["low", "medium", "high", "critical"]},
    "description": {"type": "string", "minLength": 1},
    "context":     {"type": "object"},
    "detected_at": {"type": "string", "format": "date-time"},
    "evidence":    {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`

var compiledViolationSchema = mustCompileSchema("violation.schema.json", violationSchema)

func mustCompileSchema(name, raw string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(name, bytes.NewReader([]byte(raw))); err != nil {
		panic(fmt.Sprintf("contracts: add schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("contracts: compile schema %s: %v", name, err))
	}
	return s
}

// ParseViolation validates a raw violation payload against the schema and
// unmarshals it. Payloads from the violation-detection collaborator cross a
// trust boundary, so structural validation happens before anything else.
func ParseViolation(payload []byte) (*ConstitutionalViolation, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("malformed violation payload: %w", err)
	}
	if err := compiledViolationSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("violation payload rejected: %w", err)
	}
	var v ConstitutionalViolation
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decode violation payload: %w", err)
	}
	return &v, nil
}
