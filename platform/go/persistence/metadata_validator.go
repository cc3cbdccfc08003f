package persistence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// firmMetadataSchema describes the structured payload callers store on a
// directory record. The store itself only requires metadata to be valid JSON;
// this schema is enforced at the web boundary before records are written.
const firmMetadataSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"specialties": {
			"type": "array",
			"items": {
				"type": "string",
				"enum": [
					"Corporate", "Real Estate", "Family Law", "Criminal Defense",
					"Intellectual Property", "Technology", "Employment", "Labor Law",
					"Tax Law", "Estate Planning", "Immigration", "Personal Injury",
					"Medical Malpractice", "Environmental", "International Trade",
					"Bankruptcy", "Securities", "Healthcare", "Education", "Civil Rights"
				]
			}
		},
		"yearEstablished": {
			"type": "integer",
			"minimum": 1800,
			"maximum": 2100
		},
		"size": {
			"type": "string",
			"enum": ["Small", "Medium", "Large"]
		}
	},
	"required": ["specialties", "yearEstablished", "size"],
	"additionalProperties": false
}`

// MetadataValidator validates firm metadata documents against the embedded
// JSON Schema, compiled once via santhosh-tekuri/jsonschema.
type MetadataValidator struct {
	compiled *jsonschema.Schema
}

// NewMetadataValidator compiles the firm metadata schema. The schema is a
// build-time constant, so a compile failure is a programming error.
func NewMetadataValidator() (*MetadataValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("memory://schemas/firm-metadata.json", strings.NewReader(firmMetadataSchema)); err != nil {
		return nil, fmt.Errorf("register firm metadata schema: %w", err)
	}

	compiled, err := compiler.Compile("memory://schemas/firm-metadata.json")
	if err != nil {
		return nil, fmt.Errorf("compile firm metadata schema: %w", err)
	}

	return &MetadataValidator{compiled: compiled}, nil
}

// Validate ensures the payload matches the firm metadata schema. An empty
// payload and the empty object are both accepted: metadata is optional and
// defaults to "{}".
func (v *MetadataValidator) Validate(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	if obj, ok := document.(map[string]any); ok && len(obj) == 0 {
		return nil
	}

	if err := v.compiled.Validate(document); err != nil {
		return fmt.Errorf("metadata schema validation: %w", err)
	}

	return nil
}
