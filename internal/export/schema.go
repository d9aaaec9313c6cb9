package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/rapor/internal/scores"
)

// ErrInvalidMapping is returned when a mapping does not match the vocabulary schema.
var ErrInvalidMapping = errors.New("score mapping does not match vocabulary")

// ScorePattern matches a stored score value: a digit run or the not-found sentinel.
const ScorePattern = `^([0-9]+|N/A)$`

// Validator checks score mappings against a JSON schema derived from the vocabulary:
// every subject present, no other keys, values are digits or "N/A".
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the schema for vocab.
func NewValidator(vocab scores.Vocabulary) (*Validator, error) {
	raw, err := MappingSchema(vocab)
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("scores.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load scores schema: %w", err)
	}
	schema, err := compiler.Compile("scores.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile scores schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks m against the schema.
func (v *Validator) Validate(m scores.Mapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	return v.ValidateJSON(data)
}

// ValidateJSON checks an encoded mapping against the schema.
func (v *Validator) ValidateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}
	return nil
}

// MappingSchema builds the JSON schema for a vocabulary's score mapping.
func MappingSchema(vocab scores.Vocabulary) (json.RawMessage, error) {
	subjects := vocab.Subjects()
	props := make(map[string]any, len(subjects))
	for _, s := range subjects {
		props[s] = map[string]any{"type": "string", "pattern": ScorePattern}
	}
	schema := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"required":             subjects,
		"additionalProperties": false,
	}
	return json.Marshal(schema)
}
