// Package schema generates JSON Schemas from Go configuration types and validates
// raw configuration documents against them.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	reflector "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Generate reflects a JSON Schema from v. Property names follow the yaml tags,
// which are the names users write in config files.
func Generate(v interface{}) ([]byte, error) {
	r := &reflector.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	s := r.Reflect(v)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// Validator validates configuration against a compiled JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the schema reflected from v.
func NewValidator(v interface{}) (*Validator, error) {
	data, err := Generate(v)
	if err != nil {
		return nil, err
	}
	return NewValidatorFromJSON("agentwatch.schema.json", data)
}

// NewValidatorFromJSON compiles a schema document.
func NewValidatorFromJSON(name string, data []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// Validate validates data against the schema.
// data may be any value that marshals to JSON, typically a map decoded from YAML or TOML.
func (v *Validator) Validate(data interface{}) error {
	// Round-trip through JSON so the validator only sees JSON-native types.
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal config to JSON for validation: %w", err)
	}

	var dataToValidate interface{}
	if err := json.Unmarshal(jsonData, &dataToValidate); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}

	if err := v.schema.Validate(dataToValidate); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var errorMessages []string
			collectErrors(validationErr, &errorMessages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(errorMessages, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
