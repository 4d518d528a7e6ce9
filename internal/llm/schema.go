package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FormFieldsSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is attached to json-format requests and used locally to validate the reply.
func FormFieldsSchema() map[string]any {
	props := map[string]any{
		"assessmentYear": nonEmptyString(),
		"employerName":   nonEmptyString(),
		"deductorTAN":    nonEmptyString(),
		"employeeName":   nonEmptyString(),
		"employeePAN":    nonEmptyString(),
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"assessmentYear", "employerName", "deductorTAN", "employeeName", "employeePAN"},
	}
}

func nonEmptyString() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

// CompileSchema compiles a schema map.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	schema, err := CompileSchema(schemaMap)
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

var formFieldsSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return CompileSchema(FormFieldsSchema())
})

func validateFormFields(data []byte) error {
	schema, err := formFieldsSchema()
	if err != nil {
		return err
	}
	return validateWith(schema, data)
}

func validateWith(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
