package tool

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Schema wraps a JSON Schema describing tool arguments.
type Schema struct {
	raw json.RawMessage
}

// EmptySchema returns a schema that accepts any input.
func EmptySchema() Schema {
	return Schema{raw: json.RawMessage(`{}`)}
}

// Property describes one argument in an object schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ObjectSchema returns a schema for an object with the given properties.
func ObjectSchema(properties map[string]Property, required []string) Schema {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw}
}

// IsEmpty returns true if the schema is empty or nil.
func (s Schema) IsEmpty() bool {
	return len(s.raw) == 0 || string(s.raw) == "{}" || string(s.raw) == "null"
}

// Validate checks that data is a JSON object carrying every required
// property. Property types are not checked.
func (s Schema) Validate(data json.RawMessage) error {
	if s.IsEmpty() {
		return nil
	}
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage(`{}`)
	}
	if !json.Valid(data) {
		return errors.New("arguments are not valid JSON")
	}

	var spec struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(s.raw, &spec); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	if len(spec.Required) == 0 {
		return nil
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return errors.New("arguments must be a JSON object")
	}
	for _, name := range spec.Required {
		if v, ok := args[name]; !ok || string(v) == "null" {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("{}"), nil
	}
	return s.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}
