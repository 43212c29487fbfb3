package tools

import "encoding/json"

// JSONSchema is the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Items                *JSONSchema            `json:"items,omitempty"`
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	AdditionalProperties bool                   `json:"additionalProperties"`
}

// MarshalJSON uses a type alias to prevent infinite recursion.
func (s *JSONSchema) MarshalJSON() ([]byte, error) {
	type alias JSONSchema
	return json.Marshal((*alias)(s))
}

// Map converts the schema to a generic map, the form some SDKs expect.
func (s *JSONSchema) Map() map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func object(required []string, props map[string]*JSONSchema) *JSONSchema {
	if props == nil {
		props = map[string]*JSONSchema{}
	}
	return &JSONSchema{Type: "object", Properties: props, Required: required}
}

func str(desc string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: desc}
}

func integer(desc string) *JSONSchema {
	return &JSONSchema{Type: "integer", Description: desc}
}

func strList(desc string) *JSONSchema {
	return &JSONSchema{Type: "array", Description: desc, Items: &JSONSchema{Type: "string"}}
}
