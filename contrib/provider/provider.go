// Package provider holds helpers shared by the model provider adapters.
package provider

import (
	"encoding/json"
	"fmt"
)

// Function is a tool definition decoded from the OpenAI function format
// produced by tool.Registry.ToJSONSchemas.
type Function struct {
	Name        string
	Description string
	// Properties and Required come from the "parameters" object schema.
	Properties map[string]any
	Required   []string
}

// Functions decodes tool schemas. Entries that are not function tools are
// rejected.
func Functions(tools []map[string]any) ([]Function, error) {
	out := make([]Function, 0, len(tools))
	for i, raw := range tools {
		fn, ok := raw["function"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tool %d: missing function definition", i)
		}
		name, _ := fn["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("tool %d: missing name", i)
		}
		f := Function{Name: name, Properties: map[string]any{}}
		f.Description, _ = fn["description"].(string)
		if params, ok := fn["parameters"].(map[string]any); ok {
			if props, ok := params["properties"].(map[string]any); ok {
				f.Properties = props
			}
			f.Required = stringList(params["required"])
		}
		out = append(out, f)
	}
	return out, nil
}

// Parameters returns the object schema of f.
func (f Function) Parameters() map[string]any {
	required := f.Required
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": f.Properties,
		"required":   required,
	}
}

// DecodeArgs parses a JSON argument payload. A payload that does not decode
// to an object is returned as the error string, so the caller can surface it
// in-band instead of failing the call.
func DecodeArgs(raw string) (map[string]any, string) {
	if raw == "" {
		return map[string]any{}, ""
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err.Error()
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, ""
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
