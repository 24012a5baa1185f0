package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Parameter defines a tool parameter
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // string, number, integer, boolean, object, array
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Reference is a raw source reference returned by a tool.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Span ties a byte range of Result.Text to one or more entries of
// Result.References (by index).
type Span struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Refs  []int `json:"refs"`
}

// Result is the normalized output of a tool invocation.
type Result struct {
	Text       string      `json:"text"`
	References []Reference `json:"references,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
}

// TextResult wraps plain text without references.
func TextResult(text string) *Result {
	return &Result{Text: text}
}

// HandlerFunc executes a tool call.
type HandlerFunc func(context.Context, map[string]any) (*Result, error)

// Tool represents a callable tool/function
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     HandlerFunc `json:"-"`
}

// Execute runs the tool with given arguments
func (t *Tool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	if t.Handler == nil {
		return nil, fmt.Errorf("tool %s has no handler", t.Name)
	}

	if err := t.ValidateArgs(args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	res, err := t.Handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	return res, nil
}

// ValidateArgs checks required parameters and declared enums.
func (t *Tool) ValidateArgs(args map[string]any) error {
	for _, param := range t.Parameters {
		val, ok := args[param.Name]
		if !ok || val == nil {
			if param.Required {
				return fmt.Errorf("missing required parameter: %s", param.Name)
			}
			continue
		}
		if len(param.Enum) > 0 {
			s, isString := val.(string)
			if !isString || !contains(param.Enum, s) {
				return fmt.Errorf("parameter %s must be one of %v", param.Name, param.Enum)
			}
		}
	}
	return nil
}

// ToJSONSchema returns the tool definition in JSON schema format for LLM
func (t *Tool) ToJSONSchema() map[string]any {
	properties, required := t.InputSchema()
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// InputSchema returns the JSON-schema properties and required list of the
// tool's parameters. Providers that do not speak the OpenAI function format
// build their own envelopes from it.
func (t *Tool) InputSchema() (map[string]any, []string) {
	properties := make(map[string]any, len(t.Parameters))
	required := make([]string, 0)

	for _, param := range t.Parameters {
		prop := map[string]any{
			"type":        param.Type,
			"description": param.Description,
		}
		if param.Type == "array" {
			prop["items"] = map[string]any{"type": "string"}
		}
		if len(param.Enum) > 0 {
			prop["enum"] = param.Enum
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}
	return properties, required
}

// Registry manages a collection of tools
// All operations are thread-safe using RWMutex protection
type Registry struct {
	mu    sync.RWMutex // Protects tools map
	tools map[string]*Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Upsert adds or replaces a tool definition in the registry.
func (r *Registry) Upsert(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]*Tool)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Remove deletes a tool. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered tools ordered by name
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ToJSONSchemas returns all tools in JSON schema format
func (r *Registry) ToJSONSchemas() []map[string]any {
	tools := r.List()
	schemas := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		schemas = append(schemas, tool.ToJSONSchema())
	}
	return schemas
}

// Execute runs a tool by name with given arguments
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*Result, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

// MarshalJSON customizes JSON marshaling for Registry
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToJSONSchemas())
}

// StringArg reads a string argument, returning "" when absent or not a string.
func StringArg(args map[string]any, name string) string {
	v, ok := args[name].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// IntArg reads an integer argument. JSON numbers decode as float64.
func IntArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
