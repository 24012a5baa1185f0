package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// ToolError is returned when the MCP server reports an error response.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Name, e.Message)
}

// ListAllTools returns the full set of tools exposed by the MCP server.
func (c *Client) ListAllTools(ctx context.Context) ([]*sdkmcp.Tool, error) {
	if c.session == nil {
		return nil, ErrClientClosed
	}

	params := &sdkmcp.ListToolsParams{}
	var (
		cursor string
		tools  []*sdkmcp.Tool
	)

	for {
		if cursor != "" {
			params.Cursor = cursor
		}
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	return tools, nil
}

// CallTool invokes a remote MCP tool. Text content becomes the result text and
// resource links become references, so remote search servers feed citations.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
	if c.session == nil {
		return nil, ErrClientClosed
	}
	if args == nil {
		args = make(map[string]any)
	}

	result, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	res := normalizeContent(result.Content)
	if result.IsError {
		message := res.Text
		if message == "" {
			message = "tool returned error without message"
		}
		return nil, &ToolError{Name: name, Message: message}
	}
	return res, nil
}

var _ tool.Provider = (*Client)(nil)

// Tools converts the server's tool definitions into local tools whose
// handlers call back into the session.
func (c *Client) Tools(ctx context.Context) ([]*tool.Tool, error) {
	defs, err := c.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]*tool.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}

		description := def.Description
		if description == "" && def.Annotations != nil {
			description = def.Annotations.Title
		}

		remoteName := def.Name
		tools = append(tools, &tool.Tool{
			Name:        remoteName,
			Description: description,
			Parameters:  parametersFromSchema(def.InputSchema),
			Handler: func(ctx context.Context, args map[string]any) (*tool.Result, error) {
				return c.CallTool(ctx, remoteName, args)
			},
		})
	}
	return tools, nil
}

func normalizeContent(content []sdkmcp.Content) *tool.Result {
	res := &tool.Result{}
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		case *sdkmcp.ResourceLink:
			title := v.Title
			if title == "" {
				title = v.Name
			}
			res.References = append(res.References, tool.Reference{Title: title, URL: v.URI})
		case *sdkmcp.EmbeddedResource:
			if v.Resource == nil {
				continue
			}
			if v.Resource.Text != "" {
				parts = append(parts, v.Resource.Text)
			}
			res.References = append(res.References, tool.Reference{URL: v.Resource.URI})
		default:
			if data, err := c.MarshalJSON(); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	res.Text = strings.TrimSpace(strings.Join(parts, "\n"))
	return res
}

func parametersFromSchema(schema any) []tool.Parameter {
	schemaMap := toMap(schema)
	if schemaMap == nil {
		return nil
	}

	typeVal, _ := schemaMap["type"].(string)
	if strings.ToLower(typeVal) != "object" {
		return nil
	}

	propsRaw, ok := schemaMap["properties"].(map[string]any)
	if !ok || len(propsRaw) == 0 {
		return nil
	}

	requiredSet := make(map[string]struct{})
	if requiredRaw, ok := schemaMap["required"]; ok {
		if list, ok := requiredRaw.([]any); ok {
			for _, item := range list {
				if name, ok := item.(string); ok {
					requiredSet[name] = struct{}{}
				}
			}
		}
	}

	names := make([]string, 0, len(propsRaw))
	for name := range propsRaw {
		names = append(names, name)
	}
	sort.Strings(names)

	parameters := make([]tool.Parameter, 0, len(names))
	for _, name := range names {
		prop := propsRaw[name]
		propMap, ok := prop.(map[string]any)
		if !ok {
			continue
		}

		param := tool.Parameter{
			Name:        name,
			Description: stringValue(propMap["description"]),
			Type:        stringValue(propMap["type"]),
			Default:     propMap["default"],
		}

		if _, ok := requiredSet[name]; ok {
			param.Required = true
		}

		if enums, ok := toStringSlice(propMap["enum"]); ok {
			param.Enum = enums
		}

		if param.Type == "" {
			param.Type = inferType(propMap)
		}

		parameters = append(parameters, param)
	}

	return parameters
}

func inferType(prop map[string]any) string {
	if _, ok := prop["items"]; ok {
		return "array"
	}
	if _, ok := prop["properties"]; ok {
		return "object"
	}
	return "string"
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			values = append(values, s)
		}
	}
	return values, true
}

func toMap(v any) map[string]any {
	switch value := v.(type) {
	case map[string]any:
		return value
	case json.RawMessage:
		var out map[string]any
		if err := json.Unmarshal(value, &out); err != nil {
			return nil
		}
		return out
	case []byte:
		var out map[string]any
		if err := json.Unmarshal(value, &out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}
