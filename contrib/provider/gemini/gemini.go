package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int32
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:    apiKey,
		Model:     "gemini-2.0-flash",
		MaxTokens: 8192,
	}
}

// Provider implements agent.LLMClient for Google Gemini.
type Provider struct {
	config *Config
	client *genai.Client

	closeOnce sync.Once
}

// New creates a Gemini provider. Extra client options (endpoint, HTTP
// client) are passed to the SDK after the API key.
func New(ctx context.Context, config *Config, opts ...option.ClientOption) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(config.APIKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{config: config, client: client}, nil
}

// Close releases the underlying connection.
func (p *Provider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.client.Close()
	})
	return err
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	name := p.config.Model
	if req.Model != "" {
		name = req.Model
	}
	model := p.client.GenerativeModel(name)
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		model.SetMaxOutputTokens(p.config.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		model.Tools = tools
	}

	system, history := encodeMessages(req.Messages)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("gemini: no user content to send")
	}
	last := history[len(history)-1]
	session := model.StartChat()
	session.History = history[:len(history)-1]

	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	return decodeResponse(resp)
}

func decodeResponse(resp *genai.GenerateContentResponse) (*agent.GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in response")
	}

	var text strings.Builder
	var calls []message.ToolCall
	for i, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text.WriteString(string(v))
		case genai.FunctionCall:
			args := v.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, message.ToolCall{
				ID:   fmt.Sprintf("%s-%d", v.Name, i),
				Name: v.Name,
				Args: args,
			})
		}
	}

	msg := message.NewMessage(message.RoleAssistant, text.String())
	msg.ToolCalls = calls
	out := &agent.GenerateResponse{Message: msg}
	if resp.UsageMetadata != nil {
		out.Usage = agent.Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// encodeMessages maps the transcript onto Gemini contents. Tool results are
// function responses in a user turn, matched to the call by tool name.
func encodeMessages(in []*message.Message) (string, []*genai.Content) {
	var system []string
	var out []*genai.Content
	appendPart := func(role string, part genai.Part) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, part)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{part}})
	}

	for _, msg := range in {
		switch msg.Role {
		case message.RoleSystem:
			system = append(system, msg.Content)
		case message.RoleUser:
			appendPart("user", genai.Text(msg.Content))
		case message.RoleAssistant:
			if msg.Content != "" {
				appendPart("model", genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				appendPart("model", genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
		case message.RoleTool:
			appendPart("user", genai.FunctionResponse{
				Name:     msg.ToolName,
				Response: map[string]any{"content": msg.Content},
			})
		}
	}
	return strings.Join(system, "\n"), out
}

func encodeTools(tools []map[string]any) ([]*genai.Tool, error) {
	fns, err := provider.Functions(tools)
	if err != nil {
		return nil, err
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(fns))
	for _, fn := range fns {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  toSchema(fn.Parameters()),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// toSchema converts a JSON schema fragment into a genai schema. Unknown
// keywords are dropped.
func toSchema(js map[string]any) *genai.Schema {
	s := &genai.Schema{}
	typ, _ := js["type"].(string)
	switch typ {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	default:
		s.Type = genai.TypeObject
	}
	s.Description, _ = js["description"].(string)

	switch enum := js["enum"].(type) {
	case []string:
		s.Enum = enum
	case []any:
		for _, e := range enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if items, ok := js["items"].(map[string]any); ok {
		s.Items = toSchema(items)
	}
	if props, ok := js["properties"].(map[string]any); ok && len(props) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				s.Properties[name] = toSchema(sub)
			}
		}
	}
	switch req := js["required"].(type) {
	case []string:
		s.Required = req
	case []any:
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	return s
}
