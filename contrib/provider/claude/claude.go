package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey, baseURL string) *Config {
	return &Config{
		APIKey:    apiKey,
		BaseURL:   baseURL,
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	}
}

// Provider implements agent.LLMClient for the Anthropic Messages API.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using official SDK
func New(config *Config, opts ...option.RequestOption) *Provider {
	if config == nil {
		config = DefaultConfig("", "")
	}
	if config.Model == "" {
		config.Model = "claude-sonnet-4-5-20250929"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4096
	}

	options := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithAuthToken(""),
	}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	options = append(options, opts...)

	return &Provider{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	system, msgs := encodeMessages(req.Messages)
	model := p.config.Model
	if req.Model != "" {
		model = req.Model
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: p.config.MaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var text strings.Builder
	var calls []message.ToolCall
	for _, block := range apiMessage.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			raw := string(block.Input)
			args, bad := provider.DecodeArgs(raw)
			calls = append(calls, message.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Args:      args,
				RawArgs:   raw,
				ArgsError: bad,
			})
		}
	}

	responseMsg := message.NewMessage(message.RoleAssistant, text.String())
	responseMsg.ToolCalls = calls
	return &agent.GenerateResponse{
		Message: responseMsg,
		Usage: agent.Usage{
			InputTokens:  apiMessage.Usage.InputTokens,
			OutputTokens: apiMessage.Usage.OutputTokens,
		},
	}, nil
}

// encodeMessages splits system prompts off and folds consecutive tool
// results into one user turn, as the Messages API requires.
func encodeMessages(in []*message.Message) (string, []anthropic.MessageParam) {
	var system []string
	out := make([]anthropic.MessageParam, 0, len(in))
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range in {
		if msg.Role == message.RoleTool {
			isError := strings.HasPrefix(msg.Content, "Error executing tool")
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolID, msg.Content, isError))
			continue
		}
		flush()

		switch msg.Role {
		case message.RoleSystem:
			system = append(system, msg.Content)
		case message.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case message.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input any = tc.Args
				if tc.Args == nil {
					input = map[string]any{}
				}
				if tc.Malformed() && tc.RawArgs != "" {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	flush()
	return strings.Join(system, "\n"), out
}

func encodeTools(tools []map[string]any) ([]anthropic.ToolUnionParam, error) {
	fns, err := provider.Functions(tools)
	if err != nil {
		return nil, err
	}
	out := make([]anthropic.ToolUnionParam, 0, len(fns))
	for _, fn := range fns {
		tp := &anthropic.ToolParam{
			Name: fn.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: fn.Properties,
				Required:   fn.Required,
			},
		}
		if fn.Description != "" {
			tp.Description = anthropic.String(fn.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tp})
	}
	return out, nil
}
