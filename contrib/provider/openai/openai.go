package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/contrib/provider"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// WithBaseURL set BaseURL. Any OpenAI-compatible endpoint (Groq, vLLM,
// Ollama) works.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   4096,
		Temperature: 0,
	}
}

// Provider implements agent.LLMClient for OpenAI chat completions.
type Provider struct {
	config *Config
	client openai.Client
}

// New creates a new OpenAI provider using official SDK
func New(config *Config, opts ...option.RequestOption) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	options = append(options, opts...)

	return &Provider{
		config: config,
		client: openai.NewClient(options...),
	}
}

// Generate implements agent.LLMClient interface
func (p *Provider) Generate(ctx context.Context, req *agent.GenerateRequest) (*agent.GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	msgs, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	model := p.config.Model
	if req.Model != "" {
		model = req.Model
	}
	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    openai.ChatModel(model),
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(p.config.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tools, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	choice := completion.Choices[0]
	responseMsg := message.NewMessage(message.RoleAssistant, choice.Message.Content)
	for _, tc := range choice.Message.ToolCalls {
		args, bad := provider.DecodeArgs(tc.Function.Arguments)
		responseMsg.ToolCalls = append(responseMsg.ToolCalls, message.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Args:      args,
			RawArgs:   tc.Function.Arguments,
			ArgsError: bad,
		})
	}

	return &agent.GenerateResponse{
		Message: responseMsg,
		Usage: agent.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func encodeMessages(in []*message.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for _, msg := range in {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case message.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case message.RoleAssistant:
			assistantMsg := openai.AssistantMessage(msg.Content)
			if len(msg.ToolCalls) > 0 {
				calls, err := encodeToolCalls(msg.ToolCalls)
				if err != nil {
					return nil, fmt.Errorf("failed to encode tool calls: %w", err)
				}
				if assistantMsg.OfAssistant != nil {
					assistantMsg.OfAssistant.ToolCalls = calls
				}
			}
			out = append(out, assistantMsg)
		case message.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolID))
		}
	}
	return out, nil
}

func encodeTools(tools []map[string]any) ([]openai.ChatCompletionToolUnionParam, error) {
	fns, err := provider.Functions(tools)
	if err != nil {
		return nil, err
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(fns))
	for _, fn := range fns {
		def := openai.FunctionDefinitionParam{
			Name:       fn.Name,
			Parameters: openai.FunctionParameters(fn.Parameters()),
		}
		if fn.Description != "" {
			def.Description = openai.String(fn.Description)
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out, nil
}

func encodeToolCalls(calls []message.ToolCall) ([]openai.ChatCompletionMessageToolCallUnionParam, error) {
	params := make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		raw := tc.RawArgs
		if raw == "" || !tc.Malformed() {
			args := tc.Args
			if args == nil {
				args = make(map[string]any)
			}
			data, err := json.Marshal(args)
			if err != nil {
				return nil, err
			}
			raw = string(data)
		}
		params = append(params, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: raw,
				},
			},
		})
	}
	return params, nil
}
