package agent

import (
	"context"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// LLMClient is the single capability every model provider exposes.
type LLMClient interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest bundles inputs for one model invocation.
type GenerateRequest struct {
	Messages []*message.Message
	// Tools in OpenAI function format, as produced by tool.Registry.ToJSONSchemas.
	Tools []map[string]any
	// Model overrides the provider's configured model for this call only.
	Model string
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// GenerateResponse captures the model reply.
type GenerateResponse struct {
	Message *message.Message
	Usage   Usage
}

// LLMFunc adapts a plain function to LLMClient.
type LLMFunc func(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

// Generate calls f.
func (f LLMFunc) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	return f(ctx, req)
}
