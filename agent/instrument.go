package agent

import (
	"context"
	"fmt"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

type instrumented struct {
	next  LLMClient
	role  string
	chain *middleware.MiddlewareChain
}

// Instrument routes every Generate call of client through the middleware
// chain, tagging the call with role. An empty chain returns client as is.
func Instrument(client LLMClient, role string, chain *middleware.MiddlewareChain) LLMClient {
	if client == nil || chain == nil || chain.Len() == 0 {
		return client
	}
	return &instrumented{next: client, role: role, chain: chain}
}

func (c *instrumented) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request is nil")
	}

	mwCtx := middleware.NewContext(ctx)
	mwCtx.Role = c.role
	mwCtx.Model = req.Model
	mwCtx.Messages = req.Messages

	var resp *GenerateResponse
	err := c.chain.Execute(mwCtx, func(mwCtx *middleware.Context) error {
		out, err := c.next.Generate(mwCtx.Context(), req)
		if err != nil {
			return err
		}
		if out == nil || out.Message == nil {
			return fmt.Errorf("llm returned no message")
		}
		resp = out
		mwCtx.Response = out.Message
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("middleware %s short-circuited without response", c.role)
	}
	return resp, nil
}
