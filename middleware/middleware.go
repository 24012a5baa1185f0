package middleware

import (
	"context"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

// Context carries one model call through the middleware chain.
type Context struct {
	// Role names the research step that issued the call (query_generation,
	// search, reflection, answer).
	Role string

	// Model is the per-call model override, empty for the provider default.
	Model string

	// Messages sent to the model.
	Messages []*message.Message

	// Response from the model, set by the final handler.
	Response *message.Message

	// Error from execution
	Error error

	// Metadata for passing data between middlewares
	Metadata map[string]any

	context context.Context
}

// NewContext creates a new middleware context
func NewContext(ctx context.Context) *Context {
	return &Context{
		Metadata: make(map[string]any),
		context:  ctx,
	}
}

// Context returns the underlying context.Context
func (c *Context) Context() context.Context {
	if c.context == nil {
		return context.Background()
	}
	return c.context
}

// Middleware intercepts model calls.
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string

	// Execute runs the middleware logic. Returning an error stops the chain.
	Execute(ctx *Context, next Handler) error
}

// Handler is the function called to pass control to the next middleware
type Handler func(*Context) error

// MiddlewareChain represents a sequence of middleware to be executed
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *MiddlewareChain {
	chain := &MiddlewareChain{}
	for _, m := range middlewares {
		chain.Add(m)
	}
	return chain
}

// Add appends a middleware to the chain. Nil middlewares are ignored.
func (c *MiddlewareChain) Add(m Middleware) *MiddlewareChain {
	if m != nil {
		c.middlewares = append(c.middlewares, m)
	}
	return c
}

// List returns a copy of the registered middlewares.
func (c *MiddlewareChain) List() []Middleware {
	return append([]Middleware(nil), c.middlewares...)
}

// Len reports how many middlewares are registered.
func (c *MiddlewareChain) Len() int {
	return len(c.middlewares)
}

// Execute runs all middlewares in the chain
func (c *MiddlewareChain) Execute(ctx *Context, finalHandler Handler) error {
	return c.executeMiddleware(ctx, 0, finalHandler)
}

func (c *MiddlewareChain) executeMiddleware(ctx *Context, index int, finalHandler Handler) error {
	if index >= len(c.middlewares) {
		return finalHandler(ctx)
	}

	nextHandler := func(ctx *Context) error {
		return c.executeMiddleware(ctx, index+1, finalHandler)
	}
	return c.middlewares[index].Execute(ctx, nextHandler)
}
