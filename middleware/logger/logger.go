package logger

import (
	"log/slog"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
)

// CallLogger logs each model call with its role, latency and outcome.
type CallLogger struct {
	logger *slog.Logger
}

// NewCallLogger creates a logging middleware. A nil logger uses the shared
// "llm" component logger.
func NewCallLogger(logger *slog.Logger) *CallLogger {
	if logger == nil {
		logger = logging.WithComponent("llm")
	}
	return &CallLogger{logger: logger}
}

// Name returns the middleware name
func (m *CallLogger) Name() string {
	return "CallLogger"
}

// Execute logs the request and the response or error.
func (m *CallLogger) Execute(ctx *middleware.Context, next middleware.Handler) error {
	start := time.Now()
	m.logger.Debug("llm request",
		"role", ctx.Role,
		"model", ctx.Model,
		"messages", len(ctx.Messages),
	)

	err := next(ctx)
	elapsed := time.Since(start)
	if err != nil {
		m.logger.Warn("llm call failed",
			"role", ctx.Role,
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return err
	}

	attrs := []any{"role", ctx.Role, "duration_ms", elapsed.Milliseconds()}
	if ctx.Response != nil {
		attrs = append(attrs,
			"tool_calls", len(ctx.Response.ToolCalls),
			"content_len", len(ctx.Response.Content),
		)
	}
	m.logger.Debug("llm response", attrs...)
	return nil
}
