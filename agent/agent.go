package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/pkg/logging"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

const defaultExhaustedPrompt = "You have reached the tool call limit. Answer now using only the information gathered so far."

// ToolResultFormatter renders a tool result into the text the model sees.
// It runs once per successful call, in call order.
type ToolResultFormatter func(ctx context.Context, call message.ToolCall, res *tool.Result) string

// ToolCallObserver sees the outcome of every tool call, failed ones included.
type ToolCallObserver func(name string, err error)

// Result is the outcome of one Run.
type Result struct {
	// Message is the final assistant message.
	Message *message.Message
	// Transcript holds every message of the run, system prompt first.
	Transcript []*message.Message
	// ToolOutputs are the formatted results of successful tool calls in call order.
	ToolOutputs []string
	// Iterations counts model turns that offered tools.
	Iterations int
	// Exhausted is set when the tool budget ran out before the model stopped calling tools.
	Exhausted bool
}

// Agent runs a bounded tool-calling loop against one model client.
// Runs share no state, so one Agent may serve concurrent callers.
type Agent struct {
	name            string
	systemPrompt    string
	maxIterations   int
	model           string
	llm             LLMClient
	tools           *tool.Registry
	formatter       ToolResultFormatter
	observer        ToolCallObserver
	exhaustedPrompt string
	logger          *slog.Logger
}

// Option is a function that configures an Agent
type Option func(*Agent)

// WithName sets the agent name
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithMaxIterations bounds the number of tool-calling turns.
func WithMaxIterations(max int) Option {
	return func(a *Agent) {
		if max > 0 {
			a.maxIterations = max
		}
	}
}

// WithModel sets a per-call model override.
func WithModel(model string) Option {
	return func(a *Agent) {
		a.model = model
	}
}

// WithProvider sets the LLM provider
func WithProvider(provider LLMClient) Option {
	return func(a *Agent) {
		a.llm = provider
	}
}

// WithTools sets the registry offered to the model.
func WithTools(registry *tool.Registry) Option {
	return func(a *Agent) {
		if registry != nil {
			a.tools = registry
		}
	}
}

// WithToolResultFormatter overrides how tool results enter the transcript.
func WithToolResultFormatter(f ToolResultFormatter) Option {
	return func(a *Agent) {
		if f != nil {
			a.formatter = f
		}
	}
}

// WithToolCallObserver registers a hook called once per executed tool call.
func WithToolCallObserver(o ToolCallObserver) Option {
	return func(a *Agent) {
		a.observer = o
	}
}

// WithExhaustedPrompt sets the instruction sent when the tool budget runs out.
func WithExhaustedPrompt(prompt string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(prompt) != "" {
			a.exhaustedPrompt = prompt
		}
	}
}

// New creates a new agent with the given options
func New(opts ...Option) *Agent {
	agent := &Agent{
		name:            "Agent",
		systemPrompt:    "You are a helpful AI assistant.",
		maxIterations:   5,
		tools:           tool.NewRegistry(),
		formatter:       defaultFormatter,
		exhaustedPrompt: defaultExhaustedPrompt,
	}
	for _, opt := range opts {
		opt(agent)
	}
	agent.logger = logging.WithComponent("agent").With("agent", agent.name)
	return agent
}

// Tools returns the registry offered to the model.
func (a *Agent) Tools() *tool.Registry {
	return a.tools
}

// Run sends input to the model and executes requested tools until the model
// answers without tool calls or the iteration budget is spent. On exhaustion
// one more tool-less turn asks the model to answer with what it has.
//
// Tool failures stay in-band: unknown tools, malformed arguments and handler
// errors are reported to the model as tool messages. Only model errors abort.
func (a *Agent) Run(ctx context.Context, input string) (*Result, error) {
	if a.llm == nil {
		return nil, fmt.Errorf("agent %s has no provider", a.name)
	}

	res := &Result{}
	if a.systemPrompt != "" {
		res.Transcript = append(res.Transcript, message.NewMessage(message.RoleSystem, a.systemPrompt))
	}
	res.Transcript = append(res.Transcript, message.NewMessage(message.RoleUser, input))

	schemas := a.tools.ToJSONSchemas()
	for i := 0; i < a.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Iterations++

		response, err := a.generate(ctx, res.Transcript, schemas)
		if err != nil {
			return nil, err
		}
		res.Transcript = append(res.Transcript, response)

		if len(response.ToolCalls) == 0 {
			res.Message = response
			return res, nil
		}

		for _, call := range response.ToolCalls {
			content, ok := a.executeTool(ctx, call)
			if ok {
				res.ToolOutputs = append(res.ToolOutputs, content)
			}
			res.Transcript = append(res.Transcript, message.NewToolResponseMessage(call.ID, call.Name, content))
		}
	}

	a.logger.Debug("tool budget exhausted", "iterations", a.maxIterations)
	res.Exhausted = true
	res.Transcript = append(res.Transcript, message.NewMessage(message.RoleUser, a.exhaustedPrompt))
	response, err := a.generate(ctx, res.Transcript, nil)
	if err != nil {
		return nil, err
	}
	res.Transcript = append(res.Transcript, response)
	res.Message = response
	return res, nil
}

func (a *Agent) generate(ctx context.Context, transcript []*message.Message, schemas []map[string]any) (*message.Message, error) {
	resp, err := a.llm.Generate(ctx, &GenerateRequest{
		Messages: transcript,
		Tools:    schemas,
		Model:    a.model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}
	if resp == nil || resp.Message == nil {
		return nil, fmt.Errorf("LLM generation failed: empty response")
	}
	return resp.Message, nil
}

// executeTool returns the transcript content for call and whether the call succeeded.
func (a *Agent) executeTool(ctx context.Context, call message.ToolCall) (string, bool) {
	if call.Malformed() {
		a.logger.Warn("malformed tool arguments", "tool", call.Name, "error", call.ArgsError)
		a.observe(call.Name, fmt.Errorf("invalid arguments: %s", call.ArgsError))
		return fmt.Sprintf("Error executing tool %s: invalid arguments: %s", call.Name, call.ArgsError), false
	}

	result, err := a.tools.Execute(ctx, call.Name, call.Args)
	a.observe(call.Name, err)
	if err != nil {
		a.logger.Warn("tool call failed", "tool", call.Name, "error", err)
		return fmt.Sprintf("Error executing tool %s: %v", call.Name, err), false
	}
	return a.formatter(ctx, call, result), true
}

func (a *Agent) observe(name string, err error) {
	if a.observer != nil {
		a.observer(name, err)
	}
}

func defaultFormatter(_ context.Context, _ message.ToolCall, res *tool.Result) string {
	return res.Text
}
