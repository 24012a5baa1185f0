package research

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/metrics"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/prompt"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

// searchExecutor runs one query and returns its text with inline citations
// and the sources those citations point to. Each query is its own citation
// batch.
type searchExecutor struct {
	llm      agent.LLMClient
	registry *tool.Registry
	prompts  *prompt.Manager
	cfg      *Config
}

type searchOutput struct {
	Text    string
	Sources []citation.Source
}

func (s *searchExecutor) Search(ctx context.Context, q Query, date string) (*searchOutput, error) {
	resolver := citation.NewResolver(s.cfg.ShortRefScheme, q.ID)
	if s.cfg.Mode == ModeAgentic {
		return s.searchAgentic(ctx, q, date, resolver)
	}
	return s.searchDirect(ctx, q, resolver)
}

// searchDirect calls the configured search tool once.
func (s *searchExecutor) searchDirect(ctx context.Context, q Query, resolver *citation.Resolver) (*searchOutput, error) {
	res, err := s.registry.Execute(ctx, s.cfg.SearchTool, map[string]any{"query": q.Text})
	metrics.RecordToolCall(s.cfg.SearchTool, err)
	if err != nil {
		return nil, err
	}
	text, sources := citation.Annotate(resolver, res)
	return &searchOutput{Text: text, Sources: sources}, nil
}

// searchAgentic lets the searcher model drive the registered tools for a
// bounded number of turns. Tool failures are fed back to the model.
func (s *searchExecutor) searchAgentic(ctx context.Context, q Query, date string, resolver *citation.Resolver) (*searchOutput, error) {
	system, err := s.prompts.Render(PromptWebSearcher, map[string]any{
		"CurrentDate": date,
		"Topic":       q.Text,
	})
	if err != nil {
		return nil, err
	}
	exhausted, err := s.prompts.Render(PromptToolExhausted, nil)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		sources []citation.Source
		seen    = make(map[string]struct{})
	)
	formatter := func(_ context.Context, call message.ToolCall, res *tool.Result) string {
		text, found := citation.Annotate(resolver, res)
		mu.Lock()
		defer mu.Unlock()
		for _, src := range found {
			if _, dup := seen[src.ShortRef]; dup {
				continue
			}
			seen[src.ShortRef] = struct{}{}
			sources = append(sources, src)
		}
		return text
	}

	a := agent.New(
		agent.WithName(fmt.Sprintf("searcher-%d", q.ID)),
		agent.WithSystemPrompt(system),
		agent.WithProvider(s.llm),
		agent.WithTools(s.registry),
		agent.WithToolCallObserver(metrics.RecordToolCall),
		agent.WithMaxIterations(s.cfg.MaxToolTurns),
		agent.WithToolResultFormatter(formatter),
		agent.WithExhaustedPrompt(exhausted),
	)
	result, err := a.Run(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	text := result.Message.Text()
	if text == "" {
		text = strings.Join(result.ToolOutputs, "\n\n")
	}
	return &searchOutput{Text: text, Sources: sources}, nil
}
