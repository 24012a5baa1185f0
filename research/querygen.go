package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/prompt"
)

type searchQueryList struct {
	Query     []string `json:"query"`
	Rationale string   `json:"rationale"`
}

// queryGenerator turns a topic into the first batch of search queries.
type queryGenerator struct {
	llm     agent.LLMClient
	prompts *prompt.Manager
}

// Generate returns at most n distinct, non-empty queries and the model's
// rationale. An unparsable or empty reply is an ErrMalformedOutput.
func (g *queryGenerator) Generate(ctx context.Context, topic, date string, n int) ([]string, string, error) {
	text, err := g.prompts.Render(PromptQueryWriter, map[string]any{
		"NumberQueries": n,
		"CurrentDate":   date,
		"Topic":         topic,
	})
	if err != nil {
		return nil, "", err
	}

	resp, err := g.llm.Generate(ctx, &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, text)},
	})
	if err != nil {
		return nil, "", err
	}
	if resp == nil || resp.Message == nil {
		return nil, "", fmt.Errorf("%w: empty reply", errors.ErrMalformedOutput)
	}

	out, err := decodeJSON[searchQueryList](resp.Message.Content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errors.ErrMalformedOutput, err)
	}
	queries := normalizeQueries(out.Query, n)
	if len(queries) == 0 {
		return nil, "", fmt.Errorf("%w: no queries generated", errors.ErrMalformedOutput)
	}
	return queries, strings.TrimSpace(out.Rationale), nil
}

// normalizeQueries trims, drops blanks and duplicates, and keeps at most
// limit entries. A non-positive limit keeps everything.
func normalizeQueries(in []string, limit int) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, q := range in {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
