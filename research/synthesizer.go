package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/citation"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/prompt"
)

const answerSeparator = "\n---\n\n"

type synthesizer struct {
	llm     agent.LLMClient
	prompts *prompt.Manager
	scheme  string
}

// Synthesize writes the final answer and expands the short references it
// cites. Only sources that appear in the answer are returned.
func (s *synthesizer) Synthesize(ctx context.Context, topic, date string, summaries []string, sources []citation.Source, model string) (string, []citation.Source, error) {
	example := strings.TrimRight(s.scheme, "/") + "/1-0"
	text, err := s.prompts.Render(PromptAnswer, map[string]any{
		"CurrentDate": date,
		"Topic":       topic,
		"Summaries":   strings.Join(summaries, answerSeparator),
		"ExampleRef":  example,
	})
	if err != nil {
		return "", nil, err
	}

	resp, err := s.llm.Generate(ctx, &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, text)},
		Model:    model,
	})
	if err != nil {
		return "", nil, err
	}
	if resp == nil || resp.Message == nil {
		return "", nil, fmt.Errorf("%w: empty reply", errors.ErrMalformedOutput)
	}

	answer, used := citation.Expand(resp.Message.Content, sources)
	return answer, used, nil
}
