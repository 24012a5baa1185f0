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

const reflectionSeparator = "\n\n---\n\n"

// Reflection is the verdict on the evidence gathered so far.
type Reflection struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

// reflectionWire is the wire shape; a missing verdict is malformed.
type reflectionWire struct {
	IsSufficient    *bool    `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

type reflector struct {
	llm     agent.LLMClient
	prompts *prompt.Manager
}

// Reflect judges whether summaries answer topic. A sufficient verdict never
// carries a gap or follow-ups.
func (r *reflector) Reflect(ctx context.Context, topic, date string, summaries []string, model string) (*Reflection, error) {
	text, err := r.prompts.Render(PromptReflection, map[string]any{
		"CurrentDate": date,
		"Topic":       topic,
		"Summaries":   strings.Join(summaries, reflectionSeparator),
	})
	if err != nil {
		return nil, err
	}

	resp, err := r.llm.Generate(ctx, &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, text)},
		Model:    model,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Message == nil {
		return nil, fmt.Errorf("%w: empty reply", errors.ErrMalformedOutput)
	}

	reply, err := decodeJSON[reflectionWire](resp.Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedOutput, err)
	}
	if reply.IsSufficient == nil {
		return nil, fmt.Errorf("%w: missing is_sufficient", errors.ErrMalformedOutput)
	}
	out := &Reflection{
		IsSufficient:    *reply.IsSufficient,
		KnowledgeGap:    reply.KnowledgeGap,
		FollowUpQueries: reply.FollowUpQueries,
	}
	if out.IsSufficient {
		out.KnowledgeGap = ""
		out.FollowUpQueries = nil
		return out, nil
	}
	out.KnowledgeGap = strings.TrimSpace(out.KnowledgeGap)
	out.FollowUpQueries = normalizeQueries(out.FollowUpQueries, 0)
	return out, nil
}
