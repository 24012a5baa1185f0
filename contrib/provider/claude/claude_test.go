package claude

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/agent"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/tool"
)

func TestGenerateToolUse(t *testing.T) {
	var seen map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"stop_reason":"tool_use","usage":{"input_tokens":7,"output_tokens":2},
			"content":[
				{"type":"text","text":"Searching."},
				{"type":"tool_use","id":"tu_1","name":"web_search","input":{"query":"go"}}
			]}`)
	}))
	defer srv.Close()

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:        "web_search",
		Description: "search",
		Parameters:  []tool.Parameter{{Name: "query", Type: "string", Required: true}},
	}))

	p := New(&Config{APIKey: "k", BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, "be precise"),
			message.NewMessage(message.RoleUser, "hi"),
			message.NewToolCallMessage("", []message.ToolCall{
				{ID: "a", Name: "web_search", Args: map[string]any{"query": "x"}},
				{ID: "b", Name: "web_search", Args: map[string]any{"query": "y"}},
			}),
			message.NewToolResponseMessage("a", "web_search", "ra"),
			message.NewToolResponseMessage("b", "web_search", "Error executing tool web_search: boom"),
		},
		Tools: reg.ToJSONSchemas(),
		Model: "claude-override",
	})
	require.NoError(t, err)

	assert.Equal(t, "Searching.", resp.Message.Content)
	require.Len(t, resp.Message.ToolCalls, 1)
	assert.Equal(t, "go", resp.Message.ToolCalls[0].Args["query"])
	assert.Equal(t, int64(7), resp.Usage.InputTokens)

	assert.Equal(t, "claude-override", seen["model"])
	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 3, "tool results fold into one user turn")
	last := msgs[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Len(t, last["content"], 2)

	tools := seen["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "web_search", tools[0].(map[string]any)["name"])
}

func TestEncodeMessagesJoinsSystemPrompts(t *testing.T) {
	system, msgs := encodeMessages([]*message.Message{
		message.NewMessage(message.RoleSystem, "a"),
		message.NewMessage(message.RoleSystem, "b"),
		message.NewMessage(message.RoleUser, "q"),
	})
	assert.Equal(t, "a\nb", system)
	assert.Len(t, msgs, 1)
}
