package openai

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

func chatServer(t *testing.T, reply string, seen *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
}

func TestGenerateText(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, `{"id":"1","object":"chat.completion","created":1,"model":"m",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}],
		"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`, &seen)
	defer srv.Close()

	p := New(&Config{APIKey: "k", BaseURL: srv.URL, Model: "base-model"})
	resp, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleSystem, "sys"),
			message.NewMessage(message.RoleUser, "hi"),
		},
		Model: "override-model",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Message.Content)
	assert.Equal(t, int64(3), resp.Usage.InputTokens)
	assert.Equal(t, "override-model", seen["model"])
	assert.Len(t, seen["messages"], 2)
	assert.NotContains(t, seen, "tools")
}

func TestGenerateToolCalls(t *testing.T) {
	var seen map[string]any
	srv := chatServer(t, `{"id":"1","object":"chat.completion","created":1,"model":"m",
		"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
		"tool_calls":[
			{"id":"c1","type":"function","function":{"name":"web_search","arguments":"{\"query\":\"go\"}"}},
			{"id":"c2","type":"function","function":{"name":"web_search","arguments":"{\"query\":"}}
		]}}]}`, &seen)
	defer srv.Close()

	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:       "web_search",
		Parameters: []tool.Parameter{{Name: "query", Type: "string", Required: true}},
	}))

	p := New(&Config{APIKey: "k", BaseURL: srv.URL})
	resp, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{
			message.NewMessage(message.RoleUser, "hi"),
			message.NewToolCallMessage("", []message.ToolCall{{ID: "c0", Name: "web_search", Args: map[string]any{"query": "x"}}}),
			message.NewToolResponseMessage("c0", "web_search", "result"),
		},
		Tools: reg.ToJSONSchemas(),
	})
	require.NoError(t, err)
	require.Len(t, resp.Message.ToolCalls, 2)
	assert.Equal(t, "go", resp.Message.ToolCalls[0].Args["query"])
	assert.False(t, resp.Message.ToolCalls[0].Malformed())
	assert.True(t, resp.Message.ToolCalls[1].Malformed())

	tools, ok := seen["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "web_search", fn["name"])

	msgs := seen["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "tool", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "c0", msgs[2].(map[string]any)["tool_call_id"])
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := New(&Config{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Generate(context.Background(), &agent.GenerateRequest{
		Messages: []*message.Message{message.NewMessage(message.RoleUser, "hi")},
	})
	assert.Error(t, err)
}
