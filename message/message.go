package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"`   // For tool response messages
	ToolName  string         `json:"tool_name,omitempty"` // Name of the tool that produced a tool response
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCall represents a tool invocation request.
// When the provider could not decode the arguments, Args is nil, RawArgs holds
// the payload as received and ArgsError describes the decode failure.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Args      map[string]any `json:"args"`
	RawArgs   string         `json:"raw_args,omitempty"`
	ArgsError string         `json:"args_error,omitempty"`
}

// Malformed reports whether the provider failed to decode the call arguments.
func (c ToolCall) Malformed() bool {
	return c.ArgsError != ""
}

// NewMessage creates a new message with the given role and content
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// Text returns the trimmed textual content. Nil-safe.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Content)
}

// Clone creates a deep copy of the message.
func Clone(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	cloned := *msg
	if msg.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			cloned.Metadata[k] = v
		}
	}
	if len(msg.ToolCalls) > 0 {
		cloned.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			cloned.ToolCalls[i] = cloneToolCall(tc)
		}
	}
	return &cloned
}

// CloneMessages copies a slice of messages.
func CloneMessages(msgs []*Message) []*Message {
	if len(msgs) == 0 {
		return nil
	}
	clones := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		clones = append(clones, Clone(msg))
	}
	return clones
}

func cloneToolCall(call ToolCall) ToolCall {
	cloned := call
	if call.Args != nil {
		cloned.Args = make(map[string]any, len(call.Args))
		for k, v := range call.Args {
			cloned.Args[k] = v
		}
	}
	return cloned
}

// NewToolCallMessage creates an assistant message carrying tool calls
func NewToolCallMessage(content string, toolCalls []ToolCall) *Message {
	msg := NewMessage(RoleAssistant, content)
	msg.ToolCalls = toolCalls
	return msg
}

// NewToolResponseMessage creates a tool response message
func NewToolResponseMessage(toolID, toolName, content string) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolID = toolID
	msg.ToolName = toolName
	return msg
}

func generateID() string {
	return uuid.NewString()
}
