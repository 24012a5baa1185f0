package research

import (
	"testing"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

func TestTopicSingleMessage(t *testing.T) {
	msgs := []*message.Message{message.NewMessage(message.RoleUser, "What is Go?")}
	if got := Topic(msgs); got != "What is Go?" {
		t.Fatalf("Topic = %q", got)
	}
}

func TestTopicNilMessages(t *testing.T) {
	if got := Topic([]*message.Message{nil}); got != "" {
		t.Fatalf("Topic = %q", got)
	}
	msgs := []*message.Message{nil, message.NewMessage(message.RoleUser, "hi")}
	if got := Topic(msgs); got != "User: hi\n" {
		t.Fatalf("Topic = %q", got)
	}
}

func TestTopicSkipsSystemAndToolMessages(t *testing.T) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, "be nice"),
		message.NewMessage(message.RoleUser, "hi"),
		message.NewMessage(message.RoleTool, "tool output"),
		message.NewMessage(message.RoleAssistant, "hello"),
	}
	if got, want := Topic(msgs), "User: hi\nAssistant: hello\n"; got != want {
		t.Fatalf("Topic = %q, want %q", got, want)
	}
}

func TestCurrentDate(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.December, 1, 15, 0, 0, 0, time.UTC) }
	if got := currentDate(now); got != "December 01, 2024" {
		t.Fatalf("currentDate = %q", got)
	}
}
