package research

import (
	"strings"
	"time"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/message"
)

const dateLayout = "January 02, 2006"

// Topic derives the research topic from a conversation. A single message
// is used verbatim; longer histories become "User: ..." and
// "Assistant: ..." lines. Other roles are ignored.
func Topic(messages []*message.Message) string {
	if len(messages) == 1 {
		if messages[0] == nil {
			return ""
		}
		return messages[0].Content
	}
	var b strings.Builder
	for _, m := range messages {
		if m == nil {
			continue
		}
		switch m.Role {
		case message.RoleUser:
			b.WriteString("User: " + m.Content + "\n")
		case message.RoleAssistant:
			b.WriteString("Assistant: " + m.Content + "\n")
		}
	}
	return b.String()
}

func currentDate(now func() time.Time) string {
	return now().Format(dateLayout)
}
