package conversations

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tourwise/server/internal/agent/model"
)

// HistoryFormatter turns session history into the textual context blocks the
// prompts expect.
type HistoryFormatter struct {
	maxTurns int
}

func NewHistoryFormatter(config model.ConversationConfig) *HistoryFormatter {
	return &HistoryFormatter{maxTurns: config.History.MaxTurns}
}

// Context renders the most recent turns of the conversation.
func (f *HistoryFormatter) Context(messages []*schema.Message) string {
	recent := trimTail(messages, f.maxTurns)

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			b.WriteString("AssistantMessage(" + msg.Content + ")\n")
		}
	}
	b.WriteString("</conversation_context>")
	return b.String()
}

// ContextWithQuery appends the query being handled to the history context.
func (f *HistoryFormatter) ContextWithQuery(messages []*schema.Message, query string) string {
	var b strings.Builder
	b.WriteString(f.Context(messages))
	b.WriteString("\n<current_message_to_analyze>\n")
	b.WriteString("UserMessage(" + query + ")\n")
	b.WriteString("</current_message_to_analyze>")
	return b.String()
}

// LastAssistant returns the content of the most recent assistant message, or
// an empty string when there is none.
func LastAssistant(messages []*schema.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i] != nil && messages[i].Role == schema.Assistant {
			return messages[i].Content
		}
	}
	return ""
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
