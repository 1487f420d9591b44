// Package history implements the per-conversation append-only message log,
// with a Redis keyed-list backing and a Qdrant vector backing.
package history

import (
	"context"
	"strings"
)

// Message is one turn in a conversation.
type Message struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// Store appends messages to a conversation and retrieves a bounded, time-
// ordered window of recent messages.
type Store interface {
	Append(ctx context.Context, msg Message) error
	GetConversation(ctx context.Context, conversationID string, n int) ([]Message, error)
}

// FormatHistoryForPrompt renders conv as the literal block the agent
// interpolates ahead of a general_llm_call, or "" when conv is empty.
func FormatHistoryForPrompt(conv []Message) string {
	if len(conv) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range conv {
		switch m.Role {
		case "user":
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
